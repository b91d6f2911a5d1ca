package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestSetupFilters(t *testing.T) {
	defer SetTestMode(t)

	var out bytes.Buffer
	require.NoError(t, Setup(Config{Verbosity: int(log.LvlInfo), Format: "logfmt"}, &out))

	l := New("settlement").Log
	l.Debug("hidden")
	l.Info("shown", "block", 7)

	require.NotContains(t, out.String(), "hidden")
	require.Contains(t, out.String(), "shown")
	require.Contains(t, out.String(), "module=settlement")
	require.Contains(t, out.String(), "block=7")
}

func TestSetupRejectsUnknownFormat(t *testing.T) {
	require.Error(t, Setup(Config{Format: "xml"}, &bytes.Buffer{}))
}

func TestRecordForwarder(t *testing.T) {
	l, hook := test.NewNullLogger()
	h := recordForwarder(l)

	require.NoError(t, h.Log(&log.Record{
		Lvl: log.LvlError,
		Msg: "State update rejected",
		Ctx: []interface{}{"module", "settlement", "err", errors.New("boom")},
	}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.ErrorLevel, entry.Level)
	require.Equal(t, "State update rejected", entry.Message)
	require.Equal(t, "settlement", entry.Data["module"])
	require.Equal(t, "boom", entry.Data["err"])
	require.Equal(t, "eror", entry.Data["lvl"])
}
