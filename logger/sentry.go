package logger

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

const sentryTimeout = 5 * time.Second

// SentryHandler forwards error and crit records to Sentry. The logrus logger
// only carries the hook; its own output is discarded.
func SentryHandler(dsn string) (log.Handler, error) {
	hook, err := logrus_sentry.NewSentryHook(dsn, []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry hook: %w", err)
	}
	hook.Timeout = sentryTimeout

	l := logrus.New()
	l.Out = ioutil.Discard
	l.Hooks.Add(hook)

	return log.LvlFilterHandler(log.LvlError, recordForwarder(l)), nil
}

func recordForwarder(l *logrus.Logger) log.Handler {
	return log.FuncHandler(func(r *log.Record) error {
		l.WithFields(recordFields(r)).Error(r.Msg)
		return nil
	})
}

func recordFields(r *log.Record) logrus.Fields {
	fields := logrus.Fields{"lvl": r.Lvl.String()}
	for i := 0; i+1 < len(r.Ctx); i += 2 {
		key, ok := r.Ctx[i].(string)
		if !ok {
			key = fmt.Sprint(r.Ctx[i])
		}
		val := r.Ctx[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		fields[key] = val
	}
	return fields
}
