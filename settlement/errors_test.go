package settlement

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/snos"
)

func TestReasonMapping(t *testing.T) {
	for _, c := range []struct {
		err    error
		reason string
	}{
		{ErrNotInitialized, ReasonNotInitialized},
		{fmt.Errorf("wrapped: %w", ErrAlreadyInitialized), ReasonAlreadyInitialized},
		{&ConfigMismatchError{Expected: felt.FromUint64(1), Got: felt.FromUint64(2)}, ReasonConfigMismatch},
		{&SequenceGapError{Current: 3, Got: 3}, ReasonSequenceGap},
		{&UnknownMessageError{Index: 0, Hash: common.Hash{1}}, ReasonUnknownMessage},
		{fmt.Errorf("%w: expected 1, got 0x2", ErrInvalidNonce), ReasonInvalidNonce},
		{ErrInvalidSender, ReasonInvalidSender},
		{&EncodingError{Field: "payload", Err: felt.ErrOutOfRange}, ReasonEncoding},
		{ErrOnlyGovernor, ReasonOnlyGovernor},
		{ErrOnlyOperator, ReasonOnlyOperator},
		{fmt.Errorf("%w: 3 trailing words", snos.ErrMalformedOutput), ReasonMalformedOutput},
		{fmt.Errorf("unrelated"), ""},
		{nil, ""},
	} {
		require.Equal(t, c.reason, ReasonOf(c.err), "%v", c.err)
		if c.reason != "" {
			require.ErrorIs(t, c.err, ErrorFromReason(c.reason))
		}
	}
	require.Nil(t, ErrorFromReason("SOMETHING_ELSE"))
}

func TestEncodingErrorMatchesCause(t *testing.T) {
	err := error(&EncodingError{Field: "to_address", Err: felt.ErrOutOfRange})
	require.ErrorIs(t, err, ErrEncoding)
	require.ErrorIs(t, err, felt.ErrOutOfRange)
	require.Contains(t, err.Error(), "to_address")
}

func TestSequenceGapMessage(t *testing.T) {
	require.Contains(t, (&SequenceGapError{Current: 2, Got: 1}).Error(), "replay")
	require.Contains(t, (&SequenceGapError{Current: 2, Got: 4}).Error(), "skip")
}
