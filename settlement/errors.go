package settlement

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/snos"
)

var (
	ErrNotInitialized     = errors.New("settlement: not initialized")
	ErrAlreadyInitialized = errors.New("settlement: already initialized")
	ErrConfigMismatch     = errors.New("settlement: config hash mismatch")
	ErrSequenceGap        = errors.New("settlement: block number is not the next one")
	ErrEncoding           = errors.New("settlement: value outside field range")
	ErrInvalidSender      = errors.New("settlement: sender is not an L1 address")
	ErrOnlyGovernor       = errors.New("settlement: caller is not the governor")
	ErrOnlyOperator       = errors.New("settlement: caller is not an operator")

	ErrUnknownMessage = messaging.ErrUnknownMessage
	ErrInvalidNonce   = messaging.ErrInvalidNonce
)

// UnknownMessageError names the first message of an update that is not pending.
type UnknownMessageError = messaging.UnknownMessageError

// SequenceGapError is returned when an update's block number is not Current+1.
type SequenceGapError struct {
	Current idx.Block
	Got     idx.Block
}

// Replay reports whether the rejected block was already accepted.
func (e *SequenceGapError) Replay() bool {
	return e.Got <= e.Current
}

func (e *SequenceGapError) Error() string {
	kind := "skip"
	if e.Replay() {
		kind = "replay"
	}
	return fmt.Sprintf("%v: got %d, current %d (%s)", ErrSequenceGap, e.Got, e.Current, kind)
}

func (e *SequenceGapError) Is(target error) bool {
	return target == ErrSequenceGap
}

type ConfigMismatchError struct {
	Expected felt.Felt
	Got      felt.Felt
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("%v: expected %s, got %s", ErrConfigMismatch, e.Expected, e.Got)
}

func (e *ConfigMismatchError) Is(target error) bool {
	return target == ErrConfigMismatch
}

// EncodingError wraps a field range failure. It matches both ErrEncoding and the cause.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrEncoding, e.Field, e.Err)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Revert reasons carried by the core contract.
const (
	ReasonNotInitialized     = "NOT_INITIALIZED"
	ReasonAlreadyInitialized = "ALREADY_INITIALIZED"
	ReasonConfigMismatch     = "INVALID_CONFIG_HASH"
	ReasonSequenceGap        = "INVALID_BLOCK_NUMBER"
	ReasonUnknownMessage     = "INVALID_MESSAGE_TO_CONSUME"
	ReasonInvalidNonce       = "INVALID_NONCE"
	ReasonInvalidSender      = "INVALID_SENDER"
	ReasonEncoding           = "INVALID_FELT"
	ReasonOnlyGovernor       = "ONLY_GOVERNOR"
	ReasonOnlyOperator       = "ONLY_OPERATOR"
	ReasonMalformedOutput    = "INVALID_PROGRAM_OUTPUT"
)

var reasons = []struct {
	reason string
	err    error
}{
	{ReasonNotInitialized, ErrNotInitialized},
	{ReasonAlreadyInitialized, ErrAlreadyInitialized},
	{ReasonConfigMismatch, ErrConfigMismatch},
	{ReasonSequenceGap, ErrSequenceGap},
	{ReasonUnknownMessage, ErrUnknownMessage},
	{ReasonInvalidNonce, ErrInvalidNonce},
	{ReasonInvalidSender, ErrInvalidSender},
	{ReasonEncoding, ErrEncoding},
	{ReasonOnlyGovernor, ErrOnlyGovernor},
	{ReasonOnlyOperator, ErrOnlyOperator},
	{ReasonMalformedOutput, snos.ErrMalformedOutput},
}

// ReasonOf maps a protocol error to its revert reason, or "" if it has none.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// ErrorFromReason is the inverse of ReasonOf. Unknown reasons yield nil.
func ErrorFromReason(reason string) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.err
		}
	}
	return nil
}
