// Package felt implements the field element used by the settlement protocol:
// an integer modulo the STARK prime P = 2^251 + 17·2^192 + 1, stored as a
// 32-byte big-endian word.
//
// A Felt value is always canonical (strictly below P). Every constructor that
// accepts external input range-checks it and fails with ErrOutOfRange, so code
// holding a Felt never has to re-validate.
package felt

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Size is the byte width of an encoded field element.
const Size = 32

var (
	ErrOutOfRange  = errors.New("felt: value out of field range")
	ErrNotAddress  = errors.New("felt: value does not fit an L1 address")
	ErrInvalidHex  = errors.New("felt: invalid hex string")
	ErrNotUint64   = errors.New("felt: value does not fit uint64")
	ErrInputLength = errors.New("felt: input longer than 32 bytes")
)

// Prime is the field modulus.
var Prime = func() *uint256.Int {
	p, _ := new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)
	u, _ := uint256.FromBig(p)
	return u
}()

// Felt is a canonical field element.
type Felt [Size]byte

var Zero Felt

// FromUint64 always succeeds: every uint64 is below P.
func FromUint64(v uint64) Felt {
	return Felt(uint256.NewInt(v).Bytes32())
}

// FromBytes interprets b as a big-endian integer of at most 32 bytes.
func FromBytes(b []byte) (Felt, error) {
	if len(b) > Size {
		return Zero, ErrInputLength
	}
	return fromInt(new(uint256.Int).SetBytes(b))
}

// FromBig converts a non-negative big integer.
func FromBig(v *big.Int) (Felt, error) {
	if v == nil || v.Sign() < 0 {
		return Zero, ErrOutOfRange
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return Zero, ErrOutOfRange
	}
	return fromInt(u)
}

// FromHex parses a 0x-prefixed (or bare) hex string. Leading zeros are allowed.
func FromHex(s string) (Felt, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if raw == "" || len(raw) > 2*Size {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	b, err := hexutil.Decode("0x" + raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return FromBytes(b)
}

// FromAddress embeds an L1 address, zero-padding the 12 high-order bytes.
func FromAddress(addr common.Address) Felt {
	var f Felt
	copy(f[Size-common.AddressLength:], addr[:])
	return f
}

// MustFromHex is FromHex for constants.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

func fromInt(u *uint256.Int) (Felt, error) {
	if !u.Lt(Prime) {
		return Zero, ErrOutOfRange
	}
	return Felt(u.Bytes32()), nil
}

// IsValid reports whether the raw word is below P. Values built through the
// constructors are always valid; this is for words read off the wire.
func IsValid(word [Size]byte) bool {
	return new(uint256.Int).SetBytes(word[:]).Lt(Prime)
}

func (f Felt) int() *uint256.Int {
	return new(uint256.Int).SetBytes(f[:])
}

func (f Felt) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, f[:])
	return b
}

func (f Felt) Big() *big.Int {
	return new(big.Int).SetBytes(f[:])
}

func (f Felt) IsZero() bool {
	return f == Zero
}

func (f Felt) IsUint64() bool {
	return f.int().IsUint64()
}

// Uint64 returns the value if it fits, ErrNotUint64 otherwise.
func (f Felt) Uint64() (uint64, error) {
	u := f.int()
	if !u.IsUint64() {
		return 0, ErrNotUint64
	}
	return u.Uint64(), nil
}

// Address extracts an embedded L1 address. The 12 high-order bytes must be zero.
func (f Felt) Address() (common.Address, error) {
	for _, b := range f[:Size-common.AddressLength] {
		if b != 0 {
			return common.Address{}, ErrNotAddress
		}
	}
	return common.BytesToAddress(f[Size-common.AddressLength:]), nil
}

func (f Felt) Hash() common.Hash {
	return common.Hash(f)
}

// Hex is the minimal 0x-prefixed form, "0x0" for zero.
func (f Felt) Hex() string {
	return "0x" + f.Big().Text(16)
}

func (f Felt) String() string {
	return f.Hex()
}

func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *Felt) UnmarshalText(input []byte) error {
	v, err := FromHex(string(input))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Slice converts words to felts, failing on the first out-of-range element.
func Slice(words []*big.Int) ([]Felt, error) {
	out := make([]Felt, len(words))
	for i, w := range words {
		f, err := FromBig(w)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Bigs is the inverse of Slice.
func Bigs(fs []Felt) []*big.Int {
	out := make([]*big.Int, len(fs))
	for i, f := range fs {
		out[i] = f.Big()
	}
	return out
}
