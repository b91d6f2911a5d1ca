package sandbox

import (
	"crypto/ecdsa"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FakeKey returns the n-th deterministic test account key. The same n always
// yields the same key.
func FakeKey(n uint64) *ecdsa.PrivateKey {
	seed := crypto.Keccak256(append([]byte("sandbox"), bigendian.Uint64ToBytes(n)...))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		panic(err)
	}
	return key
}

// FakeAddress is the account of FakeKey(n).
func FakeAddress(n uint64) common.Address {
	return crypto.PubkeyToAddress(FakeKey(n).PublicKey)
}
