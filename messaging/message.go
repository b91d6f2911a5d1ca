// Package messaging holds the cross-layer message types, their canonical
// encoding and the reference-counted registry that tracks them.
package messaging

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-settlement/felt"
)

// MessageL1ToL2 is sent on L1 and consumed by a later state update.
type MessageL1ToL2 struct {
	FromAddress felt.Felt   `json:"from_address"`
	ToAddress   felt.Felt   `json:"to_address"`
	Nonce       felt.Felt   `json:"nonce"`
	Selector    felt.Felt   `json:"selector"`
	Payload     []felt.Felt `json:"payload"`
}

// MessageL2ToL1 is emitted by a state update and stays queryable afterwards.
type MessageL2ToL1 struct {
	FromAddress felt.Felt   `json:"from_address"`
	ToAddress   felt.Felt   `json:"to_address"`
	Payload     []felt.Felt `json:"payload"`
}

// Words is the message as a felt sequence: from, to, nonce, selector, len, payload.
func (m MessageL1ToL2) Words() []felt.Felt {
	out := make([]felt.Felt, 0, 5+len(m.Payload))
	out = append(out, m.FromAddress, m.ToAddress, m.Nonce, m.Selector, felt.FromUint64(uint64(len(m.Payload))))
	return append(out, m.Payload...)
}

// Encode returns the canonical byte encoding.
func (m MessageL1ToL2) Encode() []byte {
	e := NewEncoder(32 * (5 + len(m.Payload)))
	e.Felt(m.FromAddress)
	e.Felt(m.ToAddress)
	e.Felt(m.Nonce)
	e.Felt(m.Selector)
	e.Felts(m.Payload)
	return e.Bytes()
}

// Hash is the existence key of the message: keccak256 over Encode.
func (m MessageL1ToL2) Hash() common.Hash {
	return crypto.Keccak256Hash(m.Encode())
}

// Words is the message as a felt sequence: from, to, len, payload.
func (m MessageL2ToL1) Words() []felt.Felt {
	out := make([]felt.Felt, 0, 3+len(m.Payload))
	out = append(out, m.FromAddress, m.ToAddress, felt.FromUint64(uint64(len(m.Payload))))
	return append(out, m.Payload...)
}

func (m MessageL2ToL1) Encode() []byte {
	e := NewEncoder(32 * (3 + len(m.Payload)))
	e.Felt(m.FromAddress)
	e.Felt(m.ToAddress)
	e.Felts(m.Payload)
	return e.Bytes()
}

func (m MessageL2ToL1) Hash() common.Hash {
	return crypto.Keccak256Hash(m.Encode())
}

// DecodeMessageL1ToL2 parses a canonical encoding. It is the inverse of Encode.
func DecodeMessageL1ToL2(raw []byte) (m MessageL1ToL2, err error) {
	d := NewDecoder(raw)
	if m.FromAddress, err = d.Felt(); err != nil {
		return m, err
	}
	if m.ToAddress, err = d.Felt(); err != nil {
		return m, err
	}
	if m.Nonce, err = d.Felt(); err != nil {
		return m, err
	}
	if m.Selector, err = d.Felt(); err != nil {
		return m, err
	}
	if m.Payload, err = d.Felts(); err != nil {
		return m, err
	}
	return m, d.Done()
}

// DecodeMessageL2ToL1 parses a canonical encoding. It is the inverse of Encode.
func DecodeMessageL2ToL1(raw []byte) (m MessageL2ToL1, err error) {
	d := NewDecoder(raw)
	if m.FromAddress, err = d.Felt(); err != nil {
		return m, err
	}
	if m.ToAddress, err = d.Felt(); err != nil {
		return m, err
	}
	if m.Payload, err = d.Felts(); err != nil {
		return m, err
	}
	return m, d.Done()
}
