// Package snos reads and writes the public output of the rollup OS program:
// the flat felt array a verified proof attests to.
//
// Layout:
//
//	prev_root, new_root, block_number, block_hash, config_hash,
//	len(l2->l1 segment), {from, to, payload_len, payload...}*,
//	len(l1->l2 segment), {from, to, nonce, selector, payload_len, payload...}*
package snos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
)

const headerSize = 5

var ErrMalformedOutput = errors.New("snos: malformed program output")

// ProgramOutput asserts one state transition and the messages it processed.
type ProgramOutput struct {
	PrevStateRoot felt.Felt                 `json:"prev_state_root"`
	NewStateRoot  felt.Felt                 `json:"new_state_root"`
	BlockNumber   idx.Block                 `json:"block_number"`
	BlockHash     felt.Felt                 `json:"block_hash"`
	ConfigHash    felt.Felt                 `json:"config_hash"`
	MessagesToL1  []messaging.MessageL2ToL1 `json:"messages_to_l1"`
	MessagesToL2  []messaging.MessageL1ToL2 `json:"messages_to_l2"`
}

// Encode flattens the output into its felt layout.
func (o *ProgramOutput) Encode() []felt.Felt {
	var toL1, toL2 []felt.Felt
	for _, m := range o.MessagesToL1 {
		toL1 = append(toL1, m.Words()...)
	}
	for _, m := range o.MessagesToL2 {
		toL2 = append(toL2, m.Words()...)
	}

	out := make([]felt.Felt, 0, headerSize+2+len(toL1)+len(toL2))
	out = append(out,
		o.PrevStateRoot,
		o.NewStateRoot,
		felt.FromUint64(uint64(o.BlockNumber)),
		o.BlockHash,
		o.ConfigHash,
	)
	out = append(out, felt.FromUint64(uint64(len(toL1))))
	out = append(out, toL1...)
	out = append(out, felt.FromUint64(uint64(len(toL2))))
	return append(out, toL2...)
}

type cursor struct {
	words []felt.Felt
	pos   int
}

func (c *cursor) left() int {
	return len(c.words) - c.pos
}

func (c *cursor) next(what string) (felt.Felt, error) {
	if c.left() == 0 {
		return felt.Zero, fmt.Errorf("%w: missing %s at word %d", ErrMalformedOutput, what, c.pos)
	}
	f := c.words[c.pos]
	c.pos++
	return f, nil
}

func (c *cursor) length(what string) (int, error) {
	f, err := c.next(what)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint64()
	if err != nil || n > uint64(c.left()) {
		return 0, fmt.Errorf("%w: %s %s exceeds remaining %d words", ErrMalformedOutput, what, f, c.left())
	}
	return int(n), nil
}

// segment returns a cursor over the next length-prefixed segment.
func (c *cursor) segment(what string) (*cursor, error) {
	n, err := c.length(what + " segment length")
	if err != nil {
		return nil, err
	}
	seg := &cursor{words: c.words[c.pos : c.pos+n]}
	c.pos += n
	return seg, nil
}

func (c *cursor) payload() ([]felt.Felt, error) {
	n, err := c.length("payload length")
	if err != nil {
		return nil, err
	}
	out := make([]felt.Felt, n)
	copy(out, c.words[c.pos:c.pos+n])
	c.pos += n
	return out, nil
}

// Decode parses a felt array. Every word must be consumed.
func Decode(words []felt.Felt) (*ProgramOutput, error) {
	if len(words) < headerSize {
		return nil, fmt.Errorf("%w: %d words, header needs %d", ErrMalformedOutput, len(words), headerSize)
	}
	c := &cursor{words: words}
	o := &ProgramOutput{}

	o.PrevStateRoot, _ = c.next("prev_state_root")
	o.NewStateRoot, _ = c.next("new_state_root")
	block, _ := c.next("block_number")
	o.BlockHash, _ = c.next("block_hash")
	o.ConfigHash, _ = c.next("config_hash")

	n, err := block.Uint64()
	if err != nil {
		return nil, fmt.Errorf("%w: block number %s", ErrMalformedOutput, block)
	}
	o.BlockNumber = idx.Block(n)

	toL1, err := c.segment("l2->l1")
	if err != nil {
		return nil, err
	}
	for toL1.left() > 0 {
		var m messaging.MessageL2ToL1
		if m.FromAddress, err = toL1.next("from_address"); err != nil {
			return nil, err
		}
		if m.ToAddress, err = toL1.next("to_address"); err != nil {
			return nil, err
		}
		if m.Payload, err = toL1.payload(); err != nil {
			return nil, err
		}
		o.MessagesToL1 = append(o.MessagesToL1, m)
	}

	toL2, err := c.segment("l1->l2")
	if err != nil {
		return nil, err
	}
	for toL2.left() > 0 {
		var m messaging.MessageL1ToL2
		if m.FromAddress, err = toL2.next("from_address"); err != nil {
			return nil, err
		}
		if m.ToAddress, err = toL2.next("to_address"); err != nil {
			return nil, err
		}
		if m.Nonce, err = toL2.next("nonce"); err != nil {
			return nil, err
		}
		if m.Selector, err = toL2.next("selector"); err != nil {
			return nil, err
		}
		if m.Payload, err = toL2.payload(); err != nil {
			return nil, err
		}
		o.MessagesToL2 = append(o.MessagesToL2, m)
	}

	if c.left() != 0 {
		return nil, fmt.Errorf("%w: %d trailing words", ErrMalformedOutput, c.left())
	}
	return o, nil
}

// ParseJSON accepts either the object form of ProgramOutput or the raw felt
// array as a JSON list of hex strings.
func ParseJSON(raw []byte) (*ProgramOutput, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var words []felt.Felt
		if err := json.Unmarshal(raw, &words); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return Decode(words)
	}
	o := &ProgramOutput{}
	if err := json.Unmarshal(raw, o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return o, nil
}
