package snos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
)

func f(v uint64) felt.Felt {
	return felt.FromUint64(v)
}

func sample() *ProgramOutput {
	return &ProgramOutput{
		PrevStateRoot: f(1),
		NewStateRoot:  f(2),
		BlockNumber:   2,
		BlockHash:     f(0xb),
		ConfigHash:    f(1),
		MessagesToL1: []messaging.MessageL2ToL1{
			{FromAddress: f(5), ToAddress: f(6), Payload: []felt.Felt{f(7), f(8)}},
		},
		MessagesToL2: []messaging.MessageL1ToL2{
			{FromAddress: f(10), ToAddress: f(11), Nonce: f(0), Selector: f(2), Payload: []felt.Felt{f(1)}},
			{FromAddress: f(10), ToAddress: f(11), Nonce: f(1), Selector: f(2), Payload: []felt.Felt{}},
		},
	}
}

func TestEncodeLayout(t *testing.T) {
	got := sample().Encode()
	want := []felt.Felt{
		f(1), f(2), f(2), f(0xb), f(1),
		f(5), f(5), f(6), f(2), f(7), f(8),
		f(11),
		f(10), f(11), f(0), f(2), f(1), f(1),
		f(10), f(11), f(1), f(2), f(0),
	}
	require.Equal(t, want, got)
}

func TestDecodeRoundTrip(t *testing.T) {
	in := sample()
	out, err := Decode(in.Encode())
	require.NoError(t, err)
	require.Equal(t, in, out)

	empty := &ProgramOutput{BlockNumber: 1, NewStateRoot: f(1), ConfigHash: f(1)}
	out, err = Decode(empty.Encode())
	require.NoError(t, err)
	require.Equal(t, empty, out)
}

func TestDecodeMalformed(t *testing.T) {
	good := sample().Encode()

	cases := map[string][]felt.Felt{
		"short header": good[:4],
		"no segments":  good[:5],
		"trailing":     append(append([]felt.Felt{}, good...), f(0)),
		"segment too long": func() []felt.Felt {
			w := append([]felt.Felt{}, good...)
			w[5] = f(1000)
			return w
		}(),
		"payload overruns segment": func() []felt.Felt {
			w := append([]felt.Felt{}, good...)
			w[8] = f(4)
			return w
		}(),
		"wide block number": func() []felt.Felt {
			w := append([]felt.Felt{}, good...)
			w[2] = felt.MustFromHex("0x10000000000000000")
			return w
		}(),
		"truncated l1->l2 message": {f(0), f(1), f(1), f(0), f(1), f(0), f(3), f(10), f(11), f(0)},
	}
	for name, words := range cases {
		_, err := Decode(words)
		require.ErrorIs(t, err, ErrMalformedOutput, name)
	}
}

func TestParseJSON(t *testing.T) {
	in := sample()

	obj, err := json.Marshal(in)
	require.NoError(t, err)
	out, err := ParseJSON(obj)
	require.NoError(t, err)
	require.Equal(t, in, out)

	arr, err := json.Marshal(in.Encode())
	require.NoError(t, err)
	out, err = ParseJSON(arr)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = ParseJSON([]byte(`{"block_number": "x"}`))
	require.ErrorIs(t, err, ErrMalformedOutput)
	_, err = ParseJSON([]byte(`["0xzz"]`))
	require.ErrorIs(t, err, ErrMalformedOutput)
}
