package messages

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestPhase1RequestRoundTrip(t *testing.T) {
	msg := &Phase1Request{
		CommitmentOrRoot: randBytes(t, 32),
		ClientSigPk:      randBytes(t, 32),
		Time:             []byte{42},
	}
	data, err := Encode(msg)
	require.NoError(t, err)

	var out Phase1Request
	require.NoError(t, Decode(data, &out))
	require.Equal(t, msg, &out)
}

func TestPhase1ResponseRoundTrip(t *testing.T) {
	msg := &Phase1Response{
		SessionID:  "b9c7f1e2",
		ServerSeed: randBytes(t, 32),
		ServerSig:  randBytes(t, 64),
	}
	data, err := Encode(msg)
	require.NoError(t, err)

	var out Phase1Response
	require.NoError(t, Decode(data, &out))
	require.Equal(t, msg, &out)
}

func TestPhase2MessageRoundTrip(t *testing.T) {
	msg := &Phase2Message{
		ClientSigPk:      randBytes(t, 32),
		CommitmentOrRoot: randBytes(t, 32),
		ServerSeed:       randBytes(t, 32),
		ServerSig:        randBytes(t, 64),
		Time:             []byte{1, 2},
		LDPValue:         12,
		Proof:            randBytes(t, 128),
		MerklePath:       [][]byte{randBytes(t, 32), randBytes(t, 32)},
		LeafIndex:        3,
	}
	data, err := Encode(msg)
	require.NoError(t, err)

	var out Phase2Message
	require.NoError(t, Decode(data, &out))
	require.Equal(t, msg, &out)
}

func TestEncodingIsDeterministic(t *testing.T) {
	msg := &Phase2Message{
		ClientSigPk:      randBytes(t, 32),
		CommitmentOrRoot: randBytes(t, 32),
		ServerSeed:       randBytes(t, 32),
		ServerSig:        randBytes(t, 64),
		Time:             []byte{1},
		LDPValue:         5,
		Proof:            randBytes(t, 64),
	}
	a, err := Encode(msg)
	require.NoError(t, err)
	b, err := Encode(msg)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
