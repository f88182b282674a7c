// Package messages defines the serializable records crossing the
// client/server boundary. Encoding is CBOR; byte fields carry canonical
// compressed encodings (EdDSA keys and signatures, big-endian field
// elements), proofs the gnark wire format.
package messages

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Phase1Request is sent by the client to open a session: the commitment (or
// batch tree root in Expand), its signature public key and the timestamp.
type Phase1Request struct {
	CommitmentOrRoot []byte `cbor:"commitment"`
	ClientSigPk      []byte `cbor:"client_pk"`
	Time             []byte `cbor:"time"`
}

// Phase1Response carries the signed server seed back to the client.
type Phase1Response struct {
	SessionID  string `cbor:"session_id"`
	ServerSeed []byte `cbor:"server_seed"`
	ServerSig  []byte `cbor:"server_sig"`
}

// Phase2Message is the randomized contribution: the full public transcript,
// the LDP output and the proof. LeafIndex is meaningful only when the
// protocol variant carries a batch tree.
type Phase2Message struct {
	ClientSigPk      []byte `cbor:"client_pk"`
	CommitmentOrRoot []byte `cbor:"commitment"`
	ServerSeed       []byte `cbor:"server_seed"`
	ServerSig        []byte `cbor:"server_sig"`
	Time             []byte `cbor:"time"`
	LDPValue         uint64 `cbor:"ldp_value"`
	Proof            []byte `cbor:"proof"`

	// Expand only: the authentication path of the consumed leaf (also bound
	// inside the proof) and its index.
	MerklePath [][]byte `cbor:"merkle_path,omitempty"`
	LeafIndex  uint64   `cbor:"leaf_index,omitempty"`
}

// enc is a deterministic encoding mode so equal messages serialize to equal
// bytes.
var enc cbor.EncMode

func init() {
	var err error
	enc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

func Encode(v any) ([]byte, error) {
	data, err := enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

func Decode(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
