package utils

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/hash"
	"golang.org/x/crypto/blake2s"
)

// SeedSize is the byte length of the client expansion seed.
const SeedSize = 32

// ExpandSeed stretches a seed into n pseudorandom bytes with the Blake2s
// XOF. Used for the client randomness in Base/Expand and, by both sides, to
// expand the public server seed; its inputs never appear inside a circuit.
func ExpandSeed(seed []byte, n int) ([]byte, error) {
	xof, err := blake2s.NewXOF(uint16(n), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: blake2s xof: %v", ErrPrimitiveFailure, err)
	}
	if _, err := xof.Write(seed); err != nil {
		return nil, fmt.Errorf("%w: blake2s xof: %v", ErrPrimitiveFailure, err)
	}
	out := make([]byte, n)
	if _, err := xof.Read(out); err != nil {
		return nil, fmt.Errorf("%w: blake2s xof: %v", ErrPrimitiveFailure, err)
	}
	return out, nil
}

// ExpandServerSeed derives the server randomness bytes from the seed field
// element. The server recomputes this during verification and feeds the
// result to the circuit as public input.
func ExpandServerSeed(seed fr.Element, n int) ([]byte, error) {
	return ExpandSeed(seed.Marshal(), n)
}

// ShuffleRandomness derives the combined randomness of the Shuffle protocol:
// 31 bytes per MiMC(clientSeed, serverSeed, chunk) evaluation, concatenated
// little-endian and truncated to n. The Shuffle circuit recomputes the same
// bytes from the committed seed.
func ShuffleRandomness(clientSeed, serverSeed fr.Element, n int) []byte {
	out := make([]byte, 0, n)
	for chunk := uint64(0); len(out) < n; chunk++ {
		var c fr.Element
		c.SetUint64(chunk)
		h := hash.MIMC_BN254.New()
		h.Write(clientSeed.Marshal())
		h.Write(serverSeed.Marshal())
		h.Write(c.Marshal())
		var digest fr.Element
		digest.SetBytes(h.Sum(nil))
		le := BEtoLE(digest.Marshal())
		take := BytesPerElement
		if len(out)+take > n {
			take = n - len(out)
		}
		out = append(out, le[:take]...)
	}
	return out
}

// XorBytes combines two equal-length byte strings.
func XorBytes(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: xor lengths %d and %d", ErrParameterMismatch, len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}
