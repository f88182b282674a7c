package utils

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// BytesPerElement is the number of bytes that safely fit in a BN254 scalar
// field element. Byte strings are split into limbs of this size before
// hashing or committing.
const BytesPerElement = 31

// Params fixes every size and mechanism constant of a VLDP deployment. Both
// roles must be constructed from the same bundle; the circuit shape is fully
// determined by it.
type Params struct {
	InputBytes      int      // width of the true input x
	GammaBytes      int      // width of the LDP selector slice
	TimeBytes       int      // width of the timestamp
	RandomnessBytes int      // width of the combined randomness
	MerkleDepth     int      // Expand batch tree depth, 2^depth leaves
	K               uint64   // histogram domain size, or fixed-point precision bits
	Gamma           *big.Int // truthfulness threshold in [0, 2^(8*GammaBytes))
	IsRealInput     bool
}

// Validate checks internal consistency of the bundle. The role constructors
// and setup.Circuit call this first.
func (p Params) Validate() error {
	if p.InputBytes < 1 || p.InputBytes > BytesPerElement {
		return fmt.Errorf("%w: input bytes %d outside [1,%d]", ErrParameterMismatch, p.InputBytes, BytesPerElement)
	}
	if p.GammaBytes < 1 || p.GammaBytes > 16 {
		return fmt.Errorf("%w: gamma bytes %d outside [1,16]", ErrParameterMismatch, p.GammaBytes)
	}
	if p.TimeBytes < 1 || p.TimeBytes > 16 {
		return fmt.Errorf("%w: time bytes %d outside [1,16]", ErrParameterMismatch, p.TimeBytes)
	}
	if p.RandomnessBytes < 16 || p.RandomnessBytes%8 != 0 {
		return fmt.Errorf("%w: randomness bytes %d not a multiple of 8 >= 16", ErrParameterMismatch, p.RandomnessBytes)
	}
	if p.RandomnessBytes < p.GammaBytes+p.InputBytes {
		return fmt.Errorf("%w: randomness bytes %d too small for selector and body slices (need %d)",
			ErrParameterMismatch, p.RandomnessBytes, p.GammaBytes+p.InputBytes)
	}
	if p.MerkleDepth < 0 || p.MerkleDepth > 16 {
		return fmt.Errorf("%w: merkle depth %d outside [0,16]", ErrParameterMismatch, p.MerkleDepth)
	}
	if p.K == 0 {
		return fmt.Errorf("%w: K must be positive", ErrParameterMismatch)
	}
	if p.IsRealInput {
		if p.K > 63 || int(p.K) > 8*p.InputBytes {
			return fmt.Errorf("%w: precision K=%d exceeds input width", ErrParameterMismatch, p.K)
		}
		// x*(2^K-1) must stay an exact field integer inside the circuit
		if int(p.K)+8*p.InputBytes > 252 {
			return fmt.Errorf("%w: K + input width too large for the scalar field", ErrParameterMismatch)
		}
	} else if bits.Len64(p.K) > 8*p.InputBytes {
		return fmt.Errorf("%w: domain size K=%d exceeds input width", ErrParameterMismatch, p.K)
	}
	if p.Gamma == nil || p.Gamma.Sign() < 0 || p.Gamma.BitLen() > 8*p.GammaBytes {
		return fmt.Errorf("%w: gamma outside [0, 2^%d)", ErrParameterMismatch, 8*p.GammaBytes)
	}
	return nil
}

// NumLeaves is the Expand batch size.
func (p Params) NumLeaves() int { return 1 << p.MerkleDepth }

// GammaFromFloat converts a truthfulness probability in [0,1] to the
// fixed-point threshold used by the mechanism.
func GammaFromFloat(gamma float64, gammaBytes int) *big.Int {
	if gamma < 0 {
		gamma = 0
	}
	if gamma > 1 {
		gamma = 1
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(8*gammaBytes))
	full.Sub(full, big.NewInt(1))
	f := new(big.Float).SetInt(full)
	f.Mul(f, big.NewFloat(gamma))
	out, _ := f.Int(nil)
	return out
}

// BEtoLE returns a reversed copy of b.
func BEtoLE(b []byte) []byte {
	res := make([]byte, len(b))
	for i := range b {
		res[i] = b[len(b)-1-i]
	}
	return res
}

// ElementFromLEBytes interprets data as a little-endian integer and reduces
// it into the scalar field. data must be at most BytesPerElement long for the
// value to round-trip.
func ElementFromLEBytes(data []byte) fr.Element {
	var e fr.Element
	e.SetBytes(BEtoLE(data))
	return e
}

// PackLimbs splits data into BytesPerElement-sized little-endian limbs. The
// in-circuit commitment gadget performs the identical packing over byte
// witnesses.
func PackLimbs(data []byte) []fr.Element {
	n := (len(data) + BytesPerElement - 1) / BytesPerElement
	limbs := make([]fr.Element, 0, n)
	for i := 0; i < len(data); i += BytesPerElement {
		end := i + BytesPerElement
		if end > len(data) {
			end = len(data)
		}
		limbs = append(limbs, ElementFromLEBytes(data[i:end]))
	}
	return limbs
}

// LEBytesToUint64 reads up to 8 little-endian bytes as an integer.
func LEBytesToUint64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		if i < 8 {
			v = v<<8 | uint64(b[i])
		}
	}
	return v
}

// Uint64ToLEBytes writes v into a fresh n-byte little-endian slice.
func Uint64ToLEBytes(v uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n && i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// Zeroize overwrites b in place. Roles call this on abandoned secrets.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
