package utils

import (
	"fmt"
	"math/big"
)

// LDPResult carries the randomized output together with the mechanism bit,
// which tests and callers may inspect. The bit is 0 on the truthful branch
// and 1 on the randomized branch.
type LDPResult struct {
	Value uint64
	Bit   uint8
}

// ApplyLDP runs the native face of the mechanism on the combined randomness.
// Slice layout of r: [selector GammaBytes | body InputBytes | unused tail].
//
//   - the response is truthful iff selector < Gamma, so Gamma = 0 forces full
//     randomization and the all-ones Gamma is truthful on every selector but
//     the all-ones one;
//   - histogram randomized outputs are 1 + (body mod K);
//   - real-valued truthful outputs are the K-bit fixed point encoding
//     floor(x*(2^K-1)/(2^(8*InputBytes)-1)), randomized outputs the low K
//     bits of body.
//
// The circuit gadget enforces the identical relation bit for bit.
func ApplyLDP(p Params, x *big.Int, r []byte) (LDPResult, error) {
	if err := p.Validate(); err != nil {
		return LDPResult{}, err
	}
	if len(r) != p.RandomnessBytes {
		return LDPResult{}, fmt.Errorf("%w: randomness length %d, want %d", ErrParameterMismatch, len(r), p.RandomnessBytes)
	}
	if x.Sign() < 0 || x.BitLen() > 8*p.InputBytes {
		return LDPResult{}, fmt.Errorf("%w: input outside %d bytes", ErrParameterMismatch, p.InputBytes)
	}

	selector := new(big.Int).SetBytes(BEtoLE(r[:p.GammaBytes]))
	body := new(big.Int).SetBytes(BEtoLE(r[p.GammaBytes : p.GammaBytes+p.InputBytes]))

	if selector.Cmp(p.Gamma) < 0 {
		// truthful branch
		if !p.IsRealInput {
			return LDPResult{Value: x.Uint64(), Bit: 0}, nil
		}
		return LDPResult{Value: fixedPointEncode(x, p.K, p.InputBytes), Bit: 0}, nil
	}

	if !p.IsRealInput {
		rem := new(big.Int).Mod(body, new(big.Int).SetUint64(p.K))
		return LDPResult{Value: 1 + rem.Uint64(), Bit: 1}, nil
	}
	mask := new(big.Int).Lsh(big.NewInt(1), uint(p.K))
	mask.Sub(mask, big.NewInt(1))
	return LDPResult{Value: new(big.Int).And(body, mask).Uint64(), Bit: 1}, nil
}

// fixedPointEncode maps an InputBytes-wide integer onto [0, 2^K-1].
func fixedPointEncode(x *big.Int, k uint64, inputBytes int) uint64 {
	n := new(big.Int).Lsh(big.NewInt(1), uint(k))
	n.Sub(n, big.NewInt(1))
	m := new(big.Int).Lsh(big.NewInt(1), uint(8*inputBytes))
	m.Sub(m, big.NewInt(1))
	q := new(big.Int).Mul(x, n)
	q.Div(q, m)
	return q.Uint64()
}
