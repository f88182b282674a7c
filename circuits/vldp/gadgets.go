// Package vldp holds the in-circuit faces of the VLDP primitives: byte
// packing, randomness combination, the LDP relation, commitments, transcript
// hashes and Merkle paths. Every gadget mirrors a native function in
// gnark-vldp/utils and must stay bit-compatible with it.
package vldp

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/constraint/solver"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// BytesPerElement mirrors utils.BytesPerElement.
const BytesPerElement = 31

func init() {
	solver.RegisterHint(DivModHint, FieldBytesHint)
}

// DivModHint computes the Euclidean quotient and remainder of its two
// inputs. The callers re-constrain q*b + r == a and range-check both
// outputs.
func DivModHint(_ *big.Int, inputs, outputs []*big.Int) error {
	outputs[0].DivMod(inputs[0], inputs[1], outputs[1])
	return nil
}

// FieldBytesHint decomposes its input into 32 little-endian bytes. The
// caller constrains recomposition and canonicity.
func FieldBytesHint(_ *big.Int, inputs, outputs []*big.Int) error {
	be := inputs[0].Bytes()
	for i := range outputs {
		if i < len(be) {
			outputs[i].SetUint64(uint64(be[len(be)-1-i]))
		} else {
			outputs[i].SetUint64(0)
		}
	}
	return nil
}

// IsLess returns a boolean variable for a < b. Both operands must already be
// constrained below 2^width.
func IsLess(api frontend.API, a, b frontend.Variable, width int) frontend.Variable {
	shift := new(big.Int).Lsh(big.NewInt(1), uint(width))
	d := api.Add(api.Sub(a, b), shift)
	bits := api.ToBinary(d, width+1)
	return api.Sub(1, bits[width])
}

// PackLE folds little-endian byte variables into one field element,
// Σ b_i·256^i. At most BytesPerElement bytes fit without aliasing.
func PackLE(api frontend.API, bytes []frontend.Variable) frontend.Variable {
	acc := frontend.Variable(0)
	coeff := big.NewInt(1)
	for _, b := range bytes {
		acc = api.Add(acc, api.Mul(b, new(big.Int).Set(coeff)))
		coeff.Lsh(coeff, 8)
	}
	return acc
}

// PackLimbs mirrors utils.PackLimbs: BytesPerElement-sized little-endian
// limbs over byte variables.
func PackLimbs(api frontend.API, bytes []frontend.Variable) []frontend.Variable {
	var limbs []frontend.Variable
	for i := 0; i < len(bytes); i += BytesPerElement {
		end := i + BytesPerElement
		if end > len(bytes) {
			end = len(bytes)
		}
		limbs = append(limbs, PackLE(api, bytes[i:end]))
	}
	return limbs
}

// XorBytes combines two byte-variable strings bitwise. The decomposition
// also range-checks every input byte to 8 bits.
func XorBytes(api frontend.API, a, b []frontend.Variable) []frontend.Variable {
	out := make([]frontend.Variable, len(a))
	for i := range a {
		abits := api.ToBinary(a[i], 8)
		bbits := api.ToBinary(b[i], 8)
		obits := make([]frontend.Variable, 8)
		for j := 0; j < 8; j++ {
			obits[j] = api.Xor(abits[j], bbits[j])
		}
		out[i] = api.FromBinary(obits...)
	}
	return out
}

// FieldToBytes decomposes v into its 32 canonical little-endian bytes.
// Recomposition is constrained as an exact field equality and the byte
// string is compared against the modulus, so a prover cannot substitute the
// v+r alias. The first BytesPerElement bytes are safe PRF output.
func FieldToBytes(api frontend.API, v frontend.Variable) ([]frontend.Variable, error) {
	bytes, err := api.Compiler().NewHint(FieldBytesHint, 32, v)
	if err != nil {
		return nil, err
	}
	for _, b := range bytes {
		api.ToBinary(b, 8)
	}
	api.AssertIsEqual(PackLE(api, bytes), v)

	// canonicity: (hi,lo) < (rHi,rLo) lexicographically on 128-bit halves
	lo := PackLE(api, bytes[:16])
	hi := PackLE(api, bytes[16:])
	mod := fr.Modulus()
	rLo := new(big.Int).And(mod, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))
	rHi := new(big.Int).Rsh(mod, 128)
	ltHi := IsLess(api, hi, rHi, 128)
	eqHi := api.IsZero(api.Sub(hi, rHi))
	ltLo := IsLess(api, lo, rLo, 128)
	api.AssertIsEqual(api.Or(ltHi, api.And(eqHi, ltLo)), 1)
	return bytes, nil
}

// ShuffleRandomness mirrors utils.ShuffleRandomness: n bytes drawn from
// MiMC(clientSeed, serverSeed, chunk) evaluations.
func ShuffleRandomness(api frontend.API, clientSeed, serverSeed frontend.Variable, n int) ([]frontend.Variable, error) {
	out := make([]frontend.Variable, 0, n)
	for chunk := 0; len(out) < n; chunk++ {
		h, err := mimc.NewMiMC(api)
		if err != nil {
			return nil, err
		}
		h.Write(clientSeed, serverSeed, chunk)
		bytes, err := FieldToBytes(api, h.Sum())
		if err != nil {
			return nil, err
		}
		take := BytesPerElement
		if len(out)+take > n {
			take = n - len(out)
		}
		out = append(out, bytes[:take]...)
	}
	return out, nil
}
