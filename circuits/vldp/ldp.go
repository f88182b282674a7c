package vldp

import (
	"math/big"
	"math/bits"

	"gnark-vldp/utils"

	"github.com/consensys/gnark/frontend"
)

// ApplyLDP enforces the LDP relation over the combined randomness bytes and
// returns the output variable. x must already be range-checked to
// 8*InputBytes bits and every byte of r to 8 bits. The relation is the
// circuit face of utils.ApplyLDP.
func ApplyLDP(api frontend.API, p utils.Params, x frontend.Variable, r []frontend.Variable) (frontend.Variable, error) {
	selector := PackLE(api, r[:p.GammaBytes])
	body := PackLE(api, r[p.GammaBytes : p.GammaBytes+p.InputBytes])

	// truthful iff selector < gamma
	truthful := IsLess(api, selector, new(big.Int).Set(p.Gamma), 8*p.GammaBytes)

	var truthfulValue, randomValue frontend.Variable
	if !p.IsRealInput {
		truthfulValue = x
		rem, err := modConst(api, body, p.K, 8*p.InputBytes)
		if err != nil {
			return nil, err
		}
		randomValue = api.Add(rem, 1)
	} else {
		tv, err := fixedPointEncode(api, x, p)
		if err != nil {
			return nil, err
		}
		truthfulValue = tv
		bodyBits := api.ToBinary(body, 8*p.InputBytes)
		randomValue = api.FromBinary(bodyBits[:p.K]...)
	}

	return api.Select(truthful, truthfulValue, randomValue), nil
}

// modConst reduces a (already bounded to `width` bits) modulo the constant
// k, constraining the hint outputs: a = q*k + rem, rem < k, q < 2^width.
func modConst(api frontend.API, a frontend.Variable, k uint64, width int) (frontend.Variable, error) {
	out, err := api.Compiler().NewHint(DivModHint, 2, a, k)
	if err != nil {
		return nil, err
	}
	q, rem := out[0], out[1]
	api.AssertIsEqual(api.Add(api.Mul(q, k), rem), a)
	// q <= a/k, so q*k + rem stays far below the modulus
	kWidth := bits.Len64(k)
	qWidth := width - kWidth + 1
	if qWidth < 1 {
		qWidth = 1
	}
	api.ToBinary(q, qWidth)
	api.ToBinary(rem, kWidth)
	api.AssertIsEqual(IsLess(api, rem, k, kWidth), 1)
	return rem, nil
}

// fixedPointEncode constrains q = floor(x*(2^K-1)/(2^(8*InputBytes)-1)):
// x*(2^K-1) = q*m + rem with rem < m and q < 2^K.
func fixedPointEncode(api frontend.API, x frontend.Variable, p utils.Params) (frontend.Variable, error) {
	n := new(big.Int).Lsh(big.NewInt(1), uint(p.K))
	n.Sub(n, big.NewInt(1))
	m := new(big.Int).Lsh(big.NewInt(1), uint(8*p.InputBytes))
	m.Sub(m, big.NewInt(1))

	prod := api.Mul(x, n)
	out, err := api.Compiler().NewHint(DivModHint, 2, prod, m)
	if err != nil {
		return nil, err
	}
	q, rem := out[0], out[1]
	api.AssertIsEqual(api.Add(api.Mul(q, m), rem), prod)
	api.ToBinary(q, int(p.K))
	api.ToBinary(rem, 8*p.InputBytes)
	api.AssertIsEqual(IsLess(api, rem, m, 8*p.InputBytes), 1)
	return q, nil
}
