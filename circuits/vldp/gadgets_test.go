package vldp

import (
	"crypto/rand"
	"math/big"
	"testing"

	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
)

type isLessCircuit struct {
	A        frontend.Variable `gnark:",public"`
	B        frontend.Variable `gnark:",public"`
	Expected frontend.Variable `gnark:",public"`
	width    int
}

func (c *isLessCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(IsLess(api, c.A, c.B, c.width), c.Expected)
	return nil
}

func TestIsLess(t *testing.T) {
	assert := test.NewAssert(t)
	cases := []struct {
		a, b     uint64
		expected int
	}{
		{0, 1, 1}, {1, 0, 0}, {5, 5, 0}, {123, 124, 1}, {1 << 40, 1<<40 + 1, 1},
	}
	for _, tc := range cases {
		circuit := &isLessCircuit{width: 64}
		witness := &isLessCircuit{A: tc.a, B: tc.b, Expected: tc.expected, width: 64}
		assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
	}
}

type fieldBytesCircuit struct {
	V        frontend.Variable
	Expected []frontend.Variable `gnark:",public"`
}

func (c *fieldBytesCircuit) Define(api frontend.API) error {
	bytes, err := FieldToBytes(api, c.V)
	if err != nil {
		return err
	}
	for i := range bytes {
		api.AssertIsEqual(bytes[i], c.Expected[i])
	}
	return nil
}

func TestFieldToBytesMatchesNative(t *testing.T) {
	assert := test.NewAssert(t)
	for i := 0; i < 5; i++ {
		var v fr.Element
		_, err := v.SetRandom()
		require.NoError(t, err)

		le := utils.BEtoLE(v.Marshal())
		witness := &fieldBytesCircuit{V: v.BigInt(new(big.Int)), Expected: make([]frontend.Variable, 32)}
		for j, b := range le {
			witness.Expected[j] = b
		}
		circuit := &fieldBytesCircuit{Expected: make([]frontend.Variable, 32)}
		assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
	}
}

type shuffleRandCircuit struct {
	ClientSeed frontend.Variable
	ServerSeed frontend.Variable `gnark:",public"`
	Expected   []frontend.Variable
	n          int
}

func (c *shuffleRandCircuit) Define(api frontend.API) error {
	r, err := ShuffleRandomness(api, c.ClientSeed, c.ServerSeed, c.n)
	if err != nil {
		return err
	}
	for i := range r {
		api.AssertIsEqual(r[i], c.Expected[i])
	}
	return nil
}

func TestShuffleRandomnessMatchesNative(t *testing.T) {
	assert := test.NewAssert(t)
	const n = 48
	var cs, ss fr.Element
	_, err := cs.SetRandom()
	require.NoError(t, err)
	_, err = ss.SetRandom()
	require.NoError(t, err)

	native := utils.ShuffleRandomness(cs, ss, n)
	witness := &shuffleRandCircuit{
		ClientSeed: cs.BigInt(new(big.Int)),
		ServerSeed: ss.BigInt(new(big.Int)),
		Expected:   make([]frontend.Variable, n),
		n:          n,
	}
	for i, b := range native {
		witness.Expected[i] = b
	}
	circuit := &shuffleRandCircuit{Expected: make([]frontend.Variable, n), n: n}
	assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}

type ldpCircuit struct {
	X frontend.Variable
	R []frontend.Variable
	Y frontend.Variable `gnark:",public"`
	p utils.Params
}

func (c *ldpCircuit) Define(api frontend.API) error {
	api.ToBinary(c.X, 8*c.p.InputBytes)
	// bound the randomness bytes the way the protocol circuits do
	zeros := make([]frontend.Variable, len(c.R))
	for i := range zeros {
		zeros[i] = 0
	}
	r := XorBytes(api, c.R, zeros)
	y, err := ApplyLDP(api, c.p, c.X, r)
	if err != nil {
		return err
	}
	api.AssertIsEqual(y, c.Y)
	return nil
}

func newLDPCircuit(p utils.Params) *ldpCircuit {
	return &ldpCircuit{R: make([]frontend.Variable, p.RandomnessBytes), p: p}
}

func ldpWitness(t *testing.T, p utils.Params, x *big.Int, r []byte) *ldpCircuit {
	res, err := utils.ApplyLDP(p, x, r)
	require.NoError(t, err)
	w := newLDPCircuit(p)
	w.X = x
	w.Y = res.Value
	for i, b := range r {
		w.R[i] = b
	}
	return w
}

func TestLDPGadgetMatchesNativeHistogram(t *testing.T) {
	assert := test.NewAssert(t)
	p := utils.Params{
		InputBytes:      8,
		GammaBytes:      8,
		TimeBytes:       1,
		RandomnessBytes: 32,
		K:               16,
		Gamma:           utils.GammaFromFloat(0.5, 8),
	}
	require.NoError(t, p.Validate())

	for i := 0; i < 8; i++ {
		r := make([]byte, p.RandomnessBytes)
		_, err := rand.Read(r)
		require.NoError(t, err)
		witness := ldpWitness(t, p, big.NewInt(int64(1+i%16)), r)
		assert.NoError(test.IsSolved(newLDPCircuit(p), witness, ecc.BN254.ScalarField()))
	}
}

func TestLDPGadgetMatchesNativeReal(t *testing.T) {
	assert := test.NewAssert(t)
	p := utils.Params{
		InputBytes:      2,
		GammaBytes:      8,
		TimeBytes:       1,
		RandomnessBytes: 16,
		K:               10,
		IsRealInput:     true,
		Gamma:           utils.GammaFromFloat(0.5, 8),
	}
	require.NoError(t, p.Validate())

	for i := 0; i < 8; i++ {
		r := make([]byte, p.RandomnessBytes)
		_, err := rand.Read(r)
		require.NoError(t, err)
		witness := ldpWitness(t, p, big.NewInt(int64(i*4000)), r)
		assert.NoError(test.IsSolved(newLDPCircuit(p), witness, ecc.BN254.ScalarField()))
	}
}

func TestLDPGadgetRejectsWrongOutput(t *testing.T) {
	p := utils.Params{
		InputBytes:      8,
		GammaBytes:      8,
		TimeBytes:       1,
		RandomnessBytes: 32,
		K:               16,
		Gamma:           utils.GammaFromFloat(0.5, 8),
	}
	r := make([]byte, p.RandomnessBytes)
	_, err := rand.Read(r)
	require.NoError(t, err)

	witness := ldpWitness(t, p, big.NewInt(7), r)
	witness.Y = 99 // outside [1,K] and never equal to a valid output
	require.Error(t, test.IsSolved(newLDPCircuit(p), witness, ecc.BN254.ScalarField()))
}

type merkleCircuit struct {
	Root  frontend.Variable `gnark:",public"`
	Index frontend.Variable `gnark:",public"`
	Leaf  frontend.Variable
	Path  []frontend.Variable
}

func (c *merkleCircuit) Define(api frontend.API) error {
	return VerifyMerklePath(api, c.Root, c.Leaf, c.Index, c.Path)
}

func TestMerkleGadgetMatchesNativeTree(t *testing.T) {
	assert := test.NewAssert(t)
	depth := 4
	leaves := make([]fr.Element, 1<<depth)
	for i := range leaves {
		leaves[i].SetUint64(uint64(i) + 7)
	}
	tree, err := utils.NewCommitmentTree(leaves, depth)
	require.NoError(t, err)
	root := tree.Root()

	for _, idx := range []int{0, 3, 15} {
		path, err := tree.Path(idx)
		require.NoError(t, err)

		witness := &merkleCircuit{
			Root:  root.BigInt(new(big.Int)),
			Index: idx,
			Leaf:  leaves[idx].BigInt(new(big.Int)),
			Path:  make([]frontend.Variable, depth),
		}
		for i := range path {
			witness.Path[i] = path[i].BigInt(new(big.Int))
		}
		circuit := &merkleCircuit{Path: make([]frontend.Variable, depth)}
		assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))

		// opening the same path under a different index must fail
		witness.Index = (idx + 1) % (1 << depth)
		require.Error(t, test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
	}
}
