package expand

import (
	"crypto/rand"
	"math/big"
	"testing"

	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
)

func testParams(depth int) utils.Params {
	return utils.Params{
		InputBytes:      8,
		GammaBytes:      8,
		TimeBytes:       1,
		RandomnessBytes: 32,
		MerkleDepth:     depth,
		K:               16,
		Gamma:           utils.GammaFromFloat(0.5, 8),
	}
}

func honestWitness(t *testing.T, p utils.Params, x *big.Int, index int) (*Circuit, *Circuit) {
	serverKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)
	clientKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)

	n := p.NumLeaves()
	rands := make([][]byte, n)
	openings := make([]fr.Element, n)
	leaves := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		rands[i] = make([]byte, p.RandomnessBytes)
		_, err = rand.Read(rands[i])
		require.NoError(t, err)
		openings[i], err = utils.SampleOpening()
		require.NoError(t, err)
		leaves[i] = utils.Commit(rands[i], openings[i])
	}
	tree, err := utils.NewCommitmentTree(leaves, p.MerkleDepth)
	require.NoError(t, err)
	root := tree.Root()
	path, err := tree.Path(index)
	require.NoError(t, err)

	timeBytes := []byte{42}
	seed, err := utils.SampleSeed()
	require.NoError(t, err)
	serverSig, err := utils.SignElement(serverKey, utils.SeedMessage(root, &clientKey.PublicKey, timeBytes, seed))
	require.NoError(t, err)

	serverRand, err := utils.ExpandServerSeed(seed, p.RandomnessBytes)
	require.NoError(t, err)
	r, err := utils.XorBytes(rands[index], serverRand)
	require.NoError(t, err)
	res, err := utils.ApplyLDP(p, x, r)
	require.NoError(t, err)

	inputBytes := utils.BEtoLE(x.FillBytes(make([]byte, p.InputBytes)))
	inputSig, err := utils.SignElement(clientKey, utils.InputMessage(inputBytes, timeBytes))
	require.NoError(t, err)

	w := NewCircuit(p, &serverKey.PublicKey)
	w.LDPValue = res.Value
	w.ClientPk.Assign(tedwards.BN254, clientKey.PublicKey.Bytes())
	w.Root = root.BigInt(new(big.Int))
	w.LeafIndex = index
	w.ServerSeed = seed.BigInt(new(big.Int))
	w.ServerSig.Assign(tedwards.BN254, serverSig)
	timeElem := utils.ElementFromLEBytes(timeBytes)
	w.Time = timeElem.BigInt(new(big.Int))
	for i, b := range serverRand {
		w.ServerRand[i] = b
	}
	w.Input = new(big.Int).Set(x)
	for i, b := range rands[index] {
		w.ClientRand[i] = b
	}
	w.Opening = openings[index].BigInt(new(big.Int))
	for i := range path {
		w.MerklePath[i] = path[i].BigInt(new(big.Int))
	}
	w.ClientSig.Assign(tedwards.BN254, inputSig)

	return NewCircuit(p, &serverKey.PublicKey), w
}

func TestExpandCircuitHonestRun(t *testing.T) {
	assert := test.NewAssert(t)
	p := testParams(4)
	for _, index := range []int{0, 3, 15} {
		circuit, witness := honestWitness(t, p, big.NewInt(7), index)
		assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
	}
}

func TestExpandCircuitDepthZeroDegeneratesToBase(t *testing.T) {
	assert := test.NewAssert(t)
	p := testParams(0)
	circuit, witness := honestWitness(t, p, big.NewInt(5), 0)
	assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}

func TestExpandCircuitRejectsWrongIndex(t *testing.T) {
	p := testParams(4)
	circuit, witness := honestWitness(t, p, big.NewInt(7), 3)
	witness.LeafIndex = 4
	require.Error(t, test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}
