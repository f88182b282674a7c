package shuffle

import (
	"math/big"
	"testing"

	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
)

func testParams() utils.Params {
	return utils.Params{
		InputBytes:      8,
		GammaBytes:      8,
		TimeBytes:       1,
		RandomnessBytes: 32,
		K:               16,
		Gamma:           utils.GammaFromFloat(0.5, 8),
	}
}

func honestWitness(t *testing.T, p utils.Params, x *big.Int) (*Circuit, *Circuit) {
	serverKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)
	clientKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)

	clientSeed, err := utils.SampleSeed()
	require.NoError(t, err)
	rho, err := utils.SampleOpening()
	require.NoError(t, err)
	commitment := utils.CommitElement(clientSeed, rho)

	timeBytes := []byte{42}
	seed, err := utils.SampleSeed()
	require.NoError(t, err)
	serverSig, err := utils.SignElement(serverKey, utils.SeedMessage(commitment, &clientKey.PublicKey, timeBytes, seed))
	require.NoError(t, err)

	r := utils.ShuffleRandomness(clientSeed, seed, p.RandomnessBytes)
	res, err := utils.ApplyLDP(p, x, r)
	require.NoError(t, err)

	inputBytes := utils.BEtoLE(x.FillBytes(make([]byte, p.InputBytes)))
	inputSig, err := utils.SignElement(clientKey, utils.InputMessage(inputBytes, timeBytes))
	require.NoError(t, err)

	w := NewCircuit(p, &serverKey.PublicKey)
	w.LDPValue = res.Value
	w.ClientPk.Assign(tedwards.BN254, clientKey.PublicKey.Bytes())
	w.Commitment = commitment.BigInt(new(big.Int))
	w.ServerSeed = seed.BigInt(new(big.Int))
	w.ServerSig.Assign(tedwards.BN254, serverSig)
	timeElem := utils.ElementFromLEBytes(timeBytes)
	w.Time = timeElem.BigInt(new(big.Int))
	w.Input = new(big.Int).Set(x)
	w.ClientSeed = clientSeed.BigInt(new(big.Int))
	w.Opening = rho.BigInt(new(big.Int))
	w.ClientSig.Assign(tedwards.BN254, inputSig)

	return NewCircuit(p, &serverKey.PublicKey), w
}

func TestShuffleCircuitHonestRun(t *testing.T) {
	assert := test.NewAssert(t)
	p := testParams()
	circuit, witness := honestWitness(t, p, big.NewInt(7))
	assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}

func TestShuffleCircuitRejectsForeignSeed(t *testing.T) {
	p := testParams()
	circuit, witness := honestWitness(t, p, big.NewInt(7))
	// a seed that does not open the commitment must not satisfy the relation
	other, err := utils.SampleSeed()
	require.NoError(t, err)
	witness.ClientSeed = other.BigInt(new(big.Int))
	require.Error(t, test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}
