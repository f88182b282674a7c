package base

import (
	"crypto/rand"
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

// honestWitness runs the native protocol steps and fills a full assignment.
func honestWitness(t *testing.T, p utils.Params, x *big.Int) (*Circuit, *Circuit) {
	serverKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)
	clientKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)

	clientRand := make([]byte, p.RandomnessBytes)
	_, err = rand.Read(clientRand)
	require.NoError(t, err)
	rho, err := utils.SampleOpening()
	require.NoError(t, err)
	commitment := utils.Commit(clientRand, rho)

	timeBytes := []byte{42}
	seed, err := utils.SampleSeed()
	require.NoError(t, err)
	serverSig, err := utils.SignElement(serverKey, utils.SeedMessage(commitment, &clientKey.PublicKey, timeBytes, seed))
	require.NoError(t, err)

	serverRand, err := utils.ExpandServerSeed(seed, p.RandomnessBytes)
	require.NoError(t, err)
	r, err := utils.XorBytes(clientRand, serverRand)
	require.NoError(t, err)
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
	for i, b := range serverRand {
		w.ServerRand[i] = b
	}
	w.Input = new(big.Int).Set(x)
	for i, b := range clientRand {
		w.ClientRand[i] = b
	}
	w.Opening = rho.BigInt(new(big.Int))
	w.ClientSig.Assign(tedwards.BN254, inputSig)

	return NewCircuit(p, &serverKey.PublicKey), w
}

func TestBaseCircuitHonestRun(t *testing.T) {
	assert := test.NewAssert(t)
	p := testParams()
	circuit, witness := honestWitness(t, p, big.NewInt(7))
	assert.NoError(test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}

func TestBaseCircuitRejectsWrongValue(t *testing.T) {
	p := testParams()
	circuit, witness := honestWitness(t, p, big.NewInt(7))
	witness.LDPValue = 99
	require.Error(t, test.IsSolved(circuit, witness, ecc.BN254.ScalarField()))
}

func TestBaseCircuitRejectsForeignServerKey(t *testing.T) {
	p := testParams()
	// constants from a different server key make the honest signature fail
	otherKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)
	_, witness := honestWitness(t, p, big.NewInt(3))
	require.Error(t, test.IsSolved(NewCircuit(p, &otherKey.PublicKey), witness, ecc.BN254.ScalarField()))
}
