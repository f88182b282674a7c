// Package base defines the constraint system of the Base VLDP protocol: a
// single committed client randomness, XOR combination with the expanded
// server seed, and the LDP relation over the result.
package base

import (
	"math/big"

	"gnark-vldp/circuits/vldp"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark/frontend"
	stdeddsa "github.com/consensys/gnark/std/signature/eddsa"
)

// Circuit proves one Base phase-2 statement. The server signature public key
// and the mechanism constants are baked in at setup; everything the verifier
// reconstructs from the phase-2 message is public.
type Circuit struct {
	// public inputs
	LDPValue   frontend.Variable   `gnark:",public"`
	ClientPk   stdeddsa.PublicKey  `gnark:",public"`
	Commitment frontend.Variable   `gnark:",public"`
	ServerSeed frontend.Variable   `gnark:",public"`
	ServerSig  stdeddsa.Signature  `gnark:",public"`
	Time       frontend.Variable   `gnark:",public"`
	ServerRand []frontend.Variable `gnark:",public"`

	// private witnesses
	Input      frontend.Variable
	ClientRand []frontend.Variable
	Opening    frontend.Variable
	ClientSig  stdeddsa.Signature

	params     utils.Params
	serverPubX *big.Int
	serverPubY *big.Int
}

// NewCircuit shapes a circuit (or witness skeleton) for the given parameter
// bundle and server signature key.
func NewCircuit(p utils.Params, serverPk *eddsa.PublicKey) *Circuit {
	return &Circuit{
		ServerRand: make([]frontend.Variable, p.RandomnessBytes),
		ClientRand: make([]frontend.Variable, p.RandomnessBytes),
		params:     p,
		serverPubX: serverPk.A.X.BigInt(new(big.Int)),
		serverPubY: serverPk.A.Y.BigInt(new(big.Int)),
	}
}

func (c *Circuit) Define(api frontend.API) error {
	p := c.params

	// width checks on the signed witnesses
	api.ToBinary(c.Input, 8*p.InputBytes)
	api.ToBinary(c.Time, 8*p.TimeBytes)

	// commitment opening
	com, err := vldp.Commit(api, c.ClientRand, c.Opening)
	if err != nil {
		return err
	}
	api.AssertIsEqual(com, c.Commitment)

	// server signature over the phase-1 transcript
	seedMsg, err := vldp.SeedMessage(api, c.Commitment, c.ClientPk, c.Time, c.ServerSeed)
	if err != nil {
		return err
	}
	serverPk := stdeddsa.PublicKey{}
	serverPk.A.X = c.serverPubX
	serverPk.A.Y = c.serverPubY
	if err := vldp.VerifySignature(api, c.ServerSig, seedMsg, serverPk); err != nil {
		return err
	}

	// client signature over the true input
	inputMsg, err := vldp.InputMessage(api, c.Input, c.Time)
	if err != nil {
		return err
	}
	if err := vldp.VerifySignature(api, c.ClientSig, inputMsg, c.ClientPk); err != nil {
		return err
	}

	// combined randomness and the LDP relation
	r := vldp.XorBytes(api, c.ClientRand, c.ServerRand)
	y, err := vldp.ApplyLDP(api, p, c.Input, r)
	if err != nil {
		return err
	}
	api.AssertIsEqual(y, c.LDPValue)
	return nil
}
