// Package shuffle defines the constraint system of the Shuffle VLDP
// protocol. The client commits to a single seed and the combined randomness
// is derived entirely in-circuit from MiMC(seed, serverSeed, chunk), so the
// phase-2 record stays meaningful after an anonymizing reorder.
package shuffle

import (
	"math/big"

	"gnark-vldp/circuits/vldp"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark/frontend"
	stdeddsa "github.com/consensys/gnark/std/signature/eddsa"
)

type Circuit struct {
	// public inputs
	LDPValue   frontend.Variable  `gnark:",public"`
	ClientPk   stdeddsa.PublicKey `gnark:",public"`
	Commitment frontend.Variable  `gnark:",public"`
	ServerSeed frontend.Variable  `gnark:",public"`
	ServerSig  stdeddsa.Signature `gnark:",public"`
	Time       frontend.Variable  `gnark:",public"`

	// private witnesses
	Input      frontend.Variable
	ClientSeed frontend.Variable
	Opening    frontend.Variable
	ClientSig  stdeddsa.Signature

	params     utils.Params
	serverPubX *big.Int
	serverPubY *big.Int
}

func NewCircuit(p utils.Params, serverPk *eddsa.PublicKey) *Circuit {
	return &Circuit{
		params:     p,
		serverPubX: serverPk.A.X.BigInt(new(big.Int)),
		serverPubY: serverPk.A.Y.BigInt(new(big.Int)),
	}
}

func (c *Circuit) Define(api frontend.API) error {
	p := c.params

	api.ToBinary(c.Input, 8*p.InputBytes)
	api.ToBinary(c.Time, 8*p.TimeBytes)

	// seed commitment opening
	com, err := vldp.CommitElement(api, c.ClientSeed, c.Opening)
	if err != nil {
		return err
	}
	api.AssertIsEqual(com, c.Commitment)

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

	inputMsg, err := vldp.InputMessage(api, c.Input, c.Time)
	if err != nil {
		return err
	}
	if err := vldp.VerifySignature(api, c.ClientSig, inputMsg, c.ClientPk); err != nil {
		return err
	}

	// in-circuit PRF: the verifier never learns the seed, only that the
	// randomness was derived from it
	r, err := vldp.ShuffleRandomness(api, c.ClientSeed, c.ServerSeed, p.RandomnessBytes)
	if err != nil {
		return err
	}
	y, err := vldp.ApplyLDP(api, p, c.Input, r)
	if err != nil {
		return err
	}
	api.AssertIsEqual(y, c.LDPValue)
	return nil
}
