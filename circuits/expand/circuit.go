// Package expand defines the constraint system of the Expand VLDP protocol.
// It is the Base relation with the commitment replaced by a leaf of a
// pre-committed batch tree: the circuit additionally proves that the opened
// commitment sits at the public leaf index under the public root.
package expand

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
	LDPValue   frontend.Variable   `gnark:",public"`
	ClientPk   stdeddsa.PublicKey  `gnark:",public"`
	Root       frontend.Variable   `gnark:",public"`
	LeafIndex  frontend.Variable   `gnark:",public"`
	ServerSeed frontend.Variable   `gnark:",public"`
	ServerSig  stdeddsa.Signature  `gnark:",public"`
	Time       frontend.Variable   `gnark:",public"`
	ServerRand []frontend.Variable `gnark:",public"`

	// private witnesses
	Input      frontend.Variable
	ClientRand []frontend.Variable
	Opening    frontend.Variable
	MerklePath []frontend.Variable
	ClientSig  stdeddsa.Signature

	params     utils.Params
	serverPubX *big.Int
	serverPubY *big.Int
}

func NewCircuit(p utils.Params, serverPk *eddsa.PublicKey) *Circuit {
	return &Circuit{
		ServerRand: make([]frontend.Variable, p.RandomnessBytes),
		ClientRand: make([]frontend.Variable, p.RandomnessBytes),
		MerklePath: make([]frontend.Variable, p.MerkleDepth),
		params:     p,
		serverPubX: serverPk.A.X.BigInt(new(big.Int)),
		serverPubY: serverPk.A.Y.BigInt(new(big.Int)),
	}
}

func (c *Circuit) Define(api frontend.API) error {
	p := c.params

	api.ToBinary(c.Input, 8*p.InputBytes)
	api.ToBinary(c.Time, 8*p.TimeBytes)

	// leaf commitment opening and batch membership at the public index
	com, err := vldp.Commit(api, c.ClientRand, c.Opening)
	if err != nil {
		return err
	}
	if err := vldp.VerifyMerklePath(api, c.Root, com, c.LeafIndex, c.MerklePath); err != nil {
		return err
	}

	// server signature binds the root, not the individual leaf
	seedMsg, err := vldp.SeedMessage(api, c.Root, c.ClientPk, c.Time, c.ServerSeed)
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

	r := vldp.XorBytes(api, c.ClientRand, c.ServerRand)
	y, err := vldp.ApplyLDP(api, p, c.Input, r)
	if err != nil {
		return err
	}
	api.AssertIsEqual(y, c.LDPValue)
	return nil
}
