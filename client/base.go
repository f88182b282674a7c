// Package client implements the client role of the three VLDP protocols:
// phase-1 commitment, seed absorption, and phase-2 randomization with proof
// generation.
package client

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"

	basecircuit "gnark-vldp/circuits/base"
	"gnark-vldp/messages"
	"gnark-vldp/setup"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/rs/zerolog"
)

// Base runs one Base protocol session.
type Base struct {
	params   utils.Params
	art      *setup.Artifacts
	serverPk *eddsa.PublicKey
	sigKey   *eddsa.PrivateKey
	log      zerolog.Logger

	state      State
	time       []byte
	clientRand []byte
	opening    fr.Element
	commitment fr.Element
	serverSeed fr.Element
	serverSig  []byte
}

// NewBase builds a client from the setup artifacts, the server's signature
// public key and the client's own signature key.
func NewBase(art *setup.Artifacts, serverPk *eddsa.PublicKey, sigKey *eddsa.PrivateKey, log zerolog.Logger) (*Base, error) {
	if art.Protocol != utils.ProtocolBase {
		return nil, fmt.Errorf("%w: artifacts are for %s", utils.ErrParameterMismatch, art.Protocol)
	}
	if err := art.Params.Validate(); err != nil {
		return nil, err
	}
	return &Base{
		params:   art.Params,
		art:      art,
		serverPk: serverPk,
		sigKey:   sigKey,
		log:      log.With().Str("role", "client").Str("protocol", "base").Logger(),
	}, nil
}

// State exposes the session state, mainly for tests and callers that drive
// several sessions.
func (c *Base) State() State { return c.state }

// CommitRequest samples the client randomness, commits to it and returns the
// phase-1 message.
func (c *Base) CommitRequest(timeBytes []byte) (*messages.Phase1Request, error) {
	if c.state != Fresh {
		return nil, fmt.Errorf("%w: commit in state %s", utils.ErrInvalidState, c.state)
	}
	if len(timeBytes) != c.params.TimeBytes {
		return nil, fmt.Errorf("%w: time width %d", utils.ErrParameterMismatch, len(timeBytes))
	}

	seed := make([]byte, utils.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%w: sampling seed: %v", utils.ErrPrimitiveFailure, err)
	}
	clientRand, err := utils.ExpandSeed(seed, c.params.RandomnessBytes)
	utils.Zeroize(seed)
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	opening, err := utils.SampleOpening()
	if err != nil {
		c.state = Aborted
		return nil, err
	}

	c.clientRand = clientRand
	c.opening = opening
	c.commitment = utils.Commit(clientRand, opening)
	c.time = append([]byte(nil), timeBytes...)
	c.state = AwaitingSeed
	c.log.Debug().Msg("phase-1 commitment issued")

	return &messages.Phase1Request{
		CommitmentOrRoot: c.commitment.Marshal(),
		ClientSigPk:      c.sigKey.PublicKey.Bytes(),
		Time:             c.time,
	}, nil
}

// AbsorbSeed verifies the server's signature over the phase-1 transcript and
// stores the seed. An invalid signature aborts the session before any proof
// work is done.
func (c *Base) AbsorbSeed(resp *messages.Phase1Response) error {
	if c.state != AwaitingSeed {
		return fmt.Errorf("%w: absorb in state %s", utils.ErrInvalidState, c.state)
	}
	var seed fr.Element
	seed.SetBytes(resp.ServerSeed)

	msg := utils.SeedMessage(c.commitment, &c.sigKey.PublicKey, c.time, seed)
	if err := utils.VerifyElement(c.serverPk, msg, resp.ServerSig); err != nil {
		c.Abandon()
		return err
	}
	c.serverSeed = seed
	c.serverSig = append([]byte(nil), resp.ServerSig...)
	c.state = Ready
	return nil
}

// Randomize applies the mechanism to the true input and produces the phase-2
// contribution with its proof.
func (c *Base) Randomize(x *big.Int) (*messages.Phase2Message, error) {
	if c.state != Ready {
		return nil, fmt.Errorf("%w: randomize in state %s", utils.ErrInvalidState, c.state)
	}

	serverRand, err := utils.ExpandServerSeed(c.serverSeed, c.params.RandomnessBytes)
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	r, err := utils.XorBytes(c.clientRand, serverRand)
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	res, err := utils.ApplyLDP(c.params, x, r)
	if err != nil {
		return nil, err
	}

	inputBytes := bigToLE(x, c.params.InputBytes)
	inputSig, err := utils.SignElement(c.sigKey, utils.InputMessage(inputBytes, c.time))
	if err != nil {
		c.state = Aborted
		return nil, err
	}

	assignment := basecircuit.NewCircuit(c.params, c.serverPk)
	assignment.LDPValue = res.Value
	assignment.ClientPk.Assign(tedwards.BN254, c.sigKey.PublicKey.Bytes())
	assignment.Commitment = c.commitment.BigInt(new(big.Int))
	assignment.ServerSeed = c.serverSeed.BigInt(new(big.Int))
	assignment.ServerSig.Assign(tedwards.BN254, c.serverSig)
	timeElem := utils.ElementFromLEBytes(c.time)
	assignment.Time = timeElem.BigInt(new(big.Int))
	for i, b := range serverRand {
		assignment.ServerRand[i] = b
	}
	assignment.Input = new(big.Int).Set(x)
	for i, b := range c.clientRand {
		assignment.ClientRand[i] = b
	}
	assignment.Opening = c.opening.BigInt(new(big.Int))
	assignment.ClientSig.Assign(tedwards.BN254, inputSig)

	proof, err := prove(c.art, assignment)
	if err != nil {
		c.state = Aborted
		return nil, err
	}

	c.state = Emitted
	c.log.Debug().Uint64("ldp_value", res.Value).Msg("phase-2 contribution emitted")
	return &messages.Phase2Message{
		ClientSigPk:      c.sigKey.PublicKey.Bytes(),
		CommitmentOrRoot: c.commitment.Marshal(),
		ServerSeed:       c.serverSeed.Marshal(),
		ServerSig:        c.serverSig,
		Time:             c.time,
		LDPValue:         res.Value,
		Proof:            proof,
	}, nil
}

// Abandon zeroizes session secrets and ends the session.
func (c *Base) Abandon() {
	utils.Zeroize(c.clientRand)
	c.opening.SetZero()
	c.state = Aborted
}

// prove generates a Groth16 proof for a full assignment and returns its wire
// bytes.
func prove(art *setup.Artifacts, assignment frontend.Circuit) ([]byte, error) {
	wtns, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: witness: %v", utils.ErrPrimitiveFailure, err)
	}
	proof, err := groth16.Prove(art.CCS, art.ProvingKey, wtns)
	if err != nil {
		return nil, fmt.Errorf("%w: prove: %v", utils.ErrPrimitiveFailure, err)
	}
	buf := &bytes.Buffer{}
	if _, err := proof.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("%w: serializing proof: %v", utils.ErrPrimitiveFailure, err)
	}
	return buf.Bytes(), nil
}

// bigToLE writes v into n little-endian bytes.
func bigToLE(v *big.Int, n int) []byte {
	return utils.BEtoLE(v.FillBytes(make([]byte, n)))
}
