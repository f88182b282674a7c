package client

import (
	"fmt"
	"math/big"

	shufflecircuit "gnark-vldp/circuits/shuffle"
	"gnark-vldp/messages"
	"gnark-vldp/setup"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/rs/zerolog"
)

// Shuffle runs one Shuffle protocol session. The commitment binds a single
// seed; the combined randomness is derived inside the circuit, so the
// emitted record survives an anonymizing reorder between client and server.
type Shuffle struct {
	params   utils.Params
	art      *setup.Artifacts
	serverPk *eddsa.PublicKey
	sigKey   *eddsa.PrivateKey
	log      zerolog.Logger

	state      State
	time       []byte
	clientSeed fr.Element
	opening    fr.Element
	commitment fr.Element
	serverSeed fr.Element
	serverSig  []byte
}

func NewShuffle(art *setup.Artifacts, serverPk *eddsa.PublicKey, sigKey *eddsa.PrivateKey, log zerolog.Logger) (*Shuffle, error) {
	if art.Protocol != utils.ProtocolShuffle {
		return nil, fmt.Errorf("%w: artifacts are for %s", utils.ErrParameterMismatch, art.Protocol)
	}
	if err := art.Params.Validate(); err != nil {
		return nil, err
	}
	return &Shuffle{
		params:   art.Params,
		art:      art,
		serverPk: serverPk,
		sigKey:   sigKey,
		log:      log.With().Str("role", "client").Str("protocol", "shuffle").Logger(),
	}, nil
}

func (c *Shuffle) State() State { return c.state }

// CommitRequest commits to a fresh seed and returns the phase-1 message.
func (c *Shuffle) CommitRequest(timeBytes []byte) (*messages.Phase1Request, error) {
	if c.state != Fresh {
		return nil, fmt.Errorf("%w: commit in state %s", utils.ErrInvalidState, c.state)
	}
	if len(timeBytes) != c.params.TimeBytes {
		return nil, fmt.Errorf("%w: time width %d", utils.ErrParameterMismatch, len(timeBytes))
	}
	seed, err := utils.SampleSeed()
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	opening, err := utils.SampleOpening()
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	c.clientSeed = seed
	c.opening = opening
	c.commitment = utils.CommitElement(seed, opening)
	c.time = append([]byte(nil), timeBytes...)
	c.state = AwaitingSeed

	return &messages.Phase1Request{
		CommitmentOrRoot: c.commitment.Marshal(),
		ClientSigPk:      c.sigKey.PublicKey.Bytes(),
		Time:             c.time,
	}, nil
}

func (c *Shuffle) AbsorbSeed(resp *messages.Phase1Response) error {
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

// Randomize derives the combined randomness from the committed seed, applies
// the mechanism and emits the shuffler-ready contribution.
func (c *Shuffle) Randomize(x *big.Int) (*messages.Phase2Message, error) {
	if c.state != Ready {
		return nil, fmt.Errorf("%w: randomize in state %s", utils.ErrInvalidState, c.state)
	}

	r := utils.ShuffleRandomness(c.clientSeed, c.serverSeed, c.params.RandomnessBytes)
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

	assignment := shufflecircuit.NewCircuit(c.params, c.serverPk)
	assignment.LDPValue = res.Value
	assignment.ClientPk.Assign(tedwards.BN254, c.sigKey.PublicKey.Bytes())
	assignment.Commitment = c.commitment.BigInt(new(big.Int))
	assignment.ServerSeed = c.serverSeed.BigInt(new(big.Int))
	assignment.ServerSig.Assign(tedwards.BN254, c.serverSig)
	timeElem := utils.ElementFromLEBytes(c.time)
	assignment.Time = timeElem.BigInt(new(big.Int))
	assignment.Input = new(big.Int).Set(x)
	assignment.ClientSeed = c.clientSeed.BigInt(new(big.Int))
	assignment.Opening = c.opening.BigInt(new(big.Int))
	assignment.ClientSig.Assign(tedwards.BN254, inputSig)

	proof, err := prove(c.art, assignment)
	if err != nil {
		c.state = Aborted
		return nil, err
	}

	c.state = Emitted
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

// Abandon zeroizes the seed and opening.
func (c *Shuffle) Abandon() {
	c.clientSeed.SetZero()
	c.opening.SetZero()
	c.state = Aborted
}
