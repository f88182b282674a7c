package client

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"filippo.io/age"
	expandcircuit "gnark-vldp/circuits/expand"
	"gnark-vldp/messages"
	"gnark-vldp/setup"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
)

// Expand runs one Expand protocol session: a single phase-1 exchange
// amortized over a batch of 2^depth pre-committed randomness values.
type Expand struct {
	params   utils.Params
	art      *setup.Artifacts
	serverPk *eddsa.PublicKey
	sigKey   *eddsa.PrivateKey
	log      zerolog.Logger

	state       State
	time        []byte
	clientRands [][]byte
	openings    []fr.Element
	leaves      []fr.Element
	tree        *utils.CommitmentTree
	used        []bool
	nextIndex   int
	serverSeed  fr.Element
	serverSig   []byte
}

func NewExpand(art *setup.Artifacts, serverPk *eddsa.PublicKey, sigKey *eddsa.PrivateKey, log zerolog.Logger) (*Expand, error) {
	if art.Protocol != utils.ProtocolExpand {
		return nil, fmt.Errorf("%w: artifacts are for %s", utils.ErrParameterMismatch, art.Protocol)
	}
	if err := art.Params.Validate(); err != nil {
		return nil, err
	}
	return &Expand{
		params:   art.Params,
		art:      art,
		serverPk: serverPk,
		sigKey:   sigKey,
		log:      log.With().Str("role", "client").Str("protocol", "expand").Logger(),
	}, nil
}

func (c *Expand) State() State { return c.state }

// Remaining reports how many leaves of the batch are still unconsumed.
func (c *Expand) Remaining() int {
	n := 0
	for _, u := range c.used {
		if !u {
			n++
		}
	}
	return n
}

// CommitRequest samples the whole randomness batch, builds the commitment
// tree and returns the phase-1 message carrying only its root.
func (c *Expand) CommitRequest(timeBytes []byte) (*messages.Phase1Request, error) {
	if c.state != Fresh {
		return nil, fmt.Errorf("%w: commit in state %s", utils.ErrInvalidState, c.state)
	}
	if len(timeBytes) != c.params.TimeBytes {
		return nil, fmt.Errorf("%w: time width %d", utils.ErrParameterMismatch, len(timeBytes))
	}

	n := c.params.NumLeaves()
	c.clientRands = make([][]byte, n)
	c.openings = make([]fr.Element, n)
	c.leaves = make([]fr.Element, n)
	c.used = make([]bool, n)
	for i := 0; i < n; i++ {
		seed := make([]byte, utils.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("%w: sampling seed: %v", utils.ErrPrimitiveFailure, err)
		}
		rc, err := utils.ExpandSeed(seed, c.params.RandomnessBytes)
		utils.Zeroize(seed)
		if err != nil {
			c.state = Aborted
			return nil, err
		}
		rho, err := utils.SampleOpening()
		if err != nil {
			c.state = Aborted
			return nil, err
		}
		c.clientRands[i] = rc
		c.openings[i] = rho
		c.leaves[i] = utils.Commit(rc, rho)
	}

	tree, err := utils.NewCommitmentTree(c.leaves, c.params.MerkleDepth)
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	c.tree = tree
	c.time = append([]byte(nil), timeBytes...)
	c.state = AwaitingSeed
	c.log.Debug().Int("leaves", n).Msg("phase-1 batch root issued")

	root := tree.Root()
	return &messages.Phase1Request{
		CommitmentOrRoot: root.Marshal(),
		ClientSigPk:      c.sigKey.PublicKey.Bytes(),
		Time:             c.time,
	}, nil
}

func (c *Expand) AbsorbSeed(resp *messages.Phase1Response) error {
	if c.state != AwaitingSeed {
		return fmt.Errorf("%w: absorb in state %s", utils.ErrInvalidState, c.state)
	}
	var seed fr.Element
	seed.SetBytes(resp.ServerSeed)

	msg := utils.SeedMessage(c.tree.Root(), &c.sigKey.PublicKey, c.time, seed)
	if err := utils.VerifyElement(c.serverPk, msg, resp.ServerSig); err != nil {
		c.Abandon()
		return err
	}
	c.serverSeed = seed
	c.serverSig = append([]byte(nil), resp.ServerSig...)
	c.state = Ready
	return nil
}

// Randomize consumes the next unused leaf. The index counter advances
// monotonically; RandomizeLeaf allows out-of-order consumption.
func (c *Expand) Randomize(x *big.Int) (*messages.Phase2Message, error) {
	for c.nextIndex < len(c.used) && c.used[c.nextIndex] {
		c.nextIndex++
	}
	return c.RandomizeLeaf(x, c.nextIndex)
}

// RandomizeLeaf emits a contribution from the chosen leaf. The session stays
// Ready until the batch is exhausted.
func (c *Expand) RandomizeLeaf(x *big.Int, index int) (*messages.Phase2Message, error) {
	if c.state != Ready {
		return nil, fmt.Errorf("%w: randomize in state %s", utils.ErrInvalidState, c.state)
	}
	if index < 0 || index >= len(c.used) {
		return nil, fmt.Errorf("%w: leaf index %d", utils.ErrMerklePathInvalid, index)
	}
	if c.used[index] {
		return nil, fmt.Errorf("%w: leaf %d already consumed", utils.ErrReplay, index)
	}

	serverRand, err := utils.ExpandServerSeed(c.serverSeed, c.params.RandomnessBytes)
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	r, err := utils.XorBytes(c.clientRands[index], serverRand)
	if err != nil {
		c.state = Aborted
		return nil, err
	}
	res, err := utils.ApplyLDP(c.params, x, r)
	if err != nil {
		return nil, err
	}

	path, err := c.tree.Path(index)
	if err != nil {
		return nil, err
	}
	root := c.tree.Root()
	if !utils.VerifyPath(root, c.leaves[index], index, path) {
		return nil, fmt.Errorf("%w: leaf %d does not reach root", utils.ErrMerklePathInvalid, index)
	}

	inputBytes := bigToLE(x, c.params.InputBytes)
	inputSig, err := utils.SignElement(c.sigKey, utils.InputMessage(inputBytes, c.time))
	if err != nil {
		c.state = Aborted
		return nil, err
	}

	assignment := expandcircuit.NewCircuit(c.params, c.serverPk)
	assignment.LDPValue = res.Value
	assignment.ClientPk.Assign(tedwards.BN254, c.sigKey.PublicKey.Bytes())
	assignment.Root = root.BigInt(new(big.Int))
	assignment.LeafIndex = index
	assignment.ServerSeed = c.serverSeed.BigInt(new(big.Int))
	assignment.ServerSig.Assign(tedwards.BN254, c.serverSig)
	timeElem := utils.ElementFromLEBytes(c.time)
	assignment.Time = timeElem.BigInt(new(big.Int))
	for i, b := range serverRand {
		assignment.ServerRand[i] = b
	}
	assignment.Input = new(big.Int).Set(x)
	for i, b := range c.clientRands[index] {
		assignment.ClientRand[i] = b
	}
	assignment.Opening = c.openings[index].BigInt(new(big.Int))
	for i := range path {
		assignment.MerklePath[i] = path[i].BigInt(new(big.Int))
	}
	assignment.ClientSig.Assign(tedwards.BN254, inputSig)

	proof, err := prove(c.art, assignment)
	if err != nil {
		c.state = Aborted
		return nil, err
	}

	c.used[index] = true
	if c.Remaining() == 0 {
		c.state = Emitted
	}

	pathBytes := make([][]byte, len(path))
	for i := range path {
		pathBytes[i] = path[i].Marshal()
	}
	c.log.Debug().Int("leaf", index).Uint64("ldp_value", res.Value).Msg("phase-2 contribution emitted")
	return &messages.Phase2Message{
		ClientSigPk:      c.sigKey.PublicKey.Bytes(),
		CommitmentOrRoot: root.Marshal(),
		ServerSeed:       c.serverSeed.Marshal(),
		ServerSig:        c.serverSig,
		Time:             c.time,
		LDPValue:         res.Value,
		Proof:            proof,
		MerklePath:       pathBytes,
		LeafIndex:        uint64(index),
	}, nil
}

// Abandon zeroizes the whole batch.
func (c *Expand) Abandon() {
	for i := range c.clientRands {
		utils.Zeroize(c.clientRands[i])
		c.openings[i].SetZero()
	}
	c.state = Aborted
}

// expandState is the persisted form of a Ready Expand session.
type expandState struct {
	Time        []byte   `cbor:"time"`
	ClientRands [][]byte `cbor:"client_rands"`
	Openings    [][]byte `cbor:"openings"`
	Used        []bool   `cbor:"used"`
	ServerSeed  []byte   `cbor:"server_seed"`
	ServerSig   []byte   `cbor:"server_sig"`
}

// ExportState writes the batch state encrypted under the passphrase, so a
// client can resume leaf consumption after a restart.
func (c *Expand) ExportState(w io.Writer, passphrase string) error {
	if c.state != Ready {
		return fmt.Errorf("%w: export in state %s", utils.ErrInvalidState, c.state)
	}
	st := expandState{
		Time:        c.time,
		ClientRands: c.clientRands,
		Openings:    make([][]byte, len(c.openings)),
		Used:        c.used,
		ServerSeed:  c.serverSeed.Marshal(),
		ServerSig:   c.serverSig,
	}
	for i := range c.openings {
		st.Openings[i] = c.openings[i].Marshal()
	}
	data, err := cbor.Marshal(&st)
	if err != nil {
		return fmt.Errorf("%w: encoding state: %v", utils.ErrPrimitiveFailure, err)
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("%w: age recipient: %v", utils.ErrPrimitiveFailure, err)
	}
	enc, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("%w: age encrypt: %v", utils.ErrPrimitiveFailure, err)
	}
	if _, err := enc.Write(data); err != nil {
		return fmt.Errorf("%w: writing state: %v", utils.ErrPrimitiveFailure, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: closing state: %v", utils.ErrPrimitiveFailure, err)
	}
	return nil
}

// ImportState restores a Ready session previously written by ExportState.
func (c *Expand) ImportState(rd io.Reader, passphrase string) error {
	if c.state != Fresh {
		return fmt.Errorf("%w: import in state %s", utils.ErrInvalidState, c.state)
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("%w: age identity: %v", utils.ErrPrimitiveFailure, err)
	}
	dec, err := age.Decrypt(rd, identity)
	if err != nil {
		return fmt.Errorf("%w: age decrypt: %v", utils.ErrPrimitiveFailure, err)
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return fmt.Errorf("%w: reading state: %v", utils.ErrPrimitiveFailure, err)
	}
	var st expandState
	if err := cbor.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: decoding state: %v", utils.ErrPrimitiveFailure, err)
	}
	n := c.params.NumLeaves()
	if len(st.ClientRands) != n || len(st.Openings) != n || len(st.Used) != n {
		return fmt.Errorf("%w: state batch size", utils.ErrParameterMismatch)
	}

	c.time = st.Time
	c.clientRands = st.ClientRands
	c.openings = make([]fr.Element, n)
	c.leaves = make([]fr.Element, n)
	for i := range st.Openings {
		c.openings[i].SetBytes(st.Openings[i])
		c.leaves[i] = utils.Commit(c.clientRands[i], c.openings[i])
	}
	tree, err := utils.NewCommitmentTree(c.leaves, c.params.MerkleDepth)
	if err != nil {
		return err
	}
	c.tree = tree
	c.used = st.Used
	c.serverSeed.SetBytes(st.ServerSeed)
	c.serverSig = st.ServerSig
	c.state = Ready
	return nil
}
