// Package server implements the server role: issuing signed seeds in phase 1
// and verifying phase-2 contributions against the protocol circuit, with
// one-shot enforcement and a time acceptance window.
package server

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	basecircuit "gnark-vldp/circuits/base"
	expandcircuit "gnark-vldp/circuits/expand"
	shufflecircuit "gnark-vldp/circuits/shuffle"
	"gnark-vldp/messages"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Window is the phase-2 acceptance window on the embedded timestamp,
// compared as little-endian integers: Lower < t <= Upper.
type Window struct {
	Lower []byte
	Upper []byte
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t []byte) bool {
	v := new(big.Int).SetBytes(utils.BEtoLE(t))
	lo := new(big.Int).SetBytes(utils.BEtoLE(w.Lower))
	hi := new(big.Int).SetBytes(utils.BEtoLE(w.Upper))
	return v.Cmp(lo) > 0 && v.Cmp(hi) <= 0
}

// outstanding tracks a phase-1 seed that has not yet reached a verdict.
type outstanding struct {
	commitment string
	seed       string
	issuedAt   time.Time
}

// Server verifies contributions for one protocol variant. The consumed and
// outstanding maps are the only mutable shared state; reads take the shared
// section, verdict updates the exclusive one.
type Server struct {
	params utils.Params
	proto  utils.Protocol
	sigKey *eddsa.PrivateKey
	vk     groth16.VerifyingKey
	clock  clockwork.Clock
	log    zerolog.Logger

	mu          sync.RWMutex
	consumed    map[string]struct{}
	outstanding map[string][]outstanding // client pk -> open seeds
}

// New creates a server for the given protocol with a fresh signature key.
func New(proto utils.Protocol, p utils.Params, vk groth16.VerifyingKey, clock clockwork.Clock, log zerolog.Logger) (*Server, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key, err := utils.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	return NewWithKey(proto, p, key, vk, clock, log)
}

// NewWithKey creates a server around an existing signature key, e.g. one the
// keygen tool produced together with the circuit artifacts.
func NewWithKey(proto utils.Protocol, p utils.Params, key *eddsa.PrivateKey, vk groth16.VerifyingKey, clock clockwork.Clock, log zerolog.Logger) (*Server, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		params:      p,
		proto:       proto,
		sigKey:      key,
		vk:          vk,
		clock:       clock,
		log:         log.With().Str("role", "server").Str("protocol", proto.String()).Logger(),
		consumed:    make(map[string]struct{}),
		outstanding: make(map[string][]outstanding),
	}, nil
}

// PublicKey returns the server's signature public key, a circuit constant on
// the client side.
func (s *Server) PublicKey() *eddsa.PublicKey { return &s.sigKey.PublicKey }

// IssueSeed performs the server half of phase 1: sample a seed, sign the
// transcript and record the open session.
func (s *Server) IssueSeed(req *messages.Phase1Request) (*messages.Phase1Response, error) {
	if len(req.Time) != s.params.TimeBytes {
		return nil, fmt.Errorf("%w: time width %d", utils.ErrParameterMismatch, len(req.Time))
	}
	var commitment fr.Element
	if err := commitment.SetBytesCanonical(req.CommitmentOrRoot); err != nil {
		return nil, fmt.Errorf("%w: commitment encoding: %v", utils.ErrParameterMismatch, err)
	}
	clientPk := new(eddsa.PublicKey)
	if _, err := clientPk.SetBytes(req.ClientSigPk); err != nil {
		return nil, fmt.Errorf("%w: client key encoding: %v", utils.ErrParameterMismatch, err)
	}

	seed, err := utils.SampleSeed()
	if err != nil {
		return nil, err
	}
	sig, err := utils.SignElement(s.sigKey, utils.SeedMessage(commitment, clientPk, req.Time, seed))
	if err != nil {
		return nil, err
	}

	entry := outstanding{
		commitment: hex.EncodeToString(req.CommitmentOrRoot),
		seed:       hex.EncodeToString(seed.Marshal()),
		issuedAt:   s.clock.Now(),
	}
	pkKey := hex.EncodeToString(req.ClientSigPk)
	s.mu.Lock()
	s.outstanding[pkKey] = append(s.outstanding[pkKey], entry)
	s.mu.Unlock()

	s.log.Debug().Str("client", pkKey[:8]).Msg("seed issued")
	return &messages.Phase1Response{
		SessionID:  uuid.NewString(),
		ServerSeed: seed.Marshal(),
		ServerSig:  sig,
	}, nil
}

// Verify checks a phase-2 contribution and, on success, consumes its
// randomness. It returns the accepted LDP value.
func (s *Server) Verify(msg *messages.Phase2Message, window Window) (uint64, error) {
	if len(msg.Time) != s.params.TimeBytes {
		return 0, fmt.Errorf("%w: time width %d", utils.ErrParameterMismatch, len(msg.Time))
	}
	if !window.Contains(msg.Time) {
		return 0, utils.ErrOutOfWindow
	}

	key := s.consumptionKey(msg)
	s.mu.RLock()
	_, seen := s.consumed[key]
	s.mu.RUnlock()
	if seen {
		return 0, utils.ErrReplay
	}

	if s.proto == utils.ProtocolExpand {
		if err := s.checkPathShape(msg); err != nil {
			return 0, err
		}
	}

	public, err := s.publicWitness(msg)
	if err != nil {
		return 0, err
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(msg.Proof)); err != nil {
		return 0, fmt.Errorf("%w: proof encoding: %v", utils.ErrProofInvalid, err)
	}
	if err := groth16.Verify(proof, s.vk, public); err != nil {
		s.log.Debug().Err(err).Msg("proof rejected")
		return 0, utils.ErrProofInvalid
	}

	s.mu.Lock()
	if _, seen := s.consumed[key]; seen {
		s.mu.Unlock()
		return 0, utils.ErrReplay
	}
	s.consumed[key] = struct{}{}
	s.settleOutstanding(msg)
	s.mu.Unlock()

	s.log.Debug().Uint64("ldp_value", msg.LDPValue).Msg("contribution accepted")
	return msg.LDPValue, nil
}

// PruneExpired drops outstanding phase-1 records older than ttl. The
// consumed set is kept, so late replays of settled sessions still fail.
func (s *Server) PruneExpired(ttl time.Duration) {
	cutoff := s.clock.Now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for pk, entries := range s.outstanding {
		kept := entries[:0]
		for _, e := range entries {
			if e.issuedAt.After(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.outstanding, pk)
		} else {
			s.outstanding[pk] = kept
		}
	}
}

// consumptionKey identifies the randomness consumed by a contribution:
// (C, s) for Base/Shuffle, (root, s, leaf index) for Expand.
func (s *Server) consumptionKey(msg *messages.Phase2Message) string {
	key := hex.EncodeToString(msg.CommitmentOrRoot) + ":" + hex.EncodeToString(msg.ServerSeed)
	if s.proto == utils.ProtocolExpand {
		key = fmt.Sprintf("%s:%d", key, msg.LeafIndex)
	}
	return key
}

// settleOutstanding removes the matching phase-1 record; in Expand the
// record stays until the batch root itself is retired by pruning.
func (s *Server) settleOutstanding(msg *messages.Phase2Message) {
	if s.proto == utils.ProtocolExpand {
		return
	}
	pkKey := hex.EncodeToString(msg.ClientSigPk)
	entries := s.outstanding[pkKey]
	com := hex.EncodeToString(msg.CommitmentOrRoot)
	seed := hex.EncodeToString(msg.ServerSeed)
	for i, e := range entries {
		if e.commitment == com && e.seed == seed {
			s.outstanding[pkKey] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(s.outstanding[pkKey]) == 0 {
		delete(s.outstanding, pkKey)
	}
}

// checkPathShape validates the structure of the carried authentication path
// before any expensive work; the binding itself is proven in-circuit.
func (s *Server) checkPathShape(msg *messages.Phase2Message) error {
	if len(msg.MerklePath) != s.params.MerkleDepth {
		return fmt.Errorf("%w: path length %d, want %d", utils.ErrMerklePathInvalid, len(msg.MerklePath), s.params.MerkleDepth)
	}
	for i, sib := range msg.MerklePath {
		if len(sib) != fr.Bytes {
			return fmt.Errorf("%w: path element %d has %d bytes", utils.ErrMerklePathInvalid, i, len(sib))
		}
	}
	if msg.LeafIndex >= uint64(s.params.NumLeaves()) {
		return fmt.Errorf("%w: leaf index %d for depth %d", utils.ErrMerklePathInvalid, msg.LeafIndex, s.params.MerkleDepth)
	}
	return nil
}

// publicWitness rebuilds the circuit's public inputs from the wire message,
// expanding the server seed natively.
func (s *Server) publicWitness(msg *messages.Phase2Message) (witness.Witness, error) {
	var seed fr.Element
	if err := seed.SetBytesCanonical(msg.ServerSeed); err != nil {
		return nil, fmt.Errorf("%w: seed encoding: %v", utils.ErrParameterMismatch, err)
	}
	var commitment fr.Element
	if err := commitment.SetBytesCanonical(msg.CommitmentOrRoot); err != nil {
		return nil, fmt.Errorf("%w: commitment encoding: %v", utils.ErrParameterMismatch, err)
	}

	// pre-parse encodings natively: the circuit Assign helpers panic on
	// malformed points, and wire data is untrusted
	if _, err := utils.PublicKeyFromBytes(msg.ClientSigPk); err != nil {
		return nil, err
	}
	var sig eddsa.Signature
	if _, err := sig.SetBytes(msg.ServerSig); err != nil {
		return nil, fmt.Errorf("%w: server signature encoding: %v", utils.ErrParameterMismatch, err)
	}

	serverRand, err := utils.ExpandServerSeed(seed, s.params.RandomnessBytes)
	if err != nil {
		return nil, err
	}
	timeElem := utils.ElementFromLEBytes(msg.Time)
	timeVal := timeElem.BigInt(new(big.Int))
	seedVal := seed.BigInt(new(big.Int))
	comVal := commitment.BigInt(new(big.Int))

	var assignment frontend.Circuit
	switch s.proto {
	case utils.ProtocolBase:
		w := basecircuit.NewCircuit(s.params, s.PublicKey())
		w.LDPValue = msg.LDPValue
		w.ClientPk.Assign(tedwards.BN254, msg.ClientSigPk)
		w.Commitment = comVal
		w.ServerSeed = seedVal
		w.ServerSig.Assign(tedwards.BN254, msg.ServerSig)
		w.Time = timeVal
		for i, b := range serverRand {
			w.ServerRand[i] = b
		}
		assignment = w
	case utils.ProtocolExpand:
		w := expandcircuit.NewCircuit(s.params, s.PublicKey())
		w.LDPValue = msg.LDPValue
		w.ClientPk.Assign(tedwards.BN254, msg.ClientSigPk)
		w.Root = comVal
		w.LeafIndex = msg.LeafIndex
		w.ServerSeed = seedVal
		w.ServerSig.Assign(tedwards.BN254, msg.ServerSig)
		w.Time = timeVal
		for i, b := range serverRand {
			w.ServerRand[i] = b
		}
		assignment = w
	case utils.ProtocolShuffle:
		w := shufflecircuit.NewCircuit(s.params, s.PublicKey())
		w.LDPValue = msg.LDPValue
		w.ClientPk.Assign(tedwards.BN254, msg.ClientSigPk)
		w.Commitment = comVal
		w.ServerSeed = seedVal
		w.ServerSig.Assign(tedwards.BN254, msg.ServerSig)
		w.Time = timeVal
		assignment = w
	default:
		return nil, fmt.Errorf("%w: unknown protocol", utils.ErrParameterMismatch)
	}

	wtns, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: public witness: %v", utils.ErrPrimitiveFailure, err)
	}
	return wtns, nil
}
