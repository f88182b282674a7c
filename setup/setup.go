// Package setup compiles the protocol circuits and runs the Groth16 trusted
// setup. The resulting artifacts are shared read-only by both roles.
package setup

import (
	"fmt"

	basecircuit "gnark-vldp/circuits/base"
	expandcircuit "gnark-vldp/circuits/expand"
	shufflecircuit "gnark-vldp/circuits/shuffle"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Artifacts bundles everything produced by the trusted setup for one
// (protocol, parameters, server key) tuple. Read-only after creation.
type Artifacts struct {
	Protocol     utils.Protocol
	Params       utils.Params
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// Circuit shapes an empty circuit of the given variant. The server signature
// public key becomes a circuit constant.
func Circuit(proto utils.Protocol, p utils.Params, serverPk *eddsa.PublicKey) (frontend.Circuit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch proto {
	case utils.ProtocolBase:
		return basecircuit.NewCircuit(p, serverPk), nil
	case utils.ProtocolExpand:
		return expandcircuit.NewCircuit(p, serverPk), nil
	case utils.ProtocolShuffle:
		return shufflecircuit.NewCircuit(p, serverPk), nil
	}
	return nil, fmt.Errorf("%w: unknown protocol %d", utils.ErrParameterMismatch, proto)
}

// Keygen compiles the circuit and runs the Groth16 setup.
func Keygen(proto utils.Protocol, p utils.Params, serverPk *eddsa.PublicKey) (*Artifacts, error) {
	circuit, err := Circuit(proto, p, serverPk)
	if err != nil {
		return nil, err
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compiling %s circuit: %w", proto, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup for %s: %w", proto, err)
	}
	return &Artifacts{
		Protocol:     proto,
		Params:       p,
		CCS:          ccs,
		ProvingKey:   pk,
		VerifyingKey: vk,
	}, nil
}
