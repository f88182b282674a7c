package vldp

import (
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/signature/eddsa"
)

// Commit mirrors utils.Commit over byte witnesses: MiMC of the packed limbs
// followed by the opening.
func Commit(api frontend.API, msg []frontend.Variable, rho frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(PackLimbs(api, msg)...)
	h.Write(rho)
	return h.Sum(), nil
}

// CommitElement mirrors utils.CommitElement.
func CommitElement(api frontend.API, msg, rho frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(msg, rho)
	return h.Sum(), nil
}

// SeedMessage mirrors utils.SeedMessage.
func SeedMessage(api frontend.API, commitment frontend.Variable, clientPk eddsa.PublicKey, time, seed frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(commitment, clientPk.A.X, clientPk.A.Y, time, seed)
	return h.Sum(), nil
}

// InputMessage mirrors utils.InputMessage.
func InputMessage(api frontend.API, x, time frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(x, time)
	return h.Sum(), nil
}

// VerifySignature enforces an EdDSA verification over a single transcript
// element. The constraint fails unless the signature is valid.
func VerifySignature(api frontend.API, sig eddsa.Signature, msg frontend.Variable, pk eddsa.PublicKey) error {
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	return eddsa.Verify(curve, sig, msg, pk, &h)
}
