package utils

import (
	"crypto/rand"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	_ "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark-crypto/hash"
)

// Commit binds msg under the opening rho: MiMC over the little-endian limbs
// of msg followed by rho. Hiding comes from the uniformly random opening,
// binding from MiMC collision resistance. The commitment gadget computes the
// identical function over byte witnesses.
func Commit(msg []byte, rho fr.Element) fr.Element {
	h := hash.MIMC_BN254.New()
	for _, limb := range PackLimbs(msg) {
		h.Write(limb.Marshal())
	}
	h.Write(rho.Marshal())
	var c fr.Element
	c.SetBytes(h.Sum(nil))
	return c
}

// CommitElement is the Shuffle form: the committed message is a single field
// element (the client seed).
func CommitElement(msg, rho fr.Element) fr.Element {
	h := hash.MIMC_BN254.New()
	h.Write(msg.Marshal())
	h.Write(rho.Marshal())
	var c fr.Element
	c.SetBytes(h.Sum(nil))
	return c
}

// SampleOpening draws a fresh commitment opening.
func SampleOpening() (fr.Element, error) {
	var rho fr.Element
	if _, err := rho.SetRandom(); err != nil {
		return rho, fmt.Errorf("%w: opening: %v", ErrPrimitiveFailure, err)
	}
	return rho, nil
}

// SeedMessage is the transcript element signed by the server in phase 1. It
// binds the seed to the exact request: commitment (or root), client key and
// timestamp.
func SeedMessage(commitment fr.Element, clientPk *eddsa.PublicKey, timeBytes []byte, seed fr.Element) fr.Element {
	t := ElementFromLEBytes(timeBytes)
	h := hash.MIMC_BN254.New()
	h.Write(commitment.Marshal())
	h.Write(clientPk.A.X.Marshal())
	h.Write(clientPk.A.Y.Marshal())
	h.Write(t.Marshal())
	h.Write(seed.Marshal())
	var m fr.Element
	m.SetBytes(h.Sum(nil))
	return m
}

// InputMessage is the transcript element signed by the client over its true
// input and the timestamp. It is only ever verified inside a circuit.
func InputMessage(input []byte, timeBytes []byte) fr.Element {
	x := ElementFromLEBytes(input)
	t := ElementFromLEBytes(timeBytes)
	h := hash.MIMC_BN254.New()
	h.Write(x.Marshal())
	h.Write(t.Marshal())
	var m fr.Element
	m.SetBytes(h.Sum(nil))
	return m
}

// GenerateSigningKey draws an EdDSA keypair on the inner curve.
func GenerateSigningKey() (*eddsa.PrivateKey, error) {
	key, err := eddsa.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: eddsa keygen: %v", ErrPrimitiveFailure, err)
	}
	return key, nil
}

// SignElement signs a single transcript element.
func SignElement(sk *eddsa.PrivateKey, msg fr.Element) ([]byte, error) {
	sig, err := sk.Sign(msg.Marshal(), hash.MIMC_BN254.New())
	if err != nil {
		return nil, fmt.Errorf("%w: eddsa sign: %v", ErrPrimitiveFailure, err)
	}
	return sig, nil
}

// VerifyElement checks a transcript signature natively.
func VerifyElement(pk *eddsa.PublicKey, msg fr.Element, sig []byte) error {
	ok, err := pk.Verify(sig, msg.Marshal(), hash.MIMC_BN254.New())
	if err != nil {
		return fmt.Errorf("%w: eddsa verify: %v", ErrPrimitiveFailure, err)
	}
	if !ok {
		return ErrSignatureInvalid
	}
	return nil
}

// SampleSeed draws a random scalar field element, used for server seeds and
// Shuffle client seeds.
func SampleSeed() (fr.Element, error) {
	var s fr.Element
	if _, err := s.SetRandom(); err != nil {
		return s, fmt.Errorf("%w: seed: %v", ErrPrimitiveFailure, err)
	}
	return s, nil
}
