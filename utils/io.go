package utils

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
)

// LoadParamsDir reads a parameter bundle from a directory of single-value
// files, one per field: input_bytes, gamma_bytes, time_bytes,
// randomness_bytes, mt_depth, k, gamma, is_real_input. gamma is the decimal
// fixed-point threshold; missing mt_depth or is_real_input default to zero
// values.
func LoadParamsDir(dir string) (Params, error) {
	var p Params
	readInt := func(name string, dst *int, required bool) error {
		s, err := readValue(dir, name)
		if err != nil {
			if !required && os.IsNotExist(err) {
				return nil
			}
			return err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrParameterMismatch, name, err)
		}
		*dst = v
		return nil
	}

	if err := readInt("input_bytes", &p.InputBytes, true); err != nil {
		return p, err
	}
	if err := readInt("gamma_bytes", &p.GammaBytes, true); err != nil {
		return p, err
	}
	if err := readInt("time_bytes", &p.TimeBytes, true); err != nil {
		return p, err
	}
	if err := readInt("randomness_bytes", &p.RandomnessBytes, true); err != nil {
		return p, err
	}
	if err := readInt("mt_depth", &p.MerkleDepth, false); err != nil {
		return p, err
	}

	s, err := readValue(dir, "k")
	if err != nil {
		return p, err
	}
	k, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return p, fmt.Errorf("%w: k: %v", ErrParameterMismatch, err)
	}
	p.K = k

	s, err = readValue(dir, "gamma")
	if err != nil {
		return p, err
	}
	gamma, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return p, fmt.Errorf("%w: gamma %q", ErrParameterMismatch, s)
	}
	p.Gamma = gamma

	if s, err = readValue(dir, "is_real_input"); err == nil {
		p.IsRealInput = s == "true" || s == "1"
	} else if !os.IsNotExist(err) {
		return p, err
	}

	return p, p.Validate()
}

func readValue(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// PublicKeyFromBytes parses a compressed EdDSA public key.
func PublicKeyFromBytes(data []byte) (*eddsa.PublicKey, error) {
	pk := new(eddsa.PublicKey)
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrParameterMismatch, err)
	}
	return pk, nil
}

// PrivateKeyFromBytes parses a serialized EdDSA private key.
func PrivateKeyFromBytes(data []byte) (*eddsa.PrivateKey, error) {
	sk := new(eddsa.PrivateKey)
	if _, err := sk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrParameterMismatch, err)
	}
	return sk, nil
}
