package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gnark-vldp/setup"
	"gnark-vldp/utils"
)

// Generates the Groth16 artifacts and the server signature keypair for every
// protocol variant, and writes them to OUT_DIR together with sha256 pins so
// deployments can detect stale or tampered files.
const OUT_DIR = "../resources/vldp"

func main() {
	paramsDir := os.Getenv("VLDP_PARAMS_DIR")
	var p utils.Params
	var err error
	if paramsDir != "" {
		p, err = utils.LoadParamsDir(paramsDir)
		if err != nil {
			panic(err)
		}
	} else {
		p = utils.Params{
			InputBytes:      8,
			GammaBytes:      8,
			TimeBytes:       8,
			RandomnessBytes: 32,
			MerkleDepth:     4,
			K:               16,
			Gamma:           utils.GammaFromFloat(0.5, 8),
		}
	}
	if err := p.Validate(); err != nil {
		panic(err)
	}

	serverKey, err := utils.GenerateSigningKey()
	if err != nil {
		panic(err)
	}
	writeFile("server.key", serverKey.Bytes())
	writeFile("server.pub", serverKey.PublicKey.Bytes())

	for _, proto := range []utils.Protocol{utils.ProtocolBase, utils.ProtocolExpand, utils.ProtocolShuffle} {
		generateArtifactFiles(proto, p, serverKey.PublicKey.Bytes())
	}
}

func generateArtifactFiles(proto utils.Protocol, p utils.Params, serverPub []byte) {
	serverPk, err := utils.PublicKeyFromBytes(serverPub)
	if err != nil {
		panic(err)
	}

	t := time.Now()
	art, err := setup.Keygen(proto, p, serverPk)
	if err != nil {
		panic(err)
	}
	fmt.Println("setup for", proto, "took", time.Since(t))
	fmt.Printf("constraints: %d pub %d secret %d\n",
		art.CCS.GetNbConstraints(), art.CCS.GetNbPublicVariables(), art.CCS.GetNbSecretVariables())

	name := proto.String()

	buf := &bytes.Buffer{}
	if _, err := art.CCS.WriteTo(buf); err != nil {
		panic(err)
	}
	writeFile("r1cs."+name, buf.Bytes())
	writeFile("r1cs."+name+".sha256", hashBytes(buf.Bytes()))

	buf = &bytes.Buffer{}
	if _, err := art.ProvingKey.WriteTo(buf); err != nil {
		panic(err)
	}
	writeFile("pk."+name, buf.Bytes())
	writeFile("pk."+name+".sha256", hashBytes(buf.Bytes()))

	buf = &bytes.Buffer{}
	if _, err := art.VerifyingKey.WriteTo(buf); err != nil {
		panic(err)
	}
	writeFile("vk."+name, buf.Bytes())
	writeFile("vk."+name+".sha256", hashBytes(buf.Bytes()))

	fmt.Println("generated artifacts for", name)
}

func writeFile(name string, data []byte) {
	if err := os.MkdirAll(OUT_DIR, 0o777); err != nil {
		panic(err)
	}
	path := filepath.Join(OUT_DIR, name)
	_ = os.Remove(path)
	if err := os.WriteFile(path, data, 0o666); err != nil {
		panic(err)
	}
}

func hashBytes(data []byte) []byte {
	hash := sha256.Sum256(data)
	return []byte(hex.EncodeToString(hash[:]))
}
