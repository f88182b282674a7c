// Example driver running one full VLDP session against the HTTP
// coordinator. It reads the parameter directory, loads the proving artifacts
// produced by keygen, and walks through both phases.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	vldpclient "gnark-vldp/client"
	"gnark-vldp/messages"
	"gnark-vldp/setup"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/rs/zerolog"
)

type verdictResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	LDPValue uint64 `json:"ldp_value,omitempty"`
}

func main() {
	serverURL := os.Getenv("VLDP_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	protoName := os.Getenv("VLDP_PROTOCOL")
	if protoName == "" {
		protoName = "base"
	}
	resources := os.Getenv("VLDP_RESOURCES")
	if resources == "" {
		resources = "resources/vldp"
	}
	paramsDir := os.Getenv("VLDP_PARAMS_DIR")
	inputStr := os.Getenv("VLDP_INPUT")
	if inputStr == "" {
		inputStr = "1"
	}

	proto, err := utils.ParseProtocol(protoName)
	if err != nil {
		panic(fmt.Sprintf("invalid VLDP_PROTOCOL %q", protoName))
	}
	if proto != utils.ProtocolBase {
		panic("this driver runs the base protocol; use the library clients for expand/shuffle")
	}
	params, err := utils.LoadParamsDir(paramsDir)
	if err != nil {
		panic(err)
	}
	input, ok := new(big.Int).SetString(inputStr, 10)
	if !ok {
		panic("invalid VLDP_INPUT")
	}

	art, serverPk := loadArtifacts(resources, proto, params)
	sigKey, err := utils.GenerateSigningKey()
	if err != nil {
		panic(err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	c, err := vldpclient.NewBase(art, serverPk, sigKey, logger)
	if err != nil {
		panic(err)
	}

	now := uint64(time.Now().Unix())
	timeBytes := utils.Uint64ToLEBytes(now, params.TimeBytes)

	req, err := c.CommitRequest(timeBytes)
	if err != nil {
		panic(err)
	}
	var resp messages.Phase1Response
	postCBOR(serverURL+"/vldp/phase1", req, &resp)
	if err := c.AbsorbSeed(&resp); err != nil {
		panic(err)
	}

	msg, err := c.Randomize(input)
	if err != nil {
		panic(err)
	}
	verdict := postVerdict(serverURL+"/vldp/phase2", msg)
	fmt.Printf("verdict: %s ldp_value: %d\n", verdict.Status, verdict.LDPValue)
}

// loadArtifacts reads the r1cs and proving key written by keygen, plus the
// server signature public key.
func loadArtifacts(resources string, proto utils.Protocol, params utils.Params) (*setup.Artifacts, *eddsa.PublicKey) {
	name := proto.String()

	ccsData := mustRead(filepath.Join(resources, "r1cs."+name))
	ccs := groth16.NewCS(ecc.BN254)
	if _, err := ccs.ReadFrom(bytes.NewReader(ccsData)); err != nil {
		panic(err)
	}

	pkData := mustRead(filepath.Join(resources, "pk."+name))
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(pkData)); err != nil {
		panic(err)
	}

	serverPk, err := utils.PublicKeyFromBytes(mustRead(filepath.Join(resources, "server.pub")))
	if err != nil {
		panic(err)
	}

	return &setup.Artifacts{
		Protocol:   proto,
		Params:     params,
		CCS:        ccs,
		ProvingKey: pk,
	}, serverPk
}

func mustRead(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return data
}

func postCBOR(url string, payload any, out any) {
	body, err := messages.Encode(payload)
	if err != nil {
		panic(err)
	}
	resp, err := http.Post(url, "application/cbor", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}
	if resp.StatusCode != http.StatusOK {
		panic("server returned " + strconv.Itoa(resp.StatusCode) + ": " + string(data))
	}
	if err := messages.Decode(data, out); err != nil {
		panic(err)
	}
}

func postVerdict(url string, payload any) verdictResponse {
	body, err := messages.Encode(payload)
	if err != nil {
		panic(err)
	}
	resp, err := http.Post(url, "application/cbor", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}
	var verdict verdictResponse
	if err := json.Unmarshal(data, &verdict); err != nil {
		panic("server returned " + strconv.Itoa(resp.StatusCode) + ": " + string(data))
	}
	return verdict
}
