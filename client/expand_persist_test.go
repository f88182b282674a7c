package client

import (
	"bytes"
	"testing"

	"gnark-vldp/messages"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestExpandExportImportRoundTrip(t *testing.T) {
	serverKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)
	clientKey, err := utils.GenerateSigningKey()
	require.NoError(t, err)

	art := stubArtifacts(utils.ProtocolExpand)
	c, err := NewExpand(art, &serverKey.PublicKey, clientKey, zerolog.Nop())
	require.NoError(t, err)

	req, err := c.CommitRequest([]byte{7})
	require.NoError(t, err)

	// sign the transcript the way a server would
	var root fr.Element
	require.NoError(t, root.SetBytesCanonical(req.CommitmentOrRoot))
	seed, err := utils.SampleSeed()
	require.NoError(t, err)
	sig, err := utils.SignElement(serverKey, utils.SeedMessage(root, &clientKey.PublicKey, req.Time, seed))
	require.NoError(t, err)
	require.NoError(t, c.AbsorbSeed(&messages.Phase1Response{ServerSeed: seed.Marshal(), ServerSig: sig}))
	require.Equal(t, Ready, c.State())

	buf := &bytes.Buffer{}
	require.NoError(t, c.ExportState(buf, "correct horse battery staple"))

	restored, err := NewExpand(art, &serverKey.PublicKey, clientKey, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, restored.ImportState(bytes.NewReader(buf.Bytes()), "correct horse battery staple"))
	require.Equal(t, Ready, restored.State())
	require.Equal(t, c.Remaining(), restored.Remaining())
	require.Equal(t, c.tree.Root(), restored.tree.Root())

	// wrong passphrase must not decrypt
	again, err := NewExpand(art, &serverKey.PublicKey, clientKey, zerolog.Nop())
	require.NoError(t, err)
	require.Error(t, again.ImportState(bytes.NewReader(buf.Bytes()), "wrong passphrase"))
}
