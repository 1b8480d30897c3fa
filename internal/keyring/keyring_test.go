package keyring

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	admin, err := GenerateKeyPair("admin")
	require.NoError(t, err)
	server, err := GenerateKeyPair("server")
	require.NoError(t, err)

	require.NoError(t, SignInPlace(admin, server))
	assert.True(t, Verify(admin.Public, server))

	other, err := GenerateKeyPair("impostor")
	require.NoError(t, err)
	assert.False(t, Verify(other.Public, server))
}

func TestSignRequiresPrivateKey(t *testing.T) {
	admin, err := GenerateKeyPair("admin")
	require.NoError(t, err)
	pubOnly := admin.PublicOnly()
	subject, err := GenerateKeyPair("client")
	require.NoError(t, err)
	_, err = Sign(pubOnly, subject)
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k, err := GenerateKeyPair("client")
	require.NoError(t, err)
	admin, err := GenerateKeyPair("admin")
	require.NoError(t, err)
	require.NoError(t, SignInPlace(admin, k))

	data := Encode(k)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, k.Identifier, decoded.Identifier)
	assert.True(t, k.Equal(decoded))
	assert.True(t, Verify(admin.Public, decoded))

	pubData := Encode(k.PublicOnly())
	decodedPub, err := Decode(pubData)
	require.NoError(t, err)
	assert.Nil(t, decodedPub.Private)
	assert.Equal(t, VariantPublic, decodedPub.Variant)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	k, err := GenerateKeyPair("server")
	require.NoError(t, err)

	require.NoError(t, SaveToFile(dir, "server", k))

	loaded, err := LoadFromFile(dir, "server")
	require.NoError(t, err)
	assert.Equal(t, VariantPair, loaded.Variant)
	assert.True(t, k.Equal(loaded))

	// Removing the private half degrades gracefully to a public-only load.
	require.NoError(t, os.Remove(dir+"/server.key"))
	loaded2, err := LoadFromFile(dir, "server")
	require.NoError(t, err)
	assert.Equal(t, VariantPublic, loaded2.Variant)
	assert.Nil(t, loaded2.Private)
}
