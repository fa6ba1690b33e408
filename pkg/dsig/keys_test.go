package dsig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePEM(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadKeyPEM_PKCS1(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	path := writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv))

	key, err := LoadKeyPEM(path)
	require.NoError(t, err)
	assert.Equal(t, path, key.Name)

	pub, err := key.PublicKey()
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestLoadKeyPEM_PKCS8(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	path := writePEM(t, "PRIVATE KEY", der)

	key, err := LoadKeyPEM(path)
	require.NoError(t, err)

	pub, err := key.PublicKey()
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestLoadKeyPEM_FileMissing(t *testing.T) {
	_, err := LoadKeyPEM(filepath.Join(t.TempDir(), "nope.pem"))
	assert.ErrorIs(t, err, ErrKeyLoad)
}

func TestLoadKeyPEM_NotPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(path, []byte("this is not a key"), 0o600))

	_, err := LoadKeyPEM(path)
	assert.ErrorIs(t, err, ErrKeyLoad)
}

func TestLoadKeyPEM_GarbageDER(t *testing.T) {
	path := writePEM(t, "RSA PRIVATE KEY", []byte{0x01, 0x02, 0x03})

	_, err := LoadKeyPEM(path)
	assert.ErrorIs(t, err, ErrKeyFormatUnsupported)
}

func TestLoadKeyPEM_NonRSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	path := writePEM(t, "PRIVATE KEY", der)

	_, err = LoadKeyPEM(path)
	assert.ErrorIs(t, err, ErrKeyFormatUnsupported)
}

func TestLoadPublicKeyPEM_PKIX(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	path := writePEM(t, "PUBLIC KEY", der)

	pub, err := LoadPublicKeyPEM(path)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestLoadPublicKeyPEM_NonRSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	path := writePEM(t, "PUBLIC KEY", der)

	_, err = LoadPublicKeyPEM(path)
	assert.ErrorIs(t, err, ErrKeyFormatUnsupported)
}

func TestLoadKeyPKCS12_FileMissing(t *testing.T) {
	_, err := LoadKeyPKCS12(filepath.Join(t.TempDir(), "nope.p12"), "secret")
	assert.ErrorIs(t, err, ErrKeyLoad)
}

func TestLoadKeyPKCS12_NotPKCS12(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.p12")
	require.NoError(t, os.WriteFile(path, []byte("not a pkcs12 bundle"), 0o600))

	_, err := LoadKeyPKCS12(path, "secret")
	assert.ErrorIs(t, err, ErrKeyLoad)
}

func TestKeyMaterial_PublicKeyNonRSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key := &KeyMaterial{Signer: priv}
	_, err = key.PublicKey()
	assert.ErrorIs(t, err, ErrKeyFormatUnsupported)
}

func TestParsePKCS11URI(t *testing.T) {
	config := ParsePKCS11URI("pkcs11:module=/usr/lib/softhsm/libsofthsm2.so;pin=1234;token=test-token;slot-id=3")
	require.NotNil(t, config)
	assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", config.Path)
	assert.Equal(t, "1234", config.Pin)
	assert.Equal(t, "test-token", config.TokenLabel)
	require.NotNil(t, config.SlotNumber)
	assert.Equal(t, 3, *config.SlotNumber)
}

func TestParsePKCS11URI_Invalid(t *testing.T) {
	assert.Nil(t, ParsePKCS11URI("https://example.com"))
	assert.Nil(t, ParsePKCS11URI("pkcs11:"))
	assert.Nil(t, ParsePKCS11URI("pkcs11:pin=1234"))
}

func TestNewPKCS11KeySourceFromURI_Invalid(t *testing.T) {
	_, err := NewPKCS11KeySourceFromURI("not-a-uri", "key", "cert")
	assert.ErrorIs(t, err, ErrKeyLoad)
}

func TestHexToBytes(t *testing.T) {
	b, err := hexToBytes("0x01")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, b)

	// Odd-length input is zero-padded.
	b, err = hexToBytes("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xbc}, b)

	_, err = hexToBytes("zz")
	assert.Error(t, err)
}
