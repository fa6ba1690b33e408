package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUNET/go-xmlsign/pkg/dsig"
)

func TestLoadKeyMaterial_NoSourceConfigured(t *testing.T) {
	key, err := loadKeyMaterial("", "", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestLoadKeyMaterial_PKCS12Missing(t *testing.T) {
	_, err := loadKeyMaterial(filepath.Join(t.TempDir(), "nope.p12"), "secret", "", "", "")
	assert.ErrorIs(t, err, dsig.ErrKeyLoad)
}

func TestLoadKeyMaterial_PEMDeferredToPipeline(t *testing.T) {
	// PEM keys are loaded by the sign pipeline step, not up front.
	key, err := loadKeyMaterial("key.pem", "", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestLoadKeyMaterial_InvalidPKCS11URI(t *testing.T) {
	_, err := loadKeyMaterial("", "", "not-a-pkcs11-uri", "label", "")
	assert.ErrorIs(t, err, dsig.ErrKeyLoad)
}
