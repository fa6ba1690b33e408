package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBindings_Valid(t *testing.T) {
	bindings, err := ParseBindings("sig=http://www.w3.org/2000/09/xmldsig# cert=http://example.com/certs")
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
	assert.Equal(t, "http://www.w3.org/2000/09/xmldsig#", bindings["sig"])
	assert.Equal(t, "http://example.com/certs", bindings["cert"])
}

func TestParseBindings_Empty(t *testing.T) {
	bindings, err := ParseBindings("")
	require.NoError(t, err)
	assert.Empty(t, bindings)

	bindings, err = ParseBindings("   \t\n  ")
	require.NoError(t, err)
	assert.Empty(t, bindings)
}

func TestParseBindings_MissingSeparator(t *testing.T) {
	_, err := ParseBindings("sig http://www.w3.org/2000/09/xmldsig#")
	assert.ErrorIs(t, err, ErrMalformedBindingList)
}

func TestParseBindings_EmptyPrefixOrURI(t *testing.T) {
	_, err := ParseBindings("=http://example.com")
	assert.ErrorIs(t, err, ErrMalformedBindingList)

	_, err = ParseBindings("sig=")
	assert.ErrorIs(t, err, ErrMalformedBindingList)
}

func TestParseBindings_ReservedPrefix(t *testing.T) {
	_, err := ParseBindings("xml=http://example.com")
	assert.ErrorIs(t, err, ErrNamespaceRegistrationFailed)

	_, err = ParseBindings("xmlns=http://example.com")
	assert.ErrorIs(t, err, ErrNamespaceRegistrationFailed)
}

func TestParseBindings_DuplicatePrefix(t *testing.T) {
	_, err := ParseBindings("sig=urn:one sig=urn:two")
	assert.ErrorIs(t, err, ErrNamespaceRegistrationFailed)
}

func TestParseBindings_URIWithEquals(t *testing.T) {
	// Only the first '=' separates prefix from URI.
	bindings, err := ParseBindings("q=urn:query?a=b")
	require.NoError(t, err)
	assert.Equal(t, "urn:query?a=b", bindings["q"])
}

func TestBindings_Resolve(t *testing.T) {
	bindings := Bindings{"sig": "urn:sig"}

	uri, err := bindings.Resolve("sig")
	require.NoError(t, err)
	assert.Equal(t, "urn:sig", uri)

	// The empty prefix means "no namespace".
	uri, err = bindings.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "", uri)

	_, err = bindings.Resolve("unbound")
	assert.ErrorIs(t, err, ErrNamespaceRegistrationFailed)
}
