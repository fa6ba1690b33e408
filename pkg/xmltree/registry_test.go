package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	doc := parseDoc(t, `<root><a id="alpha"/><b id="beta"/></root>`)
	a := FindFirst(doc.Root(), "a", "")
	b := FindFirst(doc.Root(), "b", "")

	reg := NewRegistry()
	require.NoError(t, reg.Register(a, "id"))
	require.NoError(t, reg.Register(b, "id"))

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, a, reg.Lookup("alpha"))
	assert.Equal(t, b, reg.Lookup("beta"))
	assert.Nil(t, reg.Lookup("gamma"))
}

func TestRegistry_MissingAttribute(t *testing.T) {
	doc := parseDoc(t, `<root><a/><b id=""/></root>`)
	reg := NewRegistry()

	err := reg.Register(FindFirst(doc.Root(), "a", ""), "id")
	assert.ErrorIs(t, err, ErrMissingAttribute)

	// An empty attribute value counts as missing.
	err = reg.Register(FindFirst(doc.Root(), "b", ""), "id")
	assert.ErrorIs(t, err, ErrMissingAttribute)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	doc := parseDoc(t, `<root><a id="same"/><b id="same"/></root>`)
	a := FindFirst(doc.Root(), "a", "")
	b := FindFirst(doc.Root(), "b", "")

	reg := NewRegistry()
	require.NoError(t, reg.Register(a, "id"))

	err := reg.Register(b, "id")
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)
	// The first registration wins and is not overwritten.
	assert.Equal(t, a, reg.Lookup("same"))
}

func TestRegistry_Freeze(t *testing.T) {
	doc := parseDoc(t, `<root><a id="alpha"/><b id="beta"/></root>`)
	a := FindFirst(doc.Root(), "a", "")
	b := FindFirst(doc.Root(), "b", "")

	reg := NewRegistry()
	require.NoError(t, reg.Register(a, "id"))
	reg.Freeze()

	err := reg.Register(b, "id")
	assert.ErrorIs(t, err, ErrRegistryFrozen)

	// Lookup keeps working after freezing.
	assert.Equal(t, a, reg.Lookup("alpha"))
}

func TestRegistry_CustomAttributeName(t *testing.T) {
	doc := parseDoc(t, `<root><a ref="alpha" id="ignored"/></root>`)
	a := FindFirst(doc.Root(), "a", "")

	reg := NewRegistry()
	require.NoError(t, reg.Register(a, "ref"))
	assert.Equal(t, a, reg.Lookup("alpha"))
	assert.Nil(t, reg.Lookup("ignored"))
}
