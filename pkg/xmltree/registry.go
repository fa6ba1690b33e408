package xmltree

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

var (
	// ErrMissingAttribute is returned when the identifier attribute is
	// absent or empty on the node being registered.
	ErrMissingAttribute = errors.New("identifier attribute missing or empty")

	// ErrDuplicateIdentifier is returned when an identifier value has
	// already been registered in the same registry. Duplicate identifiers
	// are rejected rather than silently overwritten, so that two references
	// can never resolve to different nodes depending on registration order.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrRegistryFrozen is returned when Register is called after Freeze.
	ErrRegistryFrozen = errors.New("identifier registry is frozen")
)

// Registry maps attribute-declared identifier values to the elements that
// declared them, scoped to a single document. It is used to resolve
// identifier-based references (URI="#value") during signing.
//
// A Registry is not safe for concurrent mutation. Registration must complete
// before signing begins; call Freeze to make the registry read-only once all
// identifiers are recorded.
type Registry struct {
	ids    map[string]*etree.Element
	frozen bool
}

// NewRegistry creates an empty identifier registry for one document.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]*etree.Element)}
}

// Register reads the value of the named attribute on el and records a mapping
// from that value to el.
//
// It returns ErrMissingAttribute when the attribute is absent or empty,
// ErrDuplicateIdentifier when the value is already registered, and
// ErrRegistryFrozen when the registry has been frozen.
func (r *Registry) Register(el *etree.Element, attrName string) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	attr := el.SelectAttr(attrName)
	if attr == nil || attr.Value == "" {
		return fmt.Errorf("%w: attribute %q on <%s>", ErrMissingAttribute, attrName, el.Tag)
	}
	if _, exists := r.ids[attr.Value]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateIdentifier, attr.Value)
	}
	r.ids[attr.Value] = el
	return nil
}

// Lookup returns the element that declared the given identifier value, or nil
// if the identifier is not registered.
func (r *Registry) Lookup(id string) *etree.Element {
	return r.ids[id]
}

// Freeze makes the registry read-only. Subsequent Register calls fail with
// ErrRegistryFrozen. Lookup remains available and is safe for concurrent use
// once the registry is frozen.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Len returns the number of registered identifiers.
func (r *Registry) Len() int {
	return len(r.ids)
}
