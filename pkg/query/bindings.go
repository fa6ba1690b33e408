// Package query evaluates namespace-scoped path expressions against parsed
// XML documents. Expressions use a compact XPath-like subset (absolute and
// descendant paths, namespace-prefixed name tests, wildcards and attribute
// steps) with prefixes resolved through caller-supplied namespace bindings.
package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedBindingList is returned when the binding list syntax is
	// invalid (an entry without '=').
	ErrMalformedBindingList = errors.New("malformed namespace binding list")

	// ErrNamespaceRegistrationFailed is returned when a prefix cannot be
	// registered because it is reserved or already bound.
	ErrNamespaceRegistrationFailed = errors.New("namespace registration failed")
)

// Bindings maps namespace prefixes to namespace URIs. A binding set is built
// once from a flat list and treated as immutable for the lifetime of the
// queries that use it.
type Bindings map[string]string

// reserved prefixes per the XML namespaces recommendation.
var reservedPrefixes = map[string]bool{
	"xml":   true,
	"xmlns": true,
}

// ParseBindings parses a whitespace-separated list of prefix=uri pairs, for
// example:
//
//	sig=http://www.w3.org/2000/09/xmldsig# cert=http://example.com/certs
//
// It returns ErrMalformedBindingList when an entry lacks '=' or has an empty
// prefix or URI, and ErrNamespaceRegistrationFailed when a prefix is reserved
// or bound twice.
func ParseBindings(list string) (Bindings, error) {
	bindings := make(Bindings)
	for _, entry := range strings.Fields(list) {
		prefix, uri, found := strings.Cut(entry, "=")
		if !found || prefix == "" || uri == "" {
			return nil, fmt.Errorf("%w: entry %q", ErrMalformedBindingList, entry)
		}
		if reservedPrefixes[prefix] {
			return nil, fmt.Errorf("%w: prefix %q is reserved", ErrNamespaceRegistrationFailed, prefix)
		}
		if _, bound := bindings[prefix]; bound {
			return nil, fmt.Errorf("%w: prefix %q bound twice", ErrNamespaceRegistrationFailed, prefix)
		}
		bindings[prefix] = uri
	}
	return bindings, nil
}

// Resolve returns the URI bound to prefix, or an error if the prefix is not
// bound. The empty prefix resolves to the empty URI (no namespace).
func (b Bindings) Resolve(prefix string) (string, error) {
	if prefix == "" {
		return "", nil
	}
	uri, ok := b[prefix]
	if !ok {
		return "", fmt.Errorf("%w: prefix %q is not bound", ErrNamespaceRegistrationFailed, prefix)
	}
	return uri, nil
}
