// Package xmltree provides helpers for working with parsed XML documents:
// locating elements by local name and namespace URI, registering
// attribute-declared identifiers for reference resolution, and pruning
// subtrees during signature transforms.
//
// The package operates on etree documents. Nodes are classified into a closed
// set of kinds (element, attribute, text, namespace declaration) so that
// callers can match exhaustively instead of inspecting runtime types.
package xmltree

import (
	"strings"

	"github.com/beevik/etree"
)

// Kind classifies a node encountered during traversal or query evaluation.
type Kind int

const (
	// KindElement is an element node.
	KindElement Kind = iota
	// KindAttribute is an attribute node.
	KindAttribute
	// KindText is a character data node.
	KindText
	// KindNamespaceDecl is a namespace declaration (xmlns / xmlns:prefix).
	KindNamespaceDecl
)

// String returns a human-readable name for the node kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindAttribute:
		return "attribute"
	case KindText:
		return "text"
	case KindNamespaceDecl:
		return "namespace"
	default:
		return "unknown"
	}
}

// FindFirst performs a pre-order traversal of the subtree rooted at root and
// returns the first element whose local name and namespace URI both match
// exactly. It returns nil when no such element exists; absence is a valid
// outcome, not an error.
//
// The function may be called repeatedly with different (localName, nsURI)
// pairs against the same or different starting elements.
func FindFirst(root *etree.Element, localName, nsURI string) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == localName && root.NamespaceURI() == nsURI {
		return root
	}
	for _, child := range root.ChildElements() {
		if found := FindFirst(child, localName, nsURI); found != nil {
			return found
		}
	}
	return nil
}

// FindAll collects, in document order, every element in the subtree rooted at
// root whose local name and namespace URI both match exactly.
func FindAll(root *etree.Element, localName, nsURI string) []*etree.Element {
	var matches []*etree.Element
	if root == nil {
		return matches
	}
	if root.Tag == localName && root.NamespaceURI() == nsURI {
		matches = append(matches, root)
	}
	for _, child := range root.ChildElements() {
		matches = append(matches, FindAll(child, localName, nsURI)...)
	}
	return matches
}

// RemoveWhitespace strips text nodes that consist only of whitespace from the
// subtree rooted at el. Useful for normalizing pretty-printed documents
// before signing, when indentation between elements carries no meaning.
func RemoveWhitespace(el *etree.Element) {
	var kept []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			RemoveWhitespace(c)
			kept = append(kept, c)
		case *etree.CharData:
			if strings.TrimSpace(c.Data) != "" {
				kept = append(kept, c)
			}
		default:
			kept = append(kept, c)
		}
	}
	el.Child = kept
}

// RemoveSignatures removes every element named Signature in the given
// namespace from the subtree rooted at el. It implements the
// enveloped-signature transform, which excludes signatures themselves from
// the digested content.
func RemoveSignatures(el *etree.Element, nsURI string) {
	var kept []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			if c.Tag == "Signature" && c.NamespaceURI() == nsURI {
				continue
			}
			RemoveSignatures(c, nsURI)
			kept = append(kept, c)
		default:
			kept = append(kept, c)
		}
	}
	el.Child = kept
}
