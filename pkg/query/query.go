package query

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/SUNET/go-xmlsign/pkg/xmltree"
)

var (
	// ErrInvalidExpression is returned when a path expression cannot be
	// compiled.
	ErrInvalidExpression = errors.New("invalid path expression")

	// ErrContextMissing is returned when the queried document has no root
	// element.
	ErrContextMissing = errors.New("document has no root element")
)

// Match is a single query result, tagged with the kind of node that matched
// so callers can filter without inspecting runtime types.
type Match struct {
	Kind         xmltree.Kind
	Name         string
	NamespaceURI string

	// Element is set for KindElement matches, and holds the owning element
	// for attribute, namespace and text matches.
	Element *etree.Element

	// Attribute is set for KindAttribute and KindNamespaceDecl matches.
	Attribute *etree.Attr

	// Text is set for KindText matches.
	Text string
}

// step is one location step of a compiled expression.
type step struct {
	descendant bool // search the whole subtree instead of direct children
	prefix     string
	name       string // local name, "*", "@attr" handled via attribute/text flags
	attribute  bool
	text       bool
	wildcard   bool
}

// Expression is a compiled path expression. Compile once, evaluate many times.
type Expression struct {
	source string
	steps  []step
}

// String returns the original expression text.
func (e *Expression) String() string {
	return e.source
}

// Compile parses a path expression into an Expression. The supported syntax
// is a subset of XPath:
//
//	//sig:Signature          all Signature elements in the sig namespace
//	/root/child              children selected from the document root
//	//cert:certificate/@id   an attribute of matched elements (final step only)
//	//entry/text()           text content of matched elements (final step only)
//	//container/*            any child element
//
// A leading "//" selects descendants anywhere in the document; "//" between
// steps selects descendants of the current match set.
func Compile(expr string) (*Expression, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	if !strings.HasPrefix(expr, "/") {
		return nil, fmt.Errorf("%w: %q must be an absolute path", ErrInvalidExpression, expr)
	}

	var steps []step
	rest := expr
	for rest != "" {
		var s step
		switch {
		case strings.HasPrefix(rest, "//"):
			s.descendant = true
			rest = rest[2:]
		case strings.HasPrefix(rest, "/"):
			rest = rest[1:]
		}

		name := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name = rest[:i]
			rest = rest[i:]
		} else {
			rest = ""
		}
		if name == "" {
			return nil, fmt.Errorf("%w: %q has an empty location step", ErrInvalidExpression, expr)
		}

		switch {
		case strings.HasPrefix(name, "@"):
			s.attribute = true
			name = name[1:]
			if name == "" {
				return nil, fmt.Errorf("%w: %q has an empty attribute step", ErrInvalidExpression, expr)
			}
		case name == "text()":
			s.text = true
		}

		if !s.text {
			if prefix, local, found := strings.Cut(name, ":"); found {
				if prefix == "" || local == "" {
					return nil, fmt.Errorf("%w: %q has a malformed name test", ErrInvalidExpression, expr)
				}
				s.prefix = prefix
				s.name = local
			} else {
				s.name = name
			}
			if s.name == "*" {
				s.wildcard = true
			}
		}

		steps = append(steps, s)

		if (s.attribute || s.text) && rest != "" {
			return nil, fmt.Errorf("%w: %q selects non-elements before the final step", ErrInvalidExpression, expr)
		}
	}

	return &Expression{source: expr, steps: steps}, nil
}

// Evaluate compiles and evaluates the expression against the document,
// resolving prefixes through the supplied bindings. Results preserve document
// order. It returns ErrContextMissing when the document has no root element.
func Evaluate(doc *etree.Document, bindings Bindings, expr string) ([]Match, error) {
	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return compiled.Evaluate(doc, bindings)
}

// Evaluate runs the compiled expression against the document.
func (e *Expression) Evaluate(doc *etree.Document, bindings Bindings) ([]Match, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: expression %q", ErrContextMissing, e.source)
	}

	// The current element set; starts as the virtual document node, whose
	// only child element is the root.
	current := []*etree.Element{}
	virtualDoc := true

	for i, s := range e.steps {
		if s.attribute || s.text {
			// Final step; handled below after element navigation.
			if i != len(e.steps)-1 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidExpression, e.source)
			}
			return e.leafMatches(current, s, bindings)
		}

		uri, err := bindings.Resolve(s.prefix)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", e.source, err)
		}

		var next []*etree.Element
		seen := map[*etree.Element]bool{}
		appendMatch := func(el *etree.Element) {
			if seen[el] {
				return
			}
			if !s.wildcard && el.Tag != s.name {
				return
			}
			if !s.wildcard && el.NamespaceURI() != uri {
				return
			}
			seen[el] = true
			next = append(next, el)
		}

		if virtualDoc {
			if s.descendant {
				walkElements(root, appendMatch)
			} else {
				appendMatch(root)
			}
			virtualDoc = false
		} else {
			for _, el := range current {
				if s.descendant {
					for _, child := range el.ChildElements() {
						walkElements(child, appendMatch)
					}
				} else {
					for _, child := range el.ChildElements() {
						appendMatch(child)
					}
				}
			}
		}
		current = next
	}

	matches := make([]Match, 0, len(current))
	for _, el := range current {
		matches = append(matches, Match{
			Kind:         xmltree.KindElement,
			Name:         el.Tag,
			NamespaceURI: el.NamespaceURI(),
			Element:      el,
		})
	}
	return matches, nil
}

// leafMatches resolves a final attribute or text() step against the current
// element set.
func (e *Expression) leafMatches(current []*etree.Element, s step, bindings Bindings) ([]Match, error) {
	var matches []Match
	for _, el := range current {
		if s.text {
			for _, child := range el.Child {
				if cd, ok := child.(*etree.CharData); ok {
					matches = append(matches, Match{
						Kind:    xmltree.KindText,
						Name:    el.Tag,
						Element: el,
						Text:    cd.Data,
					})
				}
			}
			continue
		}

		for i := range el.Attr {
			attr := &el.Attr[i]
			if !s.wildcard && attr.Key != s.name {
				continue
			}
			if !s.wildcard && attr.Space != s.prefix {
				continue
			}
			kind := xmltree.KindAttribute
			if attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns") {
				kind = xmltree.KindNamespaceDecl
			}
			matches = append(matches, Match{
				Kind:         kind,
				Name:         attr.Key,
				NamespaceURI: attr.NamespaceURI(),
				Element:      el,
				Attribute:    attr,
			})
		}
	}
	return matches, nil
}

// walkElements visits el and all its descendant elements in document order.
func walkElements(el *etree.Element, visit func(*etree.Element)) {
	visit(el)
	for _, child := range el.ChildElements() {
		walkElements(child, visit)
	}
}

// Describe writes a diagnostic dump of the match set to w: one line per match
// reporting its kind, name and, for elements, the namespace URI.
func Describe(w io.Writer, matches []Match) {
	fmt.Fprintf(w, "Result (%d nodes):\n", len(matches))
	for _, m := range matches {
		switch m.Kind {
		case xmltree.KindElement:
			if m.NamespaceURI != "" {
				fmt.Fprintf(w, "= element node \"%s:%s\"\n", m.NamespaceURI, m.Name)
			} else {
				fmt.Fprintf(w, "= element node \"%s\"\n", m.Name)
			}
		case xmltree.KindNamespaceDecl:
			fmt.Fprintf(w, "= namespace \"%s\"=\"%s\" for node %s\n", m.Name, m.Attribute.Value, m.Element.Tag)
		case xmltree.KindAttribute:
			fmt.Fprintf(w, "= attribute \"%s\" on node %s\n", m.Name, m.Element.Tag)
		case xmltree.KindText:
			fmt.Fprintf(w, "= text node in %s\n", m.Name)
		}
	}
}
