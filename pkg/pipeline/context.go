package pipeline

import (
	"io"
	"os"

	"github.com/beevik/etree"

	"github.com/SUNET/go-xmlsign/pkg/dsig"
	"github.com/SUNET/go-xmlsign/pkg/query"
	"github.com/SUNET/go-xmlsign/pkg/xmltree"
)

// Context holds the shared state passed between pipeline steps during one
// signing run: the parsed document, its identifier registry, the matched
// signature templates and the bound key material.
//
// A Context is owned by a single run. Steps mutate the document and registry
// in place, so a Context must never be processed by two pipelines
// concurrently.
type Context struct {
	Doc      *etree.Document   // The document being signed
	Source   string            // Path the document was loaded from, for diagnostics
	Registry *xmltree.Registry // Identifier registry scoped to Doc
	Matches  []query.Match     // Query results selecting the signature templates
	Key      *dsig.KeyMaterial // Key material bound for signing
	Signed   int               // Number of templates signed so far
	Output   io.Writer         // Destination for the serialized signed document
}

// NewContext creates a pipeline context with an initialized identifier
// registry and output directed to stdout.
func NewContext() *Context {
	return &Context{
		Registry: xmltree.NewRegistry(),
		Output:   os.Stdout,
	}
}

// EnsureRegistry ensures the identifier registry is initialized.
// It returns the Context itself for method chaining.
func (ctx *Context) EnsureRegistry() *Context {
	if ctx.Registry == nil {
		ctx.Registry = xmltree.NewRegistry()
	}
	return ctx
}

// Root returns the document root element, or nil when no document is loaded.
func (ctx *Context) Root() *etree.Element {
	if ctx.Doc == nil {
		return nil
	}
	return ctx.Doc.Root()
}
