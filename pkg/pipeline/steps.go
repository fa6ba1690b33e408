package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/beevik/etree"

	"github.com/SUNET/go-xmlsign/pkg/config"
	"github.com/SUNET/go-xmlsign/pkg/dsig"
	"github.com/SUNET/go-xmlsign/pkg/logging"
	"github.com/SUNET/go-xmlsign/pkg/query"
	"github.com/SUNET/go-xmlsign/pkg/xmltree"
)

var (
	// ErrParse is returned when the input document is malformed or has no
	// root element. Parse failures are unrecoverable for the run.
	ErrParse = errors.New("failed to parse document")

	// ErrRequiredNodeMissing is returned when a node that must be present
	// (certificates container, certificate, or its identifier attribute)
	// cannot be located or registered.
	ErrRequiredNodeMissing = errors.New("required node missing")

	// ErrQuery is returned when signature template query evaluation fails.
	ErrQuery = errors.New("query failed")

	// ErrNoSignatureTemplate is returned when the document contains no
	// signature template to sign.
	ErrNoSignatureTemplate = errors.New("no signature template found")
)

// PipeFunc is the type of a pipeline step: it receives the owning Pipeline,
// the current Context and the step arguments, and returns the (possibly
// replaced) Context or an error that aborts the run.
type PipeFunc func(pl *Pipeline, ctx *Context, args ...string) (*Context, error)

// Internal registry for mapping methodName to Go functions
var functionRegistry = make(map[string]PipeFunc)

// RegisterFunction registers a Go function with a methodName.
func RegisterFunction(name string, fn PipeFunc) {
	functionRegistry[name] = fn
}

// GetFunctionByName retrieves a registered function by methodName.
func GetFunctionByName(name string) (PipeFunc, bool) {
	fn, ok := functionRegistry[name]
	return fn, ok
}

// @PipelineStep("load")
func loadDocument(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
	if len(args) == 0 {
		return ctx, fmt.Errorf("load: a template file path must be provided")
	}
	path := args[0]

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return ctx, fmt.Errorf("%w: %q: %v", ErrParse, path, err)
	}
	if doc.Root() == nil {
		return ctx, fmt.Errorf("%w: %q: no root element", ErrParse, path)
	}

	ctx.Doc = doc
	ctx.Source = path
	ctx.EnsureRegistry()
	pl.Logger.Debug("Template document loaded", logging.F("file", path))
	return ctx, nil
}

// @PipelineStep("register-ids")
//
// register-ids locates the certificates container and the first certificate
// node within it, then registers the identifier attribute of both so that
// signature references can resolve them by #id.
//
// Args: attribute name, namespace URI, container local name, leaf local name.
func registerIdentifiers(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
	if len(args) != 4 {
		return ctx, fmt.Errorf("register-ids: expected <attr> <namespace> <container> <leaf>, got %d args", len(args))
	}
	attrName, nsURI, containerName, leafName := args[0], args[1], args[2], args[3]

	root := ctx.Root()
	if root == nil {
		return ctx, fmt.Errorf("%w: no document loaded", ErrParse)
	}
	ctx.EnsureRegistry()

	for _, localName := range []string{containerName, leafName} {
		node := xmltree.FindFirst(root, localName, nsURI)
		if node == nil {
			return ctx, fmt.Errorf("%w: no <%s> element in namespace %q", ErrRequiredNodeMissing, localName, nsURI)
		}
		if err := ctx.Registry.Register(node, attrName); err != nil {
			return ctx, fmt.Errorf("%w: <%s>: %w", ErrRequiredNodeMissing, localName, err)
		}
		pl.Logger.Debug("Identifier registered",
			logging.F("element", localName),
			logging.F("attribute", attrName))
	}
	return ctx, nil
}

// @PipelineStep("query")
//
// query evaluates the signature template selection expression and records
// the match set on the context. The match set is described on stderr for
// diagnostics, mirroring the matched node kinds and names.
//
// Args: namespace binding list ("prefix=uri ..."), path expression.
func querySignatures(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
	if len(args) != 2 {
		return ctx, fmt.Errorf("query: expected <bindings> <expression>, got %d args", len(args))
	}
	bindingList, expr := args[0], args[1]

	if ctx.Doc == nil {
		return ctx, fmt.Errorf("%w: no document loaded", ErrParse)
	}

	bindings, err := query.ParseBindings(bindingList)
	if err != nil {
		return ctx, err
	}

	matches, err := query.Evaluate(ctx.Doc, bindings, expr)
	if err != nil {
		return ctx, fmt.Errorf("%w: expression %q: %w", ErrQuery, expr, err)
	}

	query.Describe(os.Stderr, matches)
	ctx.Matches = matches
	pl.Logger.Info("Signature query evaluated",
		logging.F("expression", expr),
		logging.F("matches", len(matches)))
	return ctx, nil
}

// @PipelineStep("sign")
//
// sign verifies that at least one signature template anchor exists, freezes
// the identifier registry and signs every element-typed query match in
// document order. The run aborts on the first failed template.
//
// Args: private key PEM path (optional when key material is already bound
// on the context, for example from a PKCS#12 bundle or a PKCS#11 token).
func signTemplates(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
	root := ctx.Root()
	if root == nil {
		return ctx, fmt.Errorf("%w: no document loaded", ErrParse)
	}

	if ctx.Key == nil {
		if len(args) == 0 {
			return ctx, fmt.Errorf("sign: a private key file path must be provided")
		}
		key, err := dsig.LoadKeyPEM(args[0])
		if err != nil {
			return ctx, err
		}
		ctx.Key = key
	}

	// Anchor check: at least one signature template must exist.
	if xmltree.FindFirst(root, dsig.NodeSignature, dsig.Namespace) == nil {
		return ctx, fmt.Errorf("%w: in %q", ErrNoSignatureTemplate, ctx.Source)
	}

	// Registration is complete before any signing begins.
	ctx.EnsureRegistry().Registry.Freeze()

	for _, match := range ctx.Matches {
		if match.Kind != xmltree.KindElement {
			continue
		}
		signer := dsig.NewTemplateSigner()
		if err := signer.BindKey(ctx.Key); err != nil {
			return ctx, err
		}
		if err := signer.Sign(match.Element, ctx.Registry); err != nil {
			return ctx, fmt.Errorf("signing template %d of %d: %w", ctx.Signed+1, len(ctx.Matches), err)
		}
		ctx.Signed++
		pl.Logger.Debug("Template signed",
			logging.F("template", ctx.Signed),
			logging.F("state", signer.State().String()))
	}

	pl.Logger.Info("All templates signed",
		logging.F("count", ctx.Signed),
		logging.F("key", ctx.Key.Name))
	return ctx, nil
}

// @PipelineStep("publish")
//
// publish serializes the signed document. With no arguments the document is
// written to the context output (stdout for the CLI); with a path argument
// it is written to that file. Publish runs only after every template signed
// successfully, so a failed run emits no output.
func publishDocument(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
	if ctx.Doc == nil {
		return ctx, fmt.Errorf("%w: no document loaded", ErrParse)
	}

	if len(args) > 0 && args[0] != "" && args[0] != "-" {
		if err := ctx.Doc.WriteToFile(args[0]); err != nil {
			return ctx, fmt.Errorf("publish: %w", err)
		}
		pl.Logger.Info("Signed document written", logging.F("file", args[0]))
		return ctx, nil
	}

	if _, err := ctx.Doc.WriteTo(ctx.Output); err != nil {
		return ctx, fmt.Errorf("publish: %w", err)
	}
	return ctx, nil
}

// @PipelineStep("echo")
func echo(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
	pl.Logger.Info("echo", logging.F("args", args))
	return ctx, nil
}

// DefaultPipes builds the standard signing sequence for the CLI:
// load, register-ids, query, sign, publish.
func DefaultPipes(templatePath, keyPath string, signing config.SigningConfig) []Pipe {
	return []Pipe{
		{MethodName: "load", MethodArguments: []string{templatePath}},
		{MethodName: "register-ids", MethodArguments: []string{
			signing.IDAttribute,
			signing.CertificatesNamespace,
			signing.CertificatesContainer,
			signing.CertificateNode,
		}},
		{MethodName: "query", MethodArguments: []string{
			signing.NamespaceBindings,
			signing.QueryExpression,
		}},
		{MethodName: "sign", MethodArguments: []string{keyPath}},
		{MethodName: "publish", MethodArguments: nil},
	}
}

// Register the pipeline step functions
func init() {
	RegisterFunction("echo", echo)
	RegisterFunction("load", loadDocument)
	RegisterFunction("register-ids", registerIdentifiers)
	RegisterFunction("query", querySignatures)
	RegisterFunction("sign", signTemplates)
	RegisterFunction("publish", publishDocument)
}
