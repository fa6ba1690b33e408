package pipeline

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"

	"github.com/SUNET/go-xmlsign/pkg/config"
	"github.com/SUNET/go-xmlsign/pkg/dsig"
	"github.com/SUNET/go-xmlsign/pkg/logging"
)

// RequestPipes builds the signing sequence for in-memory documents:
// register-ids, query, sign, publish. The document and key material are
// supplied on the context instead of being loaded from files.
func RequestPipes(signing config.SigningConfig) []Pipe {
	return []Pipe{
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
		{MethodName: "sign", MethodArguments: nil},
		{MethodName: "publish", MethodArguments: nil},
	}
}

// SignBytes signs an in-memory document with the given key material and
// returns the serialized signed document along with the number of templates
// signed. It is used by the HTTP signing service; the CLI goes through
// DefaultPipes instead.
func SignBytes(data []byte, key *dsig.KeyMaterial, signing config.SigningConfig, logger logging.Logger) ([]byte, int, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Root() == nil {
		return nil, 0, fmt.Errorf("%w: no root element", ErrParse)
	}

	ctx := NewContext()
	ctx.Doc = doc
	ctx.Source = "(request)"
	ctx.Key = key

	var buf bytes.Buffer
	ctx.Output = &buf

	pl := New(RequestPipes(signing), logger)
	ctx, err := pl.Process(ctx)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), ctx.Signed, nil
}
