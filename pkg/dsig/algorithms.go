package dsig

import (
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"

	xmldsig "github.com/russellhaering/goxmldsig"
)

// Namespace is the XML digital signature namespace.
const Namespace = "http://www.w3.org/2000/09/xmldsig#"

// Element names within the signature namespace.
const (
	NodeSignature              = "Signature"
	NodeSignedInfo             = "SignedInfo"
	NodeCanonicalizationMethod = "CanonicalizationMethod"
	NodeSignatureMethod        = "SignatureMethod"
	NodeReference              = "Reference"
	NodeTransforms             = "Transforms"
	NodeTransform              = "Transform"
	NodeDigestMethod           = "DigestMethod"
	NodeDigestValue            = "DigestValue"
	NodeSignatureValue         = "SignatureValue"
	NodeKeyInfo                = "KeyInfo"
	NodeKeyName                = "KeyName"
	NodeX509Data               = "X509Data"
	NodeX509Certificate        = "X509Certificate"
)

// EnvelopedSignatureTransform is the transform algorithm excluding Signature
// elements from the digested content.
const EnvelopedSignatureTransform = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

// digestAlgorithms maps DigestMethod algorithm URIs to hash functions.
var digestAlgorithms = map[string]crypto.Hash{
	"http://www.w3.org/2000/09/xmldsig#sha1":  crypto.SHA1,
	"http://www.w3.org/2001/04/xmlenc#sha256": crypto.SHA256,
	"http://www.w3.org/2001/04/xmlenc#sha512": crypto.SHA512,
}

// signatureAlgorithms maps SignatureMethod algorithm URIs to the hash used
// with RSA PKCS#1 v1.5 signing.
var signatureAlgorithms = map[string]crypto.Hash{
	"http://www.w3.org/2000/09/xmldsig#rsa-sha1":        crypto.SHA1,
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha256": crypto.SHA256,
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha512": crypto.SHA512,
}

// canonicalizers maps CanonicalizationMethod and canonicalization Transform
// algorithm URIs to canonicalizer constructors. Canonicalizers are stateful,
// so a fresh instance is built for every use.
var canonicalizers = map[string]func() xmldsig.Canonicalizer{
	"http://www.w3.org/2001/10/xml-exc-c14n#": func() xmldsig.Canonicalizer {
		return xmldsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	},
	"http://www.w3.org/TR/2001/REC-xml-c14n-20010315": func() xmldsig.Canonicalizer {
		return xmldsig.MakeC14N10RecCanonicalizer()
	},
	"http://www.w3.org/TR/2001/REC-xml-c14n-20010315#WithComments": func() xmldsig.Canonicalizer {
		return xmldsig.MakeC14N10WithCommentsCanonicalizer()
	},
	"http://www.w3.org/2006/12/xml-c14n11": func() xmldsig.Canonicalizer {
		return xmldsig.MakeC14N11Canonicalizer()
	},
}

// digestHash resolves a DigestMethod algorithm URI.
func digestHash(uri string) (crypto.Hash, error) {
	h, ok := digestAlgorithms[uri]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported digest algorithm %q", ErrDigest, uri)
	}
	return h, nil
}

// signatureHash resolves a SignatureMethod algorithm URI.
func signatureHash(uri string) (crypto.Hash, error) {
	h, ok := signatureAlgorithms[uri]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported signature algorithm %q", ErrSigning, uri)
	}
	return h, nil
}

// canonicalizer resolves a canonicalization algorithm URI.
func canonicalizer(uri string) (xmldsig.Canonicalizer, error) {
	mk, ok := canonicalizers[uri]
	if !ok {
		return nil, fmt.Errorf("unsupported canonicalization algorithm %q", uri)
	}
	return mk(), nil
}
