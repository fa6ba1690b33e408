package dsig

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/SUNET/go-xmlsign/pkg/xmltree"
)

// VerifySignature checks one filled signature element against the public
// counterpart of the signing key. It recomputes the digest of every
// Reference and compares it to the stored DigestValue, then canonicalizes
// SignedInfo and verifies the SignatureValue. Identifier-based references
// are resolved through reg, which must contain the same registrations that
// were in effect when the document was signed.
func VerifySignature(sig *etree.Element, pub *rsa.PublicKey, reg *xmltree.Registry) error {
	si, err := parseSignedInfo(sig)
	if err != nil {
		return err
	}

	for _, ref := range si.refs {
		dv := childNS(ref.el, NodeDigestValue)
		if dv == nil || strings.TrimSpace(dv.Text()) == "" {
			return fmt.Errorf("%w: reference %q has no digest value", ErrVerification, ref.uri)
		}
		computed, err := digestReference(ref, sig, reg)
		if err != nil {
			return err
		}
		if computed != strings.TrimSpace(dv.Text()) {
			return fmt.Errorf("%w: digest mismatch for reference %q", ErrVerification, ref.uri)
		}
	}

	sv := childNS(sig, NodeSignatureValue)
	if sv == nil || strings.TrimSpace(sv.Text()) == "" {
		return fmt.Errorf("%w: empty signature value", ErrVerification)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sv.Text()))
	if err != nil {
		return fmt.Errorf("%w: signature value is not valid base64: %v", ErrVerification, err)
	}

	detached, err := detachWithNamespaces(si.el)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	canonical, err := si.canon.Canonicalize(detached)
	if err != nil {
		return fmt.Errorf("%w: canonicalization of SignedInfo: %v", ErrVerification, err)
	}

	h := si.hash.New()
	h.Write(canonical)
	if err := rsa.VerifyPKCS1v15(pub, si.hash, h.Sum(nil), raw); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return nil
}

// VerifyTemplates verifies every signature element in the document. It
// returns an error when the document contains no signatures, or when any
// signature fails to verify.
func VerifyTemplates(doc *etree.Document, pub *rsa.PublicKey, reg *xmltree.Registry) error {
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: document has no root element", ErrVerification)
	}

	signatures := xmltree.FindAll(root, NodeSignature, Namespace)
	if len(signatures) == 0 {
		return fmt.Errorf("%w: no signature elements found", ErrVerification)
	}

	for i, sig := range signatures {
		if err := VerifySignature(sig, pub, reg); err != nil {
			return fmt.Errorf("signature %d: %w", i+1, err)
		}
	}
	return nil
}
