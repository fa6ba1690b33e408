// Package dsig implements the XML signature engine for go-xmlsign: loading
// key material, filling signature templates in place, and verifying filled
// signatures.
//
// A signature template is a Signature subtree whose DigestValue and
// SignatureValue slots are empty. The engine resolves each Reference (by
// registered identifier or by enveloped containment), canonicalizes and
// digests the referenced content, then canonicalizes SignedInfo and signs it
// with the bound key. Canonicalization is delegated to goxmldsig; XML parsing
// and serialization to etree.
package dsig

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	xmldsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"

	"github.com/SUNET/go-xmlsign/pkg/xmltree"
)

// State tracks the lifecycle of a TemplateSigner.
type State int

const (
	// StateLoaded means the signer exists but no key is bound yet.
	StateLoaded State = iota
	// StateKeyBound means a private key has been attached.
	StateKeyBound
	// StateSigned means the template was signed successfully.
	StateSigned
	// StateFailed means signing failed; the signer must not be reused.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateKeyBound:
		return "key-bound"
	case StateSigned:
		return "signed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TemplateSigner signs one signature template with one key. Multiple
// templates in a document are signed independently: each gets a fresh
// TemplateSigner so no mutable signing state is shared between them.
type TemplateSigner struct {
	key   *KeyMaterial
	state State
}

// NewTemplateSigner creates a signer in the Loaded state.
func NewTemplateSigner() *TemplateSigner {
	return &TemplateSigner{state: StateLoaded}
}

// BindKey attaches the private key used for signing, moving the signer into
// the KeyBound state.
func (s *TemplateSigner) BindKey(key *KeyMaterial) error {
	if key == nil || key.Signer == nil {
		return fmt.Errorf("%w: no key material", ErrKeyLoad)
	}
	s.key = key
	s.state = StateKeyBound
	return nil
}

// State returns the signer's current lifecycle state.
func (s *TemplateSigner) State() State {
	return s.state
}

// Sign fills the signature template rooted at sig in place: it computes and
// stores a digest for every Reference in document order, then canonicalizes
// SignedInfo, signs it with the bound key and stores the signature value.
// Identifier-based reference URIs are resolved through reg.
//
// Only the template subtree is mutated; content outside it is read for
// digesting but never modified.
func (s *TemplateSigner) Sign(sig *etree.Element, reg *xmltree.Registry) error {
	if s.state != StateKeyBound {
		return fmt.Errorf("%w: signer is %s, expected key-bound", ErrSigning, s.state)
	}

	if err := s.sign(sig, reg); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StateSigned
	return nil
}

func (s *TemplateSigner) sign(sig *etree.Element, reg *xmltree.Registry) error {
	si, err := parseSignedInfo(sig)
	if err != nil {
		return err
	}

	for _, ref := range si.refs {
		digest, err := digestReference(ref, sig, reg)
		if err != nil {
			return err
		}
		setSlotText(ref.el, NodeDigestValue, digest)
	}

	sigValue, err := s.signSignedInfo(si)
	if err != nil {
		return err
	}
	setSlotText(sig, NodeSignatureValue, sigValue)

	s.fillKeyInfo(sig)
	return nil
}

// signSignedInfo canonicalizes the SignedInfo block (with its inherited
// namespace declarations attached) and signs the digest with the bound key.
func (s *TemplateSigner) signSignedInfo(si *signedInfo) (string, error) {
	detached, err := detachWithNamespaces(si.el)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	canonical, err := si.canon.Canonicalize(detached)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalization of SignedInfo: %v", ErrSigning, err)
	}

	h := si.hash.New()
	h.Write(canonical)

	raw, err := s.key.Signer.Sign(rand.Reader, h.Sum(nil), si.hash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// fillKeyInfo fills empty KeyName and X509Certificate slots when the
// template declares them and the key material carries the values.
func (s *TemplateSigner) fillKeyInfo(sig *etree.Element) {
	ki := childNS(sig, NodeKeyInfo)
	if ki == nil {
		return
	}
	if kn := childNS(ki, NodeKeyName); kn != nil && strings.TrimSpace(kn.Text()) == "" && s.key.Name != "" {
		kn.SetText(s.key.Name)
	}
	if s.key.Certificate != nil {
		if xd := childNS(ki, NodeX509Data); xd != nil {
			if xc := childNS(xd, NodeX509Certificate); xc != nil && strings.TrimSpace(xc.Text()) == "" {
				xc.SetText(base64.StdEncoding.EncodeToString(s.key.Certificate.Raw))
			}
		}
	}
}

// signedInfo is the parsed SignedInfo block of a template.
type signedInfo struct {
	el    *etree.Element
	canon xmldsig.Canonicalizer
	hash  crypto.Hash
	refs  []*reference
}

// reference is one parsed Reference entry.
type reference struct {
	el        *etree.Element
	uri       string
	hash      crypto.Hash
	canon     xmldsig.Canonicalizer
	enveloped bool
}

// parseSignedInfo validates the template structure and resolves its declared
// algorithms. It is shared by signing and verification.
func parseSignedInfo(sig *etree.Element) (*signedInfo, error) {
	siEl := childNS(sig, NodeSignedInfo)
	if siEl == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedTemplate, NodeSignedInfo)
	}

	cm := childNS(siEl, NodeCanonicalizationMethod)
	if cm == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedTemplate, NodeCanonicalizationMethod)
	}
	canon, err := canonicalizer(cm.SelectAttrValue("Algorithm", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	sm := childNS(siEl, NodeSignatureMethod)
	if sm == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedTemplate, NodeSignatureMethod)
	}
	hash, err := signatureHash(sm.SelectAttrValue("Algorithm", ""))
	if err != nil {
		return nil, err
	}

	si := &signedInfo{el: siEl, canon: canon, hash: hash}

	for _, refEl := range childrenNS(siEl, NodeReference) {
		ref := &reference{
			el:  refEl,
			uri: refEl.SelectAttrValue("URI", ""),
		}

		dm := childNS(refEl, NodeDigestMethod)
		if dm == nil {
			return nil, fmt.Errorf("%w: reference %q missing %s", ErrMalformedTemplate, ref.uri, NodeDigestMethod)
		}
		ref.hash, err = digestHash(dm.SelectAttrValue("Algorithm", ""))
		if err != nil {
			return nil, err
		}

		if transforms := childNS(refEl, NodeTransforms); transforms != nil {
			for _, tr := range childrenNS(transforms, NodeTransform) {
				alg := tr.SelectAttrValue("Algorithm", "")
				if alg == EnvelopedSignatureTransform {
					ref.enveloped = true
					continue
				}
				ref.canon, err = canonicalizer(alg)
				if err != nil {
					return nil, fmt.Errorf("%w: reference %q: %v", ErrDigest, ref.uri, err)
				}
			}
		}
		// References without a canonicalization transform are digested
		// over the SignedInfo canonicalization.
		if ref.canon == nil {
			ref.canon = canon
		}

		si.refs = append(si.refs, ref)
	}

	if len(si.refs) == 0 {
		return nil, fmt.Errorf("%w: no Reference entries", ErrMalformedTemplate)
	}
	return si, nil
}

// digestReference resolves a reference, applies its transforms and computes
// the base64-encoded digest of the canonicalized content.
func digestReference(ref *reference, sig *etree.Element, reg *xmltree.Registry) (string, error) {
	target, err := resolveReference(ref.uri, sig, reg)
	if err != nil {
		return "", err
	}

	detached, err := detachWithNamespaces(target)
	if err != nil {
		return "", fmt.Errorf("%w: reference %q: %v", ErrDigest, ref.uri, err)
	}
	if ref.enveloped {
		xmltree.RemoveSignatures(detached, Namespace)
	}

	canonical, err := ref.canon.Canonicalize(detached)
	if err != nil {
		return "", fmt.Errorf("%w: reference %q: %v", ErrDigest, ref.uri, err)
	}

	h := ref.hash.New()
	h.Write(canonical)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// resolveReference maps a Reference URI to its target element: "" selects
// the document root (enveloped containment), "#value" selects a registered
// identifier. Anything else is unresolvable; external references are not
// supported.
func resolveReference(uri string, sig *etree.Element, reg *xmltree.Registry) (*etree.Element, error) {
	switch {
	case uri == "":
		return documentRoot(sig), nil
	case strings.HasPrefix(uri, "#"):
		id := uri[1:]
		if reg == nil {
			return nil, fmt.Errorf("%w: %q: no identifier registry", ErrReferenceResolution, uri)
		}
		target := reg.Lookup(id)
		if target == nil {
			return nil, fmt.Errorf("%w: identifier %q is not registered", ErrReferenceResolution, id)
		}
		return target, nil
	default:
		return nil, fmt.Errorf("%w: external reference %q is not supported", ErrReferenceResolution, uri)
	}
}

// documentRoot climbs from el to the top-most element of its document.
func documentRoot(el *etree.Element) *etree.Element {
	root := el
	for p := root.Parent(); p != nil && p.Tag != ""; p = root.Parent() {
		root = p
	}
	return root
}

// detachWithNamespaces copies a subtree, attaching namespace declarations
// inherited from its ancestors so it canonicalizes the same way detached as
// it does in place.
func detachWithNamespaces(el *etree.Element) (*etree.Element, error) {
	ctx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, err
	}
	ctx, err = ctx.SubContext(el)
	if err != nil {
		return nil, err
	}
	return etreeutils.NSDetatch(ctx, el)
}

// childNS returns the first direct child of el with the given local name in
// the signature namespace.
func childNS(el *etree.Element, localName string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == localName && child.NamespaceURI() == Namespace {
			return child
		}
	}
	return nil
}

// childrenNS returns all direct children of el with the given local name in
// the signature namespace, in document order.
func childrenNS(el *etree.Element, localName string) []*etree.Element {
	var children []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == localName && child.NamespaceURI() == Namespace {
			children = append(children, child)
		}
	}
	return children
}

// setSlotText fills the named child slot of el, creating it with el's prefix
// when the template omitted it.
func setSlotText(el *etree.Element, localName, text string) {
	slot := childNS(el, localName)
	if slot == nil {
		name := localName
		if el.Space != "" {
			name = el.Space + ":" + localName
		}
		slot = el.CreateElement(name)
	}
	slot.SetText(text)
}
