package dsig

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ThalesGroup/crypto11"
)

// PKCS11KeySource provides KeyMaterial backed by a PKCS#11 hardware token.
// The private key never leaves the token; signing is delegated to it through
// the crypto.Signer returned by crypto11.
type PKCS11KeySource struct {
	Config    *crypto11.Config
	context   *crypto11.Context
	keyLabel  string
	certLabel string
	keyID     string // hex ID for key and certificate lookups
}

// NewPKCS11KeySource creates a key source from a PKCS#11 configuration and
// key/certificate labels.
func NewPKCS11KeySource(config *crypto11.Config, keyLabel, certLabel string) *PKCS11KeySource {
	return &PKCS11KeySource{
		Config:    config,
		keyLabel:  keyLabel,
		certLabel: certLabel,
		keyID:     "01",
	}
}

// NewPKCS11KeySourceFromURI creates a key source from an RFC 7512 PKCS#11 URI.
func NewPKCS11KeySourceFromURI(pkcs11URI, keyLabel, certLabel string) (*PKCS11KeySource, error) {
	config := ParsePKCS11URI(pkcs11URI)
	if config == nil {
		return nil, fmt.Errorf("%w: invalid PKCS#11 URI %q", ErrKeyLoad, pkcs11URI)
	}
	return NewPKCS11KeySource(config, keyLabel, certLabel), nil
}

// SetKeyID sets the hex ID used for key and certificate lookups.
func (ps *PKCS11KeySource) SetKeyID(id string) {
	ps.keyID = id
}

// Load opens the token and resolves the configured key and certificate into
// KeyMaterial. The key name is set to the key label.
func (ps *PKCS11KeySource) Load() (*KeyMaterial, error) {
	if ps.context == nil {
		context, err := crypto11.Configure(ps.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to configure PKCS#11 context: %v", ErrKeyLoad, err)
		}
		ps.context = context
	}

	idBytes, err := hexToBytes(ps.keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid key ID %q: %v", ErrKeyLoad, ps.keyID, err)
	}

	privateKey, err := ps.context.FindKeyPair(idBytes, []byte(ps.keyLabel))
	if err != nil {
		return nil, fmt.Errorf("%w: no key pair with label %q and ID %q: %v",
			ErrKeyLoad, ps.keyLabel, ps.keyID, err)
	}

	key := &KeyMaterial{Signer: privateKey, Name: ps.keyLabel}

	// The certificate is optional; templates without an X509Certificate
	// slot sign fine without one.
	if cert, err := ps.context.FindCertificate(idBytes, []byte(ps.certLabel), nil); err == nil && cert != nil {
		key.Certificate = cert
	}

	return key, nil
}

// Close releases the PKCS#11 context.
func (ps *PKCS11KeySource) Close() error {
	if ps.context != nil {
		err := ps.context.Close()
		ps.context = nil
		return err
	}
	return nil
}

// hexToBytes converts a hex string to bytes, accepting an optional '0x'
// prefix and odd-length input.
func hexToBytes(hexStr string) ([]byte, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}
	return hex.DecodeString(hexStr)
}

// ParsePKCS11URI extracts a crypto11 configuration from an RFC 7512 PKCS#11
// URI of the form pkcs11:module=/path/to/module;pin=1234;token=label.
// It returns nil when the URI is not a valid PKCS#11 URI or lacks a module
// path.
func ParsePKCS11URI(pkcs11URI string) *crypto11.Config {
	u, err := url.Parse(pkcs11URI)
	if err != nil || u.Scheme != "pkcs11" {
		return nil
	}
	if u.Opaque == "" {
		return nil
	}

	config := &crypto11.Config{}
	for _, param := range strings.Split(u.Opaque, ";") {
		key, value, found := strings.Cut(param, "=")
		if !found {
			continue
		}
		switch key {
		case "module":
			config.Path = value
		case "pin":
			config.Pin = value
		case "token":
			config.TokenLabel = value
		case "slot-id":
			if slotID, err := strconv.Atoi(value); err == nil {
				config.SlotNumber = &slotID
			}
		}
	}

	if config.Path == "" {
		return nil
	}
	return config
}
