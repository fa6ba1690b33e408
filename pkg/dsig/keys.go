package dsig

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// KeyMaterial is an opaque private-key handle used by the signature engine.
// The key is held behind crypto.Signer so that file-based RSA keys and
// hardware-backed PKCS#11 keys are handled uniformly.
//
// KeyMaterial is bound to a single TemplateSigner for the duration of one
// sign operation and must not be shared between concurrently running signers.
type KeyMaterial struct {
	Signer crypto.Signer

	// Name is an optional human-readable key name, filled into an empty
	// KeyInfo/KeyName slot when the template declares one. Loaders default
	// it to the key file path.
	Name string

	// Certificate optionally carries the signing certificate, filled into
	// an empty KeyInfo/X509Data/X509Certificate slot when present.
	Certificate *x509.Certificate
}

// PublicKey returns the RSA public counterpart of the key, or an error when
// the key is not RSA.
func (k *KeyMaterial) PublicKey() (*rsa.PublicKey, error) {
	pub, ok := k.Signer.Public().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is not RSA", ErrKeyFormatUnsupported)
	}
	return pub, nil
}

// LoadKeyPEM loads an unencrypted RSA private key from a PEM file. Both
// PKCS#1 and PKCS#8 encodings are accepted. The key name defaults to the
// file path.
func LoadKeyPEM(path string) (*KeyMaterial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrKeyLoad, path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: %q: no PEM block found", ErrKeyLoad, path)
	}

	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}

	return &KeyMaterial{Signer: key, Name: path}, nil
}

// parseRSAPrivateKey tries PKCS#1 first and falls back to PKCS#8.
func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	keyAny, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: not PKCS#1 or PKCS#8", ErrKeyFormatUnsupported)
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is not RSA", ErrKeyFormatUnsupported)
	}
	return key, nil
}

// LoadPublicKeyPEM loads an RSA public key from a PEM file holding either a
// PKIX public key or an X.509 certificate. It is used by the verify command.
func LoadPublicKeyPEM(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrKeyLoad, path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: %q: no PEM block found", ErrKeyLoad, path)
	}

	var pubAny any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrKeyLoad, path, err)
		}
		pubAny = cert.PublicKey
	default:
		pubAny, err = x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrKeyFormatUnsupported, path, err)
		}
	}

	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q: public key is not RSA", ErrKeyFormatUnsupported, path)
	}
	return pub, nil
}

// LoadKeyPKCS12 loads an RSA private key and its certificate from a PKCS#12
// bundle. The key name defaults to the file path.
func LoadKeyPKCS12(path, password string) (*KeyMaterial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrKeyLoad, path, err)
	}

	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrKeyLoad, path, err)
	}

	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q: private key is not RSA", ErrKeyFormatUnsupported, path)
	}

	return &KeyMaterial{Signer: key, Name: path, Certificate: cert}, nil
}
