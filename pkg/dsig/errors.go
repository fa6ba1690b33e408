package dsig

import "errors"

var (
	// ErrKeyLoad is returned when a key file cannot be read or its envelope
	// cannot be decoded.
	ErrKeyLoad = errors.New("failed to load key")

	// ErrKeyFormatUnsupported is returned when key material decodes but is
	// not in a recognized format (for example a non-RSA private key).
	ErrKeyFormatUnsupported = errors.New("unsupported key format")

	// ErrMalformedTemplate is returned when a signature template lacks a
	// required node such as SignedInfo or CanonicalizationMethod.
	ErrMalformedTemplate = errors.New("malformed signature template")

	// ErrReferenceResolution is returned when a Reference URI cannot be
	// resolved, typically because it names an unregistered identifier.
	ErrReferenceResolution = errors.New("cannot resolve reference")

	// ErrDigest is returned when digest computation for a reference fails.
	// This indicates an unsupported digest or transform algorithm, or an
	// internal canonicalization failure; it is treated as fatal.
	ErrDigest = errors.New("digest computation failed")

	// ErrSigning is returned when the cryptographic signing step fails,
	// for example on a key/algorithm mismatch.
	ErrSigning = errors.New("signing failed")

	// ErrVerification is returned when a signature value or a reference
	// digest does not verify against the document content.
	ErrVerification = errors.New("signature verification failed")
)
