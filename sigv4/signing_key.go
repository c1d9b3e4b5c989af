package sigv4

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
)

// SigningKeyKind names a stage in the SigV4 key-derivation cascade:
//
//	kSecret  = "AWS4" + secret access key
//	kDate    = HMAC-SHA256(kSecret, YYYYMMDD)
//	kRegion  = HMAC-SHA256(kDate, region)
//	kService = HMAC-SHA256(kRegion, service)
//	kSigning = HMAC-SHA256(kService, "aws4_request")
//
// A KeyProvider declared at some kind returns keys already derived to
// that stage; the verifier completes the remaining stages.
type SigningKeyKind int

const (
	KSecret SigningKeyKind = iota
	KDate
	KRegion
	KService
	KSigning
)

func (k SigningKeyKind) String() string {
	switch k {
	case KSecret:
		return "KSecret"
	case KDate:
		return "KDate"
	case KRegion:
		return "KRegion"
	case KService:
		return "KService"
	case KSigning:
		return "KSigning"
	default:
		return "KUnknown"
	}
}

// aws4Request is the literal terminator of the derivation cascade.
const aws4Request = "aws4_request"

// KeyRequest carries everything a KeyProvider might need to produce a
// signing key for a request: which derivation stage is wanted and the
// request's credential context.
type KeyRequest struct {
	// Kind is the derivation stage the caller expects back.
	Kind SigningKeyKind

	// AccessKeyID is the access key the request was signed with.
	AccessKeyID string

	// SessionToken is the temporary-credential session token, or "" for
	// long-term credentials.
	SessionToken string

	// Date is the 8-character request date (YYYYMMDD).
	Date string

	Region  string
	Service string
}

// KeyProvider produces signing-key bytes for a given derivation stage and
// request context. Implementations may perform I/O (e.g. a secret-store
// lookup); the verifier calls a provider at most once per request.
type KeyProvider interface {
	SigningKey(ctx context.Context, req *KeyRequest) ([]byte, error)
}

// KeyFunc adapts a plain function to the KeyProvider interface.
type KeyFunc func(ctx context.Context, req *KeyRequest) ([]byte, error)

var _ KeyProvider = KeyFunc(nil)

// SigningKey calls f.
func (f KeyFunc) SigningKey(ctx context.Context, req *KeyRequest) ([]byte, error) {
	return f(ctx, req)
}

func hmacSHA256(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// DeriveKey advances key from derivation stage from to stage to, applying
// the HMAC-SHA256 cascade with the request date, region, service, and the
// aws4_request terminator. A kSecret input must already carry the "AWS4"
// prefix.
func DeriveKey(key []byte, from, to SigningKeyKind, date, region, service string) ([]byte, error) {
	if from > to {
		return nil, newError(ErrUnsupportedKeyKind,
			"cannot derive %v from %v", to, from)
	}

	k := key
	if from < KDate && to >= KDate {
		k = hmacSHA256(k, []byte(date))
	}
	if from < KRegion && to >= KRegion {
		k = hmacSHA256(k, []byte(region))
	}
	if from < KService && to >= KService {
		k = hmacSHA256(k, []byte(service))
	}
	if from < KSigning && to >= KSigning {
		k = hmacSHA256(k, []byte(aws4Request))
	}

	return k, nil
}
