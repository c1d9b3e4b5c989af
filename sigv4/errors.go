package sigv4

import "fmt"

// ErrorKind classifies the ways signature verification can fail.
type ErrorKind int

const (
	// ErrInvalidSignature indicates the computed signature did not match
	// the one presented in the request.
	ErrInvalidSignature ErrorKind = iota

	// ErrInvalidCredential indicates the credential scope or access key
	// was malformed or did not match the expected scope.
	ErrInvalidCredential

	// ErrInvalidURIPath indicates the request path could not be
	// canonicalized (bad percent-encoding, escape above root, etc).
	ErrInvalidURIPath

	// ErrInvalidQueryString indicates the query string could not be
	// canonicalized.
	ErrInvalidQueryString

	// ErrInvalidBodyEncoding indicates a form-encoded body declared a
	// charset we could not decode.
	ErrInvalidBodyEncoding

	// ErrMalformedHeader indicates an authentication-related header was
	// present but unparseable.
	ErrMalformedHeader

	// ErrMissingParameter indicates a required authentication parameter
	// (date, credential, signature, signed headers) was absent.
	ErrMissingParameter

	// ErrMultipleParameterValues indicates a parameter that must appear
	// exactly once appeared several times.
	ErrMultipleParameterValues

	// ErrTimestampOutOfRange indicates the request timestamp fell outside
	// the allowed clock-skew window.
	ErrTimestampOutOfRange

	// ErrUnsupportedKeyKind indicates a signing-key provider returned a
	// derivation stage the verifier cannot complete the cascade from.
	ErrUnsupportedKeyKind
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidSignature:
		return "invalid signature"
	case ErrInvalidCredential:
		return "invalid credential"
	case ErrInvalidURIPath:
		return "invalid URI path"
	case ErrInvalidQueryString:
		return "invalid query string"
	case ErrInvalidBodyEncoding:
		return "invalid body encoding"
	case ErrMalformedHeader:
		return "malformed header"
	case ErrMissingParameter:
		return "missing parameter"
	case ErrMultipleParameterValues:
		return "multiple parameter values"
	case ErrTimestampOutOfRange:
		return "timestamp out of range"
	case ErrUnsupportedKeyKind:
		return "unsupported signing key kind"
	default:
		return fmt.Sprintf("sigv4 error kind %d", int(k))
	}
}

// SignatureError is the error type returned by verification. Kind allows
// callers to distinguish failure classes without string matching; the
// middleware treats all of them identically.
type SignatureError struct {
	Kind    ErrorKind
	Message string
}

func (e *SignatureError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func newError(kind ErrorKind, format string, args ...any) *SignatureError {
	return &SignatureError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
