// Package sigv4gate authenticates inbound HTTP requests with AWS
// Signature Version 4 before they reach application handlers.
//
// The middleware buffers the request body (replacing it with an
// equivalent re-readable one), reconstructs the request in the canonical
// form signature computation expects, and checks the signature against a
// caller-supplied signing-key provider. Requests that fail verification
// never reach the wrapped handler.
package sigv4gate

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sigtools/sigv4gate/sigv4"
)

// KeyProvider is re-exported so callers wiring a Verifier don't need to
// import the sigv4 package just to name the interface.
type KeyProvider = sigv4.KeyProvider

const (
	// DefaultAllowedMismatch is how far a request timestamp may drift
	// from server time before the request is rejected as stale.
	DefaultAllowedMismatch = 5 * time.Minute

	// DefaultMaxBodyBytes caps how much of a request body the middleware
	// will buffer for hashing.
	DefaultMaxBodyBytes = 10 << 20
)

// Verifier is an http.Handler middleware that rejects requests whose
// SigV4 signature does not check out.
//
// A Verifier is built once at server startup and must not be mutated
// afterwards; it carries no per-request state and is safe for use from
// concurrent handlers.
type Verifier struct {
	// Keys produces signing-key bytes for incoming requests. Required.
	Keys sigv4.KeyProvider

	// KeyKind is the derivation stage Keys returns keys at. The verifier
	// completes the remaining HMAC stages. Defaults to KSigning: the
	// provider performs the full derivation.
	KeyKind sigv4.SigningKeyKind

	// AllowedMismatch bounds clock skew between the request timestamp
	// and server time. Negative disables the check entirely.
	AllowedMismatch time.Duration

	// Service and Region are the credential scope requests must have
	// been signed for.
	Service string
	Region  string

	// MaxBodyBytes caps the buffered body size; larger requests are
	// rejected with 413 before verification.
	MaxBodyBytes int64

	// Logger receives server-side diagnostics for rejected requests.
	// Clients only ever see the status code.
	Logger *slog.Logger

	// nowFunc stands in for time.Now in tests.
	nowFunc func() time.Time
}

// New creates a Verifier with the preferred defaults: the provider
// performs the full key derivation (KSigning) and requests may be up to
// five minutes stale.
func New(keys sigv4.KeyProvider, service, region string, opts ...Option) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("sigv4gate: a key provider is required")
	}
	if service == "" || region == "" {
		return nil, errors.New("sigv4gate: service and region are required")
	}

	v := &Verifier{
		Keys:            keys,
		KeyKind:         sigv4.KSigning,
		AllowedMismatch: DefaultAllowedMismatch,
		Service:         service,
		Region:          region,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		Logger:          slog.Default(),
		nowFunc:         time.Now,
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// Wrap returns a handler that verifies each request's signature and, on
// success, passes the request on to next with its body already buffered
// and re-readable. Verification failures end the request with 401; a
// body that cannot be read ends it with 422 (or 413 when over the size
// cap).
func (v *Verifier) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := captureBody(r, v.maxBodyBytes())
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				v.logger().DebugContext(r.Context(), "request body over size cap",
					"method", r.Method, "path", r.URL.Path, "limit", v.maxBodyBytes())
				http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
				return
			}

			v.logger().DebugContext(r.Context(), "failed to read request body",
				"method", r.Method, "path", r.URL.Path, "error", err)
			http.Error(w, "unable to read request body", http.StatusUnprocessableEntity)
			return
		}

		// Snapshot the request as the pipeline sees it now, after any
		// header rewriting earlier middleware has done.
		req := v.canonicalRequest(r, body)

		if err := req.VerifyAt(r.Context(), v.Keys, v.KeyKind, v.AllowedMismatch, v.now()); err != nil {
			v.logger().DebugContext(r.Context(), "request failed signature verification",
				"method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
			http.Error(w, "signature verification failed", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Middleware returns Wrap in the func(next) form most router packages
// accept.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return v.Wrap
}

// canonicalRequest snapshots the transport-level request into the
// immutable form verification runs against. Header names keep their
// case and multi-valued headers keep their order; case folding belongs
// to the verifier.
func (v *Verifier) canonicalRequest(r *http.Request, body []byte) *sigv4.Request {
	headers := make(map[string][]string, len(r.Header)+2)
	for name, values := range r.Header {
		headers[name] = append([]string(nil), values...)
	}

	// net/http promotes these out of the header map, but both are
	// routinely part of the signed header set.
	if r.Host != "" {
		headers["Host"] = append(headers["Host"], r.Host)
	}
	if r.ContentLength > 0 {
		if _, ok := headers["Content-Length"]; !ok {
			headers["Content-Length"] = []string{strconv.FormatInt(r.ContentLength, 10)}
		}
	}

	return &sigv4.Request{
		Method:  r.Method,
		Path:    r.URL.EscapedPath(),
		Query:   r.URL.RawQuery,
		Headers: headers,
		Body:    body,
		Region:  v.Region,
		Service: v.Service,
	}
}

func (v *Verifier) maxBodyBytes() int64 {
	if v.MaxBodyBytes > 0 {
		return v.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func (v *Verifier) now() time.Time {
	if v.nowFunc != nil {
		return v.nowFunc()
	}
	return time.Now()
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
