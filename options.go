package sigv4gate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sigtools/sigv4gate/keyproviders"
	"github.com/sigtools/sigv4gate/sigv4"
)

// Option configures a Verifier at construction time.
type Option func(v *Verifier) error

// WithSigningKeyKind declares the derivation stage the key provider
// returns keys at. The verifier completes any remaining stages of the
// HMAC cascade.
func WithSigningKeyKind(kind sigv4.SigningKeyKind) Option {
	return func(v *Verifier) error {
		if kind < sigv4.KSecret || kind > sigv4.KSigning {
			return errors.New("sigv4gate: unknown signing key kind")
		}
		v.KeyKind = kind
		return nil
	}
}

// WithAllowedMismatch sets the clock-skew tolerance. A request whose
// timestamp differs from server time by exactly d is still accepted.
func WithAllowedMismatch(d time.Duration) Option {
	return func(v *Verifier) error {
		v.AllowedMismatch = d
		return nil
	}
}

// WithoutAllowedMismatch disables the clock-skew check: requests are
// accepted no matter how stale or future-dated their timestamp is.
func WithoutAllowedMismatch() Option {
	return func(v *Verifier) error {
		v.AllowedMismatch = sigv4.NoAllowedMismatch
		return nil
	}
}

// WithMaxBodyBytes caps how large a request body the middleware will
// buffer for verification.
func WithMaxBodyBytes(n int64) Option {
	return func(v *Verifier) error {
		if n <= 0 {
			return errors.New("sigv4gate: body size cap must be positive")
		}
		v.MaxBodyBytes = n
		return nil
	}
}

// WithLogger routes rejection diagnostics to l instead of slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) error {
		v.Logger = l
		return nil
	}
}

// WithAWSConfig verifies requests against the credentials resolved by an
// AWS SDK config (environment, shared config files, IMDS, and so on).
func WithAWSConfig(config *aws.Config) Option {
	return func(v *Verifier) error {
		v.Keys = keyproviders.FromCredentials(config.Credentials)
		return nil
	}
}
