package sigv4

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// NoAllowedMismatch disables the clock-skew check entirely: any request
// timestamp is accepted. Any negative duration behaves the same way.
const NoAllowedMismatch time.Duration = -1

// expectedSignature computes the signature the request should carry,
// fetching the signing key from keys at derivation stage kind and
// completing the cascade.
func (p *parsedRequest) expectedSignature(ctx context.Context, keys KeyProvider, kind SigningKeyKind) (string, error) {
	accessKey, err := p.accessKey()
	if err != nil {
		return "", err
	}

	sessionToken, err := p.sessionToken()
	if err != nil {
		return "", err
	}

	ts, err := p.timestamp()
	if err != nil {
		return "", err
	}

	key, err := keys.SigningKey(ctx, &KeyRequest{
		Kind:         kind,
		AccessKeyID:  accessKey,
		SessionToken: sessionToken,
		Date:         ts.Format(scopeDateFormat),
		Region:       p.req.Region,
		Service:      p.req.Service,
	})
	if err != nil {
		return "", err
	}

	signingKey, err := DeriveKey(key, kind, KSigning,
		ts.Format(scopeDateFormat), p.req.Region, p.req.Service)
	if err != nil {
		return "", err
	}

	sts, err := p.stringToSign()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hmacSHA256(signingKey, []byte(sts))), nil
}

// VerifyAt verifies the request against the supplied server timestamp.
// The request timestamp must lie within allowedMismatch of now (the
// bounds themselves are accepted); pass a negative duration to skip the
// check. The signature comparison is constant-time.
//
// Use Verify unless you are controlling the clock in tests.
func (r *Request) VerifyAt(ctx context.Context, keys KeyProvider, kind SigningKeyKind, allowedMismatch time.Duration, now time.Time) error {
	p, err := r.parse()
	if err != nil {
		return err
	}

	if allowedMismatch >= 0 {
		ts, err := p.timestamp()
		if err != nil {
			return err
		}

		minTS := now.Add(-allowedMismatch)
		maxTS := now.Add(allowedMismatch)
		if ts.Before(minTS) || ts.After(maxTS) {
			return newError(ErrTimestampOutOfRange,
				"request timestamp %s outside allowed range %s - %s",
				ts.Format(iso8601Compact),
				minTS.UTC().Format(iso8601Compact),
				maxTS.UTC().Format(iso8601Compact))
		}
	}

	expected, err := p.expectedSignature(ctx, keys, kind)
	if err != nil {
		return err
	}

	presented, err := p.requestSignature()
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return newError(ErrInvalidSignature, "signature mismatch")
	}

	return nil
}

// Verify verifies the request signature and timestamp against the current
// time. See VerifyAt.
func (r *Request) Verify(ctx context.Context, keys KeyProvider, kind SigningKeyKind, allowedMismatch time.Duration) error {
	return r.VerifyAt(ctx, keys, kind, allowedMismatch, time.Now())
}
