// Package keyproviders supplies ready-made signing-key strategies for
// verification: an in-memory secret table, AWS SDK credential resolution,
// a derived-key cache, and a sealed-at-rest secret table.
package keyproviders

import (
	"context"

	"github.com/sigtools/sigv4gate/sigv4"
)

// Secret is the verification material held for one access key ID.
type Secret struct {
	SecretAccessKey string

	// SessionToken, when set, must match the token presented by the
	// request. Leave empty for long-term credentials.
	SessionToken string
}

type staticProvider struct {
	secrets map[string]Secret
}

var _ sigv4.KeyProvider = &staticProvider{}

// Static serves signing keys from an in-memory access-key table. The
// provider derives to whatever stage the verifier asks for, so it works
// with any configured SigningKeyKind.
//
// The map is not copied; do not mutate it after construction.
func Static(secrets map[string]Secret) sigv4.KeyProvider {
	return &staticProvider{secrets: secrets}
}

func (p *staticProvider) SigningKey(_ context.Context, req *sigv4.KeyRequest) ([]byte, error) {
	secret, ok := p.secrets[req.AccessKeyID]
	if !ok {
		return nil, &sigv4.SignatureError{
			Kind:    sigv4.ErrInvalidCredential,
			Message: "unknown access key " + req.AccessKeyID,
		}
	}

	if secret.SessionToken != "" && secret.SessionToken != req.SessionToken {
		return nil, &sigv4.SignatureError{
			Kind:    sigv4.ErrInvalidCredential,
			Message: "session token mismatch for access key " + req.AccessKeyID,
		}
	}

	return deriveFromSecret(secret.SecretAccessKey, req)
}

// deriveFromSecret runs the cascade from the raw secret up to the stage
// the verifier asked for.
func deriveFromSecret(secretAccessKey string, req *sigv4.KeyRequest) ([]byte, error) {
	kSecret := []byte("AWS4" + secretAccessKey)
	return sigv4.DeriveKey(kSecret, sigv4.KSecret, req.Kind, req.Date, req.Region, req.Service)
}
