package keyproviders_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sigtools/sigv4gate/keyproviders"
	"github.com/sigtools/sigv4gate/sigv4"
)

const (
	exampleAccessKey  = "AKIDEXAMPLE"
	exampleSecret     = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
	exampleSigningKey = "c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9"
)

func exampleKeyRequest(kind sigv4.SigningKeyKind) *sigv4.KeyRequest {
	return &sigv4.KeyRequest{
		Kind:        kind,
		AccessKeyID: exampleAccessKey,
		Date:        "20150830",
		Region:      "us-east-1",
		Service:     "iam",
	}
}

func TestStaticDerivesDocumentedKey(t *testing.T) {
	keys := keyproviders.Static(map[string]keyproviders.Secret{
		exampleAccessKey: {SecretAccessKey: exampleSecret},
	})

	key, err := keys.SigningKey(context.Background(), exampleKeyRequest(sigv4.KSigning))
	if err != nil {
		t.Fatal(err)
	}

	if got := hex.EncodeToString(key); got != exampleSigningKey {
		t.Fatalf("got signing key %s, want %s", got, exampleSigningKey)
	}
}

// Whatever stage the provider is asked for, completing the cascade from
// there must land on the same signing key.
func TestStaticAnyKindCompletesToSameKey(t *testing.T) {
	keys := keyproviders.Static(map[string]keyproviders.Secret{
		exampleAccessKey: {SecretAccessKey: exampleSecret},
	})

	for _, kind := range []sigv4.SigningKeyKind{
		sigv4.KSecret, sigv4.KDate, sigv4.KRegion, sigv4.KService, sigv4.KSigning,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			req := exampleKeyRequest(kind)

			partial, err := keys.SigningKey(context.Background(), req)
			if err != nil {
				t.Fatal(err)
			}

			full, err := sigv4.DeriveKey(partial, kind, sigv4.KSigning,
				req.Date, req.Region, req.Service)
			if err != nil {
				t.Fatal(err)
			}

			if got := hex.EncodeToString(full); got != exampleSigningKey {
				t.Fatalf("got signing key %s, want %s", got, exampleSigningKey)
			}
		})
	}
}

func TestStaticUnknownAccessKey(t *testing.T) {
	keys := keyproviders.Static(map[string]keyproviders.Secret{})

	_, err := keys.SigningKey(context.Background(), exampleKeyRequest(sigv4.KSigning))

	var sigErr *sigv4.SignatureError
	if !errors.As(err, &sigErr) || sigErr.Kind != sigv4.ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestStaticSessionTokenMismatch(t *testing.T) {
	keys := keyproviders.Static(map[string]keyproviders.Secret{
		exampleAccessKey: {SecretAccessKey: exampleSecret, SessionToken: "expected-token"},
	})

	req := exampleKeyRequest(sigv4.KSigning)
	req.SessionToken = "some-other-token"

	_, err := keys.SigningKey(context.Background(), req)

	var sigErr *sigv4.SignatureError
	if !errors.As(err, &sigErr) || sigErr.Kind != sigv4.ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	// And the matching token is accepted.
	req.SessionToken = "expected-token"
	if _, err := keys.SigningKey(context.Background(), req); err != nil {
		t.Fatal(err)
	}
}
