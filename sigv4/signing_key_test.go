package sigv4_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sigtools/sigv4gate/sigv4"
)

// The AWS documentation's published derivation example: deriving the
// signing key for 20150830/us-east-1/iam from the well-known example
// secret.
const (
	exampleSecret     = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
	exampleDate       = "20150830"
	exampleRegion     = "us-east-1"
	exampleService    = "iam"
	exampleSigningKey = "c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9"
)

func TestDeriveKeyDocumentedVector(t *testing.T) {
	key, err := sigv4.DeriveKey(
		[]byte("AWS4"+exampleSecret),
		sigv4.KSecret, sigv4.KSigning,
		exampleDate, exampleRegion, exampleService,
	)
	if err != nil {
		t.Fatal(err)
	}

	if got := hex.EncodeToString(key); got != exampleSigningKey {
		t.Fatalf("got signing key %s, want %s", got, exampleSigningKey)
	}
}

// Deriving straight to KSigning must agree with stopping at each
// intermediate stage and finishing the cascade from there.
func TestDeriveKeyStagedEquivalence(t *testing.T) {
	want, err := sigv4.DeriveKey(
		[]byte("AWS4"+exampleSecret),
		sigv4.KSecret, sigv4.KSigning,
		exampleDate, exampleRegion, exampleService,
	)
	if err != nil {
		t.Fatal(err)
	}

	for _, mid := range []sigv4.SigningKeyKind{
		sigv4.KSecret, sigv4.KDate, sigv4.KRegion, sigv4.KService, sigv4.KSigning,
	} {
		t.Run(mid.String(), func(t *testing.T) {
			partial, err := sigv4.DeriveKey(
				[]byte("AWS4"+exampleSecret),
				sigv4.KSecret, mid,
				exampleDate, exampleRegion, exampleService,
			)
			if err != nil {
				t.Fatal(err)
			}

			full, err := sigv4.DeriveKey(
				partial,
				mid, sigv4.KSigning,
				exampleDate, exampleRegion, exampleService,
			)
			if err != nil {
				t.Fatal(err)
			}

			if hex.EncodeToString(full) != hex.EncodeToString(want) {
				t.Fatalf("staged derivation through %v diverged: got %x, want %x", mid, full, want)
			}
		})
	}
}

func TestDeriveKeyBackwards(t *testing.T) {
	_, err := sigv4.DeriveKey(
		[]byte("already derived"),
		sigv4.KSigning, sigv4.KDate,
		exampleDate, exampleRegion, exampleService,
	)
	if err == nil {
		t.Fatal("expected error deriving backwards")
	}

	var sigErr *sigv4.SignatureError
	if !errors.As(err, &sigErr) || sigErr.Kind != sigv4.ErrUnsupportedKeyKind {
		t.Fatalf("expected ErrUnsupportedKeyKind, got %v", err)
	}
}

func TestKeyFuncAdapter(t *testing.T) {
	var gotReq *sigv4.KeyRequest

	provider := sigv4.KeyFunc(func(_ context.Context, req *sigv4.KeyRequest) ([]byte, error) {
		gotReq = req
		return []byte("key"), nil
	})

	key, err := provider.SigningKey(context.Background(), &sigv4.KeyRequest{
		Kind:        sigv4.KSigning,
		AccessKeyID: "AKIDEXAMPLE",
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(key) != "key" {
		t.Fatalf("unexpected key %q", key)
	}
	if gotReq == nil || gotReq.AccessKeyID != "AKIDEXAMPLE" {
		t.Fatalf("provider did not receive the request: %#v", gotReq)
	}
}
