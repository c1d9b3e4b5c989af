package keyproviders_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/sigtools/sigv4gate/keyproviders"
	"github.com/sigtools/sigv4gate/sigv4"
)

func TestSealedSecretsRoundTrip(t *testing.T) {
	sealKey := bytes.Repeat([]byte("k"), 32)
	secrets := map[string]keyproviders.Secret{
		exampleAccessKey: {SecretAccessKey: exampleSecret},
	}

	sealed, err := keyproviders.SealSecrets(sealKey, secrets)
	if err != nil {
		t.Fatal(err)
	}

	// The plaintext secret must not appear in the sealed bytes.
	if bytes.Contains(sealed, []byte(exampleSecret)) {
		t.Fatal("sealed table leaks the plaintext secret")
	}

	opened, err := keyproviders.OpenSealedSecrets(sealKey, sealed)
	if err != nil {
		t.Fatal(err)
	}

	want, err := keyproviders.Static(secrets).SigningKey(
		context.Background(), exampleKeyRequest(sigv4.KSigning))
	if err != nil {
		t.Fatal(err)
	}

	got, err := opened.SigningKey(context.Background(), exampleKeyRequest(sigv4.KSigning))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("opened provider diverged: got %x, want %x", got, want)
	}
}

func TestSealedSecretsWrongKey(t *testing.T) {
	sealed, err := keyproviders.SealSecrets(bytes.Repeat([]byte("a"), 32), map[string]keyproviders.Secret{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := keyproviders.OpenSealedSecrets(bytes.Repeat([]byte("b"), 32), sealed); err == nil {
		t.Fatal("expected open to fail with wrong key")
	}
}

func TestSealedSecretsBadInput(t *testing.T) {
	key := bytes.Repeat([]byte("k"), 32)

	if _, err := keyproviders.SealSecrets([]byte("short"), nil); err == nil {
		t.Fatal("expected seal to reject a short key")
	}
	if _, err := keyproviders.OpenSealedSecrets([]byte("short"), nil); err == nil {
		t.Fatal("expected open to reject a short key")
	}
	if _, err := keyproviders.OpenSealedSecrets(key, []byte("truncated")); err == nil {
		t.Fatal("expected open to reject truncated data")
	}
}
