package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/sigtools/sigv4gate/keyproviders"
	"github.com/sigtools/sigv4gate/sigv4"
)

const plaintextCredentials = `
credentials:
  AKIDEXAMPLE:
    secret_access_key: wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY
  AKIDTEMPORARY:
    secret_access_key: anotherSecret
    session_token: sessiontoken
`

// Signing key for the example secret at 20150830/us-east-1/iam.
const exampleSigningKey = "c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9"

func exampleKeyRequest() *sigv4.KeyRequest {
	return &sigv4.KeyRequest{
		Kind:        sigv4.KSigning,
		AccessKeyID: "AKIDEXAMPLE",
		Date:        "20150830",
		Region:      "us-east-1",
		Service:     "iam",
	}
}

func TestLoadCredentialsFilePlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte(plaintextCredentials), 0o600); err != nil {
		t.Fatalf("failed to write credentials file: %v", err)
	}

	keys, err := loadCredentialsFile(path, nil)
	if err != nil {
		t.Fatalf("failed to load credentials file: %v", err)
	}

	key, err := keys.SigningKey(context.Background(), exampleKeyRequest())
	if err != nil {
		t.Fatalf("expected a signing key for a listed access key, got %v", err)
	}
	if got := hex.EncodeToString(key); got != exampleSigningKey {
		t.Fatalf("got signing key %s, want %s", got, exampleSigningKey)
	}

	req := exampleKeyRequest()
	req.AccessKeyID = "AKIDUNKNOWN"
	if _, err := keys.SigningKey(context.Background(), req); err == nil {
		t.Fatal("expected an error for an unlisted access key")
	}
}

func TestLoadCredentialsFileSealed(t *testing.T) {
	sealKey := make([]byte, 32)
	if _, err := rand.Read(sealKey); err != nil {
		t.Fatalf("failed to generate seal key: %v", err)
	}

	sealed, err := keyproviders.SealSecrets(sealKey, map[string]keyproviders.Secret{
		"AKIDEXAMPLE": {SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"},
	})
	if err != nil {
		t.Fatalf("failed to seal credentials: %v", err)
	}

	path := filepath.Join(t.TempDir(), "credentials.sealed")
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		t.Fatalf("failed to write sealed file: %v", err)
	}

	keys, err := loadCredentialsFile(path, sealKey)
	if err != nil {
		t.Fatalf("failed to load sealed credentials file: %v", err)
	}
	key, err := keys.SigningKey(context.Background(), exampleKeyRequest())
	if err != nil {
		t.Fatalf("expected a signing key for a listed access key, got %v", err)
	}
	if got := hex.EncodeToString(key); got != exampleSigningKey {
		t.Fatalf("got signing key %s, want %s", got, exampleSigningKey)
	}

	wrongKey := make([]byte, 32)
	if _, err := loadCredentialsFile(path, wrongKey); err == nil {
		t.Fatal("expected an error opening a sealed file with the wrong key")
	}
}

func TestLoadCredentialsFileRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte("credentials: {}\n"), 0o600); err != nil {
		t.Fatalf("failed to write credentials file: %v", err)
	}

	if _, err := loadCredentialsFile(path, nil); err == nil {
		t.Fatal("expected an error for an empty credentials file")
	}
}
