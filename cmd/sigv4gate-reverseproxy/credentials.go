package main

import (
	"fmt"
	"os"

	"github.com/sigtools/sigv4gate/internal/errorutil"
	"github.com/sigtools/sigv4gate/keyproviders"
	"github.com/sigtools/sigv4gate/sigv4"
	"gopkg.in/yaml.v3"
)

// credentialsDoc is the on-disk shape of a plaintext credentials file:
//
//	credentials:
//	  AKIDEXAMPLE:
//	    secret_access_key: wJalr...
//	    session_token: ""     # optional, for temporary credentials
type credentialsDoc struct {
	Credentials map[string]credentialEntry `yaml:"credentials"`
}

type credentialEntry struct {
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// loadCredentialsFile builds a key provider from a YAML credentials file.
// When sealKey is non-empty the file is expected to be sealed with
// keyproviders.SealSecrets instead of plaintext YAML.
func loadCredentialsFile(path string, sealKey []byte) (sigv4.KeyProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errorutil.Wrapf(err, "failed to read credentials file %q", path)
	}

	if len(sealKey) > 0 {
		keys, err := keyproviders.OpenSealedSecrets(sealKey, raw)
		if err != nil {
			return nil, errorutil.Wrapf(err, "failed to open sealed credentials file %q", path)
		}
		return keys, nil
	}

	var doc credentialsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errorutil.Wrapf(err, "failed to parse credentials file %q", path)
	}
	if len(doc.Credentials) == 0 {
		return nil, fmt.Errorf("credentials file %q lists no credentials", path)
	}

	secrets := make(map[string]keyproviders.Secret, len(doc.Credentials))
	for accessKeyID, entry := range doc.Credentials {
		secrets[accessKeyID] = keyproviders.Secret{
			SecretAccessKey: entry.SecretAccessKey,
			SessionToken:    entry.SessionToken,
		}
	}

	return keyproviders.Static(secrets), nil
}
