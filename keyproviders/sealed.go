package keyproviders

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"

	"github.com/sigtools/sigv4gate/internal/errorutil"
	"github.com/sigtools/sigv4gate/sigv4"
	"golang.org/x/crypto/nacl/secretbox"
)

// sealKeySize is the secretbox key length.
const sealKeySize = 32

// SealSecrets encrypts an access-key table with the given 32-byte key so
// it can sit on disk without exposing plaintext secrets. The output is a
// random nonce followed by the secretbox ciphertext of the JSON-encoded
// table.
func SealSecrets(key []byte, secrets map[string]Secret) ([]byte, error) {
	if len(key) != sealKeySize {
		return nil, errors.New("seal key must be 32 bytes")
	}

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return nil, errorutil.Wrap(err, "failed to encode secret table")
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errorutil.Wrap(err, "failed to generate nonce")
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, (*[sealKeySize]byte)(key)), nil
}

// OpenSealedSecrets decrypts a table produced by SealSecrets and returns
// a Static provider over it.
func OpenSealedSecrets(key []byte, sealed []byte) (sigv4.KeyProvider, error) {
	if len(key) != sealKeySize {
		return nil, errors.New("seal key must be 32 bytes")
	}
	if len(sealed) < 24 {
		return nil, errors.New("sealed table is truncated")
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, (*[sealKeySize]byte)(key))
	if !ok {
		return nil, errors.New("failed to open sealed table: wrong key or corrupt data")
	}

	var secrets map[string]Secret
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, errorutil.Wrap(err, "failed to decode secret table")
	}

	return Static(secrets), nil
}
