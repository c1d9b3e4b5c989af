package sigv4gate

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

var errBodyTooLarge = errors.New("request body exceeds configured maximum")

// captureBody drains the request body into memory, up to limit bytes, and
// installs a fully buffered replacement so downstream handlers observe an
// unconsumed, byte-identical body.
//
// Signature verification hashes the body in its entirety, so buffering it
// is unavoidable; the limit keeps a hostile client from turning that into
// unbounded allocation. Reads block through the server's own connection
// handling, so a cancelled request surfaces here as a read error.
//
// A request with no body yields an empty buffer and no replacement.
func captureBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
