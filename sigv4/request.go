package sigv4

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

const (
	algorithm         = "AWS4-HMAC-SHA256"
	iso8601Compact    = "20060102T150405Z"
	scopeDateFormat   = "20060102"
	formURLEncoded    = "application/x-www-form-urlencoded"
	emptyBodySHA256   = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	headerAuth        = "authorization"
	headerContentType = "content-type"
	headerDate        = "date"
	headerAmzDate     = "x-amz-date"
	headerAmzToken    = "x-amz-security-token"
	paramCredential   = "Credential"
	paramSignedHdrs   = "SignedHeaders"
	paramSignature    = "Signature"
	qpAmzCredential   = "X-Amz-Credential"
	qpAmzDate         = "X-Amz-Date"
	qpAmzSignature    = "X-Amz-Signature"
	qpAmzSignedHdrs   = "X-Amz-SignedHeaders"
	qpAmzToken        = "X-Amz-Security-Token"
)

var multispace = regexp.MustCompile("  +")

// Request is the transport-independent snapshot of an HTTP request that
// verification runs against. Method, Path, Query, Headers, and Body come
// from the wire; Region and Service come from server configuration. A
// Request is never mutated once constructed.
type Request struct {
	// Method is the upper-case HTTP verb.
	Method string

	// Path is the URI path component as it appeared on the wire. The
	// verifier decodes and normalizes it exactly once.
	Path string

	// Query is the raw query string, "" if the request had none.
	Query string

	// Headers maps header names to their values in arrival order. Names
	// keep whatever case the transport handed over; the verifier folds
	// case itself.
	Headers map[string][]string

	// Body is the complete entity body.
	Body []byte

	Region  string
	Service string
}

// parsedRequest is the one-time parse of a Request's authentication
// parameters, shared by the canonicalization and signature getters.
type parsedRequest struct {
	req *Request

	// headers has lower-cased names; values keep arrival order.
	headers map[string][]string

	// query is the normalized query parameter map.
	query map[string][]string

	// auth holds the AWS4-HMAC-SHA256 Authorization header parameters,
	// or nil if no such header was present (presigned requests).
	auth map[string]string
}

func (r *Request) parse() (*parsedRequest, error) {
	headers := make(map[string][]string, len(r.Headers))

	// Merge in sorted name order so requests that (oddly) carry the same
	// header under different cases flatten deterministically.
	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lower := strings.ToLower(name)
		headers[lower] = append(headers[lower], r.Headers[name]...)
	}

	query, err := NormalizeQueryParameters(r.Query)
	if err != nil {
		return nil, err
	}

	auth, err := parseAuthorizationParams(headers[headerAuth])
	if err != nil {
		return nil, err
	}

	return &parsedRequest{req: r, headers: headers, query: query, auth: auth}, nil
}

// parseAuthorizationParams extracts the parameter map from an
// AWS4-HMAC-SHA256 Authorization header. Returns nil if no header uses
// the algorithm; errors if several do or one is unparseable.
func parseAuthorizationParams(values []string) (map[string]string, error) {
	var raw string
	for _, v := range values {
		if !strings.HasPrefix(v, algorithm+" ") {
			continue
		}
		if raw != "" {
			return nil, newError(ErrMultipleParameterValues,
				"multiple %s authorization headers", algorithm)
		}
		raw = strings.TrimPrefix(v, algorithm+" ")
	}
	if raw == "" {
		return nil, nil
	}

	params := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, newError(ErrMalformedHeader,
				"authorization parameter missing '=': %q", part)
		}
		if _, exists := params[key]; exists {
			return nil, newError(ErrMalformedHeader,
				"duplicate authorization parameter %q", key)
		}
		params[key] = value
	}

	return params, nil
}

// singleQueryParam returns the lone value of a query parameter, unescaped,
// or "" if absent. Multiple values are an error.
func (p *parsedRequest) singleQueryParam(name string) (string, error) {
	values, ok := p.query[name]
	if !ok || len(values) == 0 {
		return "", nil
	}
	if len(values) > 1 {
		return "", newError(ErrMultipleParameterValues,
			"query parameter %s has multiple values", name)
	}

	value, err := url.QueryUnescape(values[0])
	if err != nil {
		return "", newError(ErrInvalidQueryString,
			"cannot unescape query parameter %s: %q", name, values[0])
	}
	return value, nil
}

// singleHeader returns the lone value of a (lower-cased) header name, or
// "" if absent. Multiple values are an error.
func (p *parsedRequest) singleHeader(name string) (string, error) {
	values, ok := p.headers[name]
	if !ok || len(values) == 0 {
		return "", nil
	}
	if len(values) > 1 {
		return "", newError(ErrMultipleParameterValues,
			"multiple %s headers", name)
	}
	return values[0], nil
}

// authParam returns a parameter from the Authorization header, or "" if
// there is no sigv4 Authorization header or the parameter is absent.
func (p *parsedRequest) authParam(name string) string {
	if p.auth == nil {
		return ""
	}
	return p.auth[name]
}

// contentTypeAndCharset splits the content-type header into media type
// and charset. The charset defaults to utf-8 when a content type is
// present but no charset parameter is given.
func (p *parsedRequest) contentTypeAndCharset() (contentType, charset string, err error) {
	value, err := p.singleHeader(headerContentType)
	if err != nil || value == "" {
		return "", "", err
	}

	parts := strings.Split(value, ";")
	contentType = strings.TrimSpace(parts[0])
	charset = "utf-8"

	for _, param := range parts[1:] {
		key, v, found := strings.Cut(strings.TrimSpace(param), "=")
		if found && strings.ToLower(strings.TrimSpace(key)) == "charset" {
			charset = strings.ToLower(strings.TrimSpace(v))
		}
	}

	return contentType, charset, nil
}

// signedHeader pairs a signed header name with its flattened value.
type signedHeader struct {
	name  string
	value string
}

// signedHeaders returns the signed header list in signature order. The
// list must already be canonical (lower-cased and sorted) and every named
// header must be present in the request.
func (p *parsedRequest) signedHeaders() ([]signedHeader, error) {
	list, err := p.singleQueryParam(qpAmzSignedHdrs)
	if err != nil {
		return nil, err
	}
	if list == "" {
		list = p.authParam(paramSignedHdrs)
	}
	if list == "" {
		return nil, newError(ErrMissingParameter,
			"no %s query parameter or %s authorization parameter",
			qpAmzSignedHdrs, paramSignedHdrs)
	}

	names := strings.Split(list, ";")

	// Reject non-canonical lists outright rather than fixing them up;
	// a signer that produced one did not follow the protocol.
	for _, name := range names {
		if strings.ToLower(name) != name {
			return nil, newError(ErrMalformedHeader,
				"SignedHeaders is not lower-cased: %q", list)
		}
	}
	if !sort.StringsAreSorted(names) {
		return nil, newError(ErrMalformedHeader,
			"SignedHeaders is not sorted: %q", list)
	}

	result := make([]signedHeader, 0, len(names))
	for _, name := range names {
		values, ok := p.headers[name]
		if !ok {
			return nil, newError(ErrMissingParameter,
				"signed header %q not present in request", name)
		}

		flattened := make([]string, len(values))
		for i, v := range values {
			flattened[i] = multispace.ReplaceAllString(strings.TrimSpace(v), " ")
		}
		result = append(result, signedHeader{name, strings.Join(flattened, ",")})
	}

	return result, nil
}

// timestamp extracts the request timestamp from the X-Amz-Date query
// parameter, the x-amz-date header, or the date header, in that order.
func (p *parsedRequest) timestamp() (time.Time, error) {
	value, err := p.singleQueryParam(qpAmzDate)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		if value, err = p.singleHeader(headerAmzDate); err != nil {
			return time.Time{}, err
		}
	}
	if value == "" {
		if value, err = p.singleHeader(headerDate); err != nil {
			return time.Time{}, err
		}
	}
	if value == "" {
		return time.Time{}, newError(ErrMissingParameter,
			"no %s query parameter, %s header, or %s header",
			qpAmzDate, headerAmzDate, headerDate)
	}

	for _, layout := range []string{iso8601Compact, time.RFC1123, time.RFC1123Z} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, newError(ErrMalformedHeader,
		"cannot parse request timestamp %q", value)
}

// credentialScope is the scope the server expects for this request:
// date/region/service/aws4_request, with the date taken from the request
// timestamp.
func (p *parsedRequest) credentialScope() (string, error) {
	ts, err := p.timestamp()
	if err != nil {
		return "", err
	}

	return ts.Format(scopeDateFormat) + "/" + p.req.Region + "/" +
		p.req.Service + "/" + aws4Request, nil
}

// accessKey returns the access key ID from the request credential,
// validating the credential scope against the expected one.
func (p *parsedRequest) accessKey() (string, error) {
	cred, err := p.singleQueryParam(qpAmzCredential)
	if err != nil {
		return "", err
	}
	if cred == "" {
		cred = p.authParam(paramCredential)
	}
	if cred == "" {
		return "", newError(ErrMissingParameter,
			"no %s query parameter or %s authorization parameter",
			qpAmzCredential, paramCredential)
	}

	accessKey, requestScope, found := strings.Cut(cred, "/")
	if !found {
		return "", newError(ErrInvalidCredential, "malformed credential %q", cred)
	}

	expectedScope, err := p.credentialScope()
	if err != nil {
		return "", err
	}
	if requestScope != expectedScope {
		return "", newError(ErrInvalidCredential,
			"credential scope %q does not match expected %q",
			requestScope, expectedScope)
	}

	return accessKey, nil
}

// sessionToken returns the session token sent with the request, or "" if
// the request used long-term credentials.
func (p *parsedRequest) sessionToken() (string, error) {
	token, err := p.singleQueryParam(qpAmzToken)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}
	return p.singleHeader(headerAmzToken)
}

// requestSignature returns the signature presented by the client.
func (p *parsedRequest) requestSignature() (string, error) {
	sig, err := p.singleQueryParam(qpAmzSignature)
	if err != nil {
		return "", err
	}
	if sig != "" {
		return sig, nil
	}

	if sig = p.authParam(paramSignature); sig == "" {
		return "", newError(ErrMissingParameter,
			"no %s query parameter or %s authorization parameter",
			qpAmzSignature, paramSignature)
	}
	return sig, nil
}

// canonicalQueryString builds the sorted, normalized query string used in
// the canonical request. The client's signature parameter is excluded,
// and form-encoded bodies contribute their parameters here instead of to
// the body hash.
func (p *parsedRequest) canonicalQueryString() (string, error) {
	var results []string
	for key, values := range p.query {
		if key == qpAmzSignature {
			continue
		}
		for _, value := range values {
			results = append(results, key+"="+value)
		}
	}

	contentType, charset, err := p.contentTypeAndCharset()
	if err != nil {
		return "", err
	}
	if contentType == formURLEncoded {
		encoding, err := htmlindex.Get(charset)
		if err != nil {
			return "", newError(ErrInvalidBodyEncoding,
				"no decoder for charset %q", charset)
		}

		utf8Body, err := encoding.NewDecoder().Bytes(p.req.Body)
		if err != nil {
			return "", newError(ErrInvalidBodyEncoding,
				"cannot decode form body as %q", charset)
		}

		bodyParams, err := NormalizeQueryParameters(string(utf8Body))
		if err != nil {
			return "", err
		}
		for key, values := range bodyParams {
			if key == qpAmzSignature {
				continue
			}
			for _, value := range values {
				results = append(results, key+"="+value)
			}
		}
	}

	sort.Strings(results)
	return strings.Join(results, "&"), nil
}

// bodyDigest is the hex SHA-256 of the body, or the empty-body digest
// when the body was folded into the query string.
func (p *parsedRequest) bodyDigest() (string, error) {
	contentType, _, err := p.contentTypeAndCharset()
	if err != nil {
		return "", err
	}
	if contentType == formURLEncoded {
		return emptyBodySHA256, nil
	}

	digest := sha256.Sum256(p.req.Body)
	return hex.EncodeToString(digest[:]), nil
}

// canonicalRequest assembles the canonical request bytes:
//
//	method \n path \n query \n header:value... \n \n signed-list \n body-digest
func (p *parsedRequest) canonicalRequest() ([]byte, error) {
	path, err := CanonicalizeURIPath(p.req.Path)
	if err != nil {
		return nil, err
	}

	query, err := p.canonicalQueryString()
	if err != nil {
		return nil, err
	}

	signed, err := p.signedHeaders()
	if err != nil {
		return nil, err
	}

	digest, err := p.bodyDigest()
	if err != nil {
		return nil, err
	}

	var creq bytes.Buffer
	creq.WriteString(p.req.Method)
	creq.WriteByte('\n')
	creq.WriteString(path)
	creq.WriteByte('\n')
	creq.WriteString(query)
	creq.WriteByte('\n')
	for _, h := range signed {
		creq.WriteString(h.name)
		creq.WriteByte(':')
		creq.WriteString(h.value)
		creq.WriteByte('\n')
	}
	creq.WriteByte('\n')
	for i, h := range signed {
		if i > 0 {
			creq.WriteByte(';')
		}
		creq.WriteString(h.name)
	}
	creq.WriteByte('\n')
	creq.WriteString(digest)

	return creq.Bytes(), nil
}

// stringToSign builds the SigV4 string to sign for the request.
func (p *parsedRequest) stringToSign() (string, error) {
	ts, err := p.timestamp()
	if err != nil {
		return "", err
	}

	scope, err := p.credentialScope()
	if err != nil {
		return "", err
	}

	creq, err := p.canonicalRequest()
	if err != nil {
		return "", err
	}

	creqDigest := sha256.Sum256(creq)
	return algorithm + "\n" +
		ts.Format(iso8601Compact) + "\n" +
		scope + "\n" +
		hex.EncodeToString(creqDigest[:]), nil
}

// CanonicalRequest returns the canonical request representation used as
// input to the signature computation. Exposed for diagnostics.
func (r *Request) CanonicalRequest() ([]byte, error) {
	p, err := r.parse()
	if err != nil {
		return nil, err
	}
	return p.canonicalRequest()
}

// StringToSign returns the string whose HMAC is the request signature.
// Exposed for diagnostics.
func (r *Request) StringToSign() (string, error) {
	p, err := r.parse()
	if err != nil {
		return "", err
	}
	return p.stringToSign()
}
