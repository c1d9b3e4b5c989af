package sigv4

import (
	"regexp"
	"sort"
	"strings"
)

var multislash = regexp.MustCompile("//+")

// isRFC3986Unreserved reports whether c is in the RFC 3986 unreserved
// set: ALPHA / DIGIT / "-" / "." / "_" / "~".
func isRFC3986Unreserved(c byte) bool {
	return (c >= '0' && c <= '9') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func hexDigitValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

const upperhex = "0123456789ABCDEF"

// NormalizeURIPathComponent normalizes a single path (or query) component
// according to RFC 3986: unreserved characters pass through, everything
// else is percent-encoded, existing percent-escapes are upper-cased (or
// decoded if they cover an unreserved character), and '+' is rewritten to
// "%20". Invalid percent-escapes are an error.
func NormalizeURIPathComponent(component string) (string, error) {
	var out strings.Builder

	for i := 0; i < len(component); {
		c := component[i]
		switch {
		case isRFC3986Unreserved(c):
			out.WriteByte(c)
			i++

		case c == '%':
			if i+3 > len(component) {
				return "", newError(ErrInvalidURIPath,
					"truncated %% escape at index %d: %q", i, component)
			}

			hi, okHi := hexDigitValue(component[i+1])
			lo, okLo := hexDigitValue(component[i+2])
			if !okHi || !okLo {
				return "", newError(ErrInvalidURIPath,
					"invalid %% escape at index %d: %q", i, component)
			}

			v := hi<<4 | lo
			if isRFC3986Unreserved(v) {
				// Should not have been encoded at all.
				out.WriteByte(v)
			} else {
				out.WriteByte('%')
				out.WriteByte(upperhex[v>>4])
				out.WriteByte(upperhex[v&0xf])
			}
			i += 3

		case c == '+':
			// Plus-encoded space.
			out.WriteString("%20")
			i++

		default:
			out.WriteByte('%')
			out.WriteByte(upperhex[c>>4])
			out.WriteByte(upperhex[c&0xf])
			i++
		}
	}

	return out.String(), nil
}

// CanonicalizeURIPath normalizes an absolute URI path: redundant slashes
// are collapsed, "." components removed, ".." components resolved (an
// attempt to navigate above the root is an error), and each component is
// normalized per NormalizeURIPathComponent. An empty path becomes "/".
func CanonicalizeURIPath(uriPath string) (string, error) {
	if uriPath == "" || uriPath == "/" {
		return "/", nil
	}

	if !strings.HasPrefix(uriPath, "/") {
		return "", newError(ErrInvalidURIPath, "path is not absolute: %q", uriPath)
	}

	uriPath = multislash.ReplaceAllString(uriPath, "/")

	components := strings.Split(uriPath, "/")

	// components[0] is the empty string before the leading "/".
	for i := 1; i < len(components); {
		component, err := NormalizeURIPathComponent(components[i])
		if err != nil {
			return "", err
		}

		switch component {
		case ".":
			components = append(components[:i], components[i+1:]...)

		case "..":
			if i <= 1 {
				return "", newError(ErrInvalidURIPath,
					"'..' navigates above root: %q", uriPath)
			}
			components = append(components[:i-1], components[i+1:]...)
			i--

		default:
			components[i] = component
			i++
		}
	}

	if len(components) < 2 {
		return "/", nil
	}
	return strings.Join(components, "/"), nil
}

// NormalizeQueryParameters parses a raw query string into a map of
// normalized key to sorted normalized values. Empty components ("&&") are
// skipped; a component without "=" gets an empty value. Invalid percent
// encodings are an error.
func NormalizeQueryParameters(queryString string) (map[string][]string, error) {
	result := make(map[string][]string)

	if queryString == "" {
		return result, nil
	}

	for _, component := range strings.Split(queryString, "&") {
		if component == "" {
			continue
		}

		key, value, _ := strings.Cut(component, "=")

		key, err := NormalizeURIPathComponent(key)
		if err != nil {
			return nil, newError(ErrInvalidQueryString,
				"bad query component %q: %v", component, err)
		}

		value, err = NormalizeURIPathComponent(value)
		if err != nil {
			return nil, newError(ErrInvalidQueryString,
				"bad query component %q: %v", component, err)
		}

		result[key] = append(result[key], value)
	}

	for key := range result {
		sort.Strings(result[key])
	}

	return result, nil
}
