package sso

import (
	"bytes"
	"crypto/sha1" // #nosec G505 -- identifier only, shared with other AWS SSO caches
	"encoding/hex"
	"encoding/json"

	"ssotoken/internal/api"
)

// Field order is part of the identifier.
type fingerprintInput struct {
	Region   string `json:"region"`
	StartURL string `json:"startUrl"`
	Tool     string `json:"tool"`
}

// TokenID derives the token identifier of a normalized source. The hashed
// bytes are those JSON.stringify produces for the same object, so ids match
// the cache file names of other AWS toolkits. Fields must be valid UTF-8,
// which Normalize guarantees.
func TokenID(s Source) api.SsoTokenID {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding three strings cannot fail.
	_ = enc.Encode(fingerprintInput{Region: s.Region, StartURL: s.IssuerURL, Tool: s.ClientName})

	b := unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	sum := sha1.Sum(b) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes of
// encoding/json back into the raw characters JSON.stringify writes.
// Escapes are consumed in pairs so an escaped backslash followed by
// "u2028" is left alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 == len(b) {
			out = append(out, b[i])
			continue
		}
		if rest := b[i+1:]; bytes.HasPrefix(rest, []byte("u2028")) || bytes.HasPrefix(rest, []byte("u2029")) {
			r := '\u2028'
			if rest[4] == '9' {
				r = '\u2029'
			}
			out = append(out, string(r)...)
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// ValidTokenID reports whether id has the shape of a derived identifier.
func ValidTokenID(id string) bool {
	if len(id) != 2*sha1.Size {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
