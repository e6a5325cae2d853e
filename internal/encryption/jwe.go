// Package encryption wraps access tokens handed to callers in a compact JWE
// using direct key agreement and AES-256-GCM.
package encryption

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tink-crypto/tink-go/v2/aead/subtle"
)

const (
	// KeySize is the required key length in bytes.
	KeySize = 32

	ivSize  = 12
	tagSize = 16
)

// ErrMalformed is returned when a value is not a compact dir/A256GCM JWE.
var ErrMalformed = errors.New("malformed JWE")

type header struct {
	Alg string `json:"alg"`
	Enc string `json:"enc"`
}

var protectedHeader = mustEncodeHeader(header{Alg: "dir", Enc: "A256GCM"})

func mustEncodeHeader(h header) string {
	b, err := json.Marshal(h)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// JWE encrypts and decrypts compact JWE strings with a shared key.
type JWE struct {
	aead *subtle.AESGCM
}

// New returns a JWE codec for a 256-bit key.
func New(key []byte) (*JWE, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	a, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES-GCM: %w", err)
	}
	return &JWE{aead: a}, nil
}

// Encrypt returns plaintext as a compact JWE.
func (j *JWE) Encrypt(plaintext string) (string, error) {
	// The protected header is the additional authenticated data.
	sealed, err := j.aead.Encrypt([]byte(plaintext), []byte(protectedHeader))
	if err != nil {
		return "", fmt.Errorf("encrypting: %w", err)
	}
	if len(sealed) < ivSize+tagSize {
		return "", fmt.Errorf("encrypting: short output")
	}

	iv := sealed[:ivSize]
	ciphertext := sealed[ivSize : len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.RawURLEncoding
	return strings.Join([]string{
		protectedHeader,
		"",
		enc.EncodeToString(iv),
		enc.EncodeToString(ciphertext),
		enc.EncodeToString(tag),
	}, "."), nil
}

// Decrypt reverses Encrypt.
func (j *JWE) Decrypt(compact string) (string, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 5 || parts[1] != "" {
		return "", ErrMalformed
	}

	enc := base64.RawURLEncoding
	rawHeader, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	var h header
	if err := json.Unmarshal(rawHeader, &h); err != nil || h.Alg != "dir" || h.Enc != "A256GCM" {
		return "", fmt.Errorf("%w: unsupported header", ErrMalformed)
	}

	iv, err := enc.DecodeString(parts[2])
	if err != nil || len(iv) != ivSize {
		return "", fmt.Errorf("%w: iv", ErrMalformed)
	}
	ciphertext, err := enc.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext", ErrMalformed)
	}
	tag, err := enc.DecodeString(parts[4])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: tag", ErrMalformed)
	}

	sealed := make([]byte, 0, len(iv)+len(ciphertext)+len(tag))
	sealed = append(sealed, iv...)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := j.aead.Decrypt(sealed, []byte(parts[0]))
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plain), nil
}
