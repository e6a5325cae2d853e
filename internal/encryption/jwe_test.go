package encryption

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestJWE_RoundTrip(t *testing.T) {
	j, err := New(testKey(7))
	require.NoError(t, err)

	compact, err := j.Encrypt("aoa-secret-token")
	require.NoError(t, err)
	assert.NotContains(t, compact, "aoa-secret-token")

	parts := strings.Split(compact, ".")
	require.Len(t, parts, 5)
	assert.Empty(t, parts[1], "dir has no encrypted key")

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var h map[string]string
	require.NoError(t, json.Unmarshal(raw, &h))
	assert.Equal(t, map[string]string{"alg": "dir", "enc": "A256GCM"}, h)

	plain, err := j.Decrypt(compact)
	require.NoError(t, err)
	assert.Equal(t, "aoa-secret-token", plain)
}

func TestJWE_FreshIVPerMessage(t *testing.T) {
	j, err := New(testKey(1))
	require.NoError(t, err)

	a, err := j.Encrypt("same")
	require.NoError(t, err)
	b, err := j.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestJWE_WrongKey(t *testing.T) {
	a, err := New(testKey(1))
	require.NoError(t, err)
	b, err := New(testKey(2))
	require.NoError(t, err)

	compact, err := a.Encrypt("token")
	require.NoError(t, err)

	_, err = b.Decrypt(compact)
	assert.Error(t, err)
}

func TestJWE_TamperedHeader(t *testing.T) {
	j, err := New(testKey(3))
	require.NoError(t, err)
	compact, err := j.Encrypt("token")
	require.NoError(t, err)

	parts := strings.Split(compact, ".")
	parts[0] = base64.RawURLEncoding.EncodeToString([]byte(`{"enc":"A256GCM","alg":"dir"}`))
	_, err = j.Decrypt(strings.Join(parts, "."))
	assert.Error(t, err, "header is authenticated")
}

func TestJWE_Malformed(t *testing.T) {
	j, err := New(testKey(4))
	require.NoError(t, err)

	for _, in := range []string{"", "a.b.c", "x..y.z.w", "eyJhbGciOiJSU0EifQ..AA.AA.AA"} {
		_, err := j.Decrypt(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestNew_KeySize(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}
