package sso

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssotoken/internal/api"
)

func TestNormalize(t *testing.T) {
	t.Run("builder identity maps to fixed issuer", func(t *testing.T) {
		src, err := Normalize(api.IdentitySource{
			Kind:       api.SourceKindAwsBuilderID,
			ClientName: "tool",
			IssuerURL:  "https://ignored.example.com",
			Region:     "ap-south-1",
		})
		require.NoError(t, err)
		assert.Equal(t, Source{ClientName: "tool", IssuerURL: BuilderIssuerURL, Region: BuilderRegion}, src)
	})

	t.Run("center identity keeps its fields", func(t *testing.T) {
		src, err := Normalize(api.IdentitySource{
			Kind:       api.SourceKindIamIdentityCenter,
			ClientName: "tool",
			IssuerURL:  "https://d-123.awsapps.com/start",
			Region:     "eu-central-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://d-123.awsapps.com/start", src.IssuerURL)
		assert.Equal(t, "eu-central-1", src.Region)
	})

	tests := []struct {
		name string
		src  api.IdentitySource
	}{
		{"missing client name", api.IdentitySource{Kind: api.SourceKindAwsBuilderID}},
		{"relative issuer", api.IdentitySource{Kind: api.SourceKindIamIdentityCenter, ClientName: "t", IssuerURL: "awsapps.com/start", Region: "us-east-1"}},
		{"non-http issuer", api.IdentitySource{Kind: api.SourceKindIamIdentityCenter, ClientName: "t", IssuerURL: "ftp://host/start", Region: "us-east-1"}},
		{"missing region", api.IdentitySource{Kind: api.SourceKindIamIdentityCenter, ClientName: "t", IssuerURL: "https://host/start"}},
		{"unknown kind", api.IdentitySource{Kind: "Other", ClientName: "t"}},
		{"invalid UTF-8 client name", api.IdentitySource{Kind: api.SourceKindAwsBuilderID, ClientName: "tool\xff"}},
		{"invalid UTF-8 issuer", api.IdentitySource{Kind: api.SourceKindIamIdentityCenter, ClientName: "t", IssuerURL: "https://host/start\xfe", Region: "us-east-1"}},
		{"invalid UTF-8 region", api.IdentitySource{Kind: api.SourceKindIamIdentityCenter, ClientName: "t", IssuerURL: "https://host/start", Region: "us-east-1\xfe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.src)
			assert.ErrorIs(t, err, ErrInvalidSource)
		})
	}
}

func TestTokenID(t *testing.T) {
	builder := Source{ClientName: "ssotoken", IssuerURL: BuilderIssuerURL, Region: BuilderRegion}

	t.Run("matches the shared cache naming", func(t *testing.T) {
		assert.Equal(t, "d127fefbee90a7f7d8e6a6039826dcdafd35a7e2", TokenID(builder))
	})

	t.Run("matches JSON.stringify byte for byte", func(t *testing.T) {
		tests := []struct {
			name string
			src  Source
			want string
		}{
			{
				name: "ampersand is not escaped",
				src:  Source{ClientName: "tool", IssuerURL: "https://x/start?a=1&b=2", Region: "eu-west-1"},
				want: "d72cf9f85014270207d9da4307f7740e165ce0e8",
			},
			{
				name: "angle brackets quotes and control characters",
				src:  Source{ClientName: "<ide>   \"q\" \\ \b\n\t\x01", IssuerURL: "https://d-1.awsapps.com/start", Region: "eu-west-1"},
				want: "3ae29c64a1b497c3da3e4ef3abcbdfa385171ed0",
			},
			{
				name: "line separators are written raw",
				src:  Source{ClientName: "a\u2028b\u2029c \\u2028", IssuerURL: BuilderIssuerURL, Region: BuilderRegion},
				want: "51125087a0db803dae8044adc591ba3f058d60c5",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, TokenID(tt.src))
			})
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, TokenID(builder), TokenID(builder))
	})

	t.Run("every field participates", func(t *testing.T) {
		variants := []Source{
			{ClientName: "other", IssuerURL: builder.IssuerURL, Region: builder.Region},
			{ClientName: builder.ClientName, IssuerURL: "https://d-1.awsapps.com/start", Region: builder.Region},
			{ClientName: builder.ClientName, IssuerURL: builder.IssuerURL, Region: "eu-west-1"},
		}
		seen := map[string]bool{TokenID(builder): true}
		for _, v := range variants {
			id := TokenID(v)
			assert.False(t, seen[id], "collision for %+v", v)
			seen[id] = true
		}
	})

	t.Run("ids are valid", func(t *testing.T) {
		assert.True(t, ValidTokenID(TokenID(builder)))
	})
}

func TestValidTokenID(t *testing.T) {
	assert.True(t, ValidTokenID("d127fefbee90a7f7d8e6a6039826dcdafd35a7e2"))
	assert.False(t, ValidTokenID(""))
	assert.False(t, ValidTokenID("D127FEFBEE90A7F7D8E6A6039826DCDAFD35A7E2"))
	assert.False(t, ValidTokenID("../../../../etc/passwd"))
	assert.False(t, ValidTokenID("d127fefbee90a7f7d8e6a6039826dcdafd35a7e"))
}

func TestGeneratePKCE(t *testing.T) {
	a := GeneratePKCE()
	b := GeneratePKCE()

	assert.Equal(t, ChallengeMethodS256, a.Method)
	assert.GreaterOrEqual(t, len(a.Verifier), 43, "at least 32 bytes of entropy")
	assert.NotContains(t, a.Verifier, "=")
	assert.NotEqual(t, a.Verifier, a.Challenge)
	assert.NotEqual(t, a.Verifier, b.Verifier)
	assert.NotEqual(t, a.State, b.State)
	assert.NotEqual(t, a.State, a.Verifier)
}
