package sso

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"ssotoken/internal/api"
)

const (
	// BuilderIssuerURL is the fixed issuer of the builder identity.
	BuilderIssuerURL = "https://view.awsapps.com/start"

	// BuilderRegion is the fixed region of the builder identity.
	BuilderRegion = "us-east-1"
)

// Source is a normalized identity source. Builder identities have already
// been mapped to their fixed issuer and region.
type Source struct {
	ClientName string
	IssuerURL  string
	Region     string
}

// Normalize validates src and maps it to its canonical shape.
func Normalize(src api.IdentitySource) (Source, error) {
	for _, field := range []string{src.ClientName, src.IssuerURL, src.Region} {
		if !utf8.ValidString(field) {
			return Source{}, fmt.Errorf("%w: fields must be valid UTF-8", ErrInvalidSource)
		}
	}

	clientName := strings.TrimSpace(src.ClientName)
	if clientName == "" {
		return Source{}, fmt.Errorf("%w: client name is required", ErrInvalidSource)
	}

	switch src.Kind {
	case api.SourceKindAwsBuilderID:
		return Source{ClientName: clientName, IssuerURL: BuilderIssuerURL, Region: BuilderRegion}, nil

	case api.SourceKindIamIdentityCenter:
		issuer := strings.TrimSpace(src.IssuerURL)
		u, err := url.Parse(issuer)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return Source{}, fmt.Errorf("%w: issuer URL %q is not an absolute http(s) URL", ErrInvalidSource, src.IssuerURL)
		}
		region := strings.TrimSpace(src.Region)
		if region == "" {
			return Source{}, fmt.Errorf("%w: region is required", ErrInvalidSource)
		}
		return Source{ClientName: clientName, IssuerURL: issuer, Region: region}, nil

	default:
		return Source{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, src.Kind)
	}
}
