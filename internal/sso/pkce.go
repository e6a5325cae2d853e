package sso

import (
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ChallengeMethodS256 is the only PKCE method used.
const ChallengeMethodS256 = "S256"

// PKCE holds the single-use secrets of one authorization attempt.
type PKCE struct {
	// Verifier is 32 random bytes, base64url encoded. Never leaves the process
	// except in the code exchange.
	Verifier string

	// Challenge is the base64url encoded SHA-256 digest of Verifier.
	Challenge string

	// Method is always ChallengeMethodS256.
	Method string

	// State is the CSRF value echoed back on the redirect.
	State string
}

// GeneratePKCE creates fresh PKCE material and an independent state value.
func GeneratePKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    ChallengeMethodS256,
		State:     uuid.NewString(),
	}
}
