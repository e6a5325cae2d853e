package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"ssotoken/pkg/logging"
)

const fileExt = ".json"

var (
	// ErrCacheRead is wrapped by every I/O failure while reading a record.
	ErrCacheRead = errors.New("cannot read SSO cache")

	// ErrCacheWrite is wrapped by every I/O failure while writing or removing a record.
	ErrCacheWrite = errors.New("cannot write SSO cache")

	// ErrInvalidID is returned for identifiers that are not plain file names.
	ErrInvalidID = errors.New("invalid cache id")
)

// Token is the persisted record of one SSO token.
type Token struct {
	AccessToken           string    `json:"accessToken"`
	ExpiresAt             time.Time `json:"expiresAt"`
	ClientID              string    `json:"clientId,omitempty"`
	ClientSecret          string    `json:"clientSecret,omitempty"`
	RegistrationExpiresAt time.Time `json:"registrationExpiresAt,omitzero"`
	RefreshToken          string    `json:"refreshToken,omitempty"`
	Region                string    `json:"region"`
	StartURL              string    `json:"startUrl"`
}

// Valid reports whether the access token is still usable at now, keeping
// buffer in reserve for clock skew and in-flight requests.
func (t *Token) Valid(now time.Time, buffer time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(buffer).Before(t.ExpiresAt)
}

// Refreshable reports whether the record carries a refresh token and a
// client registration that has not yet expired.
func (t *Token) Refreshable(now time.Time) bool {
	if t == nil || t.RefreshToken == "" || t.ClientID == "" || t.ClientSecret == "" {
		return false
	}
	return t.RegistrationExpiresAt.IsZero() || now.Before(t.RegistrationExpiresAt)
}

// OAuth2Token converts the record to an oauth2.Token.
func (t *Token) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// Store reads and writes token records in a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

func checkID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Load returns the record for id, or nil when none exists.
//
// A record that cannot be decoded is reported as absent so the next Save
// replaces it.
func (s *Store) Load(ctx context.Context, id string) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheRead, err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		logging.Warn("TokenCache", "Ignoring malformed cache record %s: %v", id, err)
		return nil, nil
	}
	return &tok, nil
}

// Exists reports whether a record for id is present.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := checkID(id); err != nil {
		return false, err
	}

	_, err := os.Stat(s.Path(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrCacheRead, err)
	}
}

// Save writes tok for id. The record is written to a temporary file and
// renamed into place, so readers see either the old or the new record.
func (s *Store) Save(ctx context.Context, id string, tok *Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	if err := s.writeFile(id, tok); err != nil {
		logging.Audit("TokenCache", "token_store_failed", "SSO token storage failed",
			"token_id", id, "start_url", tok.StartURL, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	logging.Audit("TokenCache", "token_stored", "SSO token stored",
		"token_id", id,
		"start_url", tok.StartURL,
		"region", tok.Region,
		"expiry", tok.ExpiresAt.Format(time.RFC3339),
		"has_refresh_token", tok.RefreshToken != "",
	)
	return nil
}

func (s *Store) writeFile(id string, tok *Token) (err error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(id))
}

// Delete removes the record for id. Removing an absent record succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Audit("TokenCache", "token_delete_failed", "SSO token deletion failed",
			"token_id", id, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	logging.Audit("TokenCache", "token_deleted", "SSO token deleted", "token_id", id)
	return nil
}
