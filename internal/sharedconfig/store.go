package sharedconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/ini.v1"

	"ssotoken/internal/api"
	"ssotoken/pkg/logging"
)

const (
	profilePrefix    = "profile "
	ssoSessionPrefix = "sso-session "
	defaultProfile   = "default"

	keySsoSession            = "sso_session"
	keyRegion                = "region"
	keySsoAccountID          = "sso_account_id"
	keySsoRoleName           = "sso_role_name"
	keySsoStartURL           = "sso_start_url"
	keySsoRegion             = "sso_region"
	keySsoRegistrationScopes = "sso_registration_scopes"
)

// Keys that make a profile something other than an SSO token profile.
var foreignProfileKeys = []string{
	keySsoAccountID,
	keySsoRoleName,
	"aws_access_key_id",
	"credential_process",
	"role_arn",
	"source_profile",
	"web_identity_token_file",
}

var loadOptions = ini.LoadOptions{
	AllowNestedValues:       true,
	IgnoreInlineComment:     true,
	SkipUnrecognizableLines: true,
}

// Store reads and writes one shared config file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the file at path. An empty path means the
// host has no usable shared config location.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the shared config file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (*ini.File, error) {
	if s.path == "" {
		return nil, api.NewError(api.ErrRuntimeNotSupported, "no shared config location is available on this host")
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ini.Empty(loadOptions), nil
	}
	if err != nil {
		return nil, api.WrapError(api.ErrCannotReadSharedConfig, "cannot read shared config", err)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, api.WrapError(api.ErrCannotReadSharedConfig, "cannot parse shared config", err)
	}
	return f, nil
}

// profileName returns the profile name of a section, or "" when the section
// is not a profile.
func profileName(section string) string {
	if section == defaultProfile {
		return defaultProfile
	}
	if strings.HasPrefix(section, profilePrefix) {
		return strings.TrimSpace(strings.TrimPrefix(section, profilePrefix))
	}
	return ""
}

func profileSection(name string) string {
	if name == defaultProfile {
		return defaultProfile
	}
	return profilePrefix + name
}

func isSsoTokenProfile(sec *ini.Section) bool {
	if sec.Key(keySsoSession).String() == "" {
		return false
	}
	return !sec.HasKey(keySsoAccountID) && !sec.HasKey(keySsoRoleName)
}

func parseScopes(v string) []string {
	var scopes []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func readSession(f *ini.File, name string) (api.SsoSession, bool) {
	sec, err := f.GetSection(ssoSessionPrefix + name)
	if err != nil {
		return api.SsoSession{}, false
	}
	return api.SsoSession{
		Name:                  name,
		SsoStartURL:           sec.Key(keySsoStartURL).String(),
		SsoRegion:             sec.Key(keySsoRegion).String(),
		SsoRegistrationScopes: parseScopes(sec.Key(keySsoRegistrationScopes).String()),
	}, true
}

// List returns the SSO token profiles whose sso-session is complete, and
// each referenced session once.
func (s *Store) List(ctx context.Context) (*api.ListProfilesResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	f, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &api.ListProfilesResult{Profiles: []api.Profile{}, SsoSessions: []api.SsoSession{}}
	listed := map[string]bool{}

	for _, sec := range f.Sections() {
		name := profileName(sec.Name())
		if name == "" || !isSsoTokenProfile(sec) {
			continue
		}

		sessionName := sec.Key(keySsoSession).String()
		session, ok := readSession(f, sessionName)
		if !ok || session.SsoStartURL == "" || session.SsoRegion == "" || len(session.SsoRegistrationScopes) == 0 {
			logging.Debug("SharedConfig", "Skipping profile %s: sso-session %s is incomplete", name, sessionName)
			continue
		}

		result.Profiles = append(result.Profiles, api.Profile{
			Kind:           api.ProfileKindSsoToken,
			Name:           name,
			Region:         sec.Key(keyRegion).String(),
			SsoSessionName: sessionName,
		})
		if !listed[sessionName] {
			listed[sessionName] = true
			result.SsoSessions = append(result.SsoSessions, session)
		}
	}

	return result, nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "[] \t\r\n")
}

func validateProfile(p api.Profile) error {
	if p.Kind != "" && p.Kind != api.ProfileKindSsoToken {
		return api.NewError(api.ErrInvalidProfile, fmt.Sprintf("unsupported profile kind %q", p.Kind))
	}
	if !validName(p.Name) {
		return api.NewError(api.ErrInvalidProfile, fmt.Sprintf("invalid profile name %q", p.Name))
	}
	if !validName(p.SsoSessionName) {
		return api.NewError(api.ErrInvalidProfile, fmt.Sprintf("profile %s has an invalid sso-session name %q", p.Name, p.SsoSessionName))
	}
	return nil
}

func validateSession(ss *api.SsoSession, profile api.Profile) error {
	if ss.Name != profile.SsoSessionName {
		return api.NewError(api.ErrInvalidSsoSession,
			fmt.Sprintf("sso-session %q does not match profile sso-session %q", ss.Name, profile.SsoSessionName))
	}
	u, err := url.Parse(ss.SsoStartURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return api.NewError(api.ErrInvalidSsoSession, fmt.Sprintf("invalid sso_start_url %q", ss.SsoStartURL))
	}
	if strings.TrimSpace(ss.SsoRegion) == "" {
		return api.NewError(api.ErrInvalidSsoSession, "sso_region is required")
	}
	return nil
}

// Update creates or updates an SSO token profile and, optionally, the
// sso-session it references.
func (s *Store) Update(ctx context.Context, params api.UpdateProfileParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateProfile(params.Profile); err != nil {
		return err
	}
	if params.SsoSession != nil {
		if err := validateSession(params.SsoSession, params.Profile); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}

	if err := applyProfile(f, params.Profile, params.Options); err != nil {
		return err
	}
	if err := applySession(f, params.Profile, params.SsoSession, params.Options); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.save(f); err != nil {
		return api.WrapError(api.ErrCannotWriteSharedConfig, "cannot write shared config", err)
	}

	logging.Info("SharedConfig", "Updated profile %s (sso-session %s) in %s", params.Profile.Name, params.Profile.SsoSessionName, s.path)
	return nil
}

func applyProfile(f *ini.File, p api.Profile, opts *api.UpdateProfileOptions) error {
	sec, err := f.GetSection(profileSection(p.Name))
	if err != nil {
		if !opts.CreateProfile() {
			return api.NewError(api.ErrInvalidProfile, fmt.Sprintf("profile %s does not exist", p.Name))
		}
		sec, err = f.NewSection(profileSection(p.Name))
		if err != nil {
			return api.WrapError(api.ErrInvalidProfile, "cannot create profile section", err)
		}
	} else {
		for _, k := range foreignProfileKeys {
			if sec.HasKey(k) {
				return api.NewError(api.ErrCannotOverwriteProfile,
					fmt.Sprintf("profile %s is not an SSO token profile (has %s)", p.Name, k))
			}
		}
	}

	sec.Key(keySsoSession).SetValue(p.SsoSessionName)
	if p.Region != "" {
		sec.Key(keyRegion).SetValue(p.Region)
	}
	return nil
}

func applySession(f *ini.File, p api.Profile, ss *api.SsoSession, opts *api.UpdateProfileOptions) error {
	existing, exists := readSession(f, p.SsoSessionName)

	if ss == nil {
		if !exists {
			return api.NewError(api.ErrInvalidSsoSession, fmt.Sprintf("sso-session %s does not exist", p.SsoSessionName))
		}
		return nil
	}

	if !exists {
		if !opts.CreateSsoSession() {
			return api.NewError(api.ErrInvalidSsoSession, fmt.Sprintf("sso-session %s does not exist", ss.Name))
		}
	} else if !sameSession(existing, *ss) && sharedWithOthers(f, ss.Name, p.Name) && !opts.UpdateSharedSession() {
		return api.NewError(api.ErrCannotOverwriteSsoSession,
			fmt.Sprintf("sso-session %s is used by other profiles", ss.Name))
	}

	sec, err := f.NewSection(ssoSessionPrefix + ss.Name)
	if err != nil {
		return api.WrapError(api.ErrInvalidSsoSession, "cannot create sso-session section", err)
	}
	sec.Key(keySsoStartURL).SetValue(ss.SsoStartURL)
	sec.Key(keySsoRegion).SetValue(ss.SsoRegion)
	if len(ss.SsoRegistrationScopes) > 0 {
		sec.Key(keySsoRegistrationScopes).SetValue(strings.Join(ss.SsoRegistrationScopes, ","))
	} else {
		sec.DeleteKey(keySsoRegistrationScopes)
	}
	return nil
}

func sameSession(a, b api.SsoSession) bool {
	if a.SsoStartURL != b.SsoStartURL || a.SsoRegion != b.SsoRegion || len(a.SsoRegistrationScopes) != len(b.SsoRegistrationScopes) {
		return false
	}
	for i := range a.SsoRegistrationScopes {
		if a.SsoRegistrationScopes[i] != b.SsoRegistrationScopes[i] {
			return false
		}
	}
	return true
}

func sharedWithOthers(f *ini.File, session, profile string) bool {
	for _, sec := range f.Sections() {
		name := profileName(sec.Name())
		if name == "" || name == profile {
			continue
		}
		if sec.Key(keySsoSession).String() == session {
			return true
		}
	}
	return false
}

// save writes f next to the target and renames it into place.
func (s *Store) save(f *ini.File) (err error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	mode := os.FileMode(0600)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
