package api

// SsoTokenID is the opaque, deterministic handle of a cached SSO token.
// It doubles as the cache file name.
type SsoTokenID = string

// SourceKind discriminates the identity source union.
type SourceKind string

const (
	// SourceKindIamIdentityCenter is an identity source with a caller-supplied
	// issuer URL and region.
	SourceKindIamIdentityCenter SourceKind = "IamIdentityCenter"

	// SourceKindAwsBuilderID is the provider-hosted default identity source.
	// It carries no issuer configuration of its own.
	SourceKindAwsBuilderID SourceKind = "AwsBuilderId"
)

// IdentitySource is the tagged union of token sources a caller can ask for.
// IssuerURL and Region are only meaningful for SourceKindIamIdentityCenter;
// builder sources are normalized to a fixed issuer and region before use.
type IdentitySource struct {
	Kind       SourceKind `json:"kind"`
	ClientName string     `json:"clientName"`
	IssuerURL  string     `json:"issuerUrl,omitempty"`
	Region     string     `json:"region,omitempty"`
}

// GetSsoTokenOptions controls how GetToken behaves on a cache miss and how
// the resulting token is managed. Nil fields default to true.
type GetSsoTokenOptions struct {
	AutoRefresh         *bool `json:"autoRefresh,omitempty"`
	ChangeNotifications *bool `json:"changeNotifications,omitempty"`
	LoginOnInvalidToken *bool `json:"loginOnInvalidToken,omitempty"`
}

// AutoRefreshOrDefault returns the effective auto-refresh setting.
func (o *GetSsoTokenOptions) AutoRefreshOrDefault() bool {
	if o == nil {
		return true
	}
	return boolOrTrue(o.AutoRefresh)
}

// ChangeNotificationsOrDefault returns the effective change-notification setting.
func (o *GetSsoTokenOptions) ChangeNotificationsOrDefault() bool {
	if o == nil {
		return true
	}
	return boolOrTrue(o.ChangeNotifications)
}

// LoginOnInvalidTokenOrDefault reports whether an interactive login may be started.
func (o *GetSsoTokenOptions) LoginOnInvalidTokenOrDefault() bool {
	if o == nil {
		return true
	}
	return boolOrTrue(o.LoginOnInvalidToken)
}

func boolOrTrue(b *bool) bool {
	return b == nil || *b
}

// GetSsoTokenParams are the parameters of the GetToken operation.
type GetSsoTokenParams struct {
	Source  IdentitySource      `json:"source"`
	Scopes  []string            `json:"scopes,omitempty"`
	Options *GetSsoTokenOptions `json:"options,omitempty"`
}

// SsoToken is the only view of a cached token handed to callers.
type SsoToken struct {
	ID          SsoTokenID `json:"id"`
	AccessToken string     `json:"accessToken"`
}

// GetSsoTokenResult carries the token, or nil when none is available
// without interaction, or when the request was cancelled.
type GetSsoTokenResult struct {
	SsoToken *SsoToken `json:"ssoToken,omitempty"`
}

// InvalidateSsoTokenParams are the parameters of InvalidateToken.
type InvalidateSsoTokenParams struct {
	SsoTokenID SsoTokenID `json:"ssoTokenId"`
}

// InvalidateSsoTokenResult is intentionally empty.
type InvalidateSsoTokenResult struct{}

// UpdateSsoTokenManagementParams are the parameters of UpdateTokenManagement.
// Nil fields leave the current value unchanged.
type UpdateSsoTokenManagementParams struct {
	SsoTokenID          SsoTokenID `json:"ssoTokenId"`
	AutoRefresh         *bool      `json:"autoRefresh,omitempty"`
	ChangeNotifications *bool      `json:"changeNotifications,omitempty"`
}

// UpdateSsoTokenManagementResult reports the settings after the update.
type UpdateSsoTokenManagementResult struct {
	SsoTokenID          SsoTokenID `json:"ssoTokenId"`
	AutoRefresh         bool       `json:"autoRefresh"`
	ChangeNotifications bool       `json:"changeNotifications"`
}

// SsoTokenChangedKind is the lifecycle transition announced to subscribers.
type SsoTokenChangedKind string

const (
	SsoTokenCreated     SsoTokenChangedKind = "Created"
	SsoTokenRefreshed   SsoTokenChangedKind = "Refreshed"
	SsoTokenExpired     SsoTokenChangedKind = "Expired"
	SsoTokenInvalidated SsoTokenChangedKind = "Invalidated"
)

// SsoTokenChangedParams is the payload of the TokenChanged notification.
type SsoTokenChangedParams struct {
	Kind       SsoTokenChangedKind `json:"kind"`
	SsoTokenID SsoTokenID          `json:"ssoTokenId"`
}

// ProfileKind discriminates shared-config profile kinds. Only SSO token
// profiles are supported.
type ProfileKind string

// ProfileKindSsoToken is a profile that references an sso-session and
// carries no account or role.
const ProfileKindSsoToken ProfileKind = "SsoToken"

// Profile is a named profile section of the shared config file.
type Profile struct {
	Kind           ProfileKind `json:"kind"`
	Name           string      `json:"name"`
	Region         string      `json:"region,omitempty"`
	SsoSessionName string      `json:"ssoSessionName"`
}

// SsoSession is a named sso-session section of the shared config file.
type SsoSession struct {
	Name                  string   `json:"name"`
	SsoStartURL           string   `json:"ssoStartUrl"`
	SsoRegion             string   `json:"ssoRegion"`
	SsoRegistrationScopes []string `json:"ssoRegistrationScopes,omitempty"`
}

// ListProfilesResult is the result of ListProfiles.
type ListProfilesResult struct {
	Profiles    []Profile    `json:"profiles"`
	SsoSessions []SsoSession `json:"ssoSessions"`
}

// UpdateProfileOptions controls which sections UpdateProfile may create or
// overwrite. Nil fields take the documented defaults.
type UpdateProfileOptions struct {
	CreateNonexistentProfile    *bool `json:"createNonexistentProfile,omitempty"`    // default true
	CreateNonexistentSsoSession *bool `json:"createNonexistentSsoSession,omitempty"` // default true
	UpdateSharedSsoSession      *bool `json:"updateSharedSsoSession,omitempty"`      // default false
}

// CreateProfile reports whether a missing profile may be created.
func (o *UpdateProfileOptions) CreateProfile() bool {
	return o == nil || boolOrTrue(o.CreateNonexistentProfile)
}

// CreateSsoSession reports whether a missing sso-session may be created.
func (o *UpdateProfileOptions) CreateSsoSession() bool {
	return o == nil || boolOrTrue(o.CreateNonexistentSsoSession)
}

// UpdateSharedSession reports whether an sso-session referenced by other
// profiles may be rewritten.
func (o *UpdateProfileOptions) UpdateSharedSession() bool {
	return o != nil && o.UpdateSharedSsoSession != nil && *o.UpdateSharedSsoSession
}

// UpdateProfileParams are the parameters of UpdateProfile.
type UpdateProfileParams struct {
	Profile    Profile               `json:"profile"`
	SsoSession *SsoSession           `json:"ssoSession,omitempty"`
	Options    *UpdateProfileOptions `json:"options,omitempty"`
}

// UpdateProfileResult is intentionally empty.
type UpdateProfileResult struct{}

// AuthorizeParams is the payload of the notification asking the client to
// open the authorization page.
type AuthorizeParams struct {
	SsoTokenID SsoTokenID `json:"ssoTokenId"`
	URL        string     `json:"url"`
}

// Bool returns a pointer to b, for optional boolean fields.
func Bool(b bool) *bool {
	return &b
}
