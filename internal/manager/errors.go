package manager

import (
	"context"
	"errors"

	"ssotoken/internal/api"
	"ssotoken/internal/cache"
	"ssotoken/internal/sso"
)

var errNotRefreshable = errors.New("cached record has no usable refresh material")

// getTokenError converts a GetToken failure to its wire error.
func getTokenError(err error) error {
	var apiErr *api.Error
	var providerErr *sso.ProviderError

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, sso.ErrInvalidSource),
		errors.Is(err, sso.ErrStateMismatch),
		errors.Is(err, sso.ErrMissingCode),
		errors.Is(err, cache.ErrInvalidID):
		return api.WrapError(api.ErrInvalidToken, "authorization was rejected", err)
	case errors.Is(err, sso.ErrCallbackTimeout), errors.Is(err, context.DeadlineExceeded):
		return api.WrapError(api.ErrTimeout, "timed out", err)
	case errors.As(err, &providerErr):
		return api.WrapError(api.ErrUnknown, providerErr.Error(), err)
	case errors.Is(err, cache.ErrCacheRead), errors.Is(err, cache.ErrCacheWrite):
		return api.WrapError(api.ErrUnknown, "sso cache failure", err)
	default:
		return api.WrapError(api.ErrUnknown, "cannot get sso token", err)
	}
}

// cacheError converts a cache failure of InvalidateToken to its wire error.
func cacheError(err error) error {
	switch {
	case errors.Is(err, cache.ErrCacheRead):
		return api.WrapError(api.ErrCannotReadSsoCache, "cannot read sso cache", err)
	case errors.Is(err, cache.ErrCacheWrite):
		return api.WrapError(api.ErrCannotWriteSsoCache, "cannot write sso cache", err)
	case errors.Is(err, cache.ErrInvalidID):
		return api.WrapError(api.ErrInvalidToken, "malformed sso token id", err)
	case errors.Is(err, context.DeadlineExceeded):
		return api.WrapError(api.ErrTimeout, "timed out", err)
	default:
		return api.WrapError(api.ErrUnknown, "sso cache failure", err)
	}
}
