package sso

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"

	"ssotoken/internal/api"
	"ssotoken/pkg/logging"
)

// FlowState is the state of one authorization attempt.
type FlowState int

const (
	StateIdle FlowState = iota
	StateClientRegistered
	StateListenerBound
	StateAwaitingRedirect
	StateExchangingCode
	StateComplete
	StateFailed
	StateCancelled
)

// String returns the string representation of the flow state.
func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClientRegistered:
		return "client_registered"
	case StateListenerBound:
		return "listener_bound"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateExchangingCode:
		return "exchanging_code"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s FlowState) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// AuthorizeFunc hands the authorize URL of a flow to the user. It must not
// block for long; the redirect wait starts once it returns.
type AuthorizeFunc func(ctx context.Context, tokenID api.SsoTokenID, url string)

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	CallbackAddress string
	CallbackPath    string

	// Timeout bounds the wait for the redirect.
	Timeout time.Duration

	Authorize AuthorizeFunc

	// OnTransition, when set, observes every state change.
	OnTransition func(tokenID api.SsoTokenID, from, to FlowState)
}

// FlowResult is the outcome of a completed flow.
type FlowResult struct {
	Registration Registration
	Token        *oauth2.Token
}

// Controller runs authorization flows. The callback address is shared, so
// flows queue on a semaphore of size one for the listener.
type Controller struct {
	cfg  ControllerConfig
	port *semaphore.Weighted
}

// NewController creates a flow controller.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		cfg:  cfg,
		port: semaphore.NewWeighted(1),
	}
}

// RedirectURI returns the redirect URI every flow registers.
func (c *Controller) RedirectURI() string {
	return "http://" + c.cfg.CallbackAddress + c.cfg.CallbackPath
}

type flow struct {
	id      string
	tokenID api.SsoTokenID
	state   FlowState
	ctrl    *Controller
}

func (f *flow) transition(to FlowState) {
	from := f.state
	f.state = to
	logging.Debug("AuthFlow", "Flow %s for %s: %s -> %s", f.id, f.tokenID, from, to)
	if f.ctrl.cfg.OnTransition != nil {
		f.ctrl.cfg.OnTransition(f.tokenID, from, to)
	}
}

// end moves the flow to its terminal state. Cancellation by the caller is
// reported as Cancelled; everything else, including deadlines, as Failed.
func (f *flow) end(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		f.transition(StateCancelled)
		return ctx.Err()
	}
	f.transition(StateFailed)
	logging.Info("AuthFlow", "Flow %s for %s failed: %v", f.id, f.tokenID, err)
	return err
}

// Run drives one authorization flow for tokenID to completion. The returned
// error is ctx.Err() when the caller cancelled.
func (c *Controller) Run(ctx context.Context, tokenID api.SsoTokenID, client *ExchangeClient) (*FlowResult, error) {
	f := &flow{id: uuid.NewString(), tokenID: tokenID, state: StateIdle, ctrl: c}
	logging.Info("AuthFlow", "Starting authorization flow %s for %s (%s)", f.id, tokenID, client.Source().IssuerURL)

	reg, err := client.Register(ctx)
	if err != nil {
		return nil, f.end(ctx, err)
	}
	f.transition(StateClientRegistered)

	if err := c.port.Acquire(ctx, 1); err != nil {
		return nil, f.end(ctx, err)
	}
	defer c.port.Release(1)

	srv := NewCallbackServer(c.cfg.CallbackAddress, c.cfg.CallbackPath)
	if err := srv.Start(ctx); err != nil {
		return nil, f.end(ctx, err)
	}
	defer srv.Stop()
	f.transition(StateListenerBound)

	pkce := GeneratePKCE()
	authURL := client.AuthorizeURL(reg, pkce)

	f.transition(StateAwaitingRedirect)
	if c.cfg.Authorize != nil {
		c.cfg.Authorize(ctx, tokenID, authURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cb, err := srv.Wait(waitCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrCallbackTimeout, c.cfg.Timeout)
		}
		return nil, f.end(ctx, err)
	}
	srv.Stop()

	if cb.IsError() {
		return nil, f.end(ctx, &ProviderError{Code: cb.Error, Description: cb.ErrorDescription})
	}
	if subtle.ConstantTimeCompare([]byte(cb.State), []byte(pkce.State)) != 1 {
		logging.Audit("AuthFlow", "state_mismatch", "redirect state did not match the issued value",
			"flow", f.id, "token_id", tokenID)
		return nil, f.end(ctx, ErrStateMismatch)
	}
	if cb.Code == "" {
		return nil, f.end(ctx, ErrMissingCode)
	}

	f.transition(StateExchangingCode)
	tok, err := client.ExchangeCode(ctx, reg, cb.Code, pkce.Verifier)
	if err != nil {
		return nil, f.end(ctx, err)
	}

	f.transition(StateComplete)
	logging.Info("AuthFlow", "Authorization flow %s for %s complete", f.id, tokenID)
	return &FlowResult{Registration: reg, Token: tok}, nil
}
