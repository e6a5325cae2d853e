package sso

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"ssotoken/pkg/logging"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Funcs(sprig.HtmlFuncMap()).Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Funcs(sprig.HtmlFuncMap()).Parse(callbackErrorHTML))
)

// CallbackResult represents the query of the authorization redirect.
type CallbackResult struct {
	// Code is the authorization code from the identity provider.
	Code string

	// State is the echoed CSRF value.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a single-shot loopback HTTP server for the authorization
// redirect. It accepts exactly one request on its path and rejects the rest.
type CallbackServer struct {
	addr     string
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewCallbackServer creates a callback server for the given loopback address
// and path. Nothing is bound until Start.
func NewCallbackServer(addr, path string) *CallbackServer {
	return &CallbackServer{
		addr:     addr,
		path:     path,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
		stopped:  make(chan struct{}),
	}
}

// Start binds the listener and serves until the first redirect, Stop, or
// cancellation of ctx.
func (s *CallbackServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	logging.Debug("CallbackServer", "Listening for redirect on http://%s%s", s.Addr(), s.path)
	return nil
}

// Wait blocks until the redirect arrives, the server fails, or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		w.Header().Set("Connection", "close")
		http.Error(w, "Callback already processed", http.StatusGone)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "close")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	tmpl := successTemplate
	data := map[string]any{"Time": time.Now()}
	status := http.StatusOK
	if result.IsError() {
		tmpl = errorTemplate
		data = map[string]any{"Error": result.Error, "Description": result.ErrorDescription}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logging.Warn("CallbackServer", "Failed to render callback page: %v", err)
	}

	select {
	case s.resultCh <- result:
	default:
	}
}

// Stop shuts the server down and releases the port. Safe to call more than
// once and before Start.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.server.Shutdown(ctx); err != nil {
				_ = s.server.Close()
			}
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Addr returns the bound address, or the configured one before Start.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// RedirectURI returns the URI the provider redirects to.
func (s *CallbackServer) RedirectURI() string {
	return "http://" + s.Addr() + s.path
}
