package app

import (
	"context"
	"errors"
	"io"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"ssotoken/internal/server"
	"ssotoken/internal/sso"
	"ssotoken/pkg/logging"
)

// Serve runs the RPC server on in and out until in is closed or ctx is
// cancelled.
func (a *Application) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rpc := server.New(server.Config{
		Name:     "ssotoken",
		Version:  a.config.Version,
		Tokens:   a.services.Manager,
		Profiles: a.services.Profiles,
	})
	a.OnAuthorize(rpc.NotifyAuthorize)
	if a.services.Settings.OpenBrowser {
		a.OnAuthorize(openBrowser)
	}

	if w := a.services.Watcher; w != nil {
		if err := w.Start(); err != nil {
			logging.Warn("Serve", "Cache watching disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	events, unsubscribe := a.services.Broker.Subscribe()
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rpc.Forward(gctx, events)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		err := rpc.Serve(gctx, in, out)
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})

	notifyReady()

	err := g.Wait()
	logging.Info("Serve", "RPC server stopped")
	return err
}

func openBrowser(_ context.Context, id string, url string) {
	if err := sso.OpenBrowser(url); err != nil {
		logging.Warn("Serve", "Cannot open a browser for %s: %v", id, err)
	}
}

// notifyReady tells systemd the service is up when running as a notify unit.
func notifyReady() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logging.Warn("Serve", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("Serve", "Notified systemd of readiness")
	}
}
