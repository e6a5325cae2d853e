package sso

import (
	"fmt"
	"os/exec"
	"runtime"
)

var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start() // #nosec G204 -- fixed opener binaries
}

// OpenBrowser opens url in the default web browser without waiting for it.
func OpenBrowser(url string) error {
	var err error
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		err = startCommand("xdg-open", url)
	case "darwin":
		err = startCommand("open", url)
	case "windows":
		err = startCommand("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
