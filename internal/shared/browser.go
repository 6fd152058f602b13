package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var goos = func() string { return runtime.GOOS }

// browserCommand builds the platform-specific launch command for url.
func browserCommand(platform, url string) (*exec.Cmd, error) {
	switch platform {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", url), nil
	}
	return nil, fmt.Errorf("no browser launcher for platform %s", platform)
}

// OpenBrowser launches the system browser at url, used by the login flow to
// reach the consent page. The command is started, not waited on.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(goos(), url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	return nil
}
