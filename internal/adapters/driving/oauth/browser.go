package oauth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure Browser implements the interface.
var _ driven.BrowserLauncher = (*Browser)(nil)

// ErrNoDisplay means a Linux session has no graphical display to open a
// browser on.
var ErrNoDisplay = errors.New("no graphical display available")

// Browser opens URLs in the user's default browser.
type Browser struct {
	goos   string
	getenv func(string) string
	start  func(name string, args ...string) error
}

// NewBrowser creates a launcher for the current platform.
func NewBrowser() *Browser {
	return &Browser{
		goos:   runtime.GOOS,
		getenv: os.Getenv,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open launches the platform URL handler without waiting for it.
func (b *Browser) Open(url string) error {
	name, args, err := b.command(url)
	if err != nil {
		return err
	}
	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

func (b *Browser) command(url string) (string, []string, error) {
	switch b.goos {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		if b.getenv("DISPLAY") == "" && b.getenv("WAYLAND_DISPLAY") == "" {
			return "", nil, ErrNoDisplay
		}
		return "xdg-open", []string{url}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", b.goos)
	}
}
