// Package media hands article links to the desktop's default handler.
package media

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/validation"
)

// Opener starts an external program for a URL and does not wait for it.
type Opener struct {
	command string
	args    []string
}

// NewOpener uses command when set and the platform default otherwise.
func NewOpener(command string) *Opener {
	if command != "" {
		return &Opener{command: command}
	}
	switch runtime.GOOS {
	case "darwin":
		return &Opener{command: "open"}
	case "windows":
		return &Opener{command: "rundll32", args: []string{"url.dll,FileProtocolHandler"}}
	default:
		return &Opener{command: findCommand("xdg-open", "sensible-browser", "x-www-browser")}
	}
}

// Command reports the program Open runs.
func (o *Opener) Command() string {
	return o.command
}

// Open validates url and launches the handler detached.
func (o *Opener) Open(url string) error {
	u, err := validation.NewURLValidator().ArticleURL(url)
	if err != nil {
		return err
	}
	if o.command == "" {
		return fmt.Errorf("no application found to open URL")
	}

	cmd := exec.Command(o.command, append(o.args, u)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", o.command, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			debuglog.Warnf("%s exited: %v", o.command, err)
		}
	}()
	return nil
}

func findCommand(commands ...string) string {
	for _, cmd := range commands {
		if _, err := exec.LookPath(cmd); err == nil {
			return cmd
		}
	}
	return ""
}
