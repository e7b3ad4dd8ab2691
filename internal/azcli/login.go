package azcli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/54b3r/azmcp-go/internal/audit"
	"github.com/54b3r/azmcp-go/internal/process"
)

const (
	// deviceCodeFlag forces az login into the non-interactive device-code
	// flow instead of launching a browser.
	deviceCodeFlag = "--use-device-code"

	// signInMarker and codeMarker together identify the output line that
	// carries the device login URL and code.
	signInMarker = "To sign in"
	codeMarker   = "code"

	// confirmInput is the keystroke the device-code prompt expects before
	// az proceeds to poll for the browser-side sign-in.
	confirmInput = "1\n"
)

// LoginFlow handles the az login special case. A login process cannot be
// drained to completion like an ordinary command: it prints the device-code
// instructions, then stays alive until the user finishes signing in from a
// browser. LoginFlow scans the output only until those instructions appear,
// returns them to the caller, and leaves a background goroutine to feed the
// prompt and wait the process out.
type LoginFlow struct {
	launcher process.Launcher
	registry *SessionRegistry
	log      *slog.Logger
	metrics  *Metrics

	// completed, when non-nil, is called after the background completion
	// goroutine finishes. Production leaves it nil; tests set it to join
	// the detached path.
	completed func(exitCode int, err error)
}

// NewLoginFlow constructs a LoginFlow. metrics may be nil.
func NewLoginFlow(launcher process.Launcher, registry *SessionRegistry, log *slog.Logger, metrics *Metrics) *LoginFlow {
	return &LoginFlow{
		launcher: launcher,
		registry: registry,
		log:      log,
		metrics:  metrics,
	}
}

// Start runs an az login command and returns as soon as the device-code
// instructions are available. The returned text is either the instruction
// line verbatim, or an "Error:"-prefixed message.
//
// Any previous login still in flight is replaced and terminated first; its
// termination is requested before this command's output scan begins, though
// the old process may take a moment to actually die.
func (f *LoginFlow) Start(ctx context.Context, command string) string {
	f.log.Info("handling az login command", "command", audit.Redact(command))

	if !strings.Contains(command, deviceCodeFlag) {
		command += " " + deviceCodeFlag
	}

	h, err := f.launcher.Launch(command)
	if err != nil {
		f.log.Error("starting az login process", "error", err)
		return "Error: " + err.Error()
	}

	if prev := f.registry.Replace(h); prev != nil && prev.Alive() {
		f.log.Info("interrupting previous az login process")
		f.metrics.loginInterrupted()
		if err := prev.Terminate(); err != nil {
			f.log.Warn("terminating previous az login process", "error", err)
		}
	}

	var out strings.Builder
	for {
		line, err := h.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			f.log.Error("reading az login output", "error", err)
			return "Error: " + err.Error()
		}

		f.log.Debug("az login output", "line", line)
		out.WriteString(line)
		out.WriteByte('\n')

		if strings.Contains(line, signInMarker) && strings.Contains(line, codeMarker) {
			f.log.Info("extracted login instructions", "line", line)
			go f.complete(h)
			return line
		}
	}

	return "Error: Unable to extract login URL and code. Output: " + out.String()
}

// complete finishes the device-code handshake with nobody waiting on it.
// It answers the confirmation prompt, then blocks until the process exits
// and logs the outcome. If a newer login terminated this process in the
// meantime, the wait simply observes the signal death; nothing is retried.
func (f *LoginFlow) complete(h process.Handle) {
	f.log.Info("handling az login process in the background")

	if h.Alive() {
		if err := h.WriteInput(confirmInput); err != nil {
			f.log.Error("writing confirmation to az login process", "error", err)
		}
		if err := h.CloseInput(); err != nil {
			f.log.Warn("closing az login input stream", "error", err)
		}
	}

	code, err := h.Wait(context.Background())
	switch {
	case err != nil:
		f.log.Error("waiting for az login process", "error", err)
	case code == 0:
		f.log.Info("az login process completed")
	default:
		f.log.Warn("az login process exited", "exit_code", code)
	}

	if f.completed != nil {
		f.completed(code, err)
	}
}
