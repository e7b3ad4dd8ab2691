package process

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Run executes command to completion: launch, drain every line of the
// merged stream, then wait for the exit status. Draining fully before
// waiting matters — a child blocked on a full output pipe while the parent
// blocks in wait is the classic exec deadlock.
//
// Faults never escape as panics or partial state: a spawn or stream error
// comes back in Result.Err together with whatever output was captured.
// Context expiry (only possible when the caller configured a timeout)
// terminates the child before returning.
func Run(ctx context.Context, l Launcher, command string) *Result {
	h, err := l.Launch(command)
	if err != nil {
		return &Result{Err: err}
	}

	var out strings.Builder
	for {
		line, err := h.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.Terminate()
			return &Result{Output: out.String(), Err: err}
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	code, err := h.Wait(ctx)
	if err != nil {
		h.Terminate()
		return &Result{Output: out.String(), Err: err}
	}
	return &Result{Output: out.String(), ExitCode: code}
}
