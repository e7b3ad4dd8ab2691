// Package process launches child processes with stdout and stderr merged
// into a single line-oriented stream. It is the execution substrate for the
// Azure CLI wrapper: ordinary commands are drained to completion via [Run],
// while interactive logins hold on to the [Handle] to scan output and feed
// input while the process keeps running.
package process

import "context"

// Launcher starts a child process for a command line. Implementations decide
// how the command text is turned into an argv (through a shell, or split
// directly). The returned Handle owns the process until it is reaped or
// terminated.
type Launcher interface {
	Launch(command string) (Handle, error)
}

// Handle is a live child process with merged output. All methods are safe
// for concurrent use; reads and waits are mediated by channels owned by
// internal goroutines, never by the callers themselves.
type Handle interface {
	// ReadLine returns the next output line without its trailing newline.
	// It blocks until a line is available, the stream ends (io.EOF), or
	// ctx is done.
	ReadLine(ctx context.Context) (string, error)

	// WriteInput writes s to the process's stdin.
	WriteInput(s string) error

	// CloseInput closes the process's stdin.
	CloseInput() error

	// Alive reports whether the process has not yet been reaped.
	Alive() bool

	// Terminate requests forceful termination. Terminating a process that
	// has already exited is a no-op.
	Terminate() error

	// Wait blocks until the process exits and returns its exit code.
	// A signal-terminated process reports 128+signal. The error is non-nil
	// only for faults unrelated to the exit status (or ctx expiry).
	Wait(ctx context.Context) (int, error)
}

// Result is the outcome of running a command to completion. Output holds
// every line of the merged stream, each followed by a newline. Err is set
// only for spawn or stream faults; a non-zero exit is not an Err.
type Result struct {
	Output   string
	ExitCode int
	Err      error
}
