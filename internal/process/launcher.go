package process

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// ShellLauncher runs the command text through a shell (`sh -c <command>`),
// which honors whatever quoting, globbing, and piping the caller wrote.
// This inherits the usual shell-exec injection surface; callers that do not
// need shell features can use ArgvLauncher instead.
type ShellLauncher struct {
	// Shell is the interpreter binary. Empty means "sh".
	Shell string
}

// Launch starts `<shell> -c <command>` with stderr merged into stdout.
func (l *ShellLauncher) Launch(command string) (Handle, error) {
	shell := l.Shell
	if shell == "" {
		shell = "sh"
	}
	return start(exec.Command(shell, "-c", command))
}

// ArgvLauncher splits the command text on whitespace and executes it
// directly, with no shell in between. Quoting, variable expansion, and
// pipelines are not supported in this mode.
type ArgvLauncher struct{}

// Launch starts the command with stderr merged into stdout.
func (l *ArgvLauncher) Launch(command string) (Handle, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return start(exec.Command(argv[0], argv[1:]...))
}

// start wires the pipes, starts cmd, and spawns the two goroutines that own
// the merged-output read end and the process wait. The child gets its own
// process group so Terminate can signal the whole pipeline, not just the
// shell.
func start(cmd *exec.Cmd) (Handle, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	merged, err := mergedOutputPipe(cmd)
	if err != nil {
		stdin.Close()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		merged.closeBoth()
		return nil, fmt.Errorf("start process: %w", err)
	}
	// The parent's copy of the write end must go away so the reader sees
	// EOF when the child exits.
	merged.closeWrite()

	p := &proc{
		cmd:      cmd,
		stdin:    stdin,
		lines:    make(chan string, lineBacklog),
		waitDone: make(chan struct{}),
	}
	go p.readLines(merged.r)
	go p.reap()
	return p, nil
}
