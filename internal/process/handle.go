package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// lineBacklog is the channel capacity between the reader goroutine and
// ReadLine consumers. Once a login detaches and stops reading, the child can
// still emit this many lines plus a pipe buffer before blocking on write.
const lineBacklog = 64

// mergedPipe is an os.Pipe whose write end is shared by the child's stdout
// and stderr, giving one interleaved stream like a terminal would show.
type mergedPipe struct {
	r *os.File
	w *os.File
}

func mergedOutputPipe(cmd *exec.Cmd) (*mergedPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = w
	cmd.Stderr = w
	return &mergedPipe{r: r, w: w}, nil
}

func (m *mergedPipe) closeWrite() { m.w.Close() }
func (m *mergedPipe) closeBoth()  { m.r.Close(); m.w.Close() }

// proc implements Handle for a real child process. Two goroutines own the
// blocking syscalls: readLines drains the merged pipe into the lines
// channel, and reap is the sole caller of cmd.Wait. Everything the exported
// methods touch is either a channel or written before the corresponding
// channel close.
type proc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines   chan string
	readErr error // set before lines is closed

	waitDone chan struct{}
	exitCode int   // set before waitDone is closed
	waitErr  error // set before waitDone is closed
}

// readLines pumps the merged stream into p.lines until EOF or a read fault,
// then closes the channel. The final line is delivered even without a
// trailing newline.
func (p *proc) readLines(r *os.File) {
	defer r.Close()
	defer close(p.lines)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			p.lines <- strings.TrimRight(line, "\r\n")
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.readErr = err
			}
			return
		}
	}
}

// reap waits for the process and records the exit status. It runs for every
// launched process, so a terminated login is still collected even though
// nobody calls Wait on it.
func (p *proc) reap() {
	err := p.cmd.Wait()
	p.exitCode = exitCodeFromError(err)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			p.waitErr = err
		}
	}
	close(p.waitDone)
}

func (p *proc) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-p.lines:
		if !ok {
			if p.readErr != nil {
				return "", p.readErr
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *proc) WriteInput(s string) error {
	_, err := io.WriteString(p.stdin, s)
	return err
}

func (p *proc) CloseInput() error {
	return p.stdin.Close()
}

func (p *proc) Alive() bool {
	select {
	case <-p.waitDone:
		return false
	default:
		return true
	}
}

// Terminate sends SIGTERM to the child's process group. A process that has
// already exited yields a no-op, not an error.
func (p *proc) Terminate() error {
	select {
	case <-p.waitDone:
		return nil
	default:
	}

	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err == nil {
		err = syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		err = p.cmd.Process.Signal(syscall.SIGTERM)
	}
	if err == nil || errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func (p *proc) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.waitDone:
		return p.exitCode, p.waitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// exitCodeFromError maps a cmd.Wait error to a conventional exit code.
// Signal deaths report 128+signal, matching shell behavior.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return -1
}
