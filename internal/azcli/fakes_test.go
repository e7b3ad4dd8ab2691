package azcli

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/54b3r/azmcp-go/internal/process"
)

// ---------- shared test doubles ----------

// eventLog records cross-handle ordering (launches, terminations, first
// reads) so tests can assert sequencing between login sessions.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.events = append(e.events, s)
	e.mu.Unlock()
}

func (e *eventLog) all() []string {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *eventLog) indexOf(s string) int {
	for i, ev := range e.all() {
		if ev == s {
			return i
		}
	}
	return -1
}

// fakeHandle is a scripted process. ReadLine yields the scripted lines in
// order; what happens after the last line depends on the flags below.
type fakeHandle struct {
	name     string
	lines    []string
	exitCode int
	exitErr  error

	// hangAfterLines keeps ReadLine blocked (on ctx or process exit)
	// instead of reporting EOF once the script runs out.
	hangAfterLines bool

	events *eventLog

	mu        sync.Mutex
	readIdx   int
	firstRead bool
	input     strings.Builder
	inClosed  bool

	exitOnce sync.Once
	exited   chan struct{}
}

func newFakeHandle(name string, lines ...string) *fakeHandle {
	return &fakeHandle{
		name:   name,
		lines:  lines,
		exited: make(chan struct{}),
	}
}

// finish marks the process as exited with code. Idempotent.
func (h *fakeHandle) finish(code int) {
	h.exitOnce.Do(func() {
		h.mu.Lock()
		h.exitCode = code
		h.mu.Unlock()
		close(h.exited)
	})
}

func (h *fakeHandle) ReadLine(ctx context.Context) (string, error) {
	h.mu.Lock()
	if !h.firstRead {
		h.firstRead = true
		h.events.add(h.name + ":read")
	}
	if h.readIdx < len(h.lines) {
		line := h.lines[h.readIdx]
		h.readIdx++
		h.mu.Unlock()
		return line, nil
	}
	hang := h.hangAfterLines
	code := h.exitCode
	h.mu.Unlock()

	if hang {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-h.exited:
			return "", io.EOF
		}
	}
	h.finish(code)
	return "", io.EOF
}

func (h *fakeHandle) WriteInput(s string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.input.WriteString(s)
	return nil
}

func (h *fakeHandle) CloseInput() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inClosed = true
	return nil
}

func (h *fakeHandle) Alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

func (h *fakeHandle) Terminate() error {
	h.events.add(h.name + ":terminate")
	h.finish(143)
	return nil
}

func (h *fakeHandle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.exited:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.exitCode, h.exitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *fakeHandle) inputWritten() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.input.String()
}

func (h *fakeHandle) inputClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inClosed
}

// fakeLauncher hands out scripted handles and counts every launch, so tests
// can assert both the command text that was launched and that validation
// failures never spawn anything.
type fakeLauncher struct {
	events *eventLog

	// make, when set, builds a fresh handle per launch.
	make func(command string) *fakeHandle

	// err, when set, fails every launch.
	err error

	mu       sync.Mutex
	queue    []*fakeHandle
	launches []string
}

func (l *fakeLauncher) Launch(command string) (process.Handle, error) {
	l.mu.Lock()
	l.launches = append(l.launches, command)
	l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}

	var h *fakeHandle
	if l.make != nil {
		h = l.make(command)
	} else {
		l.mu.Lock()
		if len(l.queue) > 0 {
			h = l.queue[0]
			l.queue = l.queue[1:]
		}
		l.mu.Unlock()
		if h == nil {
			h = newFakeHandle("default")
		}
	}
	h.events = l.events
	l.events.add(h.name + ":launch")
	return h, nil
}

func (l *fakeLauncher) enqueue(handles ...*fakeHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, handles...)
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func (l *fakeLauncher) launched() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.launches...)
}

// fakeRecorder captures gateway execution records.
type fakeRecorder struct {
	mu      sync.Mutex
	records []ExecutionRecord
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, rec ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *fakeRecorder) all() []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionRecord(nil), r.records...)
}
