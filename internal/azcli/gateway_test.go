package azcli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/azmcp-go/internal/logging"
)

func newTestGateway(l *fakeLauncher, opts ...func(*Config)) *Gateway {
	cfg := Config{Launcher: l, Logger: logging.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// ---------- validation ----------

func TestExecuteRejectsInvalidPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		command string
	}{
		{"empty", ""},
		{"bare az", "az"},
		{"missing space", "azvm list"},
		{"different program", "ls -la"},
		{"uppercase", "AZ vm list"},
		{"prefix not at start", "echo az vm list"},
		{"shell injection attempt", "rm -rf / ; az vm list"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			launcher := &fakeLauncher{}
			gw := newTestGateway(launcher)

			got := gw.Execute(context.Background(), tc.command)
			if got != "Error: Invalid command. Command must start with 'az'." {
				t.Errorf("Execute(%q) = %q, want validation error", tc.command, got)
			}
			if n := launcher.launchCount(); n != 0 {
				t.Errorf("launched %d processes for a rejected command, want 0", n)
			}
		})
	}
}

// ---------- ordinary commands ----------

func TestExecuteReturnsOutputVerbatim(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	launcher.enqueue(newFakeHandle("az", "subscription-a", "subscription-b"))
	gw := newTestGateway(launcher)

	got := gw.Execute(context.Background(), "az account list")
	if got != "subscription-a\nsubscription-b\n" {
		t.Errorf("output = %q, want scripted output with trailing newlines", got)
	}
	if strings.HasPrefix(got, "Error:") {
		t.Error("successful execution must not carry the error marker")
	}
	if launched := launcher.launched(); len(launched) != 1 || launched[0] != "az account list" {
		t.Errorf("launched = %v, want the command unmodified", launched)
	}
}

func TestExecuteWrapsNonZeroExit(t *testing.T) {
	t.Parallel()

	h := newFakeHandle("az", "ERROR: resource not found")
	h.exitCode = 3
	launcher := &fakeLauncher{}
	launcher.enqueue(h)
	gw := newTestGateway(launcher)

	got := gw.Execute(context.Background(), "az vm show --name missing")
	if !strings.HasPrefix(got, "Error: ") {
		t.Fatalf("result %q does not start with the error marker", got)
	}
	if !strings.Contains(got, "ERROR: resource not found") {
		t.Errorf("result %q does not contain the captured output", got)
	}
}

func TestExecuteWrapsLaunchFailure(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{err: errors.New("spawn failed")}
	gw := newTestGateway(launcher)

	got := gw.Execute(context.Background(), "az group list")
	if got != "Error: spawn failed" {
		t.Errorf("result = %q, want the fault as error text", got)
	}
}

func TestExecuteIsIdempotentForDeterministicCommands(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	launcher.enqueue(
		newFakeHandle("az", "eastus", "westus"),
		newFakeHandle("az", "eastus", "westus"),
	)
	gw := newTestGateway(launcher)

	first := gw.Execute(context.Background(), "az account list-locations")
	second := gw.Execute(context.Background(), "az account list-locations")
	if first != second {
		t.Errorf("results differ across identical runs: %q vs %q", first, second)
	}
}

func TestExecuteHonorsConfiguredTimeout(t *testing.T) {
	t.Parallel()

	h := newFakeHandle("az")
	h.hangAfterLines = true
	launcher := &fakeLauncher{}
	launcher.enqueue(h)
	gw := newTestGateway(launcher, func(c *Config) { c.Timeout = 50 * time.Millisecond })

	got := gw.Execute(context.Background(), "az deployment wait")
	if !strings.HasPrefix(got, "Error: ") || !strings.Contains(got, "deadline") {
		t.Errorf("result = %q, want a deadline error", got)
	}
	if h.Alive() {
		t.Error("timed-out process was not terminated")
	}
}

// ---------- side effects ----------

func TestExecuteRecordsHistory(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	launcher.enqueue(newFakeHandle("az", "ok"))
	rec := &fakeRecorder{}
	gw := newTestGateway(launcher, func(c *Config) { c.History = rec })

	gw.Execute(context.Background(), "az group list")

	records := rec.all()
	if len(records) != 1 {
		t.Fatalf("got %d history records, want 1", len(records))
	}
	r := records[0]
	if r.Kind != KindCommand || !r.OK || r.ExitCode != 0 {
		t.Errorf("record = %+v, want ok command with exit 0", r)
	}
	if r.Command != "az group list" {
		t.Errorf("recorded command = %q", r.Command)
	}
}

func TestExecuteRedactsSecretsInHistory(t *testing.T) {
	t.Parallel()

	// A service principal login: routed through the login flow, which will
	// miss the device-code sentinel and report the scan error. The history
	// row must still be written, with the password masked.
	launcher := &fakeLauncher{}
	launcher.enqueue(newFakeHandle("az", `{"cloudName": "AzureCloud"}`))
	rec := &fakeRecorder{}
	gw := newTestGateway(launcher, func(c *Config) { c.History = rec })

	gw.Execute(context.Background(), "az login --service-principal --tenant t --username u --password s3cret")

	records := rec.all()
	if len(records) != 1 {
		t.Fatalf("got %d history records, want 1", len(records))
	}
	r := records[0]
	if r.Kind != KindLogin || r.OK {
		t.Errorf("record = %+v, want failed login", r)
	}
	if strings.Contains(r.Command, "s3cret") {
		t.Errorf("recorded command %q leaks the password", r.Command)
	}
	if !strings.Contains(r.Command, "--password ****") {
		t.Errorf("recorded command %q is not redacted", r.Command)
	}
}

func TestExecuteSurvivesRecorderFailure(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	launcher.enqueue(newFakeHandle("az", "fine"))
	rec := &fakeRecorder{err: errors.New("disk full")}
	gw := newTestGateway(launcher, func(c *Config) { c.History = rec })

	if got := gw.Execute(context.Background(), "az group list"); got != "fine\n" {
		t.Errorf("result = %q, recorder failures must not affect the caller", got)
	}
}
