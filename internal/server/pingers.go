package server

import (
	"context"
	"fmt"
	"os/exec"
)

// BinaryPinger reports whether an executable can be resolved on PATH.
// It satisfies the Pinger interface and is used by GET /readyz to verify the
// Azure CLI is installed without spawning a process.
type BinaryPinger struct {
	// binary is the executable name to look up (e.g. "az").
	binary string
}

// NewBinaryPinger constructs a BinaryPinger for the given executable name.
func NewBinaryPinger(binary string) *BinaryPinger {
	return &BinaryPinger{binary: binary}
}

// Name returns the executable name used in readiness responses.
func (p *BinaryPinger) Name() string { return p.binary }

// Ping resolves the binary on PATH.
// Returns nil when found, or a descriptive error otherwise.
func (p *BinaryPinger) Ping(_ context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("not found on PATH: %w", err)
	}
	return nil
}

// storePing is the subset of the history store used by StorePinger.
type storePing interface {
	Ping(ctx context.Context) error
}

// StorePinger probes the history store connection.
// It satisfies the Pinger interface and is used by GET /readyz.
type StorePinger struct {
	// db is the history store connection to probe.
	db storePing
}

// NewStorePinger constructs a StorePinger for the given store.
// *store.SQLiteStore satisfies the required Ping method.
func NewStorePinger(db storePing) *StorePinger {
	return &StorePinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "history" }

// Ping checks the store connection.
// Returns nil if the database is reachable, or a descriptive error otherwise.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
