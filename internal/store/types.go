// Package store persists engine state between runs: the bullet snapshot,
// the append-only trajectory log, and a small key/value table for settings
// and encrypted credentials. Everything lives in a single SQLite file.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/felixgeelhaar/ace/internal/memory"
)

// Trajectory is the durable record of one completed adaptation cycle.
// The raw answer is not stored; Digest keeps a fingerprint of it so
// duplicate runs can be spotted without retaining model output.
type Trajectory struct {
	ID          string
	Query       string
	Outcome     string
	Success     bool
	Steps       []string
	UsedBullets []string
	Digest      string
	CreatedAt   time.Time
}

// Fingerprint hashes an answer into the digest stored with a trajectory.
func Fingerprint(answer string) string {
	sum := sha256.Sum256([]byte(answer))
	return hex.EncodeToString(sum[:])
}

// Storage is the persistence surface the engine depends on. Tests swap in
// a memory-backed implementation.
type Storage interface {
	// State snapshot
	SaveState(st *memory.ContextState) error
	LoadState() (*memory.ContextState, error)

	// Trajectory log
	SaveTrajectory(tr *Trajectory) error
	ListTrajectories(limit int) ([]*Trajectory, error)

	// Settings and credentials
	Set(key, value string) error
	Get(key string) (string, error)
	SetSecret(key, value string) error
	GetSecret(key string) (string, error)

	Close() error
}
