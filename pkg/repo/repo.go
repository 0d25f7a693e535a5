// Package repo defines the persistence boundary of the ledger. Backends
// replace the whole ledger on every save; row identity is positional.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

var ErrStaleWrite = errors.New("stale write")

// StaleWriteError is returned when the store changed since the ledger was loaded.
type StaleWriteError struct {
	Expected string
	Current  string
}

func (e *StaleWriteError) Error() string {
	if e.Expected == "" {
		return "stale write: ledger was never loaded from a non-empty store"
	}
	return fmt.Sprintf("stale write: store changed since load (expected version %.12s, found %.12s)", e.Expected, e.Current)
}

func (e *StaleWriteError) Is(target error) bool {
	return target == ErrStaleWrite
}

// Snapshot is a ledger together with the version it was read at.
type Snapshot struct {
	Tasks   []model.Task `json:"tasks"`
	Version string       `json:"version"`
}

// Repository loads and replaces the full ledger.
type Repository interface {
	Load(ctx context.Context) (Snapshot, error)
	// ReplaceAll overwrites the stored ledger if it is still at expected and
	// returns the new version.
	ReplaceAll(ctx context.Context, tasks []model.Task, expected string) (string, error)
}

// Fingerprint returns the version of a ledger: a digest of its canonical rows.
func Fingerprint(tasks []model.Task) string {
	h := sha256.New()
	for _, t := range tasks {
		h.Write([]byte(strings.Join(util.TaskToRow(t), "\x1f")))
		h.Write([]byte{'\x1e'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CheckVersion compares the stored ledger against the version a caller
// expects. An empty expectation is only satisfied by an empty store.
func CheckVersion(current []model.Task, expected string) error {
	cur := Fingerprint(current)
	if expected == "" {
		if len(current) == 0 {
			return nil
		}
		return &StaleWriteError{Current: cur}
	}
	if cur != expected {
		return &StaleWriteError{Expected: expected, Current: cur}
	}
	return nil
}
