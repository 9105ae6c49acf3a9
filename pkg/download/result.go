package download

import (
	"errors"
	"fmt"
)

// Outcome classifies the result of processing one item.
type Outcome string

const (
	// OutcomeSuccess means the item transferred, verified, and was marked
	// complete.
	OutcomeSuccess Outcome = "success"
	// OutcomeSkipped means the item's completion marker already existed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the transfer, verification, or state update failed.
	// The item's marker is left absent (or, for a default-link conflict,
	// untouched) so the next run re-offers it.
	OutcomeFailed Outcome = "failed"
)

// TransferResult is the outcome of one item's processing. Results are held
// in memory for the run summary only, never persisted.
type TransferResult struct {
	Item    Item
	Outcome Outcome
	Err     error
}

// Summary aggregates a run's ordered per-item results.
type Summary struct {
	// RunID uniquely identifies this run in logs.
	RunID   string
	Results []TransferResult
	// DefaultModelPath is the absolute path the default-model link resolves
	// to, set when at least one model succeeded this run.
	DefaultModelPath string
}

// Failed reports whether any item in the run failed.
func (s Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// ErrDefaultLinkConflict indicates a regular file occupies the default-model
// link path. Recovery requires operator intervention on the filesystem.
var ErrDefaultLinkConflict = errors.New("default model link conflict")

// LinkConflictError names the conflicting path.
type LinkConflictError struct {
	Path string
}

func (e *LinkConflictError) Error() string {
	return fmt.Sprintf("default model link %q exists and is not a symlink", e.Path)
}

// Is implements error matching against ErrDefaultLinkConflict.
func (e *LinkConflictError) Is(target error) bool {
	return target == ErrDefaultLinkConflict
}

func failed(item Item, err error) TransferResult {
	return TransferResult{Item: item, Outcome: OutcomeFailed, Err: err}
}
