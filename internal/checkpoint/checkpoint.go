// Package checkpoint persists supervisor state snapshots keyed by thread id so
// that an interrupted run resumes from its last completed step.
package checkpoint

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// SnapshotVersion is bumped whenever the state layout changes incompatibly.
const SnapshotVersion = "1"

var (
	// ErrNotFound is returned by Load when the thread has no checkpoint.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt is returned when a stored snapshot fails its digest check.
	ErrCorrupt = errors.New("checkpoint digest mismatch")
	// ErrInvalidThreadID is returned for thread ids that cannot name a file.
	ErrInvalidThreadID = errors.New("invalid thread id")
)

// Snapshot is the serialized state of one run after a completed step.
type Snapshot struct {
	Version  string          `json:"version"`
	ThreadID string          `json:"thread_id"`
	Step     int             `json:"step"`
	Phase    string          `json:"phase"`
	SavedAt  time.Time       `json:"saved_at"`
	Digest   string          `json:"digest"`
	State    json.RawMessage `json:"state"`
}

// Summary describes the latest checkpoint of a thread without its state.
type Summary struct {
	ThreadID string    `json:"thread_id"`
	Step     int       `json:"step"`
	Phase    string    `json:"phase"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store saves and loads snapshots. Implementations keep at least the latest
// snapshot per thread.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, threadID string) (*Snapshot, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, threadID string) error
	Close() error
}

// NewSnapshot serializes state and seals it with a digest.
func NewSnapshot(threadID string, step int, phase string, state any) (*Snapshot, error) {
	if threadID == "" {
		return nil, fmt.Errorf("snapshot needs a thread id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return &Snapshot{
		Version:  SnapshotVersion,
		ThreadID: threadID,
		Step:     step,
		Phase:    phase,
		SavedAt:  time.Now().UTC(),
		Digest:   digest(data),
		State:    data,
	}, nil
}

// Verify checks the digest against the state bytes.
func (s *Snapshot) Verify() error {
	if s.Digest != digest(s.State) {
		return fmt.Errorf("%w: thread %s step %d", ErrCorrupt, s.ThreadID, s.Step)
	}
	return nil
}

// Decode verifies the snapshot and unmarshals its state into v.
func (s *Snapshot) Decode(v any) error {
	if err := s.Verify(); err != nil {
		return err
	}
	if err := json.Unmarshal(s.State, v); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	return nil
}

// Summary returns the snapshot header.
func (s *Snapshot) Summary() Summary {
	return Summary{ThreadID: s.ThreadID, Step: s.Step, Phase: s.Phase, SavedAt: s.SavedAt}
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
