package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps the latest snapshot of every thread as <thread>.json in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// path maps threadID to its file. Ids that are empty or hold a path
// separator are rejected so no operation reaches outside the directory.
func (f *FileStore) path(threadID string) (string, error) {
	if threadID == "" || strings.ContainsAny(threadID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidThreadID, threadID)
	}
	return filepath.Join(f.dir, threadID+".json"), nil
}

// Save writes the snapshot atomically through a temp file and rename.
func (f *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("checkpoint snapshot is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(snap.ThreadID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, snap.ThreadID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit checkpoint file: %w", err)
	}
	return nil
}

// Load reads and verifies the snapshot of threadID.
func (f *FileStore) Load(ctx context.Context, threadID string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.path(threadID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, threadID, err)
	}
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns the summary of every stored thread, newest first.
func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		snap, err := f.Load(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// unreadable files are skipped rather than failing the listing
			continue
		}
		out = append(out, snap.Summary())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

// Delete removes the thread's checkpoint. Deleting a missing thread is not an error.
func (f *FileStore) Delete(_ context.Context, threadID string) error {
	path, err := f.path(threadID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
