package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
)

// Open returns the store for backend ("file" or "sqlite") rooted at path.
// For the sqlite backend path may be a directory, in which case
// checkpoints.db is created inside it.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "checkpoints.db")
		}
		return NewSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}
