// Package filex has filesystem helpers for the client's local data.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will contain path, so that a
// database file can be opened there. In-memory SQLite DSNs are left alone.
func EnsureParentDir(path string) error {
	if path == "" || path == ":memory:" || filepath.Dir(path) == "." {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// ReadLimited reads a whole file but refuses anything larger than limit bytes.
func ReadLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file %s exceeds %d bytes", path, limit)
	}
	return data, nil
}
