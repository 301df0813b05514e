package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Writer stores JSON documents under one directory. Unless overwrite is set,
// an existing file is left untouched and the write is reported as skipped.
type Writer struct {
	dir       string
	overwrite bool
	logger    *slog.Logger
}

// NewWriter creates a Writer for dir, creating the directory if needed.
func NewWriter(dir string, overwrite bool, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Writer{dir: dir, overwrite: overwrite, logger: logger}, nil
}

// Dir returns the directory the writer stores files in.
func (w *Writer) Dir() string { return w.dir }

// Path returns the full path of name.
func (w *Writer) Path(name string) string { return filepath.Join(w.dir, name) }

// Write encodes v as JSON into name. It returns false without error when the
// file already exists and overwrite is off.
func (w *Writer) Write(name string, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", name, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if w.overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	path := w.Path(name)
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		w.logger.Warn("output exists, skipping", "path", path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	w.logger.Debug("output written", "path", path, "bytes", len(data))
	return true, nil
}
