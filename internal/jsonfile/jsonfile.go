// Package jsonfile reads and writes the whole-file JSON ledgers that hold the watcher's state.
//
// Load never fails: every problem is logged and reported through Status so callers
// can fall back to their defaults.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"crash_watcher/internal/logging"
)

type Status int

const (
	Loaded Status = iota
	// Missing means the file does not exist yet, the normal first-run case.
	Missing
	// Corrupt means the file was read but did not decode.
	Corrupt
	// Unreadable covers every other I/O failure, such as permissions.
	Unreadable
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	default:
		return "unreadable"
	}
}

// Load decodes path into a T. On any failure it returns def and logs at a severity
// matching the cause: Info for a missing file, Error for bad JSON, CRITICAL otherwise.
func Load[T any](logger *slog.Logger, path string, def T) (T, Status) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("state file not found, starting empty", "path", path)
			return def, Missing
		}
		logging.Critical(logger, "cannot read state file", "path", path, "err", err)
		return def, Unreadable
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Error("state file is not valid JSON, starting empty", "path", path, "err", err)
		return def, Corrupt
	}
	return v, Loaded
}

// Save writes v as indented JSON. The data goes to a temp file in the same directory
// which is then renamed over path, so readers never see a partial file.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
