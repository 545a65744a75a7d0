// Package battery persists battery-backed cartridge RAM between sessions.
package battery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Store loads and saves battery RAM images identified by a name.
type Store interface {
	// Load fills data with the saved image. A missing save leaves data
	// untouched and returns nil.
	Load(name string, data []byte) error
	Save(name string, data []byte) error
}

// FileStore keeps one file per game in Dir, named <name>.sav.
type FileStore struct {
	Dir string
}

// DefaultDir returns ~/.config/go-famicom/saves, falling back to the
// working directory when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "saves"
	}
	return filepath.Join(home, ".config", "go-famicom", "saves")
}

func (f FileStore) path(name string) string {
	return filepath.Join(f.Dir, name+".sav")
}

func (f FileStore) Load(name string, data []byte) error {
	saved, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read battery file: %w", err)
	}
	if len(saved) != len(data) {
		slog.Warn("Battery file size mismatch", "name", name, "expected", len(data), "actual", len(saved))
	}
	copy(data, saved)
	return nil
}

func (f FileStore) Save(name string, data []byte) error {
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create save folder: %w", err)
	}
	if err := os.WriteFile(f.path(name), data, 0o600); err != nil {
		return fmt.Errorf("failed to write battery file: %w", err)
	}
	slog.Debug("Battery saved", "name", name, "size", len(data))
	return nil
}

// MemoryStore keeps images in memory. Useful for tests and headless runs
// that must not touch the disk.
type MemoryStore map[string][]byte

func (m MemoryStore) Load(name string, data []byte) error {
	if saved, ok := m[name]; ok {
		copy(data, saved)
	}
	return nil
}

func (m MemoryStore) Save(name string, data []byte) error {
	m[name] = append([]byte(nil), data...)
	return nil
}
