// Package backup keeps the single previous copy of an installed addon file.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Suffix is appended to a file's path to form its backup path.
const Suffix = ".backup"

// Info provides summary information about a backup.
type Info struct {
	Path    string    `json:"path" yaml:"path" toml:"path"`
	Size    int64     `json:"size" yaml:"size" toml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time" toml:"mod_time"`
}

// Manager handles backup operations on a filesystem.
type Manager struct {
	fs afero.Fs
}

// NewManager creates a backup manager operating on fs.
func NewManager(fs afero.Fs) *Manager {
	return &Manager{fs: fs}
}

// Path returns the backup path for target.
func Path(target string) string {
	return target + Suffix
}

// Create copies target to its backup path, replacing any previous backup.
// The target itself is left in place. A missing target is not an error and
// creates nothing; the returned bool reports whether a backup was written.
func (m *Manager) Create(target string) (bool, error) {
	src, err := m.fs.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer func() { _ = src.Close() }()

	srcInfo, err := src.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", target, err)
	}

	// A truncated copy must never replace the previous backup.
	tmp, err := afero.TempFile(m.fs, filepath.Dir(target), ".backup-*")
	if err != nil {
		return false, fmt.Errorf("failed to create backup file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = m.fs.Remove(tmpName)
		return false, fmt.Errorf("failed to copy %s to backup: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)
		return false, fmt.Errorf("failed to write backup: %w", err)
	}
	_ = m.fs.Chmod(tmpName, srcInfo.Mode().Perm())

	if err := m.fs.Rename(tmpName, Path(target)); err != nil {
		_ = m.fs.Remove(tmpName)
		return false, fmt.Errorf("failed to move backup into place: %w", err)
	}

	return true, nil
}

// Restore puts the backup of target back in place. The file it replaces
// becomes the new backup, so a restore can itself be undone.
func (m *Manager) Restore(target string) error {
	backupPath := Path(target)
	if _, err := m.fs.Stat(backupPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup not found: %s", backupPath)
		}
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	current, err := afero.Exists(m.fs, target)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if !current {
		if err := m.fs.Rename(backupPath, target); err != nil {
			return fmt.Errorf("failed to restore from backup: %w", err)
		}
		return nil
	}

	swap := target + ".swap"
	if err := m.fs.Rename(target, swap); err != nil {
		return fmt.Errorf("failed to move current file aside: %w", err)
	}
	if err := m.fs.Rename(backupPath, target); err != nil {
		_ = m.fs.Rename(swap, target)
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	if err := m.fs.Rename(swap, backupPath); err != nil {
		return fmt.Errorf("failed to keep replaced file as backup: %w", err)
	}

	return nil
}

// Get returns information about the backup of target, or nil if none exists.
func (m *Manager) Get(target string) (*Info, error) {
	info, err := m.fs.Stat(Path(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	return &Info{
		Path:    Path(target),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
