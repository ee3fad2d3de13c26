package update

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/adamancini/addonup/internal/backup"
)

const defaultFileMode os.FileMode = 0644

// Installer replaces installed files while keeping one backup
type Installer struct {
	fs      afero.Fs
	backups *backup.Manager
}

// NewInstaller creates an installer operating on fs
func NewInstaller(fs afero.Fs) *Installer {
	return &Installer{
		fs:      fs,
		backups: backup.NewManager(fs),
	}
}

// InstallFile writes data to target, keeping the previous target as target.backup.
//
// The new content is staged next to target and renamed over it, so target is
// never missing once it has existed: an interruption leaves either the old or
// the new file in place.
func (i *Installer) InstallFile(data []byte, target string) error {
	mode := defaultFileMode
	if info, err := i.fs.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}

	// 1. Stage new content
	tmp, err := afero.TempFile(i.fs, filepath.Dir(target), "."+filepath.Base(target)+"-*")
	if err != nil {
		return localIO("stage new file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = i.fs.Remove(tmpName)
		return localIO("write new file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = i.fs.Remove(tmpName)
		return localIO("write new file", err)
	}
	if err := i.fs.Chmod(tmpName, mode); err != nil {
		_ = i.fs.Remove(tmpName)
		return localIO("set permissions", err)
	}

	// 2. Back up current target
	if _, err := i.backups.Create(target); err != nil {
		_ = i.fs.Remove(tmpName)
		return localIO("back up "+filepath.Base(target), err)
	}

	// 3. Swap into place
	if err := i.fs.Rename(tmpName, target); err != nil {
		_ = i.fs.Remove(tmpName)
		return localIO("replace "+filepath.Base(target), err)
	}

	return nil
}

// InstallFromArchive installs the archive member <root>/<inner> at target.
// Nothing is written when the member is missing.
func (i *Installer) InstallFromArchive(a *Archive, inner, target string) error {
	data, err := a.Member(inner)
	if err != nil {
		return err
	}
	return i.InstallFile(data, target)
}

// Restore swaps target.backup back into place.
func (i *Installer) Restore(target string) error {
	if err := i.backups.Restore(target); err != nil {
		return fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	return nil
}

// Backup returns information about the backup of target, or nil if none exists.
func (i *Installer) Backup(target string) (*backup.Info, error) {
	return i.backups.Get(target)
}
