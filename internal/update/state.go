package update

import (
	"crypto/md5" //nolint:gosec // G501: md5 is what the addon author publishes
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const digestChunkSize = 4096

// FileDigest returns the hex md5 of the file at path, read in fixed-size chunks.
func FileDigest(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	//nolint:gosec // G401: content fingerprint, not a security boundary
	h := md5.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestStore derives installed state from the digest of the installed file
type DigestStore struct {
	fs   afero.Fs
	path string
}

// NewDigestStore creates a store for the file at path
func NewDigestStore(fs afero.Fs, path string) *DigestStore {
	return &DigestStore{fs: fs, path: path}
}

// Load computes the digest of the installed file. A missing file is not an error.
func (s *DigestStore) Load() (LocalState, error) {
	digest, err := FileDigest(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return LocalState{Value: NotInitialized}, nil
		}
		return LocalState{}, localIO("read "+filepath.Base(s.path), err)
	}
	return LocalState{Present: true, Value: digest}, nil
}

// Save is a no-op: the installed file is its own state.
func (s *DigestStore) Save(*Release) error {
	return nil
}

// derivedStore is implemented by stores whose state is recomputed from the
// installed file, which have no PERSIST_STATE step.
type derivedStore interface {
	derived() bool
}

func (s *DigestStore) derived() bool { return true }

// MarkerStore records the installed version in a sidecar text file
type MarkerStore struct {
	fs   afero.Fs
	path string
}

// NewMarkerStore creates a store for the marker file at path
func NewMarkerStore(fs afero.Fs, path string) *MarkerStore {
	return &MarkerStore{fs: fs, path: path}
}

// Load returns the recorded version, or NotInitialized if the marker is missing.
func (s *MarkerStore) Load() (LocalState, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return LocalState{Value: NotInitialized}, nil
		}
		return LocalState{}, localIO("read version marker", err)
	}
	value := strings.Trim(string(data), "\r\n")
	return LocalState{Present: value != NotInitialized, Value: value}, nil
}

// Save overwrites the marker with r's version. The marker is replaced by
// rename, so readers see either the old or the new version.
func (s *MarkerStore) Save(r *Release) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return localIO("write version marker", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.WriteString(r.Version)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.fs.Chmod(tmpName, defaultFileMode)
	}
	if err == nil {
		err = s.fs.Rename(tmpName, s.path)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return localIO("write version marker", err)
	}
	return nil
}
