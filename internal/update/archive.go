package update

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicBzip2 = []byte("BZh")
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Archive is a decoded tar archive whose first entry is a directory
type Archive struct {
	root  string
	files map[string][]byte
}

// OpenArchive decodes data as a tar archive, optionally gzip, zstd, bzip2 or
// xz compressed. The first member must be a directory; pax global headers are
// metadata and never count as members.
func OpenArchive(data []byte) (*Archive, error) {
	r, closer, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveFormat, err)
	}
	defer closer()

	tr := tar.NewReader(r)
	a := &Archive{files: make(map[string][]byte)}
	first := true

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read tar: %v", ErrArchiveFormat, err)
		}

		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name := cleanName(header.Name)
		if first {
			if header.Typeflag != tar.TypeDir {
				return nil, fmt.Errorf("%w: first entry %q is not a directory", ErrArchiveFormat, header.Name)
			}
			a.root = name
			first = false
			continue
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		//nolint:gosec // G110: release assets are small and from a known source
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("%w: extract %s: %v", ErrArchiveFormat, header.Name, err)
		}
		a.files[name] = content
	}

	if first {
		return nil, fmt.Errorf("%w: archive is empty", ErrArchiveFormat)
	}

	return a, nil
}

// Root returns the name of the archive's top-level directory.
func (a *Archive) Root() string {
	return a.root
}

// Member returns the contents of <root>/<inner>.
func (a *Archive) Member(inner string) ([]byte, error) {
	name := path.Join(a.root, inner)
	content, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: member %s not found", ErrArchiveFormat, name)
	}
	return content, nil
}

func decompress(data []byte) (io.Reader, func(), error) {
	noop := func() {}

	switch {
	case bytes.HasPrefix(data, magicGzip):
		gzr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, noop, fmt.Errorf("create gzip reader: %w", err)
		}
		return gzr, func() { _ = gzr.Close() }, nil
	case bytes.HasPrefix(data, magicZstd):
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, noop, fmt.Errorf("create zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	case bytes.HasPrefix(data, magicBzip2):
		return bzip2.NewReader(bytes.NewReader(data)), noop, nil
	case bytes.HasPrefix(data, magicXZ):
		xzr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, noop, fmt.Errorf("create xz reader: %w", err)
		}
		return xzr, noop, nil
	default:
		return bytes.NewReader(data), noop, nil
	}
}

// cleanName normalizes tar member names so "./d9vk/" and "d9vk" compare equal.
func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
