package update

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type tarEntry struct {
	name    string
	content string
	dir     bool
	// global writes a pax global header carrying content as its comment
	global bool
}

// buildTar returns an uncompressed tar archive of entries in order.
func buildTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.content)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			hdr = &tar.Header{Name: e.name, Mode: 0755, Typeflag: tar.TypeDir}
		case e.global:
			hdr = &tar.Header{Name: e.name, Typeflag: tar.TypeXGlobalHeader, PAXRecords: map[string]string{"comment": e.content}}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader(%s) error = %v", e.name, err)
		}
		if !e.dir && !e.global {
			if _, err := tw.Write([]byte(e.content)); err != nil {
				t.Fatalf("Write(%s) error = %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close() error = %v", err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip Write() error = %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip Close() error = %v", err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter() error = %v", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter() error = %v", err)
	}
	if _, err := xw.Write(data); err != nil {
		t.Fatalf("xz Write() error = %v", err)
	}
	if err := xw.Close(); err != nil {
		t.Fatalf("xz Close() error = %v", err)
	}
	return buf.Bytes()
}

// d9vkArchive returns a release-shaped tar.gz carrying dll as x64/d3d9.dll.
func d9vkArchive(t *testing.T, root, dll string) []byte {
	t.Helper()

	return gzipBytes(t, buildTar(t, []tarEntry{
		{name: root + "/", dir: true},
		{name: root + "/x64/", dir: true},
		{name: root + "/x64/d3d9.dll", content: dll},
		{name: root + "/x32/d3d9.dll", content: "32-bit " + dll},
	}))
}

// snapshot returns every file under dir with its contents.
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		files[rel] = string(content)
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot(%s) error = %v", dir, err)
	}
	return files
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(content)
}
