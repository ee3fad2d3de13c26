package update

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

// fakeRemote serves a checksum file, a dll, a release listing and a release
// archive, counting requests per path.
type fakeRemote struct {
	mu       sync.Mutex
	requests map[string]int

	checksum string
	dll      string
	listing  string
	archive  []byte
	status   map[string]int
}

func newFakeRemote(t *testing.T) (*fakeRemote, *httptest.Server) {
	t.Helper()

	f := &fakeRemote{requests: make(map[string]int), status: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[r.URL.Path]++
		status, forced := f.status[r.URL.Path]
		f.mu.Unlock()

		if forced {
			w.WriteHeader(status)
			return
		}

		switch r.URL.Path {
		case "/arcdps/d3d9.dll.md5sum":
			_, _ = w.Write([]byte(f.checksum))
		case "/arcdps/d3d9.dll":
			_, _ = w.Write([]byte(f.dll))
		case "/releases":
			_, _ = w.Write([]byte(f.listing))
		case "/download/d9vk.tar.gz":
			_, _ = w.Write(f.archive)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeRemote) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeRemote) fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = status
}

func listingFor(name, url string) string {
	return `[{"name": "` + name + `", "assets": [{"name": "d9vk.tar.gz", "browser_download_url": "` + url + `"}]}]`
}

func arcdpsAddon(serverURL, dir string) Addon {
	fs := afero.NewOsFs()
	fetcher := NewHTTPFetcher()
	target := filepath.Join(dir, "d3d9.dll")
	return Addon{
		Name:    "arcdps",
		Enabled: true,
		Oracle:  NewChecksumOracle(fetcher, serverURL+"/arcdps/d3d9.dll.md5sum", serverURL+"/arcdps/d3d9.dll"),
		Store:   NewDigestStore(fs, target),
		Deploy:  NewSingleFile(fetcher, NewInstaller(fs), target),
	}
}

func d9vkAddon(serverURL, dir string) Addon {
	fs := afero.NewOsFs()
	fetcher := NewHTTPFetcher()
	return Addon{
		Name:    "d9vk",
		Enabled: true,
		Oracle:  NewReleaseOracle(fetcher, serverURL+"/releases"),
		Store:   NewMarkerStore(fs, filepath.Join(dir, "d9vk_current.txt")),
		Deploy:  NewArchiveMember(fetcher, NewInstaller(fs), "/x64/d3d9.dll", filepath.Join(dir, "d3d9_chainload.dll")),
	}
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func assertStates(t *testing.T, res Result, want ...State) {
	t.Helper()
	if !reflect.DeepEqual(res.States, want) {
		t.Errorf("States = %v, want %v", res.States, want)
	}
}

func TestWorkflow_ArcdpsUpdateKeepsBackup(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.dll = "arcdps new"
	remote.checksum = md5Hex([]byte("arcdps new")) + " d3d9.dll"

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d3d9.dll"), "arcdps old")

	res := NewWorkflow(nil).Run(context.Background(), arcdpsAddon(server.URL, dir))

	if res.Outcome != OutcomeInstalled {
		t.Fatalf("Outcome = %s, want installed (error: %s)", res.Outcome, res.Error)
	}
	assertStates(t, res, StateCheckLocal, StateResolveRemote, StateCompare, StateFetch, StateInstall, StateDone)

	if got := readFile(t, filepath.Join(dir, "d3d9.dll")); got != "arcdps new" {
		t.Errorf("d3d9.dll = %q, want arcdps new", got)
	}
	if got := readFile(t, filepath.Join(dir, "d3d9.dll.backup")); got != "arcdps old" {
		t.Errorf("d3d9.dll.backup = %q, want arcdps old", got)
	}
	if res.Current != md5Hex([]byte("arcdps old")) {
		t.Errorf("Current = %q, want digest of old file", res.Current)
	}
	if res.Latest != md5Hex([]byte("arcdps new")) {
		t.Errorf("Latest = %q, want published digest", res.Latest)
	}
}

func TestWorkflow_Idempotent(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.dll = "arcdps new"
	remote.checksum = md5Hex([]byte("arcdps new")) + " d3d9.dll"
	remote.listing = listingFor("v2", server.URL+"/download/d9vk.tar.gz")
	remote.archive = d9vkArchive(t, "d9vk-v2", "d9vk v2")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d3d9.dll"), "arcdps old")
	writeFile(t, filepath.Join(dir, "d9vk_current.txt"), "v1")

	wf := NewWorkflow(nil)
	addons := []Addon{arcdpsAddon(server.URL, dir), d9vkAddon(server.URL, dir)}

	first := wf.RunAll(context.Background(), addons)
	for _, res := range first {
		if res.Outcome != OutcomeInstalled {
			t.Fatalf("first run %s: Outcome = %s, want installed (error: %s)", res.Addon, res.Outcome, res.Error)
		}
	}
	after := snapshot(t, dir)

	second := wf.RunAll(context.Background(), addons)
	for _, res := range second {
		if res.Outcome != OutcomeUpToDate {
			t.Errorf("second run %s: Outcome = %s, want up-to-date", res.Addon, res.Outcome)
		}
		assertStates(t, res, StateCheckLocal, StateResolveRemote, StateCompare, StateUpToDate, StateDone)
	}

	if got := snapshot(t, dir); !reflect.DeepEqual(got, after) {
		t.Errorf("second run modified files: got %v, want %v", sortedKeys(got), sortedKeys(after))
	}
	if n := remote.count("/arcdps/d3d9.dll"); n != 1 {
		t.Errorf("dll downloaded %d times, want 1", n)
	}
	if n := remote.count("/download/d9vk.tar.gz"); n != 1 {
		t.Errorf("archive downloaded %d times, want 1", n)
	}
}

func TestWorkflow_FirstRun(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.dll = "arcdps"
	remote.checksum = md5Hex([]byte("arcdps")) + " d3d9.dll"
	remote.listing = listingFor("v2", server.URL+"/download/d9vk.tar.gz")
	remote.archive = d9vkArchive(t, "d9vk-v2", "d9vk v2")

	dir := t.TempDir()
	logger, logs := captureLogger()

	results := NewWorkflow(logger).RunAll(context.Background(), []Addon{
		arcdpsAddon(server.URL, dir),
		d9vkAddon(server.URL, dir),
	})

	if len(results) != 2 {
		t.Fatalf("RunAll() returned %d results, want 2", len(results))
	}

	// arcdps knows its download location without resolving
	arc := results[0]
	if arc.Outcome != OutcomeInstalled {
		t.Fatalf("arcdps Outcome = %s (error: %s)", arc.Outcome, arc.Error)
	}
	assertStates(t, arc, StateCheckLocal, StateFetch, StateInstall, StateDone)
	if n := remote.count("/arcdps/d3d9.dll.md5sum"); n != 0 {
		t.Errorf("checksum fetched %d times on first install, want 0", n)
	}
	if !strings.Contains(logs.String(), "d3d9.dll does not exist yet") {
		t.Errorf("log missing first-install notice:\n%s", logs.String())
	}

	d9 := results[1]
	if d9.Outcome != OutcomeInstalled {
		t.Fatalf("d9vk Outcome = %s (error: %s)", d9.Outcome, d9.Error)
	}
	assertStates(t, d9, StateCheckLocal, StateResolveRemote, StateCompare, StateFetch, StateInstall, StatePersistState, StateDone)
	if d9.Current != NotInitialized {
		t.Errorf("d9vk Current = %q, want %q", d9.Current, NotInitialized)
	}

	want := map[string]string{
		"d3d9.dll":           "arcdps",
		"d3d9_chainload.dll": "d9vk v2",
		"d9vk_current.txt":   "v2",
	}
	if got := snapshot(t, dir); !reflect.DeepEqual(got, want) {
		t.Errorf("install dir = %v, want %v", got, want)
	}
}

func TestWorkflow_DigestMatchSkipsDownload(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.dll = "should not be fetched"

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d3d9.dll"), "arcdps current")
	remote.checksum = md5Hex([]byte("arcdps current")) + " d3d9.dll"
	before := snapshot(t, dir)

	logger, logs := captureLogger()
	res := NewWorkflow(logger).Run(context.Background(), arcdpsAddon(server.URL, dir))

	if res.Outcome != OutcomeUpToDate {
		t.Fatalf("Outcome = %s, want up-to-date (error: %s)", res.Outcome, res.Error)
	}
	if n := remote.count("/arcdps/d3d9.dll"); n != 0 {
		t.Errorf("dll fetched %d times, want 0", n)
	}
	if got := snapshot(t, dir); !reflect.DeepEqual(got, before) {
		t.Errorf("install dir changed: %v", sortedKeys(got))
	}
	if !strings.Contains(logs.String(), "arcdps is up to date, nothing to do") {
		t.Errorf("log missing up-to-date message:\n%s", logs.String())
	}
}

func TestWorkflow_D9VKNewRelease(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.listing = listingFor("v2", server.URL+"/download/d9vk.tar.gz")
	remote.archive = d9vkArchive(t, "d9vk-v2", "d9vk v2")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d3d9_chainload.dll"), "d9vk v1")
	writeFile(t, filepath.Join(dir, "d9vk_current.txt"), "v1")

	res := NewWorkflow(nil).Run(context.Background(), d9vkAddon(server.URL, dir))

	if res.Outcome != OutcomeInstalled {
		t.Fatalf("Outcome = %s, want installed (error: %s)", res.Outcome, res.Error)
	}
	if res.Current != "v1" || res.Latest != "v2" {
		t.Errorf("Current/Latest = %q/%q, want v1/v2", res.Current, res.Latest)
	}

	want := map[string]string{
		"d3d9_chainload.dll":        "d9vk v2",
		"d3d9_chainload.dll.backup": "d9vk v1",
		"d9vk_current.txt":          "v2",
	}
	if got := snapshot(t, dir); !reflect.DeepEqual(got, want) {
		t.Errorf("install dir = %v, want %v", got, want)
	}
}

func TestWorkflow_DowngradeWarns(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.listing = listingFor("D9VK 0.30", server.URL+"/download/d9vk.tar.gz")
	remote.archive = d9vkArchive(t, "d9vk-0.30", "d9vk 0.30")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d9vk_current.txt"), "D9VK 0.40")

	logger, logs := captureLogger()
	res := NewWorkflow(logger).Run(context.Background(), d9vkAddon(server.URL, dir))

	if res.Outcome != OutcomeInstalled {
		t.Fatalf("Outcome = %s, want installed (error: %s)", res.Outcome, res.Error)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("log missing downgrade warning:\n%s", logs.String())
	}
}

func TestWorkflow_FailureLeavesFilesUntouched(t *testing.T) {
	tests := []struct {
		name     string
		addon    func(url, dir string) Addon
		setup    func(f *fakeRemote, url string)
		wantKind string
		wantLast State
	}{
		{
			name:  "arcdps checksum unavailable",
			addon: arcdpsAddon,
			setup: func(f *fakeRemote, url string) {
				f.fail("/arcdps/d3d9.dll.md5sum", http.StatusServiceUnavailable)
			},
			wantKind: "network",
			wantLast: StateResolveRemote,
		},
		{
			name:  "arcdps download fails",
			addon: arcdpsAddon,
			setup: func(f *fakeRemote, url string) {
				f.checksum = "abc123 d3d9.dll"
				f.fail("/arcdps/d3d9.dll", http.StatusNotFound)
			},
			wantKind: "network",
			wantLast: StateFetch,
		},
		{
			name:  "d9vk listing rate limited",
			addon: d9vkAddon,
			setup: func(f *fakeRemote, url string) {
				f.fail("/releases", http.StatusForbidden)
			},
			wantKind: "network",
			wantLast: StateResolveRemote,
		},
		{
			name:  "d9vk empty listing",
			addon: d9vkAddon,
			setup: func(f *fakeRemote, url string) {
				f.listing = `[]`
			},
			wantKind: "remote",
			wantLast: StateResolveRemote,
		},
		{
			name:  "d9vk archive missing",
			addon: d9vkAddon,
			setup: func(f *fakeRemote, url string) {
				f.listing = listingFor("v2", url+"/download/d9vk.tar.gz")
				f.fail("/download/d9vk.tar.gz", http.StatusNotFound)
			},
			wantKind: "network",
			wantLast: StateFetch,
		},
		{
			name:  "d9vk archive corrupt",
			addon: d9vkAddon,
			setup: func(f *fakeRemote, url string) {
				f.listing = listingFor("v2", url+"/download/d9vk.tar.gz")
				f.archive = []byte{0x1f, 0x8b, 0x00}
			},
			wantKind: "archive",
			wantLast: StateFetch,
		},
		{
			name:  "d9vk archive lacks x64 member",
			addon: d9vkAddon,
			setup: func(f *fakeRemote, url string) {
				f.listing = listingFor("v2", url+"/download/d9vk.tar.gz")
				f.archive = gzipBytes(t, buildTar(t, []tarEntry{
					{name: "d9vk-v2/", dir: true},
					{name: "d9vk-v2/x32/d3d9.dll", content: "32-bit"},
				}))
			},
			wantKind: "archive",
			wantLast: StateInstall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote, server := newFakeRemote(t)
			tt.setup(remote, server.URL)

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "d3d9.dll"), "arcdps old")
			writeFile(t, filepath.Join(dir, "d3d9_chainload.dll"), "d9vk v1")
			writeFile(t, filepath.Join(dir, "d9vk_current.txt"), "v1")
			before := snapshot(t, dir)

			logger, logs := captureLogger()
			res := NewWorkflow(logger).Run(context.Background(), tt.addon(server.URL, dir))

			if res.Outcome != OutcomeFailed {
				t.Fatalf("Outcome = %s, want failed", res.Outcome)
			}
			if res.ErrorKind != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q (error: %s)", res.ErrorKind, tt.wantKind, res.Error)
			}
			if n := len(res.States); n < 2 || res.States[n-2] != tt.wantLast || res.States[n-1] != StateDone {
				t.Errorf("States = %v, want failure in %s", res.States, tt.wantLast)
			}
			if got := snapshot(t, dir); !reflect.DeepEqual(got, before) {
				t.Errorf("install dir changed after failure:\nbefore %v\nafter  %v", before, got)
			}
			if n := strings.Count(logs.String(), "level=ERROR"); n != 1 {
				t.Errorf("logged %d errors, want 1:\n%s", n, logs.String())
			}
		})
	}
}

func TestWorkflow_RunAllContinuesAfterFailure(t *testing.T) {
	remote, server := newFakeRemote(t)
	remote.fail("/arcdps/d3d9.dll.md5sum", http.StatusInternalServerError)
	remote.listing = listingFor("v2", server.URL+"/download/d9vk.tar.gz")
	remote.archive = d9vkArchive(t, "d9vk-v2", "d9vk v2")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d3d9.dll"), "arcdps old")

	results := NewWorkflow(nil).RunAll(context.Background(), []Addon{
		arcdpsAddon(server.URL, dir),
		d9vkAddon(server.URL, dir),
	})

	if results[0].Outcome != OutcomeFailed {
		t.Errorf("arcdps Outcome = %s, want failed", results[0].Outcome)
	}
	if !errors.Is(results[0].Err, ErrNetworkFailure) {
		t.Errorf("arcdps Err = %v, want ErrNetworkFailure", results[0].Err)
	}
	if results[1].Outcome != OutcomeInstalled {
		t.Errorf("d9vk Outcome = %s, want installed (error: %s)", results[1].Outcome, results[1].Error)
	}
	if !Failed(results) {
		t.Error("Failed() = false, want true")
	}
}

func TestWorkflow_RunAllSkipsDisabled(t *testing.T) {
	remote, server := newFakeRemote(t)

	dir := t.TempDir()
	arc := arcdpsAddon(server.URL, dir)
	arc.Enabled = false
	d9 := d9vkAddon(server.URL, dir)
	d9.Enabled = false

	logger, logs := captureLogger()
	results := NewWorkflow(logger).RunAll(context.Background(), []Addon{arc, d9})

	for _, res := range results {
		if res.Outcome != OutcomeSkipped {
			t.Errorf("%s Outcome = %s, want skipped", res.Addon, res.Outcome)
		}
	}
	if Failed(results) {
		t.Error("Failed() = true for skipped addons")
	}
	if n := len(remote.requests); n != 0 {
		t.Errorf("made %d requests for disabled addons, want 0", n)
	}
	if !strings.Contains(logs.String(), "Skipping arcdps") || !strings.Contains(logs.String(), "Skipping d9vk") {
		t.Errorf("log missing skip messages:\n%s", logs.String())
	}
	if got := snapshot(t, dir); len(got) != 0 {
		t.Errorf("install dir = %v, want empty", sortedKeys(got))
	}
}

func TestWorkflow_CanceledContext(t *testing.T) {
	_, server := newFakeRemote(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d9vk_current.txt"), "v1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewWorkflow(nil).Run(ctx, d9vkAddon(server.URL, dir))
	if res.Outcome != OutcomeFailed || res.ErrorKind != "network" {
		t.Errorf("Outcome/ErrorKind = %s/%s, want failed/network", res.Outcome, res.ErrorKind)
	}
}

func TestFailed(t *testing.T) {
	if Failed(nil) {
		t.Error("Failed(nil) = true")
	}
	results := []Result{{Outcome: OutcomeUpToDate}, {Outcome: OutcomeInstalled}, {Outcome: OutcomeSkipped}}
	if Failed(results) {
		t.Error("Failed() = true without failures")
	}
}
