package update

import "context"

// NotInitialized is the marker value reported before any version was recorded.
const NotInitialized = "Not yet initialized"

// Release describes the latest version available remotely
type Release struct {
	Version string // Digest or release name identifying the version
	URL     string // Download location for the payload
}

// LocalState describes what is currently installed
type LocalState struct {
	Present bool   // Whether any installed state was found
	Value   string // Digest or marker contents; NotInitialized when absent
}

// Matches reports whether the installed state already corresponds to r.
// Absent state never matches, so a first run always installs.
func (s LocalState) Matches(r *Release) bool {
	return s.Present && r != nil && s.Value == r.Version
}

// Oracle resolves the latest remote version of an addon
type Oracle interface {
	Resolve(ctx context.Context) (*Release, error)
}

// StaticLocator is implemented by oracles whose download URL is known
// without a remote lookup.
type StaticLocator interface {
	Static() *Release
}

// StateStore reads and records the installed state of an addon
type StateStore interface {
	Load() (LocalState, error)
	Save(r *Release) error
}

// Deployer fetches a release payload for installation at Target
type Deployer interface {
	Fetch(ctx context.Context, r *Release) (Staged, error)
	Target() string
}

// Staged is a fetched payload ready to be installed
type Staged interface {
	Install() error
}

// Addon bundles the collaborators of one Fetch-Compare-Replace workflow
type Addon struct {
	Name    string
	Enabled bool
	Oracle  Oracle
	Store   StateStore
	Deploy  Deployer
}

// Fetcher retrieves remote bytes
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// ArchiveFetcher retrieves and decodes remote archives
type ArchiveFetcher interface {
	Fetcher
	FetchArchive(ctx context.Context, url string) (*Archive, error)
}
