// Package addons wires the two managed addons from a configuration.
package addons

import (
	"github.com/spf13/afero"

	"github.com/adamancini/addonup/internal/config"
	"github.com/adamancini/addonup/internal/update"
)

// Addon names as used on the command line and in logs.
const (
	NameArcdps = "arcdps"
	NameD9VK   = "d9vk"
)

// Names lists the managed addons in the order they are updated.
var Names = []string{NameArcdps, NameD9VK}

// Build returns the managed addons in update order.
func Build(cfg *config.Config, fs afero.Fs) []update.Addon {
	installer := update.NewInstaller(fs)
	fetcher := update.NewHTTPFetcher(update.WithTimeout(cfg.Timeout))

	return []update.Addon{
		Arcdps(cfg, fs, fetcher, installer),
		D9VK(cfg, fs, githubFetcher(cfg), fetcher, installer),
	}
}

// Arcdps builds the checksum-distributed addon: its state is the digest of
// the installed file, compared against the published md5sum.
func Arcdps(cfg *config.Config, fs afero.Fs, fetcher update.Fetcher, installer *update.Installer) update.Addon {
	target := cfg.Path(cfg.Arcdps.File)
	return update.Addon{
		Name:    NameArcdps,
		Enabled: cfg.Arcdps.Enabled,
		Oracle:  update.NewChecksumOracle(fetcher, cfg.Arcdps.ChecksumURL(), cfg.Arcdps.DownloadURL()),
		Store:   update.NewDigestStore(fs, target),
		Deploy:  update.NewSingleFile(fetcher, installer, target),
	}
}

// D9VK builds the release-distributed addon: its state is the release name
// recorded in the version file, compared against the newest release. The
// listing is queried through listing, the archive through download.
func D9VK(cfg *config.Config, fs afero.Fs, listing update.Fetcher, download update.ArchiveFetcher, installer *update.Installer) update.Addon {
	return update.Addon{
		Name:    NameD9VK,
		Enabled: cfg.D9VK.Enabled,
		Oracle:  update.NewReleaseOracle(listing, cfg.D9VK.ReleasesURL),
		Store:   update.NewMarkerStore(fs, cfg.Path(cfg.D9VK.VersionFile)),
		Deploy:  update.NewArchiveMember(download, installer, cfg.D9VK.ArchiveMember, cfg.Path(cfg.D9VK.File)),
	}
}

// Target returns the installed file path of the named addon.
func Target(cfg *config.Config, name string) (string, bool) {
	switch name {
	case NameArcdps:
		return cfg.Path(cfg.Arcdps.File), true
	case NameD9VK:
		return cfg.Path(cfg.D9VK.File), true
	default:
		return "", false
	}
}

func githubFetcher(cfg *config.Config) *update.HTTPFetcher {
	opts := []update.FetcherOption{
		update.WithTimeout(cfg.Timeout),
		update.WithHeader("Accept", "application/vnd.github+json"),
	}
	if cfg.GitHubToken != "" {
		opts = append(opts, update.WithHeader("Authorization", "Bearer "+cfg.GitHubToken))
	}
	return update.NewHTTPFetcher(opts...)
}
