// Package config resolves the installation directory, remote endpoints and
// enabled addons for an update run.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment variables read by Load.
const (
	EnvUpdateArcdps = "GW2_UPDATE_ARCDPS"
	EnvUpdateD9VK   = "GW2_UPDATE_D9VK"
	EnvGitHubToken  = "GITHUB_TOKEN"

	// Endpoint overrides, for mirrors and local testing.
	EnvArcdpsURL       = "ADDONUP_ARCDPS_URL"
	EnvD9VKReleasesURL = "ADDONUP_D9VK_RELEASES_URL"
)

// Defaults for a Guild Wars 2 install inside a Wine prefix, relative to the
// prefix root.
const (
	DefaultInstallDir = "./drive_c/Program Files/Guild Wars 2/bin64/"
	DefaultTimeout    = 5 * time.Second
	DefaultLogFile    = "gw2_addon_update.log"

	DefaultArcdpsBaseURL      = "https://www.deltaconnected.com/arcdps/x64/"
	DefaultArcdpsFile         = "d3d9.dll"
	DefaultArcdpsChecksumFile = "d3d9.dll.md5sum"

	DefaultD9VKReleasesURL   = "https://api.github.com/repos/Joshua-Ashton/d9vk/releases"
	DefaultD9VKFile          = "d3d9_chainload.dll"
	DefaultD9VKVersionFile   = "d9vk_current.txt"
	DefaultD9VKArchiveMember = "/x64/d3d9.dll"
)

const (
	keyArcdpsEnabled = "arcdps.enabled"
	keyD9VKEnabled   = "d9vk.enabled"
	keyGitHubToken   = "github.token"
	keyArcdpsURL     = "arcdps.base_url"
	keyD9VKURL       = "d9vk.releases_url"
)

// ArcdpsConfig describes the checksum-distributed addon.
type ArcdpsConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	BaseURL      string `json:"base_url" yaml:"base_url" toml:"base_url"`
	File         string `json:"file" yaml:"file" toml:"file"`
	ChecksumFile string `json:"checksum_file" yaml:"checksum_file" toml:"checksum_file"`
}

// DownloadURL returns the location of the addon binary.
func (a ArcdpsConfig) DownloadURL() string {
	return joinURL(a.BaseURL, a.File)
}

// ChecksumURL returns the location of the published checksum file.
func (a ArcdpsConfig) ChecksumURL() string {
	return joinURL(a.BaseURL, a.ChecksumFile)
}

// D9VKConfig describes the release-archive-distributed addon.
type D9VKConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	ReleasesURL   string `json:"releases_url" yaml:"releases_url" toml:"releases_url"`
	File          string `json:"file" yaml:"file" toml:"file"`
	VersionFile   string `json:"version_file" yaml:"version_file" toml:"version_file"`
	ArchiveMember string `json:"archive_member" yaml:"archive_member" toml:"archive_member"`
}

// Config holds everything an update run needs.
type Config struct {
	InstallDir  string        `json:"install_dir" yaml:"install_dir" toml:"install_dir"`
	LogFile     string        `json:"log_file" yaml:"log_file" toml:"log_file"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	GitHubToken string        `json:"-" yaml:"-" toml:"-"`
	Arcdps      ArcdpsConfig  `json:"arcdps" yaml:"arcdps" toml:"arcdps"`
	D9VK        D9VKConfig    `json:"d9vk" yaml:"d9vk" toml:"d9vk"`
}

// Path returns name resolved inside the installation directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.InstallDir, name)
}

// LogPath returns the log file path, or "" when file logging is disabled.
func (c *Config) LogPath() string {
	if c.LogFile == "" {
		return ""
	}
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return c.Path(c.LogFile)
}

// Default returns the built-in configuration with both addons disabled.
func Default() *Config {
	return &Config{
		InstallDir: DefaultInstallDir,
		LogFile:    DefaultLogFile,
		Timeout:    DefaultTimeout,
		Arcdps: ArcdpsConfig{
			BaseURL:      DefaultArcdpsBaseURL,
			File:         DefaultArcdpsFile,
			ChecksumFile: DefaultArcdpsChecksumFile,
		},
		D9VK: D9VKConfig{
			ReleasesURL:   DefaultD9VKReleasesURL,
			File:          DefaultD9VKFile,
			VersionFile:   DefaultD9VKVersionFile,
			ArchiveMember: DefaultD9VKArchiveMember,
		},
	}
}

// Load returns the default configuration with the environment applied.
// An addon is enabled only when its variable is exactly "true".
func Load() *Config {
	v := viper.New()
	_ = v.BindEnv(keyArcdpsEnabled, EnvUpdateArcdps)
	_ = v.BindEnv(keyD9VKEnabled, EnvUpdateD9VK)
	_ = v.BindEnv(keyGitHubToken, EnvGitHubToken)
	_ = v.BindEnv(keyArcdpsURL, EnvArcdpsURL)
	_ = v.BindEnv(keyD9VKURL, EnvD9VKReleasesURL)

	v.SetDefault(keyArcdpsEnabled, "false")
	v.SetDefault(keyD9VKEnabled, "false")
	v.SetDefault(keyArcdpsURL, DefaultArcdpsBaseURL)
	v.SetDefault(keyD9VKURL, DefaultD9VKReleasesURL)

	cfg := Default()
	cfg.Arcdps.Enabled = v.GetString(keyArcdpsEnabled) == "true"
	cfg.D9VK.Enabled = v.GetString(keyD9VKEnabled) == "true"
	cfg.GitHubToken = strings.TrimSpace(v.GetString(keyGitHubToken))
	cfg.Arcdps.BaseURL = v.GetString(keyArcdpsURL)
	cfg.D9VK.ReleasesURL = v.GetString(keyD9VKURL)

	return cfg
}

func joinURL(base, name string) string {
	if strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}
