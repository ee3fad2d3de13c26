package update

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ChecksumOracle resolves the latest version from a published checksum file
type ChecksumOracle struct {
	fetcher     Fetcher
	checksumURL string
	downloadURL string
}

// NewChecksumOracle creates an oracle reading "<digest> <filename>" from checksumURL.
// The payload is always served from downloadURL.
func NewChecksumOracle(fetcher Fetcher, checksumURL, downloadURL string) *ChecksumOracle {
	return &ChecksumOracle{
		fetcher:     fetcher,
		checksumURL: checksumURL,
		downloadURL: downloadURL,
	}
}

// Resolve fetches the checksum file and returns its first token as the version.
func (o *ChecksumOracle) Resolve(ctx context.Context) (*Release, error) {
	data, err := o.fetcher.FetchBytes(ctx, o.checksumURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download checksum: %w", err)
	}

	digest, err := ParseChecksum(string(data))
	if err != nil {
		return nil, err
	}

	return &Release{Version: digest, URL: o.downloadURL}, nil
}

// Static returns the download location, which never changes between versions.
func (o *ChecksumOracle) Static() *Release {
	return &Release{URL: o.downloadURL}
}

// ParseChecksum returns the first whitespace-delimited token of a checksum file.
func ParseChecksum(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: checksum file is empty", ErrMalformedRemote)
	}
	return strings.ToLower(fields[0]), nil
}

// ReleaseAsset represents a downloadable file attached to a release
type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// ReleaseInfo represents one entry of a GitHub release listing
type ReleaseInfo struct {
	TagName    string         `json:"tag_name"`
	Name       string         `json:"name"`
	Prerelease bool           `json:"prerelease"`
	Assets     []ReleaseAsset `json:"assets"`
}

// ReleaseOracle resolves the latest version from a newest-first release listing
type ReleaseOracle struct {
	fetcher    Fetcher
	listingURL string
}

// NewReleaseOracle creates an oracle for the listing at listingURL.
func NewReleaseOracle(fetcher Fetcher, listingURL string) *ReleaseOracle {
	return &ReleaseOracle{
		fetcher:    fetcher,
		listingURL: listingURL,
	}
}

// Resolve returns the first release's name and first asset's download URL.
func (o *ReleaseOracle) Resolve(ctx context.Context) (*Release, error) {
	data, err := o.fetcher.FetchBytes(ctx, o.listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get release listing: %w", err)
	}

	var releases []ReleaseInfo
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, fmt.Errorf("%w: failed to decode release listing: %v", ErrMalformedRemote, err)
	}

	if len(releases) == 0 {
		return nil, fmt.Errorf("%w: release listing is empty", ErrMalformedRemote)
	}

	latest := releases[0]
	if len(latest.Assets) == 0 || latest.Assets[0].BrowserDownloadURL == "" {
		return nil, fmt.Errorf("%w: release %q has no downloadable asset", ErrMalformedRemote, latest.Name)
	}

	return &Release{
		Version: latest.Name,
		URL:     latest.Assets[0].BrowserDownloadURL,
	}, nil
}
