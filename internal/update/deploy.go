package update

import (
	"context"
	"fmt"
)

// SingleFile deploys a release whose payload is the installed file itself
type SingleFile struct {
	fetcher   Fetcher
	installer *Installer
	target    string
}

// NewSingleFile creates a deployer installing the downloaded bytes at target
func NewSingleFile(fetcher Fetcher, installer *Installer, target string) *SingleFile {
	return &SingleFile{fetcher: fetcher, installer: installer, target: target}
}

// Fetch downloads the payload of r.
func (d *SingleFile) Fetch(ctx context.Context, r *Release) (Staged, error) {
	data, err := d.fetcher.FetchBytes(ctx, r.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", r.URL, err)
	}
	return stagedFunc(func() error {
		return d.installer.InstallFile(data, d.target)
	}), nil
}

// Target returns the installed file path.
func (d *SingleFile) Target() string {
	return d.target
}

// ArchiveMember deploys a release whose payload is one file inside an archive
type ArchiveMember struct {
	fetcher   ArchiveFetcher
	installer *Installer
	inner     string
	target    string
}

// NewArchiveMember creates a deployer installing <root>/inner from the
// downloaded archive at target
func NewArchiveMember(fetcher ArchiveFetcher, installer *Installer, inner, target string) *ArchiveMember {
	return &ArchiveMember{fetcher: fetcher, installer: installer, inner: inner, target: target}
}

// Fetch downloads and opens the archive for r.
func (d *ArchiveMember) Fetch(ctx context.Context, r *Release) (Staged, error) {
	archive, err := d.fetcher.FetchArchive(ctx, r.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", r.URL, err)
	}
	return stagedFunc(func() error {
		return d.installer.InstallFromArchive(archive, d.inner, d.target)
	}), nil
}

// Target returns the installed file path.
func (d *ArchiveMember) Target() string {
	return d.target
}

type stagedFunc func() error

func (f stagedFunc) Install() error {
	return f()
}
