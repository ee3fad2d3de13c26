package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for required fields and valid values.
func Validate(c *Config) error {
	var errors []string

	if strings.TrimSpace(c.InstallDir) == "" {
		errors = append(errors, ValidationError{Field: "install_dir", Message: "must not be empty"}.Error())
	}
	if c.Timeout <= 0 {
		errors = append(errors, ValidationError{Field: "timeout", Message: "must be positive"}.Error())
	}

	if err := validateURL("arcdps.base_url", c.Arcdps.BaseURL); err != nil {
		errors = append(errors, err.Error())
	}
	if err := validateURL("d9vk.releases_url", c.D9VK.ReleasesURL); err != nil {
		errors = append(errors, err.Error())
	}

	names := map[string]string{
		"arcdps.file":          c.Arcdps.File,
		"arcdps.checksum_file": c.Arcdps.ChecksumFile,
		"d9vk.file":            c.D9VK.File,
		"d9vk.version_file":    c.D9VK.VersionFile,
	}
	for _, field := range []string{"arcdps.file", "arcdps.checksum_file", "d9vk.file", "d9vk.version_file"} {
		if err := validateFileName(field, names[field]); err != nil {
			errors = append(errors, err.Error())
		}
	}

	// Each workflow must touch its own files in the shared directory.
	if c.Arcdps.File != "" && (c.Arcdps.File == c.D9VK.File || c.Arcdps.File == c.D9VK.VersionFile) {
		errors = append(errors, ValidationError{Field: "arcdps.file", Message: "collides with a d9vk file"}.Error())
	}
	if c.D9VK.File != "" && c.D9VK.File == c.D9VK.VersionFile {
		errors = append(errors, ValidationError{Field: "d9vk.version_file", Message: "must differ from d9vk.file"}.Error())
	}

	if strings.Trim(c.D9VK.ArchiveMember, "/") == "" {
		errors = append(errors, ValidationError{Field: "d9vk.archive_member", Message: "must not be empty"}.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)}
	}
	return nil
}

func validateFileName(field, name string) error {
	if name == "" {
		return ValidationError{Field: field, Message: "must not be empty"}
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return ValidationError{Field: field, Message: fmt.Sprintf("%q must be a plain file name", name)}
	}
	return nil
}
