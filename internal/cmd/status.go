package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/adamancini/addonup/internal/addons"
	"github.com/adamancini/addonup/internal/backup"
	"github.com/adamancini/addonup/internal/config"
	"github.com/adamancini/addonup/internal/output"
	"github.com/adamancini/addonup/internal/update"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed addon state",
		Long: `Status shows what is currently installed for each addon without contacting
any remote: the installed file's md5, the recorded d9vk version and whether a
backup is available for 'addonup restore'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(afero.NewOsFs(), cmd.OutOrStdout())
		},
	}
}

// AddonStatus describes the installed state of one addon.
type AddonStatus struct {
	Name      string       `json:"name" yaml:"name" toml:"name"`
	Enabled   bool         `json:"enabled" yaml:"enabled" toml:"enabled"`
	Target    string       `json:"target" yaml:"target" toml:"target"`
	Installed bool         `json:"installed" yaml:"installed" toml:"installed"`
	Digest    string       `json:"digest,omitempty" yaml:"digest,omitempty" toml:"digest,omitempty"`
	Version   string       `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	Backup    *backup.Info `json:"backup,omitempty" yaml:"backup,omitempty" toml:"backup,omitempty"`
}

// statusReport is the document printed by the status command.
type statusReport struct {
	InstallDir string        `json:"install_dir" yaml:"install_dir" toml:"install_dir"`
	Addons     []AddonStatus `json:"addons" yaml:"addons" toml:"addons"`
}

func (r statusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Installation directory: %s\n", r.InstallDir)
	for _, a := range r.Addons {
		enabled := "disabled"
		if a.Enabled {
			enabled = "enabled"
		}
		fmt.Fprintf(&b, "\n%s (%s)\n", a.Name, enabled)
		if !a.Installed {
			fmt.Fprintf(&b, "  file:    %s (not installed)\n", a.Target)
		} else {
			fmt.Fprintf(&b, "  file:    %s\n", a.Target)
			fmt.Fprintf(&b, "  md5:     %s\n", a.Digest)
		}
		if a.Version != "" {
			fmt.Fprintf(&b, "  version: %s\n", a.Version)
		}
		if a.Backup != nil {
			fmt.Fprintf(&b, "  backup:  %s (%s)\n", a.Backup.Path, a.Backup.ModTime.Format("2006-01-02 15:04:05"))
		} else {
			b.WriteString("  backup:  none\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// runStatus reports installed state for every addon.
func runStatus(fs afero.Fs, stdout io.Writer) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := collectStatus(cfg, fs)
	if err != nil {
		return err
	}

	return output.NewWriter(stdout, format).Write(report)
}

func collectStatus(cfg *config.Config, fs afero.Fs) (statusReport, error) {
	installer := update.NewInstaller(fs)
	report := statusReport{InstallDir: cfg.InstallDir}

	enabled := map[string]bool{
		addons.NameArcdps: cfg.Arcdps.Enabled,
		addons.NameD9VK:   cfg.D9VK.Enabled,
	}

	for _, name := range addons.Names {
		target, _ := addons.Target(cfg, name)
		st := AddonStatus{Name: name, Enabled: enabled[name], Target: target}

		digest, err := update.FileDigest(fs, target)
		switch {
		case err == nil:
			st.Installed = true
			st.Digest = digest
		case !os.IsNotExist(err):
			return report, fmt.Errorf("failed to read %s: %w", target, err)
		}

		if name == addons.NameD9VK {
			local, err := update.NewMarkerStore(fs, cfg.Path(cfg.D9VK.VersionFile)).Load()
			if err != nil {
				return report, err
			}
			st.Version = local.Value
		}

		st.Backup, err = installer.Backup(target)
		if err != nil {
			return report, err
		}

		report.Addons = append(report.Addons, st)
	}

	return report, nil
}
