package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/adamancini/addonup/internal/addons"
	"github.com/adamancini/addonup/internal/config"
	"github.com/adamancini/addonup/internal/logging"
	"github.com/adamancini/addonup/internal/output"
	"github.com/adamancini/addonup/internal/update"
)

// ErrUpdateFailed is returned in strict mode when any addon failed to update.
var ErrUpdateFailed = errors.New("one or more addons failed to update")

type updateOptions struct {
	strict bool
	arcdps bool
	d9vk   bool
}

func addUpdateFlags(cmd *cobra.Command, opts *updateOptions) {
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero if any addon fails to update")
	cmd.Flags().BoolVar(&opts.arcdps, "arcdps", false, "Check arcdps regardless of "+config.EnvUpdateArcdps)
	cmd.Flags().BoolVar(&opts.d9vk, "d9vk", false, "Check d9vk regardless of "+config.EnvUpdateD9VK)
}

func newRunCmd() *cobra.Command {
	opts := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform one update pass",
		Long: `Run checks every enabled addon once and installs newer versions.

Failures are logged and do not stop the remaining addons. The exit status is 0
unless --strict is given and an addon failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addUpdateFlags(cmd, opts)

	return cmd
}

// runSummary is the report printed after an update pass.
type runSummary struct {
	Results []update.Result `json:"results" yaml:"results" toml:"results"`
}

func (s runSummary) String() string {
	var b strings.Builder
	for i, r := range s.Results {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch r.Outcome {
		case update.OutcomeInstalled:
			if r.Latest != "" {
				fmt.Fprintf(&b, "✓ %s: installed %s", r.Addon, r.Latest)
			} else {
				fmt.Fprintf(&b, "✓ %s: installed", r.Addon)
			}
		case update.OutcomeUpToDate:
			fmt.Fprintf(&b, "✓ %s: up to date", r.Addon)
		case update.OutcomeFailed:
			fmt.Fprintf(&b, "✗ %s: %s", r.Addon, r.Error)
		default:
			fmt.Fprintf(&b, "- %s: skipped", r.Addon)
		}
	}
	return b.String()
}

// runUpdate executes one update pass.
func runUpdate(ctx context.Context, opts *updateOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Resolve configuration
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.arcdps {
		cfg.Arcdps.Enabled = true
	}
	if opts.d9vk {
		cfg.D9VK.Enabled = true
	}

	// 2. Open log
	logger, closeLog, err := openLog(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	// 3. Update each addon in order
	logger.Info("Checking for updates")
	workflow := update.NewWorkflow(logger)
	results := workflow.RunAll(ctx, addons.Build(cfg, afero.NewOsFs()))
	logger.Info("Done")

	// 4. Report
	if !quiet {
		if err := output.NewWriter(stdout, format).Write(runSummary{Results: results}); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if opts.strict && update.Failed(results) {
		return ErrUpdateFailed
	}
	return nil
}

func openLog(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	var mirror io.Writer
	if verbose {
		mirror = stderr
	}
	logger, closeLog, err := logging.Open(logging.Options{
		Path:   cfg.LogPath(),
		Mirror: mirror,
		Level:  slog.LevelInfo,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("installation directory %s is not usable: %w", cfg.InstallDir, err)
	}
	return logger, closeLog, nil
}
