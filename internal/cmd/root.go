package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/addonup/internal/config"
)

var (
	// Global flags
	outputFormat string
	installDir   string
	timeout      time.Duration
	verbose      bool
	quiet        bool
)

// addonupVersion is set during command initialization
var addonupVersion = "dev"

func newRootCmd(version, commit, date string) *cobra.Command {
	addonupVersion = version

	opts := &updateOptions{}

	rootCmd := &cobra.Command{
		Use:   "addonup",
		Short: "Keep Guild Wars 2 rendering addons up to date",
		Long: `addonup checks arcdps and d9vk for new releases and installs them into the
game's bin64 directory, keeping the previous file as <name>.backup.

Each addon is only checked when enabled, either by setting GW2_UPDATE_ARCDPS=true
or GW2_UPDATE_D9VK=true, or with --arcdps / --d9vk. Progress is appended to
gw2_addon_update.log in the installation directory.

Run without a subcommand to perform one update pass.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addUpdateFlags(rootCmd, opts)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml, toml")
	rootCmd.PersistentFlags().StringVarP(&installDir, "dir", "d", config.DefaultInstallDir, "Addon installation directory")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "Timeout for each remote request")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (mirror log to stderr)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newVersionCmd(commit, date))
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml", "toml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// Execute runs the command line with ctx governing every remote request.
func Execute(ctx context.Context, version, commit, date string) error {
	return newRootCmd(version, commit, date).ExecuteContext(ctx)
}

// loadConfig resolves the configuration from the environment and global flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	cfg.InstallDir = installDir
	cfg.Timeout = timeout
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
