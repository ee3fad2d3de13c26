package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/adamancini/addonup/internal/addons"
	"github.com/adamancini/addonup/internal/interactive"
	"github.com/adamancini/addonup/internal/update"
)

func newRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <arcdps|d9vk>",
		Short: "Restore the previous version of an addon",
		Long: `Restore puts <file>.backup back in place of the installed addon file. The file
it replaces becomes the new backup, so running restore twice undoes it.

The d9vk version file is not rewritten; the next update pass reinstalls the
latest release unless the recorded version is changed by hand.

When run from a terminal, restore asks for confirmation unless --yes is given.`,
		ValidArgs: addons.Names,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prompter *interactive.Prompter
			if !yes && interactive.IsTerminal() {
				prompter = interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runRestore(afero.NewOsFs(), args[0], prompter, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Restore without asking for confirmation")

	return cmd
}

// runRestore swaps the backup of the named addon back into place. When
// prompter is non-nil the swap must be confirmed first.
func runRestore(fs afero.Fs, name string, prompter *interactive.Prompter, stdout, stderr io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target, ok := addons.Target(cfg, name)
	if !ok {
		return fmt.Errorf("unknown addon: %s", name)
	}

	if prompter != nil && !prompter.Confirm("Replace %s with its backup?", target) {
		fmt.Fprintln(stdout, "Aborted.")
		return nil
	}

	logger, closeLog, err := openLog(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := update.NewInstaller(fs).Restore(target); err != nil {
		logger.Error("Failed to restore "+name+" from backup", "error", err)
		return err
	}
	logger.Info("Restored " + name + " from backup")

	if !quiet {
		fmt.Fprintf(stdout, "✓ Restored %s from backup\n", target)
	}
	return nil
}
