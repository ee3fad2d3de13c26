package cmd

import (
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// completionGenerators maps a shell name to the cobra generator writing its script.
var completionGenerators = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
}

func completionShells() []string {
	shells := make([]string, 0, len(completionGenerators))
	for shell := range completionGenerators {
		shells = append(shells, shell)
	}
	sort.Strings(shells)
	return shells
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|fish|zsh]",
		Short: "Generate shell completion script",
		Long: `Print a completion script for the given shell.

Most installs run addonup from a launcher wrapper, so completion only
matters when invoking it by hand:

  $ source <(addonup completion bash)
  $ addonup completion zsh > "${fpath[1]}/_addonup"
  $ addonup completion fish > ~/.config/fish/completions/addonup.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             completionShells(),
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionGenerators[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}
