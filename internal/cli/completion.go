package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// completionGenerators maps supported shells to their cobra script generators.
var completionGenerators = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for watchrun. Task and watch group
names are completed from the config file in the current directory.

Bash:
  $ source <(watchrun completion bash)

Zsh:
  $ watchrun completion zsh > "${fpath[1]}/_watchrun"

Fish:
  $ watchrun completion fish > ~/.config/fish/completions/watchrun.fish

PowerShell:
  PS> watchrun completion powershell | Out-String | Invoke-Expression
`,
		// Completion scripts need no config file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:         []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionGenerators[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}
