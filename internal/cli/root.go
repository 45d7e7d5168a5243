package cli

import (
	"fmt"
	"os"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verbose   bool
	presetFlag string
	appConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:   "cosmos-harness",
		Short: "Bounded, gated autonomous code-modification harness",
		Long: `cosmos-harness takes a validated, scoped repair suggestion and attempts to
implement it inside an isolated sandbox, subject to a hard time and cost
budget and a deterministic gate pipeline (scope, diff size, syntax, binary
writes) plus an adversarial review pass.

It never pushes anywhere and writes into the working tree only when asked
to (run --apply, or the apply command); otherwise it hands back a
diagnostics report and, on a passing run, the file contents to apply.

Run 'cosmos-harness <command> --help' for details on any subcommand.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&presetFlag, "preset", "", "Harness preset override (interactive_strict, lab_strict)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose)
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if presetFlag != "" {
			cfg.Harness = config.Preset(presetFlag)
		}
		appConfig = cfg
		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return err
}
