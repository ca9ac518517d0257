package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/procedures"
)

var runParams []string

var runCmd = &cobra.Command{
	Use:   "run <operation> [--param key=value]...",
	Short: "Run one operation and wait for it",
	Long: "Run a single operation non-interactively, e.g. \"meshcfg run install-daemon:beta\"\n" +
		"or \"meshcfg run send-text --param message=hello\". The exit status is 1\n" +
		"when the operation fails.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "operation parameter as key=value (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	params, err := procedures.ParseParams(runParams)
	if err != nil {
		return fmt.Errorf("meshcfg run: %w", err)
	}

	a, err := newApp(false, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("meshcfg run: %w", err)
	}
	defer a.close()

	res, err := a.runOperation(cmd.Context(), args[0], params)
	if err != nil {
		return fmt.Errorf("meshcfg run: %w", err)
	}
	return printResult(cmd.OutOrStdout(), res)
}

// errOperationFailed makes the process exit non-zero after the failure has
// been printed.
var errOperationFailed = errors.New("operation failed")

func printResult(w io.Writer, res orchestrator.Result) error {
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if res.BackupPath != "" {
		fmt.Fprintf(w, "backup: %s\n", res.BackupPath)
	}
	if !res.Success {
		fmt.Fprintf(w, "FAILED: %s\n", res.Message)
		if res.Detail != "" {
			fmt.Fprintf(w, "\n%s\n", res.Detail)
		}
		return fmt.Errorf("meshcfg run: %s: %w", res.OperationID, errOperationFailed)
	}
	fmt.Fprintf(w, "OK: %s (%s)\n", res.Message, res.Duration.Round(time.Millisecond))
	return nil
}
