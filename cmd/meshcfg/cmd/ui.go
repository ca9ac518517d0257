package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/meshcfg/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Start the interactive terminal interface",
	Long: "Start the full-screen terminal interface showing system status, the\n" +
		"operation menu, and live log output.",
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, _ []string) error {
	a, err := newApp(true, nil)
	if err != nil {
		return fmt.Errorf("meshcfg ui: %w", err)
	}
	defer a.close()

	if err := a.preflight(cmd.Context()); err != nil {
		return fmt.Errorf("meshcfg ui: %w", err)
	}
	a.logger.Info("starting meshcfg", "version", buildVersion)

	if err := tui.Run(a.registry, a.orch, a.checker, a.queue, a.editor); err != nil {
		return fmt.Errorf("meshcfg ui: %w", err)
	}
	return nil
}
