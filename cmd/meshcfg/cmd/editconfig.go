package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plexsphere/meshcfg/internal/procedures"
)

var editConfigCmd = &cobra.Command{
	Use:   "edit-config",
	Short: "Edit the daemon configuration file",
	Long: "Create /etc/meshtasticd/config.yaml with a commented skeleton if it is\n" +
		"missing, then open it in $VISUAL or $EDITOR (sudo -e when not root).",
	Args: cobra.NoArgs,
	RunE: runEditConfig,
}

func init() {
	rootCmd.AddCommand(editConfigCmd)
}

func runEditConfig(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("meshcfg edit-config: %w", err)
	}
	defer a.close()

	res, err := a.runOperation(cmd.Context(), procedures.EditConfigID, nil)
	if err != nil {
		return fmt.Errorf("meshcfg edit-config: %w", err)
	}
	if err := printResult(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	c := a.editor.Command()
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("meshcfg edit-config: editor: %w", err)
	}
	return nil
}
