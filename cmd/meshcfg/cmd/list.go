package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plexsphere/meshcfg/internal/procedures"
)

// maxListedChoices is the longest choice set spelled out inline.
const maxListedChoices = 4

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available operations",
	Long:  "List the operations accepted by \"meshcfg run\" with their arguments and parameters.",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("meshcfg list: %w", err)
	}
	defer a.close()

	printEntries(cmd.OutOrStdout(), a.registry.Entries())
	return nil
}

func printEntries(w io.Writer, entries []procedures.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tDESCRIPTION")
	for _, e := range entries {
		id := e.Name
		switch {
		case len(e.Choices) > 0 && len(e.Choices) <= maxListedChoices:
			id += ":<" + strings.Join(e.Choices, "|") + ">"
		case len(e.Choices) > 0:
			id += ":<" + e.Arg + ">"
		case e.Arg != "":
			id += "[:" + e.Arg + "]"
		}
		for _, p := range e.Params {
			id += " --param " + p + "=..."
		}
		fmt.Fprintf(tw, "%s\t%s\n", id, e.Description)
	}
	tw.Flush()
}
