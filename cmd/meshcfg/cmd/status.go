package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/plexsphere/meshcfg/internal/aptlock"
	"github.com/plexsphere/meshcfg/internal/status"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Long:  "Probe the board, interfaces, daemon, service and radio and print the results.",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("meshcfg status: %w", err)
	}
	defer a.close()

	report := statusReport{
		Snapshot: a.checker.Snapshot(cmd.Context()),
		Locks:    a.locks.Check(cmd.Context()),
	}
	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("meshcfg status: encode: %w", err)
		}
		return nil
	}
	printSnapshot(cmd.OutOrStdout(), report.Snapshot)
	printLocks(cmd.OutOrStdout(), report.Locks)
	return nil
}

// statusReport is the status output: the snapshot plus package-manager locks.
type statusReport struct {
	status.Snapshot
	Locks []aptlock.LockState
}

func printLocks(w io.Writer, locks []aptlock.LockState) {
	var present []aptlock.LockState
	for _, l := range locks {
		if l.Exists {
			present = append(present, l)
		}
	}
	if len(present) == 0 {
		fmt.Fprintln(w, "Apt locks:      none")
		return
	}
	fmt.Fprintln(w, "Apt locks:")
	for _, l := range present {
		switch {
		case l.Held && l.PID > 0:
			fmt.Fprintf(w, "  %s (held by pid %d)\n", l.Path, l.PID)
		case l.Held:
			fmt.Fprintf(w, "  %s (held)\n", l.Path)
		default:
			fmt.Fprintf(w, "  %s (stale)\n", l.Path)
		}
	}
}

func printSnapshot(w io.Writer, s status.Snapshot) {
	hat := "none detected"
	if s.Hardware.HATPresent {
		hat = s.Hardware.HAT.Product
	}
	fmt.Fprintf(w, "Board:          %s\n", s.Hardware.Model)
	fmt.Fprintf(w, "HAT:            %s\n", hat)
	fmt.Fprintf(w, "meshtasticd:    %s\n", s.DaemonVersion)
	fmt.Fprintf(w, "Service:        %s\n", onOff(s.ServiceActive, "running", "stopped"))
	fmt.Fprintf(w, "Start on boot:  %s\n", onOff(s.BootEnabled, "enabled", "disabled"))
	fmt.Fprintf(w, "SPI:            %s\n", onOff(s.SPIEnabled, "enabled", "disabled"))
	fmt.Fprintf(w, "I2C:            %s\n", onOff(s.I2CEnabled, "enabled", "disabled"))
	fmt.Fprintf(w, "GPS/UART:       %s\n", onOff(s.UARTEnabled, "enabled", "disabled"))
	fmt.Fprintf(w, "MeshAdv Mini:   %s\n", onOff(s.MeshAdvMiniConfigured, "configured", "not configured"))
	fmt.Fprintf(w, "HAT config:     %s\n", onOff(s.HATConfigPresent, "present", "missing"))
	fmt.Fprintf(w, "config.yaml:    %s\n", onOff(s.ConfigExists, "present", "missing"))
	fmt.Fprintf(w, "Python CLI:     %s\n", onOff(s.CLIInstalled, "installed", "not installed"))
	fmt.Fprintf(w, "Avahi:          %s\n", onOff(s.AvahiEnabled, "enabled", "disabled"))
	fmt.Fprintf(w, "API port:       %s\n", onOff(s.APIRestricted, "restricted", "open"))
	fmt.Fprintf(w, "LoRa region:    %s\n", s.Region)
}

func onOff(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
