package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/meshcli"
)

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render("Meshtastic node configuration"))
	b.WriteString("\n\n")

	left := stylePanel.Width(m.width/2 - 2).Render(m.renderStatus())
	right := stylePanel.Width(m.width - m.width/2 - 2).Render(m.renderMenu())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")

	if m.prompt != nil {
		b.WriteString(styleKey.Render(m.prompt.Label+": ") + m.input.View() + "\n")
	} else if m.lastText != "" {
		if m.lastOK {
			b.WriteString(styleOK.Render("✓ ") + m.lastText + "\n")
		} else {
			b.WriteString(styleErr.Render("✗ ") + m.lastText + "\n")
		}
	}

	used := strings.Count(b.String(), "\n") + 3
	b.WriteString(m.renderLogs(max(m.height-used, 3)))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderStatus() string {
	title := stylePanelTitle.Render("System status")
	if m.loading {
		title += " " + m.spinner.View()
	}
	if m.snapshot == nil {
		return title + "\n" + styleDim.Render("probing...")
	}
	s := m.snapshot
	row := func(label, value string) string {
		return styleLabel.Render(label) + value
	}

	hat := styleDim.Render("none detected")
	if s.Hardware.HATPresent {
		hat = s.Hardware.HAT.Product
	}
	version := s.DaemonVersion
	if version == "" || version == hardware.NotInstalled {
		version = styleErr.Render(hardware.NotInstalled)
	}
	region := s.Region
	switch region {
	case meshcli.RegionCLIUnavailable, meshcli.RegionError, meshcli.RegionUnknown, "UNSET":
		region = styleWarn.Render(region)
	}

	rows := []string{
		title,
		row("Board", s.Hardware.Model),
		row("HAT", hat),
		row("meshtasticd", version),
		row("Service", yesNo(s.ServiceActive, "running", "stopped")),
		row("Start on boot", yesNo(s.BootEnabled, "enabled", "disabled")),
		row("SPI", yesNo(s.SPIEnabled, "enabled", "disabled")),
		row("I2C", yesNo(s.I2CEnabled, "enabled", "disabled")),
		row("GPS/UART", yesNo(s.UARTEnabled, "enabled", "disabled")),
		row("MeshAdv Mini", yesNo(s.MeshAdvMiniConfigured, "configured", "not configured")),
		row("HAT config", yesNo(s.HATConfigPresent, "present", "missing")),
		row("config.yaml", yesNo(s.ConfigExists, "present", "missing")),
		row("Python CLI", yesNo(s.CLIInstalled, "installed", "not installed")),
		row("Avahi", yesNo(s.AvahiEnabled, "enabled", "disabled")),
		row("API port", yesNo(s.APIRestricted, "restricted", "open")),
		row("LoRa region", region),
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderMenu() string {
	rows := []string{stylePanelTitle.Render("Operations")}
	for i, e := range m.entries {
		line := e.Label
		if m.runningPrefix(e.Name) {
			line += " " + m.spinner.View()
		}
		if i == m.cursor {
			rows = append(rows, styleSelected.Render("> "+line))
		} else {
			rows = append(rows, "  "+line)
		}
	}
	if m.cursor < len(m.entries) {
		rows = append(rows, "", styleHint.Render(m.entries[m.cursor].Description))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderLogs(lines int) string {
	start := max(len(m.logs)-lines, 0)
	body := strings.Join(m.logs[start:], "\n")
	if body == "" {
		body = styleDim.Render("no log output yet")
	}
	return stylePanel.Width(max(m.width-2, 20)).Render(body)
}

func (m Model) renderStatusBar() string {
	hints := fmt.Sprintf("%s select  %s run  %s refresh  %s quit",
		styleKey.Render("↑/↓"), styleKey.Render("enter"), styleKey.Render("r"), styleKey.Render("q"))
	if m.prompt != nil {
		hints = fmt.Sprintf("%s confirm  %s cancel", styleKey.Render("enter"), styleKey.Render("esc"))
	}
	if n := m.queue.Dropped(); n > 0 {
		hints += styleWarn.Render(fmt.Sprintf("  %d log lines dropped (see log file)", n))
	}
	return styleStatusBar.Render(hints)
}
