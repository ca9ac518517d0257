package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/plexsphere/meshcfg/internal/logstream"
)

// Run shows the interactive UI until the user quits. editor may be nil.
func Run(catalog Catalog, orch Submitter, src StatusSource, queue *logstream.Queue, editor Editor) error {
	m := NewModel(catalog, orch, src, queue)
	if editor != nil {
		m = m.WithEditor(editor)
	}
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
