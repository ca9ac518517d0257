// Package tui is the interactive terminal front end. It never blocks on
// process or file I/O: operations run on the orchestrator and status
// probes run inside bubbletea commands.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/plexsphere/meshcfg/internal/logstream"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/procedures"
	"github.com/plexsphere/meshcfg/internal/status"
)

const (
	// drainInterval is how often the log queue is emptied into the view.
	drainInterval = 100 * time.Millisecond

	// drainBatch caps the lines taken from the queue per tick.
	drainBatch = 200

	// maxLogLines is the scrollback kept in memory.
	maxLogLines = 500

	// snapshotTimeout bounds one status refresh.
	snapshotTimeout = 60 * time.Second
)

// Catalog builds operations from IDs.
type Catalog interface {
	Entries() []procedures.Entry
	Build(id string, params procedures.Params) (orchestrator.Operation, error)
}

// Submitter queues operations.
type Submitter interface {
	Submit(op orchestrator.Operation) (*orchestrator.Handle, error)
}

// StatusSource produces system status snapshots.
type StatusSource interface {
	Snapshot(ctx context.Context) status.Snapshot
}

// Editor opens the daemon configuration file interactively.
type Editor interface {
	Command() *exec.Cmd
}

// Messages.
type (
	tickMsg       time.Time
	snapshotMsg   struct{ snapshot status.Snapshot }
	opDoneMsg     struct{ result orchestrator.Result }
	editorDoneMsg struct{ err error }
)

// Model is the root TUI model.
type Model struct {
	catalog Catalog
	orch    Submitter
	status  StatusSource
	queue   *logstream.Queue
	editor  Editor
	entries []procedures.Entry

	width  int
	height int

	cursor   int
	running  map[string]bool // operation ID → in flight
	snapshot *status.Snapshot
	loading  bool
	spinner  spinner.Model
	logs     []string

	// Input prompt for operations needing an argument or parameter.
	input    textinput.Model
	prompt   *procedures.Entry
	lastText string
	lastOK   bool
}

// NewModel creates the root model.
func NewModel(catalog Catalog, orch Submitter, src StatusSource, queue *logstream.Queue) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50

	return Model{
		catalog: catalog,
		orch:    orch,
		status:  src,
		queue:   queue,
		entries: catalog.Entries(),
		running: make(map[string]bool),
		loading: true,
		spinner: s,
		input:   ti,
	}
}

// WithEditor enables opening the configuration file after the edit-config
// operation succeeds.
func (m Model) WithEditor(e Editor) Model {
	m.editor = e
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.status), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.prompt != nil {
			return m.updatePrompt(msg)
		}
		return m.updateMenu(msg)

	case tickMsg:
		for _, e := range m.queue.Drain(drainBatch) {
			m.appendLog(e.String())
		}
		// A request arriving during a fetch stays pending until it ends.
		if !m.loading && m.queue.TakeRefresh() {
			m.loading = true
			return m, tea.Batch(tickCmd(), m.spinner.Tick, fetchSnapshotCmd(m.status))
		}
		return m, tickCmd()

	case snapshotMsg:
		m.loading = false
		m.snapshot = &msg.snapshot
		return m, nil

	case opDoneMsg:
		res := msg.result
		delete(m.running, res.OperationID)
		m.lastOK = res.Success
		m.lastText = res.Message
		if !res.Success && res.Detail != "" {
			m.lastText += ": " + firstLine(res.Detail)
		}
		if res.BackupPath != "" {
			m.appendLog("backup saved to " + res.BackupPath)
		}
		for _, w := range res.Warnings {
			m.appendLog("warning: " + w)
		}
		if res.Success && res.OperationID == procedures.EditConfigID && m.editor != nil {
			return m, tea.ExecProcess(m.editor.Command(), func(err error) tea.Msg {
				return editorDoneMsg{err: err}
			})
		}
		return m, nil

	case editorDoneMsg:
		if msg.err != nil {
			m.lastOK, m.lastText = false, "editor failed: "+msg.err.Error()
		} else {
			m.lastOK, m.lastText = true, "editor closed"
		}
		if !m.loading {
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.status))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "r":
		if !m.loading {
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.status))
		}
	case "enter":
		if len(m.entries) == 0 {
			return m, nil
		}
		e := m.entries[m.cursor]
		if e.Arg == "" && len(e.Params) == 0 {
			return m.submit(e.Name, nil)
		}
		m.prompt = &e
		m.input.Reset()
		m.input.Placeholder = promptPlaceholder(e)
		if len(e.Choices) > 0 {
			m.input.SetValue(e.Choices[0])
		}
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.prompt = nil
		m.input.Blur()
		return m, nil
	case "enter":
		e := *m.prompt
		value := strings.TrimSpace(m.input.Value())
		m.prompt = nil
		m.input.Blur()
		if len(e.Params) > 0 {
			return m.submit(e.Name, procedures.Params{e.Params[0]: value})
		}
		id := e.Name
		if value != "" {
			id += ":" + value
		}
		return m.submit(id, nil)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit builds and queues an operation and waits for its result in a
// command so the UI stays responsive.
func (m Model) submit(id string, params procedures.Params) (tea.Model, tea.Cmd) {
	op, err := m.catalog.Build(id, params)
	if err != nil {
		m.lastOK, m.lastText = false, err.Error()
		return m, nil
	}
	h, err := m.orch.Submit(op)
	if err != nil {
		var running *orchestrator.AlreadyRunningError
		if errors.As(err, &running) {
			m.lastOK, m.lastText = false, fmt.Sprintf("%s is already %s", op.ID, running.State)
		} else {
			m.lastOK, m.lastText = false, err.Error()
		}
		return m, nil
	}
	m.running[op.ID] = true
	m.lastOK, m.lastText = true, op.ID+" started"
	return m, tea.Batch(m.spinner.Tick, waitCmd(h))
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if over := len(m.logs) - maxLogLines; over > 0 {
		m.logs = m.logs[over:]
	}
}

// runningPrefix reports whether an in-flight operation belongs to entry name.
func (m Model) runningPrefix(name string) bool {
	for id := range m.running {
		if id == name || strings.HasPrefix(id, name+":") {
			return true
		}
	}
	return false
}

func promptPlaceholder(e procedures.Entry) string {
	if len(e.Params) > 0 {
		return e.Params[0]
	}
	if len(e.Choices) > 0 {
		return strings.Join(e.Choices, " | ")
	}
	return e.Arg + " (optional)"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func fetchSnapshotCmd(src StatusSource) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		return snapshotMsg{snapshot: src.Snapshot(ctx)}
	}
}

func waitCmd(h *orchestrator.Handle) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{result: <-h.Done()}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(drainInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
