// A simpler Model once tracked a single file transfer
// (SentBytes/TotalBytes/Speed/ETA against one Filename); this one
// tracks a whole directory sync by fanning ProgressMsg out over a map
// keyed by file ID, since FILE_PARALLELISM lets several files transfer
// at once. The start/connecting/transferring/done state machine and
// the spinner are kept as-is.
package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	coreprogress "github.com/jend-sync/jend/internal/progress"
)

type State int

const (
	StateStart State = iota
	StateConnecting
	StateTransferring
	StateDone
	StateError
)

type Role int

const (
	RoleSender Role = iota
	RoleReceiver
)

// StatusMsg carries a one-line status update (e.g. "scanning directory").
type StatusMsg string

// ErrorMsg aborts the UI loop with a fatal error.
type ErrorMsg error

// DoneMsg signals that the whole session finished.
type DoneMsg struct {
	FileCount int
	Bytes     uint64
}

// ProgressMsg wraps a core progress event for the bubbletea Update loop.
type ProgressMsg coreprogress.Event

type fileState struct {
	name     string
	size     uint64
	received uint64
	done     bool
}

type Model struct {
	Role          Role
	State         State
	Root          string
	Spinner       spinner.Model
	TotalProgress progress.Model
	Files         map[uint32]*fileState
	order         []uint32
	totalBytes    uint64
	doneBytes     uint64
	fileCount     int
	doneCount     int
	Status        string
	Err           error
	Exit          bool
}

func NewModel(role Role, root string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	pTotal := progress.New(
		progress.WithGradient(string(ColorPrimary), string(ColorSecondary)),
		progress.WithWidth(40),
	)

	return Model{
		Role:          role,
		State:         StateStart,
		Root:          root,
		Spinner:       s,
		TotalProgress: pTotal,
		Files:         make(map[uint32]*fileState),
		Status:        "starting",
	}
}

func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.Exit = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		newTotal, cmd := m.TotalProgress.Update(msg)
		m.TotalProgress = newTotal.(progress.Model)
		return m, cmd

	case StatusMsg:
		m.Status = string(msg)
		if m.State == StateStart {
			m.State = StateConnecting
		}

	case ProgressMsg:
		m.State = StateTransferring
		switch msg.Kind {
		case coreprogress.StartFile:
			m.Files[msg.ID] = &fileState{name: msg.Name, size: msg.Size}
			m.order = append(m.order, msg.ID)
			m.fileCount++
			m.totalBytes += msg.Size

		case coreprogress.AddData:
			if f, ok := m.Files[msg.ID]; ok {
				f.received += msg.Delta
				m.doneBytes += msg.Delta
			}

		case coreprogress.FinishFile:
			if f, ok := m.Files[msg.ID]; ok {
				f.done = true
				m.doneCount++
			}
		}

		var ratio float64
		if m.totalBytes > 0 {
			ratio = float64(m.doneBytes) / float64(m.totalBytes)
		}
		return m, m.TotalProgress.SetPercent(ratio)

	case DoneMsg:
		m.State = StateDone
		return m, tea.Quit

	case ErrorMsg:
		m.State = StateError
		m.Err = msg
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.Err != nil {
		return ContainerStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				ErrorStyle.Render("Error Occurred"),
				fmt.Sprintf("%v", m.Err),
			),
		)
	}

	var content string

	switch m.State {
	case StateStart, StateConnecting:
		role := "SENDING"
		if m.Role == RoleReceiver {
			role = "RECEIVING"
		}
		header := TitleStyle.Render(fmt.Sprintf("jend -- %s %s", role, m.Root))
		status := StatusStyle.Render(m.Status)
		content = lipgloss.JoinVertical(lipgloss.Center, header, m.Spinner.View(), status)

	case StateTransferring:
		header := TitleStyle.Render("Transfer In Progress")

		summary := lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left,
				StatLabelStyle.Render("FILES"),
				StatValueStyle.Render(fmt.Sprintf("%d / %d", m.doneCount, m.fileCount)),
			),
			lipgloss.NewStyle().Width(4).Render(""),
			lipgloss.JoinVertical(lipgloss.Left,
				StatLabelStyle.Render("TOTAL"),
				m.TotalProgress.View(),
			),
		)

		rows := make([]string, 0, len(m.order))
		ids := m.activeIDs()
		for _, id := range ids {
			f := m.Files[id]
			var ratio float64
			if f.size > 0 {
				ratio = float64(f.received) / float64(f.size)
			}
			rows = append(rows, ViewFileRow(f.name, ratio, f.done))
		}

		content = lipgloss.JoinVertical(lipgloss.Center, header, summary, " ",
			lipgloss.JoinVertical(lipgloss.Left, rows...))

	case StateDone:
		content = TitleStyle.Render(fmt.Sprintf("Sync complete: %d files", m.fileCount))
	}

	return ContainerStyle.Render(content)
}

// activeIDs returns the most recently started in-flight files, newest
// last, capped so the view doesn't grow unbounded across a large sync.
func (m Model) activeIDs() []uint32 {
	const maxShown = 8
	inFlight := make([]uint32, 0, len(m.order))
	for _, id := range m.order {
		if f, ok := m.Files[id]; ok && !f.done {
			inFlight = append(inFlight, id)
		}
	}
	if len(inFlight) > maxShown {
		inFlight = inFlight[len(inFlight)-maxShown:]
	}
	return inFlight
}
