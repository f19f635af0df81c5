package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shotdeck/internal/domain"
	"shotdeck/internal/ordering"
	"shotdeck/internal/service"
	"shotdeck/internal/tui/components"
	"shotdeck/internal/tui/styles"
)

// Layout proportions
const (
	SidebarPercent = 25
	MinSidebarCols = 20

	// Single footer line
	ChromeHeight = 1
)

const statusDisplayTime = 4 * time.Second

// Model is the main Bubble Tea model for the application
type Model struct {
	Ready bool

	// Services
	Svc     *service.ProjectService
	Session *ordering.Session
	Logger  *slog.Logger

	// UI components
	Sidebar components.Sidebar
	Deck    components.Deck
	Picker  components.Picker

	// Data
	Projects []domain.Project

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusText   string
	StatusIsErr  bool
	Loading      bool
	SpinnerFrame int
	ShowHelp     bool

	// Anchor index for range selection, -1 when unset
	rangeAnchor int
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewModel creates a new application model
func NewModel(svc *service.ProjectService, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		Svc:         svc,
		Session:     svc.NewSession(),
		Logger:      logger,
		Sidebar:     components.NewSidebar(),
		Deck:        components.NewDeck(),
		Picker:      components.NewPicker(),
		rangeAnchor: -1,
	}
	m.Sidebar.SetFocused(true)
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		LoadProjectsCmd(m.Svc),
		TickCmd(100*time.Millisecond),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		if m.Loading {
			return m, TickCmd(100 * time.Millisecond)
		}
		return m, nil

	case ProjectsLoadedMsg:
		m.Projects = msg.Projects
		m.Sidebar.SetProjects(msg.Projects)
		m.Loading = false
		return m, nil

	case DeckLoadedMsg:
		// A project switch may have superseded this load
		if msg.Project != m.Session.Project() {
			return m, nil
		}
		m.Loading = false
		m.rangeAnchor = -1
		m.Deck.SetTitle(msg.Project)
		m.Deck.SetCursor(0)
		m.refreshDeck()
		m.focusDeck()
		return m, nil

	case DeckLoadFailedMsg:
		m.Loading = false
		return m.withStatus(loadErrorText(msg.Err), true)

	case OrderSavedMsg:
		if msg.Project != m.Session.Project() {
			return m, nil
		}
		m.refreshDeck()
		if msg.Err != nil {
			return m.withStatus("save failed: "+shortError(msg.Err), true)
		}
		if m.Session.Dirty() {
			return m.withStatus("saved (deck changed since, still unsaved)", false)
		}
		return m.withStatus("order saved", false)

	case OrderAppliedMsg:
		if msg.Project != m.Session.Project() {
			return m, nil
		}
		m.refreshDeck()
		if msg.Err != nil {
			return m.withStatus("apply failed: "+shortError(msg.Err), true)
		}
		// Renames changed the on-disk listing; refresh the sidebar counts too
		return m.withStatusCmd("order applied, files renamed", false, LoadProjectsCmd(m.Svc))

	case PendingLoadedMsg:
		if m.Picker.IsVisible() {
			m.Picker.SetItems(msg.Items)
		}
		return m, nil

	case ImportDoneMsg:
		if msg.Project != m.Session.Project() {
			return m, nil
		}
		m.refreshDeck()
		if msg.Err != nil {
			return m.withStatus("import failed: "+shortError(msg.Err), true)
		}
		plural := ""
		if msg.Count != 1 {
			plural = "s"
		}
		return m.withStatusCmd(fmt.Sprintf("imported %d screenshot%s", msg.Count, plural), false, LoadProjectsCmd(m.Svc))

	case ErrMsg:
		m.Loading = false
		return m.withStatus(msg.Error(), true)

	case StatusMsg:
		return m.withStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.StatusText = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

// handleKeyMsg routes key presses by focus and modal state
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Modal captures everything while open
	if m.Picker.IsVisible() {
		switch msg.String() {
		case "esc", "q":
			m.Picker.Hide()
			return m, nil
		case "enter":
			names := m.Picker.MarkedFilenames()
			m.Picker.Hide()
			if len(names) == 0 {
				return m, nil
			}
			// Insert after the cursor row
			index := m.Session.Len()
			if !m.Deck.IsEmpty() {
				index = m.Deck.Cursor() + 1
			}
			return m, ImportPendingCmd(m.Session, index, names)
		}
		var cmd tea.Cmd
		m.Picker, cmd = m.Picker.Update(msg)
		return m, cmd
	}

	if m.ShowHelp {
		m.ShowHelp = false
		return m, nil
	}

	// While a filter input is focused, only it sees keys
	if m.Sidebar.IsFilterTyping() {
		var cmd tea.Cmd
		m.Sidebar, cmd = m.Sidebar.Update(msg)
		return m, cmd
	}
	if m.Deck.IsFilterTyping() {
		var cmd tea.Cmd
		m.Deck, cmd = m.Deck.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Help):
		m.ShowHelp = true
		return m, nil
	case key.Matches(msg, Keys.Left):
		m.focusSidebar()
		return m, nil
	case key.Matches(msg, Keys.Right):
		if m.Session.State() != ordering.StateUnloaded {
			m.focusDeck()
		}
		return m, nil
	case key.Matches(msg, Keys.Refresh):
		m.Loading = true
		m.Svc.InvalidateAll()
		cmds := []tea.Cmd{LoadProjectsCmd(m.Svc), TickCmd(100 * time.Millisecond)}
		if project := m.Session.Project(); project != "" {
			cmds = append(cmds, LoadDeckCmd(m.Session, project))
		}
		return m, tea.Batch(cmds...)
	}

	if m.Sidebar.IsFocused() {
		return m.handleSidebarKey(msg)
	}
	return m.handleDeckKey(msg)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, Keys.Enter) {
		project := m.Sidebar.SelectedProject()
		if project == nil {
			return m, nil
		}
		m.Loading = true
		return m, tea.Batch(
			LoadDeckCmd(m.Session, project.Name),
			TickCmd(100*time.Millisecond),
		)
	}

	var cmd tea.Cmd
	m.Sidebar, cmd = m.Sidebar.Update(msg)
	return m, cmd
}

func (m Model) handleDeckKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.ToggleSelect):
		if ref := m.Deck.CursorRef(); ref != nil {
			m.Session.ToggleSelect(ref.Filename)
			m.refreshDeck()
		}
		return m, nil

	case key.Matches(msg, Keys.RangeSelect):
		if m.Deck.IsEmpty() {
			return m, nil
		}
		if m.rangeAnchor < 0 {
			m.rangeAnchor = m.Deck.Cursor()
			return m.withStatus("range anchor set", false)
		}
		if err := m.Session.SelectRange(m.rangeAnchor, m.Deck.Cursor()); err != nil {
			m.rangeAnchor = -1
			return m.withStatus(shortError(err), true)
		}
		m.rangeAnchor = -1
		m.refreshDeck()
		return m, nil

	case key.Matches(msg, Keys.SelectAll):
		m.Session.SelectAll()
		m.refreshDeck()
		return m, nil

	case key.Matches(msg, Keys.Escape):
		if m.Deck.IsFiltering() {
			var cmd tea.Cmd
			m.Deck, cmd = m.Deck.Update(msg)
			return m, cmd
		}
		m.rangeAnchor = -1
		m.Session.ClearSelection()
		m.refreshDeck()
		return m, nil

	case key.Matches(msg, Keys.MoveDown):
		return m.moveCursorRow(1)

	case key.Matches(msg, Keys.MoveUp):
		return m.moveCursorRow(-1)

	case key.Matches(msg, Keys.Delete):
		batch, err := m.Session.DeleteSelected()
		if err != nil {
			if errors.Is(err, domain.ErrEmptySelection) {
				return m.withStatus("nothing selected", true)
			}
			return m.withStatus(shortError(err), true)
		}
		m.rangeAnchor = -1
		m.refreshDeck()
		return m.withStatus(fmt.Sprintf("deleted %d (u to restore)", len(batch.Items)), false)

	case key.Matches(msg, Keys.Restore):
		if err := m.Session.RestoreLast(); err != nil {
			if errors.Is(err, domain.ErrBatchNotFound) {
				return m.withStatus("nothing to restore", true)
			}
			return m.withStatus(shortError(err), true)
		}
		m.refreshDeck()
		return m.withStatus("batch restored", false)

	case key.Matches(msg, Keys.Import):
		if m.Session.State() == ordering.StateUnloaded {
			return m.withStatus("open a project first", true)
		}
		m.Picker.Show()
		return m, LoadPendingCmd(m.Svc)

	case key.Matches(msg, Keys.Save):
		if m.Session.State() == ordering.StateUnloaded {
			return m, nil
		}
		return m.withStatusCmd("saving...", false, SaveOrderCmd(m.Session))

	case key.Matches(msg, Keys.Apply):
		if m.Session.State() == ordering.StateUnloaded {
			return m, nil
		}
		return m.withStatusCmd("applying order...", false, ApplyOrderCmd(m.Session))

	case key.Matches(msg, Keys.Filter):
		m.Deck.ToggleFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.Deck, cmd = m.Deck.Update(msg)
	return m, cmd
}

// moveCursorRow moves the row under the cursor by delta and follows it
func (m Model) moveCursorRow(delta int) (tea.Model, tea.Cmd) {
	if m.Deck.IsFiltering() {
		return m.withStatus("clear the filter to reorder", true)
	}
	from := m.Deck.Cursor()
	to := from + delta
	if to < 0 || to >= m.Session.Len() {
		return m, nil
	}
	if err := m.Session.Reorder(from, to); err != nil {
		return m.withStatus(shortError(err), true)
	}
	m.rangeAnchor = -1
	m.refreshDeck()
	m.Deck.SetCursor(to)
	return m, nil
}

func (m *Model) refreshDeck() {
	selected := make(map[string]bool)
	for _, name := range m.Session.Selected() {
		selected[name] = true
	}
	m.Deck.SetItems(m.Session.Items(), selected)
}

func (m *Model) focusSidebar() {
	m.Sidebar.SetFocused(true)
	m.Deck.SetFocused(false)
}

func (m *Model) focusDeck() {
	m.Sidebar.SetFocused(false)
	m.Deck.SetFocused(true)
}

func (m Model) withStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.StatusText = text
	m.StatusIsErr = isErr
	return m, ClearStatusCmd(statusDisplayTime)
}

func (m Model) withStatusCmd(text string, isErr bool, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.StatusText = text
	m.StatusIsErr = isErr
	return m, tea.Batch(cmd, ClearStatusCmd(statusDisplayTime))
}

func (m *Model) updateLayout() {
	contentHeight := m.Height - ChromeHeight

	sidebarWidth := m.Width * SidebarPercent / 100
	if sidebarWidth < MinSidebarCols {
		sidebarWidth = MinSidebarCols
	}

	m.Sidebar.SetSize(sidebarWidth, contentHeight)
	m.Deck.SetSize(m.Width-sidebarWidth, contentHeight)
	m.Picker.SetSize(m.Width*2/3, contentHeight*2/3)
}

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "loading..."
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.Sidebar.View(), m.Deck.View())
	view := main + "\n" + m.renderFooter()

	if m.Picker.IsVisible() {
		return m.renderOverlay(m.Picker.View())
	}
	if m.ShowHelp {
		return m.renderOverlay(m.renderHelp())
	}

	return view
}

func (m Model) renderOverlay(modal string) string {
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, modal)
}

func (m Model) renderFooter() string {
	var left string

	if m.Loading {
		frame := spinnerFrames[m.SpinnerFrame%len(spinnerFrames)]
		left = styles.AccentStyle.Render(frame + " loading")
	} else if project := m.Session.Project(); project != "" {
		parts := []string{fmt.Sprintf("%s · %d screens", project, m.Session.Len())}
		if n := m.Session.SelectionCount(); n > 0 {
			parts = append(parts, fmt.Sprintf("%d selected", n))
		}
		if n := len(m.Session.Batches()); n > 0 {
			parts = append(parts, fmt.Sprintf("%d undo", n))
		}
		left = styles.DimStyle.Render(strings.Join(parts, " · "))
		switch m.Session.State() {
		case ordering.StateDirty:
			left += " " + styles.DirtyStyle.Render("[+]")
		case ordering.StateSaving:
			left += " " + styles.AccentStyle.Render("[saving]")
		}
	} else {
		left = styles.DimStyle.Render("enter to open a project · ? for help")
	}

	if m.StatusText != "" {
		style := styles.SuccessStyle
		if m.StatusIsErr {
			style = styles.ErrorStyle
		}
		left += "  " + style.Render(m.StatusText)
	}

	return " " + left
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"j/k", "move cursor"},
		{"enter", "open project"},
		{"/", "filter"},
		{"space", "toggle select"},
		{"v v", "range select"},
		{"a", "select all"},
		{"esc", "clear selection"},
		{"J/K", "move screen up/down"},
		{"d", "delete selected"},
		{"u", "restore last delete"},
		{"p", "import pending"},
		{"s", "save order"},
		{"S", "apply + rename files"},
		{"r", "refresh"},
		{"q", "quit"},
	}

	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render("Keys"))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(styles.HelpKeyStyle.Render(fmt.Sprintf("%8s", row[0])))
		b.WriteString("  ")
		b.WriteString(styles.HelpDescStyle.Render(row[1]))
		b.WriteString("\n")
	}

	return styles.ModalStyle.Render(b.String())
}

// shortError strips wrapped detail down to something that fits a status line
func shortError(err error) string {
	msg := err.Error()
	if len(msg) > 80 {
		msg = msg[:77] + "..."
	}
	return msg
}

func loadErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrServerOffline):
		return "backend offline"
	case errors.Is(err, domain.ErrProjectNotFound):
		return "project not found"
	default:
		return "load failed: " + shortError(err)
	}
}
