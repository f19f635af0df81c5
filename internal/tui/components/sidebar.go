package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"shotdeck/internal/domain"
	"shotdeck/internal/search"
	"shotdeck/internal/tui/styles"
)

// Border overhead for the sidebar panel
const BorderSize = 2

// Sidebar is the project selection sidebar
type Sidebar struct {
	projects []domain.Project
	visible  []domain.Project

	cursor  int
	offset  int
	width   int
	height  int
	focused bool

	// Filter state
	filterActive bool
	filterInput  textinput.Model
}

// NewSidebar creates a new sidebar component
func NewSidebar() Sidebar {
	ti := textinput.New()
	ti.Placeholder = "filter projects..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return Sidebar{filterInput: ti}
}

// SetProjects updates the projects in the sidebar
func (s *Sidebar) SetProjects(projects []domain.Project) {
	s.projects = projects
	s.applyFilter()
	if s.cursor >= len(s.visible) {
		s.cursor = 0
		s.offset = 0
	}
}

// SetSize updates the component dimensions
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// SetFocused sets the focus state
func (s *Sidebar) SetFocused(focused bool) {
	s.focused = focused
}

// IsFocused returns the focus state
func (s Sidebar) IsFocused() bool {
	return s.focused
}

// IsFilterTyping returns true while the filter input has focus
func (s Sidebar) IsFilterTyping() bool {
	return s.filterActive && s.filterInput.Focused()
}

// SelectedProject returns the project under the cursor
func (s Sidebar) SelectedProject() *domain.Project {
	if len(s.visible) == 0 || s.cursor >= len(s.visible) {
		return nil
	}
	p := s.visible[s.cursor]
	return &p
}

// SelectByName moves the cursor to the named project if present
func (s *Sidebar) SelectByName(name string) {
	for i, p := range s.visible {
		if p.Name == name {
			s.cursor = i
			s.ensureVisible()
			return
		}
	}
}

func (s *Sidebar) applyFilter() {
	s.visible = search.FilterProjects(s.projects, s.filterInput.Value())
}

func (s *Sidebar) clearFilter() {
	s.filterActive = false
	s.filterInput.SetValue("")
	s.filterInput.Blur()
	s.visible = s.projects
	s.cursor = 0
	s.offset = 0
}

func (s *Sidebar) maxVisible() int {
	// Interior minus border, title line and filter bar
	n := s.height - BorderSize - 1
	if s.filterActive {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Sidebar) ensureVisible() {
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+s.maxVisible() {
		s.offset = s.cursor - s.maxVisible() + 1
	}
}

// Update handles messages
func (s Sidebar) Update(msg tea.Msg) (Sidebar, tea.Cmd) {
	if !s.focused {
		return s, nil
	}

	if s.filterActive && s.filterInput.Focused() {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "esc":
				s.clearFilter()
				return s, nil
			case "enter":
				s.filterInput.Blur()
				return s, nil
			}
		}

		var cmd tea.Cmd
		s.filterInput, cmd = s.filterInput.Update(msg)
		s.applyFilter()
		s.cursor = 0
		s.offset = 0
		return s, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if s.cursor < len(s.visible)-1 {
				s.cursor++
				s.ensureVisible()
			}
		case "k", "up":
			if s.cursor > 0 {
				s.cursor--
				s.ensureVisible()
			}
		case "g":
			s.cursor = 0
			s.offset = 0
		case "G":
			if len(s.visible) > 0 {
				s.cursor = len(s.visible) - 1
				s.ensureVisible()
			}
		case "/":
			s.filterActive = true
			s.filterInput.Focus()
		case "esc":
			if s.filterActive {
				s.clearFilter()
			}
		}
	}

	return s, nil
}

// View renders the component
func (s Sidebar) View() string {
	style := styles.InactiveBorder
	if s.focused {
		style = styles.ActiveBorder
	}

	itemWidth := s.width - BorderSize - 2

	content := styles.AccentStyle.Render("Projects") + "\n"

	if len(s.visible) == 0 {
		if s.filterActive && s.filterInput.Value() != "" {
			content += styles.DimStyle.Render("No matches")
		} else {
			content += styles.DimStyle.Render("No projects")
		}
	} else {
		end := s.offset + s.maxVisible()
		if end > len(s.visible) {
			end = len(s.visible)
		}
		for i := s.offset; i < end; i++ {
			p := s.visible[i]
			label := styles.Truncate(p.Name, itemWidth-8)
			count := fmt.Sprintf(" %d", p.ScreenCount)
			dim := styles.DimGray
			parts := []styles.RowPart{
				{Text: label, Foreground: nil},
				{Text: count, Foreground: &dim},
			}
			content += styles.RenderListRow(parts, i == s.cursor, itemWidth)
			if i < end-1 {
				content += "\n"
			}
		}
	}

	if s.filterActive {
		content += "\n" + s.filterInput.View()
	}

	frameW, frameH := style.GetFrameSize()
	return style.
		Width(s.width - frameW).
		Height(s.height - frameH).
		Render(content)
}
