package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"shotdeck/internal/domain"
	"shotdeck/internal/tui/styles"
)

// Picker is the pending-import modal. It lists inbox screenshots and lets
// the user mark any number of them for import into the current project.
type Picker struct {
	items  []domain.PendingItem
	marked map[string]bool

	cursor  int
	offset  int
	width   int
	height  int
	visible bool
	loading bool
}

// NewPicker creates a new pending-import picker
func NewPicker() Picker {
	return Picker{marked: make(map[string]bool)}
}

// Show opens the picker in its loading state
func (p *Picker) Show() {
	p.visible = true
	p.loading = true
	p.items = nil
	p.marked = make(map[string]bool)
	p.cursor = 0
	p.offset = 0
}

// Hide closes the picker
func (p *Picker) Hide() {
	p.visible = false
}

// IsVisible returns whether the picker is open
func (p Picker) IsVisible() bool {
	return p.visible
}

// SetItems installs the loaded inbox snapshot
func (p *Picker) SetItems(items []domain.PendingItem) {
	p.items = items
	p.loading = false
	p.cursor = 0
	p.offset = 0
}

// SetSize updates the picker dimensions
func (p *Picker) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// MarkedFilenames returns the filenames to import. With nothing explicitly
// marked, the item under the cursor is the implicit choice.
func (p Picker) MarkedFilenames() []string {
	var names []string
	for _, item := range p.items {
		if p.marked[item.Filename] {
			names = append(names, item.Filename)
		}
	}
	if len(names) == 0 && p.cursor < len(p.items) {
		names = []string{p.items[p.cursor].Filename}
	}
	return names
}

func (p Picker) maxVisible() int {
	n := p.height - 6
	if n < 1 {
		n = 1
	}
	return n
}

func (p *Picker) ensureVisible() {
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+p.maxVisible() {
		p.offset = p.cursor - p.maxVisible() + 1
	}
}

// Update handles key messages while the picker is open
func (p Picker) Update(msg tea.Msg) (Picker, tea.Cmd) {
	if !p.visible {
		return p, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if p.cursor < len(p.items)-1 {
				p.cursor++
				p.ensureVisible()
			}
		case "k", "up":
			if p.cursor > 0 {
				p.cursor--
				p.ensureVisible()
			}
		case " ":
			if p.cursor < len(p.items) {
				name := p.items[p.cursor].Filename
				p.marked[name] = !p.marked[name]
			}
		case "a":
			for _, item := range p.items {
				p.marked[item.Filename] = true
			}
		}
	}

	return p, nil
}

// View renders the modal
func (p Picker) View() string {
	if !p.visible {
		return ""
	}

	title := styles.ModalTitleStyle.Render("Import pending screenshots")

	var body string
	switch {
	case p.loading:
		body = styles.DimStyle.Render("Loading inbox...")
	case len(p.items) == 0:
		body = styles.DimStyle.Render("Inbox is empty")
	default:
		var lines []string
		end := p.offset + p.maxVisible()
		if end > len(p.items) {
			end = len(p.items)
		}
		for i := p.offset; i < end; i++ {
			item := p.items[i]
			mark := "[ ]"
			if p.marked[item.Filename] {
				mark = "[x]"
			}
			line := fmt.Sprintf("%s %s (%s)", mark, item.Filename, formatSize(item.Size))
			if i == p.cursor {
				line = styles.AccentStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			lines = append(lines, line)
		}
		body = strings.Join(lines, "\n")
	}

	help := styles.DimStyle.Render("space mark · a all · enter import · esc cancel")

	return styles.ModalStyle.Render(title + "\n" + body + "\n\n" + help)
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
