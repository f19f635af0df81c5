package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"shotdeck/internal/domain"
	"shotdeck/internal/tui/styles"
)

// Layout constants for the deck panel
const (
	BorderWidth  = 2
	BorderHeight = 2

	// Scroll indicators and the title line each take 1 line
	ScrollIndicatorLines = 2
	TitleLines           = 1

	ItemWidthMargin = 2
)

// Deck is the ordered screenshot list panel
type Deck struct {
	items    []domain.ScreenshotRef
	selected map[string]bool

	cursor     int
	offset     int
	maxVisible int

	width   int
	height  int
	focused bool

	title string

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filterQuery  string
	filteredIdx  []int // indices into items
}

// NewDeck creates a new deck component
func NewDeck() Deck {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return Deck{filterInput: ti}
}

// SetItems replaces the deck contents and selection snapshot. The cursor is
// clamped rather than reset so edits keep the user in place.
func (d *Deck) SetItems(items []domain.ScreenshotRef, selected map[string]bool) {
	d.items = items
	d.selected = selected
	if d.filterActive {
		d.applyFilter()
	}
	max := d.itemCount() - 1
	if d.cursor > max {
		d.cursor = max
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.ensureVisible()
}

// SetTitle sets the project name shown in the panel header
func (d *Deck) SetTitle(title string) {
	d.title = title
}

// SetSize updates the component dimensions
func (d *Deck) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.recalcMaxVisible()
}

func (d *Deck) recalcMaxVisible() {
	interiorHeight := d.height - BorderHeight
	d.maxVisible = interiorHeight - ScrollIndicatorLines - TitleLines
	if d.filterActive {
		d.maxVisible--
	}
	if d.maxVisible < 1 {
		d.maxVisible = 1
	}
}

// SetFocused sets the focus state
func (d *Deck) SetFocused(focused bool) {
	d.focused = focused
}

// IsFocused returns the focus state
func (d Deck) IsFocused() bool {
	return d.focused
}

// Cursor returns the cursor position mapped to the deck index
func (d Deck) Cursor() int {
	return d.mapIndex(d.cursor)
}

// SetCursor moves the cursor to the given visible position
func (d *Deck) SetCursor(pos int) {
	max := d.itemCount() - 1
	if max < 0 {
		d.cursor = 0
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > max {
		pos = max
	}
	d.cursor = pos
	d.ensureVisible()
}

// CursorRef returns the screenshot under the cursor
func (d Deck) CursorRef() *domain.ScreenshotRef {
	count := d.itemCount()
	if count == 0 || d.cursor >= count {
		return nil
	}
	ref := d.items[d.mapIndex(d.cursor)]
	return &ref
}

// IsEmpty returns true if there are no visible items
func (d Deck) IsEmpty() bool {
	return d.itemCount() == 0
}

// IsFiltering returns true while a filter narrows the deck
func (d Deck) IsFiltering() bool {
	return d.filterActive
}

// IsFilterTyping returns true while the filter input has focus
func (d Deck) IsFilterTyping() bool {
	return d.filterActive && d.filterInput.Focused()
}

// ToggleFilter activates the filter input
func (d *Deck) ToggleFilter() {
	d.filterActive = true
	d.filterInput.Focus()
	d.recalcMaxVisible()
}

// ClearFilter deactivates the filter and shows all items
func (d *Deck) ClearFilter() {
	d.filterActive = false
	d.filterQuery = ""
	d.filteredIdx = nil
	d.filterInput.SetValue("")
	d.filterInput.Blur()
	d.recalcMaxVisible()
}

func (d *Deck) applyFilter() {
	query := d.filterInput.Value()
	d.filterQuery = query

	if query == "" {
		d.filteredIdx = nil
		return
	}

	names := make([]string, len(d.items))
	for i, ref := range d.items {
		names[i] = strings.ToLower(ref.Filename)
	}

	matches := fuzzy.Find(strings.ToLower(query), names)
	d.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		d.filteredIdx[i] = match.Index
	}

	d.cursor = 0
	d.offset = 0
}

func (d Deck) itemCount() int {
	if d.filteredIdx != nil {
		return len(d.filteredIdx)
	}
	return len(d.items)
}

func (d Deck) mapIndex(i int) int {
	if d.filteredIdx != nil && i < len(d.filteredIdx) {
		return d.filteredIdx[i]
	}
	return i
}

func (d *Deck) ensureVisible() {
	if d.cursor < d.offset {
		d.offset = d.cursor
	}
	if d.cursor >= d.offset+d.maxVisible {
		d.offset = d.cursor - d.maxVisible + 1
	}
}

// Update handles messages
func (d Deck) Update(msg tea.Msg) (Deck, tea.Cmd) {
	if !d.focused {
		return d, nil
	}

	if d.filterActive && d.filterInput.Focused() {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "esc":
				d.ClearFilter()
				return d, nil
			case "enter":
				d.filterInput.Blur()
				return d, nil
			case "backspace":
				if d.filterInput.Value() == "" {
					d.ClearFilter()
					return d, nil
				}
			}
		}

		var cmd tea.Cmd
		d.filterInput, cmd = d.filterInput.Update(msg)
		d.applyFilter()
		return d, cmd
	}

	if d.filterActive {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "esc":
				d.ClearFilter()
				return d, nil
			case "/":
				d.filterInput.Focus()
				return d, nil
			}
		}
	}

	count := d.itemCount()
	if count == 0 {
		return d, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if d.cursor < count-1 {
				d.cursor++
				d.ensureVisible()
			}
		case "k", "up":
			if d.cursor > 0 {
				d.cursor--
				d.ensureVisible()
			}
		case "g":
			d.cursor = 0
			d.offset = 0
		case "G":
			d.cursor = count - 1
			d.ensureVisible()
		case "ctrl+d":
			d.cursor += d.maxVisible / 2
			if d.cursor >= count {
				d.cursor = count - 1
			}
			d.ensureVisible()
		case "ctrl+u":
			d.cursor -= d.maxVisible / 2
			if d.cursor < 0 {
				d.cursor = 0
			}
			d.ensureVisible()
		}
	}

	return d, nil
}

// View renders the component
func (d Deck) View() string {
	style := styles.InactiveBorder
	if d.focused {
		style = styles.ActiveBorder
	}

	content := d.renderList()

	frameW, frameH := style.GetFrameSize()
	return style.
		Width(d.width - frameW).
		Height(d.height - frameH).
		Render(content)
}

func (d Deck) renderList() string {
	itemWidth := d.width - BorderWidth - ItemWidthMargin

	titleLine := " "
	if d.title != "" {
		titleLine = styles.AccentStyle.Render(styles.Truncate(d.title, itemWidth))
	}

	count := d.itemCount()
	if count == 0 {
		emptyMsg := styles.DimStyle.Render("No screens")
		if d.filterActive && d.filterQuery != "" {
			emptyMsg = styles.DimStyle.Render("No matches")
		}
		return titleLine + "\n \n" + emptyMsg + "\n "
	}

	var lines []string

	end := d.offset + d.maxVisible
	if end > count {
		end = count
	}

	for i := d.offset; i < end; i++ {
		idx := d.mapIndex(i)
		lines = append(lines, d.renderItem(idx, i == d.cursor, itemWidth))
	}

	// Always reserve the indicator lines to prevent layout shifts
	header := " "
	if d.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}
	footer := " "
	if end < count {
		footer = styles.DimStyle.Render("↓ more")
	}

	content := titleLine + "\n" + header + "\n" + strings.Join(lines, "\n") + "\n" + footer

	if d.filterActive {
		content += "\n" + d.renderFilterBar()
	}

	return content
}

func (d Deck) renderItem(idx int, cursor bool, width int) string {
	ref := d.items[idx]

	mark := styles.UnselectedChar
	var markFg = styles.DimGray
	if d.selected[ref.Filename] {
		mark = styles.SelectedChar
		markFg = styles.Amber
	}

	pos := fmt.Sprintf("%3d", idx+1)
	name := styles.Truncate(ref.Filename, width-8)
	dim := styles.DimGray

	parts := []styles.RowPart{
		{Text: mark, Foreground: &markFg},
		{Text: " " + pos, Foreground: &dim},
		{Text: " " + name, Foreground: nil},
	}

	return styles.RenderListRow(parts, cursor, width)
}

func (d Deck) renderFilterBar() string {
	input := d.filterInput.View()
	countStr := ""
	if d.filterQuery != "" {
		countStr = styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", d.itemCount(), len(d.items)))
	}
	return input + countStr
}
