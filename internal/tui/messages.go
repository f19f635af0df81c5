package tui

import (
	"shotdeck/internal/domain"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// ProjectsLoadedMsg signals that the project list has been loaded
type ProjectsLoadedMsg struct {
	Projects []domain.Project
}

// DeckLoadedMsg signals that a project's deck finished loading into the
// session. Project identifies which load completed so stale completions
// from an abandoned project switch can be ignored.
type DeckLoadedMsg struct {
	Project string
}

// DeckLoadFailedMsg signals that a project load failed
type DeckLoadFailedMsg struct {
	Project string
	Err     error
}

// OrderSavedMsg signals that a save round-trip completed
type OrderSavedMsg struct {
	Project string
	Err     error
}

// OrderAppliedMsg signals that apply-and-rename completed
type OrderAppliedMsg struct {
	Project string
	Err     error
}

// PendingLoadedMsg carries the current pending inbox snapshot
type PendingLoadedMsg struct {
	Items []domain.PendingItem
}

// ImportDoneMsg signals that a pending import finished
type ImportDoneMsg struct {
	Project string
	Count   int
	Err     error
}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}

// TickMsg is a general tick message for the spinner
type TickMsg struct{}
