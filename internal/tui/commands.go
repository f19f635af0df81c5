package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"shotdeck/internal/ordering"
	"shotdeck/internal/service"
)

// Command factories for async operations

// LoadProjectsCmd loads the project list from the backend
func LoadProjectsCmd(svc *service.ProjectService) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		projects, err := svc.FetchProjects(ctx)
		if err != nil {
			// Fall back to the cached list so the sidebar stays usable
			// while the backend is offline.
			if cached, ok := svc.CachedProjects(); ok {
				return ProjectsLoadedMsg{Projects: cached}
			}
			return ErrMsg{Err: err, Context: "loading projects"}
		}
		return ProjectsLoadedMsg{Projects: projects}
	}
}

// LoadDeckCmd loads a project's screens into the session
func LoadDeckCmd(session *ordering.Session, project string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := session.Load(ctx, project); err != nil {
			return DeckLoadFailedMsg{Project: project, Err: err}
		}
		return DeckLoadedMsg{Project: project}
	}
}

// SaveOrderCmd persists the session's current order to the backend
func SaveOrderCmd(session *ordering.Session) tea.Cmd {
	project := session.Project()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := session.Save(ctx)
		return OrderSavedMsg{Project: project, Err: err}
	}
}

// ApplyOrderCmd saves then physically renames files to positional names
func ApplyOrderCmd(session *ordering.Session) tea.Cmd {
	project := session.Project()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		err := session.ApplyAndRename(ctx)
		return OrderAppliedMsg{Project: project, Err: err}
	}
}

// LoadPendingCmd loads the pending inbox snapshot
func LoadPendingCmd(svc *service.ProjectService) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		items, err := svc.FetchPending(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading pending screenshots"}
		}
		return PendingLoadedMsg{Items: items}
	}
}

// ImportPendingCmd imports pending files into the deck at the given index
func ImportPendingCmd(session *ordering.Session, index int, filenames []string) tea.Cmd {
	project := session.Project()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		err := session.ImportAt(ctx, index, filenames)
		return ImportDoneMsg{Project: project, Count: len(filenames), Err: err}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
