package domain

import "context"

// ProjectRepository provides access to screenshot projects on the backend.
type ProjectRepository interface {
	// ListProjects returns all projects known to the backend
	ListProjects(ctx context.Context) ([]Project, error)

	// GetScreens returns a project's screenshots in display order
	GetScreens(ctx context.Context, project string) ([]ScreenshotRef, error)

	// PutOrder replaces a project's stored order. Idempotent full replace;
	// the backend rejects orders naming unknown files with ErrConflict.
	PutOrder(ctx context.Context, project string, filenames []string) error

	// ApplyOrder physically renames the project's files to match the
	// stored order and returns the renamed refs.
	ApplyOrder(ctx context.Context, project string) ([]ScreenshotRef, error)

	// ListPending returns inbox screenshots available for import
	ListPending(ctx context.Context) ([]PendingItem, error)

	// ImportPending moves an inbox file into a project and returns the
	// filename it received there.
	ImportPending(ctx context.Context, project, sourceFilename string) (string, error)
}

// Cache stores fetched backend data for offline reads.
// Implemented by the bbolt store; all methods are safe for concurrent use.
type Cache interface {
	GetProjects() ([]Project, bool)
	SaveProjects(projects []Project) error

	GetScreens(project string) ([]ScreenshotRef, bool)
	SaveScreens(project string, screens []ScreenshotRef) error

	InvalidateProject(project string)
	InvalidateAll()
}
