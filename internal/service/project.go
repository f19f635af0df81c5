// Package service orchestrates the backend repository, the local cache
// and ordering sessions for the TUI.
package service

import (
	"context"
	"errors"
	"log/slog"

	"shotdeck/internal/domain"
	"shotdeck/internal/ordering"
)

// ProjectService mediates between the backend and cached reads. It
// implements domain.ProjectRepository itself so ordering sessions load
// through the cache: decks are saved on every successful fetch and
// served from BoltDB when the backend is unreachable.
type ProjectService struct {
	repo   domain.ProjectRepository
	cache  domain.Cache
	logger *slog.Logger
}

var _ domain.ProjectRepository = (*ProjectService)(nil)

// NewProjectService creates a project service.
func NewProjectService(repo domain.ProjectRepository, cache domain.Cache, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{repo: repo, cache: cache, logger: logger}
}

// FetchProjects pulls the project list from the backend and caches it.
func (s *ProjectService) FetchProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		s.logger.Error("failed to fetch projects", "error", err)
		return nil, err
	}
	if err := s.cache.SaveProjects(projects); err != nil {
		s.logger.Error("failed to cache projects", "error", err)
	}
	s.logger.Debug("fetched projects", "count", len(projects))
	return projects, nil
}

// FetchScreens pulls a project's deck from the backend and caches it.
func (s *ProjectService) FetchScreens(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	screens, err := s.repo.GetScreens(ctx, project)
	if err != nil {
		s.logger.Error("failed to fetch screens", "error", err, "project", project)
		return nil, err
	}
	if err := s.cache.SaveScreens(project, screens); err != nil {
		s.logger.Error("failed to cache screens", "error", err, "project", project)
	}
	s.logger.Debug("fetched screens", "count", len(screens), "project", project)
	return screens, nil
}

// CachedProjects returns the last cached project list, if any.
func (s *ProjectService) CachedProjects() ([]domain.Project, bool) {
	return s.cache.GetProjects()
}

// CachedScreens returns the last cached deck for a project, if any.
func (s *ProjectService) CachedScreens(project string) ([]domain.ScreenshotRef, bool) {
	return s.cache.GetScreens(project)
}

// FetchPending pulls the backend's import inbox.
func (s *ProjectService) FetchPending(ctx context.Context) ([]domain.PendingItem, error) {
	items, err := s.repo.ListPending(ctx)
	if err != nil {
		s.logger.Error("failed to fetch pending inbox", "error", err)
		return nil, err
	}
	return items, nil
}

// === domain.ProjectRepository ===

// ListProjects fetches and caches the project list.
func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.FetchProjects(ctx)
}

// GetScreens fetches and caches a project's deck. When the backend is
// offline it falls back to the cached deck so saved orders stay
// browsable.
func (s *ProjectService) GetScreens(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	screens, err := s.FetchScreens(ctx, project)
	if err != nil && errors.Is(err, domain.ErrServerOffline) {
		if cached, ok := s.cache.GetScreens(project); ok {
			s.logger.Warn("backend offline, serving cached deck", "project", project)
			return cached, nil
		}
	}
	return screens, err
}

// PutOrder forwards the order to the backend and reorders the cached
// deck to match.
func (s *ProjectService) PutOrder(ctx context.Context, project string, filenames []string) error {
	if err := s.repo.PutOrder(ctx, project, filenames); err != nil {
		return err
	}
	if cached, ok := s.cache.GetScreens(project); ok {
		byName := make(map[string]domain.ScreenshotRef, len(cached))
		for _, ref := range cached {
			byName[ref.Filename] = ref
		}
		reordered := make([]domain.ScreenshotRef, 0, len(filenames))
		for _, name := range filenames {
			if ref, found := byName[name]; found {
				reordered = append(reordered, ref)
			}
		}
		if err := s.cache.SaveScreens(project, reordered); err != nil {
			s.logger.Error("failed to cache order", "error", err, "project", project)
		}
	}
	return nil
}

// ApplyOrder forwards the rename to the backend and caches the renamed
// deck it returns.
func (s *ProjectService) ApplyOrder(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	renamed, err := s.repo.ApplyOrder(ctx, project)
	if err != nil {
		return nil, err
	}
	if cerr := s.cache.SaveScreens(project, renamed); cerr != nil {
		s.logger.Error("failed to cache renamed deck", "error", cerr, "project", project)
	}
	return renamed, nil
}

// ListPending fetches the backend's import inbox.
func (s *ProjectService) ListPending(ctx context.Context) ([]domain.PendingItem, error) {
	return s.FetchPending(ctx)
}

// ImportPending forwards the import and drops the now stale cached deck.
func (s *ProjectService) ImportPending(ctx context.Context, project, sourceFilename string) (string, error) {
	filename, err := s.repo.ImportPending(ctx, project, sourceFilename)
	if err != nil {
		return "", err
	}
	s.cache.InvalidateProject(project)
	return filename, nil
}

// NewSession creates an ordering session that loads through the cache.
func (s *ProjectService) NewSession() *ordering.Session {
	return ordering.NewSession(s, s.logger)
}

// InvalidateProject drops a project's cached deck.
func (s *ProjectService) InvalidateProject(project string) {
	s.cache.InvalidateProject(project)
}

// InvalidateAll drops everything cached.
func (s *ProjectService) InvalidateAll() {
	s.cache.InvalidateAll()
}
