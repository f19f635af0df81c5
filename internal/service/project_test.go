package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shotdeck/internal/domain"
	"shotdeck/internal/store"
)

type stubRepo struct {
	domain.ProjectRepository

	projects []domain.Project
	screens  map[string][]domain.ScreenshotRef
	renamed  []domain.ScreenshotRef
	err      error
}

func (r *stubRepo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return r.projects, r.err
}

func (r *stubRepo) GetScreens(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.screens[project], nil
}

func (r *stubRepo) PutOrder(ctx context.Context, project string, filenames []string) error {
	return r.err
}

func (r *stubRepo) ApplyOrder(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.renamed, nil
}

func (r *stubRepo) ImportPending(ctx context.Context, project, sourceFilename string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return sourceFilename, nil
}

func newService(t *testing.T, repo *stubRepo) *ProjectService {
	t.Helper()
	cache, err := store.NewDeckStore("")
	require.NoError(t, err)
	return NewProjectService(repo, cache, nil)
}

func TestFetchProjectsCaches(t *testing.T) {
	repo := &stubRepo{projects: []domain.Project{{Name: "calm", ScreenCount: 2}}}
	svc := newService(t, repo)

	_, ok := svc.CachedProjects()
	assert.False(t, ok)

	projects, err := svc.FetchProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	cached, ok := svc.CachedProjects()
	require.True(t, ok)
	assert.Equal(t, projects, cached)
}

func TestFetchScreensCaches(t *testing.T) {
	repo := &stubRepo{screens: map[string][]domain.ScreenshotRef{
		"calm": {{Filename: "a.png", Path: "calm/a.png"}},
	}}
	svc := newService(t, repo)

	screens, err := svc.FetchScreens(context.Background(), "calm")
	require.NoError(t, err)

	cached, ok := svc.CachedScreens("calm")
	require.True(t, ok)
	assert.Equal(t, screens, cached)
}

func TestFetchFailureLeavesCacheAlone(t *testing.T) {
	repo := &stubRepo{projects: []domain.Project{{Name: "calm"}}}
	svc := newService(t, repo)

	_, err := svc.FetchProjects(context.Background())
	require.NoError(t, err)

	repo.err = errors.New("connection refused")
	_, err = svc.FetchProjects(context.Background())
	require.Error(t, err)

	cached, ok := svc.CachedProjects()
	require.True(t, ok, "stale cache survives a failed refresh")
	assert.Equal(t, "calm", cached[0].Name)
}

func TestGetScreensFallsBackToCacheWhenOffline(t *testing.T) {
	repo := &stubRepo{screens: map[string][]domain.ScreenshotRef{
		"calm": {{Filename: "a.png", Path: "calm/a.png"}},
	}}
	svc := newService(t, repo)
	ctx := context.Background()

	screens, err := svc.GetScreens(ctx, "calm")
	require.NoError(t, err)

	repo.err = domain.ErrServerOffline
	cached, err := svc.GetScreens(ctx, "calm")
	require.NoError(t, err, "cached deck serves while the backend is down")
	assert.Equal(t, screens, cached)
}

func TestGetScreensOfflineWithoutCacheFails(t *testing.T) {
	repo := &stubRepo{err: domain.ErrServerOffline}
	svc := newService(t, repo)

	_, err := svc.GetScreens(context.Background(), "calm")
	assert.ErrorIs(t, err, domain.ErrServerOffline)
}

func TestSessionLoadsThroughCache(t *testing.T) {
	repo := &stubRepo{screens: map[string][]domain.ScreenshotRef{
		"calm": {{Filename: "a.png"}, {Filename: "b.png"}},
	}}
	svc := newService(t, repo)

	sess := svc.NewSession()
	require.NoError(t, sess.Load(context.Background(), "calm"))

	cached, ok := svc.CachedScreens("calm")
	require.True(t, ok, "loading a deck populates the cache")
	assert.Len(t, cached, 2)

	repo.err = domain.ErrServerOffline
	require.NoError(t, sess.Load(context.Background(), "calm"))
	assert.Equal(t, 2, sess.Len())
}

func TestPutOrderReordersCachedDeck(t *testing.T) {
	repo := &stubRepo{screens: map[string][]domain.ScreenshotRef{
		"calm": {{Filename: "a.png"}, {Filename: "b.png"}},
	}}
	svc := newService(t, repo)
	ctx := context.Background()

	_, err := svc.GetScreens(ctx, "calm")
	require.NoError(t, err)

	require.NoError(t, svc.PutOrder(ctx, "calm", []string{"b.png", "a.png"}))

	cached, ok := svc.CachedScreens("calm")
	require.True(t, ok)
	assert.Equal(t, "b.png", cached[0].Filename)
	assert.Equal(t, "a.png", cached[1].Filename)
}

func TestApplyOrderCachesRenamedDeck(t *testing.T) {
	repo := &stubRepo{renamed: []domain.ScreenshotRef{
		{Filename: "001_a.png"}, {Filename: "002_b.png"},
	}}
	svc := newService(t, repo)

	renamed, err := svc.ApplyOrder(context.Background(), "calm")
	require.NoError(t, err)

	cached, ok := svc.CachedScreens("calm")
	require.True(t, ok)
	assert.Equal(t, renamed, cached)
}

func TestImportPendingDropsStaleCachedDeck(t *testing.T) {
	repo := &stubRepo{screens: map[string][]domain.ScreenshotRef{
		"calm": {{Filename: "a.png"}},
	}}
	svc := newService(t, repo)
	ctx := context.Background()

	_, err := svc.GetScreens(ctx, "calm")
	require.NoError(t, err)

	_, err = svc.ImportPending(ctx, "calm", "inbox.png")
	require.NoError(t, err)

	_, ok := svc.CachedScreens("calm")
	assert.False(t, ok, "import invalidates the cached deck")
}

func TestInvalidateProject(t *testing.T) {
	repo := &stubRepo{screens: map[string][]domain.ScreenshotRef{
		"calm": {{Filename: "a.png"}},
	}}
	svc := newService(t, repo)

	_, err := svc.FetchScreens(context.Background(), "calm")
	require.NoError(t, err)

	svc.InvalidateProject("calm")
	_, ok := svc.CachedScreens("calm")
	assert.False(t, ok)
}
