package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shotdeck/internal/domain"
)

func testScreens() []domain.ScreenshotRef {
	return []domain.ScreenshotRef{
		{Filename: "001_welcome.png", Path: "calm/001_welcome.png"},
		{Filename: "002_paywall.png", Path: "calm/002_paywall.png"},
	}
}

func TestDeckStoreRoundTrip(t *testing.T) {
	s, err := NewDeckStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.GetScreens("calm")
	assert.False(t, ok, "miss before save")

	require.NoError(t, s.SaveScreens("calm", testScreens()))
	got, ok := s.GetScreens("calm")
	require.True(t, ok)
	assert.Equal(t, testScreens(), got)

	projects := []domain.Project{{Name: "calm", ScreenCount: 2}}
	require.NoError(t, s.SaveProjects(projects))
	gotProjects, ok := s.GetProjects()
	require.True(t, ok)
	assert.Equal(t, projects, gotProjects)
}

func TestDeckStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewDeckStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveScreens("calm", testScreens()))
	require.NoError(t, s.Close())

	reopened, err := NewDeckStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.GetScreens("calm")
	require.True(t, ok)
	assert.Equal(t, testScreens(), got)
}

func TestDeckStoreMemoryOnlyMode(t *testing.T) {
	s, err := NewDeckStore("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveScreens("calm", testScreens()))
	got, ok := s.GetScreens("calm")
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestDeckStoreInvalidation(t *testing.T) {
	s, err := NewDeckStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveScreens("calm", testScreens()))
	require.NoError(t, s.SaveScreens("headspace", testScreens()))
	require.NoError(t, s.SaveProjects([]domain.Project{{Name: "calm"}}))

	s.InvalidateProject("calm")
	_, ok := s.GetScreens("calm")
	assert.False(t, ok)
	_, ok = s.GetScreens("headspace")
	assert.True(t, ok, "other projects untouched")

	s.InvalidateAll()
	_, ok = s.GetScreens("headspace")
	assert.False(t, ok)
	_, ok = s.GetProjects()
	assert.False(t, ok)
}
