package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shotdeck/internal/domain"
)

// fakeRepo is a controllable in-memory ProjectRepository.
type fakeRepo struct {
	mu      sync.Mutex
	screens map[string][]domain.ScreenshotRef
	orders  [][]string // every PutOrder payload, in arrival order

	fetchErr     error
	putErr       error
	applyErr     error
	renamed      []domain.ScreenshotRef
	importName   func(source string) string
	importCalls  int
	importFailAt int // 1-based call number that fails; 0 = never

	// When set, GetScreens/PutOrder block until released.
	fetchGate chan struct{}
	putGate   chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{screens: make(map[string][]domain.ScreenshotRef)}
}

func refs(names ...string) []domain.ScreenshotRef {
	out := make([]domain.ScreenshotRef, len(names))
	for i, n := range names {
		out[i] = domain.ScreenshotRef{Filename: n, Path: "p/" + n}
	}
	return out
}

func (f *fakeRepo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return nil, nil
}

func (f *fakeRepo) GetScreens(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	screens, ok := f.screens[project]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return screens, nil
}

func (f *fakeRepo) PutOrder(ctx context.Context, project string, filenames []string) error {
	if f.putGate != nil {
		<-f.putGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	stored := make([]string, len(filenames))
	copy(stored, filenames)
	f.orders = append(f.orders, stored)
	return nil
}

func (f *fakeRepo) ApplyOrder(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return f.renamed, nil
}

func (f *fakeRepo) ListPending(ctx context.Context) ([]domain.PendingItem, error) {
	return nil, nil
}

func (f *fakeRepo) ImportPending(ctx context.Context, project, source string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importCalls++
	if f.importFailAt > 0 && f.importCalls >= f.importFailAt {
		return "", errors.New("inbox file vanished")
	}
	if f.importName != nil {
		return f.importName(source), nil
	}
	return source, nil
}

func (f *fakeRepo) storedOrders() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.orders))
	copy(out, f.orders)
	return out
}

func loadedSession(t *testing.T, repo *fakeRepo, project string, names ...string) *Session {
	t.Helper()
	repo.mu.Lock()
	repo.screens[project] = refs(names...)
	repo.mu.Unlock()
	s := NewSession(repo, nil)
	require.NoError(t, s.Load(context.Background(), project))
	return s
}

func filenames(s *Session) []string {
	return domain.Filenames(s.Items())
}

// === Load ===

func TestLoadPopulatesDeck(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a.png", "b.png", "c.png")

	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, filenames(s))
	assert.Equal(t, StateReady, s.State())
	assert.False(t, s.Dirty())
	assert.Empty(t, s.Selected())
	assert.Empty(t, s.Batches())
}

func TestLoadFailurePreservesPreviousDeck(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a.png", "b.png")

	repo.mu.Lock()
	repo.fetchErr = domain.ErrServerOffline
	repo.mu.Unlock()

	err := s.Load(context.Background(), "headspace")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, "calm", s.Project())
	assert.Equal(t, []string{"a.png", "b.png"}, filenames(s))
}

func TestLoadSupersedesInFlightLoad(t *testing.T) {
	repo := newFakeRepo()
	repo.screens["one"] = refs("old.png")
	repo.screens["two"] = refs("new.png")

	s := NewSession(repo, nil)
	gate := make(chan struct{})
	repo.fetchGate = gate

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), "one") }()

	ungated := make(chan error, 1)
	go func() {
		// Both loads pass the same gate; release twice.
		ungated <- s.Load(context.Background(), "two")
	}()

	gate <- struct{}{}
	gate <- struct{}{}
	require.NoError(t, <-done)
	require.NoError(t, <-ungated)

	// Whichever load finished last to *start* wins; the superseded one
	// must have been discarded, so the deck matches the current project.
	switch s.Project() {
	case "one":
		assert.Equal(t, []string{"old.png"}, filenames(s))
	case "two":
		assert.Equal(t, []string{"new.png"}, filenames(s))
	default:
		t.Fatalf("unexpected project %q", s.Project())
	}
}

// === Reorder ===

func TestReorderMovesSingleElement(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c", "d")

	require.NoError(t, s.Reorder(0, 3))
	assert.Equal(t, []string{"b", "c", "d", "a"}, filenames(s))
	assert.True(t, s.Dirty())

	require.NoError(t, s.Reorder(3, 0))
	assert.Equal(t, []string{"a", "b", "c", "d"}, filenames(s))
}

func TestReorderPreservesSetAndLength(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c", "d", "e")

	moves := [][2]int{{0, 4}, {2, 1}, {4, 0}, {3, 3}, {1, 2}}
	for _, m := range moves {
		require.NoError(t, s.Reorder(m[0], m[1]))
		assert.Len(t, s.Items(), 5)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, filenames(s))
	}
}

func TestReorderSamePositionIsNoop(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b")

	require.NoError(t, s.Reorder(1, 1))
	assert.False(t, s.Dirty())
}

func TestReorderRejectsBadIndices(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b")

	for _, m := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}} {
		err := s.Reorder(m[0], m[1])
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange, "move %v", m)
	}
	assert.Equal(t, []string{"a", "b"}, filenames(s))
}

// === InsertAt ===

func TestInsertAtSplices(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b")

	require.NoError(t, s.InsertAt(1, refs("x")))
	assert.Equal(t, []string{"a", "x", "b"}, filenames(s))
	assert.True(t, s.Dirty())

	require.NoError(t, s.InsertAt(3, refs("y", "z")))
	assert.Equal(t, []string{"a", "x", "b", "y", "z"}, filenames(s))
}

func TestInsertAtRejectsDuplicates(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b")

	err := s.InsertAt(0, refs("x", "a"))
	require.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.Equal(t, []string{"a", "b"}, filenames(s), "failed insert must not mutate")

	err = s.InsertAt(0, refs("x", "x"))
	require.ErrorIs(t, err, domain.ErrDuplicateKey, "duplicates within the incoming batch")
	assert.Equal(t, []string{"a", "b"}, filenames(s))
}

func TestInsertAtRejectsBadIndex(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a")

	assert.ErrorIs(t, s.InsertAt(-1, refs("x")), domain.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.InsertAt(2, refs("x")), domain.ErrIndexOutOfRange)
}

// === Selection ===

func TestToggleSelect(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b")

	s.ToggleSelect("a")
	assert.True(t, s.IsSelected("a"))
	s.ToggleSelect("a")
	assert.False(t, s.IsSelected("a"))

	s.ToggleSelect("missing.png")
	assert.Empty(t, s.Selected(), "toggling an absent filename is a no-op")
}

func TestSelectRangeIsOrderIndependent(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c", "d", "e", "f")

	require.NoError(t, s.SelectRange(2, 5))
	forward := s.Selected()

	require.NoError(t, s.SelectRange(5, 2))
	backward := s.Selected()

	assert.Equal(t, forward, backward)
	assert.Equal(t, []string{"c", "d", "e", "f"}, forward)
}

func TestSelectRangeReplacesSelection(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c", "d")

	s.ToggleSelect("a")
	require.NoError(t, s.SelectRange(2, 3))
	assert.Equal(t, []string{"c", "d"}, s.Selected())
}

func TestSelectAllAndClear(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c")

	s.SelectAll()
	assert.Equal(t, []string{"a", "b", "c"}, s.Selected())

	s.ClearSelection()
	assert.Empty(t, s.Selected())
}

// === Delete / restore ===

func TestDeleteSelected(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c")

	s.ToggleSelect("b")
	batch, err := s.DeleteSelected()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, filenames(s))
	assert.Equal(t, []string{"b"}, domain.Filenames(batch.Items))
	assert.Empty(t, s.Selected(), "selection clears after delete")
	assert.True(t, s.Dirty())
	assert.Len(t, s.Batches(), 1)
}

func TestDeleteSelectedRequiresSelection(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a")

	_, err := s.DeleteSelected()
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestDeletePreservesSurvivorOrderAndBatchOrder(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c", "d", "e")

	s.ToggleSelect("d")
	s.ToggleSelect("b")
	batch, err := s.DeleteSelected()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "e"}, filenames(s))
	assert.Equal(t, []string{"b", "d"}, domain.Filenames(batch.Items),
		"batch keeps original relative order regardless of toggle order")
}

func TestRestoreBatchAppends(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c")

	s.ToggleSelect("a")
	batch, err := s.DeleteSelected()
	require.NoError(t, err)

	require.NoError(t, s.RestoreBatch(batch.Timestamp))
	assert.Equal(t, []string{"b", "c", "a"}, filenames(s),
		"restore appends; original position is not tracked")
	assert.Empty(t, s.Batches())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, filenames(s))
}

func TestRestoreBatchUnknownTimestamp(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a")

	assert.ErrorIs(t, s.RestoreBatch("123"), domain.ErrBatchNotFound)
}

func TestBatchTimestampsAreUniqueAndIncreasing(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b", "c", "d", "e")

	var stamps []string
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SelectRange(0, 0))
		batch, err := s.DeleteSelected()
		require.NoError(t, err)
		stamps = append(stamps, batch.Timestamp)
	}
	for i := 1; i < len(stamps); i++ {
		assert.Greater(t, stamps[i], stamps[i-1])
	}
}

func TestRestoreLast(t *testing.T) {
	s := loadedSession(t, newFakeRepo(), "calm", "a", "b")

	s.ToggleSelect("a")
	_, err := s.DeleteSelected()
	require.NoError(t, err)
	s.ToggleSelect("b")
	_, err = s.DeleteSelected()
	require.NoError(t, err)

	require.NoError(t, s.RestoreLast())
	assert.Equal(t, []string{"b"}, filenames(s))
	assert.Len(t, s.Batches(), 1)

	require.NoError(t, s.RestoreLast())
	assert.ErrorIs(t, s.RestoreLast(), domain.ErrBatchNotFound)
}

// === Save ===

func TestSaveClearsDirty(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a", "b")

	require.NoError(t, s.Reorder(0, 1))
	require.True(t, s.Dirty())

	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.Dirty())
	assert.Equal(t, [][]string{{"b", "a"}}, repo.storedOrders())
}

func TestSaveFailureKeepsState(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a", "b")
	require.NoError(t, s.Reorder(0, 1))

	repo.mu.Lock()
	repo.putErr = domain.ErrServerOffline
	repo.mu.Unlock()

	err := s.Save(context.Background())
	require.ErrorIs(t, err, domain.ErrPersistFailed)
	assert.True(t, s.Dirty())
	assert.Equal(t, []string{"b", "a"}, filenames(s))
}

func TestConcurrentSavesNeverRegress(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a", "b")
	require.NoError(t, s.Reorder(0, 1))
	require.NoError(t, s.Reorder(0, 1)) // back to a,b but dirty

	gate := make(chan struct{})
	repo.putGate = gate

	first := make(chan error, 1)
	go func() { first <- s.Save(context.Background()) }()

	// While the first save is in flight, grow the deck and issue a
	// second save. It must block behind the first and then write the
	// newer order, never the stale snapshot.
	require.NoError(t, s.InsertAt(2, refs("c")))
	second := make(chan error, 1)
	go func() { second <- s.Save(context.Background()) }()

	gate <- struct{}{}
	gate <- struct{}{}
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	orders := repo.storedOrders()
	require.Len(t, orders, 2)
	assert.Equal(t, []string{"a", "b", "c"}, orders[len(orders)-1],
		"backend's final stored order is the newest")
	assert.False(t, s.Dirty())
}

func TestSaveDuringMutationKeepsDirty(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a", "b")
	require.NoError(t, s.Reorder(0, 1))

	gate := make(chan struct{})
	repo.putGate = gate

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	waitForState(t, s, StateSaving)

	// Deck changes while the save is on the wire; the saved snapshot is
	// now stale, so dirty must survive.
	require.NoError(t, s.InsertAt(0, refs("z")))
	gate <- struct{}{}
	require.NoError(t, <-done)

	assert.True(t, s.Dirty())
}

func TestSaveUnloadedFails(t *testing.T) {
	s := NewSession(newFakeRepo(), nil)
	assert.ErrorIs(t, s.Save(context.Background()), domain.ErrNotLoaded)
}

// === ApplyAndRename ===

func TestApplyAndRename(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "shot_b.png", "shot_a.png")
	require.NoError(t, s.Reorder(1, 0))

	repo.mu.Lock()
	repo.renamed = refs("001_shot_a.png", "002_shot_b.png")
	repo.mu.Unlock()

	require.NoError(t, s.ApplyAndRename(context.Background()))

	assert.Equal(t, []string{"001_shot_a.png", "002_shot_b.png"}, filenames(s))
	assert.False(t, s.Dirty())
	assert.Empty(t, s.Batches(), "undo log drops; old filenames are gone")
	assert.Empty(t, s.Selected())

	orders := repo.storedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, []string{"shot_a.png", "shot_b.png"}, orders[0])
}

func TestApplyAndRenameFailureSurfaces(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a", "b")

	repo.mu.Lock()
	repo.applyErr = errors.New("disk full")
	repo.mu.Unlock()

	err := s.ApplyAndRename(context.Background())
	require.ErrorIs(t, err, domain.ErrPersistFailed)
	assert.Equal(t, []string{"a", "b"}, filenames(s))
}

// === Import ===

func TestImportAtInsertsImportedRefs(t *testing.T) {
	repo := newFakeRepo()
	repo.importName = func(source string) string { return "imported_" + source }
	s := loadedSession(t, repo, "calm", "a", "b")

	require.NoError(t, s.ImportAt(context.Background(), 1, []string{"x.png", "y.png"}))
	assert.Equal(t, []string{"a", "imported_x.png", "imported_y.png", "b"}, filenames(s))
	assert.True(t, s.Dirty())
}

func TestImportAtPartialFailure(t *testing.T) {
	repo := newFakeRepo()
	s := loadedSession(t, repo, "calm", "a")

	repo.mu.Lock()
	repo.importFailAt = 2
	repo.mu.Unlock()

	err := s.ImportAt(context.Background(), 1, []string{"x.png", "y.png", "z.png"})
	require.ErrorIs(t, err, domain.ErrImportFailed)
	assert.Equal(t, []string{"a", "x.png"}, filenames(s),
		"files imported before the failure still land in the deck")
}

// === State machine ===

func TestStateTransitions(t *testing.T) {
	repo := newFakeRepo()
	repo.screens["calm"] = refs("a", "b")

	s := NewSession(repo, nil)
	assert.Equal(t, StateUnloaded, s.State())

	require.NoError(t, s.Load(context.Background(), "calm"))
	assert.Equal(t, StateReady, s.State())

	require.NoError(t, s.Reorder(0, 1))
	assert.Equal(t, StateDirty, s.State())

	gate := make(chan struct{})
	repo.putGate = gate
	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()

	// Observed while the save is in flight.
	waitForState(t, s, StateSaving)
	gate <- struct{}{}
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, s.State())

	s.Reset()
	assert.Equal(t, StateUnloaded, s.State())
}

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, s.State())
}

func TestMutationsRequireLoad(t *testing.T) {
	s := NewSession(newFakeRepo(), nil)

	assert.ErrorIs(t, s.Reorder(0, 0), domain.ErrNotLoaded)
	assert.ErrorIs(t, s.InsertAt(0, refs("x")), domain.ErrNotLoaded)
	assert.ErrorIs(t, s.SelectRange(0, 0), domain.ErrNotLoaded)
	_, err := s.DeleteSelected()
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
}

// Exercised here so the example in the docs stays honest.
func ExampleSession_Reorder() {
	repo := newFakeRepo()
	repo.screens["demo"] = refs("a", "b", "c", "d")
	s := NewSession(repo, nil)
	_ = s.Load(context.Background(), "demo")
	_ = s.Reorder(0, 3)
	fmt.Println(domain.Filenames(s.Items()))
	// Output: [b c d a]
}
