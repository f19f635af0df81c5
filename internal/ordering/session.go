// Package ordering maintains a consistent, undoable ordering of one
// project's screenshots and mediates every mutation against it.
//
// A Session has a single logical mutator (the UI loop); network calls
// run off it asynchronously. A generation counter guards completions so
// a response for a project the user has already left is discarded
// instead of clobbering the current deck.
package ordering

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"sync"
	"time"

	"shotdeck/internal/domain"
)

// State describes the session lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateDirty
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return "unloaded"
	}
}

// Batch is a group of screenshots removed together in one delete,
// restorable as a unit. Timestamps are unique and monotonically
// increasing within a session.
type Batch struct {
	Timestamp string
	Items     []domain.ScreenshotRef
}

// Session owns the ordered deck for one active project: the ordered
// collection, the selection set, the undo log of deleted batches, and
// the dirty flag. Zero value is not usable; construct with NewSession.
type Session struct {
	repo   domain.ProjectRepository
	logger *slog.Logger

	mu         sync.Mutex
	project    string
	generation uint64
	loaded     bool
	loading    bool
	saving     int
	dirty      bool

	items    []domain.ScreenshotRef
	selected map[string]bool
	batches  []Batch

	lastBatchNano int64

	// saveMu serializes Save/ApplyAndRename so the backend never
	// observes an order older than one it already stored. Each save
	// snapshots the deck only after acquiring its turn.
	saveMu sync.Mutex
}

// NewSession creates an unloaded session backed by repo.
func NewSession(repo domain.ProjectRepository, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		repo:     repo,
		logger:   logger,
		selected: make(map[string]bool),
	}
}

// === Queries ===

// Project returns the name of the loaded project ("" when unloaded).
func (s *Session) Project() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.loading:
		return StateLoading
	case !s.loaded:
		return StateUnloaded
	case s.saving > 0:
		return StateSaving
	case s.dirty:
		return StateDirty
	default:
		return StateReady
	}
}

// Items returns a copy of the deck in display order.
func (s *Session) Items() []domain.ScreenshotRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScreenshotRef, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the deck size.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dirty reports whether the deck differs from the last persisted order.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// IsSelected reports whether filename is in the selection set.
func (s *Session) IsSelected(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[filename]
}

// Selected returns the selected filenames in deck order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ref := range s.items {
		if s.selected[ref.Filename] {
			out = append(out, ref.Filename)
		}
	}
	return out
}

// SelectionCount returns the size of the selection set.
func (s *Session) SelectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// Batches returns the undo log, oldest first.
func (s *Session) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// === Load ===

// Load fetches the ordered deck for project and replaces all session
// state. Selection, undo log and dirty flag reset. On failure the
// previous deck is kept and the error surfaced; nothing is retried
// here. A Load supersedes any outstanding completion for an earlier
// project: stale responses are discarded by generation check.
func (s *Session) Load(ctx context.Context, project string) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	prevProject := s.project
	s.project = project
	s.loading = true
	s.mu.Unlock()

	screens, err := s.repo.GetScreens(ctx, project)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// A newer Load took over while we were fetching.
		s.logger.Debug("discarding stale load", "project", project)
		return nil
	}
	s.loading = false
	if err != nil {
		s.project = prevProject
		s.logger.Error("failed to load project screens", "error", err, "project", project)
		return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	s.items = screens
	s.selected = make(map[string]bool)
	s.batches = nil
	s.dirty = false
	s.loaded = true
	s.logger.Debug("loaded project", "project", project, "screens", len(screens))
	return nil
}

// Reset returns the session to the unloaded state, dropping all deck
// state and invalidating outstanding completions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.project = ""
	s.loaded = false
	s.loading = false
	s.dirty = false
	s.items = nil
	s.selected = make(map[string]bool)
	s.batches = nil
}

// === Mutations ===

// Reorder moves the element at from to position to, shifting the
// elements in between. Single-element move, not a swap: the relative
// order of all untouched elements is preserved.
func (s *Session) Reorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if from < 0 || from >= len(s.items) || to < 0 || to >= len(s.items) {
		return fmt.Errorf("%w: move %d -> %d in deck of %d", domain.ErrIndexOutOfRange, from, to, len(s.items))
	}
	if from == to {
		return nil
	}
	moved := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = append(s.items[:to], append([]domain.ScreenshotRef{moved}, s.items[to:]...)...)
	s.dirty = true
	return nil
}

// InsertAt splices items into the deck starting at index (0..Len
// inclusive). Fails with ErrDuplicateKey if any incoming filename is
// already present, leaving the deck unchanged.
func (s *Session) InsertAt(index int, items []domain.ScreenshotRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if index < 0 || index > len(s.items) {
		return fmt.Errorf("%w: insert at %d in deck of %d", domain.ErrIndexOutOfRange, index, len(s.items))
	}
	if len(items) == 0 {
		return nil
	}
	existing := make(map[string]bool, len(s.items))
	for _, ref := range s.items {
		existing[ref.Filename] = true
	}
	for _, ref := range items {
		if existing[ref.Filename] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, ref.Filename)
		}
		existing[ref.Filename] = true
	}
	rest := make([]domain.ScreenshotRef, len(s.items[index:]))
	copy(rest, s.items[index:])
	s.items = append(append(s.items[:index], items...), rest...)
	s.dirty = true
	return nil
}

// ImportAt imports inbox files into the project and splices them into
// the deck at index. Import happens file by file; the first failure
// stops the import, but files already imported are still inserted.
func (s *Session) ImportAt(ctx context.Context, index int, sourceFilenames []string) error {
	s.mu.Lock()
	project := s.project
	loaded := s.loaded
	gen := s.generation
	s.mu.Unlock()
	if !loaded {
		return domain.ErrNotLoaded
	}

	var imported []domain.ScreenshotRef
	var importErr error
	for _, src := range sourceFilenames {
		newName, err := s.repo.ImportPending(ctx, project, src)
		if err != nil {
			s.logger.Error("import failed", "error", err, "source", src, "project", project)
			importErr = fmt.Errorf("%w: %s: %v", domain.ErrImportFailed, src, err)
			break
		}
		imported = append(imported, domain.ScreenshotRef{
			Filename: newName,
			Path:     path.Join(project, newName),
		})
	}

	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale || len(imported) == 0 {
		// Project switched mid-import; the files landed on the backend
		// but this deck no longer shows them.
		return importErr
	}
	if err := s.InsertAt(index, imported); err != nil {
		return err
	}
	return importErr
}

// ToggleSelect adds or removes filename from the selection set. No-op
// for filenames not in the deck.
func (s *Session) ToggleSelect(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.containsLocked(filename) {
		return
	}
	if s.selected[filename] {
		delete(s.selected, filename)
	} else {
		s.selected[filename] = true
	}
}

// SelectRange replaces the selection with the inclusive contiguous
// range between the two indices, whichever is larger.
func (s *Session) SelectRange(anchor, target int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if anchor < 0 || anchor >= len(s.items) || target < 0 || target >= len(s.items) {
		return fmt.Errorf("%w: range %d..%d in deck of %d", domain.ErrIndexOutOfRange, anchor, target, len(s.items))
	}
	if anchor > target {
		anchor, target = target, anchor
	}
	s.selected = make(map[string]bool)
	for i := anchor; i <= target; i++ {
		s.selected[s.items[i].Filename] = true
	}
	return nil
}

// SelectAll selects every filename in the deck.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]bool, len(s.items))
	for _, ref := range s.items {
		s.selected[ref.Filename] = true
	}
}

// ClearSelection empties the selection set.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]bool)
}

// DeleteSelected removes every selected screenshot from the deck,
// preserving the relative order of survivors, and records the removed
// items as a new undo batch. The delete is local and reversible until
// Save or ApplyAndRename commits the shorter order.
func (s *Session) DeleteSelected() (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Batch{}, domain.ErrNotLoaded
	}
	if len(s.selected) == 0 {
		return Batch{}, domain.ErrEmptySelection
	}

	var kept, removed []domain.ScreenshotRef
	for _, ref := range s.items {
		if s.selected[ref.Filename] {
			removed = append(removed, ref)
		} else {
			kept = append(kept, ref)
		}
	}
	batch := Batch{Timestamp: s.nextBatchTimestampLocked(), Items: removed}
	s.items = kept
	s.batches = append(s.batches, batch)
	s.selected = make(map[string]bool)
	s.dirty = true
	s.logger.Debug("deleted selection", "project", s.project, "count", len(removed), "batch", batch.Timestamp)
	return batch, nil
}

// RestoreBatch re-inserts a deleted batch's items at the end of the
// deck and removes the batch from the undo log. Original positions are
// not tracked, so restore appends.
func (s *Session) RestoreBatch(timestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.batches {
		if b.Timestamp == timestamp {
			s.items = append(s.items, b.Items...)
			s.batches = append(s.batches[:i], s.batches[i+1:]...)
			s.dirty = true
			s.logger.Debug("restored batch", "project", s.project, "batch", timestamp, "count", len(b.Items))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrBatchNotFound, timestamp)
}

// RestoreLast restores the most recently deleted batch.
func (s *Session) RestoreLast() error {
	s.mu.Lock()
	if len(s.batches) == 0 {
		s.mu.Unlock()
		return domain.ErrBatchNotFound
	}
	ts := s.batches[len(s.batches)-1].Timestamp
	s.mu.Unlock()
	return s.RestoreBatch(ts)
}

// === Persistence ===

// Save persists the current order to the backend as an atomic full
// replace. Concurrent saves serialize: a save in flight blocks the
// next, and each save snapshots the deck only when its turn comes, so
// a stale order is never written over a newer one. The dirty flag
// clears only if the deck did not change while the save was in flight.
func (s *Session) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.putOrder(ctx)
}

func (s *Session) putOrder(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.ErrNotLoaded
	}
	gen := s.generation
	project := s.project
	order := domain.Filenames(s.items)
	s.saving++
	s.mu.Unlock()

	err := s.repo.PutOrder(ctx, project, order)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving--
	if gen != s.generation {
		// Project switched while saving; the result no longer matters.
		s.logger.Debug("discarding stale save result", "project", project)
		return nil
	}
	if err != nil {
		s.logger.Error("failed to save order", "error", err, "project", project)
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	if s.orderEqualsLocked(order) {
		s.dirty = false
	}
	s.logger.Info("saved order", "project", project, "screens", len(order))
	return nil
}

// ApplyAndRename saves the current order and instructs the backend to
// physically rename the stored files to match it. On success the deck
// is replaced with the renamed refs; the selection and undo log are
// dropped, since the filenames they referenced no longer exist.
func (s *Session) ApplyAndRename(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.putOrder(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	gen := s.generation
	project := s.project
	s.saving++
	s.mu.Unlock()

	renamed, err := s.repo.ApplyOrder(ctx, project)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving--
	if gen != s.generation {
		s.logger.Debug("discarding stale apply result", "project", project)
		return nil
	}
	if err != nil {
		s.logger.Error("failed to apply order", "error", err, "project", project)
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	s.items = renamed
	s.selected = make(map[string]bool)
	s.batches = nil
	s.dirty = false
	s.logger.Info("applied order", "project", project, "screens", len(renamed))
	return nil
}

// === Internal ===

func (s *Session) containsLocked(filename string) bool {
	for _, ref := range s.items {
		if ref.Filename == filename {
			return true
		}
	}
	return false
}

func (s *Session) orderEqualsLocked(order []string) bool {
	if len(order) != len(s.items) {
		return false
	}
	for i, ref := range s.items {
		if ref.Filename != order[i] {
			return false
		}
	}
	return true
}

func (s *Session) nextBatchTimestampLocked() string {
	now := time.Now().UnixNano()
	if now <= s.lastBatchNano {
		now = s.lastBatchNano + 1
	}
	s.lastBatchNano = now
	return strconv.FormatInt(now, 10)
}
