// Package server implements the shotdeck backend: a REST API over a
// data directory of screenshot projects plus a pending-import inbox.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"shotdeck/internal/domain"
)

const (
	orderFile  = "order.json"
	removedDir = "_removed"
	tmpPrefix  = "_tmp_"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Library owns the project directories and the inbox. Order writes and
// renames serialize on a single mutex; the API is the only writer.
type Library struct {
	projectsDir string
	inboxDir    string
	logger      *slog.Logger

	mu sync.Mutex
}

// NewLibrary creates a library rooted at dataDir, ensuring the
// projects/ and inbox/ subdirectories exist.
func NewLibrary(dataDir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib := &Library{
		projectsDir: filepath.Join(dataDir, "projects"),
		inboxDir:    filepath.Join(dataDir, "inbox"),
		logger:      logger,
	}
	for _, dir := range []string{lib.projectsDir, lib.inboxDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return lib, nil
}

// InboxDir returns the inbox path, for the fsnotify watcher.
func (l *Library) InboxDir() string {
	return l.inboxDir
}

func isImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// projectDir validates the project name and returns its directory.
func (l *Library) projectDir(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid name %q", domain.ErrProjectNotFound, name)
	}
	dir := filepath.Join(l.projectsDir, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
	}
	return dir, nil
}

// Projects lists all project directories with their screen counts.
func (l *Library) Projects() ([]domain.Project, error) {
	entries, err := os.ReadDir(l.projectsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects dir: %w", err)
	}

	projects := make([]domain.Project, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		screens, err := l.Screens(e.Name())
		if err != nil {
			l.logger.Warn("skipping unreadable project", "project", e.Name(), "error", err)
			continue
		}
		projects = append(projects, domain.Project{
			Name:        e.Name(),
			Source:      "projects",
			ScreenCount: len(screens),
		})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// Screens returns a project's deck in stored order. With no order file
// every image in the directory appears in lexicographic order. With an
// order file, the file is authoritative: entries whose files vanished
// are pruned, and files not listed stay hidden until imported (or until
// the order file is removed). Imports are the only sanctioned add path.
func (l *Library) Screens(project string) ([]domain.ScreenshotRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir, err := l.projectDir(project)
	if err != nil {
		return nil, err
	}
	return l.screensLocked(project, dir)
}

func (l *Library) imageSet(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project dir: %w", err)
	}
	present := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isImage(name) || strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		present[name] = true
	}
	return present, nil
}

func (l *Library) loadOrder(dir string) ([]string, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, orderFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read order file: %w", err)
	}
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, false, fmt.Errorf("corrupt order file: %w", err)
	}
	return order, true, nil
}

// writeOrder persists the order atomically (tmp file + rename).
func (l *Library) writeOrder(dir string, order []string) error {
	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, orderFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write order file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, orderFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace order file: %w", err)
	}
	return nil
}

// PutOrder replaces the stored order for a project. Every named file
// must exist in the project; unknown names are rejected with
// ErrConflict and nothing is written.
func (l *Library) PutOrder(project string, filenames []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir, err := l.projectDir(project)
	if err != nil {
		return err
	}

	present, err := l.imageSet(dir)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(filenames))
	for _, n := range filenames {
		if !present[n] {
			return fmt.Errorf("%w: unknown file %s", domain.ErrConflict, n)
		}
		if seen[n] {
			return fmt.Errorf("%w: duplicate file %s", domain.ErrConflict, n)
		}
		seen[n] = true
	}

	if err := l.writeOrder(dir, filenames); err != nil {
		return err
	}
	l.logger.Info("stored order", "project", project, "screens", len(filenames))
	return nil
}

// ApplyOrder physically renames a project's files to zero-padded
// positional names matching the stored order. Files excluded from the
// order move to the _removed/ subdirectory. Renaming is two-phase
// (everything to temp names first, then to final names) so that
// permutations of an already-sequenced deck never collide.
func (l *Library) ApplyOrder(project string) ([]domain.ScreenshotRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir, err := l.projectDir(project)
	if err != nil {
		return nil, err
	}

	screens, err := l.screensLocked(project, dir)
	if err != nil {
		return nil, err
	}

	// Files dropped from the order are retired first, under their old
	// names, so the rename plan below only touches the ordered deck.
	if err := l.retireUnordered(dir, screens); err != nil {
		return nil, err
	}

	width := 3
	if n := len(fmt.Sprintf("%d", len(screens))); n > width {
		width = n
	}

	type rename struct{ from, tmp, to string }
	plan := make([]rename, 0, len(screens))
	for i, ref := range screens {
		target := fmt.Sprintf("%0*d_%s", width, i+1, stripSeqPrefix(ref.Filename))
		plan = append(plan, rename{
			from: ref.Filename,
			tmp:  tmpPrefix + target,
			to:   target,
		})
	}

	// Round 1: move everything out of the way.
	for _, r := range plan {
		if err := os.Rename(filepath.Join(dir, r.from), filepath.Join(dir, r.tmp)); err != nil {
			return nil, fmt.Errorf("rename to temp failed for %s: %w", r.from, err)
		}
	}
	// Round 2: settle on final names.
	for _, r := range plan {
		if err := os.Rename(filepath.Join(dir, r.tmp), filepath.Join(dir, r.to)); err != nil {
			return nil, fmt.Errorf("rename to final failed for %s: %w", r.to, err)
		}
	}

	order := make([]string, len(plan))
	renamed := make([]domain.ScreenshotRef, len(plan))
	for i, r := range plan {
		order[i] = r.to
		renamed[i] = domain.ScreenshotRef{Filename: r.to, Path: project + "/" + r.to}
	}
	if err := l.writeOrder(dir, order); err != nil {
		return nil, err
	}

	l.logger.Info("applied order", "project", project, "renamed", len(plan))
	return renamed, nil
}

// screensLocked is Screens without re-taking the mutex.
func (l *Library) screensLocked(project, dir string) ([]domain.ScreenshotRef, error) {
	present, err := l.imageSet(dir)
	if err != nil {
		return nil, err
	}
	order, hasOrder, err := l.loadOrder(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	if hasOrder {
		for _, n := range order {
			if present[n] {
				names = append(names, n)
			}
		}
	} else {
		for n := range present {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	screens := make([]domain.ScreenshotRef, len(names))
	for i, n := range names {
		screens[i] = domain.ScreenshotRef{Filename: n, Path: project + "/" + n}
	}
	return screens, nil
}

// retireUnordered moves files excluded from the deck to _removed/.
// Retired, not deleted: the backend owns physical deletion policy and
// keeps it reversible.
func (l *Library) retireUnordered(dir string, deck []domain.ScreenshotRef) error {
	present, err := l.imageSet(dir)
	if err != nil {
		return err
	}
	ordered := make(map[string]bool, len(deck))
	for _, ref := range deck {
		ordered[ref.Filename] = true
	}
	for n := range present {
		if ordered[n] {
			continue
		}
		if err := os.MkdirAll(filepath.Join(dir, removedDir), 0755); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(dir, n), filepath.Join(dir, removedDir, n)); err != nil {
			return fmt.Errorf("failed to retire %s: %w", n, err)
		}
		l.logger.Debug("retired unordered screen", "file", n)
	}
	return nil
}

// stripSeqPrefix removes an existing 001_-style prefix so repeated
// applies do not stack sequence numbers.
func stripSeqPrefix(name string) string {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i > 0 && i < len(name) && name[i] == '_' {
		return name[i+1:]
	}
	return name
}

// Pending lists the inbox contents, newest first.
func (l *Library) Pending() ([]domain.PendingItem, error) {
	entries, err := os.ReadDir(l.inboxDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	items := make([]domain.PendingItem, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isImage(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, domain.PendingItem{
			Filename: name,
			Path:     filepath.Join(l.inboxDir, name),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ModTime.After(items[j].ModTime) })
	return items, nil
}

// Import moves an inbox file into a project, appends it to the stored
// order, and returns the filename it received there. Name collisions
// get a numeric suffix.
func (l *Library) Import(project, source string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if source == "" || strings.ContainsAny(source, "/\\") {
		return "", fmt.Errorf("%w: invalid source %q", domain.ErrImportFailed, source)
	}
	dir, err := l.projectDir(project)
	if err != nil {
		return "", err
	}

	srcPath := filepath.Join(l.inboxDir, source)
	if _, err := os.Stat(srcPath); err != nil {
		return "", fmt.Errorf("%w: %s not in inbox", domain.ErrImportFailed, source)
	}

	target := source
	ext := filepath.Ext(source)
	base := strings.TrimSuffix(source, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, target)); errors.Is(err, os.ErrNotExist) {
			break
		}
		target = fmt.Sprintf("%s_%d%s", base, i, ext)
	}

	if err := os.Rename(srcPath, filepath.Join(dir, target)); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrImportFailed, err)
	}

	order, hasOrder, err := l.loadOrder(dir)
	if err == nil && hasOrder {
		if werr := l.writeOrder(dir, append(order, target)); werr != nil {
			l.logger.Error("imported file but failed to extend order", "error", werr, "file", target)
		}
	}

	l.logger.Info("imported screenshot", "project", project, "source", source, "as", target)
	return target, nil
}

// ScreenPath resolves a screenshot path for file serving.
func (l *Library) ScreenPath(project, filename string) (string, error) {
	dir, err := l.projectDir(project)
	if err != nil {
		return "", err
	}
	if filename == "" || strings.ContainsAny(filename, "/\\") || !isImage(filename) {
		return "", fmt.Errorf("%w: %s", domain.ErrProjectNotFound, filename)
	}
	p := filepath.Join(dir, filename)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrProjectNotFound, filename)
	}
	return p, nil
}
