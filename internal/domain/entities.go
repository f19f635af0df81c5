package domain

import "time"

// ScreenshotRef identifies one screenshot within a project.
// The filename is the identity; position in a deck is implied by
// slice index, never stored on the ref itself.
type ScreenshotRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Project is a directory of screenshots served by the backend.
type Project struct {
	Name        string `json:"name"`
	Source      string `json:"source,omitempty"`
	ScreenCount int    `json:"screen_count"`
}

// PendingItem is a screenshot sitting in the inbox, not yet imported
// into any project.
type PendingItem struct {
	Filename string    `json:"filename"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Filenames extracts the filename of each ref, preserving order.
func Filenames(refs []ScreenshotRef) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Filename
	}
	return names
}
