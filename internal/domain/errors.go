package domain

import "errors"

// Sentinel errors for backend and deck operations.
//
// Network-class errors (offline, fetch, persist) leave in-memory state
// untouched and are surfaced to the user. Precondition-class errors
// (duplicate key, bad index, empty selection) indicate a caller bug.
var (
	// ErrServerOffline indicates the backend is unreachable
	ErrServerOffline = errors.New("backend is unreachable")

	// ErrProjectNotFound indicates the requested project does not exist
	ErrProjectNotFound = errors.New("project not found")

	// ErrFetchFailed indicates loading a project's screens failed
	ErrFetchFailed = errors.New("fetch failed")

	// ErrPersistFailed indicates saving or applying an order failed
	ErrPersistFailed = errors.New("persist failed")

	// ErrConflict indicates the backend rejected an order replace
	ErrConflict = errors.New("order conflicts with backend state")

	// ErrImportFailed indicates an inbox import could not complete
	ErrImportFailed = errors.New("import failed")

	// ErrDuplicateKey indicates an insert would repeat a filename
	ErrDuplicateKey = errors.New("duplicate filename")

	// ErrIndexOutOfRange indicates a reorder/insert index is invalid
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrEmptySelection indicates a delete was requested with nothing selected
	ErrEmptySelection = errors.New("selection is empty")

	// ErrBatchNotFound indicates an undo batch timestamp is unknown
	ErrBatchNotFound = errors.New("deleted batch not found")

	// ErrNotLoaded indicates a mutating operation on an unloaded session
	ErrNotLoaded = errors.New("no project loaded")
)
