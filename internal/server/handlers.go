package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shotdeck/internal/domain"
)

// Handlers serves the REST API over a Library.
type Handlers struct {
	lib    *Library
	inbox  *InboxWatcher
	logger *slog.Logger
}

// NewRouter builds the chi router with all API routes registered.
func NewRouter(lib *Library, inbox *InboxWatcher, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{lib: lib, inbox: inbox, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", h.listProjects)
		r.Get("/projects/{name}/screens", h.listScreens)
		r.Put("/projects/{name}/order", h.putOrder)
		r.Post("/projects/{name}/apply", h.applyOrder)
		r.Post("/projects/{name}/import", h.importPending)
		r.Get("/projects/{name}/screens/{filename}", h.serveScreen)
		r.Get("/pending", h.listPending)
	})
	return r
}

type orderRequest struct {
	Order []string `json:"order"`
}

type importRequest struct {
	Source string `json:"source"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrImportFailed):
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.lib.Projects()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    len(projects),
	})
}

func (h *Handlers) listScreens(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	screens, err := h.lib.Screens(name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": name,
		"screens": screens,
	})
}

func (h *Handlers) putOrder(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order payload"})
		return
	}
	if req.Order == nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing order field"})
		return
	}

	if err := h.lib.PutOrder(name, req.Order); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": name,
		"count":   len(req.Order),
	})
}

func (h *Handlers) applyOrder(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	renamed, err := h.lib.ApplyOrder(name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": name,
		"screens": renamed,
	})
}

func (h *Handlers) importPending(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid import payload"})
		return
	}

	newName, err := h.lib.Import(name, req.Source)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.inbox != nil {
		h.inbox.Invalidate()
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"project":  name,
		"filename": newName,
	})
}

func (h *Handlers) listPending(w http.ResponseWriter, r *http.Request) {
	var (
		items []domain.PendingItem
		err   error
	)
	if h.inbox != nil {
		items, err = h.inbox.Pending()
	} else {
		items, err = h.lib.Pending()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending": items,
		"total":   len(items),
	})
}

func (h *Handlers) serveScreen(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	filename := chi.URLParam(r, "filename")

	p, err := h.lib.ScreenPath(name, filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.ServeFile(w, r, p)
}
