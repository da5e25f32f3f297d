package api

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/storage"
)

// MediaHandler serves stored audio artifacts.
type MediaHandler struct {
	files storage.Provider
}

// NewMediaHandler creates a handler serving files from the media store.
func NewMediaHandler(files storage.Provider) *MediaHandler {
	return &MediaHandler{files: files}
}

// ServeFile handles GET /media/*. The wildcard is the artifact path as
// recorded on recordings and chunks; traversal outside the media root is
// rejected by the store.
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(rel); err == nil {
		rel = decoded
	}
	if rel == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}
	abs, err := h.files.Abs(rel)
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
