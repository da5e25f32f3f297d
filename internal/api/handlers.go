package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/profileservice"
)

const maxUploadBytes = 500 << 20 // 500 MB, long recordings are large

// Handler holds API route handlers.
type Handler struct {
	svc *profileservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *profileservice.Service) *Handler {
	return &Handler{svc: svc}
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// respondError maps domain errors to HTTP status codes.
func respondError(w http.ResponseWriter, op string, err error) {
	var verrs validation.Errors
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("recording is busy or already completed"))
	case errors.Is(err, apperr.ErrUnsupportedMedia):
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody(err.Error()))
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListProfiles handles GET /api/profiles.
//
//	@Summary		List profiles with pagination
//	@Tags			profiles
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	ProfileListResponse
//	@Security		BearerAuth
//	@Router			/profiles [get]
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	profiles, total, err := h.svc.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		respondError(w, "list profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"total":    total,
	})
}

// CreateProfile handles POST /api/profiles (multipart/form-data).
//
// The form carries the audio in the "file" field and metadata in "title",
// "recorded_at" (RFC 3339, defaults to now) and "summary". The response is
// 201 even when processing fails: the recording is then in failed status
// and can be retried later.
//
//	@Summary		Upload a recording and create its profile
//	@Tags			profiles
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Audio file"
//	@Param			title		formData	string	true	"Profile title"
//	@Param			recorded_at	formData	string	false	"Recording time, RFC 3339"
//	@Param			summary		formData	string	false	"Free-form summary"
//	@Success		201			{object}	models.Profile
//	@Failure		400			{object}	errResponse
//	@Failure		415			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles [post]
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	in := profileservice.UploadInput{
		Title:      r.FormValue("title"),
		Summary:    r.FormValue("summary"),
		RecordedAt: time.Now().UTC(),
	}
	if raw := r.FormValue("recorded_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("recorded_at must be RFC 3339"))
			return
		}
		in.RecordedAt = ts.UTC()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	profile, err := h.svc.Upload(r.Context(), in, header.Filename, data)
	if err != nil {
		respondError(w, "create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// GetProfile handles GET /api/profiles/{id}.
//
//	@Summary		Get a profile with recordings and chunks
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		int	true	"Profile id"
//	@Success		200	{object}	models.Profile
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	profile, err := h.svc.GetProfile(r.Context(), id)
	if err != nil {
		respondError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile handles DELETE /api/profiles/{id}.
//
//	@Summary		Delete a profile with its recordings, chunks and media
//	@Tags			profiles
//	@Param			id	path	int	true	"Profile id"
//	@Success		204	"Profile deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id} [delete]
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	if err := h.svc.DeleteProfile(r.Context(), id); err != nil {
		respondError(w, "delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRecording handles GET /api/recordings/{id}.
//
//	@Summary		Get a recording with its chunks
//	@Tags			recordings
//	@Produce		json
//	@Param			id	path		int	true	"Recording id"
//	@Success		200	{object}	models.Recording
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recordings/{id} [get]
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	rec, err := h.svc.GetRecording(r.Context(), id)
	if err != nil {
		respondError(w, "get recording", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RetryRecording handles POST /api/recordings/{id}/retry.
//
//	@Summary		Rerun processing for a failed recording
//	@Tags			recordings
//	@Produce		json
//	@Param			id	path		int	true	"Recording id"
//	@Success		200	{object}	models.Recording
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recordings/{id}/retry [post]
func (h *Handler) RetryRecording(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	rec, err := h.svc.Retry(r.Context(), id)
	if err != nil {
		respondError(w, "retry recording", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateChunk handles PATCH /api/chunks/{id}.
//
//	@Summary		Update note or bookmark on a chunk
//	@Tags			chunks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Chunk id"
//	@Param			body	body		UpdateChunkRequest	true	"Fields to update"
//	@Success		200		{object}	models.Chunk
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chunks/{id} [patch]
func (h *Handler) UpdateChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Note == nil && req.Bookmarked == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("nothing to update"))
		return
	}
	chunk, err := h.svc.UpdateChunk(r.Context(), id, req.Note, req.Bookmarked)
	if err != nil {
		respondError(w, "update chunk", err)
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across chunk titles and transcripts
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		respondError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
