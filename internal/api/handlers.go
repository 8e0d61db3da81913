package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/bookmarks"
	"github.com/starford/linkshelf/internal/logger"
)

// Handler holds API route handlers.
type Handler struct {
	svc *bookmarks.Service
	log logger.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *bookmarks.Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func bookmarkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Me handles GET /api/me.
//
//	@Summary		Current user and session
//	@Tags			auth
//	@Produce		json
//	@Success		200		{object}	MeResponse
//	@Failure		401		{object}	errResponse
//	@Router			/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	resp := MeResponse{User: auth.UserFromContext(r.Context())}
	if s := auth.SessionFromContext(r.Context()); s != nil {
		resp.Session = SessionDTO{ID: s.ID, ExpiresAt: s.ExpiresAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListBookmarks handles GET /api/bookmarks.
//
//	@Summary		List the caller's bookmarks, newest first
//	@Tags			bookmarks
//	@Produce		json
//	@Param			category	query		string	false	"Category filter; All or empty lists everything"
//	@Success		200			{object}	BookmarkListResponse
//	@Router			/bookmarks [get]
func (h *Handler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	items, err := h.svc.List(r.Context(), u.ID, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, h.log, "list bookmarks", err)
		return
	}
	writeJSON(w, http.StatusOK, BookmarkListResponse{Bookmarks: toDTOs(items), Total: len(items)})
}

// CreateBookmark handles POST /api/bookmarks.
//
//	@Summary		Create a bookmark
//	@Tags			bookmarks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BookmarkRequest	true	"Bookmark to create"
//	@Success		201		{object}	BookmarkDTO
//	@Failure		400		{object}	errResponse
//	@Router			/bookmarks [post]
func (h *Handler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBookmark(w, r)
	if !ok {
		return
	}
	u := auth.UserFromContext(r.Context())
	b, err := h.svc.Create(r.Context(), u.ID, bookmarks.Input(req))
	if err != nil {
		writeError(w, h.log, "create bookmark", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(*b))
}

// UpdateBookmark handles PUT /api/bookmarks/{id}.
//
//	@Summary		Edit a bookmark's title, url and category
//	@Tags			bookmarks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Bookmark id"
//	@Param			body	body		BookmarkRequest	true	"New values"
//	@Success		200		{object}	BookmarkDTO
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/bookmarks/{id} [put]
func (h *Handler) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := bookmarkID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	req, ok := decodeBookmark(w, r)
	if !ok {
		return
	}
	u := auth.UserFromContext(r.Context())
	b, err := h.svc.Update(r.Context(), u.ID, id, bookmarks.Input(req))
	if err != nil {
		writeError(w, h.log, "update bookmark", err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(*b))
}

// DeleteBookmark handles DELETE /api/bookmarks/{id}.
func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := bookmarkID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	u := auth.UserFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), u.ID, id); err != nil {
		writeError(w, h.log, "delete bookmark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories handles GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	cats, err := h.svc.Categories(r.Context(), u.ID)
	if err != nil {
		writeError(w, h.log, "list categories", err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

func decodeBookmark(w http.ResponseWriter, r *http.Request) (BookmarkRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req BookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return req, false
	}
	return req, true
}
