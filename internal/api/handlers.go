package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keeptrack/internal/apperr"
	"github.com/starford/keeptrack/internal/checksum"
	"github.com/starford/keeptrack/internal/storage"
	"github.com/starford/keeptrack/internal/tracker"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *tracker.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *tracker.Service) *Handler {
	return &Handler{svc: svc}
}

func itemID(r *http.Request) string {
	return chi.URLParam(r, "itemID")
}

// decodeBody decodes a JSON body into dst and runs its validation rules.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// ListItems handles GET /api/items.
//
//	@Summary		List all items
//	@Tags			items
//	@Produce		json
//	@Success		200	{array}	Item
//	@Security		BearerAuth
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateItem handles POST /api/items.
//
//	@Summary		Create a new item
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateItemRequest	true	"Item to create"
//	@Success		200		{object}	Item
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.svc.CreateItem(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GetItem handles GET /api/items/{itemID}.
//
//	@Summary		Get a single item
//	@Tags			items
//	@Produce		json
//	@Param			itemID			path		string	true	"Item id"
//	@Param			If-None-Match	header		string	false	"ETag from a previous response"
//	@Success		200				{object}	Item
//	@Success		304				"Not modified"
//	@Failure		400				{object}	errResponse
//	@Failure		404				{object}	errResponse
//	@Failure		500				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{itemID} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrMalformed) {
			slog.Error("item record unusable", slog.String("item_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("item record is unreadable"))
			return
		}
		writeServiceError(w, "get item", err, slog.String("item_id", id))
		return
	}

	doc, err := storage.EncodeItem(item)
	if err != nil {
		writeServiceError(w, "get item", err, slog.String("item_id", id))
		return
	}
	etag := checksum.ETag(doc)
	w.Header().Set("ETag", etag)
	if checksum.MatchNoneHeader(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListObservations handles GET /api/items/{itemID}/observations.
//
//	@Summary		List the observations of an item
//	@Tags			observations
//	@Produce		json
//	@Param			itemID	path		string	true	"Item id"
//	@Param			group	query		string	false	"Group by UTC start date"	Enums(date)
//	@Success		200		{array}		Observation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{itemID}/observations [get]
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	switch group := r.URL.Query().Get("group"); group {
	case "":
		obs, err := h.svc.ListObservations(r.Context(), id)
		if err != nil {
			writeServiceError(w, "list observations", err, slog.String("item_id", id))
			return
		}
		writeJSON(w, http.StatusOK, obs)
	case "date":
		buckets, err := h.svc.ObservationsByDate(r.Context(), id)
		if err != nil {
			writeServiceError(w, "group observations", err, slog.String("item_id", id))
			return
		}
		writeJSON(w, http.StatusOK, buckets)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported group: "+group))
	}
}

// CreateObservation handles POST /api/items/{itemID}/observations.
//
//	@Summary		Record an observation of an item
//	@Tags			observations
//	@Accept			json
//	@Produce		json
//	@Param			itemID	path		string						true	"Item id"
//	@Param			body	body		CreateObservationRequest	true	"Observation instants"
//	@Success		200		{object}	Observation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{itemID}/observations [post]
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	if err := h.svc.CheckItem(r.Context(), id); err != nil {
		writeServiceError(w, "record observation", err, slog.String("item_id", id))
		return
	}
	var req CreateObservationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	obs, err := h.svc.RecordObservation(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(w, "record observation", err, slog.String("item_id", id))
		return
	}
	writeJSON(w, http.StatusOK, obs)
}
