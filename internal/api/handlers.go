package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/kind"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func entityID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// respondErr maps domain errors onto HTTP statuses.
func respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrDuplicateSelf):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnsupportedKind),
		errors.Is(err, apperr.ErrNotConvertible),
		errors.Is(err, apperr.ErrInvalidMembership),
		apperr.IsRecursiveContainment(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListEntities handles GET /api/entities.
//
//	@Summary		List entities with optional kind and flag filters
//	@Tags			entities
//	@Produce		json
//	@Param			kind		query		string	false	"Filter by kind (comma-separated)"
//	@Param			archived	query		bool	false	"Filter by archived flag"
//	@Param			deleted		query		bool	false	"Filter by deleted flag"
//	@Success		200			{object}	EntityListResponse
//	@Security		BearerAuth
//	@Router			/entities [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f graph.Filter
	if ks := q.Get("kind"); ks != "" {
		for _, k := range strings.Split(ks, ",") {
			f.Kinds = append(f.Kinds, kind.Kind(k))
		}
	}
	if v := q.Get("archived"); v != "" {
		b, _ := strconv.ParseBool(v)
		f.Archived = &b
	}
	if v := q.Get("deleted"); v != "" {
		b, _ := strconv.ParseBool(v)
		f.Deleted = &b
	} else {
		// Deleted entities stay out of listings unless asked for.
		no := false
		f.Deleted = &no
	}

	items := h.svc.ListEntities(r.Context(), f)
	writeJSON(w, http.StatusOK, EntityListResponse{Entities: items, Total: len(items)})
}

// GetEntity handles GET /api/entities/{id}.
//
//	@Summary		Get a single entity by id
//	@Tags			entities
//	@Produce		json
//	@Param			id	path		string	true	"Entity id"
//	@Success		200	{object}	EntityDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{id} [get]
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetEntity(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "get entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateEntity handles POST /api/entities.
//
//	@Summary		Create a new entity
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntityRequest	true	"Entity to create"
//	@Success		201		{object}	EntityDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities [post]
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	spec, err := kind.Lookup(kind.Kind(req.Kind))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported kind"))
		return
	}
	if !spec.UserCreatable {
		writeJSON(w, http.StatusBadRequest, errorBody("kind is not user-creatable"))
		return
	}

	rec := entity.Record{
		Kind:       spec.Kind,
		Name:       req.Name,
		Properties: req.Properties,
	}
	if len(req.Parents) > 0 {
		now := time.Now()
		rec.Parents = make(map[string]entity.RelationRecord, len(req.Parents))
		for _, pid := range req.Parents {
			rec.Parents[pid] = entity.RelationRecord{CreatedAt: now, UpdatedAt: now}
		}
	}

	origin := events.OriginUser
	if req.Origin == "drop" {
		origin = events.OriginDrop
	}

	detail, err := h.svc.CreateEntity(r.Context(), rec, origin)
	if err != nil {
		respondErr(w, "create entity", err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// UpdateEntity handles PUT /api/entities/{id}.
//
//	@Summary		Update an entity with optimistic concurrency
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Entity id"
//	@Param			If-Match	header		string				false	"Record checksum for optimistic concurrency"
//	@Param			body		body		UpdateEntityRequest	true	"Fields to update"
//	@Success		200			{object}	EntityDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{id} [put]
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	detail, err := h.svc.UpdateEntity(r.Context(), entityID(r), req.Name, req.Content, ifMatch)
	if err != nil {
		respondErr(w, "update entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeleteEntity handles DELETE /api/entities/{id}.
//
//	@Summary		Flag an entity deleted
//	@Tags			entities
//	@Param			id	path	string	true	"Entity id"
//	@Success		204	"Entity deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{id} [delete]
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEntity(r.Context(), entityID(r)); err != nil {
		respondErr(w, "delete entity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles POST /api/entities/{id}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.ArchiveEntity(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "archive entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Unarchive handles POST /api/entities/{id}/unarchive.
func (h *Handler) Unarchive(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.UnarchiveEntity(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "unarchive entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Restore handles POST /api/entities/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.RestoreEntity(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "restore entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Complete handles POST /api/entities/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.CompleteEntity(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "complete entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Convert handles POST /api/entities/{id}/convert.
//
//	@Summary		Convert an entity to another kind
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Entity id"
//	@Param			body	body		ConvertRequest	true	"Target kind"
//	@Success		200		{object}	EntityDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{id}/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	detail, err := h.svc.ConvertEntity(r.Context(), entityID(r), kind.Kind(req.Kind))
	if err != nil {
		respondErr(w, "convert entity", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Children handles GET /api/entities/{id}/children.
func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Children(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "list children", err)
		return
	}
	writeJSON(w, http.StatusOK, EntityListResponse{Entities: items, Total: len(items)})
}

// InsertChildren handles POST /api/entities/{id}/children.
func (h *Handler) InsertChildren(w http.ResponseWriter, r *http.Request) {
	var req InsertChildrenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	detail, err := h.svc.InsertChildren(r.Context(), entityID(r), req.Index, req.Entities)
	if err != nil {
		respondErr(w, "insert children", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// RemoveChild handles DELETE /api/entities/{id}/children/{childID}.
func (h *Handler) RemoveChild(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.RemoveChild(r.Context(), entityID(r), chi.URLParam(r, "childID"))
	if err != nil {
		respondErr(w, "remove child", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// SetOrder handles PUT /api/entities/{id}/order.
func (h *Handler) SetOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	detail, err := h.svc.SetOrder(r.Context(), entityID(r), req.Entities)
	if err != nil {
		respondErr(w, "set order", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// AddParent handles POST /api/entities/{id}/parents.
func (h *Handler) AddParent(w http.ResponseWriter, r *http.Request) {
	var req ParentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	detail, err := h.svc.AddParent(r.Context(), entityID(r), req.Parent, req.Properties)
	if err != nil {
		respondErr(w, "add parent", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// RemoveParent handles DELETE /api/entities/{id}/parents/{parentID}.
func (h *Handler) RemoveParent(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.RemoveParent(r.Context(), entityID(r), chi.URLParam(r, "parentID"))
	if err != nil {
		respondErr(w, "remove parent", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Backlinks handles GET /api/entities/{id}/backlinks.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetEntity(r.Context(), entityID(r))
	if err != nil {
		respondErr(w, "get backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": detail.Backlinks})
}

// Uncategorized handles GET /api/uncategorized.
func (h *Handler) Uncategorized(w http.ResponseWriter, r *http.Request) {
	items := h.svc.Uncategorized(r.Context())
	writeJSON(w, http.StatusOK, EntityListResponse{Entities: items, Total: len(items)})
}

// Root handles GET /api/root.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Root(r.Context())
	if err != nil {
		respondErr(w, "get root", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entities
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
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the entity reference graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"links": links,
	})
}
