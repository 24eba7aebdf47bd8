package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/expensync/expensync/internal/handler/dto"
	"github.com/expensync/expensync/internal/model"
	"github.com/expensync/expensync/internal/service"
)

// ListHandler handles HTTP requests for expense lists.
type ListHandler struct {
	svc    *service.ListService
	logger *slog.Logger
}

// NewListHandler creates a new ListHandler.
func NewListHandler(svc *service.ListService, logger *slog.Logger) *ListHandler {
	return &ListHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/expenses-list.
func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.ListNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	list, err := h.svc.CreateList(r.Context(), req.Name, identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("list_created",
		"list_id", list.ID.Hex(),
		"user_id", identity.UserID.Hex(),
	)

	writeJSON(w, http.StatusCreated, dto.ToListResponse(list))
}

// Get handles GET /api/expenses-list/{id}.
func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	list, err := h.svc.GetList(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPopulatedListResponse(list))
}

// List handles GET /api/expenses-list?offset&limit&sortOrder.
func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	offset, ok := queryInt(w, query.Get("offset"), "offset")
	if !ok {
		return
	}
	limit, ok := queryInt(w, query.Get("limit"), "limit")
	if !ok {
		return
	}

	page, err := h.svc.ListLists(r.Context(), service.ListListsInput{
		Offset:    offset,
		Limit:     limit,
		SortOrder: model.ParseSortOrder(query.Get("sortOrder")),
	})
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToListPageResponse(page))
}

// Update handles PUT /api/expenses-list/{id}.
func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req dto.ListNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	list, err := h.svc.UpdateList(r.Context(), id, req.Name, identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("list_updated", "list_id", list.ID.Hex())

	writeJSON(w, http.StatusOK, dto.ToListResponse(list))
}

// Delete handles DELETE /api/expenses-list/{id}.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.svc.DeleteList(r.Context(), id, identity.UserID); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("list_deleted", "list_id", id.Hex())

	writeJSON(w, http.StatusOK, MessageResponse{Message: "List deleted successfully"})
}

// queryInt parses an optional integer query parameter; empty yields 0.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+": must be an integer")
		return 0, false
	}
	return n, true
}
