package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/handler/dto"
	"github.com/expensync/expensync/internal/service"
)

// ExpenseHandler handles HTTP requests for expenses.
type ExpenseHandler struct {
	svc    *service.ExpenseService
	logger *slog.Logger
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(svc *service.ExpenseService, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/expenses.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	listID, err := primitive.ObjectIDFromHex(req.ListID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "listId: must be a valid id")
		return
	}
	if req.Price == nil {
		writeError(w, http.StatusBadRequest, "price: is required")
		return
	}
	date, err := dto.ParseDate(req.Date)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	expense, err := h.svc.CreateExpense(r.Context(), service.CreateExpenseInput{
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.ExpenseDescription,
		Date:        date,
		ListID:      listID,
		CreatorID:   identity.UserID,
	})
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("expense_created",
		"expense_id", expense.ID.Hex(),
		"list_id", listID.Hex(),
		"user_id", identity.UserID.Hex(),
	)

	writeJSON(w, http.StatusCreated, dto.ToExpenseResponse(expense, nil))
}

// Get handles GET /api/expenses/{id}.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	expense, err := h.svc.GetExpense(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToExpenseResponse(expense.Expense, expense.Creator))
}

// List handles GET /api/expenses?listId=.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	listID, ok := optionalListID(w, r)
	if !ok {
		return
	}

	expenses, err := h.svc.ListExpenses(r.Context(), listID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPopulatedExpenseResponses(expenses))
}

// Update handles PUT /api/expenses/{id}.
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upd, err := req.ToUpdate()
	if err != nil {
		writeRequestError(w, err)
		return
	}

	expense, err := h.svc.UpdateExpense(r.Context(), id, upd, identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("expense_updated", "expense_id", id.Hex())

	writeJSON(w, http.StatusOK, dto.ToExpenseResponse(expense, nil))
}

// Delete handles DELETE /api/expenses/{id}?listId=.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	listID, ok := optionalListID(w, r)
	if !ok {
		return
	}

	var hint primitive.ObjectID
	if listID != nil {
		hint = *listID
	}

	expense, err := h.svc.DeleteExpense(r.Context(), id, hint, identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	h.logger.Info("expense_deleted",
		"expense_id", id.Hex(),
		"list_id", expense.ListID.Hex(),
	)

	writeJSON(w, http.StatusOK, dto.ToExpenseResponse(expense, nil))
}

// optionalListID parses the listId query parameter when present.
func optionalListID(w http.ResponseWriter, r *http.Request) (*primitive.ObjectID, bool) {
	raw := r.URL.Query().Get("listId")
	if raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "listId: must be a valid id")
		return nil, false
	}
	return &id, true
}

// writeRequestError reports a request conversion error as 400, naming the
// field when it is known.
func writeRequestError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if errors.Is(err, dto.ErrInvalidDate) {
		msg = "date: " + msg
	}
	writeError(w, http.StatusBadRequest, msg)
}
