package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/expensync/expensync/internal/model"
)

// ErrInvalidDate is returned for dates that are neither RFC 3339 nor YYYY-MM-DD.
var ErrInvalidDate = errors.New("date must be RFC 3339 or YYYY-MM-DD")

// CreateExpenseRequest is the body for POST /api/expenses.
type CreateExpenseRequest struct {
	Name               string   `json:"name"`
	Price              *float64 `json:"price"`
	ExpenseDescription string   `json:"expenseDescription"`
	Date               string   `json:"date"`
	ListID             string   `json:"listId"`
}

// UpdateExpenseRequest is the body for PUT /api/expenses/{id}.
// Omitted fields are left unchanged.
type UpdateExpenseRequest struct {
	Name               *string  `json:"name"`
	Price              *float64 `json:"price"`
	ExpenseDescription *string  `json:"expenseDescription"`
	Date               *string  `json:"date"`
}

// ToUpdate converts the request to a model update.
func (r UpdateExpenseRequest) ToUpdate() (model.ExpenseUpdate, error) {
	upd := model.ExpenseUpdate{
		Name:        r.Name,
		Price:       r.Price,
		Description: r.ExpenseDescription,
	}
	if r.Date != nil {
		d, err := ParseDate(*r.Date)
		if err != nil {
			return upd, err
		}
		upd.Date = d
	}
	return upd, nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
// An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ErrInvalidDate
}

// ExpenseResponse is an expense with its populated creator.
type ExpenseResponse struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Price              float64      `json:"price"`
	ExpenseDescription string       `json:"expenseDescription,omitempty"`
	Date               *time.Time   `json:"date,omitempty"`
	CreatorID          string       `json:"creatorId"`
	Creator            *UserSummary `json:"creator,omitempty"`
	ListID             string       `json:"listId"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// ToExpenseResponse converts an expense. creator may be nil.
func ToExpenseResponse(e *model.Expense, creator *model.User) ExpenseResponse {
	return ExpenseResponse{
		ID:                 e.ID.Hex(),
		Name:               e.Name,
		Price:              e.Price,
		ExpenseDescription: e.Description,
		Date:               e.Date,
		CreatorID:          e.CreatorID.Hex(),
		Creator:            ToUserSummary(creator),
		ListID:             e.ListID.Hex(),
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// ToPopulatedExpenseResponses converts a populated slice, never returning nil.
func ToPopulatedExpenseResponses(expenses []*model.PopulatedExpense) []ExpenseResponse {
	out := make([]ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, ToExpenseResponse(e.Expense, e.Creator))
	}
	return out
}
