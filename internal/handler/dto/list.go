package dto

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/model"
)

// ListNameRequest is the body for creating and renaming lists.
type ListNameRequest struct {
	Name string `json:"name"`
}

// ListResponse is a bare list, as returned by create and rename.
type ListResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatorID     string    `json:"creatorId"`
	ExpenseIDs    []string  `json:"expenseIds"`
	MemberUserIDs []string  `json:"memberUserIds"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PopulatedListResponse is a list with its expenses and their total.
// Expenses is always present, empty for a new list.
type PopulatedListResponse struct {
	ListResponse
	Creator       *UserSummary      `json:"creator,omitempty"`
	Expenses      []ExpenseResponse `json:"expenses"`
	TotalExpenses json.Number       `json:"totalExpenses"`
}

// ToListResponse converts a bare list.
func ToListResponse(l *model.ExpensesList) ListResponse {
	return ListResponse{
		ID:            l.ID.Hex(),
		Name:          l.Name,
		CreatorID:     l.CreatorID.Hex(),
		ExpenseIDs:    hexIDs(l.ExpenseIDs),
		MemberUserIDs: hexIDs(l.MemberUserIDs),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

// ToPopulatedListResponse converts a populated list, including its total.
func ToPopulatedListResponse(p *model.PopulatedList) PopulatedListResponse {
	// Decimal string keeps 10.50 + 5.25 rendered as exactly 15.75.
	total := json.Number(p.Total().String())
	return PopulatedListResponse{
		ListResponse:  ToListResponse(p.List),
		Creator:       ToUserSummary(p.Creator),
		Expenses:      ToPopulatedExpenseResponses(p.Expenses),
		TotalExpenses: total,
	}
}

// ListPageResponse is the body for GET /api/expenses-list.
type ListPageResponse struct {
	Offset    int                     `json:"offset"`
	Limit     int                     `json:"limit"`
	SortOrder string                  `json:"sortOrder"`
	Total     int64                   `json:"total"`
	Data      []PopulatedListResponse `json:"data"`
}

// ToListPageResponse converts a page of lists.
func ToListPageResponse(page *model.ListPage) ListPageResponse {
	data := make([]PopulatedListResponse, 0, len(page.Lists))
	for _, l := range page.Lists {
		data = append(data, ToPopulatedListResponse(l))
	}
	return ListPageResponse{
		Offset:    page.Offset,
		Limit:     page.Limit,
		SortOrder: string(page.SortOrder),
		Total:     page.Total,
		Data:      data,
	}
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
