package model

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SortOrder controls the createdAt ordering of list pages.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder returns SortAsc only for "asc"; anything else sorts newest first.
func ParseSortOrder(s string) SortOrder {
	if s == string(SortAsc) {
		return SortAsc
	}
	return SortDesc
}

// ExpensesList is a named grouping of expenses.
//
// ExpenseIDs is maintained by the mutation service, not by the store, so it
// can briefly reference an expense that no longer exists.
type ExpensesList struct {
	ID            primitive.ObjectID   `bson:"_id" json:"id"`
	Name          string               `bson:"name" json:"name"`
	CreatorID     primitive.ObjectID   `bson:"creator_id" json:"creatorId"`
	ExpenseIDs    []primitive.ObjectID `bson:"expense_ids" json:"expenseIds"`
	MemberUserIDs []primitive.ObjectID `bson:"member_user_ids" json:"memberUserIds"`
	CreatedAt     time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updated_at" json:"updatedAt"`
}

// PopulatedList is a list joined with its creator and currently linked expenses.
type PopulatedList struct {
	List     *ExpensesList
	Creator  *User
	Expenses []*PopulatedExpense
}

// Total folds the price of every populated expense. It is computed on every
// read and never stored.
func (p *PopulatedList) Total() decimal.Decimal {
	expenses := make([]*Expense, 0, len(p.Expenses))
	for _, e := range p.Expenses {
		expenses = append(expenses, e.Expense)
	}
	return SumPrices(expenses)
}

// ListPage is one page of lists plus the overall count.
type ListPage struct {
	Lists     []*PopulatedList
	Offset    int
	Limit     int
	SortOrder SortOrder
	Total     int64
}
