package model

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Expense is a priced line item belonging to exactly one list.
type Expense struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Price       float64            `bson:"price" json:"price"`
	Description string             `bson:"description,omitempty" json:"expenseDescription,omitempty"`
	Date        *time.Time         `bson:"date,omitempty" json:"date,omitempty"`
	CreatorID   primitive.ObjectID `bson:"creator_id" json:"creatorId"`
	ListID      primitive.ObjectID `bson:"list_id" json:"listId"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ExpenseUpdate is a partial update; only non-nil fields change.
type ExpenseUpdate struct {
	Name        *string
	Price       *float64
	Description *string
	Date        *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u ExpenseUpdate) IsEmpty() bool {
	return u.Name == nil && u.Price == nil && u.Description == nil && u.Date == nil
}

// Apply returns a copy of e with the update applied.
func (u ExpenseUpdate) Apply(e Expense) Expense {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Price != nil {
		e.Price = *u.Price
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Date != nil {
		d := *u.Date
		e.Date = &d
	}
	return e
}

// PopulatedExpense is an expense joined with its creator.
// Creator is nil when the creating user no longer exists.
type PopulatedExpense struct {
	Expense *Expense
	Creator *User
}

// SumPrices adds prices as decimals so 10.50 + 5.25 is exactly 15.75.
func SumPrices(expenses []*Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		if e == nil {
			continue
		}
		total = total.Add(decimal.NewFromFloat(e.Price))
	}
	return total
}
