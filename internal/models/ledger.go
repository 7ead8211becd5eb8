package models

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

type Origin string

const (
	OriginManual     Origin = "manual"
	OriginDuePayment Origin = "due-payment"
)

// DuesCategoryLabel is the category every dues payment is posted under.
const DuesCategoryLabel = "Membership dues"

type CategoryKind string

const (
	CategoryText CategoryKind = "text"
	CategoryRef  CategoryKind = "ref"
)

// Category is either free text or a reference to an external taxonomy entry.
type Category struct {
	Kind  CategoryKind
	Value string
}

func TextCategory(s string) Category { return Category{Kind: CategoryText, Value: strings.TrimSpace(s)} }

func RefCategory(id string) Category { return Category{Kind: CategoryRef, Value: strings.TrimSpace(id)} }

const refPrefix = "ref:"

func (c Category) IsZero() bool { return c.Value == "" }

// Ambiguous reports a text category that would read back as a reference.
func (c Category) Ambiguous() bool {
	return c.Kind == CategoryText && strings.HasPrefix(c.Value, refPrefix)
}

func (c Category) String() string {
	if c.Kind == CategoryRef {
		return refPrefix + c.Value
	}
	return c.Value
}

// ParseCategory reverses String.
func ParseCategory(s string) Category {
	if rest, ok := strings.CutPrefix(s, refPrefix); ok {
		return RefCategory(rest)
	}
	return TextCategory(s)
}

// ReceiptDescriptor is a paper receipt reference kept as text, not a file.
type ReceiptDescriptor struct {
	Type   string
	Number string
}

type LedgerEntry struct {
	ID          string
	Direction   Direction
	Category    Category
	Origin      Origin
	MemberID    *string
	DueID       *string
	Amount      decimal.Decimal
	Date        civil.Date
	Description string
	Receipt     *ReceiptDescriptor
	CreatedAt   time.Time
}

// DuePaymentDescription is the synthesized description for posted payments.
func DuePaymentDescription(p Period, memberID string) string {
	return fmt.Sprintf("Dues %s member #%s", p, memberID)
}

type LedgerFilter struct {
	Direction Direction
	Origin    Origin
	Category  string
	From      *civil.Date
	To        *civil.Date
}

type LedgerTotals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}
