package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Member struct {
	ID             string
	Name           string
	Email          *string
	Phone          *string // E.164, used for WhatsApp
	DocumentNumber *string
	Active         bool
	MonthlyDue     decimal.Decimal // zero means no dues are generated
	CreatedAt      time.Time
}

// Billable reports whether the due generator should create dues for m.
func (m Member) Billable() bool {
	return m.Active && m.MonthlyDue.IsPositive()
}

type MemberFilter struct {
	Query  string
	Active *bool
}
