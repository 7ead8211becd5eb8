package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type Due struct {
	ID        string
	MemberID  string
	Period    Period
	Amount    decimal.Decimal // captured at generation time
	DueDate   civil.Date
	Paid      bool
	PaidOn    *civil.Date
	Note      *string
	CreatedAt time.Time
}

type DueStatus string

const (
	DueStatusPaid    DueStatus = "paid"
	DueStatusOverdue DueStatus = "overdue"
	DueStatusPending DueStatus = "pending"
)

// Overdue reports whether d is unpaid with a due date strictly before asOf.
func (d Due) Overdue(asOf civil.Date) bool {
	return !d.Paid && d.DueDate.Before(asOf)
}

func (d Due) Status(today civil.Date) DueStatus {
	switch {
	case d.Paid:
		return DueStatusPaid
	case d.Overdue(today):
		return DueStatusOverdue
	default:
		return DueStatusPending
	}
}
