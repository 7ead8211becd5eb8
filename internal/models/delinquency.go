package models

import "github.com/shopspring/decimal"

// MemberDelinquency is one row of the overdue-by-member view.
type MemberDelinquency struct {
	Member     Member
	TotalOwed  decimal.Decimal
	OverdueDue int
	Dues       []Due // ordered by due date
}

type PeriodDelinquency struct {
	Period    Period
	TotalOwed decimal.Decimal
}
