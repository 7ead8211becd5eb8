// Package delinquency computes who owes what as of a date. Each report reads
// one committed snapshot and nothing is kept between calls.
package delinquency

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"acp_dues/internal/access"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

type Aggregator struct {
	store ports.Store
}

func NewAggregator(store ports.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Overdue groups unpaid dues with due date before asOf by member, ordered by
// member name.
func (a *Aggregator) Overdue(ctx context.Context, caller access.Identity, asOf civil.Date) ([]models.MemberDelinquency, error) {
	if err := access.Authorize(caller, access.OpReportRead); err != nil {
		return nil, err
	}
	return a.overdue(ctx, asOf)
}

func (a *Aggregator) overdue(ctx context.Context, asOf civil.Date) ([]models.MemberDelinquency, error) {
	var (
		dues    []models.Due
		members map[string]models.Member
	)
	err := a.store.InReadTx(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if dues, err = r.Dues.ListUnpaidDueBefore(ctx, asOf); err != nil {
			return err
		}
		all, err := r.Members.List(ctx, models.MemberFilter{})
		if err != nil {
			return err
		}
		members = make(map[string]models.Member, len(all))
		for _, m := range all {
			members[m.ID] = m
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byMember := map[string]*models.MemberDelinquency{}
	for _, d := range dues {
		if !d.Overdue(asOf) {
			continue
		}
		row, ok := byMember[d.MemberID]
		if !ok {
			m, found := members[d.MemberID]
			if !found {
				return nil, fmt.Errorf("due %s references missing member %s", d.ID, d.MemberID)
			}
			row = &models.MemberDelinquency{Member: m, TotalOwed: decimal.Zero}
			byMember[d.MemberID] = row
		}
		row.TotalOwed = row.TotalOwed.Add(d.Amount)
		row.OverdueDue++
		row.Dues = append(row.Dues, d)
	}

	out := make([]models.MemberDelinquency, 0, len(byMember))
	for _, row := range byMember {
		sort.Slice(row.Dues, func(i, j int) bool {
			if row.Dues[i].DueDate != row.Dues[j].DueDate {
				return row.Dues[i].DueDate.Before(row.Dues[j].DueDate)
			}
			return row.Dues[i].ID < row.Dues[j].ID
		})
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Member.Name != out[j].Member.Name {
			return out[i].Member.Name < out[j].Member.Name
		}
		return out[i].Member.ID < out[j].Member.ID
	})
	return out, nil
}

// OverdueByPeriod sums the same dues by the period of their due date,
// ordered by period.
func (a *Aggregator) OverdueByPeriod(ctx context.Context, caller access.Identity, asOf civil.Date) ([]models.PeriodDelinquency, error) {
	if err := access.Authorize(caller, access.OpReportRead); err != nil {
		return nil, err
	}

	var dues []models.Due
	err := a.store.InReadTx(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		dues, err = r.Dues.ListUnpaidDueBefore(ctx, asOf)
		return err
	})
	if err != nil {
		return nil, err
	}

	totals := map[models.Period]decimal.Decimal{}
	for _, d := range dues {
		if !d.Overdue(asOf) {
			continue
		}
		p := models.PeriodOf(d.DueDate)
		totals[p] = totals[p].Add(d.Amount)
	}

	out := make([]models.PeriodDelinquency, 0, len(totals))
	for p, total := range totals {
		out = append(out, models.PeriodDelinquency{Period: p, TotalOwed: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.String() < out[j].Period.String() })
	return out, nil
}

// Targets is Overdue for the reminder dispatcher, authorized as a send.
func (a *Aggregator) Targets(ctx context.Context, caller access.Identity, asOf civil.Date) ([]models.MemberDelinquency, error) {
	if err := access.Authorize(caller, access.OpReminderSend); err != nil {
		return nil, err
	}
	return a.overdue(ctx, asOf)
}
