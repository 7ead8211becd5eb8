package dues

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

type PeriodDue struct {
	models.Due
	MemberName string
	Status     models.DueStatus
}

type PeriodSummary struct {
	Period      models.Period
	Dues        []PeriodDue
	Total       decimal.Decimal
	Collected   decimal.Decimal
	Outstanding decimal.Decimal
}

// ListPeriod returns the period's dues, unpaid first, each with its status
// relative to today, plus the collected and outstanding totals.
func (s *Service) ListPeriod(ctx context.Context, caller access.Identity, period string) (PeriodSummary, error) {
	if err := s.authorize(caller, access.OpDueRead); err != nil {
		return PeriodSummary{}, err
	}
	p, err := models.ParsePeriod(period)
	if err != nil {
		return PeriodSummary{}, apperr.Validation("%v", err)
	}

	var (
		dues    []models.Due
		members []models.Member
	)
	err = s.store.InReadTx(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if dues, err = r.Dues.ListByPeriod(ctx, p); err != nil {
			return err
		}
		members, err = r.Members.List(ctx, models.MemberFilter{})
		return err
	})
	if err != nil {
		return PeriodSummary{}, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	today := s.clock.Today()
	out := PeriodSummary{Period: p, Dues: make([]PeriodDue, 0, len(dues))}
	for _, d := range dues {
		name, ok := names[d.MemberID]
		if !ok {
			name = "#" + d.MemberID
		}
		out.Dues = append(out.Dues, PeriodDue{Due: d, MemberName: name, Status: d.Status(today)})
		out.Total = out.Total.Add(d.Amount)
		if d.Paid {
			out.Collected = out.Collected.Add(d.Amount)
		}
	}
	out.Outstanding = out.Total.Sub(out.Collected)

	sort.SliceStable(out.Dues, func(i, j int) bool {
		if out.Dues[i].Paid != out.Dues[j].Paid {
			return !out.Dues[i].Paid
		}
		return out.Dues[i].ID < out.Dues[j].ID
	})
	return out, nil
}
