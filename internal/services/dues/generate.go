package dues

import (
	"context"

	"github.com/google/uuid"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

// Generate creates one due per billable member for the period and reports
// how many were created. Members already covered for the period are
// skipped, so repeated calls are no-ops.
func (s *Service) Generate(ctx context.Context, caller access.Identity, period string) (int, error) {
	defer s.observe("generate")()

	if err := s.authorize(caller, access.OpDueGenerate); err != nil {
		return 0, err
	}
	p, err := models.ParsePeriod(period)
	if err != nil {
		return 0, apperr.Validation("%v", err)
	}

	created := 0
	err = s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		created = 0
		members, err := r.Members.ListActiveWithPositiveDue(ctx)
		if err != nil {
			return err
		}

		for _, m := range members {
			d := models.Due{
				ID:       uuid.NewString(),
				MemberID: m.ID,
				Period:   p,
				Amount:   m.MonthlyDue,
				DueDate:  p.DueDate(),
			}
			ok, err := r.Dues.InsertIfAbsent(ctx, &d)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("period", p.String()).Msg("generate failed")
		return 0, err
	}

	s.metrics.AddGenerated(created)
	s.log.Info().
		Str("period", p.String()).
		Int("created", created).
		Str("by", caller.Subject).
		Msg("dues generated")
	return created, nil
}
