package memory

import (
	"context"
	"sort"
	"strings"

	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
)

type ledgerRepo struct{ v view }

func (r ledgerRepo) Insert(_ context.Context, e *models.LedgerEntry) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.ledger[e.ID]; ok {
			return apperr.Conflict("ledger entry %s exists", e.ID)
		}
		if e.DueID != nil {
			if _, ok := st.dues[*e.DueID]; !ok {
				return apperr.Conflict("ledger entry: due %s missing", *e.DueID)
			}
		}
		if e.MemberID != nil {
			if _, ok := st.members[*e.MemberID]; !ok {
				return apperr.Conflict("ledger entry: member %s missing", *e.MemberID)
			}
		}
		e.CreatedAt = r.v.now()
		st.ledger[e.ID] = *e
		st.next(e.ID)
		return nil
	})
}

func (r ledgerRepo) Get(_ context.Context, id string) (models.LedgerEntry, error) {
	var out models.LedgerEntry
	err := r.v.read(func(st *state) error {
		e, ok := st.ledger[id]
		if !ok {
			return apperr.NotFound("ledger entry %s", id)
		}
		out = e
		return nil
	})
	return out, err
}

func (r ledgerRepo) forDue(st *state, dueID string, origin models.Origin) []models.LedgerEntry {
	var out []models.LedgerEntry
	for _, e := range st.ledger {
		if e.DueID != nil && *e.DueID == dueID && e.Origin == origin {
			out = append(out, e)
		}
	}
	return out
}

func (r ledgerRepo) LatestForDue(_ context.Context, dueID string, origin models.Origin) (*models.LedgerEntry, error) {
	var latest *models.LedgerEntry
	err := r.v.read(func(st *state) error {
		for _, e := range r.forDue(st, dueID, origin) {
			if latest == nil || st.order[e.ID] > st.order[latest.ID] {
				latest = &e
			}
		}
		return nil
	})
	return latest, err
}

func (r ledgerRepo) CountForDue(_ context.Context, dueID string, origin models.Origin) (int, error) {
	n := 0
	err := r.v.read(func(st *state) error {
		n = len(r.forDue(st, dueID, origin))
		return nil
	})
	return n, err
}

func (r ledgerRepo) List(_ context.Context, f models.LedgerFilter) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := r.v.read(func(st *state) error {
		for _, e := range st.ledger {
			if matches(e, f) {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Date != out[j].Date {
				return out[j].Date.Before(out[i].Date)
			}
			return st.order[out[i].ID] > st.order[out[j].ID]
		})
		return nil
	})
	return out, err
}

func matches(e models.LedgerEntry, f models.LedgerFilter) bool {
	switch {
	case f.Direction != "" && e.Direction != f.Direction:
		return false
	case f.Origin != "" && e.Origin != f.Origin:
		return false
	case f.Category != "" && !strings.Contains(strings.ToLower(e.Category.String()), strings.ToLower(f.Category)):
		return false
	case f.From != nil && e.Date.Before(*f.From):
		return false
	case f.To != nil && e.Date.After(*f.To):
		return false
	}
	return true
}

func (r ledgerRepo) Delete(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.ledger[id]; !ok {
			return apperr.NotFound("ledger entry %s", id)
		}
		for _, a := range st.attachments {
			if a.LedgerEntryID != nil && *a.LedgerEntryID == id {
				return apperr.Conflict("ledger entry %s still has attachments", id)
			}
		}
		delete(st.ledger, id)
		delete(st.order, id)
		return nil
	})
}

func (r ledgerRepo) DetachMember(_ context.Context, memberID string) error {
	return r.v.write(func(st *state) error {
		for id, e := range st.ledger {
			byMember := e.MemberID != nil && *e.MemberID == memberID
			byDue := false
			if e.DueID != nil {
				d, ok := st.dues[*e.DueID]
				byDue = ok && d.MemberID == memberID
			}
			if byMember || byDue {
				e.MemberID, e.DueID = nil, nil
				st.ledger[id] = e
			}
		}
		return nil
	})
}
