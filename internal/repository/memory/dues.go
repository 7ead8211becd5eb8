package memory

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"

	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
)

type dueRepo struct{ v view }

func (r dueRepo) InsertIfAbsent(_ context.Context, d *models.Due) (bool, error) {
	created := false
	err := r.v.write(func(st *state) error {
		if _, ok := st.members[d.MemberID]; !ok {
			return apperr.Conflict("due: member %s missing", d.MemberID)
		}
		for _, old := range st.dues {
			if old.MemberID == d.MemberID && old.Period == d.Period {
				return nil
			}
		}
		d.Paid, d.PaidOn = false, nil
		d.CreatedAt = r.v.now()
		st.dues[d.ID] = *d
		st.next(d.ID)
		created = true
		return nil
	})
	return created, err
}

func (r dueRepo) Get(_ context.Context, id string) (models.Due, error) {
	var out models.Due
	err := r.v.read(func(st *state) error {
		d, ok := st.dues[id]
		if !ok {
			return apperr.NotFound("due %s", id)
		}
		out = d
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions already hold the store lock.
func (r dueRepo) GetForUpdate(ctx context.Context, id string) (models.Due, error) {
	return r.Get(ctx, id)
}

func (r dueRepo) MarkPaid(_ context.Context, id string, on civil.Date) error {
	return r.update(id, func(d *models.Due) {
		d.Paid = true
		d.PaidOn = &on
	})
}

func (r dueRepo) MarkUnpaid(_ context.Context, id string) error {
	return r.update(id, func(d *models.Due) {
		d.Paid = false
		d.PaidOn = nil
	})
}

func (r dueRepo) update(id string, fn func(d *models.Due)) error {
	return r.v.write(func(st *state) error {
		d, ok := st.dues[id]
		if !ok {
			return apperr.NotFound("due %s", id)
		}
		fn(&d)
		st.dues[id] = d
		return nil
	})
}

func (r dueRepo) ListByPeriod(_ context.Context, p models.Period) ([]models.Due, error) {
	out, err := r.collect(func(d models.Due) bool { return d.Period == p })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r dueRepo) ListByMember(_ context.Context, memberID string) ([]models.Due, error) {
	out, err := r.collect(func(d models.Due) bool { return d.MemberID == memberID })
	sortByDueDate(out)
	return out, err
}

func (r dueRepo) ListUnpaidDueBefore(_ context.Context, asOf civil.Date) ([]models.Due, error) {
	out, err := r.collect(func(d models.Due) bool { return d.Overdue(asOf) })
	sortByDueDate(out)
	return out, err
}

func sortByDueDate(ds []models.Due) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].DueDate != ds[j].DueDate {
			return ds[i].DueDate.Before(ds[j].DueDate)
		}
		return ds[i].ID < ds[j].ID
	})
}

func (r dueRepo) collect(keep func(models.Due) bool) ([]models.Due, error) {
	var out []models.Due
	err := r.v.read(func(st *state) error {
		for _, d := range st.dues {
			if keep(d) {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

func (r dueRepo) DeleteByMember(_ context.Context, memberID string) error {
	return r.v.write(func(st *state) error {
		for id, d := range st.dues {
			if d.MemberID != memberID {
				continue
			}
			for _, a := range st.attachments {
				if a.DueID != nil && *a.DueID == id {
					return apperr.Conflict("due %s still has attachments", id)
				}
			}
			for _, e := range st.ledger {
				if e.DueID != nil && *e.DueID == id {
					return apperr.Conflict("due %s still referenced by ledger", id)
				}
			}
		}
		for id, d := range st.dues {
			if d.MemberID == memberID {
				delete(st.dues, id)
				delete(st.order, id)
			}
		}
		return nil
	})
}
