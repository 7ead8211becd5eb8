package memory

import (
	"context"
	"sort"

	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
)

type attachmentRepo struct{ v view }

func (r attachmentRepo) Insert(_ context.Context, a *models.Attachment) error {
	return r.v.write(func(st *state) error {
		if (a.DueID == nil) == (a.LedgerEntryID == nil) {
			return apperr.Validation("attachment must belong to exactly one of a due or a ledger entry")
		}
		if a.DueID != nil {
			if _, ok := st.dues[*a.DueID]; !ok {
				return apperr.Conflict("attachment: due %s missing", *a.DueID)
			}
		}
		if a.LedgerEntryID != nil {
			if _, ok := st.ledger[*a.LedgerEntryID]; !ok {
				return apperr.Conflict("attachment: ledger entry %s missing", *a.LedgerEntryID)
			}
		}
		a.UploadedAt = r.v.now()
		st.attachments[a.ID] = *a
		st.next(a.ID)
		return nil
	})
}

func (r attachmentRepo) Get(_ context.Context, id string) (models.Attachment, error) {
	var out models.Attachment
	err := r.v.read(func(st *state) error {
		a, ok := st.attachments[id]
		if !ok {
			return apperr.NotFound("attachment %s", id)
		}
		out = a
		return nil
	})
	return out, err
}

func (r attachmentRepo) ListByDue(_ context.Context, dueID string) ([]models.Attachment, error) {
	return r.collect(func(a models.Attachment) bool { return a.DueID != nil && *a.DueID == dueID })
}

func (r attachmentRepo) ListByLedgerEntry(_ context.Context, entryID string) ([]models.Attachment, error) {
	return r.collect(func(a models.Attachment) bool { return a.LedgerEntryID != nil && *a.LedgerEntryID == entryID })
}

func (r attachmentRepo) collect(keep func(models.Attachment) bool) ([]models.Attachment, error) {
	var out []models.Attachment
	err := r.v.read(func(st *state) error {
		for _, a := range st.attachments {
			if keep(a) {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return st.order[out[i].ID] < st.order[out[j].ID] })
		return nil
	})
	return out, err
}

func (r attachmentRepo) Delete(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.attachments[id]; !ok {
			return apperr.NotFound("attachment %s", id)
		}
		delete(st.attachments, id)
		delete(st.order, id)
		return nil
	})
}
