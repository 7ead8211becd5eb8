package memory

import (
	"context"
	"sort"
	"strings"

	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
)

type memberRepo struct{ v view }

func documentTaken(st *state, doc *string, except string) bool {
	if doc == nil {
		return false
	}
	for id, m := range st.members {
		if id != except && m.DocumentNumber != nil && *m.DocumentNumber == *doc {
			return true
		}
	}
	return false
}

func (r memberRepo) Create(_ context.Context, m *models.Member) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.members[m.ID]; ok {
			return apperr.Conflict("member %s exists", m.ID)
		}
		if documentTaken(st, m.DocumentNumber, m.ID) {
			return apperr.Conflict("member: document number %s in use", *m.DocumentNumber)
		}
		m.CreatedAt = r.v.now()
		st.members[m.ID] = *m
		st.next(m.ID)
		return nil
	})
}

func (r memberRepo) Update(_ context.Context, m *models.Member) error {
	return r.v.write(func(st *state) error {
		old, ok := st.members[m.ID]
		if !ok {
			return apperr.NotFound("member %s", m.ID)
		}
		if documentTaken(st, m.DocumentNumber, m.ID) {
			return apperr.Conflict("member: document number %s in use", *m.DocumentNumber)
		}
		m.CreatedAt = old.CreatedAt
		st.members[m.ID] = *m
		return nil
	})
}

func (r memberRepo) Get(_ context.Context, id string) (models.Member, error) {
	var out models.Member
	err := r.v.read(func(st *state) error {
		m, ok := st.members[id]
		if !ok {
			return apperr.NotFound("member %s", id)
		}
		out = m
		return nil
	})
	return out, err
}

func (r memberRepo) List(_ context.Context, f models.MemberFilter) ([]models.Member, error) {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	return r.collect(func(m models.Member) bool {
		if f.Active != nil && m.Active != *f.Active {
			return false
		}
		if q == "" {
			return true
		}
		return contains(&m.Name, q) || contains(m.Email, q) || contains(m.DocumentNumber, q)
	})
}

func contains(s *string, q string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), q)
}

func (r memberRepo) ListActiveWithPositiveDue(_ context.Context) ([]models.Member, error) {
	return r.collect(models.Member.Billable)
}

func (r memberRepo) collect(keep func(models.Member) bool) ([]models.Member, error) {
	var out []models.Member
	err := r.v.read(func(st *state) error {
		for _, m := range st.members {
			if keep(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r memberRepo) UpsertByDocument(_ context.Context, m *models.Member) (bool, error) {
	created := false
	err := r.v.write(func(st *state) error {
		if m.DocumentNumber != nil {
			for id, old := range st.members {
				if old.DocumentNumber == nil || *old.DocumentNumber != *m.DocumentNumber {
					continue
				}
				if m.Name == "" {
					m.Name = old.Name
				}
				if m.Email == nil {
					m.Email = old.Email
				}
				if m.Phone == nil {
					m.Phone = old.Phone
				}
				m.ID = id
				m.CreatedAt = old.CreatedAt
				st.members[id] = *m
				return nil
			}
		}
		m.CreatedAt = r.v.now()
		st.members[m.ID] = *m
		st.next(m.ID)
		created = true
		return nil
	})
	return created, err
}

func (r memberRepo) Delete(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.members[id]; !ok {
			return apperr.NotFound("member %s", id)
		}
		for _, d := range st.dues {
			if d.MemberID == id {
				return apperr.Conflict("member %s still has dues", id)
			}
		}
		for _, e := range st.ledger {
			if e.MemberID != nil && *e.MemberID == id {
				return apperr.Conflict("member %s still referenced by ledger", id)
			}
		}
		delete(st.members, id)
		delete(st.order, id)
		return nil
	})
}
