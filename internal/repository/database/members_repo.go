package database

import (
	"context"
	"strconv"
	"strings"

	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/models"
)

type MemberRepo struct {
	q postgres.Querier
}

const memberColumns = `id::text, name, email, phone, document_number, active, monthly_due::text, created_at`

func scanMember(row rowScanner) (models.Member, error) {
	var (
		m      models.Member
		amount string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.DocumentNumber, &m.Active, &amount, &m.CreatedAt); err != nil {
		return models.Member{}, err
	}
	due, err := parseAmount(amount)
	if err != nil {
		return models.Member{}, err
	}
	m.MonthlyDue = due
	return m, nil
}

func (r *MemberRepo) Create(ctx context.Context, m *models.Member) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO members (id, name, email, phone, document_number, active, monthly_due, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::numeric, NOW())
		RETURNING created_at`,
		m.ID, m.Name, m.Email, m.Phone, m.DocumentNumber, m.Active, m.MonthlyDue.String(),
	).Scan(&m.CreatedAt)
	return mapErr(err, "member", m.ID)
}

func (r *MemberRepo) Update(ctx context.Context, m *models.Member) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE members
		SET name = $2, email = $3, phone = $4, document_number = $5, active = $6, monthly_due = $7::numeric
		WHERE id = $1::uuid`,
		m.ID, m.Name, m.Email, m.Phone, m.DocumentNumber, m.Active, m.MonthlyDue.String(),
	)
	if err != nil {
		return mapErr(err, "member", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "member", m.ID)
	}
	return nil
}

func (r *MemberRepo) Get(ctx context.Context, id string) (models.Member, error) {
	m, err := scanMember(r.q.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1::uuid`, id))
	return m, mapErr(err, "member", id)
}

func (r *MemberRepo) List(ctx context.Context, f models.MemberFilter) ([]models.Member, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, `(name ILIKE $1 OR email ILIKE $1 OR document_number ILIKE $1)`)
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, `active = $`+strconv.Itoa(len(args)))
	}

	sql := `SELECT ` + memberColumns + ` FROM members`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sql += ` ORDER BY name, id`

	return r.list(ctx, sql, args...)
}

func (r *MemberRepo) ListActiveWithPositiveDue(ctx context.Context) ([]models.Member, error) {
	return r.list(ctx, `SELECT `+memberColumns+` FROM members WHERE active AND monthly_due > 0 ORDER BY name, id`)
}

func (r *MemberRepo) list(ctx context.Context, sql string, args ...any) ([]models.Member, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MemberRepo) UpsertByDocument(ctx context.Context, m *models.Member) (bool, error) {
	var inserted bool
	err := r.q.QueryRow(ctx, `
		INSERT INTO members (id, name, email, phone, document_number, active, monthly_due, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::numeric, NOW())
		ON CONFLICT (document_number) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), members.name),
			email = COALESCE(EXCLUDED.email, members.email),
			phone = COALESCE(EXCLUDED.phone, members.phone),
			active = EXCLUDED.active,
			monthly_due = EXCLUDED.monthly_due
		RETURNING id::text, created_at, (xmax = 0)`,
		m.ID, m.Name, m.Email, m.Phone, m.DocumentNumber, m.Active, m.MonthlyDue.String(),
	).Scan(&m.ID, &m.CreatedAt, &inserted)
	if err != nil {
		return false, mapErr(err, "member", m.ID)
	}
	return inserted, nil
}

func (r *MemberRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM members WHERE id = $1::uuid`, id)
	if err != nil {
		return mapErr(err, "member", id)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "member", id)
	}
	return nil
}
