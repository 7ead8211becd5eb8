package database

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/models"
)

type DueRepo struct {
	q postgres.Querier
}

const dueColumns = `id::text, member_id::text, period, amount::text, due_date, paid, paid_on, note, created_at`

func scanDue(row rowScanner) (models.Due, error) {
	var (
		d       models.Due
		period  string
		amount  string
		dueDate time.Time
		paidOn  *time.Time
	)
	if err := row.Scan(&d.ID, &d.MemberID, &period, &amount, &dueDate, &d.Paid, &paidOn, &d.Note, &d.CreatedAt); err != nil {
		return models.Due{}, err
	}

	p, err := models.ParsePeriod(period)
	if err != nil {
		return models.Due{}, err
	}
	a, err := parseAmount(amount)
	if err != nil {
		return models.Due{}, err
	}

	d.Period = p
	d.Amount = a
	d.DueDate = toDate(dueDate)
	d.PaidOn = toOptDate(paidOn)
	return d, nil
}

func (r *DueRepo) InsertIfAbsent(ctx context.Context, d *models.Due) (bool, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO dues (id, member_id, period, amount, due_date, paid, note, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4::numeric, $5::date, false, $6, NOW())
		ON CONFLICT (member_id, period) DO NOTHING
		RETURNING created_at`,
		d.ID, d.MemberID, d.Period.String(), d.Amount.String(), dateArg(d.DueDate), d.Note,
	).Scan(&d.CreatedAt)
	if errors.Is(err, errNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err, "due", d.ID)
	}
	return true, nil
}

func (r *DueRepo) Get(ctx context.Context, id string) (models.Due, error) {
	d, err := scanDue(r.q.QueryRow(ctx, `SELECT `+dueColumns+` FROM dues WHERE id = $1::uuid`, id))
	return d, mapErr(err, "due", id)
}

func (r *DueRepo) GetForUpdate(ctx context.Context, id string) (models.Due, error) {
	d, err := scanDue(r.q.QueryRow(ctx, `SELECT `+dueColumns+` FROM dues WHERE id = $1::uuid FOR UPDATE`, id))
	return d, mapErr(err, "due", id)
}

func (r *DueRepo) MarkPaid(ctx context.Context, id string, on civil.Date) error {
	return r.exec(ctx, id, `UPDATE dues SET paid = true, paid_on = $2::date WHERE id = $1::uuid`, id, dateArg(on))
}

func (r *DueRepo) MarkUnpaid(ctx context.Context, id string) error {
	return r.exec(ctx, id, `UPDATE dues SET paid = false, paid_on = NULL WHERE id = $1::uuid`, id)
}

func (r *DueRepo) exec(ctx context.Context, id, sql string, args ...any) error {
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err, "due", id)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "due", id)
	}
	return nil
}

func (r *DueRepo) ListByPeriod(ctx context.Context, p models.Period) ([]models.Due, error) {
	return r.list(ctx, `SELECT `+dueColumns+` FROM dues WHERE period = $1 ORDER BY id`, p.String())
}

func (r *DueRepo) ListByMember(ctx context.Context, memberID string) ([]models.Due, error) {
	return r.list(ctx, `SELECT `+dueColumns+` FROM dues WHERE member_id = $1::uuid ORDER BY due_date, id`, memberID)
}

func (r *DueRepo) ListUnpaidDueBefore(ctx context.Context, asOf civil.Date) ([]models.Due, error) {
	return r.list(ctx, `SELECT `+dueColumns+` FROM dues WHERE NOT paid AND due_date < $1::date ORDER BY due_date, id`, dateArg(asOf))
}

func (r *DueRepo) list(ctx context.Context, sql string, args ...any) ([]models.Due, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Due
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DueRepo) DeleteByMember(ctx context.Context, memberID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM dues WHERE member_id = $1::uuid`, memberID)
	return mapErr(err, "due", memberID)
}
