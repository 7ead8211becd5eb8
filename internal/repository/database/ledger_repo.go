package database

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/models"
)

type LedgerRepo struct {
	q postgres.Querier
}

const ledgerColumns = `id::text, direction, category, origin, member_id::text, due_id::text,
	amount::text, entry_date, description, receipt_type, receipt_number, created_at`

func scanLedgerEntry(row rowScanner) (models.LedgerEntry, error) {
	var (
		e                   models.LedgerEntry
		direction, category string
		origin, amount      string
		date                time.Time
		rType, rNumber      *string
	)
	if err := row.Scan(&e.ID, &direction, &category, &origin, &e.MemberID, &e.DueID,
		&amount, &date, &e.Description, &rType, &rNumber, &e.CreatedAt); err != nil {
		return models.LedgerEntry{}, err
	}

	a, err := parseAmount(amount)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	e.Direction = models.Direction(direction)
	e.Category = models.ParseCategory(category)
	e.Origin = models.Origin(origin)
	e.Amount = a
	e.Date = toDate(date)
	if rType != nil || rNumber != nil {
		e.Receipt = &models.ReceiptDescriptor{Type: deref(rType), Number: deref(rNumber)}
	}
	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *LedgerRepo) Insert(ctx context.Context, e *models.LedgerEntry) error {
	var rType, rNumber *string
	if e.Receipt != nil {
		rType, rNumber = &e.Receipt.Type, &e.Receipt.Number
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			id, direction, category, origin, member_id, due_id,
			amount, entry_date, description, receipt_type, receipt_number, created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5::uuid, $6::uuid,
			$7::numeric, $8::date, $9, $10, $11, NOW()
		)
		RETURNING created_at`,
		e.ID, string(e.Direction), e.Category.String(), string(e.Origin), e.MemberID, e.DueID,
		e.Amount.String(), dateArg(e.Date), e.Description, rType, rNumber,
	).Scan(&e.CreatedAt)
	return mapErr(err, "ledger entry", e.ID)
}

func (r *LedgerRepo) Get(ctx context.Context, id string) (models.LedgerEntry, error) {
	e, err := scanLedgerEntry(r.q.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1::uuid`, id))
	return e, mapErr(err, "ledger entry", id)
}

func (r *LedgerRepo) LatestForDue(ctx context.Context, dueID string, origin models.Origin) (*models.LedgerEntry, error) {
	e, err := scanLedgerEntry(r.q.QueryRow(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE due_id = $1::uuid AND origin = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, dueID, string(origin)))
	if errors.Is(err, errNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, "ledger entry", dueID)
	}
	return &e, nil
}

func (r *LedgerRepo) CountForDue(ctx context.Context, dueID string, origin models.Origin) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM ledger_entries WHERE due_id = $1::uuid AND origin = $2`,
		dueID, string(origin),
	).Scan(&n)
	return n, mapErr(err, "ledger entry", dueID)
}

func (r *LedgerRepo) List(ctx context.Context, f models.LedgerFilter) ([]models.LedgerEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Direction != "" {
		add(`direction = ?`, string(f.Direction))
	}
	if f.Origin != "" {
		add(`origin = ?`, string(f.Origin))
	}
	if f.Category != "" {
		add(`category ILIKE ?`, "%"+f.Category+"%")
	}
	if f.From != nil {
		add(`entry_date >= ?::date`, dateArg(*f.From))
	}
	if f.To != nil {
		add(`entry_date <= ?::date`, dateArg(*f.To))
	}

	sql := `SELECT ` + ledgerColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sql += ` ORDER BY entry_date DESC, created_at DESC, id DESC`

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1::uuid`, id)
	if err != nil {
		return mapErr(err, "ledger entry", id)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "ledger entry", id)
	}
	return nil
}

func (r *LedgerRepo) DetachMember(ctx context.Context, memberID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE ledger_entries SET member_id = NULL, due_id = NULL
		WHERE member_id = $1::uuid
		   OR due_id IN (SELECT id FROM dues WHERE member_id = $1::uuid)`, memberID)
	return mapErr(err, "ledger entry", memberID)
}
