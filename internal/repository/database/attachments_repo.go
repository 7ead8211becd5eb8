package database

import (
	"context"

	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/models"
)

type AttachmentRepo struct {
	q postgres.Querier
}

const attachmentColumns = `id::text, handle, file_name, due_id::text, ledger_entry_id::text, uploaded_at`

func scanAttachment(row rowScanner) (models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.Handle, &a.FileName, &a.DueID, &a.LedgerEntryID, &a.UploadedAt)
	return a, err
}

func (r *AttachmentRepo) Insert(ctx context.Context, a *models.Attachment) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO attachments (id, handle, file_name, due_id, ledger_entry_id, uploaded_at)
		VALUES ($1::uuid, $2, $3, $4::uuid, $5::uuid, NOW())
		RETURNING uploaded_at`,
		a.ID, a.Handle, a.FileName, a.DueID, a.LedgerEntryID,
	).Scan(&a.UploadedAt)
	return mapErr(err, "attachment", a.ID)
}

func (r *AttachmentRepo) Get(ctx context.Context, id string) (models.Attachment, error) {
	a, err := scanAttachment(r.q.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = $1::uuid`, id))
	return a, mapErr(err, "attachment", id)
}

func (r *AttachmentRepo) ListByDue(ctx context.Context, dueID string) ([]models.Attachment, error) {
	return r.list(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE due_id = $1::uuid ORDER BY uploaded_at, id`, dueID)
}

func (r *AttachmentRepo) ListByLedgerEntry(ctx context.Context, entryID string) ([]models.Attachment, error) {
	return r.list(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE ledger_entry_id = $1::uuid ORDER BY uploaded_at, id`, entryID)
}

func (r *AttachmentRepo) list(ctx context.Context, sql string, args ...any) ([]models.Attachment, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AttachmentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM attachments WHERE id = $1::uuid`, id)
	if err != nil {
		return mapErr(err, "attachment", id)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(errNoRows, "attachment", id)
	}
	return nil
}
