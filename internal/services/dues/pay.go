package dues

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

// Receipt is an optional uploaded proof of payment.
type Receipt struct {
	Name string
	Data []byte
}

type PaymentResult struct {
	Due         models.Due
	LedgerEntry models.LedgerEntry
	Attachment  *models.Attachment
	// ReceiptRejected is set when a receipt was supplied with a disallowed
	// extension. The payment itself still went through.
	ReceiptRejected bool
	Warning         string
}

// Pay marks the due paid today, posts the income entry and stores the
// receipt, all or nothing. Paying an already paid due is a conflict.
func (s *Service) Pay(ctx context.Context, caller access.Identity, dueID string, receipt *Receipt) (PaymentResult, error) {
	defer s.observe("pay")()

	if err := s.authorize(caller, access.OpDuePay); err != nil {
		return PaymentResult{}, err
	}

	log := s.log.With().Str("due_id", dueID).Str("by", caller.Subject).Logger()

	var res PaymentResult
	if receipt != nil && len(receipt.Data) == 0 {
		receipt = nil
	}
	if receipt != nil {
		switch {
		case !models.AllowedReceipt(receipt.Name):
			res.ReceiptRejected = true
			res.Warning = fmt.Sprintf("receipt %q ignored: allowed types are pdf, jpg, jpeg, png", receipt.Name)
			s.metrics.IncReceiptRejected()
			log.Warn().Str("file", receipt.Name).Msg("receipt rejected")
			receipt = nil
		case int64(len(receipt.Data)) > s.maxReceipt:
			return PaymentResult{}, apperr.Validation("receipt exceeds %d bytes", s.maxReceipt)
		}
	}

	today := s.clock.Today()
	var stored []string

	err := s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		due, err := r.Dues.GetForUpdate(ctx, dueID)
		if err != nil {
			return err
		}
		if due.Paid {
			s.metrics.IncConflict()
			return apperr.Conflict("due %s already paid on %s", due.ID, due.PaidOn)
		}

		if err := r.Dues.MarkPaid(ctx, due.ID, today); err != nil {
			return err
		}
		due.Paid, due.PaidOn = true, &today

		entry := models.LedgerEntry{
			ID:          uuid.NewString(),
			Direction:   models.DirectionIncome,
			Category:    models.TextCategory(models.DuesCategoryLabel),
			Origin:      models.OriginDuePayment,
			MemberID:    &due.MemberID,
			DueID:       &due.ID,
			Amount:      due.Amount,
			Date:        today,
			Description: models.DuePaymentDescription(due.Period, due.MemberID),
		}
		if err := r.Ledger.Insert(ctx, &entry); err != nil {
			return err
		}

		var att *models.Attachment
		if receipt != nil {
			handle, err := s.files.Store(ctx, receipt.Data, receipt.Name)
			if err != nil {
				return asStorage(err, "store receipt")
			}
			stored = append(stored, handle)

			att = &models.Attachment{
				ID:       uuid.NewString(),
				Handle:   handle,
				FileName: cleanName(receipt.Name),
				DueID:    &due.ID,
			}
			if err := r.Attachments.Insert(ctx, att); err != nil {
				return err
			}
		}

		res.Due, res.LedgerEntry, res.Attachment = due, entry, att
		return nil
	})
	if err != nil {
		// the transaction rolled back; drop any file it would have referenced
		s.deleteFiles(context.WithoutCancel(ctx), stored)
		log.Warn().Err(err).Msg("payment failed")
		return PaymentResult{}, err
	}

	s.metrics.IncPaid()
	ev := log.Info().
		Str("period", res.Due.Period.String()).
		Str("amount", res.Due.Amount.StringFixed(2)).
		Str("ledger_entry_id", res.LedgerEntry.ID)
	if res.Attachment != nil {
		ev = ev.Str("attachment_id", res.Attachment.ID)
	}
	ev.Msg("due paid")

	return res, nil
}

func cleanName(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}
