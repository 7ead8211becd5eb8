package dues

import (
	"context"

	"acp_dues/internal/access"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

type ReversalResult struct {
	Due models.Due
	// WasPaid is false when the due was already unpaid; the reversal still
	// clears any leftover attachments or entries.
	WasPaid            bool
	RemovedEntryID     string
	RemovedAttachments int
	// LedgerEntryMissing flags a paid due that had no posted payment entry.
	LedgerEntryMissing bool
	Warning            string
}

// Reverse undoes a payment: it deletes the due's attachments, the most recent
// payment entry with its attachments, and resets the due to unpaid. Stored
// files are deleted after commit, best-effort.
func (s *Service) Reverse(ctx context.Context, caller access.Identity, dueID string) (ReversalResult, error) {
	defer s.observe("reverse")()

	if err := s.authorize(caller, access.OpDueReverse); err != nil {
		return ReversalResult{}, err
	}

	log := s.log.With().Str("due_id", dueID).Str("by", caller.Subject).Logger()

	var (
		res     ReversalResult
		handles []string
	)
	err := s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		res, handles = ReversalResult{}, nil

		due, err := r.Dues.GetForUpdate(ctx, dueID)
		if err != nil {
			return err
		}
		res.WasPaid = due.Paid

		dueAtts, err := r.Attachments.ListByDue(ctx, due.ID)
		if err != nil {
			return err
		}
		for _, a := range dueAtts {
			if err := r.Attachments.Delete(ctx, a.ID); err != nil {
				return err
			}
			handles = append(handles, a.Handle)
		}

		entry, err := r.Ledger.LatestForDue(ctx, due.ID, models.OriginDuePayment)
		if err != nil {
			return err
		}
		if entry != nil {
			entryAtts, err := r.Attachments.ListByLedgerEntry(ctx, entry.ID)
			if err != nil {
				return err
			}
			for _, a := range entryAtts {
				if err := r.Attachments.Delete(ctx, a.ID); err != nil {
					return err
				}
				handles = append(handles, a.Handle)
			}
			if err := r.Ledger.Delete(ctx, entry.ID); err != nil {
				return err
			}
			res.RemovedEntryID = entry.ID
		} else if due.Paid {
			res.LedgerEntryMissing = true
			res.Warning = "due was paid but had no payment ledger entry"
		}

		if err := r.Dues.MarkUnpaid(ctx, due.ID); err != nil {
			return err
		}
		due.Paid, due.PaidOn = false, nil

		res.Due = due
		res.RemovedAttachments = len(handles)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("reversal failed")
		return ReversalResult{}, err
	}

	s.deleteFiles(context.WithoutCancel(ctx), handles)
	s.metrics.IncReversed()

	if res.LedgerEntryMissing {
		log.Warn().Str("period", res.Due.Period.String()).Msg("reversed paid due without payment ledger entry")
	}
	log.Info().
		Bool("was_paid", res.WasPaid).
		Str("ledger_entry_id", res.RemovedEntryID).
		Int("attachments", res.RemovedAttachments).
		Msg("payment reversed")

	return res, nil
}
