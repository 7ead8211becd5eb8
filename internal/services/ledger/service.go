// Package ledger is the unified income and expense book. Dues payments post
// into the same repository from the dues service.
package ledger

import (
	"context"
	"errors"
	"path"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/clock"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

type Service struct {
	store ports.Store
	files ports.FileStore
	clock clock.Clock
	log   zerolog.Logger
}

func NewService(store ports.Store, files ports.FileStore, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{store: store, files: files, clock: clk, log: log.With().Str("component", "ledger").Logger()}
}

// EntryInput is a manual entry. A nil Date means today.
type EntryInput struct {
	Direction   models.Direction
	Category    models.Category
	Amount      decimal.Decimal
	Date        *civil.Date
	Description string
	Receipt     *models.ReceiptDescriptor
	// File is an optional document kept as an attachment of the entry.
	File *File
}

type File struct {
	Name string
	Data []byte
}

type Listing struct {
	Entries []models.LedgerEntry
	Totals  models.LedgerTotals
}

func (s *Service) CreateEntry(ctx context.Context, caller access.Identity, in EntryInput) (models.LedgerEntry, error) {
	if err := access.Authorize(caller, access.OpLedgerWrite); err != nil {
		return models.LedgerEntry{}, err
	}
	if !in.Direction.Valid() {
		return models.LedgerEntry{}, apperr.Validation("direction must be income or expense, got %q", in.Direction)
	}
	if in.Amount.IsNegative() {
		return models.LedgerEntry{}, apperr.Validation("amount must not be negative")
	}
	if in.Category.Kind == "" {
		in.Category.Kind = models.CategoryText
	}
	if in.Category.Kind != models.CategoryText && in.Category.Kind != models.CategoryRef {
		return models.LedgerEntry{}, apperr.Validation("unknown category kind %q", in.Category.Kind)
	}
	if in.Category.Kind == models.CategoryRef && in.Category.IsZero() {
		return models.LedgerEntry{}, apperr.Validation("category reference is empty")
	}
	if in.Category.Ambiguous() {
		return models.LedgerEntry{}, apperr.Validation("text category must not start with %q", "ref:")
	}
	if in.Receipt != nil {
		in.Receipt.Type = strings.TrimSpace(in.Receipt.Type)
		in.Receipt.Number = strings.TrimSpace(in.Receipt.Number)
		if in.Receipt.Type == "" && in.Receipt.Number == "" {
			in.Receipt = nil
		}
	}
	if in.File != nil && len(in.File.Data) == 0 {
		in.File = nil
	}

	date := s.clock.Today()
	if in.Date != nil {
		if !in.Date.IsValid() {
			return models.LedgerEntry{}, apperr.Validation("invalid date %s", in.Date)
		}
		date = *in.Date
	}

	e := models.LedgerEntry{
		ID:          uuid.NewString(),
		Direction:   in.Direction,
		Category:    in.Category,
		Origin:      models.OriginManual,
		Amount:      in.Amount.Round(2),
		Date:        date,
		Description: strings.TrimSpace(in.Description),
		Receipt:     in.Receipt,
	}

	var stored string
	err := s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		if err := r.Ledger.Insert(ctx, &e); err != nil {
			return err
		}
		if in.File == nil {
			return nil
		}

		handle, err := s.files.Store(ctx, in.File.Data, in.File.Name)
		if err != nil {
			if errors.Is(err, apperr.ErrStorage) {
				return err
			}
			return apperr.Storage(err, "store ledger document")
		}
		stored = handle

		return r.Attachments.Insert(ctx, &models.Attachment{
			ID:            uuid.NewString(),
			Handle:        handle,
			FileName:      path.Base(strings.ReplaceAll(in.File.Name, "\\", "/")),
			LedgerEntryID: &e.ID,
		})
	})
	if err != nil {
		if stored != "" {
			s.deleteFile(context.WithoutCancel(ctx), stored)
		}
		return models.LedgerEntry{}, err
	}

	s.log.Info().
		Str("entry_id", e.ID).
		Str("direction", string(e.Direction)).
		Str("amount", e.Amount.StringFixed(2)).
		Str("by", caller.Subject).
		Msg("ledger entry created")
	return e, nil
}

// List returns the entries matching f with their totals.
func (s *Service) List(ctx context.Context, caller access.Identity, f models.LedgerFilter) (Listing, error) {
	if err := access.Authorize(caller, access.OpLedgerRead); err != nil {
		return Listing{}, err
	}
	if f.Direction != "" && !f.Direction.Valid() {
		return Listing{}, apperr.Validation("unknown direction %q", f.Direction)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return Listing{}, apperr.Validation("from %s is after to %s", f.From, f.To)
	}

	entries, err := s.store.Repos().Ledger.List(ctx, f)
	if err != nil {
		return Listing{}, err
	}
	return Listing{Entries: entries, Totals: Totals(entries)}, nil
}

func Totals(entries []models.LedgerEntry) models.LedgerTotals {
	t := models.LedgerTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, e := range entries {
		switch e.Direction {
		case models.DirectionIncome:
			t.Income = t.Income.Add(e.Amount)
		case models.DirectionExpense:
			t.Expense = t.Expense.Add(e.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// DeleteEntry removes a ledger entry and its attachments. Entries posted by a
// due payment can be deleted too; reversing that due then reports the entry
// as missing.
func (s *Service) DeleteEntry(ctx context.Context, caller access.Identity, id string) error {
	if err := access.Authorize(caller, access.OpLedgerWrite); err != nil {
		return err
	}

	var handles []string
	var origin models.Origin
	err := s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		handles = nil
		e, err := r.Ledger.Get(ctx, id)
		if err != nil {
			return err
		}
		origin = e.Origin

		atts, err := r.Attachments.ListByLedgerEntry(ctx, id)
		if err != nil {
			return err
		}
		for _, a := range atts {
			if err := r.Attachments.Delete(ctx, a.ID); err != nil {
				return err
			}
			handles = append(handles, a.Handle)
		}
		return r.Ledger.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, h := range handles {
		s.deleteFile(context.WithoutCancel(ctx), h)
	}

	ev := s.log.Info()
	if origin == models.OriginDuePayment {
		ev = s.log.Warn()
	}
	ev.Str("entry_id", id).Str("origin", string(origin)).Str("by", caller.Subject).Msg("ledger entry deleted")
	return nil
}

// GetAttachment returns the attachment metadata and the stored file.
func (s *Service) GetAttachment(ctx context.Context, caller access.Identity, id string) (models.Attachment, []byte, error) {
	if err := access.Authorize(caller, access.OpAttachmentRead); err != nil {
		return models.Attachment{}, nil, err
	}
	a, err := s.store.Repos().Attachments.Get(ctx, id)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	data, err := s.files.Read(ctx, a.Handle)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	return a, data, nil
}

func (s *Service) deleteFile(ctx context.Context, handle string) {
	if err := s.files.Delete(ctx, handle); err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("file delete failed")
	}
}
