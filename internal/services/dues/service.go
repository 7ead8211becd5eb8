// Package dues runs the dues lifecycle: period generation, payment with
// ledger posting and receipt storage, and payment reversal. Every mutation
// runs in one store transaction.
package dues

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/clock"
	"acp_dues/internal/metrics"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

const DefaultMaxReceiptBytes = 10 << 20

type Service struct {
	store      ports.Store
	files      ports.FileStore
	clock      clock.Clock
	log        zerolog.Logger
	metrics    *metrics.Metrics
	maxReceipt int64
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithMaxReceiptBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxReceipt = n
		}
	}
}

func NewService(store ports.Store, files ports.FileStore, clk clock.Clock, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		files:      files,
		clock:      clk,
		log:        log.With().Str("component", "dues").Logger(),
		maxReceipt: DefaultMaxReceiptBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// deleteFiles removes stored files after the database no longer points at
// them. Failures are logged only.
func (s *Service) deleteFiles(ctx context.Context, handles []string) {
	for _, h := range handles {
		if err := s.files.Delete(ctx, h); err != nil {
			s.log.Warn().Err(err).Str("handle", h).Msg("file delete failed")
		}
	}
}

func asStorage(err error, what string) error {
	if errors.Is(err, apperr.ErrStorage) {
		return err
	}
	return apperr.Storage(err, "%s", what)
}

func (s *Service) authorize(caller access.Identity, op access.Operation) error {
	if err := access.Authorize(caller, op); err != nil {
		s.log.Warn().Str("subject", caller.Subject).Str("op", string(op)).Msg("denied")
		return err
	}
	return nil
}

func (s *Service) observe(op string) func() {
	start := time.Now()
	return func() { s.metrics.Observe(op, start) }
}

// Get returns one due.
func (s *Service) Get(ctx context.Context, caller access.Identity, id string) (models.Due, error) {
	if err := s.authorize(caller, access.OpDueRead); err != nil {
		return models.Due{}, err
	}
	return s.store.Repos().Dues.Get(ctx, id)
}

// ForMember lists a member's dues ordered by due date.
func (s *Service) ForMember(ctx context.Context, caller access.Identity, memberID string) ([]models.Due, error) {
	if err := s.authorize(caller, access.OpDueRead); err != nil {
		return nil, err
	}
	if _, err := s.store.Repos().Members.Get(ctx, memberID); err != nil {
		return nil, err
	}
	return s.store.Repos().Dues.ListByMember(ctx, memberID)
}
