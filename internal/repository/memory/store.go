// Package memory is an in-process ports.Store. Transactions take a global
// write lock, run against a copy of the state and swap it in on success, so
// readers only ever observe committed data.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

var errReadOnly = errors.New("write in read-only transaction")

type state struct {
	seq         int64
	members     map[string]models.Member
	dues        map[string]models.Due
	ledger      map[string]models.LedgerEntry
	attachments map[string]models.Attachment
	order       map[string]int64
}

func newState() *state {
	return &state{
		members:     map[string]models.Member{},
		dues:        map[string]models.Due{},
		ledger:      map[string]models.LedgerEntry{},
		attachments: map[string]models.Attachment{},
		order:       map[string]int64{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		members:     maps.Clone(s.members),
		dues:        maps.Clone(s.dues),
		ledger:      maps.Clone(s.ledger),
		attachments: maps.Clone(s.attachments),
		order:       maps.Clone(s.order),
	}
}

func (s *state) next(id string) {
	s.seq++
	s.order[id] = s.seq
}

type Store struct {
	mu  sync.RWMutex
	cur *state
	now func() time.Time
}

func New() *Store {
	return &Store{cur: newState(), now: time.Now}
}

func (s *Store) Repos() ports.Repos {
	return view{s: s}.repos()
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r ports.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.cur.clone()
	if err := fn(ctx, view{s: s, tx: work}.repos()); err != nil {
		return err
	}
	s.cur = work
	return nil
}

// InReadTx hands fn the state committed when it starts. Committed states are
// never modified in place, so no lock is held while fn runs.
func (s *Store) InReadTx(ctx context.Context, fn func(ctx context.Context, r ports.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snap := s.cur
	s.mu.RUnlock()
	return fn(ctx, view{s: s, tx: snap, readOnly: true}.repos())
}

// view reads and writes either the committed state (tx == nil) under the
// store lock, or a transaction's private copy.
type view struct {
	s        *Store
	tx       *state
	readOnly bool
}

func (v view) repos() ports.Repos {
	return ports.Repos{
		Members:     memberRepo{v},
		Dues:        dueRepo{v},
		Ledger:      ledgerRepo{v},
		Attachments: attachmentRepo{v},
	}
}

func (v view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.cur)
}

func (v view) write(fn func(st *state) error) error {
	if v.readOnly {
		return errReadOnly
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	work := v.s.cur.clone()
	if err := fn(work); err != nil {
		return err
	}
	v.s.cur = work
	return nil
}

func (v view) now() time.Time { return v.s.now().UTC() }
