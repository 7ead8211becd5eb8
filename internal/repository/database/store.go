package database

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"acp_dues/internal/apperr"
	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/ports"
)

var errNoRows = pgx.ErrNoRows

// Store is the Postgres-backed ports.Store.
type Store struct {
	pg *postgres.Postgres
}

func NewStore(pg *postgres.Postgres) *Store {
	return &Store{pg: pg}
}

func (s *Store) Repos() ports.Repos {
	return bind(s.pg.Pool)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r ports.Repos) error) error {
	return s.pg.InTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

func (s *Store) InReadTx(ctx context.Context, fn func(ctx context.Context, r ports.Repos) error) error {
	return s.pg.InReadTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

func bind(q postgres.Querier) ports.Repos {
	return ports.Repos{
		Members:     &MemberRepo{q: q},
		Dues:        &DueRepo{q: q},
		Ledger:      &LedgerRepo{q: q},
		Attachments: &AttachmentRepo{q: q},
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// mapErr turns driver errors into the shared taxonomy.
func mapErr(err error, what, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s %s", what, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.Conflict("%s: %s", what, pgErr.Detail)
		case "23503":
			return apperr.Conflict("%s: %s", what, pgErr.Detail)
		case "22P02":
			return apperr.NotFound("%s %s", what, id)
		}
	}
	return err
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func dateArg(d civil.Date) string { return d.String() }

func toDate(t time.Time) civil.Date { return civil.DateOf(t) }

func toOptDate(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	d := civil.DateOf(*t)
	return &d
}
