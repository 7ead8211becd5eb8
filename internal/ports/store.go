package ports

import (
	"context"

	"cloud.google.com/go/civil"

	"acp_dues/internal/models"
)

type Members interface {
	Create(ctx context.Context, m *models.Member) error
	Update(ctx context.Context, m *models.Member) error
	Get(ctx context.Context, id string) (models.Member, error)
	List(ctx context.Context, f models.MemberFilter) ([]models.Member, error)
	ListActiveWithPositiveDue(ctx context.Context) ([]models.Member, error)
	// UpsertByDocument inserts m, or updates the member holding the same
	// document number. Reports whether a new row was created.
	UpsertByDocument(ctx context.Context, m *models.Member) (bool, error)
	Delete(ctx context.Context, id string) error
}

type Dues interface {
	// InsertIfAbsent creates d unless (member, period) already exists.
	InsertIfAbsent(ctx context.Context, d *models.Due) (bool, error)
	Get(ctx context.Context, id string) (models.Due, error)
	// GetForUpdate locks the due row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (models.Due, error)
	MarkPaid(ctx context.Context, id string, on civil.Date) error
	MarkUnpaid(ctx context.Context, id string) error
	ListByPeriod(ctx context.Context, p models.Period) ([]models.Due, error)
	ListByMember(ctx context.Context, memberID string) ([]models.Due, error)
	// ListUnpaidDueBefore returns unpaid dues with due_date < asOf.
	ListUnpaidDueBefore(ctx context.Context, asOf civil.Date) ([]models.Due, error)
	DeleteByMember(ctx context.Context, memberID string) error
}

type Ledger interface {
	Insert(ctx context.Context, e *models.LedgerEntry) error
	Get(ctx context.Context, id string) (models.LedgerEntry, error)
	// LatestForDue returns the most recent entry for (dueID, origin), or nil.
	LatestForDue(ctx context.Context, dueID string, origin models.Origin) (*models.LedgerEntry, error)
	CountForDue(ctx context.Context, dueID string, origin models.Origin) (int, error)
	List(ctx context.Context, f models.LedgerFilter) ([]models.LedgerEntry, error)
	Delete(ctx context.Context, id string) error
	// DetachMember clears member and due back-references for memberID.
	DetachMember(ctx context.Context, memberID string) error
}

type Attachments interface {
	Insert(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id string) (models.Attachment, error)
	ListByDue(ctx context.Context, dueID string) ([]models.Attachment, error)
	ListByLedgerEntry(ctx context.Context, entryID string) ([]models.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos struct {
	Members     Members
	Dues        Dues
	Ledger      Ledger
	Attachments Attachments
}

// Store is the persistent state. Mutations run inside InTx: fn's changes
// commit together when it returns nil and are discarded otherwise. Repos
// reads only committed state. InReadTx gives fn one committed snapshot for
// reads that span several queries; fn must not write.
type Store interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	InReadTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
