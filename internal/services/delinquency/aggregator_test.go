package delinquency

import (
	"context"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
	"acp_dues/internal/repository/memory"
)

var viewer = access.Identity{Subject: "vocal", Role: access.RoleViewer}

type seed struct {
	store *memory.Store
	t     *testing.T
}

func (s seed) member(name string) models.Member {
	m := models.Member{ID: uuid.NewString(), Name: name, Active: true, MonthlyDue: decimal.NewFromInt(100)}
	require.NoError(s.t, s.store.Repos().Members.Create(context.Background(), &m))
	return m
}

func (s seed) due(m models.Member, period string, amount int64, paid bool) models.Due {
	p, err := models.ParsePeriod(period)
	require.NoError(s.t, err)
	d := models.Due{ID: uuid.NewString(), MemberID: m.ID, Period: p, Amount: decimal.NewFromInt(amount), DueDate: p.DueDate()}
	_, err = s.store.Repos().Dues.InsertIfAbsent(context.Background(), &d)
	require.NoError(s.t, err)
	if paid {
		require.NoError(s.t, s.store.Repos().Dues.MarkPaid(context.Background(), d.ID, d.DueDate))
	}
	return d
}

func TestOverdueScenario(t *testing.T) {
	store := memory.New()
	s := seed{store: store, t: t}
	ana := s.member("Ana")
	s.due(ana, "2024-01", 100, false)
	s.due(ana, "2024-02", 100, false)

	agg := NewAggregator(store)
	asOf := civil.Date{Year: 2024, Month: 3, Day: 1}

	rows, err := agg.Overdue(context.Background(), viewer, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].Member.Name)
	assert.True(t, rows[0].TotalOwed.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 2, rows[0].OverdueDue)
	require.Len(t, rows[0].Dues, 2)
	assert.Equal(t, "2024-01", rows[0].Dues[0].Period.String())

	periods, err := agg.OverdueByPeriod(context.Background(), viewer, asOf)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "2024-01", periods[0].Period.String())
	assert.True(t, periods[0].TotalOwed.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2024-02", periods[1].Period.String())
	assert.True(t, periods[1].TotalOwed.Equal(decimal.NewFromInt(100)))
}

func TestOverdueExcludesPaidAndNotYetDue(t *testing.T) {
	store := memory.New()
	s := seed{store: store, t: t}
	ana := s.member("Ana")
	s.due(ana, "2024-01", 100, true)
	feb := s.due(ana, "2024-02", 100, false)

	agg := NewAggregator(store)

	// due date equal to as_of is not overdue yet
	rows, err := agg.Overdue(context.Background(), viewer, feb.DueDate)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = agg.Overdue(context.Background(), viewer, feb.DueDate.AddDays(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	for _, d := range rows[0].Dues {
		assert.False(t, d.Paid)
		assert.True(t, d.DueDate.Before(feb.DueDate.AddDays(1)))
	}
}

func TestOverdueOrderingAndTotalsAgree(t *testing.T) {
	store := memory.New()
	s := seed{store: store, t: t}
	zoe, ana, luis := s.member("Zoe"), s.member("Ana"), s.member("Luis")
	s.due(zoe, "2023-11", 70, false)
	s.due(zoe, "2023-12", 70, false)
	s.due(ana, "2023-12", 100, false)
	s.due(luis, "2024-01", 55, false)
	s.due(luis, "2023-12", 55, true)

	agg := NewAggregator(store)
	ctx := context.Background()

	for _, asOf := range []civil.Date{
		{Year: 2023, Month: 11, Day: 1},
		{Year: 2023, Month: 12, Day: 11},
		{Year: 2024, Month: 6, Day: 30},
	} {
		rows, err := agg.Overdue(ctx, viewer, asOf)
		require.NoError(t, err)
		periods, err := agg.OverdueByPeriod(ctx, viewer, asOf)
		require.NoError(t, err)

		byMember, byPeriod := decimal.Zero, decimal.Zero
		for i, r := range rows {
			byMember = byMember.Add(r.TotalOwed)
			if i > 0 {
				assert.LessOrEqual(t, rows[i-1].Member.Name, r.Member.Name)
			}
		}
		for i, p := range periods {
			byPeriod = byPeriod.Add(p.TotalOwed)
			if i > 0 {
				assert.Less(t, periods[i-1].Period.String(), p.Period.String())
			}
		}
		assert.True(t, byMember.Equal(byPeriod), "as_of %s: %s != %s", asOf, byMember, byPeriod)
	}

	rows, err := agg.Overdue(ctx, viewer, civil.Date{Year: 2024, Month: 6, Day: 30})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Ana", "Luis", "Zoe"}, []string{rows[0].Member.Name, rows[1].Member.Name, rows[2].Member.Name})
	assert.True(t, rows[2].TotalOwed.Equal(decimal.NewFromInt(140)))
}

func TestTargetsNeedsSendPermission(t *testing.T) {
	agg := NewAggregator(memory.New())
	_, err := agg.Targets(context.Background(), viewer, civil.Date{Year: 2024, Month: 1, Day: 1})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = agg.Overdue(context.Background(), access.Identity{}, civil.Date{Year: 2024, Month: 1, Day: 1})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

// interleavedStore runs between once the dues list has been read, imitating
// a write committed by another request mid-report.
type interleavedStore struct {
	*memory.Store
	between func()
	once    *sync.Once
}

type interleavedDues struct {
	ports.Dues
	after func()
}

func (d interleavedDues) ListUnpaidDueBefore(ctx context.Context, asOf civil.Date) ([]models.Due, error) {
	out, err := d.Dues.ListUnpaidDueBefore(ctx, asOf)
	d.after()
	return out, err
}

func (s interleavedStore) wrap(r ports.Repos) ports.Repos {
	r.Dues = interleavedDues{Dues: r.Dues, after: func() { s.once.Do(s.between) }}
	return r
}

func (s interleavedStore) Repos() ports.Repos { return s.wrap(s.Store.Repos()) }

func (s interleavedStore) InReadTx(ctx context.Context, fn func(context.Context, ports.Repos) error) error {
	return s.Store.InReadTx(ctx, func(ctx context.Context, r ports.Repos) error {
		return fn(ctx, s.wrap(r))
	})
}

func TestOverdueReadsOneSnapshot(t *testing.T) {
	store := memory.New()
	s := seed{store: store, t: t}
	ana := s.member("Ana")
	bruno := s.member("Bruno")
	s.due(ana, "2024-01", 100, false)
	s.due(bruno, "2024-01", 50, false)

	deleteAna := func() {
		err := store.InTx(context.Background(), func(ctx context.Context, r ports.Repos) error {
			if err := r.Ledger.DetachMember(ctx, ana.ID); err != nil {
				return err
			}
			if err := r.Dues.DeleteByMember(ctx, ana.ID); err != nil {
				return err
			}
			return r.Members.Delete(ctx, ana.ID)
		})
		require.NoError(t, err)
	}
	agg := NewAggregator(interleavedStore{Store: store, between: deleteAna, once: &sync.Once{}})
	asOf := civil.Date{Year: 2024, Month: 3, Day: 1}

	rows, err := agg.Overdue(context.Background(), viewer, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 2, "report reflects the state before the delete committed")
	assert.Equal(t, "Ana", rows[0].Member.Name)

	rows, err = agg.Overdue(context.Background(), viewer, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bruno", rows[0].Member.Name)

	byPeriod, err := agg.OverdueByPeriod(context.Background(), viewer, asOf)
	require.NoError(t, err)
	require.Len(t, byPeriod, 1)
	assert.True(t, byPeriod[0].TotalOwed.Equal(decimal.NewFromInt(50)))
}
