package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		members []string
		wantErr error
	}{
		{"valid", "2024-03", []string{"Alice", "Bob"}, nil},
		{"no members", "2024-04", nil, nil},
		{"bad month", "2024-13", []string{"Alice"}, ErrInvalidPeriod},
		{"not a month", "march", []string{"Alice"}, ErrInvalidPeriod},
		{"short form", "2024-3", []string{"Alice"}, ErrInvalidPeriod},
		{"blank member", "2024-05", []string{"Alice", " "}, ErrEmptyName},
		{"duplicate member", "2024-06", []string{"Alice", " alice"}, ErrDuplicateMember},
	}

	r := newTestRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Create(ctx, tt.id, tt.members)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, err := r.Get(tt.id)
				require.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, p.ID())
			assert.Len(t, p.Members(), len(tt.members))
			assert.False(t, p.Locked())
		})
	}

	_, err := r.Create(ctx, "2024-03", []string{"Carol"})
	require.ErrorIs(t, err, ErrDuplicatePeriod)
}

func TestRegistryListAndGet(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	for _, id := range []string{"2024-05", "2023-12", "2024-01"} {
		_, err := r.Create(ctx, id, []string{"A"})
		require.NoError(t, err)
	}

	var ids []string
	for _, s := range r.List() {
		ids = append(ids, s.ID)
		assert.Equal(t, 1, s.MemberCount)
	}
	assert.Equal(t, []string{"2023-12", "2024-01", "2024-05"}, ids)

	p, err := r.Get("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", p.ID())

	_, err = r.Get("1999-01")
	require.ErrorIs(t, err, ErrNotFound)

	refs := r.Members()
	require.Len(t, refs, 3)
	assert.Equal(t, "2023-12", refs[0].PeriodID)
	assert.Equal(t, "2024-05", refs[2].PeriodID)
}

func TestRegistryDelete(t *testing.T) {
	ctx := context.Background()
	events := &recordingLog{}
	r := newTestRegistry(t, WithEventLog(events))
	p, m := newTestPeriod(t, r, "A", "B")

	tx, _, err := p.AddTransaction(ctx, TransactionInput{Amount: 10, Payer: m[0].ID, Ratios: ratios(m[1].ID, 1)})
	require.NoError(t, err)

	_, err = p.Lock(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, r.Delete(ctx, "2024-03"), ErrLedgerLocked)

	_, err = p.Unlock(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, "2024-03"))

	_, err = r.Get("2024-03")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindTransaction(tx.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, "2024-03"), ErrNotFound)

	// a handle obtained before deletion refuses further work
	_, _, err = p.AddTransaction(ctx, TransactionInput{Amount: 10, Payer: m[0].ID, Ratios: ratios(m[1].ID, 1)})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = p.View()
	require.ErrorIs(t, err, ErrNotFound)

	// the id can be reused
	_, err = r.Create(ctx, "2024-03", []string{"C"})
	require.NoError(t, err)

	assert.Contains(t, events.types(), EventPeriodDeleted)
}

func TestRegistryFindTransaction(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	march, mm := newTestPeriod(t, r, "A")
	april, err := r.Create(ctx, "2024-04", []string{"B"})
	require.NoError(t, err)
	am := april.Members()

	_, _, err = march.AddTransaction(ctx, TransactionInput{Amount: 1, Payer: mm[0].ID, Ratios: ratios(mm[0].ID, 1)})
	require.NoError(t, err)
	tx, _, err := april.AddTransaction(ctx, TransactionInput{Amount: 2, Payer: am[0].ID, Ratios: ratios(am[0].ID, 1)})
	require.NoError(t, err)

	found, err := r.FindTransaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-04", found.ID())

	_, err = r.FindTransaction("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

// memoryStore keeps records like a database would so Load can be exercised
// without one.
type memoryStore struct {
	nopStore
	records []PeriodRecord
}

func (s *memoryStore) CreatePeriod(_ context.Context, p PeriodRecord) error {
	s.records = append(s.records, p)
	return nil
}

func (s *memoryStore) LoadPeriods(context.Context) ([]PeriodRecord, error) {
	return s.records, nil
}

func TestRegistryLoad(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := &memoryStore{records: []PeriodRecord{
		{
			ID:        "2024-03",
			Locked:    true,
			CreatedAt: created,
			Members:   []Member{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
			Transactions: []Transaction{
				{ID: "t1", PeriodID: "2024-03", Amount: 100, Payer: "a", Ratios: ratios("a", 1, "b", 2)},
			},
			NextSeq: 3,
		},
	}}

	r := newTestRegistry(t, WithStore(store))
	require.NoError(t, r.Load(ctx))

	p, err := r.Get("2024-03")
	require.NoError(t, err)
	assert.True(t, p.Locked())

	balances, err := p.Balances()
	require.NoError(t, err)
	assert.Equal(t, Amount(67), balances[0].Net)
	assert.Equal(t, Amount(-67), balances[1].Net)

	t.Run("rejects inconsistent records", func(t *testing.T) {
		bad := &memoryStore{records: []PeriodRecord{{
			ID:           "2024-04",
			Members:      []Member{{ID: "a"}},
			Transactions: []Transaction{{ID: "t1", Amount: 5, Payer: "ghost", Ratios: ratios("a", 1)}},
		}}}
		r := newTestRegistry(t, WithStore(bad))
		require.ErrorIs(t, r.Load(ctx), ErrUnknownMember)
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	months := []string{"2024-01", "2024-02", "2024-03", "2024-04"}
	var wg sync.WaitGroup
	for _, id := range months {
		wg.Go(func() {
			p, err := r.Create(ctx, id, []string{"A", "B"})
			if !assert.NoError(t, err) {
				return
			}
			m := p.Members()
			for i := range 20 {
				_, _, err := p.AddTransaction(ctx, TransactionInput{
					Amount: Amount(i + 1),
					Payer:  m[i%2].ID,
					Ratios: ratios(m[0].ID, 1, m[1].ID, 1),
				})
				assert.NoError(t, err)
				r.List()
				r.Members()
			}
		})
	}
	wg.Wait()

	list := r.List()
	require.Len(t, list, len(months))
	for _, s := range list {
		assert.Equal(t, 20, s.TransactionCount)
	}
}
