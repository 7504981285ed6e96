package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/billbatista/acasinha-ledger/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.SQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepository(db)

	r := newTestRegistry(t, WithStore(repo))
	p, m := newTestPeriod(t, r, "Ana", "Bia")
	a, b := m[0].ID, m[1].ID

	carol, _, err := p.AddMember(ctx, "Carol")
	require.NoError(t, err)
	first, _, err := p.AddTransaction(ctx, TransactionInput{Description: "rent", Amount: 100, Payer: a, Ratios: ratios(a, 1, b, 2)})
	require.NoError(t, err)
	second, _, err := p.AddTransaction(ctx, TransactionInput{Description: "food", Amount: 999, Payer: b, Ratios: ratios(a, "0.5", b, "0.25", carol.ID, "0.25")})
	require.NoError(t, err)
	_, _, err = p.UpdateTransaction(ctx, first.ID, TransactionInput{Description: "rent!", Amount: 120, Payer: a, Ratios: ratios(a, 1, b, 1)})
	require.NoError(t, err)
	_, _, err = p.RenameMember(ctx, carol.ID, "Carla")
	require.ErrorIs(t, err, ErrMemberInUse)
	_, err = p.DeleteTransaction(ctx, second.ID)
	require.NoError(t, err)
	_, _, err = p.RenameMember(ctx, carol.ID, "Carla")
	require.NoError(t, err)
	third, _, err := p.AddTransaction(ctx, TransactionInput{Amount: 30, Payer: carol.ID, Ratios: ratios(a, 1, b, 1, carol.ID, 1)})
	require.NoError(t, err)
	_, err = p.Lock(ctx)
	require.NoError(t, err)

	other, err := r.Create(ctx, "2024-04", []string{"Dan"})
	require.NoError(t, err)
	dan := other.Members()[0]
	_, err = other.RemoveMember(ctx, dan.ID)
	require.NoError(t, err)

	want, err := p.View()
	require.NoError(t, err)

	restored := NewRegistry(WithStore(repo))
	require.NoError(t, restored.Load(ctx))

	got, err := restored.Get("2024-03")
	require.NoError(t, err)
	view, err := got.View()
	require.NoError(t, err)

	assert.True(t, view.Period.Locked)
	assert.Equal(t, want.Balances, view.Balances)
	require.Len(t, view.Transactions, 2)
	assert.Equal(t, first.ID, view.Transactions[0].ID)
	assert.Equal(t, "rent!", view.Transactions[0].Description)
	assert.Equal(t, Amount(120), view.Transactions[0].Amount)
	assert.Equal(t, third.ID, view.Transactions[1].ID)
	assert.Equal(t, want.Transactions[1].Shares, view.Transactions[1].Shares)

	var names []string
	for _, mem := range view.Members {
		names = append(names, mem.Name)
	}
	assert.Equal(t, []string{"Ana", "Bia", "Carla"}, names)

	april, err := restored.Get("2024-04")
	require.NoError(t, err)
	assert.Empty(t, april.Members())

	// appending after a restore keeps insertion order
	_, err = got.Unlock(ctx)
	require.NoError(t, err)
	fourth, _, err := got.AddTransaction(ctx, TransactionInput{Amount: 1, Payer: a, Ratios: ratios(a, 1)})
	require.NoError(t, err)

	reloaded := NewRegistry(WithStore(repo))
	require.NoError(t, reloaded.Load(ctx))
	rp, err := reloaded.Get("2024-03")
	require.NoError(t, err)
	txs, err := rp.Transactions()
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, fourth.ID, txs[2].ID)
}

func TestRepositoryDeletePeriod(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	r := newTestRegistry(t, WithStore(repo))
	p, m := newTestPeriod(t, r, "A", "B")
	_, _, err := p.AddTransaction(ctx, TransactionInput{Amount: 10, Payer: m[0].ID, Ratios: ratios(m[1].ID, 1)})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, "2024-03"))

	records, err := repo.LoadPeriods(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// the same month can be opened again with the same member names
	_, err = r.Create(ctx, "2024-03", []string{"A", "B"})
	require.NoError(t, err)
}

func TestRepositoryMissingRows(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	require.ErrorIs(t, repo.SetLocked(ctx, "2030-01", true), ErrNotFound)
	require.ErrorIs(t, repo.DeleteMember(ctx, "2030-01", "m"), ErrNotFound)
	require.ErrorIs(t, repo.DeleteTransaction(ctx, "2030-01", "t"), ErrNotFound)
	require.ErrorIs(t, repo.UpdateTransaction(ctx, Transaction{ID: "t", PeriodID: "2030-01", Amount: 1, Ratios: ratios("m", 1)}), ErrNotFound)
}
