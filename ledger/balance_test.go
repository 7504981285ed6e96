package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	members := []Member{{ID: "a", Name: "Ana"}, {ID: "b", Name: "Bia"}, {ID: "c", Name: "Caio"}}

	t.Run("no transactions", func(t *testing.T) {
		got, err := Aggregate(members, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for _, b := range got {
			assert.Zero(t, b.Paid)
			assert.Zero(t, b.Owed)
			assert.Zero(t, b.Net)
		}
	})

	t.Run("credits payer and debits shares", func(t *testing.T) {
		txs := []Transaction{
			{ID: "t1", Amount: 100, Payer: "a", Ratios: ratios("a", 1, "b", 2)},
			{ID: "t2", Amount: 90, Payer: "b", Ratios: ratios("a", 1, "b", 1, "c", 1)},
		}
		got, err := Aggregate(members, txs)
		require.NoError(t, err)

		assert.Equal(t, Balance{MemberID: "a", Name: "Ana", Paid: 100, Owed: 63, Net: 37}, got["a"])
		assert.Equal(t, Balance{MemberID: "b", Name: "Bia", Paid: 90, Owed: 97, Net: -7}, got["b"])
		assert.Equal(t, Balance{MemberID: "c", Name: "Caio", Paid: 0, Owed: 30, Net: -30}, got["c"])
	})

	t.Run("payer outside the ratio", func(t *testing.T) {
		txs := []Transaction{{ID: "t1", Amount: 50, Payer: "c", Ratios: ratios("a", 1, "b", 1)}}
		got, err := Aggregate(members, txs)
		require.NoError(t, err)
		assert.Equal(t, Amount(50), got["c"].Net)
		assert.Equal(t, Amount(-25), got["a"].Net)
		assert.Equal(t, Amount(-25), got["b"].Net)
	})

	t.Run("unknown payer", func(t *testing.T) {
		txs := []Transaction{{ID: "t1", Amount: 10, Payer: "z", Ratios: ratios("a", 1)}}
		_, err := Aggregate(members, txs)
		require.ErrorIs(t, err, ErrUnknownMember)
	})

	t.Run("unknown ratio member", func(t *testing.T) {
		txs := []Transaction{{ID: "t1", Amount: 10, Payer: "a", Ratios: ratios("a", 1, "z", 1)}}
		_, err := Aggregate(members, txs)
		require.ErrorIs(t, err, ErrUnknownMember)
	})
}

func TestAggregateNetsSumToZero(t *testing.T) {
	members := []Member{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	txs := []Transaction{
		{ID: "1", Amount: 1001, Payer: "a", Ratios: ratios("a", 1, "b", 1, "c", 1)},
		{ID: "2", Amount: 777, Payer: "b", Ratios: ratios("c", "0.3", "d", "0.7")},
		{ID: "3", Amount: 13, Payer: "d", Ratios: ratios("a", 3, "b", 3, "c", 3, "d", 1)},
		{ID: "4", Amount: 99999, Payer: "c", Ratios: ratios("a", 2, "d", 5)},
	}

	got, err := Aggregate(members, txs)
	require.NoError(t, err)

	var net, paid Amount
	for _, b := range got {
		net += b.Net
		paid += b.Paid
	}
	assert.Zero(t, net)
	assert.Equal(t, Amount(1001+777+13+99999), paid)
}

func TestAggregateOverflow(t *testing.T) {
	members := []Member{{ID: "a"}, {ID: "b"}}
	big := Transaction{Amount: math.MaxInt64, Payer: "a", Ratios: ratios("b", 1)}

	got, err := Aggregate(members, []Transaction{big})
	require.NoError(t, err)
	assert.Equal(t, Amount(math.MaxInt64), got["a"].Net)
	assert.Equal(t, Amount(-math.MaxInt64), got["b"].Net)

	t.Run("paid", func(t *testing.T) {
		second := Transaction{ID: "2", Amount: 1, Payer: "a", Ratios: ratios("a", 1)}
		_, err := Aggregate(members, []Transaction{big, second})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("owed", func(t *testing.T) {
		second := Transaction{ID: "2", Amount: 1, Payer: "b", Ratios: ratios("b", 1)}
		_, err := Aggregate(members, []Transaction{big, second})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestSettle(t *testing.T) {
	t.Run("everyone settled", func(t *testing.T) {
		assert.Empty(t, Settle([]Balance{{MemberID: "a"}, {MemberID: "b"}}))
	})

	t.Run("one creditor", func(t *testing.T) {
		got := Settle([]Balance{
			{MemberID: "a", Net: 60},
			{MemberID: "b", Net: -20},
			{MemberID: "c", Net: -40},
		})
		assert.Equal(t, []Transfer{
			{From: "c", To: "a", Amount: 40},
			{From: "b", To: "a", Amount: 20},
		}, got)
	})

	t.Run("ties ordered by id", func(t *testing.T) {
		got := Settle([]Balance{
			{MemberID: "d", Net: 10},
			{MemberID: "c", Net: 10},
			{MemberID: "b", Net: -10},
			{MemberID: "a", Net: -10},
		})
		assert.Equal(t, []Transfer{
			{From: "a", To: "c", Amount: 10},
			{From: "b", To: "d", Amount: 10},
		}, got)
	})

	t.Run("transfers zero every balance", func(t *testing.T) {
		balances := []Balance{
			{MemberID: "a", Net: 37},
			{MemberID: "b", Net: -7},
			{MemberID: "c", Net: -30},
			{MemberID: "d", Net: 55},
			{MemberID: "e", Net: -55},
		}
		nets := make(map[string]Amount)
		for _, b := range balances {
			nets[b.MemberID] = b.Net
		}
		for _, tr := range Settle(balances) {
			require.Positive(t, tr.Amount)
			nets[tr.From] += tr.Amount
			nets[tr.To] -= tr.Amount
		}
		for id, n := range nets {
			assert.Zero(t, n, id)
		}
	})
}
