package ledger

import (
	"cmp"
	"fmt"
	"slices"
)

// Aggregate computes net balances for all members from the transactions of a
// period: the payer is credited the full amount and every member in the ratio
// is debited their share. It is a pure function and cheap enough to run on
// every read.
func Aggregate(members []Member, txs []Transaction) (map[string]Balance, error) {
	totals := make(map[string]*Balance, len(members))
	for _, m := range members {
		totals[m.ID] = &Balance{MemberID: m.ID, Name: m.Name}
	}

	for _, tx := range txs {
		payer, ok := totals[tx.Payer]
		if !ok {
			return nil, fmt.Errorf("%w: payer %s of transaction %s", ErrUnknownMember, tx.Payer, tx.ID)
		}
		for id := range tx.Ratios {
			if _, ok := totals[id]; !ok {
				return nil, fmt.Errorf("%w: %s in ratio of transaction %s", ErrUnknownMember, id, tx.ID)
			}
		}

		shares, err := Split(tx.Amount, tx.Ratios)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}

		if payer.Paid, ok = payer.Paid.add(tx.Amount); !ok {
			return nil, fmt.Errorf("%w: period total out of range", ErrInvalidAmount)
		}
		for id, share := range shares {
			b := totals[id]
			if b.Owed, ok = b.Owed.add(share); !ok {
				return nil, fmt.Errorf("%w: period total out of range", ErrInvalidAmount)
			}
		}
	}

	balances := make(map[string]Balance, len(totals))
	for id, b := range totals {
		b.Net = b.Paid - b.Owed
		balances[id] = *b
	}
	return balances, nil
}

// Transfer is one payment that moves a debtor towards a zero balance.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
}

// Settle proposes the payments that bring every balance back to zero. The
// largest debtor always pays the largest creditor first, ties ordered by
// member id, so the same balances produce the same plan.
func Settle(balances []Balance) []Transfer {
	var debtors, creditors []Balance
	for _, b := range balances {
		switch {
		case b.Net < 0:
			debtors = append(debtors, b)
		case b.Net > 0:
			creditors = append(creditors, b)
		}
	}

	byMagnitude := func(a, b Balance) int {
		if c := cmp.Compare(abs(b.Net), abs(a.Net)); c != 0 {
			return c
		}
		return cmp.Compare(a.MemberID, b.MemberID)
	}
	slices.SortFunc(debtors, byMagnitude)
	slices.SortFunc(creditors, byMagnitude)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		owe := -debtors[i].Net
		due := creditors[j].Net
		pay := min(owe, due)

		transfers = append(transfers, Transfer{
			From:   debtors[i].MemberID,
			To:     creditors[j].MemberID,
			Amount: pay,
		})

		debtors[i].Net += pay
		creditors[j].Net -= pay
		if debtors[i].Net == 0 {
			i++
		}
		if creditors[j].Net == 0 {
			j++
		}
	}
	return transfers
}

func abs(a Amount) Amount {
	if a < 0 {
		return -a
	}
	return a
}
