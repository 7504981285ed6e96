package ledger

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"github.com/shopspring/decimal"
)

type weighted struct {
	id     string
	weight *big.Int
	rem    *big.Int
}

// Split divides amount between the members of ratios proportionally to their
// weights. Each member gets floor(amount*weight/total); the units left over are
// handed out one by one to the largest remainders, ties going to the lower id.
// The returned shares always sum to amount and contain every key of ratios.
func Split(amount Amount, ratios map[string]decimal.Decimal) (map[string]Amount, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	weights, err := integerWeights(ratios)
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, w := range weights {
		total.Add(total, w.weight)
	}
	if total.Sign() == 0 {
		return nil, fmt.Errorf("%w: all weights are zero", ErrInvalidRatio)
	}

	amt := big.NewInt(int64(amount))
	shares := make(map[string]Amount, len(weights))
	var assigned int64
	for i := range weights {
		q, r := new(big.Int).QuoRem(new(big.Int).Mul(amt, weights[i].weight), total, new(big.Int))
		weights[i].rem = r
		shares[weights[i].id] = Amount(q.Int64())
		assigned += q.Int64()
	}

	slices.SortFunc(weights, func(a, b weighted) int {
		if c := b.rem.Cmp(a.rem); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	for i := int64(0); i < int64(amount)-assigned; i++ {
		shares[weights[i].id]++
	}

	return shares, nil
}

// integerWeights scales every weight by the largest fractional exponent in the
// map so the whole computation can run on integers.
func integerWeights(ratios map[string]decimal.Decimal) ([]weighted, error) {
	if len(ratios) == 0 {
		return nil, fmt.Errorf("%w: no members in ratio", ErrInvalidRatio)
	}

	var scale int32
	for id, w := range ratios {
		if w.IsNegative() {
			return nil, fmt.Errorf("%w: negative weight for %s", ErrInvalidRatio, id)
		}
		if exp := w.Exponent(); -exp > scale {
			scale = -exp
		}
	}

	weights := make([]weighted, 0, len(ratios))
	for id, w := range ratios {
		weights = append(weights, weighted{id: id, weight: w.Shift(scale).BigInt()})
	}
	return weights, nil
}
