package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a count of currency minor units. Shares and balances are kept as
// integers so that splits always sum exactly to the transaction amount.
type Amount int64

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Transaction struct {
	ID          string                     `json:"id"`
	PeriodID    string                     `json:"period_id"`
	Description string                     `json:"description"`
	Amount      Amount                     `json:"amount"`
	Payer       string                     `json:"payer"`
	Ratios      map[string]decimal.Decimal `json:"ratios"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// TransactionInput carries the caller-editable fields of a transaction.
type TransactionInput struct {
	Description string
	Amount      Amount
	Payer       string
	Ratios      map[string]decimal.Decimal
}

// TransactionView is a transaction annotated with its share breakdown.
type TransactionView struct {
	Transaction
	Shares map[string]Amount `json:"shares"`
}

// Balance represents a member's position in a period.
// Calculated on-the-fly from transactions. Positive Net = is owed money.
type Balance struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Paid     Amount `json:"paid"`
	Owed     Amount `json:"owed"`
	Net      Amount `json:"net"`
}

type PeriodSummary struct {
	ID               string    `json:"id"`
	Locked           bool      `json:"locked"`
	MemberCount      int       `json:"member_count"`
	TransactionCount int       `json:"transaction_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// View is a consistent snapshot of one period. Reads return it and so does
// every mutation, reflecting the state right after the change.
type View struct {
	Period       PeriodSummary     `json:"period"`
	Members      []Member          `json:"members"`
	Transactions []TransactionView `json:"transactions"`
	Balances     []Balance         `json:"balances"`
}

// MemberRef is a member together with the period it belongs to.
type MemberRef struct {
	Member
	PeriodID string `json:"period_id"`
}

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidRatio    = errors.New("ratios need at least one positive weight and no negative weights")
	ErrUnknownMember   = errors.New("unknown member")
	ErrDuplicateMember = errors.New("member already exists")
	ErrDuplicatePeriod = errors.New("period already exists")
	ErrNotFound        = errors.New("not found")
	ErrLedgerLocked    = errors.New("period is locked")
	ErrEmptyName       = errors.New("name can't be empty")
	ErrInvalidPeriod   = errors.New("period id must be formatted as YYYY-MM")
	ErrMemberInUse     = errors.New("member is referenced by a transaction")
)

const periodLayout = "2006-01"

// ValidPeriodID reports whether id is a calendar month formatted as YYYY-MM.
func ValidPeriodID(id string) bool {
	if len(id) != len(periodLayout) {
		return false
	}
	_, err := time.Parse(periodLayout, id)
	return err == nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cloneRatios(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
