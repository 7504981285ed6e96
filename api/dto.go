package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/shopspring/decimal"
)

// Amounts cross the API as decimal strings in major units, e.g. "12.50".

type createBlockRequest struct {
	Month   string        `json:"month"`
	Members []memberInput `json:"members"`
}

// memberInput accepts either a bare name or an object with a name.
type memberInput struct {
	Name string `json:"name"`
}

func (m *memberInput) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte(`"`)) {
		return json.Unmarshal(b, &m.Name)
	}
	type plain memberInput
	return json.Unmarshal(b, (*plain)(m))
}

type memberRequest struct {
	Name string `json:"name"`
}

type transactionRequest struct {
	Description string                     `json:"description"`
	Amount      decimal.Decimal            `json:"amount"`
	Payer       string                     `json:"payer"`
	Ratios      map[string]decimal.Decimal `json:"ratios"`
}

func (t transactionRequest) input(scale int32) (ledger.TransactionInput, error) {
	amount, err := ledger.ParseAmount(t.Amount, scale)
	if err != nil {
		return ledger.TransactionInput{}, fmt.Errorf("amount %s: %w", t.Amount, err)
	}
	return ledger.TransactionInput{
		Description: t.Description,
		Amount:      amount,
		Payer:       t.Payer,
		Ratios:      t.Ratios,
	}, nil
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

type blockSummaryResponse struct {
	Month            string    `json:"month"`
	Locked           bool      `json:"locked"`
	MemberCount      int       `json:"member_count"`
	TransactionCount int       `json:"transaction_count"`
	CreatedAt        time.Time `json:"created_at"`
}

type memberResponse struct {
	ID        string    `json:"id"`
	Month     string    `json:"month,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID          string                     `json:"id"`
	Month       string                     `json:"month"`
	Description string                     `json:"description"`
	Amount      string                     `json:"amount"`
	Payer       string                     `json:"payer"`
	Ratios      map[string]decimal.Decimal `json:"ratios"`
	Details     map[string]string          `json:"details"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

type balanceResponse struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Paid     string `json:"paid"`
	Owed     string `json:"owed"`
	Net      string `json:"net"`
}

type transferResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type blockResponse struct {
	blockSummaryResponse
	Members      []memberResponse      `json:"members"`
	Transactions []transactionResponse `json:"transactions"`
	Balances     []balanceResponse     `json:"balances"`
}

type summaryResponse struct {
	Month       string             `json:"month"`
	Locked      bool               `json:"locked"`
	Balances    []balanceResponse  `json:"balances"`
	Settlements []transferResponse `json:"settlements"`
}

type memberChangeResponse struct {
	Member memberResponse `json:"member"`
	Block  blockResponse  `json:"block"`
}

type transactionChangeResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Block       blockResponse       `json:"block"`
}

// presenter renders ledger values with a fixed number of decimals.
type presenter struct {
	scale int32
}

func (p presenter) amount(a ledger.Amount) string {
	return a.Decimal(p.scale).StringFixed(p.scale)
}

func (p presenter) summary(s ledger.PeriodSummary) blockSummaryResponse {
	return blockSummaryResponse{
		Month:            s.ID,
		Locked:           s.Locked,
		MemberCount:      s.MemberCount,
		TransactionCount: s.TransactionCount,
		CreatedAt:        s.CreatedAt,
	}
}

func (p presenter) member(m ledger.Member) memberResponse {
	return memberResponse{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func (p presenter) members(ms []ledger.Member) []memberResponse {
	out := make([]memberResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, p.member(m))
	}
	return out
}

func (p presenter) transaction(tx ledger.TransactionView) transactionResponse {
	details := make(map[string]string, len(tx.Shares))
	for id, share := range tx.Shares {
		details[id] = p.amount(share)
	}
	return transactionResponse{
		ID:          tx.ID,
		Month:       tx.PeriodID,
		Description: tx.Description,
		Amount:      p.amount(tx.Amount),
		Payer:       tx.Payer,
		Ratios:      tx.Ratios,
		Details:     details,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func (p presenter) transactions(txs []ledger.TransactionView) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, p.transaction(tx))
	}
	return out
}

func (p presenter) balances(bs []ledger.Balance) []balanceResponse {
	out := make([]balanceResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, balanceResponse{
			MemberID: b.MemberID,
			Name:     b.Name,
			Paid:     p.amount(b.Paid),
			Owed:     p.amount(b.Owed),
			Net:      p.amount(b.Net),
		})
	}
	return out
}

func (p presenter) transfers(ts []ledger.Transfer) []transferResponse {
	out := make([]transferResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, transferResponse{From: t.From, To: t.To, Amount: p.amount(t.Amount)})
	}
	return out
}

func (p presenter) block(v ledger.View) blockResponse {
	return blockResponse{
		blockSummaryResponse: p.summary(v.Period),
		Members:              p.members(v.Members),
		Transactions:         p.transactions(v.Transactions),
		Balances:             p.balances(v.Balances),
	}
}
