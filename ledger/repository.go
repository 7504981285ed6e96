package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/billbatista/acasinha-ledger/database"
	"github.com/shopspring/decimal"
)

type repository struct {
	db *database.DB
}

// NewRepository returns a Store backed by db.
func NewRepository(db *database.DB) *repository {
	return &repository{db: db}
}

func (r *repository) CreatePeriod(ctx context.Context, p PeriodRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertPeriod := r.db.Rebind(`INSERT INTO periods (id, locked, created_at) VALUES ($1, $2, $3)`)
	_, err = tx.ExecContext(ctx, insertPeriod, p.ID, p.Locked, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting period: %w", err)
	}

	insertMember := r.db.Rebind(`INSERT INTO members (id, period_id, name, seq, created_at) VALUES ($1, $2, $3, $4, $5)`)
	for i, m := range p.Members {
		_, err = tx.ExecContext(ctx, insertMember, m.ID, p.ID, m.Name, int64(i), m.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting member: %w", err)
		}
	}

	return tx.Commit()
}

// DeletePeriod removes the period and everything that belongs to it.
func (r *repository) DeletePeriod(ctx context.Context, periodID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM transactions WHERE period_id = $1`,
		`DELETE FROM members WHERE period_id = $1`,
		`DELETE FROM periods WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(query), periodID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) SetLocked(ctx context.Context, periodID string, locked bool) error {
	query := r.db.Rebind(`UPDATE periods SET locked = $1 WHERE id = $2`)
	return r.execOne(ctx, query, locked, periodID)
}

func (r *repository) InsertMember(ctx context.Context, periodID string, m Member, seq int64) error {
	query := r.db.Rebind(`INSERT INTO members (id, period_id, name, seq, created_at) VALUES ($1, $2, $3, $4, $5)`)
	_, err := r.db.ExecContext(ctx, query, m.ID, periodID, m.Name, seq, m.CreatedAt)
	return err
}

func (r *repository) UpdateMember(ctx context.Context, periodID string, m Member) error {
	query := r.db.Rebind(`UPDATE members SET name = $1 WHERE period_id = $2 AND id = $3`)
	return r.execOne(ctx, query, m.Name, periodID, m.ID)
}

func (r *repository) DeleteMember(ctx context.Context, periodID, memberID string) error {
	query := r.db.Rebind(`DELETE FROM members WHERE period_id = $1 AND id = $2`)
	return r.execOne(ctx, query, periodID, memberID)
}

func (r *repository) InsertTransaction(ctx context.Context, t Transaction, seq int64) error {
	ratios, err := encodeRatios(t.Ratios)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`INSERT INTO transactions (id, period_id, description, amount, payer_id, ratios, seq, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	_, err = r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.PeriodID,
		t.Description,
		int64(t.Amount),
		t.Payer,
		ratios,
		seq,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func (r *repository) UpdateTransaction(ctx context.Context, t Transaction) error {
	ratios, err := encodeRatios(t.Ratios)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`UPDATE transactions SET description = $1, amount = $2, payer_id = $3, ratios = $4, updated_at = $5 WHERE period_id = $6 AND id = $7`)
	return r.execOne(ctx, query, t.Description, int64(t.Amount), t.Payer, ratios, t.UpdatedAt, t.PeriodID, t.ID)
}

func (r *repository) DeleteTransaction(ctx context.Context, periodID, txID string) error {
	query := r.db.Rebind(`DELETE FROM transactions WHERE period_id = $1 AND id = $2`)
	return r.execOne(ctx, query, periodID, txID)
}

// LoadPeriods reads every period in one read-only transaction so the result is
// a consistent snapshot.
func (r *repository) LoadPeriods(ctx context.Context) ([]PeriodRecord, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: r.db.Backend == database.Postgres})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, locked, created_at FROM periods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying periods: %w", err)
	}
	var records []PeriodRecord
	index := make(map[string]int)
	for rows.Next() {
		var p PeriodRecord
		if err := rows.Scan(&p.ID, &p.Locked, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(records)
		records = append(records, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, period_id, name, seq, created_at FROM members ORDER BY period_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	for rows.Next() {
		var m Member
		var periodID string
		var seq int64
		if err := rows.Scan(&m.ID, &periodID, &m.Name, &seq, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		i, ok := index[periodID]
		if !ok {
			continue
		}
		records[i].Members = append(records[i].Members, m)
		records[i].NextSeq = max(records[i].NextSeq, seq+1)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, period_id, description, amount, payer_id, ratios, seq, created_at, updated_at FROM transactions ORDER BY period_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t Transaction
		var amount, seq int64
		var ratios []byte
		err := rows.Scan(&t.ID, &t.PeriodID, &t.Description, &amount, &t.Payer, &ratios, &seq, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		t.Amount = Amount(amount)
		if t.Ratios, err = decodeRatios(ratios); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		i, ok := index[t.PeriodID]
		if !ok {
			continue
		}
		records[i].Transactions = append(records[i].Transactions, t)
		records[i].NextSeq = max(records[i].NextSeq, seq+1)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, tx.Commit()
}

// execOne runs a statement that must touch exactly one row.
func (r *repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("expected one row, affected %d: %w", n, ErrNotFound)
	}
	return nil
}

// Ratios are stored as a JSON object of decimal strings so no precision is lost.
func encodeRatios(ratios map[string]decimal.Decimal) (string, error) {
	b, err := json.Marshal(ratios)
	if err != nil {
		return "", fmt.Errorf("encoding ratios: %w", err)
	}
	return string(b), nil
}

func decodeRatios(b []byte) (map[string]decimal.Decimal, error) {
	var ratios map[string]decimal.Decimal
	if err := json.Unmarshal(b, &ratios); err != nil {
		return nil, fmt.Errorf("decoding ratios: %w", err)
	}
	return ratios, nil
}
