package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Period is the ledger of one period (block): its member roster, its
// transactions in insertion order and the lock flag. Mutations are serialized
// per period; reads may run concurrently and always see a committed state.
type Period struct {
	mu           sync.RWMutex
	id           string
	locked       bool
	deleted      bool
	createdAt    time.Time
	members      []Member
	transactions []Transaction
	nextSeq      int64
	deps         *deps
}

func newPeriod(rec PeriodRecord, d *deps) *Period {
	return &Period{
		id:           rec.ID,
		locked:       rec.Locked,
		createdAt:    rec.CreatedAt,
		members:      rec.Members,
		transactions: rec.Transactions,
		nextSeq:      rec.NextSeq,
		deps:         d,
	}
}

func (p *Period) ID() string {
	return p.id
}

func (p *Period) Locked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locked
}

func (p *Period) Summary() PeriodSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summary(p.members, p.transactions, p.locked)
}

func (p *Period) Members() []Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.members)
}

// View returns the full state of the period with share breakdowns and balances.
func (p *Period) View() (View, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.deleted {
		return View{}, ErrNotFound
	}
	return p.buildView(p.members, p.transactions, p.locked)
}

// Transactions returns the transactions in insertion order, each with its
// share breakdown.
func (p *Period) Transactions() ([]TransactionView, error) {
	v, err := p.View()
	if err != nil {
		return nil, err
	}
	return v.Transactions, nil
}

// Balances returns paid/owed/net per member in roster order.
func (p *Period) Balances() ([]Balance, error) {
	v, err := p.View()
	if err != nil {
		return nil, err
	}
	return v.Balances, nil
}

// Settlements returns the payments that would settle the period.
func (p *Period) Settlements() ([]Transfer, error) {
	balances, err := p.Balances()
	if err != nil {
		return nil, err
	}
	return Settle(balances), nil
}

// Transaction returns one transaction with its share breakdown.
func (p *Period) Transaction(id string) (TransactionView, error) {
	v, err := p.View()
	if err != nil {
		return TransactionView{}, err
	}
	return v.transaction(id)
}

func (p *Period) AddMember(ctx context.Context, name string) (Member, View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return Member{}, View{}, err
	}
	name, err := p.checkName(name, "")
	if err != nil {
		return Member{}, View{}, err
	}

	m := Member{ID: p.deps.newID(), Name: name, CreatedAt: p.deps.now()}
	members := append(slices.Clip(p.members), m)
	view, err := p.buildView(members, p.transactions, p.locked)
	if err != nil {
		return Member{}, View{}, err
	}

	if err := p.deps.store.InsertMember(ctx, p.id, m, p.nextSeq); err != nil {
		return Member{}, View{}, fmt.Errorf("storing member: %w", err)
	}
	p.members = members
	p.nextSeq++

	p.deps.events.Log(newEvent(ctx, EventMemberAdded, p.id, MemberAddedEvent{PeriodID: p.id, Member: m}))
	return m, view, nil
}

// RenameMember changes the display name of a member that no transaction
// references yet.
func (p *Period) RenameMember(ctx context.Context, memberID, name string) (Member, View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return Member{}, View{}, err
	}
	i := slices.IndexFunc(p.members, func(m Member) bool { return m.ID == memberID })
	if i < 0 {
		return Member{}, View{}, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	if p.referenced(memberID) {
		return Member{}, View{}, fmt.Errorf("renaming %s: %w", memberID, ErrMemberInUse)
	}
	name, err := p.checkName(name, memberID)
	if err != nil {
		return Member{}, View{}, err
	}

	old := p.members[i]
	renamed := old
	renamed.Name = name
	members := slices.Clone(p.members)
	members[i] = renamed
	view, err := p.buildView(members, p.transactions, p.locked)
	if err != nil {
		return Member{}, View{}, err
	}

	if err := p.deps.store.UpdateMember(ctx, p.id, renamed); err != nil {
		return Member{}, View{}, fmt.Errorf("updating member: %w", err)
	}
	p.members = members

	p.deps.events.Log(newEvent(ctx, EventMemberRenamed, p.id, MemberRenamedEvent{
		PeriodID: p.id,
		MemberID: memberID,
		OldName:  old.Name,
		NewName:  name,
	}))
	return renamed, view, nil
}

// RemoveMember drops a member that no transaction references.
func (p *Period) RemoveMember(ctx context.Context, memberID string) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return View{}, err
	}
	i := slices.IndexFunc(p.members, func(m Member) bool { return m.ID == memberID })
	if i < 0 {
		return View{}, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	if p.referenced(memberID) {
		return View{}, fmt.Errorf("removing %s: %w", memberID, ErrMemberInUse)
	}

	removed := p.members[i]
	members := slices.Delete(slices.Clone(p.members), i, i+1)
	view, err := p.buildView(members, p.transactions, p.locked)
	if err != nil {
		return View{}, err
	}

	if err := p.deps.store.DeleteMember(ctx, p.id, memberID); err != nil {
		return View{}, fmt.Errorf("deleting member: %w", err)
	}
	p.members = members

	p.deps.events.Log(newEvent(ctx, EventMemberRemoved, p.id, MemberRemovedEvent{PeriodID: p.id, Member: removed}))
	return view, nil
}

func (p *Period) AddTransaction(ctx context.Context, in TransactionInput) (TransactionView, View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return TransactionView{}, View{}, err
	}
	if err := p.validate(in); err != nil {
		return TransactionView{}, View{}, err
	}

	now := p.deps.now()
	tx := Transaction{
		ID:          p.deps.newID(),
		PeriodID:    p.id,
		Description: in.Description,
		Amount:      in.Amount,
		Payer:       in.Payer,
		Ratios:      cloneRatios(in.Ratios),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	txs := append(slices.Clip(p.transactions), tx)
	view, err := p.buildView(p.members, txs, p.locked)
	if err != nil {
		return TransactionView{}, View{}, err
	}

	if err := p.deps.store.InsertTransaction(ctx, tx, p.nextSeq); err != nil {
		return TransactionView{}, View{}, fmt.Errorf("storing transaction: %w", err)
	}
	p.transactions = txs
	p.nextSeq++

	p.deps.events.Log(newEvent(ctx, EventTransactionAdded, p.id, TransactionAddedEvent{PeriodID: p.id, Transaction: tx}))
	added, err := view.transaction(tx.ID)
	return added, view, err
}

// UpdateTransaction replaces every editable field of a transaction at once.
// Its id, creation time and position are kept.
func (p *Period) UpdateTransaction(ctx context.Context, txID string, in TransactionInput) (TransactionView, View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return TransactionView{}, View{}, err
	}
	i := slices.IndexFunc(p.transactions, func(tx Transaction) bool { return tx.ID == txID })
	if i < 0 {
		return TransactionView{}, View{}, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
	}
	if err := p.validate(in); err != nil {
		return TransactionView{}, View{}, err
	}

	before := p.transactions[i]
	after := before
	after.Description = in.Description
	after.Amount = in.Amount
	after.Payer = in.Payer
	after.Ratios = cloneRatios(in.Ratios)
	after.UpdatedAt = p.deps.now()

	txs := slices.Clone(p.transactions)
	txs[i] = after
	view, err := p.buildView(p.members, txs, p.locked)
	if err != nil {
		return TransactionView{}, View{}, err
	}

	if err := p.deps.store.UpdateTransaction(ctx, after); err != nil {
		return TransactionView{}, View{}, fmt.Errorf("updating transaction: %w", err)
	}
	p.transactions = txs

	p.deps.events.Log(newEvent(ctx, EventTransactionUpdated, p.id, TransactionUpdatedEvent{
		PeriodID: p.id,
		Before:   before,
		After:    after,
	}))
	updated, err := view.transaction(txID)
	return updated, view, err
}

func (p *Period) DeleteTransaction(ctx context.Context, txID string) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return View{}, err
	}
	i := slices.IndexFunc(p.transactions, func(tx Transaction) bool { return tx.ID == txID })
	if i < 0 {
		return View{}, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
	}

	removed := p.transactions[i]
	txs := slices.Delete(slices.Clone(p.transactions), i, i+1)
	view, err := p.buildView(p.members, txs, p.locked)
	if err != nil {
		return View{}, err
	}

	if err := p.deps.store.DeleteTransaction(ctx, p.id, txID); err != nil {
		return View{}, fmt.Errorf("deleting transaction: %w", err)
	}
	p.transactions = txs

	p.deps.events.Log(newEvent(ctx, EventTransactionDeleted, p.id, TransactionDeletedEvent{PeriodID: p.id, Transaction: removed}))
	return view, nil
}

// Lock freezes the period. Locking a locked period is a no-op.
func (p *Period) Lock(ctx context.Context) (View, error) {
	return p.setLocked(ctx, true)
}

// Unlock reopens the period. Unlocking an unlocked period is a no-op.
func (p *Period) Unlock(ctx context.Context) (View, error) {
	return p.setLocked(ctx, false)
}

func (p *Period) setLocked(ctx context.Context, locked bool) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deleted {
		return View{}, ErrNotFound
	}
	if p.locked == locked {
		p.deps.logger.DebugContext(ctx, "lock state unchanged", "period", p.id, "locked", locked)
		return p.buildView(p.members, p.transactions, p.locked)
	}

	view, err := p.buildView(p.members, p.transactions, locked)
	if err != nil {
		return View{}, err
	}
	if err := p.deps.store.SetLocked(ctx, p.id, locked); err != nil {
		return View{}, fmt.Errorf("storing lock state: %w", err)
	}
	p.locked = locked

	eventType, msg := EventPeriodUnlocked, "period unlocked"
	if locked {
		eventType, msg = EventPeriodLocked, "period locked"
	}
	p.deps.logger.InfoContext(ctx, msg, "period", p.id, "actor", ActorFromContext(ctx))
	p.deps.events.Log(newEvent(ctx, eventType, p.id, PeriodLockEvent{PeriodID: p.id, Locked: locked}))
	return view, nil
}

func (p *Period) writable() error {
	if p.deleted {
		return ErrNotFound
	}
	if p.locked {
		return fmt.Errorf("%s: %w", p.id, ErrLedgerLocked)
	}
	return nil
}

// validate checks membership first, then amount and ratio through Split.
func (p *Period) validate(in TransactionInput) error {
	if !p.isMember(in.Payer) {
		return fmt.Errorf("%w: payer %s", ErrUnknownMember, in.Payer)
	}
	for id := range in.Ratios {
		if !p.isMember(id) {
			return fmt.Errorf("%w: %s in ratio", ErrUnknownMember, id)
		}
	}
	_, err := Split(in.Amount, in.Ratios)
	return err
}

// checkName trims name and rejects it when empty or already used by another
// member than except.
func (p *Period) checkName(name, except string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	for _, m := range p.members {
		if m.ID != except && normalizeName(m.Name) == normalizeName(name) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateMember, name)
		}
	}
	return name, nil
}

func (p *Period) isMember(id string) bool {
	return slices.ContainsFunc(p.members, func(m Member) bool { return m.ID == id })
}

func (p *Period) referenced(memberID string) bool {
	for _, tx := range p.transactions {
		if tx.Payer == memberID {
			return true
		}
		if _, ok := tx.Ratios[memberID]; ok {
			return true
		}
	}
	return false
}

func (p *Period) summary(members []Member, txs []Transaction, locked bool) PeriodSummary {
	return PeriodSummary{
		ID:               p.id,
		Locked:           locked,
		MemberCount:      len(members),
		TransactionCount: len(txs),
		CreatedAt:        p.createdAt,
	}
}

// buildView aggregates a candidate state. Mutations call it before committing
// so a state that cannot be aggregated is never stored.
func (p *Period) buildView(members []Member, txs []Transaction, locked bool) (View, error) {
	totals, err := Aggregate(members, txs)
	if err != nil {
		return View{}, err
	}

	view := View{
		Period:       p.summary(members, txs, locked),
		Members:      slices.Clone(members),
		Transactions: make([]TransactionView, 0, len(txs)),
		Balances:     make([]Balance, 0, len(members)),
	}
	for _, tx := range txs {
		shares, err := Split(tx.Amount, tx.Ratios)
		if err != nil {
			return View{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		tx.Ratios = cloneRatios(tx.Ratios)
		view.Transactions = append(view.Transactions, TransactionView{Transaction: tx, Shares: shares})
	}
	for _, m := range members {
		view.Balances = append(view.Balances, totals[m.ID])
	}
	return view, nil
}

func (v View) transaction(id string) (TransactionView, error) {
	for _, tx := range v.Transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return TransactionView{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}
