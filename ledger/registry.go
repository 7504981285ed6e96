package ledger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type deps struct {
	store  Store
	events EventLog
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*deps)

// WithStore makes every mutation write through s.
func WithStore(s Store) Option {
	return func(d *deps) {
		d.store = s
	}
}

func WithEventLog(l EventLog) Option {
	return func(d *deps) {
		d.events = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *deps) {
		d.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(d *deps) {
		d.newID = newID
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *deps) {
		d.logger = l
	}
}

// Registry owns every period keyed by its id and is the only place where
// periods are created or removed. Create one per process and pass it around.
type Registry struct {
	mu      sync.RWMutex
	periods map[string]*Period
	deps    *deps
}

func NewRegistry(opts ...Option) *Registry {
	d := &deps{
		store:  nopStore{},
		events: nopEventLog{},
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "ledger")

	return &Registry{
		periods: make(map[string]*Period),
		deps:    d,
	}
}

// Load replaces the in-memory periods with the ones persisted in the store.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.deps.store.LoadPeriods(ctx)
	if err != nil {
		return fmt.Errorf("loading periods: %w", err)
	}

	periods := make(map[string]*Period, len(records))
	for _, rec := range records {
		if _, err := Aggregate(rec.Members, rec.Transactions); err != nil {
			return fmt.Errorf("period %s: %w", rec.ID, err)
		}
		periods[rec.ID] = newPeriod(rec, r.deps)
	}

	r.mu.Lock()
	r.periods = periods
	r.mu.Unlock()

	r.deps.logger.InfoContext(ctx, "periods loaded", "count", len(periods))
	return nil
}

// Create opens a new period with the given member names.
func (r *Registry) Create(ctx context.Context, periodID string, memberNames []string) (*Period, error) {
	if !ValidPeriodID(periodID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, periodID)
	}

	now := r.deps.now()
	rec := PeriodRecord{ID: periodID, CreatedAt: now}
	seen := make(map[string]bool, len(memberNames))
	for _, name := range memberNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if seen[normalizeName(name)] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, name)
		}
		seen[normalizeName(name)] = true
		rec.Members = append(rec.Members, Member{ID: r.deps.newID(), Name: name, CreatedAt: now})
	}
	rec.NextSeq = int64(len(rec.Members))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.periods[periodID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePeriod, periodID)
	}
	if err := r.deps.store.CreatePeriod(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing period: %w", err)
	}

	p := newPeriod(rec, r.deps)
	r.periods[periodID] = p

	r.deps.logger.InfoContext(ctx, "period created", "period", periodID, "members", len(rec.Members))
	r.deps.events.Log(newEvent(ctx, EventPeriodCreated, periodID, PeriodCreatedEvent{
		PeriodID:  periodID,
		Members:   slices.Clone(rec.Members),
		CreatedAt: now,
	}))
	return p, nil
}

func (r *Registry) Get(periodID string) (*Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.periods[periodID]
	if !ok {
		return nil, fmt.Errorf("period %s: %w", periodID, ErrNotFound)
	}
	return p, nil
}

// List returns a summary of every period ordered by id.
func (r *Registry) List() []PeriodSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]PeriodSummary, 0, len(r.periods))
	for _, p := range r.periods {
		summaries = append(summaries, p.Summary())
	}
	slices.SortFunc(summaries, func(a, b PeriodSummary) int { return cmp.Compare(a.ID, b.ID) })
	return summaries
}

// Delete removes a period with all its members and transactions. Locked
// periods are protected and must be unlocked first.
func (r *Registry) Delete(ctx context.Context, periodID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.periods[periodID]
	if !ok {
		return fmt.Errorf("period %s: %w", periodID, ErrNotFound)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return fmt.Errorf("deleting %s: %w", periodID, ErrLedgerLocked)
	}
	if err := r.deps.store.DeletePeriod(ctx, periodID); err != nil {
		return fmt.Errorf("deleting period: %w", err)
	}
	p.deleted = true
	delete(r.periods, periodID)

	r.deps.logger.InfoContext(ctx, "period deleted", "period", periodID, "actor", ActorFromContext(ctx))
	r.deps.events.Log(newEvent(ctx, EventPeriodDeleted, periodID, PeriodDeletedEvent{
		PeriodID:         periodID,
		TransactionCount: len(p.transactions),
	}))
	return nil
}

// FindTransaction returns the period that holds the transaction txID.
func (r *Registry) FindTransaction(txID string) (*Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.periods {
		p.mu.RLock()
		found := slices.ContainsFunc(p.transactions, func(tx Transaction) bool { return tx.ID == txID })
		p.mu.RUnlock()
		if found {
			return p, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
}

// Members lists the members of every period, periods ordered by id.
func (r *Registry) Members() []MemberRef {
	var refs []MemberRef
	for _, s := range r.List() {
		p, err := r.Get(s.ID)
		if err != nil {
			continue
		}
		for _, m := range p.Members() {
			refs = append(refs, MemberRef{Member: m, PeriodID: s.ID})
		}
	}
	return refs
}
