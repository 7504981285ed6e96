package ledger

import (
	"context"
	"time"

	"github.com/billbatista/acasinha-ledger/eventlogger"
)

const (
	EventPeriodCreated      = "period.created"
	EventPeriodDeleted      = "period.deleted"
	EventPeriodLocked       = "period.locked"
	EventPeriodUnlocked     = "period.unlocked"
	EventMemberAdded        = "member.added"
	EventMemberRenamed      = "member.renamed"
	EventMemberRemoved      = "member.removed"
	EventTransactionAdded   = "transaction.added"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
)

type PeriodCreatedEvent struct {
	PeriodID  string
	Members   []Member
	CreatedAt time.Time
}

type PeriodDeletedEvent struct {
	PeriodID         string
	TransactionCount int
}

type PeriodLockEvent struct {
	PeriodID string
	Locked   bool
}

type MemberAddedEvent struct {
	PeriodID string
	Member   Member
}

type MemberRenamedEvent struct {
	PeriodID string
	MemberID string
	OldName  string
	NewName  string
}

type MemberRemovedEvent struct {
	PeriodID string
	Member   Member
}

type TransactionAddedEvent struct {
	PeriodID    string
	Transaction Transaction
}

type TransactionUpdatedEvent struct {
	PeriodID string
	Before   Transaction
	After    Transaction
}

type TransactionDeletedEvent struct {
	PeriodID    string
	Transaction Transaction
}

// EventLog receives audit events for every successful mutation.
// *eventlogger.Worker satisfies it.
type EventLog interface {
	Log(evt eventlogger.Event)
}

type nopEventLog struct{}

func (nopEventLog) Log(eventlogger.Event) {}

type actorKey struct{}

// WithActor attaches the identity of the caller to ctx. The ledger only copies
// it into event metadata; it never interprets it.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "" when absent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

func newEvent(ctx context.Context, eventType, periodID string, data any) eventlogger.Event {
	metadata := map[string]string{"period_id": periodID}
	if actor := ActorFromContext(ctx); actor != "" {
		metadata["actor"] = actor
	}
	return eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithData(data),
		eventlogger.WithMetadata(metadata),
	)
}
