package eventlogger

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/billbatista/acasinha-ledger/database"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *memorySink) Save(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e := NewEvent(
		WithType("period.locked"),
		WithData(map[string]string{"period_id": "2024-03"}),
		WithMetadata(map[string]string{"actor": "ana"}),
		WithTime(at),
	)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "period.locked", e.Type)
	assert.Equal(t, "ana", e.Metadata["actor"])
	assert.Equal(t, at, e.CreatedAt)

	assert.NotNil(t, NewEvent().Metadata)
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	sink := &memorySink{}
	w := NewWorker(sink, 10)
	w.Start()

	for range 5 {
		w.Log(NewEvent(WithType("x")))
	}
	w.Shutdown()

	assert.Equal(t, 5, sink.len())

	// logging after shutdown is dropped, not a panic
	w.Log(NewEvent(WithType("late")))
	assert.Equal(t, 5, sink.len())
	assert.Equal(t, uint64(1), w.Dropped())

	w.Shutdown()
}

func TestWorkerDropsWhenFull(t *testing.T) {
	sink := &memorySink{}
	w := NewWorker(sink, 1)

	w.Log(NewEvent(WithType("kept")))
	w.Log(NewEvent(WithType("dropped")))

	w.Start()
	w.Shutdown()

	require.Equal(t, 1, sink.len())
	assert.Equal(t, "kept", sink.events[0].Type)
	assert.Equal(t, uint64(1), w.Dropped())
}

func TestWorkerAccountsForEveryEventDuringShutdown(t *testing.T) {
	const writers, perWriter = 4, 50

	for range 20 {
		sink := &memorySink{}
		w := NewWorker(sink, 16)
		w.Start()

		var wg sync.WaitGroup
		for range writers {
			wg.Go(func() {
				for range perWriter {
					w.Log(NewEvent(WithType("x")))
				}
			})
		}
		w.Shutdown()
		wg.Wait()

		saved := uint64(sink.len())
		assert.Equal(t, uint64(writers*perWriter), saved+w.Dropped())
	}
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	a, b := &memorySink{}, &memorySink{}

	require.NoError(t, NewFanout(a, b).Save(ctx, NewEvent(WithType("x"))))
	assert.Equal(t, 1, a.len())
	assert.Equal(t, 1, b.len())

	broken := &memorySink{err: errors.New("broker down")}
	err := NewFanout(a, broken, b).Save(ctx, NewEvent(WithType("y")))
	require.EqualError(t, err, "broker down")
	assert.Equal(t, 2, a.len())
	assert.Equal(t, 2, b.len())
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestAMQPSinkRoutesByType(t *testing.T) {
	pub := &fakePublisher{}
	sink := &AMQPSink{channel: pub, exchange: "ledger.events"}

	e := NewEvent(WithType("transaction.added"), WithData(map[string]int{"amount": 100}))
	require.NoError(t, sink.Save(context.Background(), e))

	assert.Equal(t, "ledger.events", pub.exchange)
	assert.Equal(t, "transaction.added", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, e.ID.String(), pub.msg.MessageId)

	var body struct {
		Type string         `json:"event_type"`
		Data map[string]int `json:"event_data"`
	}
	require.NoError(t, json.Unmarshal(pub.msg.Body, &body))
	assert.Equal(t, "transaction.added", body.Type)
	assert.Equal(t, 100, body.Data["amount"])

	pub.err = errors.New("channel closed")
	require.ErrorContains(t, sink.Save(context.Background(), e), "channel closed")
}

func TestSqlEventLogger(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.SQLite, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSqlEventLogger(db)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []string{"period.created", "transaction.added", "transaction.added"} {
		e := NewEvent(
			WithType(typ),
			WithData(map[string]int{"n": i}),
			WithMetadata(map[string]string{"period_id": "2024-03"}),
			WithTime(base.Add(time.Duration(i)*time.Minute)),
		)
		require.NoError(t, store.Save(ctx, e))
	}

	added, err := store.GetByType(ctx, "transaction.added", 10)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.JSONEq(t, `{"n":2}`, string(added[0].Data.(json.RawMessage)))
	assert.Equal(t, "2024-03", added[0].Metadata["period_id"])

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "transaction.added", recent[0].Type)
	assert.True(t, recent[0].CreatedAt.After(recent[1].CreatedAt))
}
