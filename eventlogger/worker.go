package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// saveTimeout bounds a single Save so a stuck sink cannot stall the queue.
const saveTimeout = 10 * time.Second

// Worker saves events in the background so request handlers never wait on a
// sink. Events logged while the buffer is full, or after Shutdown, are dropped
// and counted.
type Worker struct {
	events  chan Event
	sink    Sink
	logger  *slog.Logger
	wg      sync.WaitGroup
	done    chan struct{}
	dropped atomic.Uint64

	// mu guards stopped; Log holds it across the check and the send so no
	// event lands in the buffer after the final drain.
	mu      sync.RWMutex
	stopped bool
}

func NewWorker(sink Sink, bufferSize int) *Worker {
	return &Worker{
		events: make(chan Event, bufferSize),
		sink:   sink,
		logger: slog.Default().With("component", "eventlogger"),
		done:   make(chan struct{}),
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.done:
				w.drain()
				return
			case event := <-w.events:
				w.save(event)
			}
		}
	})
}

func (w *Worker) drain() {
	w.logger.Info("draining events before shutdown", "remaining_events", len(w.events))
	for {
		select {
		case event := <-w.events:
			w.save(event)
		default:
			return
		}
	}
}

func (w *Worker) save(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := w.sink.Save(ctx, event); err != nil {
		w.logger.Error("failed to save event", "error", err, "event_type", event.Type, "event_id", event.ID)
	}
}

// Log queues an event without blocking.
func (w *Worker) Log(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.drop(event, "event worker stopped, dropping event")
		return
	}
	select {
	case w.events <- event:
	default:
		w.drop(event, "event channel full, dropping event")
	}
}

func (w *Worker) drop(event Event, msg string) {
	w.dropped.Add(1)
	w.logger.Warn(msg, "event_type", event.Type, "event_id", event.ID)
}

// Dropped reports how many events were discarded so far.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}

// Shutdown stops accepting events and waits until the buffered ones are saved.
// Calling it more than once is safe.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	if n := w.dropped.Load(); n > 0 {
		w.logger.Warn("events dropped during run", "count", n)
	}
}
