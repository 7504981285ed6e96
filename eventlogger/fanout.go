package eventlogger

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fanout saves every event to all of its sinks concurrently. A failing sink
// does not stop the others; the first error is returned.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Save(ctx context.Context, e Event) error {
	var g errgroup.Group
	for _, s := range f.sinks {
		g.Go(func() error {
			return s.Save(ctx, e)
		})
	}
	return g.Wait()
}
