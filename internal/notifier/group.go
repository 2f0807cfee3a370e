package notifier

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group runs several notifiers, one per listener, as a unit. The first
// fatal error stops the rest.
type Group struct {
	notifiers []*Notifier
}

func NewGroup(notifiers ...*Notifier) *Group {
	return &Group{notifiers: notifiers}
}

// Run blocks until every notifier has returned.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, n := range g.notifiers {
		eg.Go(func() error { return n.Run(ctx) })
	}
	return eg.Wait()
}

// Connected reports whether at least one listener has a live session.
func (g *Group) Connected() bool {
	for _, n := range g.notifiers {
		if n.Connected() {
			return true
		}
	}
	return false
}

// States returns each listener's current state keyed by name.
func (g *Group) States() map[string]string {
	out := make(map[string]string, len(g.notifiers))
	for _, n := range g.notifiers {
		out[n.Name()] = n.State().String()
	}
	return out
}
