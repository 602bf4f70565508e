package ui

import (
	"context"
	"sync"

	"forumbot/platform"
)

// Dispatcher fans the platform's single reaction stream out to the live
// sessions. Each session filters for its own forest by message ID, so
// broadcasting is correct even when forests coexist in one channel.
type Dispatcher struct {
	client platform.Client

	mu   sync.Mutex
	subs map[string]*Session
}

// NewDispatcher creates a dispatcher over the client's reaction stream.
func NewDispatcher(client platform.Client) *Dispatcher {
	return &Dispatcher{client: client, subs: make(map[string]*Session)}
}

// Subscribe registers a session to receive reaction events.
func (d *Dispatcher) Subscribe(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[s.ID()] = s
}

// Unsubscribe removes a session. Safe to call for unknown IDs.
func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, id)
}

// Run forwards reaction events to every subscribed session until the
// stream closes or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	reactions := d.client.Reactions()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-reactions:
			if !ok {
				return
			}
			d.mu.Lock()
			for _, s := range d.subs {
				s.Deliver(ev)
			}
			d.mu.Unlock()
		}
	}
}
