// Package eventstest provides an in-memory events.Publisher for tests.
package eventstest

import (
	"context"
	"encoding/json"
	"sync"
)

type Event struct {
	RoutingKey string
	Body       []byte
}

// Recorder keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, routingKey string, v interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{RoutingKey: routingKey, Body: b})
	return nil
}

// Keys returns the routing keys in publish order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.Events))
	for i, e := range r.Events {
		keys[i] = e.RoutingKey
	}
	return keys
}
