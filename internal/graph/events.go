package graph

import "github.com/starford/adcanvas/internal/models"

// EventKind names a store mutation.
type EventKind string

const (
	NodeAdded   EventKind = "node.added"
	NodeUpdated EventKind = "node.updated"
	NodeDeleted EventKind = "node.deleted"
	EdgeAdded   EventKind = "edge.added"
	EdgeDeleted EventKind = "edge.deleted"
	Replaced    EventKind = "canvas.replaced"
)

// Event describes one applied mutation.
type Event struct {
	Kind   EventKind   `json:"kind"`
	NodeID string      `json:"nodeId,omitempty"`
	Node   models.Node `json:"node,omitempty"`
	Edge   models.Edge `json:"edge,omitempty"`
}

// Observer receives store events in the order they were applied. It is
// called outside the store lock and must not call back into the store.
type Observer interface {
	GraphChanged(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// GraphChanged calls f(ev).
func (f ObserverFunc) GraphChanged(ev Event) { f(ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

// GraphChanged forwards ev to every observer.
func (o Observers) GraphChanged(ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.GraphChanged(ev)
		}
	}
}
