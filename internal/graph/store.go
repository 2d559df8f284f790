// Package graph holds the canvas node/edge set and guards its invariants.
package graph

import (
	"fmt"
	"sync"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// Reader is the read-only view of the store used by pure helpers.
type Reader interface {
	Node(id string) (models.Node, bool)
	FirstOfType(t models.NodeType) (models.Node, bool)
}

// Snapshot is a point-in-time copy of the canvas.
type Snapshot struct {
	Nodes []models.Node `json:"nodes"`
	Edges []models.Edge `json:"edges"`
}

// Store is the single source of truth for canvas nodes and edges.
// It is safe for concurrent use. Values returned are copies.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]models.Node
	order []string
	edges []models.Edge

	// notifyMu is taken before mu is released so observers see events in
	// the order mutations were applied.
	notifyMu sync.Mutex
	observer Observer
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers the observer notified after every mutation.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{nodes: make(map[string]models.Node)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddNode inserts a node. Concept nodes must reference exactly one parent.
func (s *Store) AddNode(n models.Node) error {
	return s.AddBatch([]models.Node{n}, nil)
}

// AddEdge inserts a directed edge between two existing nodes.
// Self-loops are allowed.
func (s *Store) AddEdge(e models.Edge) (models.Edge, error) {
	if e.ID == "" {
		e.ID = models.EdgeID(e.Source, e.Target)
	}
	if err := s.AddBatch(nil, []models.Edge{e}); err != nil {
		return models.Edge{}, err
	}
	return e, nil
}

// AddBatch validates every node and edge before applying any of them, so a
// failing batch leaves the store untouched.
func (s *Store) AddBatch(nodes []models.Node, edges []models.Edge) error {
	s.mu.Lock()

	pending := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			s.mu.Unlock()
			return err
		}
		if _, ok := s.nodes[n.ID]; ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: node %s", apperr.ErrAlreadyExists, n.ID)
		}
		if _, ok := pending[n.ID]; ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: node %s appears twice", apperr.ErrAlreadyExists, n.ID)
		}
		pending[n.ID] = struct{}{}
	}

	exists := func(id string) bool {
		if _, ok := s.nodes[id]; ok {
			return true
		}
		_, ok := pending[id]
		return ok
	}
	edgeIDs := make(map[string]struct{}, len(s.edges)+len(edges))
	for _, e := range s.edges {
		edgeIDs[e.ID] = struct{}{}
	}
	for i := range edges {
		if edges[i].ID == "" {
			edges[i].ID = models.EdgeID(edges[i].Source, edges[i].Target)
		}
		e := edges[i]
		if !exists(e.Source) || !exists(e.Target) {
			s.mu.Unlock()
			return fmt.Errorf("%w: edge %s references a missing node", apperr.ErrNotFound, e.ID)
		}
		if _, ok := edgeIDs[e.ID]; ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: edge %s", apperr.ErrAlreadyExists, e.ID)
		}
		edgeIDs[e.ID] = struct{}{}
	}

	events := make([]Event, 0, len(nodes)+len(edges))
	for _, n := range nodes {
		s.nodes[n.ID] = n
		s.order = append(s.order, n.ID)
		events = append(events, Event{Kind: NodeAdded, NodeID: n.ID, Node: n})
	}
	for _, e := range edges {
		s.edges = append(s.edges, e)
		events = append(events, Event{Kind: EdgeAdded, Edge: e})
	}
	s.unlockAndNotify(events...)
	return nil
}

// DeleteNode removes a node and every edge touching it. A node that is the
// source of any edge cannot be deleted; inbound edges do not block.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: node %s", apperr.ErrNotFound, id)
	}
	for _, e := range s.edges {
		if e.Source == id {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", apperr.ErrHasDownstreamDependents, id)
		}
	}

	var events []Event
	kept := s.edges[:0:0]
	for _, e := range s.edges {
		if e.Target == id {
			events = append(events, Event{Kind: EdgeDeleted, Edge: e})
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept

	delete(s.nodes, id)
	for i, nid := range s.order {
		if nid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	events = append(events, Event{Kind: NodeDeleted, NodeID: id, Node: n})
	s.unlockAndNotify(events...)
	return nil
}

// UpdateNodeData merges patch into the node's data and returns the result.
func (s *Store) UpdateNodeData(id string, patch models.NodePatch) (models.Node, error) {
	return s.update(id, func(models.Node) models.NodePatch { return patch })
}

// UpdateTitle sets the node title. A concept's label follows its title.
func (s *Store) UpdateTitle(id, title string) (models.Node, error) {
	return s.update(id, func(n models.Node) models.NodePatch {
		patch := models.NodePatch{Title: &title}
		if n.Type == models.NodeConcept {
			patch.Concept = &title
		}
		return patch
	})
}

// update applies the patch built from the current node under one lock.
func (s *Store) update(id string, build func(models.Node) models.NodePatch) (models.Node, error) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return models.Node{}, fmt.Errorf("%w: node %s", apperr.ErrNotFound, id)
	}
	n.Data = build(n).Apply(n.Data)
	s.nodes[id] = n
	s.unlockAndNotify(Event{Kind: NodeUpdated, NodeID: id, Node: n})
	return n, nil
}

// UpdateContent sets the node content (a concept's prompt).
func (s *Store) UpdateContent(id, content string) (models.Node, error) {
	return s.UpdateNodeData(id, models.NodePatch{Content: &content})
}

// Replace swaps the whole canvas. Node ids must be unique and every edge
// must reference existing nodes. Concept parent rules are not enforced so
// older project files still load.
func (s *Store) Replace(nodes []models.Node, edges []models.Edge) error {
	next := make(map[string]models.Node, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node id is required", apperr.ErrInvalidInput)
		}
		if _, dup := next[n.ID]; dup {
			return fmt.Errorf("%w: node %s", apperr.ErrAlreadyExists, n.ID)
		}
		next[n.ID] = n
		order = append(order, n.ID)
	}
	for _, e := range edges {
		if _, ok := next[e.Source]; !ok {
			return fmt.Errorf("%w: edge %s source %s", apperr.ErrNotFound, e.ID, e.Source)
		}
		if _, ok := next[e.Target]; !ok {
			return fmt.Errorf("%w: edge %s target %s", apperr.ErrNotFound, e.ID, e.Target)
		}
	}

	s.mu.Lock()
	s.nodes = next
	s.order = order
	s.edges = append([]models.Edge(nil), edges...)
	s.unlockAndNotify(Event{Kind: Replaced})
	return nil
}

// Node returns the node with the given id.
func (s *Store) Node(id string) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (s *Store) Nodes() []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// NodesByType returns all nodes of type t in insertion order.
func (s *Store) NodesByType(t models.NodeType) []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Node
	for _, id := range s.order {
		if n := s.nodes[id]; n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// FirstOfType returns the earliest inserted node of type t.
func (s *Store) FirstOfType(t models.NodeType) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if n := s.nodes[id]; n.Type == t {
			return n, true
		}
	}
	return models.Node{}, false
}

// Edges returns a copy of all edges.
func (s *Store) Edges() []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Edge(nil), s.edges...)
}

// Children returns the targets of edges leaving id.
func (s *Store) Children(id string) []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Node
	for _, e := range s.edges {
		if e.Source == id {
			if n, ok := s.nodes[e.Target]; ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Parents returns the sources of edges entering id.
func (s *Store) Parents(id string) []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Node
	for _, e := range s.edges {
		if e.Target == id {
			if n, ok := s.nodes[e.Source]; ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Snapshot returns a copy of the whole canvas.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Nodes: s.Nodes(), Edges: s.Edges()}
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// unlockAndNotify releases mu and delivers events. Observers must not call
// back into the store.
func (s *Store) unlockAndNotify(events ...Event) {
	if s.observer == nil {
		s.mu.Unlock()
		return
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, ev := range events {
		s.observer.GraphChanged(ev)
	}
}
