// Package models defines the domain types for the creative canvas.
package models

import (
	"fmt"

	"github.com/starford/adcanvas/internal/apperr"
)

// NodeType is the variant tag of a canvas node.
type NodeType string

const (
	NodeProduct  NodeType = "product"
	NodeConcept  NodeType = "concept"
	NodeCreative NodeType = "creative"
)

// Valid reports whether t is a known node variant.
func (t NodeType) Valid() bool {
	switch t {
	case NodeProduct, NodeConcept, NodeCreative:
		return true
	}
	return false
}

// Status is the lifecycle state of a node.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Position is the layout coordinate of a node. It carries no semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the pure-data payload of a node. JSON keys match the
// project file format written by earlier releases.
type NodeData struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Status  Status `json:"status,omitempty"`

	// ImageURL is a data URI or a remote URL.
	ImageURL string `json:"imageUrl,omitempty"`
	// Concept is the short concept label shown on concept nodes.
	Concept string `json:"concept,omitempty"`

	ParentProductID         string `json:"parentProductId,omitempty"`
	ParentGeneratedID       string `json:"parentGeneratedId,omitempty"`
	ParentProductImageURL   string `json:"parentProductImageUrl,omitempty"`
	ParentGeneratedImageURL string `json:"parentGeneratedImageUrl,omitempty"`
	ParentConceptID         string `json:"parentConceptId,omitempty"`

	// NoText forbids rendered text in images generated from this concept.
	NoText        bool `json:"fromKnowledgeGraph,omitempty"`
	JustCompleted bool `json:"justCompleted,omitempty"`
	AutoEdit      bool `json:"autoEdit,omitempty"`

	Extra Extra `json:"-"`
}

// Node is a typed canvas vertex.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Validate checks the structural invariants of a newly created node.
// A concept must reference exactly one parent: a product or a creative.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: node id is required", apperr.ErrInvalidInput)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: unknown node type %q", apperr.ErrInvalidInput, n.Type)
	}
	if n.Type == NodeConcept {
		hasProduct := n.Data.ParentProductID != ""
		hasGenerated := n.Data.ParentGeneratedID != ""
		if hasProduct == hasGenerated {
			return fmt.Errorf("%w: concept %s must have exactly one parent", apperr.ErrInvalidInput, n.ID)
		}
	}
	return nil
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`

	Extra Extra `json:"-"`
}

// EdgeID returns the conventional id for an edge from source to target.
func EdgeID(source, target string) string {
	return "e-" + source + "-" + target
}

// NodePatch is a partial update to NodeData. Nil fields are left unchanged.
type NodePatch struct {
	Title         *string `json:"title,omitempty"`
	Content       *string `json:"content,omitempty"`
	Status        *Status `json:"status,omitempty"`
	ImageURL      *string `json:"imageUrl,omitempty"`
	Concept       *string `json:"concept,omitempty"`
	NoText        *bool   `json:"fromKnowledgeGraph,omitempty"`
	JustCompleted *bool   `json:"justCompleted,omitempty"`
	AutoEdit      *bool   `json:"autoEdit,omitempty"`
}

// Apply merges the patch into d and returns the result.
func (p NodePatch) Apply(d NodeData) NodeData {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.ImageURL != nil {
		d.ImageURL = *p.ImageURL
	}
	if p.Concept != nil {
		d.Concept = *p.Concept
	}
	if p.NoText != nil {
		d.NoText = *p.NoText
	}
	if p.JustCompleted != nil {
		d.JustCompleted = *p.JustCompleted
	}
	if p.AutoEdit != nil {
		d.AutoEdit = *p.AutoEdit
	}
	return d
}

// Empty reports whether the patch changes nothing.
func (p NodePatch) Empty() bool {
	return p == NodePatch{}
}

// Ptr returns a pointer to v. It keeps patch literals short.
func Ptr[T any](v T) *T {
	return &v
}
