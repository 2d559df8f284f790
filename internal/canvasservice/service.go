// Package canvasservice coordinates the graph store, the analysis session,
// the generation workflow and saved projects for the API and MCP surfaces.
package canvasservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/generation"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/index"
	"github.com/starford/adcanvas/internal/lineage"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/storage"
	"github.com/starford/adcanvas/internal/session"
)

// Defaults for concepts created by hand.
const (
	NewConceptTitle   = "New Concept"
	NewConceptContent = "Enter concept description..."
)

// Layout offsets for hand-made concepts.
const (
	conceptColumns   = 3
	conceptLeftShift = 300
	conceptColumnGap = 320
	conceptRowGap    = 400
	conceptBelowItem = 400
	conceptBelowGen  = 450
)

// Sessions is the analysis session controller.
type Sessions interface {
	Submit(ctx context.Context, sub session.Submission) (session.Status, error)
	Status() session.Status
	Cancel() bool
}

// Generations starts creative generations.
type Generations interface {
	Start(ctx context.Context, req generation.Request) (string, error)
}

// ImageLoader resolves a data URI or remote URL to image bytes.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (models.Image, error)
}

// LinkedWriter proposes a concept spanning several products.
type LinkedWriter interface {
	Describe(ctx context.Context, merged models.Image, titles []string, language, credential, model string) (models.LinkedConcept, error)
}

// ModelSelector is the analysis model catalog.
type ModelSelector interface {
	Models() []gemini.Model
	Current() gemini.Model
	Next() gemini.Model
	Select(name string) (gemini.Model, error)
}

// ProjectEvents is notified when a saved project changes.
type ProjectEvents interface {
	PublishProjectEvent(kind, path string)
}

// Deps are the collaborators of a Service. Graph is required; the rest
// may be nil when the caller never uses the matching operations.
type Deps struct {
	Graph       *graph.Store
	IDs         *graph.IDs
	Sessions    Sessions
	Generations Generations
	Images      ImageLoader
	Linked      LinkedWriter
	Models      ModelSelector
	Projects    storage.Provider
	Catalog     index.ProjectIndex
	Events      ProjectEvents
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service is the canvas façade.
type Service struct {
	graph       *graph.Store
	ids         *graph.IDs
	sessions    Sessions
	generations Generations
	images      ImageLoader
	linked      LinkedWriter
	models      ModelSelector
	projects    storage.Provider
	catalog     index.ProjectIndex
	events      ProjectEvents
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		graph:       d.Graph,
		ids:         d.IDs,
		sessions:    d.Sessions,
		generations: d.Generations,
		images:      d.Images,
		linked:      d.Linked,
		models:      d.Models,
		projects:    d.Projects,
		catalog:     d.Catalog,
		events:      d.Events,
		logger:      d.Logger,
		now:         d.Now,
	}
	if s.ids == nil {
		s.ids = graph.NewIDs()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func unavailable(what string) error {
	return fmt.Errorf("%w: %s is not configured", apperr.ErrInvalidInput, what)
}

// Snapshot returns the whole canvas.
func (s *Service) Snapshot() graph.Snapshot {
	return s.graph.Snapshot()
}

// Node returns one node.
func (s *Service) Node(id string) (models.Node, error) {
	n, ok := s.graph.Node(id)
	if !ok {
		return models.Node{}, fmt.Errorf("%w: node %s", apperr.ErrNotFound, id)
	}
	return n, nil
}

// NodeUpdate is a user edit of a node. Nil fields are left unchanged.
type NodeUpdate struct {
	Title   *string
	Content *string
	NoText  *bool
}

// UpdateNode applies an edit. A concept's label follows its title, and
// editing clears the autoEdit flag set on freshly added concepts.
func (s *Service) UpdateNode(id string, u NodeUpdate) (models.Node, error) {
	n, err := s.Node(id)
	if err != nil {
		return models.Node{}, err
	}
	patch := models.NodePatch{Title: u.Title, Content: u.Content}
	if u.NoText != nil {
		if n.Type != models.NodeConcept {
			return models.Node{}, fmt.Errorf("%w: only concepts carry the no-text flag", apperr.ErrInvalidInput)
		}
		patch.NoText = u.NoText
	}
	if n.Type == models.NodeConcept {
		patch.Concept = u.Title
		if n.Data.AutoEdit {
			patch.AutoEdit = models.Ptr(false)
		}
	}
	if patch.Empty() {
		return n, nil
	}
	return s.graph.UpdateNodeData(id, patch)
}

// DeleteNode removes a node that has no outgoing edges.
func (s *Service) DeleteNode(id string) error {
	return s.graph.DeleteNode(id)
}

// Connect adds a manual edge between two existing nodes.
func (s *Service) Connect(source, target string) (models.Edge, error) {
	if source == "" || target == "" {
		return models.Edge{}, fmt.Errorf("%w: source and target are required", apperr.ErrInvalidInput)
	}
	return s.graph.AddEdge(models.Edge{Source: source, Target: target})
}

// AddConcept creates an empty concept under a product or a creative.
func (s *Service) AddConcept(parentID string) (models.Node, error) {
	parent, err := s.Node(parentID)
	if err != nil {
		return models.Node{}, err
	}
	switch parent.Type {
	case models.NodeProduct:
		return s.addConceptFromProduct(parent)
	case models.NodeCreative:
		return s.addConceptFromCreative(parent)
	default:
		return models.Node{}, fmt.Errorf("%w: concepts can only be added under a product or a creative", apperr.ErrInvalidInput)
	}
}

func newConcept(id string, pos models.Position) models.Node {
	return models.Node{
		ID:       id,
		Type:     models.NodeConcept,
		Position: pos,
		Data: models.NodeData{
			Title:    NewConceptTitle,
			Concept:  NewConceptTitle,
			Content:  NewConceptContent,
			Status:   models.StatusIdle,
			AutoEdit: true,
		},
	}
}

// addConceptFromProduct lays concepts out in rows of three below the product.
func (s *Service) addConceptFromProduct(product models.Node) (models.Node, error) {
	siblings := 0
	for _, c := range s.graph.NodesByType(models.NodeConcept) {
		if c.Data.ParentProductID == product.ID {
			siblings++
		}
	}
	row, col := siblings/conceptColumns, siblings%conceptColumns
	n := newConcept(s.ids.Next("concept"), models.Position{
		X: product.Position.X - conceptLeftShift + float64(col*conceptColumnGap),
		Y: product.Position.Y + conceptBelowItem + float64(row*conceptRowGap),
	})
	n.Data.ParentProductID = product.ID
	n.Data.ParentProductImageURL = product.Data.ImageURL

	if err := s.graph.AddBatch([]models.Node{n}, []models.Edge{{ID: models.EdgeID(product.ID, n.ID), Source: product.ID, Target: n.ID}}); err != nil {
		return models.Node{}, err
	}
	s.logger.Info("canvas: concept added", slog.String("concept", n.ID), slog.String("product", product.ID))
	return n, nil
}

// addConceptFromCreative places the concept below the creative and caches
// both the creative image and the lineage's product image.
func (s *Service) addConceptFromCreative(creative models.Node) (models.Node, error) {
	n := newConcept(s.ids.Next("concept"), models.Position{
		X: creative.Position.X,
		Y: creative.Position.Y + conceptBelowGen,
	})
	n.Data.ParentGeneratedID = creative.ID
	n.Data.ParentGeneratedImageURL = creative.Data.ImageURL
	n.Data.ParentProductImageURL = lineage.ProductImageForCreative(creative, s.graph)

	if err := s.graph.AddBatch([]models.Node{n}, []models.Edge{{ID: models.EdgeID(creative.ID, n.ID), Source: creative.ID, Target: n.ID}}); err != nil {
		return models.Node{}, err
	}
	s.logger.Info("canvas: concept added", slog.String("concept", n.ID), slog.String("creative", creative.ID))
	return n, nil
}

// Analyze starts an analysis session. The current model is used when the
// submission names none.
func (s *Service) Analyze(ctx context.Context, sub session.Submission) (session.Status, error) {
	if s.sessions == nil {
		return session.Status{}, unavailable("analysis")
	}
	if sub.Model == "" && s.models != nil {
		sub.Model = s.models.Current().Name
	}
	return s.sessions.Submit(ctx, sub)
}

// Session returns the current session status.
func (s *Service) Session() session.Status {
	if s.sessions == nil {
		return session.Status{State: session.StateIdle, Current: -1}
	}
	return s.sessions.Status()
}

// CancelSession aborts the running session, if any.
func (s *Service) CancelSession() bool {
	if s.sessions == nil {
		return false
	}
	return s.sessions.Cancel()
}

// Generate starts a creative generation for a concept and returns the
// placeholder creative id.
func (s *Service) Generate(ctx context.Context, req generation.Request) (string, error) {
	if s.generations == nil {
		return "", unavailable("generation")
	}
	return s.generations.Start(ctx, req)
}

// Models lists the analysis models and the current selection.
func (s *Service) Models() ([]gemini.Model, gemini.Model, error) {
	if s.models == nil {
		return nil, gemini.Model{}, unavailable("model selection")
	}
	return s.models.Models(), s.models.Current(), nil
}

// NextModel advances the selection cycle.
func (s *Service) NextModel() (gemini.Model, error) {
	if s.models == nil {
		return gemini.Model{}, unavailable("model selection")
	}
	return s.models.Next(), nil
}

// SelectModel picks a model by name.
func (s *Service) SelectModel(name string) (gemini.Model, error) {
	if s.models == nil {
		return gemini.Model{}, unavailable("model selection")
	}
	return s.models.Select(strings.TrimSpace(name))
}
