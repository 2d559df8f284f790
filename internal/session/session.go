// Package session runs the product analysis flow: submit an image, await the
// analyzer, reveal its reasoning steps one at a time, then commit the product
// and its concept nodes to the graph in one batch.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/models"
)

// State is a phase of an analysis session.
type State string

const (
	StateIdle          State = "idle"
	StateSubmitting    State = "submitting"
	StateAwaitingSteps State = "awaiting_steps"
	StateRevealing     State = "revealing_step"
	StateCommitting    State = "committing"
	StateFailed        State = "failed"
)

// Timeout policies for the analysis call.
const (
	PolicyFail     = "fail"
	PolicyFallback = "fallback"
)

// DefaultLanguage is used when a submission names none.
const DefaultLanguage = "zh-tw"

// Analyzer explains a product image and proposes concepts.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.Analysis, error)
}

// ImageLoader resolves a data URI or remote URL to inline bytes.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (models.Image, error)
}

// Graph is the part of the graph store a session writes to.
type Graph interface {
	NodesByType(t models.NodeType) []models.Node
	AddBatch(nodes []models.Node, edges []models.Edge) error
}

// Observer is told about every state change and step reveal.
type Observer interface {
	SessionChanged(Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Status)

// SessionChanged calls f.
func (f ObserverFunc) SessionChanged(s Status) { f(s) }

// Config controls pacing and the analysis deadline.
type Config struct {
	StepDelay       time.Duration
	FinalDelay      time.Duration
	AnalysisTimeout time.Duration
	TimeoutPolicy   string
}

// DefaultConfig returns the standard pacing: 1.5s per step, 3s before commit.
func DefaultConfig() Config {
	return Config{
		StepDelay:       1500 * time.Millisecond,
		FinalDelay:      3 * time.Second,
		AnalysisTimeout: 30 * time.Second,
		TimeoutPolicy:   PolicyFail,
	}
}

// Submission is one product image handed to the controller. Either Image or
// ImageURL must be set; ImageURL may be a data URI.
type Submission struct {
	Image      models.Image
	ImageURL   string
	FileName   string
	Language   string
	Credential string
	Model      string
}

// Status is a snapshot of the current or most recent session.
type Status struct {
	ID         string                 `json:"id,omitempty"`
	State      State                  `json:"state"`
	Steps      []models.ReasoningStep `json:"steps,omitempty"`
	Current    int                    `json:"current"`
	Error      string                 `json:"error,omitempty"`
	ProductID  string                 `json:"productId,omitempty"`
	ConceptIDs []string               `json:"conceptIds,omitempty"`
	StartedAt  time.Time              `json:"startedAt,omitempty"`
}

// Active reports whether the session still holds the single-flight slot.
func (s Status) Active() bool {
	return s.State != StateIdle && s.State != StateFailed
}

func (s Status) clone() Status {
	s.Steps = append([]models.ReasoningStep(nil), s.Steps...)
	s.ConceptIDs = append([]string(nil), s.ConceptIDs...)
	return s
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for reveal pacing.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithObserver registers the status observer.
func WithObserver(o Observer) Option {
	return func(ctl *Controller) { ctl.observer = o }
}

// WithFallback sets the analysis used when the deadline passes under
// PolicyFallback.
func WithFallback(fn func(language string) models.Analysis) Option {
	return func(ctl *Controller) { ctl.fallback = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithIDs shares an id generator with other writers of the same graph.
func WithIDs(ids *graph.IDs) Option {
	return func(ctl *Controller) { ctl.ids = ids }
}

// Controller is a single-flight analysis state machine for one canvas.
type Controller struct {
	cfg      Config
	analyzer Analyzer
	loader   ImageLoader
	graph    Graph
	clock    Clock
	observer Observer
	fallback func(string) models.Analysis
	ids      *graph.IDs
	logger   *slog.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Controller.
func New(cfg Config, analyzer Analyzer, loader ImageLoader, g Graph, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		analyzer: analyzer,
		loader:   loader,
		graph:    g,
		clock:    realClock{},
		ids:      graph.NewIDs(),
		logger:   slog.Default(),
		status:   Status{State: StateIdle, Current: -1},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status returns a copy of the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.clone()
}

// Submit validates sub and starts a session in the background. Precondition
// errors are returned before anything is started.
func (c *Controller) Submit(ctx context.Context, sub Submission) (Status, error) {
	runCtx, st, err := c.begin(context.WithoutCancel(ctx), sub)
	if err != nil {
		return Status{}, err
	}
	go func() {
		_ = c.run(runCtx, sub)
	}()
	return st, nil
}

// Run is the synchronous form of Submit. It returns the final status.
func (c *Controller) Run(ctx context.Context, sub Submission) (Status, error) {
	runCtx, _, err := c.begin(ctx, sub)
	if err != nil {
		return Status{}, err
	}
	err = c.run(runCtx, sub)
	return c.Status(), err
}

// Cancel aborts the running session, if any, and waits for it to settle.
// It reports whether a session was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Wait blocks until the running session, if any, has finished.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validate(sub Submission) error {
	if strings.TrimSpace(sub.Credential) == "" {
		return apperr.ErrMissingCredential
	}
	switch {
	case !sub.Image.Empty():
		return imaging.Validate(sub.Image)
	case imaging.IsDataURI(sub.ImageURL):
		img, err := imaging.DecodeDataURI(sub.ImageURL)
		if err != nil {
			return err
		}
		return imaging.Validate(img)
	case strings.TrimSpace(sub.ImageURL) == "":
		return fmt.Errorf("%w: no image provided", apperr.ErrInvalidInput)
	}
	return nil
}

func (c *Controller) begin(parent context.Context, sub Submission) (context.Context, Status, error) {
	if err := validate(sub); err != nil {
		return nil, Status{}, err
	}
	c.mu.Lock()
	if c.status.Active() {
		err := fmt.Errorf("%w: session %s is %s", apperr.ErrSessionActive, c.status.ID, c.status.State)
		c.mu.Unlock()
		return nil, Status{}, err
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.status = Status{
		ID:        uuid.NewString(),
		State:     StateSubmitting,
		Current:   -1,
		StartedAt: time.Now().UTC(),
	}
	st := c.status.clone()
	c.mu.Unlock()
	c.notify(st)
	return ctx, st, nil
}

func (c *Controller) run(ctx context.Context, sub Submission) (err error) {
	defer func() {
		c.mu.Lock()
		if err != nil {
			c.status.State = StateFailed
			c.status.Error = err.Error()
			c.logger.Warn("session: failed", slog.String("id", c.status.ID), slog.String("error", err.Error()))
		}
		st := c.status.clone()
		c.cancel()
		close(c.done)
		c.cancel, c.done = nil, nil
		c.mu.Unlock()
		if err != nil {
			c.notify(st)
		}
	}()

	img := sub.Image
	if img.Empty() {
		img, err = c.loader.Load(ctx, sub.ImageURL)
		if err != nil {
			return fmt.Errorf("load image: %w", err)
		}
	}
	// Remote images are only known once fetched.
	if err = imaging.Validate(img); err != nil {
		return err
	}
	lang := sub.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	analysis, err := c.analyze(ctx, models.AnalyzeRequest{
		Image:      img,
		Language:   lang,
		Credential: sub.Credential,
		Model:      sub.Model,
	})
	if err != nil {
		return err
	}

	c.update(func(s *Status) {
		s.State = StateAwaitingSteps
		s.Steps = append([]models.ReasoningStep(nil), analysis.Steps...)
	})

	if len(analysis.Steps) > 0 {
		for i := range analysis.Steps {
			c.update(func(s *Status) {
				s.State = StateRevealing
				s.Current = i
			})
			if err = c.clock.Sleep(ctx, c.cfg.StepDelay); err != nil {
				return err
			}
		}
		if err = c.clock.Sleep(ctx, c.cfg.FinalDelay); err != nil {
			return err
		}
	}

	c.update(func(s *Status) { s.State = StateCommitting })
	productID, conceptIDs, err := c.commit(sub, img, analysis)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.update(func(s *Status) {
		s.State = StateIdle
		s.ProductID = productID
		s.ConceptIDs = conceptIDs
	})
	c.logger.Info("session: committed",
		slog.String("product", productID),
		slog.Int("concepts", len(conceptIDs)))
	return nil
}

// analyze enforces the caller-side deadline even when the analyzer ignores
// its context.
func (c *Controller) analyze(ctx context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AnalysisTimeout)
	defer cancel()

	type result struct {
		analysis models.Analysis
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		a, err := c.analyzer.Analyze(actx, req)
		ch <- result{a, err}
	}()

	var timedOut bool
	select {
	case r := <-ch:
		if r.err == nil {
			return r.analysis, nil
		}
		if ctx.Err() != nil {
			return models.Analysis{}, ctx.Err()
		}
		if !errors.Is(r.err, context.DeadlineExceeded) && !errors.Is(r.err, apperr.ErrUpstreamTimeout) {
			return models.Analysis{}, r.err
		}
		timedOut = true
	case <-actx.Done():
		if ctx.Err() != nil {
			return models.Analysis{}, ctx.Err()
		}
		timedOut = true
	}

	if timedOut && c.cfg.TimeoutPolicy == PolicyFallback && c.fallback != nil {
		c.logger.Warn("session: analysis timed out, using fallback",
			slog.Duration("timeout", c.cfg.AnalysisTimeout))
		return c.fallback(req.Language), nil
	}
	return models.Analysis{}, fmt.Errorf("%w: analysis exceeded %s", apperr.ErrUpstreamTimeout, c.cfg.AnalysisTimeout)
}

// commit writes the product and one concept per suggestion. The first
// product sits at (400,100); later ones are spaced 500 apart to the right.
func (c *Controller) commit(sub Submission, img models.Image, a models.Analysis) (string, []string, error) {
	existing := len(c.graph.NodesByType(models.NodeProduct))
	pos := models.Position{X: 400 + float64(existing)*500, Y: 100}

	imageURL := sub.ImageURL
	if imageURL == "" || !imaging.IsDataURI(imageURL) {
		imageURL = imaging.EncodeDataURI(img)
	}
	title := sub.FileName
	if title == "" {
		title = "Product Image"
	}
	summary := a.ProductType
	if summary == "" {
		summary = "Product analyzed"
	}

	product := models.Node{
		ID:       c.ids.Next("product"),
		Type:     models.NodeProduct,
		Position: pos,
		Data: models.NodeData{
			Title:    title,
			Content:  summary,
			Status:   models.StatusCompleted,
			ImageURL: imageURL,
		},
	}
	nodes := []models.Node{product}
	edges := make([]models.Edge, 0, len(a.Concepts))
	conceptIDs := make([]string, 0, len(a.Concepts))
	for i, s := range a.Concepts {
		n := models.Node{
			ID:   c.ids.Next("concept"),
			Type: models.NodeConcept,
			Position: models.Position{
				X: pos.X + float64(i-2)*320,
				Y: pos.Y + 400,
			},
			Data: models.NodeData{
				Title:                 s.Concept,
				Concept:               s.Concept,
				Content:               s.Prompt,
				Status:                models.StatusIdle,
				ParentProductID:       product.ID,
				ParentProductImageURL: imageURL,
			},
		}
		nodes = append(nodes, n)
		edges = append(edges, models.Edge{ID: models.EdgeID(product.ID, n.ID), Source: product.ID, Target: n.ID})
		conceptIDs = append(conceptIDs, n.ID)
	}
	if err := c.graph.AddBatch(nodes, edges); err != nil {
		return "", nil, err
	}
	return product.ID, conceptIDs, nil
}

func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	st := c.status.clone()
	c.mu.Unlock()
	c.notify(st)
}

func (c *Controller) notify(st Status) {
	if c.observer != nil {
		c.observer.SessionChanged(st)
	}
}
