// Package generation turns a concept node into a creative node through the
// image generator.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/lineage"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/presets"
)

// NoTextInstruction is appended to the prompt of concepts flagged NoText.
const NoTextInstruction = "\n\nImportant: The generated image content must not contain any text " +
	"(including Chinese, English or other languages), please only use visual elements, " +
	"images, symbols, no text content."

// Outcomes reported to the Recorder.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
)

// Generator renders one image from a prompt and reference images.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (models.Image, error)
}

// ImageLoader resolves a data URI or remote URL to inline bytes.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (models.Image, error)
}

// Graph is the part of the graph store the workflow reads and writes.
type Graph interface {
	graph.Reader
	AddBatch(nodes []models.Node, edges []models.Edge) error
	UpdateNodeData(id string, patch models.NodePatch) (models.Node, error)
}

// PostProcessor adjusts a generated image to the requested aspect ratio.
type PostProcessor func(img models.Image, ratio string) (models.Image, error)

// Recorder observes finished generations.
type Recorder interface {
	ObserveGeneration(outcome string, elapsed time.Duration)
}

// Config holds workflow defaults.
type Config struct {
	AspectRatio       string
	HighlightDuration time.Duration
	CropToAspect      bool
}

// DefaultConfig returns a square ratio and a 3s highlight.
func DefaultConfig() Config {
	return Config{
		AspectRatio:       "1:1",
		HighlightDuration: 3 * time.Second,
	}
}

// Request asks for one creative from ConceptID.
type Request struct {
	ConceptID  string
	Credential string
	Model      string
	// PresetName optionally selects a platform preset, overriding the ratio.
	PresetName string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithPostProcessor sets the crop step used when CropToAspect is on.
func WithPostProcessor(p PostProcessor) Option {
	return func(w *Workflow) { w.post = p }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(w *Workflow) { w.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithIDs shares an id generator with other writers of the same graph.
func WithIDs(ids *graph.IDs) Option {
	return func(w *Workflow) { w.ids = ids }
}

// WithSchedule replaces time.AfterFunc for the highlight reset.
func WithSchedule(fn func(d time.Duration, f func()) (stop func() bool)) Option {
	return func(w *Workflow) { w.schedule = fn }
}

// Workflow runs generations. Invocations are independent of each other and
// each touches only its own concept and creative.
type Workflow struct {
	cfg      Config
	gen      Generator
	loader   ImageLoader
	graph    Graph
	ids      *graph.IDs
	post     PostProcessor
	recorder Recorder
	logger   *slog.Logger
	schedule func(time.Duration, func()) func() bool

	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	timers map[string]func() bool
}

// New creates a Workflow.
func New(cfg Config, gen Generator, loader ImageLoader, g Graph, opts ...Option) *Workflow {
	base, stop := context.WithCancel(context.Background())
	w := &Workflow{
		cfg:    cfg,
		gen:    gen,
		loader: loader,
		graph:  g,
		ids:    graph.NewIDs(),
		post:   imaging.CropToAspect,
		logger: slog.Default(),
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		base:     base,
		stopBase: stop,
		timers:   make(map[string]func() bool),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// job is a prepared generation: the placeholder exists and the request is built.
type job struct {
	conceptID  string
	creativeID string
	inputs     lineage.Inputs
	req        models.GenerateRequest
	started    time.Time
}

// Start prepares the placeholder creative and finishes the generation in the
// background. It returns the creative id.
func (w *Workflow) Start(ctx context.Context, req Request) (string, error) {
	j, err := w.prepare(req)
	if err != nil {
		return "", err
	}
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(w.base, cancel)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer stop()
		defer cancel()
		_, _ = w.complete(jobCtx, j)
	}()
	return j.creativeID, nil
}

// Generate runs one generation synchronously and returns the creative node.
// A generation failure is returned after the nodes have been transitioned.
func (w *Workflow) Generate(ctx context.Context, req Request) (models.Node, error) {
	j, err := w.prepare(req)
	if err != nil {
		return models.Node{}, err
	}
	return w.complete(ctx, j)
}

// Close cancels in-flight generations, stops pending highlight resets and
// waits for background work to end.
func (w *Workflow) Close() {
	w.stopBase()
	w.wg.Wait()
	w.mu.Lock()
	for id, stop := range w.timers {
		stop()
		delete(w.timers, id)
	}
	w.mu.Unlock()
}

// prepare checks preconditions, then marks the concept generating and adds
// the placeholder creative with its inbound edge.
func (w *Workflow) prepare(req Request) (job, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return job{}, apperr.ErrMissingCredential
	}
	concept, ok := w.graph.Node(req.ConceptID)
	if !ok {
		return job{}, fmt.Errorf("%w: concept %s", apperr.ErrNotFound, req.ConceptID)
	}
	if concept.Type != models.NodeConcept {
		return job{}, fmt.Errorf("%w: node %s is a %s, not a concept", apperr.ErrInvalidInput, concept.ID, concept.Type)
	}
	prompt := strings.TrimSpace(concept.Data.Content)
	if prompt == "" {
		return job{}, fmt.Errorf("%w: concept %s has no prompt", apperr.ErrInvalidInput, concept.ID)
	}

	ratio := w.cfg.AspectRatio
	var platform, presetName string
	if req.PresetName != "" {
		p, ok := presets.ByName(req.PresetName)
		if !ok {
			return job{}, fmt.Errorf("%w: unknown preset %q", apperr.ErrInvalidInput, req.PresetName)
		}
		ratio, platform, presetName = p.Ratio, p.Platform, p.Name
	}

	if concept.Data.NoText {
		prompt += NoTextInstruction
	}

	if _, err := w.graph.UpdateNodeData(concept.ID, models.NodePatch{Status: models.Ptr(models.StatusGenerating)}); err != nil {
		return job{}, err
	}

	label := concept.Data.Concept
	if label == "" {
		label = concept.Data.Title
	}
	creative := models.Node{
		ID:   w.ids.Next("creative"),
		Type: models.NodeCreative,
		Position: models.Position{
			X: concept.Position.X,
			Y: concept.Position.Y + 450,
		},
		Data: models.NodeData{
			Title:           label + " Creative",
			Content:         concept.Data.Content,
			Concept:         label,
			Status:          models.StatusGenerating,
			ParentConceptID: concept.ID,
		},
	}
	edge := models.Edge{ID: models.EdgeID(concept.ID, creative.ID), Source: concept.ID, Target: creative.ID}
	if err := w.graph.AddBatch([]models.Node{creative}, []models.Edge{edge}); err != nil {
		w.revert(concept.ID)
		return job{}, err
	}

	return job{
		conceptID:  concept.ID,
		creativeID: creative.ID,
		inputs:     lineage.Resolve(concept, w.graph),
		req: models.GenerateRequest{
			Prompt:      prompt,
			AspectRatio: ratio,
			Platform:    platform,
			PresetName:  presetName,
			Credential:  req.Credential,
			Model:       req.Model,
		},
		started: time.Now(),
	}, nil
}

func (w *Workflow) complete(ctx context.Context, j job) (models.Node, error) {
	img, err := w.render(ctx, j)
	if err != nil {
		w.fail(j, err)
		return w.node(j.creativeID), err
	}

	creative, err := w.graph.UpdateNodeData(j.creativeID, models.NodePatch{
		ImageURL:      models.Ptr(imaging.EncodeDataURI(img)),
		Status:        models.Ptr(models.StatusCompleted),
		JustCompleted: models.Ptr(true),
	})
	if err != nil {
		// The placeholder was deleted while the request was in flight.
		w.revert(j.conceptID)
		w.observe(OutcomeError, j)
		return models.Node{}, err
	}
	if _, err := w.graph.UpdateNodeData(j.conceptID, models.NodePatch{Status: models.Ptr(models.StatusCompleted)}); err != nil {
		w.logger.Warn("generation: concept vanished", slog.String("concept", j.conceptID))
	}
	w.highlight(j.creativeID)
	w.observe(OutcomeCompleted, j)
	w.logger.Info("generation: completed",
		slog.String("concept", j.conceptID),
		slog.String("creative", j.creativeID),
		slog.Duration("elapsed", time.Since(j.started)))
	return creative, nil
}

// render loads the lineage images, calls the generator and applies the
// optional crop.
func (w *Workflow) render(ctx context.Context, j job) (models.Image, error) {
	req := j.req
	for _, ref := range []string{j.inputs.ProductImage, j.inputs.GeneratedImage} {
		if ref == "" {
			continue
		}
		img, err := w.loader.Load(ctx, ref)
		if err != nil {
			return models.Image{}, fmt.Errorf("load reference image: %w", err)
		}
		req.References = append(req.References, img)
	}

	img, err := w.gen.Generate(ctx, req)
	if err != nil {
		return models.Image{}, err
	}
	if img.Empty() {
		return models.Image{}, fmt.Errorf("%w: empty image payload", apperr.ErrUpstreamFailure)
	}

	if w.cfg.CropToAspect && w.post != nil {
		cropped, err := w.post(img, req.AspectRatio)
		if err != nil {
			w.logger.Warn("generation: crop skipped",
				slog.String("creative", j.creativeID),
				slog.String("error", err.Error()))
		} else {
			img = cropped
		}
	}
	return img, nil
}

func (w *Workflow) fail(j job, cause error) {
	if _, err := w.graph.UpdateNodeData(j.creativeID, models.NodePatch{Status: models.Ptr(models.StatusError)}); err != nil {
		w.logger.Warn("generation: creative vanished", slog.String("creative", j.creativeID))
	}
	w.revert(j.conceptID)
	w.observe(OutcomeError, j)
	w.logger.Warn("generation: failed",
		slog.String("concept", j.conceptID),
		slog.String("creative", j.creativeID),
		slog.String("error", cause.Error()))
}

func (w *Workflow) revert(conceptID string) {
	_, _ = w.graph.UpdateNodeData(conceptID, models.NodePatch{Status: models.Ptr(models.StatusIdle)})
}

// highlight clears the creative's justCompleted flag after HighlightDuration.
func (w *Workflow) highlight(creativeID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.timers[creativeID]; ok {
		prev()
	}
	w.timers[creativeID] = w.schedule(w.cfg.HighlightDuration, func() {
		w.mu.Lock()
		delete(w.timers, creativeID)
		w.mu.Unlock()
		_, _ = w.graph.UpdateNodeData(creativeID, models.NodePatch{JustCompleted: models.Ptr(false)})
	})
}

func (w *Workflow) observe(outcome string, j job) {
	if w.recorder != nil {
		w.recorder.ObserveGeneration(outcome, time.Since(j.started))
	}
}

func (w *Workflow) node(id string) models.Node {
	n, _ := w.graph.Node(id)
	return n
}
