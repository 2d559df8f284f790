package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/adcanvas/internal/canvasservice"
	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/generation"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/index"
	"github.com/starford/adcanvas/internal/metrics"
	"github.com/starford/adcanvas/internal/session"
	"github.com/starford/adcanvas/internal/sse"
	"github.com/starford/adcanvas/internal/storage"
)

// components is the wired object graph shared by the HTTP and MCP servers.
type components struct {
	store    *storage.FS
	db       *index.DB
	broker   *sse.Broker
	metrics  *metrics.Collector
	fetcher  *imaging.Fetcher
	sessions *session.Controller
	workflow *generation.Workflow
	svc      *canvasservice.Service
}

// modelObservers fans a model switch out to several observers.
type modelObservers []gemini.ModelObserver

func (o modelObservers) ModelChanged(m gemini.Model) {
	for _, obs := range o {
		obs.ModelChanged(m)
	}
}

func build(cfg *Config, logger *slog.Logger) (*components, error) {
	// Ensure project directory exists.
	if err := os.MkdirAll(cfg.Projects.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Projects.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	c := &components{
		store:  store,
		db:     db,
		broker: sse.NewBroker(cfg.SSE.Throttle),
	}

	graphObservers := graph.Observers{c.broker}
	models := modelObservers{c.broker}
	if cfg.App.Metrics.Enabled {
		c.metrics = metrics.NewCollector(cfg.App.Metrics.Namespace)
		graphObservers = append(graphObservers, c.metrics)
		models = append(models, c.metrics)
	}
	sessionObserver := session.ObserverFunc(func(st session.Status) {
		c.broker.SessionChanged(st)
		if c.metrics != nil {
			c.metrics.SessionChanged(st)
		}
	})

	g := graph.New(graph.WithObserver(graphObservers))
	ids := graph.NewIDs()
	c.fetcher = imaging.NewFetcher(cfg.Images.FetchTimeout)

	client := gemini.NewClient(cfg.Gemini.Config, nil, logger)
	selector := gemini.NewSelector(cfg.Gemini.Models, models)

	c.sessions = session.New(cfg.Session.Controller(), gemini.NewAnalyzer(client), c.fetcher, g,
		session.WithIDs(ids),
		session.WithLogger(logger),
		session.WithObserver(sessionObserver),
		session.WithFallback(gemini.DefaultAnalysis),
	)

	workflowOpts := []generation.Option{
		generation.WithIDs(ids),
		generation.WithLogger(logger),
		generation.WithPostProcessor(imaging.CropToAspect),
	}
	if c.metrics != nil {
		workflowOpts = append(workflowOpts, generation.WithRecorder(c.metrics))
	}
	c.workflow = generation.New(cfg.Generation.Workflow(), gemini.NewGenerator(client), c.fetcher, g, workflowOpts...)

	c.svc = canvasservice.New(canvasservice.Deps{
		Graph:       g,
		IDs:         ids,
		Sessions:    c.sessions,
		Generations: c.workflow,
		Images:      c.fetcher,
		Linked:      gemini.NewLinkedWriter(client),
		Models:      selector,
		Projects:    store,
		Catalog:     db,
		Events:      c.broker,
		Logger:      logger,
	})
	return c, nil
}

// close stops background work and releases the catalog.
func (c *components) close() {
	c.workflow.Close()
	c.broker.Close()
	_ = c.db.Close()
}
