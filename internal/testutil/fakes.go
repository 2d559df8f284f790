package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// PNG renders a solid w×h PNG.
func PNG(t *testing.T, w, h int) models.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return models.Image{Data: buf.Bytes(), MIMEType: "image/png"}
}

// Clock records requested sleeps and returns immediately unless the context
// is already done. Block, when set, is received from before each sleep returns.
type Clock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	Block  chan struct{}
}

// Sleep implements the session clock.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	block := c.Block
	c.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Sleeps returns the recorded durations in call order.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Analyzer returns a fixed analysis or error. Delay, when set, makes it wait
// that long while ignoring its context.
type Analyzer struct {
	Result models.Analysis
	Err    error
	Delay  time.Duration

	mu   sync.Mutex
	reqs []models.AnalyzeRequest
}

// Analyze implements session.Analyzer.
func (a *Analyzer) Analyze(_ context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	a.mu.Lock()
	a.reqs = append(a.reqs, req)
	a.mu.Unlock()
	if a.Delay > 0 {
		time.Sleep(a.Delay)
	}
	return a.Result, a.Err
}

// Requests returns the requests seen so far.
func (a *Analyzer) Requests() []models.AnalyzeRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.AnalyzeRequest(nil), a.reqs...)
}

// Generator returns a fixed image or error. Gate, when set, is received from
// before Generate returns.
type Generator struct {
	Result models.Image
	Err    error
	Gate   chan struct{}

	mu   sync.Mutex
	reqs []models.GenerateRequest
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req models.GenerateRequest) (models.Image, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.Gate != nil {
		select {
		case <-g.Gate:
		case <-ctx.Done():
			return models.Image{}, ctx.Err()
		}
	}
	return g.Result, g.Err
}

// Requests returns the requests seen so far.
func (g *Generator) Requests() []models.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.GenerateRequest(nil), g.reqs...)
}

// Loader serves images from a map keyed by reference.
type Loader map[string]models.Image

// Load implements session.ImageLoader.
func (l Loader) Load(_ context.Context, ref string) (models.Image, error) {
	img, ok := l[ref]
	if !ok {
		return models.Image{}, fmt.Errorf("%w: %s", apperr.ErrNotFound, ref)
	}
	return img, nil
}

// Eventually polls cond until it returns true or the deadline passes.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
