package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/parser"
)

// Analyzer asks a text model to explain a product image and propose concepts.
type Analyzer struct {
	client *Client
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(c *Client) *Analyzer {
	return &Analyzer{client: c}
}

// Analyze sends the image with the analysis prompt. An unparseable reply is
// not an error: it yields an analysis with no steps and no concepts.
func (a *Analyzer) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	if req.Image.Empty() {
		return models.Analysis{}, fmt.Errorf("%w: no image provided", apperr.ErrInvalidInput)
	}
	model := req.Model
	if model == "" {
		model = a.client.cfg.AnalysisModel
	}

	parts := []*genai.Part{
		genai.NewPartFromText(analysisPrompt(req.Language)),
		imagePart(req.Image),
	}
	resp, err := a.client.generate(ctx, req.Credential, model, parts, nil)
	if err != nil {
		return models.Analysis{}, err
	}

	text := responseText(resp)
	analysis, err := parser.ParseAnalysis(text)
	if err != nil {
		a.client.logger.Warn("gemini: analysis reply not parseable",
			slog.String("model", model),
			slog.Int("reply_len", len(text)),
			slog.String("error", err.Error()))
		return models.Analysis{Steps: []models.ReasoningStep{}, Concepts: []models.ConceptSuggestion{}}, nil
	}
	return analysis, nil
}
