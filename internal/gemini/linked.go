package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/parser"
)

// LinkedWriter proposes one concept for a composite image of several products.
type LinkedWriter struct {
	client *Client
}

// NewLinkedWriter creates a LinkedWriter.
func NewLinkedWriter(c *Client) *LinkedWriter {
	return &LinkedWriter{client: c}
}

// Describe asks model for a combined concept over merged, which shows the
// products named by titles from left to right.
func (w *LinkedWriter) Describe(ctx context.Context, merged models.Image, titles []string, language, credential, model string) (models.LinkedConcept, error) {
	if merged.Empty() {
		return models.LinkedConcept{}, fmt.Errorf("%w: merged image is empty", apperr.ErrInvalidInput)
	}
	if model == "" {
		model = w.client.cfg.AnalysisModel
	}
	parts := []*genai.Part{
		genai.NewPartFromText(linkedConceptPrompt(titles, language)),
		imagePart(merged),
	}
	resp, err := w.client.generate(ctx, credential, model, parts, nil)
	if err != nil {
		return models.LinkedConcept{}, err
	}
	return parser.ParseLinkedConcept(responseText(resp)), nil
}
