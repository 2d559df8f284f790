package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// Generator produces advertising images with an image model.
type Generator struct {
	client *Client
}

// NewGenerator creates a Generator.
func NewGenerator(c *Client) *Generator {
	return &Generator{client: c}
}

// Generate renders one image. A reply without an inline image is an
// upstream failure whose message carries the model's text.
func (g *Generator) Generate(ctx context.Context, req models.GenerateRequest) (models.Image, error) {
	if req.Prompt == "" {
		return models.Image{}, fmt.Errorf("%w: prompt is empty", apperr.ErrInvalidInput)
	}
	model := req.Model
	if model == "" {
		model = g.client.cfg.GenerationModel
	}

	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		if !ref.Empty() {
			parts = append(parts, imagePart(ref))
		}
	}
	parts = append(parts, genai.NewPartFromText(creativePrompt(req)))

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if req.AspectRatio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}

	resp, err := g.client.generate(ctx, req.Credential, model, parts, config)
	if err != nil {
		return models.Image{}, err
	}
	img, ok := responseImage(resp)
	if !ok {
		details := responseText(resp)
		if details == "" {
			details = "no image generated"
		}
		return models.Image{}, fmt.Errorf("%w: %s", apperr.ErrUpstreamFailure, details)
	}
	return img, nil
}
