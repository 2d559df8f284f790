// Package gemini implements the image analyzer, image generator and linked
// concept writer on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// ContentGenerator is the subset of the genai models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory builds a ContentGenerator for one API key.
type ClientFactory func(ctx context.Context, apiKey string) (ContentGenerator, error)

// NewGenAIFactory returns a factory backed by the Gemini developer API.
func NewGenAIFactory() ClientFactory {
	return func(ctx context.Context, apiKey string) (ContentGenerator, error) {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create gemini client: %v", apperr.ErrUpstreamFailure, err)
		}
		return client.Models, nil
	}
}

// Config configures the Gemini collaborators.
type Config struct {
	AnalysisModel   string        `yaml:"analysis_model"`
	GenerationModel string        `yaml:"generation_model"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// DefaultConfig returns the stock model names.
func DefaultConfig() Config {
	return Config{
		AnalysisModel:   "gemini-2.5-flash",
		GenerationModel: "gemini-2.5-flash-image",
		RequestTimeout:  2 * time.Minute,
		Breaker:         DefaultBreakerConfig(),
	}
}

// Client owns the factory and breaker shared by the collaborators.
type Client struct {
	cfg     Config
	factory ClientFactory
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a Client. A nil factory uses the genai SDK.
func NewClient(cfg Config, factory ClientFactory, logger *slog.Logger) *Client {
	if factory == nil {
		factory = NewGenAIFactory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		factory: factory,
		breaker: newBreaker("gemini", cfg.Breaker, logger),
		logger:  logger,
	}
}

// generate performs one GenerateContent call through the breaker.
func (c *Client) generate(ctx context.Context, apiKey, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if apiKey == "" {
		return nil, apperr.ErrMissingCredential
	}
	return guard(c.breaker, func() (*genai.GenerateContentResponse, error) {
		if c.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
		}
		gen, err := c.factory(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
		resp, err := gen.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return nil, classify(err)
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, fmt.Errorf("%w: no candidates in response", apperr.ErrUpstreamFailure)
		}
		return resp, nil
	})
}

// classify maps transport errors onto the error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamFailure, err)
	}
}

func imagePart(img models.Image) *genai.Part {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return genai.NewPartFromBytes(img.Data, mime)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// responseImage returns the first inline image of the first candidate.
func responseImage(resp *genai.GenerateContentResponse) (models.Image, bool) {
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return models.Image{Data: p.InlineData.Data, MIMEType: mime}, true
		}
	}
	return models.Image{}, false
}
