package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/generation"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/session"
)

// APIKeyEnv is read for the model API key when the config file sets none.
const APIKeyEnv = "GEMINI_API_KEY"

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Projects   ProjectsConfig    `yaml:"projects"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Gemini     GeminiConfig      `yaml:"gemini"`
	Session    SessionConfig     `yaml:"session"`
	Generation GenerationConfig  `yaml:"generation"`
	Images     ImagesConfig      `yaml:"images"`
	SSE        SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Projects, &c.SQLite, &c.Gemini, &c.Session, &c.Generation, &c.Images, &c.SSE,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Required),
	)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Namespace, validation.When(c.Enabled, validation.Required)),
	)
}

// ProjectsConfig holds the directory saved projects live in.
type ProjectsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the projects configuration.
func (c *ProjectsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GeminiConfig holds the model client settings. APIKey is the fallback
// credential used when a request carries none; it may stay empty.
type GeminiConfig struct {
	APIKey        string         `yaml:"api_key"`
	gemini.Config `yaml:",inline"`
	Models        []gemini.Model `yaml:"models"`
}

// Validate validates the Gemini configuration.
func (c *GeminiConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AnalysisModel, validation.Required),
		validation.Field(&c.GenerationModel, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	if c.Breaker.FailureThreshold < 0 || c.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("gemini: breaker failure_threshold must be within [0, 1]")
	}
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("gemini: models[%d]: name is required", i)
		}
	}
	return nil
}

// SessionConfig holds the analysis session pacing.
type SessionConfig struct {
	StepDelay       time.Duration `yaml:"step_delay"`
	FinalDelay      time.Duration `yaml:"final_delay"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	TimeoutPolicy   string        `yaml:"timeout_policy"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StepDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.FinalDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.AnalysisTimeout, validation.Required),
		validation.Field(&c.TimeoutPolicy, validation.Required, validation.In(session.PolicyFail, session.PolicyFallback)),
	)
}

// Controller returns the session controller settings.
func (c SessionConfig) Controller() session.Config {
	return session.Config{
		StepDelay:       c.StepDelay,
		FinalDelay:      c.FinalDelay,
		AnalysisTimeout: c.AnalysisTimeout,
		TimeoutPolicy:   c.TimeoutPolicy,
	}
}

// GenerationConfig holds the creative generation defaults.
type GenerationConfig struct {
	AspectRatio       string        `yaml:"aspect_ratio"`
	HighlightDuration time.Duration `yaml:"highlight_duration"`
	CropToAspect      bool          `yaml:"crop_to_aspect"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AspectRatio, validation.Required),
		validation.Field(&c.HighlightDuration, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if _, _, err := imaging.ParseRatio(c.AspectRatio); err != nil {
		return fmt.Errorf("generation: aspect_ratio: %w", err)
	}
	return nil
}

// Workflow returns the generation workflow settings.
func (c GenerationConfig) Workflow() generation.Config {
	return generation.Config{
		AspectRatio:       c.AspectRatio,
		HighlightDuration: c.HighlightDuration,
		CropToAspect:      c.CropToAspect,
	}
}

// ImagesConfig holds remote image download settings.
type ImagesConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FetchTimeout, validation.Required),
	)
}

// SSEConfig holds event stream settings.
type SSEConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	sess := session.DefaultConfig()
	gen := generation.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "adcanvas",
			},
		},
		Projects: ProjectsConfig{
			Path: "./projects",
		},
		SQLite: SQLiteConfig{
			Path: "./adcanvas.db",
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv(APIKeyEnv),
			Config: gemini.DefaultConfig(),
		},
		Session: SessionConfig{
			StepDelay:       sess.StepDelay,
			FinalDelay:      sess.FinalDelay,
			AnalysisTimeout: sess.AnalysisTimeout,
			TimeoutPolicy:   sess.TimeoutPolicy,
		},
		Generation: GenerationConfig{
			AspectRatio:       gen.AspectRatio,
			HighlightDuration: gen.HighlightDuration,
			CropToAspect:      gen.CropToAspect,
		},
		Images: ImagesConfig{
			FetchTimeout: 10 * time.Second,
		},
		SSE: SSEConfig{
			Throttle: 2 * time.Second,
		},
	}
}
