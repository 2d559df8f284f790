package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/adcanvas/internal/gemini"
	pkgconfig "github.com/starford/adcanvas/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.SQLite.Path != "./adcanvas.db" || cfg.Projects.Path != "./projects" {
		t.Errorf("paths = %q %q", cfg.SQLite.Path, cfg.Projects.Path)
	}
}

func TestConfig_InvalidPort(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("port out of range should fail")
	}
}

func TestConfig_TimeoutPolicy(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Session.TimeoutPolicy = "fallback"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fallback policy should pass: %v", err)
	}
	cfg.Session.TimeoutPolicy = "retry"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown policy should fail")
	}
}

func TestConfig_AspectRatio(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Generation.AspectRatio = "wide"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "aspect_ratio") {
		t.Fatalf("bad ratio: err = %v", err)
	}
}

func TestConfig_GeminiModels(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Gemini.Models = []gemini.Model{{Name: "gemini-2.5-pro"}, {DisplayName: "nameless"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "models[1]") {
		t.Fatalf("nameless model: err = %v", err)
	}

	cfg = NewDefaultConfig()
	cfg.Gemini.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero request timeout should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Gemini.Breaker.FailureThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("breaker threshold above 1 should fail")
	}
}

func TestConfig_MetricsNamespace(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.Metrics.Namespace = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled metrics without namespace should fail")
	}
	cfg.App.Metrics.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled metrics should pass: %v", err)
	}
}

func TestConfig_LoadYAML(t *testing.T) {
	t.Setenv("ADCANVAS_TEST_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
app:
  http:
    port: 9090
projects:
  path: /srv/projects
gemini:
  api_key: ${ADCANVAS_TEST_KEY}
  analysis_model: gemini-2.5-pro
  request_timeout: 45s
  models:
    - name: gemini-2.5-pro
      display_name: Pro
session:
  step_delay: 500ms
  timeout_policy: fallback
sse:
  throttle: 1s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Projects.Path != "/srv/projects" {
		t.Errorf("app = %+v projects = %+v", cfg.App.HTTP, cfg.Projects)
	}
	if cfg.Gemini.APIKey != "from-env" || cfg.Gemini.AnalysisModel != "gemini-2.5-pro" {
		t.Errorf("gemini = %+v", cfg.Gemini)
	}
	if cfg.Gemini.RequestTimeout != 45*time.Second || cfg.Gemini.GenerationModel == "" {
		t.Errorf("gemini timeouts = %+v", cfg.Gemini.Config)
	}
	if len(cfg.Gemini.Models) != 1 || cfg.Gemini.Models[0].DisplayName != "Pro" {
		t.Errorf("models = %+v", cfg.Gemini.Models)
	}
	if cfg.Session.StepDelay != 500*time.Millisecond || cfg.Session.FinalDelay != 3*time.Second {
		t.Errorf("session = %+v", cfg.Session)
	}
	if c := cfg.Session.Controller(); c.TimeoutPolicy != "fallback" {
		t.Errorf("controller = %+v", c)
	}
	if cfg.SSE.Throttle != time.Second {
		t.Errorf("throttle = %v", cfg.SSE.Throttle)
	}
}
