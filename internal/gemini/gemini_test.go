package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

type fakeModels struct {
	mu       sync.Mutex
	resp     *genai.GenerateContentResponse
	err      error
	calls    int
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func testClient(t *testing.T, f *fakeModels) *Client {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(DefaultConfig(), func(context.Context, string) (ContentGenerator, error) {
		return f, nil
	}, logger)
}

func reply(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: parts}},
	}}
}

var testImage = models.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}

func TestAnalyze(t *testing.T) {
	f := &fakeModels{resp: reply(&genai.Part{Text: `{"reasoning_steps":[{"step":"A","analysis":"B"}],"creative_concepts":[{"name":"Hero","description":"Bottle","rationale":"R"}]}`})}
	a := NewAnalyzer(testClient(t, f))

	got, err := a.Analyze(context.Background(), models.AnalyzeRequest{Image: testImage, Language: "en", Credential: "k"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Steps) != 1 || len(got.Concepts) != 1 || got.Concepts[0].Prompt != "Bottle" {
		t.Errorf("got %+v", got)
	}
	if f.model != "gemini-2.5-flash" {
		t.Errorf("model = %q", f.model)
	}
	parts := f.contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" {
		t.Errorf("unexpected parts: %+v", parts)
	}
}

func TestAnalyze_UnparseableDegrades(t *testing.T) {
	f := &fakeModels{resp: reply(&genai.Part{Text: "sorry"})}
	got, err := NewAnalyzer(testClient(t, f)).Analyze(context.Background(), models.AnalyzeRequest{Image: testImage, Credential: "k"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Steps) != 0 || len(got.Concepts) != 0 {
		t.Errorf("got %+v, want empty analysis", got)
	}
}

func TestAnalyze_MissingCredential(t *testing.T) {
	f := &fakeModels{}
	_, err := NewAnalyzer(testClient(t, f)).Analyze(context.Background(), models.AnalyzeRequest{Image: testImage})
	if !errors.Is(err, apperr.ErrMissingCredential) {
		t.Fatalf("err = %v", err)
	}
	if f.calls != 0 {
		t.Error("no upstream call expected")
	}
}

func TestGenerate(t *testing.T) {
	out := []byte("generated")
	f := &fakeModels{resp: reply(&genai.Part{Text: "here"}, &genai.Part{InlineData: &genai.Blob{Data: out, MIMEType: "image/jpeg"}})}
	g := NewGenerator(testClient(t, f))

	img, err := g.Generate(context.Background(), models.GenerateRequest{
		Prompt:      "bottle on marble",
		References:  []models.Image{testImage, {}, testImage},
		AspectRatio: "1:1",
		Credential:  "k",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(img.Data) != "generated" || img.MIMEType != "image/jpeg" {
		t.Errorf("img = %+v", img)
	}
	if f.model != "gemini-2.5-flash-image" {
		t.Errorf("model = %q", f.model)
	}
	parts := f.contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 2 images + text", len(parts))
	}
	if !strings.Contains(parts[2].Text, "bottle on marble") || !strings.Contains(parts[2].Text, "Square format") {
		t.Errorf("prompt = %q", parts[2].Text)
	}
	if f.config.ImageConfig == nil || f.config.ImageConfig.AspectRatio != "1:1" {
		t.Errorf("image config = %+v", f.config.ImageConfig)
	}
}

func TestGenerate_NoImageIsFailure(t *testing.T) {
	f := &fakeModels{resp: reply(&genai.Part{Text: "policy refusal"})}
	_, err := NewGenerator(testClient(t, f)).Generate(context.Background(), models.GenerateRequest{Prompt: "p", Credential: "k"})
	if !errors.Is(err, apperr.ErrUpstreamFailure) || !strings.Contains(err.Error(), "policy refusal") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerate_TransportErrors(t *testing.T) {
	f := &fakeModels{err: context.DeadlineExceeded}
	_, err := NewGenerator(testClient(t, f)).Generate(context.Background(), models.GenerateRequest{Prompt: "p", Credential: "k"})
	if !errors.Is(err, apperr.ErrUpstreamTimeout) {
		t.Fatalf("err = %v, want ErrUpstreamTimeout", err)
	}

	f.err = errors.New("500 internal")
	_, err = NewGenerator(testClient(t, f)).Generate(context.Background(), models.GenerateRequest{Prompt: "p", Credential: "k"})
	if !errors.Is(err, apperr.ErrUpstreamFailure) {
		t.Fatalf("err = %v, want ErrUpstreamFailure", err)
	}
}

func TestBreakerOpens(t *testing.T) {
	f := &fakeModels{err: errors.New("boom")}
	c := testClient(t, f)
	g := NewGenerator(c)
	req := models.GenerateRequest{Prompt: "p", Credential: "k"}
	for i := 0; i < 5; i++ {
		_, _ = g.Generate(context.Background(), req)
	}
	calls := f.calls
	_, err := g.Generate(context.Background(), req)
	if !errors.Is(err, apperr.ErrUpstreamFailure) {
		t.Fatalf("err = %v", err)
	}
	if f.calls != calls {
		t.Errorf("open breaker should not reach upstream: calls %d -> %d", calls, f.calls)
	}
}

func TestLinkedWriter(t *testing.T) {
	f := &fakeModels{resp: reply(&genai.Part{Text: "Title: Duo\nDescription: Together\nSelling Points: a, b"})}
	got, err := NewLinkedWriter(testClient(t, f)).Describe(context.Background(), testImage, []string{"Mug", "Beans"}, "en", "k", "gemini-2.5-pro")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Duo" || len(got.SellingPoints) != 2 {
		t.Errorf("got %+v", got)
	}
	if f.model != "gemini-2.5-pro" {
		t.Errorf("model = %q", f.model)
	}
	if !strings.Contains(f.contents[0].Parts[0].Text, "2. Beans") {
		t.Errorf("prompt missing product list: %q", f.contents[0].Parts[0].Text)
	}
}

type recordingObserver struct{ got []Model }

func (r *recordingObserver) ModelChanged(m Model) { r.got = append(r.got, m) }

func TestSelectorCycles(t *testing.T) {
	obs := &recordingObserver{}
	s := NewSelector(nil, obs)
	if s.Current().Name != "gemini-2.5-flash" {
		t.Fatalf("current = %q", s.Current().Name)
	}
	for i := 0; i < 4; i++ {
		s.Next()
	}
	if s.Current().Name != "gemini-2.5-flash" {
		t.Errorf("after full cycle current = %q", s.Current().Name)
	}
	if len(obs.got) != 4 || obs.got[0].Name != "gemini-2.5-pro" {
		t.Errorf("observed = %+v", obs.got)
	}
	if _, err := s.Select("nope"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	if m, err := s.Select("gemini-flash-latest"); err != nil || s.Current() != m {
		t.Errorf("select: %v", err)
	}
}
