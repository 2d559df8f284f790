package parser

import (
	"errors"
	"testing"

	"github.com/starford/adcanvas/internal/apperr"
)

const fencedReply = "Here you go:\n```json\n" + `{
  "reasoning_steps": [
    {"step": "Product Type", "analysis": "A glass perfume bottle"},
    {"step": "Target Audience", "analysis": "Young professionals"}
  ],
  "product_type": "fragrance",
  "creative_concepts": [
    {"name": "Hero Shot", "description": "Bottle on marble", "rationale": "Shows product clearly"},
    {"name": "Lifestyle", "description": "On a vanity at dawn", "rationale": "Shows context"}
  ]
}` + "\n```\nThanks."

func TestExtractJSON_Fence(t *testing.T) {
	got, ok := ExtractJSON(fencedReply)
	if !ok || got[0] != '{' || got[len(got)-1] != '}' {
		t.Fatalf("ExtractJSON = %q, %v", got, ok)
	}
}

func TestExtractJSON_BareObject(t *testing.T) {
	got, ok := ExtractJSON(`prefix {"a": {"b": 1}} suffix`)
	if !ok || got != `{"a": {"b": 1}}` {
		t.Fatalf("ExtractJSON = %q, %v", got, ok)
	}
	if _, ok := ExtractJSON("no json here"); ok {
		t.Error("expected no match")
	}
}

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis(fencedReply)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if len(a.Steps) != 2 || a.Steps[0].Step != "Product Type" || a.Steps[1].Analysis != "Young professionals" {
		t.Errorf("steps = %+v", a.Steps)
	}
	if len(a.Concepts) != 2 {
		t.Fatalf("concepts = %+v", a.Concepts)
	}
	c := a.Concepts[1]
	if c.Concept != "Lifestyle" || c.Prompt != "On a vanity at dawn" || c.Rationale != "Shows context" {
		t.Errorf("concept = %+v", c)
	}
}

func TestParseAnalysis_LenientYAMLFallback(t *testing.T) {
	reply := `{'reasoning_steps': [{'step': 'A', 'analysis': 'B'}], 'creative_concepts': []}`
	a, err := ParseAnalysis(reply)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if len(a.Steps) != 1 || a.Steps[0].Step != "A" {
		t.Errorf("steps = %+v", a.Steps)
	}
}

func TestParseAnalysis_Garbage(t *testing.T) {
	_, err := ParseAnalysis("I cannot help with that.")
	if !errors.Is(err, apperr.ErrUpstreamFailure) {
		t.Fatalf("err = %v, want ErrUpstreamFailure", err)
	}
}

func TestParseLinkedConcept(t *testing.T) {
	reply := "**Title:** Morning Ritual\nDescription: Coffee and mug together.\nSelling Points: cozy, warm，daily"
	got := ParseLinkedConcept(reply)
	if got.Title != "Morning Ritual" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Description != "Coffee and mug together." {
		t.Errorf("description = %q", got.Description)
	}
	if len(got.SellingPoints) != 3 || got.SellingPoints[2] != "daily" {
		t.Errorf("selling points = %v", got.SellingPoints)
	}
}

func TestParseLinkedConcept_Chinese(t *testing.T) {
	got := ParseLinkedConcept("标题：清晨仪式\n描述：咖啡与杯子\n卖点：温暖，日常")
	if got.Title != "清晨仪式" || len(got.SellingPoints) != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestParseLinkedConcept_SentenceFallback(t *testing.T) {
	reply := "A bright summer bundle for beach days. It pairs the hat with sunscreen."
	got := ParseLinkedConcept(reply)
	if got.Title != "A bright summer bundle for beach days" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Description != reply {
		t.Errorf("description = %q", got.Description)
	}
}
