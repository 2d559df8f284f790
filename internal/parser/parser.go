// Package parser extracts structured results from free-form model output.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	sentenceRe = regexp.MustCompile(`[.!。]`)
	pointSepRe = regexp.MustCompile(`[,，]`)
)

// rawAnalysis is the JSON shape the analysis prompt asks the model for.
type rawAnalysis struct {
	ReasoningSteps []struct {
		Step     string `json:"step" yaml:"step"`
		Analysis string `json:"analysis" yaml:"analysis"`
	} `json:"reasoning_steps" yaml:"reasoning_steps"`
	ProductType      string `json:"product_type" yaml:"product_type"`
	CreativeConcepts []struct {
		Name        string `json:"name" yaml:"name"`
		Description string `json:"description" yaml:"description"`
		Rationale   string `json:"rationale" yaml:"rationale"`
	} `json:"creative_concepts" yaml:"creative_concepts"`
}

// ExtractJSON returns the JSON object embedded in text: the body of a
// ```json fence if present, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(text string) (string, bool) {
	if m := fenceRe.FindStringSubmatch(text); m != nil && strings.HasPrefix(strings.TrimSpace(m[1]), "{") {
		return m[1], true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseAnalysis decodes the analyzer's reply. Replies that are not strict
// JSON (single-quoted strings, for example) are retried as YAML.
func ParseAnalysis(text string) (models.Analysis, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return models.Analysis{}, fmt.Errorf("%w: no JSON object in analysis reply", apperr.ErrUpstreamFailure)
	}

	var ra rawAnalysis
	if err := json.Unmarshal([]byte(raw), &ra); err != nil {
		if yerr := yaml.Unmarshal([]byte(raw), &ra); yerr != nil {
			return models.Analysis{}, fmt.Errorf("%w: decode analysis: %v", apperr.ErrUpstreamFailure, err)
		}
	}

	out := models.Analysis{
		ProductType: strings.TrimSpace(ra.ProductType),
		Steps:       make([]models.ReasoningStep, 0, len(ra.ReasoningSteps)),
		Concepts:    make([]models.ConceptSuggestion, 0, len(ra.CreativeConcepts)),
	}
	for _, s := range ra.ReasoningSteps {
		out.Steps = append(out.Steps, models.ReasoningStep{Step: s.Step, Analysis: s.Analysis})
	}
	for _, c := range ra.CreativeConcepts {
		if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Description) == "" {
			continue
		}
		out.Concepts = append(out.Concepts, models.ConceptSuggestion{
			Concept:   c.Name,
			Prompt:    c.Description,
			Rationale: c.Rationale,
		})
	}
	return out, nil
}

const (
	defaultLinkedTitle       = "Linked Concept"
	defaultLinkedDescription = "Combined concept for multiple products"
)

// ParseLinkedConcept reads the Title/Description/Selling Points lines of a
// linked-concept reply. When no title line is found, the first sentence of
// the reply becomes the title and the whole reply the description.
func ParseLinkedConcept(text string) models.LinkedConcept {
	out := models.LinkedConcept{
		Title:         defaultLinkedTitle,
		Description:   defaultLinkedDescription,
		SellingPoints: []string{},
	}
	foundTitle := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		if line == "" {
			continue
		}
		if v, ok := cutAny(line, "Title:", "标题：", "標題："); ok {
			out.Title = v
			foundTitle = true
		} else if v, ok := cutAny(line, "Description:", "描述："); ok {
			out.Description = v
		} else if v, ok := cutAny(line, "Selling Points:", "卖点：", "賣點："); ok {
			out.SellingPoints = out.SellingPoints[:0]
			for _, p := range pointSepRe.Split(v, -1) {
				if p = strings.TrimSpace(p); p != "" {
					out.SellingPoints = append(out.SellingPoints, p)
				}
			}
		}
	}

	if !foundTitle && len(text) > 10 {
		for _, s := range sentenceRe.Split(text, -1) {
			s = strings.TrimSpace(s)
			if len(s) > 5 {
				out.Title = truncate(s, 50)
				out.Description = text
				break
			}
		}
	}
	return out
}

func cutAny(line string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if v, ok := strings.CutPrefix(line, p); ok {
			return strings.TrimSpace(strings.Trim(v, "* ")), true
		}
	}
	return "", false
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
