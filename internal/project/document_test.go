package project

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

func sampleDoc() Document {
	nodes := []models.Node{
		{ID: "product-1", Type: models.NodeProduct, Position: models.Position{X: 400, Y: 100}, Data: models.NodeData{
			Title: "bottle.png", Content: "Skincare", Status: models.StatusCompleted, ImageURL: "data:image/png;base64,AAAA",
		}},
		{ID: "concept-1", Type: models.NodeConcept, Position: models.Position{X: -240, Y: 500.5}, Data: models.NodeData{
			Title: "Hero", Concept: "Hero", Content: "bottle on marble", Status: models.StatusIdle,
			ParentProductID: "product-1", ParentProductImageURL: "data:image/png;base64,AAAA", NoText: true,
		}},
	}
	edges := []models.Edge{{ID: "e-product-1-concept-1", Source: "product-1", Target: "concept-1"}}
	return New("Spring Launch", nodes, edges, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDoc()
	data, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"fromKnowledgeGraph": true`) || !strings.Contains(string(data), `"version": "1.0"`) {
		t.Errorf("unexpected encoding:\n%s", data)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got.Nodes, doc.Nodes) || !reflect.DeepEqual(got.Edges, doc.Edges) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}
	if got.ProjectName != doc.ProjectName || !got.Timestamp.Equal(doc.Timestamp) {
		t.Errorf("header = %q %s", got.ProjectName, got.Timestamp)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":       `nope`,
		"missing nodes":  `{"edges": []}`,
		"missing edges":  `{"nodes": []}`,
		"null nodes":     `{"nodes": null, "edges": []}`,
		"future version": `{"nodes": [], "edges": [], "version": "2.0"}`,
		"duplicate ids":  `{"nodes": [{"id":"a","type":"product"},{"id":"a","type":"product"}], "edges": []}`,
		"dangling edge":  `{"nodes": [{"id":"a","type":"product"}], "edges": [{"id":"e","source":"a","target":"b"}]}`,
		"unknown type":   `{"nodes": [{"id":"a","type":"sticker"}], "edges": []}`,
		"bad timestamp":  `{"nodes": [], "edges": [], "timestamp": "yesterday"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(in)); !errors.Is(err, apperr.ErrLoadFormat) {
				t.Errorf("err = %v, want ErrLoadFormat", err)
			}
		})
	}
}

func TestDecode_LegacyFile(t *testing.T) {
	// Older exports carry presentation fields and no version.
	in := `{
		"projectName": "old",
		"nodes": [{"id":"product","type":"product","position":{"x":1,"y":2},"data":{"title":"p","inputHandleColor":"#F4A261"}}],
		"edges": [{"id":"x","source":"product","target":"product","type":"smoothstep","animated":true}],
		"timestamp": "2025-08-30T10:00:00.000Z"
	}`
	doc, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Version != Version || len(doc.Nodes) != 1 || doc.Nodes[0].Data.Title != "p" {
		t.Errorf("doc = %+v", doc)
	}
	if got := string(doc.Nodes[0].Data.Extra["inputHandleColor"]); got != `"#F4A261"` {
		t.Errorf("node extra = %q", got)
	}

	data, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"inputHandleColor": "#F4A261"`, `"type": "smoothstep"`, `"animated": true`, `"title": "p"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("re-encoded file lacks %s:\n%s", want, data)
		}
	}
	again, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode re-encoded: %v", err)
	}
	if !reflect.DeepEqual(again.Nodes, doc.Nodes) || !reflect.DeepEqual(again.Edges, doc.Edges) {
		t.Errorf("second round trip mismatch:\n got %+v\nwant %+v", again, doc)
	}
}

func TestSummarize(t *testing.T) {
	s := sampleDoc().Summarize()
	if s.Products != 1 || s.Concepts != 1 || s.Creatives != 0 || s.Edges != 1 {
		t.Errorf("summary = %+v", s)
	}
	if !strings.Contains(s.Text, "bottle on marble") {
		t.Errorf("text = %q", s.Text)
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"Spring Launch":   "Spring-Launch.banana",
		"":                "untitled-project.banana",
		"../../etc/passwd": "etc-passwd.banana",
		"新品 上市":           "新品-上市.banana",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
	if !IsProjectFile("a/b.BANANA") || !IsProjectFile("x.json") || IsProjectFile("x.md") {
		t.Error("IsProjectFile")
	}
}
