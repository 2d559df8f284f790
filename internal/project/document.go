// Package project reads and writes the portable canvas document.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// Version is the only document version this build reads and writes.
const Version = "1.0"

// Extension is the file extension for saved projects. Plain .json files
// are accepted on import and by the catalog.
const Extension = ".banana"

// DefaultName names projects saved without one.
const DefaultName = "untitled-project"

// Document is the saved form of a canvas.
type Document struct {
	ProjectName string        `json:"projectName"`
	Nodes       []models.Node `json:"nodes"`
	Edges       []models.Edge `json:"edges"`
	Timestamp   time.Time     `json:"timestamp"`
	Version     string        `json:"version"`
}

// New builds a document stamped with now.
func New(name string, nodes []models.Node, edges []models.Edge, now time.Time) Document {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	if nodes == nil {
		nodes = []models.Node{}
	}
	if edges == nil {
		edges = []models.Edge{}
	}
	return Document{
		ProjectName: name,
		Nodes:       nodes,
		Edges:       edges,
		Timestamp:   now.UTC(),
		Version:     Version,
	}
}

// Encode renders doc as indented JSON.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("project: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// wire keeps nodes and edges as raw messages so absence can be told apart
// from an empty list.
type wire struct {
	ProjectName string          `json:"projectName"`
	Nodes       json.RawMessage `json:"nodes"`
	Edges       json.RawMessage `json:"edges"`
	Timestamp   string          `json:"timestamp"`
	Version     string          `json:"version"`
}

// Decode parses and validates a document. Every failure wraps
// apperr.ErrLoadFormat so nothing is partially loaded.
func Decode(data []byte) (Document, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Document{}, fmt.Errorf("%w: %v", apperr.ErrLoadFormat, err)
	}
	if isNull(w.Nodes) || isNull(w.Edges) {
		return Document{}, fmt.Errorf("%w: nodes and edges are required", apperr.ErrLoadFormat)
	}
	if w.Version != "" && w.Version != Version {
		return Document{}, fmt.Errorf("%w: unsupported version %q", apperr.ErrLoadFormat, w.Version)
	}

	doc := Document{ProjectName: w.ProjectName, Version: Version}
	if err := json.Unmarshal(w.Nodes, &doc.Nodes); err != nil {
		return Document{}, fmt.Errorf("%w: nodes: %v", apperr.ErrLoadFormat, err)
	}
	if err := json.Unmarshal(w.Edges, &doc.Edges); err != nil {
		return Document{}, fmt.Errorf("%w: edges: %v", apperr.ErrLoadFormat, err)
	}
	if w.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return Document{}, fmt.Errorf("%w: timestamp: %v", apperr.ErrLoadFormat, err)
		}
		doc.Timestamp = ts
	}
	if err := doc.check(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// check rejects duplicate node ids, unknown node types and dangling edges.
func (d Document) check() error {
	ids := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", apperr.ErrLoadFormat)
		}
		if !n.Type.Valid() {
			return fmt.Errorf("%w: node %s has unknown type %q", apperr.ErrLoadFormat, n.ID, n.Type)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %s", apperr.ErrLoadFormat, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, e := range d.Edges {
		_, okS := ids[e.Source]
		_, okT := ids[e.Target]
		if !okS || !okT {
			return fmt.Errorf("%w: edge %s references a missing node", apperr.ErrLoadFormat, e.ID)
		}
	}
	return nil
}

// Summary is what the catalog records about a document.
type Summary struct {
	Name      string
	Nodes     int
	Edges     int
	Products  int
	Concepts  int
	Creatives int
	// Text is the searchable body: every node title and content.
	Text string
}

// Summarize counts node types and gathers searchable text.
func (d Document) Summarize() Summary {
	s := Summary{Name: d.ProjectName, Nodes: len(d.Nodes), Edges: len(d.Edges)}
	var text strings.Builder
	for _, n := range d.Nodes {
		switch n.Type {
		case models.NodeProduct:
			s.Products++
		case models.NodeConcept:
			s.Concepts++
		case models.NodeCreative:
			s.Creatives++
		}
		for _, f := range []string{n.Data.Title, n.Data.Content} {
			if f = strings.TrimSpace(f); f != "" {
				text.WriteString(f)
				text.WriteByte('\n')
			}
		}
	}
	s.Text = text.String()
	return s
}

var unsafeRe = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// FileName maps a project name to its file name in the project directory.
func FileName(name string) string {
	slug := strings.Trim(unsafeRe.ReplaceAllString(strings.TrimSpace(name), "-"), "-.")
	if slug == "" {
		slug = DefaultName
	}
	return slug + Extension
}

// IsProjectFile reports whether path has a project extension.
func IsProjectFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case Extension, ".json":
		return true
	}
	return false
}
