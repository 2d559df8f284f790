package canvasservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/index"
	"github.com/starford/adcanvas/internal/project"
)

// SavedProject describes a project written to the project directory.
type SavedProject struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Created bool   `json:"created"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}

// projectPath maps a project name or file name to its relative path.
func projectPath(name string) string {
	name = strings.TrimSpace(name)
	if project.IsProjectFile(name) {
		return name
	}
	return project.FileName(name)
}

// Export encodes the current canvas as a project document without saving it.
// It returns the document bytes and a suggested file name.
func (s *Service) Export(name string) ([]byte, string, error) {
	snap := s.graph.Snapshot()
	if len(snap.Nodes) == 0 {
		return nil, "", fmt.Errorf("%w: the canvas is empty", apperr.ErrInvalidInput)
	}
	doc := project.New(name, snap.Nodes, snap.Edges, s.now())
	data, err := project.Encode(doc)
	if err != nil {
		return nil, "", err
	}
	return data, project.FileName(doc.ProjectName), nil
}

// Import replaces the canvas with a project document. A malformed document
// leaves the canvas untouched.
func (s *Service) Import(data []byte) (project.Document, error) {
	doc, err := project.Decode(data)
	if err != nil {
		return project.Document{}, err
	}
	if err := s.graph.Replace(doc.Nodes, doc.Edges); err != nil {
		return project.Document{}, fmt.Errorf("%w: %v", apperr.ErrLoadFormat, err)
	}
	s.logger.Info("canvas: project imported",
		slog.String("project", doc.ProjectName),
		slog.Int("nodes", len(doc.Nodes)))
	return doc, nil
}

// SaveProject writes the canvas into the project directory and indexes it.
// Saving under an existing name overwrites that project.
func (s *Service) SaveProject(_ context.Context, name string) (*SavedProject, error) {
	if s.projects == nil {
		return nil, unavailable("project storage")
	}
	data, _, err := s.Export(name)
	if err != nil {
		return nil, err
	}
	path := projectPath(name)

	_, readErr := s.projects.Read(path)
	created := errors.Is(readErr, apperr.ErrNotFound)

	if err := s.projects.Write(path, data); err != nil {
		return nil, err
	}
	if s.catalog != nil {
		if err := index.IndexFile(s.catalog, path, data); err != nil {
			s.logger.Warn("canvas: index saved project", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	kind := "updated"
	if created {
		kind = "created"
	}
	s.publish(kind, path)

	snap := s.graph.Snapshot()
	if strings.TrimSpace(name) == "" {
		name = project.DefaultName
	}
	s.logger.Info("canvas: project saved", slog.String("path", path), slog.Bool("created", created))
	return &SavedProject{Path: path, Name: name, Created: created, Nodes: len(snap.Nodes), Edges: len(snap.Edges)}, nil
}

// LoadProject replaces the canvas with a saved project.
func (s *Service) LoadProject(_ context.Context, name string) (project.Document, error) {
	if s.projects == nil {
		return project.Document{}, unavailable("project storage")
	}
	data, err := s.projects.Read(projectPath(name))
	if err != nil {
		return project.Document{}, err
	}
	return s.Import(data)
}

// DeleteProject removes a saved project file and its catalog entry.
func (s *Service) DeleteProject(_ context.Context, name string) error {
	if s.projects == nil {
		return unavailable("project storage")
	}
	path := projectPath(name)
	if err := s.projects.Delete(path); err != nil {
		return err
	}
	if s.catalog != nil {
		if err := s.catalog.DeleteProject(path); err != nil {
			return err
		}
	}
	s.publish("deleted", path)
	return nil
}

// ListProjects returns a page of the catalog.
func (s *Service) ListProjects(_ context.Context, limit, offset int, sort string) ([]index.ProjectRow, int, error) {
	if s.catalog == nil {
		return nil, 0, unavailable("project catalog")
	}
	return s.catalog.ListProjects(limit, offset, sort)
}

// SearchProjects runs a full-text query over saved project names and node text.
func (s *Service) SearchProjects(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.catalog == nil {
		return nil, unavailable("project catalog")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalidInput)
	}
	return s.catalog.Search(query, limit)
}

func (s *Service) publish(kind, path string) {
	if s.events != nil {
		s.events.PublishProjectEvent(kind, path)
	}
}
