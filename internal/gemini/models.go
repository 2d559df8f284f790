package gemini

import (
	"fmt"
	"sync"

	"github.com/starford/adcanvas/internal/apperr"
)

// Model describes a selectable text model.
type Model struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Description string `json:"description" yaml:"description"`
}

// DefaultModels is the selection cycle offered when config lists none.
func DefaultModels() []Model {
	return []Model{
		{Name: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Description: "Fast and efficient model for general tasks"},
		{Name: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", Description: "Advanced model for complex reasoning tasks"},
		{Name: "gemini-flash-latest", DisplayName: "Gemini Flash Latest", Description: "Latest flash model with newest capabilities"},
		{Name: "gemini-flash-lite-latest", DisplayName: "Gemini Flash Lite Latest", Description: "Lightweight model for quick tasks"},
	}
}

// ModelObserver is notified when the selected model changes.
type ModelObserver interface {
	ModelChanged(Model)
}

// Selector holds the current text model. Callers read Current at invocation
// time and pass the name down explicitly.
type Selector struct {
	mu       sync.RWMutex
	models   []Model
	idx      int
	observer ModelObserver
}

// NewSelector creates a selector over models starting at the first entry.
func NewSelector(models []Model, observer ModelObserver) *Selector {
	if len(models) == 0 {
		models = DefaultModels()
	}
	return &Selector{models: models, observer: observer}
}

// Models returns the selection cycle.
func (s *Selector) Models() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Model(nil), s.models...)
}

// Current returns the selected model.
func (s *Selector) Current() Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.models[s.idx]
}

// Next advances to the following model, wrapping at the end.
func (s *Selector) Next() Model {
	s.mu.Lock()
	s.idx = (s.idx + 1) % len(s.models)
	m := s.models[s.idx]
	s.mu.Unlock()

	s.notify(m)
	return m
}

// Select makes the named model current.
func (s *Selector) Select(name string) (Model, error) {
	s.mu.Lock()
	for i, m := range s.models {
		if m.Name == name {
			s.idx = i
			s.mu.Unlock()
			s.notify(m)
			return m, nil
		}
	}
	s.mu.Unlock()
	return Model{}, fmt.Errorf("%w: unknown model %q", apperr.ErrInvalidInput, name)
}

func (s *Selector) notify(m Model) {
	if s.observer != nil {
		s.observer.ModelChanged(m)
	}
}
