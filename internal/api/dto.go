package api

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/index"
	"github.com/starford/adcanvas/internal/models"
)

var httpURL = regexp.MustCompile(`^https?://\S+$`)

// invalid wraps a validation error so it maps to 400.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}

// UpdateNodeRequest is the request body for editing a node.
type UpdateNodeRequest struct {
	Title   *string `json:"title,omitempty" example:"Summer Vibes"`
	Content *string `json:"content,omitempty" example:"bottle on a sunny beach"`
	NoText  *bool   `json:"noText,omitempty" example:"true"`
}

// Validate validates the request.
func (r *UpdateNodeRequest) Validate() error {
	if r.Title == nil && r.Content == nil && r.NoText == nil {
		return invalid(errors.New("one of title, content or noText is required"))
	}
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Content, validation.Length(0, 10000)),
	))
}

// ConnectRequest is the request body for a manual edge.
type ConnectRequest struct {
	Source string `json:"source" example:"product-1" validate:"required"`
	Target string `json:"target" example:"concept-1" validate:"required"`
}

// Validate validates the request.
func (r *ConnectRequest) Validate() error {
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Required),
		validation.Field(&r.Target, validation.Required),
	))
}

// AnalyzeRequest is the JSON form of POST /api/analyze. Image is a data URI;
// ImageURL is an http(s) URL. Exactly one is required.
type AnalyzeRequest struct {
	Image    string `json:"image,omitempty"`
	ImageURL string `json:"imageUrl,omitempty" example:"https://example.com/bottle.png"`
	FileName string `json:"fileName,omitempty" example:"bottle.png"`
	Language string `json:"language,omitempty" example:"en"`
}

// Validate validates the request.
func (r *AnalyzeRequest) Validate() error {
	if (r.Image == "") == (r.ImageURL == "") {
		return invalid(errors.New("exactly one of image or imageUrl is required"))
	}
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.ImageURL, validation.Match(httpURL).Error("must be an http(s) URL")),
		validation.Field(&r.FileName, validation.Length(0, 255)),
		validation.Field(&r.Language, validation.Length(0, 16)),
	))
}

// GenerateRequest is the optional body of POST /api/concepts/{id}/generate.
type GenerateRequest struct {
	Preset string `json:"preset,omitempty" example:"Instagram Story"`
	Model  string `json:"model,omitempty"`
}

// GenerateResponse names the placeholder creative.
type GenerateResponse struct {
	CreativeID string `json:"creativeId" validate:"required"`
}

// MergeRequest is the request body for merging images.
type MergeRequest struct {
	Images    []string `json:"images" validate:"required"`
	Layout    string   `json:"layout,omitempty" example:"horizontal"`
	Spacing   *int     `json:"spacing,omitempty" example:"20"`
	MaxWidth  int      `json:"maxWidth,omitempty" example:"2400"`
	MaxHeight int      `json:"maxHeight,omitempty" example:"1600"`
}

// Validate validates the request.
func (r *MergeRequest) Validate() error {
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.Images, validation.Required, validation.Length(2, 12)),
		validation.Field(&r.Layout, validation.In(string(imaging.Horizontal), string(imaging.Vertical), string(imaging.Grid))),
		validation.Field(&r.Spacing, validation.Min(0), validation.Max(200)),
		validation.Field(&r.MaxWidth, validation.Min(0), validation.Max(8000)),
		validation.Field(&r.MaxHeight, validation.Min(0), validation.Max(8000)),
	))
}

// Options converts the request to merge options, filling defaults.
func (r *MergeRequest) Options() imaging.MergeOptions {
	opts := imaging.DefaultMergeOptions()
	if r.Layout != "" {
		opts.Layout = imaging.Layout(r.Layout)
	}
	if r.Spacing != nil {
		opts.Spacing = *r.Spacing
	}
	if r.MaxWidth > 0 {
		opts.MaxWidth = r.MaxWidth
	}
	if r.MaxHeight > 0 {
		opts.MaxHeight = r.MaxHeight
	}
	return opts
}

// MergeResponse carries the merged image as a data URI.
type MergeResponse struct {
	Image  string `json:"image" validate:"required"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MergeProductRequest merges images and analyzes the result as a product.
type MergeProductRequest struct {
	MergeRequest
	FileName string `json:"fileName,omitempty"`
	Language string `json:"language,omitempty"`
}

// LinkedConceptRequest is the request body for a linked concept.
type LinkedConceptRequest struct {
	ProductIDs []string `json:"productIds" validate:"required"`
	Language   string   `json:"language,omitempty" example:"en"`
}

// Validate validates the request.
func (r *LinkedConceptRequest) Validate() error {
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.ProductIDs, validation.Required, validation.Length(2, 0)),
	))
}

// LinkedConceptResponse is the proposed concept.
type LinkedConceptResponse = models.LinkedConcept

// SaveProjectRequest is the request body for saving the canvas.
type SaveProjectRequest struct {
	Name string `json:"name" example:"Spring Launch"`
}

// Validate validates the request.
func (r *SaveProjectRequest) Validate() error {
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Length(0, 120)),
	))
}

// SelectModelRequest picks a model by name.
type SelectModelRequest struct {
	Name string `json:"name" example:"gemini-2.5-pro" validate:"required"`
}

// Validate validates the request.
func (r *SelectModelRequest) Validate() error {
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	))
}

// ProjectListResponse wraps paginated project listings.
type ProjectListResponse struct {
	Projects []index.ProjectRow `json:"projects" validate:"required"`
	Total    int                `json:"total" example:"3" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
