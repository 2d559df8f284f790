// Package lineage picks the reference images a new generation should use.
//
// Concepts cache their ancestor images when they are created. Those copies
// are not refreshed if the ancestor changes later, so resolution never walks
// the graph except for the legacy product fallback.
package lineage

import (
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/models"
)

// Inputs are the optional reference images for one generation.
type Inputs struct {
	ProductImage   string `json:"productImage,omitempty"`
	GeneratedImage string `json:"generatedImage,omitempty"`
}

// Resolve returns the inputs for concept. The product image comes from the
// concept's cached parent image, else from the first product on the canvas.
// The generated image comes only from the concept's cached field.
func Resolve(concept models.Node, r graph.Reader) Inputs {
	var in Inputs
	if concept.Data.ParentProductImageURL != "" {
		in.ProductImage = concept.Data.ParentProductImageURL
	} else if p, ok := r.FirstOfType(models.NodeProduct); ok {
		in.ProductImage = p.Data.ImageURL
	}
	in.GeneratedImage = concept.Data.ParentGeneratedImageURL
	return in
}

// ProductImageForCreative returns the product image a concept spawned from
// creative should cache: the producing concept's product image, else the
// first product's image.
func ProductImageForCreative(creative models.Node, r graph.Reader) string {
	if parent, ok := r.Node(creative.Data.ParentConceptID); ok && parent.Data.ParentProductImageURL != "" {
		return parent.Data.ParentProductImageURL
	}
	if p, ok := r.FirstOfType(models.NodeProduct); ok {
		return p.Data.ImageURL
	}
	return ""
}
