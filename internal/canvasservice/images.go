package canvasservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/session"
)

// MergedProductName titles products created from a merged image.
const MergedProductName = "Merged Image"

// maxConcurrentLoads bounds parallel image downloads for one request.
const maxConcurrentLoads = 4

// linkedMergeOptions sizes the composite sent for a linked concept.
var linkedMergeOptions = imaging.MergeOptions{
	Layout:    imaging.Horizontal,
	Spacing:   20,
	MaxWidth:  1200,
	MaxHeight: 800,
}

// NodeImage returns the decoded image stored on a node.
func (s *Service) NodeImage(ctx context.Context, id string) (models.Image, error) {
	n, err := s.Node(id)
	if err != nil {
		return models.Image{}, err
	}
	if n.Data.ImageURL == "" {
		return models.Image{}, fmt.Errorf("%w: node %s has no image", apperr.ErrNotFound, id)
	}
	if s.images == nil {
		return imaging.DecodeDataURI(n.Data.ImageURL)
	}
	return s.images.Load(ctx, n.Data.ImageURL)
}

// loadAll resolves every reference concurrently, preserving order.
func (s *Service) loadAll(ctx context.Context, refs []string) ([]models.Image, error) {
	if s.images == nil {
		return nil, unavailable("image loading")
	}
	out := make([]models.Image, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := s.images.Load(gctx, ref)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeImages composites two or more images. Each ref is a data URI or an
// http(s) URL.
func (s *Service) MergeImages(ctx context.Context, refs []string, opts imaging.MergeOptions) (models.Image, error) {
	if len(refs) < 2 {
		return models.Image{}, fmt.Errorf("%w: merge needs at least 2 images, got %d", apperr.ErrInvalidInput, len(refs))
	}
	imgs, err := s.loadAll(ctx, refs)
	if err != nil {
		return models.Image{}, err
	}
	return imaging.Merge(imgs, opts)
}

// MergeAsProduct merges the images and submits the result for analysis as
// a new product. Fields of sub other than Image and ImageURL are kept.
func (s *Service) MergeAsProduct(ctx context.Context, refs []string, opts imaging.MergeOptions, sub session.Submission) (session.Status, error) {
	if s.sessions == nil {
		return session.Status{}, unavailable("analysis")
	}
	if st := s.sessions.Status(); st.Active() {
		return session.Status{}, fmt.Errorf("%w: session %s is %s", apperr.ErrSessionActive, st.ID, st.State)
	}
	merged, err := s.MergeImages(ctx, refs, opts)
	if err != nil {
		return session.Status{}, err
	}
	sub.Image = merged
	sub.ImageURL = ""
	if strings.TrimSpace(sub.FileName) == "" {
		sub.FileName = MergedProductName
	}
	return s.Analyze(ctx, sub)
}

// LinkedConcept asks the model for one concept that ties several products
// together. The canvas is not modified.
func (s *Service) LinkedConcept(ctx context.Context, productIDs []string, language, credential string) (models.LinkedConcept, error) {
	if s.linked == nil {
		return models.LinkedConcept{}, unavailable("linked concepts")
	}
	if credential == "" {
		return models.LinkedConcept{}, apperr.ErrMissingCredential
	}

	seen := make(map[string]struct{}, len(productIDs))
	var ids, refs, titles []string
	for _, id := range productIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n, err := s.Node(id)
		if err != nil {
			return models.LinkedConcept{}, err
		}
		if n.Type != models.NodeProduct {
			return models.LinkedConcept{}, fmt.Errorf("%w: node %s is not a product", apperr.ErrInvalidInput, id)
		}
		if n.Data.ImageURL == "" {
			return models.LinkedConcept{}, fmt.Errorf("%w: product %s has no image", apperr.ErrInvalidInput, id)
		}
		ids = append(ids, id)
		refs = append(refs, n.Data.ImageURL)
		titles = append(titles, n.Data.Title)
	}
	if len(ids) < 2 {
		return models.LinkedConcept{}, fmt.Errorf("%w: a linked concept needs at least 2 products", apperr.ErrInvalidInput)
	}

	merged, err := s.MergeImages(ctx, refs, linkedMergeOptions)
	if err != nil {
		return models.LinkedConcept{}, err
	}
	if language == "" {
		language = session.DefaultLanguage
	}
	model := ""
	if s.models != nil {
		model = s.models.Current().Name
	}

	lc, err := s.linked.Describe(ctx, merged, titles, language, credential, model)
	if err != nil {
		return models.LinkedConcept{}, err
	}
	lc.ProductIDs = ids
	s.logger.Info("canvas: linked concept",
		slog.Int("products", len(ids)),
		slog.String("title", lc.Title))
	return lc, nil
}
