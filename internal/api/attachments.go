package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/session"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// extensions maps image MIME types to download file extensions.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// downloadName builds a header-safe attachment file name for a node image.
func downloadName(nodeID, mimeType string) string {
	ext, ok := extensions[mimeType]
	if !ok {
		ext = ".bin"
	}
	name := unsafeFileChars.ReplaceAllString(nodeID, "-")
	if name == "" {
		name = "image"
	}
	return name + ext
}

// NodeImage handles GET /api/nodes/{id}/image.
//
//	@Summary		Download the image stored on a node
//	@Tags			nodes
//	@Produce		image/png,image/jpeg,image/webp
//	@Param			id	path	string	true	"Node id"
//	@Success		200	"Image bytes"
//	@Failure		404	{object}	errResponse
//	@Router			/nodes/{id}/image [get]
func (h *Handler) NodeImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, err := h.svc.NodeImage(r.Context(), id)
	if err != nil {
		writeError(w, "node image", err)
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, downloadName(id, img.MIMEType)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// MergeImages handles POST /api/merge-images.
//
//	@Summary		Composite several images into one PNG
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MergeRequest	true	"Images and layout"
//	@Success		200		{object}	MergeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/merge-images [post]
func (h *Handler) MergeImages(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := decodeJSON(w, r, maxUploadBytes*4, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "merge images", err)
		return
	}
	merged, err := h.svc.MergeImages(r.Context(), req.Images, req.Options())
	if err != nil {
		writeError(w, "merge images", err)
		return
	}
	resp := MergeResponse{Image: imaging.EncodeDataURI(merged)}
	if m, err := imaging.Decode(merged); err == nil {
		resp.Width, resp.Height = m.Bounds().Dx(), m.Bounds().Dy()
	}
	writeJSON(w, http.StatusOK, resp)
}

// MergeAsProduct handles POST /api/merge-images/product.
//
//	@Summary		Merge images and analyze the result as a new product
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MergeProductRequest	true	"Images, layout and analysis options"
//	@Success		202		{object}	session.Status
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Router			/merge-images/product [post]
func (h *Handler) MergeAsProduct(w http.ResponseWriter, r *http.Request) {
	var req MergeProductRequest
	if err := decodeJSON(w, r, maxUploadBytes*4, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.MergeRequest.Validate(); err != nil {
		writeError(w, "merge as product", err)
		return
	}
	st, err := h.svc.MergeAsProduct(r.Context(), req.Images, req.Options(), session.Submission{
		FileName:   req.FileName,
		Language:   req.Language,
		Credential: credential(r),
	})
	if err != nil {
		writeError(w, "merge as product", err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// LinkedConcept handles POST /api/linked-concepts.
//
//	@Summary		Propose one concept spanning several products
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LinkedConceptRequest	true	"Product ids"
//	@Success		200		{object}	LinkedConceptResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/linked-concepts [post]
func (h *Handler) LinkedConcept(w http.ResponseWriter, r *http.Request) {
	var req LinkedConceptRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "linked concept", err)
		return
	}
	lc, err := h.svc.LinkedConcept(r.Context(), req.ProductIDs, req.Language, credential(r))
	if err != nil {
		writeError(w, "linked concept", err)
		return
	}
	writeJSON(w, http.StatusOK, lc)
}
