package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/canvasservice"
	"github.com/starford/adcanvas/internal/generation"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/presets"
	"github.com/starford/adcanvas/internal/session"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = imaging.MaxImageSize + 1<<20
)

// Handler holds API route handlers.
type Handler struct {
	svc *canvasservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *canvasservice.Service) *Handler {
	return &Handler{svc: svc}
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, msg)
}

func badJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
}

// Canvas handles GET /api/canvas.
//
//	@Summary		Get every node and edge on the canvas
//	@Tags			canvas
//	@Produce		json
//	@Success		200	{object}	graph.Snapshot
//	@Router			/canvas [get]
func (h *Handler) Canvas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// GetNode handles GET /api/nodes/{id}.
//
//	@Summary		Get a single node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	models.Node
//	@Failure		404	{object}	errResponse
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Node(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNode handles PATCH /api/nodes/{id}.
//
//	@Summary		Edit a node's title, content or no-text flag
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Node id"
//	@Param			body	body		UpdateNodeRequest	true	"Fields to change"
//	@Success		200		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/nodes/{id} [patch]
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "update node", err)
		return
	}
	n, err := h.svc.UpdateNode(chi.URLParam(r, "id"), canvasservice.NodeUpdate{
		Title:   req.Title,
		Content: req.Content,
		NoText:  req.NoText,
	})
	if err != nil {
		writeError(w, "update node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNode handles DELETE /api/nodes/{id}.
//
//	@Summary		Delete a node without downstream dependents
//	@Tags			nodes
//	@Param			id	path	string	true	"Node id"
//	@Success		204	"Node deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/nodes/{id} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNode(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddConcept handles POST /api/nodes/{id}/concepts.
//
//	@Summary		Add an empty concept under a product or creative
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Parent node id"
//	@Success		201	{object}	models.Node
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/nodes/{id}/concepts [post]
func (h *Handler) AddConcept(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.AddConcept(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "add concept", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Connect handles POST /api/edges.
//
//	@Summary		Connect two nodes manually
//	@Tags			edges
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConnectRequest	true	"Edge endpoints"
//	@Success		201		{object}	models.Edge
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/edges [post]
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "connect", err)
		return
	}
	e, err := h.svc.Connect(req.Source, req.Target)
	if err != nil {
		writeError(w, "connect", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// Analyze handles POST /api/analyze.
//
// The image comes either as a multipart file field "product_image" (with
// optional "image_url", "language" and "file_name" form fields) or as a JSON
// AnalyzeRequest.
//
//	@Summary		Start an analysis session for a product image
//	@Tags			session
//	@Accept			multipart/form-data,json
//	@Produce		json
//	@Success		202	{object}	session.Status
//	@Failure		400	{object}	errResponse
//	@Failure		401	{object}	errResponse
//	@Failure		423	{object}	errResponse
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submission(w, r)
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	st, err := h.svc.Analyze(r.Context(), sub)
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (h *Handler) submission(w http.ResponseWriter, r *http.Request) (session.Submission, error) {
	sub := session.Submission{Credential: credential(r)}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return sub, badRequest("file too large or invalid multipart")
		}
		sub.ImageURL = r.FormValue("image_url")
		sub.Language = r.FormValue("language")
		sub.FileName = r.FormValue("file_name")

		file, header, err := r.FormFile("product_image")
		switch {
		case err == nil:
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return sub, badRequest("failed to read upload")
			}
			sub.Image = models.Image{Data: data, MIMEType: imaging.Sniff(data)}
			sub.ImageURL = ""
			if sub.FileName == "" {
				sub.FileName = header.Filename
			}
		case sub.ImageURL == "":
			return sub, badRequest("product_image or image_url is required")
		}
		return sub, nil
	}

	var req AnalyzeRequest
	if err := decodeJSON(w, r, maxUploadBytes*2, &req); err != nil {
		return sub, badRequest("invalid JSON body")
	}
	if err := req.Validate(); err != nil {
		return sub, err
	}
	sub.FileName, sub.Language = req.FileName, req.Language
	if req.Image != "" {
		img, err := imaging.DecodeDataURI(req.Image)
		if err != nil {
			return sub, err
		}
		sub.Image = img
	} else {
		sub.ImageURL = req.ImageURL
	}
	return sub, nil
}

// Session handles GET /api/session.
//
//	@Summary		Get the analysis session status
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.Status
//	@Router			/session [get]
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Session())
}

// CancelSession handles DELETE /api/session.
//
//	@Summary		Cancel the running analysis session
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	map[string]bool
//	@Router			/session [delete]
func (h *Handler) CancelSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": h.svc.CancelSession()})
}

// Generate handles POST /api/concepts/{id}/generate.
//
//	@Summary		Generate a creative from a concept
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Concept id"
//	@Param			body	body		GenerateRequest	false	"Optional preset"
//	@Success		202		{object}	GenerateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/concepts/{id}/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		badJSON(w)
		return
	}
	id, err := h.svc.Generate(r.Context(), generation.Request{
		ConceptID:  chi.URLParam(r, "id"),
		Credential: credential(r),
		Model:      req.Model,
		PresetName: req.Preset,
	})
	if err != nil {
		writeError(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusAccepted, GenerateResponse{CreativeID: id})
}

// Presets handles GET /api/presets.
//
//	@Summary		List platform presets
//	@Tags			presets
//	@Produce		json
//	@Param			platform	query		string	false	"Platform filter"
//	@Param			ratio		query		string	false	"Aspect ratio filter"
//	@Success		200			{object}	map[string]any
//	@Router			/presets [get]
func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]any{
		"presets":   presets.Filter(q.Get("platform"), q.Get("ratio")),
		"platforms": presets.Platforms(),
		"ratios":    presets.Ratios(q.Get("platform")),
	})
}

// Models handles GET /api/models.
//
//	@Summary		List analysis models and the current selection
//	@Tags			models
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Router			/models [get]
func (h *Handler) Models(w http.ResponseWriter, _ *http.Request) {
	all, cur, err := h.svc.Models()
	if err != nil {
		writeError(w, "models", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": all, "current": cur})
}

// NextModel handles POST /api/models/next.
//
//	@Summary		Advance to the next analysis model
//	@Tags			models
//	@Produce		json
//	@Success		200	{object}	gemini.Model
//	@Router			/models/next [post]
func (h *Handler) NextModel(w http.ResponseWriter, _ *http.Request) {
	m, err := h.svc.NextModel()
	if err != nil {
		writeError(w, "next model", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SelectModel handles PUT /api/models/current.
//
//	@Summary		Select an analysis model by name
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectModelRequest	true	"Model name"
//	@Success		200		{object}	gemini.Model
//	@Failure		400		{object}	errResponse
//	@Router			/models/current [put]
func (h *Handler) SelectModel(w http.ResponseWriter, r *http.Request) {
	var req SelectModelRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "select model", err)
		return
	}
	m, err := h.svc.SelectModel(req.Name)
	if err != nil {
		writeError(w, "select model", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
