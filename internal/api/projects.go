package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/adcanvas/internal/project"
)

const maxProjectBytes = 200 << 20

// projectName extracts the {name} URL parameter, tolerating encoded slashes.
func projectName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List saved projects
//	@Tags			projects
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, name)
//	@Success		200		{object}	ProjectListResponse
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListProjects(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: items, Total: total})
}

// SearchProjects handles GET /api/projects/search.
//
//	@Summary		Full-text search across saved projects
//	@Tags			projects
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/projects/search [get]
func (h *Handler) SearchProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.SearchProjects(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search projects", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// SaveProject handles POST /api/projects.
//
//	@Summary		Save the canvas as a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveProjectRequest	true	"Project name"
//	@Success		201		{object}	canvasservice.SavedProject
//	@Success		200		{object}	canvasservice.SavedProject
//	@Failure		400		{object}	errResponse
//	@Router			/projects [post]
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	var req SaveProjectRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		badJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "save project", err)
		return
	}
	saved, err := h.svc.SaveProject(r.Context(), req.Name)
	if err != nil {
		writeError(w, "save project", err)
		return
	}
	status := http.StatusOK
	if saved.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// LoadProject handles POST /api/projects/{name}/load.
//
//	@Summary		Replace the canvas with a saved project
//	@Tags			projects
//	@Produce		json
//	@Param			name	path		string	true	"Project name or file name"
//	@Success		200		{object}	project.Document
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/projects/{name}/load [post]
func (h *Handler) LoadProject(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.LoadProject(r.Context(), projectName(r))
	if err != nil {
		writeError(w, "load project", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteProject handles DELETE /api/projects/{name}.
//
//	@Summary		Delete a saved project
//	@Tags			projects
//	@Param			name	path	string	true	"Project name or file name"
//	@Success		204		"Project deleted"
//	@Failure		404		{object}	errResponse
//	@Router			/projects/{name} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), projectName(r)); err != nil {
		writeError(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportProject handles GET /api/projects/export.
//
//	@Summary		Download the canvas as a project file
//	@Tags			projects
//	@Produce		json
//	@Param			name	query	string	false	"Project name"
//	@Success		200		"Project file"
//	@Failure		400		{object}	errResponse
//	@Router			/projects/export [get]
func (h *Handler) ExportProject(w http.ResponseWriter, r *http.Request) {
	data, fileName, err := h.svc.Export(r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, "export project", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(fileName)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportProject handles POST /api/projects/import. The body is the project
// JSON itself or a multipart form with a "file" field.
//
//	@Summary		Replace the canvas with an uploaded project file
//	@Tags			projects
//	@Accept			json,multipart/form-data
//	@Produce		json
//	@Success		200	{object}	project.Document
//	@Failure		400	{object}	errResponse
//	@Router			/projects/import [post]
func (h *Handler) ImportProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProjectBytes)

	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxProjectBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()
		if !project.IsProjectFile(header.Filename) {
			writeJSON(w, http.StatusBadRequest, errorBody("expected a .banana or .json file"))
			return
		}
		data, err = io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
			return
		}
	} else {
		var err error
		data, err = io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
			return
		}
	}

	doc, err := h.svc.Import(data)
	if err != nil {
		writeError(w, "import project", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
