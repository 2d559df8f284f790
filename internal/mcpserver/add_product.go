package mcpserver

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/session"
)

var (
	mimeToExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type addProductResult struct {
	SessionID string        `json:"sessionId"`
	State     session.State `json:"state"`
	FileName  string        `json:"fileName"`
}

func (s *Server) addProduct(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	img, err := s.fetcher.Load(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := imaging.Validate(img); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename := req.GetString("filename", "")
	if filename == "" {
		filename = filenameFromURL(rawURL, mimeToExt[imaging.Sniff(img.Data)])
	}
	filename = sanitizeFilename(filename)

	st, err := s.svc.Analyze(ctx, session.Submission{
		Image:      img,
		FileName:   filename,
		Language:   req.GetString("language", ""),
		Credential: s.credential,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(addProductResult{SessionID: st.ID, State: st.State, FileName: filename})
}

// filenameFromURL takes the last path segment of an http URL, or makes up a
// name when there is none.
func filenameFromURL(rawURL, ext string) string {
	if !imaging.IsDataURI(rawURL) {
		if u, err := url.Parse(rawURL); err == nil {
			base := path.Base(u.Path)
			if base != "" && base != "." && base != "/" && path.Ext(base) != "" {
				return base
			}
		}
	}
	if ext == "" {
		ext = ".png"
	}
	return "product-" + uuid.NewString()[:8] + ext
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = safeFilenameRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "product-" + uuid.NewString()[:8] + ".png"
	}
	return name
}
