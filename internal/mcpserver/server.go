// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes canvas tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/adcanvas/internal/canvasservice"
	"github.com/starford/adcanvas/internal/generation"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/models"
)

const contractURI = "adcanvas://project-format"

// Server wraps the MCP server with canvas tools.
type Server struct {
	mcp        *server.MCPServer
	svc        *canvasservice.Service
	credential string
	fetcher    *imaging.Fetcher
}

// New creates a new MCP server with all canvas tools registered. credential
// is the model API key used by tools that call the model.
func New(svc *canvasservice.Service, credential string, fetcher *imaging.Fetcher) *Server {
	s := &Server{svc: svc, credential: credential, fetcher: fetcher}

	s.mcp = server.NewMCPServer(
		"AdCanvas",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_canvas",
		mcp.WithDescription("Return every node and edge on the canvas as JSON."),
	), s.getCanvas)

	s.mcp.AddTool(mcp.NewTool("add_product",
		mcp.WithDescription("Add a product image to the canvas and start the concept analysis. "+
			"Accepts an http(s) URL or a base64 data URI. The analysis runs in the background; "+
			"poll get_canvas to see the product and its concepts appear."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data:image/...;base64 URI")),
		mcp.WithString("filename", mcp.Description("Display name for the product (optional)")),
		mcp.WithString("language", mcp.Description("Language for the generated concepts (optional)")),
	), s.addProduct)

	s.mcp.AddTool(mcp.NewTool("add_concept",
		mcp.WithDescription("Add an empty concept below a product or a creative."),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("ID of the product or creative node")),
	), s.addConcept)

	s.mcp.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Edit a node's title or content, or toggle the no-text flag of a concept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithString("title", mcp.Description("New title (optional)")),
		mcp.WithString("content", mcp.Description("New content; for concepts this is the generation prompt (optional)")),
		mcp.WithBoolean("no_text", mcp.Description("Concepts only: forbid text overlays in the creative (optional)")),
	), s.updateNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Remove a node and every edge touching it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node ID")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("generate_creative",
		mcp.WithDescription("Generate a creative image from a concept. Returns the new creative's ID; "+
			"the image arrives in the background."),
		mcp.WithString("concept_id", mcp.Required(), mcp.Description("Concept node ID")),
		mcp.WithString("preset", mcp.Description("Platform preset name, e.g. \"Instagram Post\" (optional)")),
	), s.generateCreative)

	s.mcp.AddTool(mcp.NewTool("save_project",
		mcp.WithDescription("Save the canvas to the project directory."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
	), s.saveProject)

	s.mcp.AddTool(mcp.NewTool("load_project",
		mcp.WithDescription("Replace the canvas with a saved project."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project file name, e.g. Spring-Launch.banana")),
	), s.loadProject)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List saved projects, newest first."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("search_projects",
		mcp.WithDescription("Full-text search through saved project names and node text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchProjects)

	s.mcp.AddTool(mcp.NewTool("get_project_contract",
		mcp.WithDescription("Returns the saved project format. Read it before interpreting "+
			"get_canvas output or exported files."),
	), s.getProjectContract)

	// Resource: project format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Project Format Contract",
			mcp.WithResourceDescription("JSON document format of saved canvas projects."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readProjectFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Snapshot())
}

func (s *Server) addConcept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID, err := req.RequireString("parent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.AddConcept(parentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) updateNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var u canvasservice.NodeUpdate
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		u.Title = models.Ptr(v)
	}
	if v, ok := args["content"].(string); ok {
		u.Content = models.Ptr(v)
	}
	if v, ok := args["no_text"].(bool); ok {
		u.NoText = models.Ptr(v)
	}
	if u.Title == nil && u.Content == nil && u.NoText == nil {
		return mcp.NewToolResultError("nothing to update: pass title, content or no_text"), nil
	}

	n, err := s.svc.UpdateNode(id, u)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNode(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) generateCreative(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conceptID, err := req.RequireString("concept_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	creativeID, err := s.svc.Generate(ctx, generation.Request{
		ConceptID:  conceptID,
		Credential: s.credential,
		PresetName: req.GetString("preset", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"creativeId": creativeID})
}

func (s *Server) saveProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	saved, err := s.svc.SaveProject(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", saved.Path)), nil
}

func (s *Server) loadProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.LoadProject(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("loaded %q: %d nodes, %d edges", doc.ProjectName, len(doc.Nodes), len(doc.Edges))), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, _, err := s.svc.ListProjects(ctx, 100, 0, "updated")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no saved projects"), nil
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d nodes", r.Path, r.Name, r.Nodes))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchProjects(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getProjectContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectFormatContract), nil
}

func (s *Server) readProjectFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ProjectFormatContract,
		},
	}, nil
}
