package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/adcanvas/internal/canvasservice"
	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/generation"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/imaging"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/session"
	"github.com/starford/adcanvas/internal/testutil"
)

func testServer(t *testing.T) (*Server, *graph.Store) {
	t.Helper()

	_, projects := testutil.TestProjects(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := graph.New()
	ids := graph.NewIDs()
	fetcher := imaging.NewFetcher(time.Second)

	analyzer := &testutil.Analyzer{Result: models.Analysis{
		ProductType: "Candle",
		Concepts:    []models.ConceptSuggestion{{Concept: "Cozy Evening", Prompt: "candle on a wool blanket"}},
	}}
	sessions := session.New(session.DefaultConfig(), analyzer, fetcher, g,
		session.WithClock(&testutil.Clock{}), session.WithIDs(ids), session.WithLogger(logger))
	workflow := generation.New(generation.DefaultConfig(), &testutil.Generator{Result: testutil.PNG(t, 16, 16)}, fetcher, g,
		generation.WithIDs(ids), generation.WithLogger(logger))
	t.Cleanup(workflow.Close)

	svc := canvasservice.New(canvasservice.Deps{
		Graph:       g,
		IDs:         ids,
		Sessions:    sessions,
		Generations: workflow,
		Images:      fetcher,
		Models:      gemini.NewSelector(nil, nil),
		Projects:    projects,
		Catalog:     testutil.TestDB(t),
		Logger:      logger,
	})
	return New(svc, "test-key", fetcher), g
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_canvas":
		result, err = srv.getCanvas(ctx, req)
	case "add_product":
		result, err = srv.addProduct(ctx, req)
	case "add_concept":
		result, err = srv.addConcept(ctx, req)
	case "update_node":
		result, err = srv.updateNode(ctx, req)
	case "delete_node":
		result, err = srv.deleteNode(ctx, req)
	case "generate_creative":
		result, err = srv.generateCreative(ctx, req)
	case "save_project":
		result, err = srv.saveProject(ctx, req)
	case "load_project":
		result, err = srv.loadProject(ctx, req)
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "search_projects":
		result, err = srv.searchProjects(ctx, req)
	case "get_project_contract":
		result, err = srv.getProjectContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

// addProduct submits a product and waits for the session to commit it.
func addProduct(t *testing.T, srv *Server, g *graph.Store) models.Node {
	t.Helper()
	uri := imaging.EncodeDataURI(testutil.PNG(t, 8, 8))
	res := decodeResult[addProductResult](t, callTool(t, srv, "add_product", map[string]interface{}{
		"url":      uri,
		"filename": "../candle.png",
	}))
	if res.FileName != "candle.png" {
		t.Errorf("fileName = %q", res.FileName)
	}

	var product models.Node
	testutil.Eventually(t, 2*time.Second, func() bool {
		p, ok := g.FirstOfType(models.NodeProduct)
		product = p
		return ok && len(g.NodesByType(models.NodeConcept)) == 1
	})
	return product
}

func TestAddProductAndGetCanvas(t *testing.T) {
	srv, g := testServer(t)
	product := addProduct(t, srv, g)
	if product.Data.Title != "candle.png" {
		t.Errorf("title = %q", product.Data.Title)
	}

	snap := decodeResult[graph.Snapshot](t, callTool(t, srv, "get_canvas", map[string]interface{}{}))
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 {
		t.Errorf("canvas = %d nodes, %d edges", len(snap.Nodes), len(snap.Edges))
	}
}

func TestAddProductRejectsNonImage(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "add_product", map[string]interface{}{
		"url": "data:text/plain;base64,aGVsbG8=",
	})
	if !r.IsError {
		t.Error("expected error for non-image data")
	}
	r = callTool(t, srv, "add_product", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing url")
	}
}

func TestConceptEditAndGenerate(t *testing.T) {
	srv, g := testServer(t)
	product := addProduct(t, srv, g)

	concept := decodeResult[models.Node](t, callTool(t, srv, "add_concept", map[string]interface{}{
		"parent_id": product.ID,
	}))
	if concept.Data.ParentProductID != product.ID {
		t.Errorf("parent = %q", concept.Data.ParentProductID)
	}

	updated := decodeResult[models.Node](t, callTool(t, srv, "update_node", map[string]interface{}{
		"id":      concept.ID,
		"content": "candle on a frosted window sill",
		"no_text": true,
	}))
	if updated.Data.Content != "candle on a frosted window sill" || !updated.Data.NoText {
		t.Errorf("updated = %+v", updated.Data)
	}

	out := decodeResult[map[string]string](t, callTool(t, srv, "generate_creative", map[string]interface{}{
		"concept_id": concept.ID,
		"preset":     "Instagram Post",
	}))
	creativeID := out["creativeId"]
	testutil.Eventually(t, 2*time.Second, func() bool {
		n, ok := g.Node(creativeID)
		return ok && n.Data.Status == models.StatusCompleted
	})
}

func TestUpdateNodeRequiresField(t *testing.T) {
	srv, g := testServer(t)
	product := addProduct(t, srv, g)
	r := callTool(t, srv, "update_node", map[string]interface{}{"id": product.ID})
	if !r.IsError {
		t.Error("expected error without fields")
	}
	r = callTool(t, srv, "update_node", map[string]interface{}{"id": product.ID, "no_text": true})
	if !r.IsError {
		t.Error("expected error toggling no_text on a product")
	}
}

func TestDeleteNode(t *testing.T) {
	srv, g := testServer(t)
	product := addProduct(t, srv, g)
	concept := g.NodesByType(models.NodeConcept)[0]

	if r := callTool(t, srv, "delete_node", map[string]interface{}{"id": product.ID}); !r.IsError {
		t.Error("expected error deleting a product with concepts")
	}

	r := callTool(t, srv, "delete_node", map[string]interface{}{"id": concept.ID})
	if resultText(r) != "deleted: "+concept.ID {
		t.Errorf("delete result = %q", resultText(r))
	}
	if _, ok := g.Node(concept.ID); ok {
		t.Error("concept still present")
	}
	if r := callTool(t, srv, "delete_node", map[string]interface{}{"id": concept.ID}); !r.IsError {
		t.Error("expected error deleting twice")
	}
}

func TestProjectTools(t *testing.T) {
	srv, g := testServer(t)

	if r := callTool(t, srv, "list_projects", map[string]interface{}{}); resultText(r) != "no saved projects" {
		t.Errorf("empty list = %q", resultText(r))
	}

	addProduct(t, srv, g)
	r := callTool(t, srv, "save_project", map[string]interface{}{"name": "Winter Candles"})
	if resultText(r) != "saved: Winter-Candles.banana" {
		t.Fatalf("save = %q", resultText(r))
	}

	r = callTool(t, srv, "list_projects", map[string]interface{}{})
	if !strings.HasPrefix(resultText(r), "Winter-Candles.banana\tWinter Candles\t2 nodes") {
		t.Errorf("list = %q", resultText(r))
	}

	hits := decodeResult[[]map[string]any](t, callTool(t, srv, "search_projects", map[string]interface{}{"query": "blanket"}))
	if len(hits) != 1 {
		t.Errorf("hits = %v", hits)
	}

	if err := g.Replace([]models.Node{}, []models.Edge{}); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "load_project", map[string]interface{}{"name": "Winter-Candles.banana"})
	if resultText(r) != `loaded "Winter Candles": 2 nodes, 1 edges` {
		t.Errorf("load = %q", resultText(r))
	}
	if len(g.Snapshot().Nodes) != 2 {
		t.Error("canvas not restored")
	}

	if r := callTool(t, srv, "load_project", map[string]interface{}{"name": "missing.banana"}); !r.IsError {
		t.Error("expected error for missing project")
	}
}

func TestGetProjectContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_project_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "AdCanvas Project Format") || !strings.Contains(text, "parentProductImageUrl") {
		t.Error("contract content missing")
	}

	contents, err := srv.readProjectFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource = %+v", contents[0])
	}
}

func TestFilenameHelpers(t *testing.T) {
	if got := filenameFromURL("https://cdn.example.com/shop/candle.jpg?w=200", ".jpg"); got != "candle.jpg" {
		t.Errorf("from URL = %q", got)
	}
	if got := filenameFromURL("data:image/png;base64,AAAA", ".png"); !strings.HasPrefix(got, "product-") || !strings.HasSuffix(got, ".png") {
		t.Errorf("generated = %q", got)
	}
	if got := sanitizeFilename(`..\..\evil name.png`); got != "evil_name.png" {
		t.Errorf("sanitized = %q", got)
	}
}
