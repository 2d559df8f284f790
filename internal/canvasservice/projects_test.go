package canvasservice_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/canvasservice"
	"github.com/starford/adcanvas/internal/models"
	"github.com/starford/adcanvas/internal/testutil"
)

func TestSaveProject_RejectsEmptyCanvas(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.SaveProject(context.Background(), "empty"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if got := e.events.list(); len(got) != 0 {
		t.Errorf("events = %v", got)
	}
}

func TestSaveListLoadDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.product(t, "product-1", 400, testutil.PNG(t, 8, 8))
	c, _ := e.svc.AddConcept("product-1")
	_, _ = e.svc.UpdateNode(c.ID, canvasservice.NodeUpdate{Content: models.Ptr("marble countertop")})

	saved, err := e.svc.SaveProject(ctx, "Spring Launch")
	if err != nil {
		t.Fatal(err)
	}
	if saved.Path != "Spring-Launch.banana" || !saved.Created || saved.Nodes != 2 || saved.Edges != 1 {
		t.Errorf("saved = %+v", saved)
	}
	again, err := e.svc.SaveProject(ctx, "Spring Launch")
	if err != nil {
		t.Fatal(err)
	}
	if again.Created {
		t.Error("second save should update")
	}

	rows, total, err := e.svc.ListProjects(ctx, 10, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || rows[0].Name != "Spring Launch" || rows[0].Concepts != 1 {
		t.Errorf("rows = %+v total = %d", rows, total)
	}

	hits, err := e.svc.SearchProjects(ctx, "marble", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Path != saved.Path {
		t.Errorf("hits = %+v", hits)
	}

	// Mutate the canvas, then restore it from disk.
	if err := e.svc.DeleteNode(c.ID); err != nil {
		t.Fatal(err)
	}
	doc, err := e.svc.LoadProject(ctx, "Spring Launch")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ProjectName != "Spring Launch" || e.graph.Len() != 2 || len(e.graph.Edges()) != 1 {
		t.Errorf("loaded %q with %d nodes", doc.ProjectName, e.graph.Len())
	}

	if err := e.svc.DeleteProject(ctx, saved.Path); err != nil {
		t.Fatal(err)
	}
	if _, total, _ := e.svc.ListProjects(ctx, 10, 0, ""); total != 0 {
		t.Errorf("total after delete = %d", total)
	}
	if _, err := e.svc.LoadProject(ctx, saved.Path); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("load deleted: err = %v", err)
	}

	want := []string{"created:Spring-Launch.banana", "updated:Spring-Launch.banana", "deleted:Spring-Launch.banana"}
	if got := e.events.list(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestImport_MalformedLeavesCanvas(t *testing.T) {
	e := newEnv(t)
	e.product(t, "product-1", 400, testutil.PNG(t, 8, 8))

	_, err := e.svc.Import([]byte(`{"nodes": [{"id":"a","type":"product"}]}`))
	if !errors.Is(err, apperr.ErrLoadFormat) {
		t.Fatalf("err = %v, want ErrLoadFormat", err)
	}
	if _, ok := e.graph.Node("product-1"); !ok || e.graph.Len() != 1 {
		t.Error("canvas was modified by a failed import")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.product(t, "product-1", 400, testutil.PNG(t, 8, 8))
	_, _ = e.svc.AddConcept("product-1")

	data, name, err := e.svc.Export("")
	if err != nil {
		t.Fatal(err)
	}
	if name != "untitled-project.banana" {
		t.Errorf("file name = %q", name)
	}

	other := newEnv(t)
	doc, err := other.svc.Import(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Nodes) != 2 || other.graph.Len() != 2 {
		t.Errorf("imported %d nodes", other.graph.Len())
	}
	if n, _ := other.graph.FirstOfType(models.NodeProduct); n.Data.ImageURL == "" {
		t.Error("product image lost")
	}
}
