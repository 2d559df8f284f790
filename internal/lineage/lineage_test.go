package lineage

import (
	"reflect"
	"testing"

	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/models"
)

func testStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.New()
	nodes := []models.Node{
		{ID: "p1", Type: models.NodeProduct, Data: models.NodeData{ImageURL: "img-p1"}},
		{ID: "p2", Type: models.NodeProduct, Data: models.NodeData{ImageURL: "img-p2"}},
		{ID: "c1", Type: models.NodeConcept, Data: models.NodeData{ParentProductID: "p2", ParentProductImageURL: "img-p2"}},
		{ID: "cr1", Type: models.NodeCreative, Data: models.NodeData{ParentConceptID: "c1", ImageURL: "img-cr1"}},
	}
	if err := s.AddBatch(nodes, nil); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestResolve_CachedProductImage(t *testing.T) {
	s := testStore(t)
	c, _ := s.Node("c1")
	got := Resolve(c, s)
	if got.ProductImage != "img-p2" {
		t.Errorf("product = %q, want img-p2", got.ProductImage)
	}
	if got.GeneratedImage != "" {
		t.Errorf("generated = %q, want empty", got.GeneratedImage)
	}
}

func TestResolve_FallsBackToFirstProduct(t *testing.T) {
	s := testStore(t)
	legacy := models.Node{ID: "old", Type: models.NodeConcept, Data: models.NodeData{ParentProductID: "gone"}}
	if got := Resolve(legacy, s); got.ProductImage != "img-p1" {
		t.Errorf("product = %q, want img-p1", got.ProductImage)
	}
}

func TestResolve_GeneratedHasNoFallback(t *testing.T) {
	s := testStore(t)
	c := models.Node{ID: "c2", Type: models.NodeConcept, Data: models.NodeData{
		ParentGeneratedID:       "cr1",
		ParentProductImageURL:   "img-p2",
		ParentGeneratedImageURL: "img-cr1",
	}}
	got := Resolve(c, s)
	if got.GeneratedImage != "img-cr1" || got.ProductImage != "img-p2" {
		t.Errorf("got %+v", got)
	}
}

func TestResolve_IsPure(t *testing.T) {
	s := testStore(t)
	before := s.Snapshot()
	c, _ := s.Node("c1")
	a := Resolve(c, s)
	b := Resolve(c, s)
	if a != b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
	after := s.Snapshot()
	if len(before.Nodes) != len(after.Nodes) || len(before.Edges) != len(after.Edges) {
		t.Error("store mutated")
	}
	for i := range before.Nodes {
		if !reflect.DeepEqual(before.Nodes[i], after.Nodes[i]) {
			t.Errorf("node %s changed", before.Nodes[i].ID)
		}
	}
}

func TestResolve_StaleCacheKept(t *testing.T) {
	s := testStore(t)
	_, _ = s.UpdateNodeData("p2", models.NodePatch{ImageURL: models.Ptr("img-p2-edited")})
	c, _ := s.Node("c1")
	if got := Resolve(c, s); got.ProductImage != "img-p2" {
		t.Errorf("product = %q, want the cached img-p2", got.ProductImage)
	}
}

func TestProductImageForCreative(t *testing.T) {
	s := testStore(t)
	cr, _ := s.Node("cr1")
	if got := ProductImageForCreative(cr, s); got != "img-p2" {
		t.Errorf("got %q, want img-p2", got)
	}
	orphan := models.Node{ID: "x", Type: models.NodeCreative}
	if got := ProductImageForCreative(orphan, s); got != "img-p1" {
		t.Errorf("got %q, want img-p1", got)
	}
}
