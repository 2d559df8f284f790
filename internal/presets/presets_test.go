package presets

import (
	"slices"
	"testing"
)

func TestAllLoaded(t *testing.T) {
	all := All()
	if len(all) != 23 {
		t.Fatalf("presets = %d, want 23", len(all))
	}
	for _, p := range all {
		if p.Name == "" || p.Ratio == "" || p.Width <= 0 || p.Height <= 0 {
			t.Errorf("incomplete preset: %+v", p)
		}
	}
}

func TestFilter(t *testing.T) {
	got := Filter("instagram", "9:16")
	if len(got) != 2 {
		t.Fatalf("instagram 9:16 = %d, want 2", len(got))
	}
	if len(Filter("", "")) != len(All()) {
		t.Error("empty filter should return all")
	}
	if len(Filter("myspace", "")) != 0 {
		t.Error("unknown platform should return none")
	}
}

func TestByName(t *testing.T) {
	p, ok := ByName("Ultra Wide (21:9)")
	if !ok {
		t.Fatal("Ultra Wide not found")
	}
	if p.Ratio != "21:9" || p.Size() != "2520x1080" {
		t.Errorf("got %+v", p)
	}
	if _, ok := ByName("nope"); ok {
		t.Error("unexpected hit")
	}
}

func TestPlatformsAndRatios(t *testing.T) {
	want := []string{"instagram", "facebook", "google", "linkedin", "others"}
	if got := Platforms(); !slices.Equal(got, want) {
		t.Errorf("platforms = %v", got)
	}
	if got := Ratios("linkedin"); !slices.Equal(got, []string{"1:1", "16:9"}) {
		t.Errorf("linkedin ratios = %v", got)
	}
}
