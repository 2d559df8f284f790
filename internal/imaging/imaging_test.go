package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

func pngImage(t *testing.T, w, h int) models.Image {
	t.Helper()
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return models.Image{Data: buf.Bytes(), MIMEType: "image/png"}
}

func size(t *testing.T, img models.Image) (int, int) {
	t.Helper()
	m, err := Decode(img)
	if err != nil {
		t.Fatal(err)
	}
	return m.Bounds().Dx(), m.Bounds().Dy()
}

func TestDataURIRoundTrip(t *testing.T) {
	img := pngImage(t, 4, 4)
	uri := EncodeDataURI(img)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("uri prefix = %q", uri[:30])
	}
	got, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if got.MIMEType != "image/png" || !bytes.Equal(got.Data, img.Data) {
		t.Errorf("round trip mismatch: %s, %d bytes", got.MIMEType, len(got.Data))
	}
}

func TestDecodeDataURI_Invalid(t *testing.T) {
	for _, uri := range []string{"data:image/png;base64", "data:text/plain,hello", "https://x"} {
		if _, err := DecodeDataURI(uri); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%q: err = %v, want ErrInvalidInput", uri, err)
		}
	}
}

func TestValidate_MismatchedMIME(t *testing.T) {
	img := pngImage(t, 2, 2)
	img.MIMEType = "image/jpeg"
	if err := Validate(img); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if err := Validate(models.Image{Data: []byte("plain text")}); err == nil {
		t.Fatal("text content should fail")
	}
}

func TestMerge_Horizontal(t *testing.T) {
	out, err := Merge([]models.Image{pngImage(t, 100, 50), pngImage(t, 60, 80)}, MergeOptions{
		Layout: Horizontal, Spacing: 20, MaxWidth: 2400, MaxHeight: 1600,
	})
	if err != nil {
		t.Fatal(err)
	}
	w, h := size(t, out)
	if w != 180 || h != 80 {
		t.Errorf("size = %dx%d, want 180x80", w, h)
	}
}

func TestMerge_VerticalScaledDown(t *testing.T) {
	out, err := Merge([]models.Image{pngImage(t, 100, 100), pngImage(t, 100, 100)}, MergeOptions{
		Layout: Vertical, MaxWidth: 1000, MaxHeight: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	w, h := size(t, out)
	if w != 50 || h != 100 {
		t.Errorf("size = %dx%d, want 50x100", w, h)
	}
}

func TestMerge_Grid(t *testing.T) {
	imgs := []models.Image{pngImage(t, 10, 10), pngImage(t, 10, 10), pngImage(t, 10, 10)}
	out, err := Merge(imgs, MergeOptions{Layout: Grid})
	if err != nil {
		t.Fatal(err)
	}
	w, h := size(t, out)
	if w != 20 || h != 20 {
		t.Errorf("size = %dx%d, want 20x20", w, h)
	}
}

func TestMerge_NeedsTwo(t *testing.T) {
	_, err := Merge([]models.Image{pngImage(t, 1, 1)}, DefaultMergeOptions())
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestCropToAspect(t *testing.T) {
	out, err := CropToAspect(pngImage(t, 160, 90), "1:1")
	if err != nil {
		t.Fatal(err)
	}
	w, h := size(t, out)
	if w != 90 || h != 90 {
		t.Errorf("size = %dx%d, want 90x90", w, h)
	}

	same := pngImage(t, 100, 100)
	out, err = CropToAspect(same, "1:1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Data, same.Data) {
		t.Error("matching image should be returned unchanged")
	}
}

func TestParseRatio(t *testing.T) {
	if w, h, err := ParseRatio("16:9"); err != nil || w != 16 || h != 9 {
		t.Errorf("got %d:%d, %v", w, h, err)
	}
	for _, bad := range []string{"", "16", "0:1", "a:b"} {
		if _, _, err := ParseRatio(bad); err == nil {
			t.Errorf("%q should fail", bad)
		}
	}
}

func TestFetch(t *testing.T) {
	img := pngImage(t, 3, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img.Data)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, WithLoopback())
	got, err := f.Load(context.Background(), srv.URL+"/p.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MIMEType != "image/png" || len(got.Data) != len(img.Data) {
		t.Errorf("got %s, %d bytes", got.MIMEType, len(got.Data))
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, apperr.ErrUpstreamFailure) {
		t.Errorf("missing: err = %v, want ErrUpstreamFailure", err)
	}
}

func TestFetch_BlocksLoopbackByDefault(t *testing.T) {
	f := NewFetcher(time.Second)
	for _, u := range []string{"http://127.0.0.1/x.png", "http://169.254.169.254/latest", "ftp://example.com/a.png"} {
		if _, err := f.Fetch(context.Background(), u); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", u, err)
		}
	}
}
