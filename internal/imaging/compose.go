package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// Layout arranges merged images.
type Layout string

const (
	Horizontal Layout = "horizontal"
	Vertical   Layout = "vertical"
	Grid       Layout = "grid"
)

// MergeOptions controls Merge.
type MergeOptions struct {
	Layout    Layout
	Spacing   int
	MaxWidth  int
	MaxHeight int
}

// DefaultMergeOptions matches the canvas merge dialog.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{Layout: Horizontal, Spacing: 20, MaxWidth: 2400, MaxHeight: 1600}
}

// Decode decodes img into a raster image.
func Decode(img models.Image) (image.Image, error) {
	m, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", apperr.ErrInvalidInput, err)
	}
	return m, nil
}

// Merge composites two or more images on a white background and returns a PNG.
// The result is scaled down to fit MaxWidth x MaxHeight.
func Merge(images []models.Image, opts MergeOptions) (models.Image, error) {
	if len(images) < 2 {
		return models.Image{}, fmt.Errorf("%w: merge needs at least 2 images, got %d", apperr.ErrInvalidInput, len(images))
	}
	if opts.Layout == "" {
		opts.Layout = Horizontal
	}
	if opts.Spacing < 0 {
		opts.Spacing = 0
	}

	decoded := make([]image.Image, 0, len(images))
	for i, img := range images {
		m, err := Decode(img)
		if err != nil {
			return models.Image{}, fmt.Errorf("image %d: %w", i, err)
		}
		decoded = append(decoded, m)
	}

	rects, width, height, err := layout(decoded, opts)
	if err != nil {
		return models.Image{}, err
	}

	scale := 1.0
	if opts.MaxWidth > 0 && width > opts.MaxWidth {
		scale = math.Min(scale, float64(opts.MaxWidth)/float64(width))
	}
	if opts.MaxHeight > 0 && height > opts.MaxHeight {
		scale = math.Min(scale, float64(opts.MaxHeight)/float64(height))
	}
	outW := max(1, int(math.Round(float64(width)*scale)))
	outH := max(1, int(math.Round(float64(height)*scale)))

	dc := gg.NewContext(outW, outH)
	dc.SetColor(color.White)
	dc.Clear()

	for i, m := range decoded {
		r := rects[i]
		dst := image.NewRGBA(image.Rect(0, 0,
			max(1, int(math.Round(float64(r.Dx())*scale))),
			max(1, int(math.Round(float64(r.Dy())*scale)))))
		draw.CatmullRom.Scale(dst, dst.Bounds(), m, m.Bounds(), draw.Over, nil)
		dc.DrawImage(dst, int(math.Round(float64(r.Min.X)*scale)), int(math.Round(float64(r.Min.Y)*scale)))
	}

	var out bytes.Buffer
	if err := dc.EncodePNG(&out); err != nil {
		return models.Image{}, fmt.Errorf("encode png: %w", err)
	}
	return models.Image{Data: out.Bytes(), MIMEType: "image/png"}, nil
}

// layout computes where each image goes at native size.
func layout(imgs []image.Image, opts MergeOptions) ([]image.Rectangle, int, int, error) {
	rects := make([]image.Rectangle, len(imgs))
	switch opts.Layout {
	case Horizontal:
		x, h := 0, 0
		for i, m := range imgs {
			b := m.Bounds()
			rects[i] = image.Rect(x, 0, x+b.Dx(), b.Dy())
			x += b.Dx() + opts.Spacing
			h = max(h, b.Dy())
		}
		// Center each image vertically.
		for i := range rects {
			off := (h - rects[i].Dy()) / 2
			rects[i] = rects[i].Add(image.Pt(0, off))
		}
		return rects, x - opts.Spacing, h, nil

	case Vertical:
		y, w := 0, 0
		for i, m := range imgs {
			b := m.Bounds()
			rects[i] = image.Rect(0, y, b.Dx(), y+b.Dy())
			y += b.Dy() + opts.Spacing
			w = max(w, b.Dx())
		}
		for i := range rects {
			off := (w - rects[i].Dx()) / 2
			rects[i] = rects[i].Add(image.Pt(off, 0))
		}
		return rects, w, y - opts.Spacing, nil

	case Grid:
		cols := int(math.Ceil(math.Sqrt(float64(len(imgs)))))
		rows := int(math.Ceil(float64(len(imgs)) / float64(cols)))
		cellW, cellH := 0, 0
		for _, m := range imgs {
			cellW = max(cellW, m.Bounds().Dx())
			cellH = max(cellH, m.Bounds().Dy())
		}
		for i, m := range imgs {
			b := m.Bounds()
			col, row := i%cols, i/cols
			x := col*(cellW+opts.Spacing) + (cellW-b.Dx())/2
			y := row*(cellH+opts.Spacing) + (cellH-b.Dy())/2
			rects[i] = image.Rect(x, y, x+b.Dx(), y+b.Dy())
		}
		return rects, cols*cellW + (cols-1)*opts.Spacing, rows*cellH + (rows-1)*opts.Spacing, nil
	}
	return nil, 0, 0, fmt.Errorf("%w: unknown layout %q", apperr.ErrInvalidInput, opts.Layout)
}

// ParseRatio parses an aspect ratio such as "16:9".
func ParseRatio(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: aspect ratio %q", apperr.ErrInvalidInput, s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: aspect ratio %q", apperr.ErrInvalidInput, s)
	}
	return w, h, nil
}

// CropToAspect center-crops img to ratio and returns a PNG. Images that
// already match within one pixel are returned unchanged.
func CropToAspect(img models.Image, ratio string) (models.Image, error) {
	rw, rh, err := ParseRatio(ratio)
	if err != nil {
		return models.Image{}, err
	}
	src, err := Decode(img)
	if err != nil {
		return models.Image{}, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	cropW, cropH := w, w*rh/rw
	if cropH > h {
		cropW, cropH = h*rw/rh, h
	}
	if abs(cropW-w) <= 1 && abs(cropH-h) <= 1 {
		return img, nil
	}

	x0 := b.Min.X + (w-cropW)/2
	y0 := b.Min.Y + (h-cropH)/2
	dst := image.NewRGBA(image.Rect(0, 0, cropW, cropH))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(x0, y0), draw.Src)

	dc := gg.NewContextForRGBA(dst)
	var out bytes.Buffer
	if err := dc.EncodePNG(&out); err != nil {
		return models.Image{}, fmt.Errorf("encode png: %w", err)
	}
	return models.Image{Data: out.Bytes(), MIMEType: "image/png"}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
