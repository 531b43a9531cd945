package imagerender

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"

	"github.com/local/bookletizer/internal/imposition"
)

func stripe() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{B: 255, A: 255})
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r > 0xf000 && g < 0x1000 && b < 0x1000
}

func TestOrient(t *testing.T) {
	cw := Orient(stripe(), imposition.RotateCW90)
	if cw.Bounds().Dx() != 1 || cw.Bounds().Dy() != 2 {
		t.Fatalf("cw bounds = %v", cw.Bounds())
	}
	if !isRed(cw.At(0, 0)) {
		t.Errorf("clockwise turn should keep the left pixel on top, got %v", cw.At(0, 0))
	}

	ccw := Orient(stripe(), imposition.RotateCCW90)
	if !isRed(ccw.At(0, 1)) {
		t.Errorf("counter-clockwise turn should put the left pixel at the bottom, got %v", ccw.At(0, 1))
	}
}

func TestRenderDPI(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
		want   float64
	}{
		{"a4 portrait is width bound", image.Rect(0, 0, 595, 842), 72 * 2000.0 / 842},
		{"landscape is width bound", image.Rect(0, 0, 842, 595), 72 * 2000.0 / 842},
		{"square", image.Rect(0, 0, 500, 500), 72 * 4},
		{"empty page", image.Rectangle{}, 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderDPI(tt.bounds, DefaultOptions); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RenderDPI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	data, err := EncodeJPEG(img, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG(): %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Errorf("decoded %dx%d", cfg.Width, cfg.Height)
	}
}
