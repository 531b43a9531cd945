package imagerender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/bookletizer/internal/imposition"
	"github.com/local/bookletizer/internal/metrics"
)

// Options bounds the raster size of a rendered page.
type Options struct {
	TargetWidth int
	MaxHeight   int
}

// DefaultOptions renders pages 2000px wide, at most 2000px tall.
var DefaultOptions = Options{TargetWidth: 2000, MaxHeight: 2000}

// Renderer rasterizes pages of one open PDF. MuPDF documents are not safe for
// concurrent use, so calls are serialized.
type Renderer struct {
	mu   sync.Mutex
	doc  *fitz.Document
	opts Options
	path string
}

// Open loads the PDF at path for rendering.
func Open(path string, opts Options) (*Renderer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	if opts.TargetWidth <= 0 {
		opts.TargetWidth = DefaultOptions.TargetWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultOptions.MaxHeight
	}
	return &Renderer{doc: doc, opts: opts, path: path}, nil
}

// NumPage returns the page count seen by MuPDF.
func (r *Renderer) NumPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.NumPage()
}

// Render rasterizes the 0-based page and turns it a quarter in the given direction.
func (r *Renderer) Render(ctx context.Context, pageIndex int, rot imposition.Rotation) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	r.mu.Lock()
	bounds, err := r.doc.Bound(pageIndex)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to read bounds of page %d: %w", pageIndex+1, err)
	}
	dpi := RenderDPI(bounds, r.opts)
	img, err := r.doc.ImageDPI(pageIndex, dpi)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageIndex+1, err)
	}

	// guard against rounding in MuPDF's scaling
	var out image.Image = img
	if b := img.Bounds(); b.Dx() > r.opts.TargetWidth || b.Dy() > r.opts.MaxHeight {
		out = imaging.Fit(img, r.opts.TargetWidth, r.opts.MaxHeight, imaging.Lanczos)
	}
	out = Orient(out, rot)

	metrics.ObserveRender(time.Since(start))
	log.Debug().
		Int("page", pageIndex+1).
		Float64("dpi", dpi).
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Str("rotation", rot.String()).
		Msg("rendered page")
	return out, nil
}

// Close releases the MuPDF document.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Close()
}

// RenderDPI picks the resolution that makes the page TargetWidth pixels wide
// without exceeding MaxHeight. bounds are in points (72 per inch).
func RenderDPI(bounds image.Rectangle, opts Options) float64 {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return 72
	}
	scale := math.Min(float64(opts.TargetWidth)/w, float64(opts.MaxHeight)/h)
	return 72 * scale
}

// Orient applies a quarter turn. imaging rotates counter-clockwise.
func Orient(img image.Image, rot imposition.Rotation) *image.NRGBA {
	if rot == imposition.RotateCW90 {
		return imaging.Rotate270(img)
	}
	return imaging.Rotate90(img)
}

// EncodeJPEG encodes img for embedding into a sheet.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
