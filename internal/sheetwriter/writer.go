// Package sheetwriter writes imposed booklets as A4 portrait PDFs with two
// landscape page images per face.
package sheetwriter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/bookletizer/internal/assembler"
	"github.com/local/bookletizer/internal/imagerender"
)

// DefaultMargin is 3mm in points.
const DefaultMargin = 3 * 72 / 25.4

// Metadata is copied into every booklet's document info.
type Metadata struct {
	Author   string
	Subject  string
	Keywords string
	Creator  string
}

// Options configure a PDFWriter.
type Options struct {
	Dir         string
	Stem        string
	Margin      float64
	JPEGQuality int
	Validate    bool
	Meta        Metadata
}

// PDFWriter creates one file per booklet named <stem>_<NN>.pdf in Dir.
type PDFWriter struct {
	opts Options
}

func New(opts Options) (*PDFWriter, error) {
	if opts.Stem == "" {
		return nil, errors.New("sheetwriter: empty file stem")
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 85
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &PDFWriter{opts: opts}, nil
}

// PathFor returns the output path of the booklet with the given ordinal.
func (w *PDFWriter) PathFor(ordinal int) string {
	return filepath.Join(w.opts.Dir, fmt.Sprintf("%s_%02d.pdf", w.opts.Stem, ordinal))
}

// Begin starts a booklet. Booklets are independent and may be built concurrently.
func (w *PDFWriter) Begin(info assembler.BookletInfo) (assembler.Booklet, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(fmt.Sprintf("booklet #%d", info.Ordinal), true)
	pdf.SetCreator(w.opts.Meta.Creator, true)
	if m := w.opts.Meta; m.Author != "" {
		pdf.SetAuthor(m.Author, true)
	}
	if m := w.opts.Meta; m.Subject != "" {
		pdf.SetSubject(m.Subject, true)
	}
	if m := w.opts.Meta; m.Keywords != "" {
		pdf.SetKeywords(m.Keywords, true)
	}
	return &booklet{
		pdf:     pdf,
		ordinal: info.Ordinal,
		path:    w.PathFor(info.Ordinal),
		margin:  w.opts.Margin,
		quality: w.opts.JPEGQuality,
		check:   w.opts.Validate,
	}, nil
}

type booklet struct {
	pdf     *gofpdf.Fpdf
	ordinal int
	path    string
	margin  float64
	quality int
	check   bool
	pages   int
	images  int
}

func (b *booklet) NextPage() error {
	b.pdf.AddPage()
	b.pages++
	return b.pdf.Error()
}

// Place fits img into the given half of the current face, centered.
func (b *booklet) Place(slot assembler.Slot, img image.Image) error {
	if b.pages == 0 {
		return errors.New("place before first page")
	}
	w, h := b.pdf.GetPageSize()
	box := halfBox(w, h, b.margin, slot)
	x, y, iw, ih := fitInto(box, img.Bounds().Dx(), img.Bounds().Dy())

	data, err := imagerender.EncodeJPEG(img, b.quality)
	if err != nil {
		return err
	}
	b.images++
	name := fmt.Sprintf("b%d_i%d", b.ordinal, b.images)
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	b.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	b.pdf.ImageOptions(name, x, y, iw, ih, false, opts, 0, "")
	return b.pdf.Error()
}

// DrawFoldGuide draws a dotted line across mid-height. It starts at the outer
// edge on back faces and at the gutter edge on front faces.
func (b *booklet) DrawFoldGuide(back bool) error {
	w, h := b.pdf.GetPageSize()
	dotSpace := b.margin * 5
	b.pdf.SetDrawColor(77, 77, 77)
	b.pdf.SetLineWidth(0.5)
	b.pdf.SetDashPattern([]float64{0.5, 2}, 0)
	if back {
		b.pdf.Line(dotSpace, h/2, w, h/2)
	} else {
		b.pdf.Line(w-dotSpace, h/2, 0, h/2)
	}
	b.pdf.SetDashPattern([]float64{}, 0)
	return b.pdf.Error()
}

func (b *booklet) Label(text string) error {
	w, h := b.pdf.GetPageSize()
	b.pdf.SetFont("Times", "", 6)
	b.pdf.SetTextColor(77, 77, 77)
	b.pdf.Text(w/2+b.margin, h/2, text)
	return b.pdf.Error()
}

func (b *booklet) Finish() (string, error) {
	if err := b.pdf.OutputFileAndClose(b.path); err != nil {
		return "", fmt.Errorf("write %s: %w", b.path, err)
	}
	if b.check {
		if err := Validate(b.path); err != nil {
			return "", err
		}
	}
	log.Debug().Str("path", b.path).Int("faces", b.pages).Int("images", b.images).Msg("booklet saved")
	return b.path, nil
}

// Validate runs pdfcpu's validator on a written booklet.
func Validate(path string) error {
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}
	return nil
}

type rect struct{ x, y, w, h float64 }

// halfBox is the printable area of one half of a w x h face.
func halfBox(w, h, margin float64, slot assembler.Slot) rect {
	y := h / 2
	if slot == assembler.SlotTop {
		y = 0
	}
	return rect{x: margin, y: y + margin, w: w - 2*margin, h: h/2 - 2*margin}
}

// fitInto scales a pw x ph image into box keeping its aspect ratio.
func fitInto(box rect, pw, ph int) (x, y, w, h float64) {
	if pw <= 0 || ph <= 0 {
		return box.x, box.y, box.w, box.h
	}
	scale := box.w / float64(pw)
	if s := box.h / float64(ph); s < scale {
		scale = s
	}
	w, h = float64(pw)*scale, float64(ph)*scale
	return box.x + (box.w-w)/2, box.y + (box.h-h)/2, w, h
}
