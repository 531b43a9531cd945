// Package assembler drives rendering and sheet output for every booklet of a
// document, using the pure layout from package imposition.
package assembler

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/bookletizer/internal/imposition"
	"github.com/local/bookletizer/internal/metrics"
)

// Slot is a half of a sheet face.
type Slot int

const (
	SlotBottom Slot = iota
	SlotTop
)

func (s Slot) String() string {
	if s == SlotTop {
		return "top"
	}
	return "bottom"
}

// Renderer produces the image of a source page turned a quarter.
type Renderer interface {
	Render(ctx context.Context, pageIndex int, rot imposition.Rotation) (image.Image, error)
}

// BookletInfo identifies the booklet a Writer is asked to start.
type BookletInfo struct {
	Ordinal int
	Group   imposition.Group
}

// Writer starts output booklets.
type Writer interface {
	Begin(info BookletInfo) (Booklet, error)
}

// Booklet receives the faces of one booklet in order.
type Booklet interface {
	// NextPage starts a new sheet face; it must precede Place.
	NextPage() error
	Place(slot Slot, img image.Image) error
	DrawFoldGuide(back bool) error
	Label(text string) error
	// Finish persists the booklet and returns where it went.
	Finish() (string, error)
}

// Options tune a run.
type Options struct {
	Layout    imposition.Config
	Parallel  int
	FoldGuide bool
	Labels    bool
}

// BookletResult describes one finished booklet.
type BookletResult struct {
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
	Sheets  int    `json:"sheets" yaml:"sheets"`
	Sides   int    `json:"sides" yaml:"sides"`
	Pages   int    `json:"pages" yaml:"pages"`
	Blanks  int    `json:"blanks" yaml:"blanks"`
	Path    string `json:"path" yaml:"path"`
}

// Result is the outcome of a run, booklets ordered by ordinal.
type Result struct {
	Plan     imposition.Plan `json:"plan" yaml:"plan"`
	Booklets []BookletResult `json:"booklets" yaml:"booklets"`
}

// Assembler lays out and writes all booklets of one document.
type Assembler struct {
	renderer Renderer
	writer   Writer
	opts     Options
}

func New(r Renderer, w Writer, opts Options) *Assembler {
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	return &Assembler{renderer: r, writer: w, opts: opts}
}

// Run imposes a document of pageCount pages. Groups are processed
// concurrently, sides within a group in order. progress, if set, is called
// once per finished booklet, serialized.
func (a *Assembler) Run(ctx context.Context, pageCount int, progress func(BookletResult)) (Result, error) {
	plan, err := imposition.PlanBooklets(pageCount, a.opts.Layout)
	if err != nil {
		return Result{}, err
	}
	groups, err := imposition.Groups(plan, a.opts.Layout)
	if err != nil {
		return Result{}, err
	}
	log.Info().
		Int("pages", pageCount).
		Int("booklets", plan.BookletCount).
		Int("nominal_sheets", plan.NominalSheets).
		Int("extended", plan.ExtendedBookletCount).
		Int("tail_pad", plan.TailPadPages).
		Str("binding", a.opts.Layout.Binding.String()).
		Msg("booklet plan")

	results := make([]BookletResult, len(groups))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Parallel)
	for i, grp := range groups {
		g.Go(func() error {
			res, err := a.imposeGroup(gctx, grp, pageCount)
			if err != nil {
				return fmt.Errorf("booklet %d: %w", grp.Ordinal, err)
			}
			results[i] = res
			log.Info().
				Int("booklet", res.Ordinal).
				Int("pages", res.Pages).
				Int("start", res.Start).
				Int("end", res.End).
				Str("path", res.Path).
				Msg("booklet written")
			if progress != nil {
				mu.Lock()
				progress(res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Plan: plan}, err
	}
	return Result{Plan: plan, Booklets: results}, nil
}

func (a *Assembler) imposeGroup(ctx context.Context, grp imposition.Group, pageCount int) (BookletResult, error) {
	res := BookletResult{Ordinal: grp.Ordinal, Start: grp.Start, End: grp.End, Sheets: grp.Sheets()}
	bk, err := a.writer.Begin(BookletInfo{Ordinal: grp.Ordinal, Group: grp})
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	label := fmt.Sprintf("^- %d -^", grp.Ordinal)

	for side := range imposition.NewSheetSequencer(grp, a.opts.Layout, pageCount).All() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := bk.NextPage(); err != nil {
			return res, err
		}
		for _, pl := range a.slots(side) {
			slot, ref := pl.slot, pl.ref
			idx, ok := ref.Index()
			metrics.IncSlot(!ok)
			if !ok {
				res.Blanks++
				continue
			}
			img, err := a.renderer.Render(ctx, idx, ref.Rotation)
			if err != nil {
				return res, fmt.Errorf("render page %d: %w", idx+1, err)
			}
			if err := bk.Place(slot, img); err != nil {
				return res, fmt.Errorf("place page %d: %w", idx+1, err)
			}
			res.Pages++
		}
		if a.opts.FoldGuide {
			if err := bk.DrawFoldGuide(side.IsBack); err != nil {
				return res, err
			}
		}
		if a.opts.Labels && !side.IsBack {
			if err := bk.Label(label); err != nil {
				return res, err
			}
		}
		res.Sides++
	}
	metrics.AddSheetSides(res.Sides)

	path, err := bk.Finish()
	if err != nil {
		return res, fmt.Errorf("finish: %w", err)
	}
	metrics.IncBooklet(a.opts.Layout.Binding.String())
	res.Path = path
	return res, nil
}

type placement struct {
	slot Slot
	ref  imposition.PageRef
}

// slots maps a side onto the sheet halves, bottom first. Folded booklets keep
// the low page at the bottom; cut booklets swap the halves.
func (a *Assembler) slots(side imposition.SheetSide) [2]placement {
	if a.opts.Layout.Binding == imposition.BindingEdge {
		return [2]placement{{SlotBottom, side.High}, {SlotTop, side.Low}}
	}
	return [2]placement{{SlotBottom, side.Low}, {SlotTop, side.High}}
}
