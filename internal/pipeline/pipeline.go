// Package pipeline runs one document from source reference to written (and
// optionally uploaded) booklets.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/bookletizer/internal/assembler"
	"github.com/local/bookletizer/internal/config"
	"github.com/local/bookletizer/internal/imagerender"
	"github.com/local/bookletizer/internal/imposition"
	"github.com/local/bookletizer/internal/sheetwriter"
	"github.com/local/bookletizer/internal/source"
)

// Uploader publishes a finished booklet and returns its remote location.
type Uploader interface {
	UploadBooklet(ctx context.Context, jobID, file string) (string, error)
}

// UploadError is returned when a booklet was written but could not be published.
type UploadError struct {
	Ordinal int
	Err     error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload booklet %d: %v", e.Ordinal, e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

// Request describes one run.
type Request struct {
	JobID  string
	Source string
	// Name overrides the file name booklets are named after.
	Name      string
	OutputDir string

	Layout        config.ImpositionConfig
	Render        config.RenderConfig
	Output        config.OutputConfig
	GroupParallel int
	Creator       string

	Fetcher source.S3Fetcher
	// MaxSourceBytes caps http(s) downloads; zero uses the source default.
	MaxSourceBytes int64
	Uploader       Uploader
	// Progress is called after each booklet with the number done so far.
	Progress func(done, total int, b assembler.BookletResult)
}

// Report is what a run produced.
type Report struct {
	Document source.Document  `json:"document" yaml:"document"`
	Result   assembler.Result `json:"result" yaml:"result"`
	Files    []string         `json:"files" yaml:"files"`
	Uploaded []string         `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
}

// Run imposes the document referenced by req.Source.
func Run(ctx context.Context, req Request) (Report, error) {
	layout, err := req.Layout.Layout()
	if err != nil {
		return Report{}, err
	}

	path, cleanup, err := source.Resolve(ctx, req.Source, req.Fetcher, req.MaxSourceBytes)
	defer cleanup()
	if err != nil {
		return Report{}, fmt.Errorf("resolve source: %w", err)
	}
	doc, err := source.Inspect(path)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Document: doc}

	stem := doc.Stem()
	if req.Name != "" {
		stem = source.Stem(req.Name)
	}
	outDir := req.OutputDir
	if outDir == "" {
		outDir = source.DefaultOutputDir(path)
	}

	renderer, err := imagerender.Open(path, imagerender.Options{
		TargetWidth: req.Render.TargetWidth,
		MaxHeight:   req.Render.MaxHeight,
	})
	if err != nil {
		return rep, err
	}
	defer renderer.Close()

	writer, err := sheetwriter.New(sheetwriter.Options{
		Dir:         outDir,
		Stem:        stem,
		Margin:      req.Output.MarginPoints(),
		JPEGQuality: req.Render.JPEGQuality,
		Validate:    req.Output.Validate,
		Meta: sheetwriter.Metadata{
			Author:   doc.Meta.Author,
			Subject:  doc.Meta.Subject,
			Keywords: doc.Meta.Keywords,
			Creator:  req.Creator,
		},
	})
	if err != nil {
		return rep, err
	}

	asm := assembler.New(renderer, writer, assembler.Options{
		Layout:    layout,
		Parallel:  req.GroupParallel,
		FoldGuide: req.Output.FoldGuide,
		Labels:    req.Output.Labels,
	})
	plan, err := imposition.PlanBooklets(doc.Pages, layout)
	if err != nil {
		return rep, err
	}
	done := 0
	res, err := asm.Run(ctx, doc.Pages, func(b assembler.BookletResult) {
		done++
		if req.Progress != nil {
			req.Progress(done, plan.BookletCount, b)
		}
	})
	rep.Result = res
	if err != nil {
		return rep, err
	}

	for _, b := range res.Booklets {
		rep.Files = append(rep.Files, b.Path)
		if req.Uploader == nil {
			continue
		}
		loc, err := req.Uploader.UploadBooklet(ctx, req.JobID, b.Path)
		if err != nil {
			return rep, &UploadError{Ordinal: b.Ordinal, Err: err}
		}
		rep.Uploaded = append(rep.Uploaded, loc)
	}
	log.Info().
		Str("job_id", req.JobID).
		Str("source", filepath.Base(path)).
		Int("pages", doc.Pages).
		Int("booklets", len(res.Booklets)).
		Str("out", outDir).
		Msg("imposition finished")
	return rep, nil
}
