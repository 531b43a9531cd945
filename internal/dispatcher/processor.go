package dispatcher

import (
    "context"
    "path/filepath"

    "github.com/local/bookletizer/internal/assembler"
    "github.com/local/bookletizer/internal/pipeline"
    "github.com/local/bookletizer/internal/queue"
)

// BookletProcessor imposes queued documents through the shared pipeline.
// Booklets of a job are written to WorkDir/<job id>.
type BookletProcessor struct {
    Template pipeline.Request
    WorkDir  string
    run      func(context.Context, pipeline.Request) (pipeline.Report, error)
}

func NewBookletProcessor(template pipeline.Request, workDir string) *BookletProcessor {
    return &BookletProcessor{Template: template, WorkDir: workDir, run: pipeline.Run}
}

// Request builds the pipeline request for job.
func (p *BookletProcessor) Request(job queue.Job) (pipeline.Request, error) {
    req := p.Template
    req.JobID = job.ID
    req.Source = job.Source
    req.Name = job.Name
    req.Layout = job.Layout.Imposition()
    req.OutputDir = filepath.Join(p.WorkDir, job.ID)
    if !job.Upload {
        req.Uploader = nil
    } else if req.Uploader == nil {
        return req, &ValidationError{Message: "upload requested but no storage is configured"}
    }
    return req, nil
}

func (p *BookletProcessor) Process(ctx context.Context, job queue.Job, progress func(done, total int)) (Outcome, error) {
    req, err := p.Request(job)
    if err != nil {
        return Outcome{}, err
    }
    if progress != nil {
        req.Progress = func(done, total int, _ assembler.BookletResult) { progress(done, total) }
    }
    rep, err := p.run(ctx, req)
    if err != nil {
        return Outcome{}, err
    }
    return Outcome{
        Pages:    rep.Document.Pages,
        Booklets: len(rep.Result.Booklets),
        Files:    rep.Files,
        Uploaded: rep.Uploaded,
    }, nil
}
