package dispatcher

import (
    "context"
    "errors"
    "fmt"
    "io/fs"
    "path/filepath"
    "testing"
    "time"

    "github.com/local/bookletizer/internal/assembler"
    "github.com/local/bookletizer/internal/filetype"
    "github.com/local/bookletizer/internal/imposition"
    "github.com/local/bookletizer/internal/pipeline"
    "github.com/local/bookletizer/internal/source"
)

type nopUploader struct{}

func (nopUploader) UploadBooklet(context.Context, string, string) (string, error) { return "", nil }

func TestBookletProcessorRequest(t *testing.T) {
    p := NewBookletProcessor(pipeline.Request{Creator: "bookletizer", GroupParallel: 3, MaxSourceBytes: 1 << 20, Uploader: nopUploader{}}, "/var/work")
    job := testJob("j1")
    job.Name = "novel.pdf"

    req, err := p.Request(job)
    if err != nil {
        t.Fatal(err)
    }
    if req.OutputDir != filepath.Join("/var/work", "j1") || req.Source != job.Source || req.Name != "novel.pdf" {
        t.Errorf("request = %+v", req)
    }
    if req.Layout.SheetsPerBooklet != 10 || req.GroupParallel != 3 || req.Creator != "bookletizer" || req.MaxSourceBytes != 1<<20 {
        t.Errorf("request layout = %+v", req)
    }
    if req.Uploader != nil {
        t.Error("uploader kept for a job without upload")
    }

    job.Upload = true
    if req, _ := p.Request(job); req.Uploader == nil {
        t.Error("uploader dropped for an upload job")
    }

    bare := NewBookletProcessor(pipeline.Request{}, "/var/work")
    _, err = bare.Request(job)
    var verr *ValidationError
    if !errors.As(err, &verr) || !isFatalError(err) {
        t.Errorf("err = %v, want fatal ValidationError", err)
    }
}

func TestBookletProcessorProcess(t *testing.T) {
    p := NewBookletProcessor(pipeline.Request{}, t.TempDir())
    p.run = func(_ context.Context, req pipeline.Request) (pipeline.Report, error) {
        b := assembler.BookletResult{Ordinal: 1}
        req.Progress(1, 2, b)
        req.Progress(2, 2, b)
        rep := pipeline.Report{Files: []string{"a", "b"}}
        rep.Document.Pages = 40
        rep.Result.Booklets = []assembler.BookletResult{{Ordinal: 1}, {Ordinal: 2}}
        return rep, nil
    }
    var calls [][2]int
    out, err := p.Process(context.Background(), testJob("j2"), func(done, total int) {
        calls = append(calls, [2]int{done, total})
    })
    if err != nil {
        t.Fatal(err)
    }
    if out.Pages != 40 || out.Booklets != 2 || len(out.Files) != 2 {
        t.Errorf("outcome = %+v", out)
    }
    if len(calls) != 2 || calls[1] != [2]int{2, 2} {
        t.Errorf("progress = %v", calls)
    }
}

func TestErrorClassification(t *testing.T) {
    tests := []struct {
        err       error
        fatal     bool
        transient bool
    }{
        {nil, false, false},
        {&imposition.ConfigError{Field: "binding", Reason: "unknown"}, true, false},
        {fmt.Errorf("wrap: %w", &imposition.PreconditionError{Op: "next"}), true, false},
        {&filetype.UnsupportedError{MIMEType: "text/plain"}, true, false},
        {fmt.Errorf("open: %w", fs.ErrNotExist), true, false},
        {errors.New("invalid s3 url: s3://bucket"), true, false},
        {fmt.Errorf("resolve source: %w", source.ErrTooLarge), true, false},
        {&JobError{Fatal: true, Err: errors.New("x")}, true, false},
        {context.DeadlineExceeded, false, true},
        {errors.New("dial tcp: connection refused"), false, true},
        {errors.New("download x: http 503"), false, true},
        {errors.New("render exploded"), false, false},
    }
    for _, tt := range tests {
        if got := isFatalError(tt.err); got != tt.fatal {
            t.Errorf("isFatalError(%v) = %v", tt.err, got)
        }
        if got := isTransientError(tt.err); got != tt.transient {
            t.Errorf("isTransientError(%v) = %v", tt.err, got)
        }
    }
}

func TestClassifyKeepsJobError(t *testing.T) {
    je := &JobError{JobID: "a", Attempt: 2, Fatal: true, Err: errors.New("boom")}
    if got := classify("a", 2, fmt.Errorf("ctx: %w", je)); got != je {
        t.Errorf("classify() = %v", got)
    }
    got := classify("b", 1, errors.New("boom"))
    if got.Fatal || got.JobID != "b" || got.Error() != "job b attempt 1 (transient): boom" {
        t.Errorf("classify() = %v", got)
    }
}

func TestCooldown(t *testing.T) {
    base, limit := 30*time.Second, 5*time.Minute
    want := []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute, 4 * time.Minute, 5 * time.Minute, 5 * time.Minute}
    for i, w := range want {
        if got := cooldown(base, limit, i+1); got != w {
            t.Errorf("cooldown(%d) = %v, want %v", i+1, got, w)
        }
    }
}
