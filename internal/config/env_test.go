package config

import (
    "errors"
    "math"
    "testing"
    "time"

    "github.com/local/bookletizer/internal/imposition"
)

func TestFromEnvDefaults(t *testing.T) {
    for _, k := range []string{"SHEETS_PER_BOOKLET", "BINDING", "HAS_COVER", "KEEP_COVER", "QUEUE_STREAM", "JOB_TIMEOUT"} {
        t.Setenv(k, "")
    }
    cfg := FromEnv()
    if cfg.Imposition.SheetsPerBooklet != 10 || cfg.Imposition.Binding != "middle" {
        t.Errorf("imposition defaults = %+v", cfg.Imposition)
    }
    if cfg.Queue.Stream != "jobs:booklets" {
        t.Errorf("stream = %q", cfg.Queue.Stream)
    }
    if cfg.Worker.JobTimeout != 15*time.Minute {
        t.Errorf("job timeout = %v", cfg.Worker.JobTimeout)
    }
}

func TestFromEnvOverrides(t *testing.T) {
    t.Setenv("SHEETS_PER_BOOKLET", "6")
    t.Setenv("BINDING", "EDGE")
    t.Setenv("HAS_COVER", "yes")
    t.Setenv("KEEP_COVER", "1")
    t.Setenv("OUTPUT_MARGIN_MM", "5")
    t.Setenv("WORKER_CONCURRENCY", "not-a-number")

    cfg := FromEnv()
    layout, err := cfg.Imposition.Layout()
    if err != nil {
        t.Fatalf("Layout(): %v", err)
    }
    want := imposition.Config{SheetsPerBooklet: 6, Binding: imposition.BindingEdge, HasCover: true, KeepCover: true}
    if layout != want {
        t.Errorf("layout = %+v, want %+v", layout, want)
    }
    if cfg.Worker.Concurrency != 2 {
        t.Errorf("bad integer should fall back to default, got %d", cfg.Worker.Concurrency)
    }
    if got := cfg.Output.MarginPoints(); math.Abs(got-5*72/25.4) > 1e-9 {
        t.Errorf("margin = %v", got)
    }
}

func TestLayoutRejectsBadValues(t *testing.T) {
    tests := []ImpositionConfig{
        {SheetsPerBooklet: 0, Binding: "middle"},
        {SheetsPerBooklet: 4, Binding: "spiral"},
    }
    for _, tt := range tests {
        if _, err := tt.Layout(); !errors.Is(err, imposition.ErrConfig) {
            t.Errorf("Layout(%+v) error = %v, want ErrConfig", tt, err)
        }
    }
}
