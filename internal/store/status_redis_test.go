package store

import (
    "fmt"
    "testing"
    "time"
)

// stringify mimics what HGETALL hands back for the fields HSET stored.
func stringify(m map[string]any) map[string]string {
    out := make(map[string]string, len(m))
    for k, v := range m {
        out[k] = fmt.Sprint(v)
    }
    return out
}

func TestStatusEncoding(t *testing.T) {
    start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
    in := Status{
        Status:   StateSuccess,
        Progress: 100,
        Message:  "5 booklets written",
        Start:    &start,
        Files:    []string{"out/novel_01.pdf", "out/novel_02.pdf"},
        Metadata: map[string]any{"pages": float64(202)},
    }
    got := decodeStatus(stringify(encodeStatus(in)))
    if got.Status != in.Status || got.Progress != 100 || got.Message != in.Message {
        t.Errorf("decoded %+v", got)
    }
    if got.Start == nil || !got.Start.Equal(start) || got.End != nil {
        t.Errorf("times = %v, %v", got.Start, got.End)
    }
    if len(got.Files) != 2 || got.Files[1] != "out/novel_02.pdf" {
        t.Errorf("files = %v", got.Files)
    }
    if got.Metadata["pages"] != float64(202) {
        t.Errorf("metadata = %v", got.Metadata)
    }
}

func TestTerminal(t *testing.T) {
    for state, want := range map[string]bool{
        StateQueued: false, StateProcessing: false,
        StateSuccess: true, StateFailed: true, StateCancelled: true,
    } {
        if got := (Status{Status: state}).Terminal(); got != want {
            t.Errorf("%s terminal = %v", state, got)
        }
    }
}
