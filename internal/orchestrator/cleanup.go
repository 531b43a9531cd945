package orchestrator

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/rs/zerolog/log"
)

// CleanupTemps removes temporary downloads older than maxAge from dir
// (os.TempDir when empty). It targets names created by our helpers
// (pdfdl-*.pdf, s3pdf-*.pdf) and returns how many were removed.
func CleanupTemps(dir string, maxAge time.Duration) int {
    if dir == "" { dir = os.TempDir() }
    now := time.Now()
    removed := 0
    entries, err := os.ReadDir(dir)
    if err != nil { return 0 }
    for _, e := range entries {
        name := e.Name()
        if e.IsDir() || !(strings.HasPrefix(name, "pdfdl-") || strings.HasPrefix(name, "s3pdf-")) {
            continue
        }
        info, err := e.Info()
        if err != nil { continue }
        if now.Sub(info.ModTime()) >= maxAge && os.Remove(filepath.Join(dir, name)) == nil {
            removed++
        }
    }
    return removed
}

// CleanupEntries removes direct children of root (job work dirs, uploads)
// not modified for maxAge.
func CleanupEntries(root string, maxAge time.Duration) int {
    entries, err := os.ReadDir(root)
    if err != nil { return 0 }
    now := time.Now()
    removed := 0
    for _, e := range entries {
        info, err := e.Info()
        if err != nil || now.Sub(info.ModTime()) < maxAge { continue }
        if os.RemoveAll(filepath.Join(root, e.Name())) == nil { removed++ }
    }
    return removed
}

// RunJanitor sweeps temp downloads and the given roots every interval until ctx ends.
// maxAge normally matches the status TTL.
func RunJanitor(ctx context.Context, every, maxAge time.Duration, roots ...string) {
    t := time.NewTicker(every)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            n := CleanupTemps("", time.Hour)
            for _, root := range roots { n += CleanupEntries(root, maxAge) }
            if n > 0 { log.Info().Int("removed", n).Msg("janitor sweep") }
        }
    }
}
