package source

import (
    "fmt"
    "os"
    "path/filepath"

    "github.com/pdfcpu/pdfcpu/pkg/api"
    "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
    "github.com/rs/zerolog/log"
)

// PageRange is a 1-based inclusive range of source pages.
type PageRange struct {
    First int
    Last  int
}

func (r PageRange) String() string { return fmt.Sprintf("%d-%d", r.First, r.Last) }

// SplitRanges cuts pages into consecutive ranges of at most size pages.
func SplitRanges(pages, size int) ([]PageRange, error) {
    if size <= 0 {
        return nil, fmt.Errorf("split size must be positive, got %d", size)
    }
    if pages <= 0 {
        return nil, fmt.Errorf("document has no pages")
    }
    var out []PageRange
    for first := 1; first <= pages; first += size {
        out = append(out, PageRange{First: first, Last: min(first+size-1, pages)})
    }
    return out, nil
}

// Split writes each range of doc into <outDir>/<stem>_<NN>.pdf without
// imposing it and returns the written paths.
func Split(doc Document, outDir string, size int) ([]string, error) {
    ranges, err := SplitRanges(doc.Pages, size)
    if err != nil {
        return nil, err
    }
    if err := os.MkdirAll(outDir, 0o755); err != nil {
        return nil, fmt.Errorf("create output dir: %w", err)
    }
    conf := model.NewDefaultConfiguration()
    paths := make([]string, 0, len(ranges))
    for i, r := range ranges {
        out := filepath.Join(outDir, fmt.Sprintf("%s_%02d.pdf", doc.Stem(), i+1))
        if err := api.TrimFile(doc.Path, out, []string{r.String()}, conf); err != nil {
            return paths, fmt.Errorf("split pages %s: %w", r, err)
        }
        log.Info().Int("part", i+1).Int("first", r.First).Int("last", r.Last).Str("path", out).Msg("split part written")
        paths = append(paths, out)
    }
    return paths, nil
}
