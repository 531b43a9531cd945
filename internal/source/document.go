// Package source resolves, inspects and splits input PDFs.
package source

import (
    "fmt"
    "path/filepath"
    "strings"

    "github.com/gen2brain/go-fitz"
    "github.com/pdfcpu/pdfcpu/pkg/api"
    "github.com/rs/zerolog/log"

    "github.com/local/bookletizer/internal/filetype"
)

// Metadata is the document info carried over into booklets.
type Metadata struct {
    Title    string `json:"title,omitempty" yaml:"title,omitempty"`
    Author   string `json:"author,omitempty" yaml:"author,omitempty"`
    Subject  string `json:"subject,omitempty" yaml:"subject,omitempty"`
    Keywords string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Document is an inspected local PDF.
type Document struct {
    Path  string   `json:"path" yaml:"path"`
    Pages int      `json:"pages" yaml:"pages"`
    Meta  Metadata `json:"meta" yaml:"meta"`
}

// Stem is the file name without extension, used to name booklets.
func (d Document) Stem() string { return Stem(d.Path) }

// Stem strips directory and extension from path.
func Stem(path string) string {
    base := filepath.Base(path)
    return strings.TrimSuffix(base, filepath.Ext(base))
}

// DefaultOutputDir is the "out" directory beside the input.
func DefaultOutputDir(path string) string {
    return filepath.Join(filepath.Dir(path), "out")
}

// Inspect checks that path is a PDF, counts its pages and reads its metadata.
func Inspect(path string) (Document, error) {
    if err := filetype.New().RequirePDF(path); err != nil {
        return Document{}, err
    }
    n, err := api.PageCountFile(path)
    if err != nil {
        return Document{}, fmt.Errorf("pdf page count failed: %w", err)
    }
    doc := Document{Path: path, Pages: n}

    meta, err := ReadMetadata(path)
    if err != nil {
        // metadata is cosmetic; booklets are still produced without it
        log.Warn().Err(err).Str("pdf", path).Msg("could not read document metadata")
    } else {
        doc.Meta = meta
    }
    log.Debug().Str("pdf", path).Int("pages", n).Str("author", doc.Meta.Author).Msg("inspected source")
    return doc, nil
}

// ReadMetadata returns the info dictionary entries MuPDF exposes.
func ReadMetadata(path string) (Metadata, error) {
    doc, err := fitz.New(path)
    if err != nil {
        return Metadata{}, fmt.Errorf("failed to open PDF: %w", err)
    }
    defer doc.Close()
    m := doc.Metadata()
    return Metadata{
        Title:    m["title"],
        Author:   m["author"],
        Subject:  m["subject"],
        Keywords: m["keywords"],
    }, nil
}
