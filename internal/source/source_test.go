package source

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "testing"

    "github.com/jung-kurt/gofpdf"
    "github.com/pdfcpu/pdfcpu/pkg/api"
)

func writeSamplePDF(t *testing.T, dir string, pages int) string {
    t.Helper()
    pdf := gofpdf.New("P", "pt", "A4", "")
    pdf.SetAuthor("Jane Roe", true)
    pdf.SetSubject("sample", true)
    pdf.SetFont("Helvetica", "", 24)
    for i := 1; i <= pages; i++ {
        pdf.AddPage()
        pdf.Text(100, 100, fmt.Sprintf("page %d", i))
    }
    path := filepath.Join(dir, "sample.pdf")
    if err := pdf.OutputFileAndClose(path); err != nil {
        t.Fatalf("write sample: %v", err)
    }
    return path
}

func TestInspectAndSplit(t *testing.T) {
    dir := t.TempDir()
    doc, err := Inspect(writeSamplePDF(t, dir, 5))
    if err != nil {
        t.Fatalf("Inspect(): %v", err)
    }
    if doc.Pages != 5 || doc.Stem() != "sample" {
        t.Errorf("doc = %+v", doc)
    }
    if doc.Meta.Author != "Jane Roe" {
        t.Errorf("author = %q", doc.Meta.Author)
    }

    paths, err := Split(doc, DefaultOutputDir(doc.Path), 2)
    if err != nil {
        t.Fatalf("Split(): %v", err)
    }
    want := []int{2, 2, 1}
    if len(paths) != len(want) {
        t.Fatalf("got %d parts", len(paths))
    }
    for i, p := range paths {
        if filepath.Base(p) != fmt.Sprintf("sample_%02d.pdf", i+1) {
            t.Errorf("part %d named %s", i+1, p)
        }
        n, err := api.PageCountFile(p)
        if err != nil || n != want[i] {
            t.Errorf("part %d: %d pages (%v), want %d", i+1, n, err, want[i])
        }
    }
}

func TestSplitRanges(t *testing.T) {
    got, err := SplitRanges(7, 3)
    if err != nil {
        t.Fatal(err)
    }
    want := []PageRange{{1, 3}, {4, 6}, {7, 7}}
    if len(got) != len(want) {
        t.Fatalf("got %v", got)
    }
    for i := range want {
        if got[i] != want[i] {
            t.Errorf("range %d = %v, want %v", i, got[i], want[i])
        }
    }
    if _, err := SplitRanges(7, 0); err == nil {
        t.Error("zero size accepted")
    }
}

func TestParseS3URL(t *testing.T) {
    tests := []struct {
        in          string
        bucket, key string
        ok          bool
    }{
        {"s3://docs/in/novel.pdf", "docs", "in/novel.pdf", true},
        {"s3://docs/", "", "", false},
        {"s3:///key", "", "", false},
        {"s3://docs", "", "", false},
    }
    for _, tt := range tests {
        b, k, err := ParseS3URL(tt.in)
        if (err == nil) != tt.ok || b != tt.bucket || k != tt.key {
            t.Errorf("ParseS3URL(%q) = %q, %q, %v", tt.in, b, k, err)
        }
    }
}

type fakeFetcher struct{ path string }

func (f fakeFetcher) Download(ctx context.Context, bucket, key string) (string, error) {
    if bucket != "docs" || key != "novel.pdf" {
        return "", errors.New("no such object")
    }
    return f.path, nil
}

func TestResolve(t *testing.T) {
    dir := t.TempDir()
    local := filepath.Join(dir, "local.pdf")
    if err := os.WriteFile(local, []byte("%PDF-1.4"), 0o644); err != nil {
        t.Fatal(err)
    }

    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/doc.pdf" {
            http.NotFound(w, r)
            return
        }
        w.Write([]byte("%PDF-1.4 remote"))
    }))
    defer srv.Close()

    ctx := context.Background()
    for _, ref := range []string{local, "file://" + local, local + "#page=3"} {
        p, cleanup, err := Resolve(ctx, ref, nil, 0)
        cleanup()
        if err != nil || p != local {
            t.Errorf("Resolve(%q) = %q, %v", ref, p, err)
        }
    }

    p, cleanup, err := Resolve(ctx, srv.URL+"/doc.pdf", nil, 0)
    if err != nil {
        t.Fatalf("Resolve(http): %v", err)
    }
    data, _ := os.ReadFile(p)
    if string(data) != "%PDF-1.4 remote" {
        t.Errorf("downloaded %q", data)
    }
    cleanup()
    if _, err := os.Stat(p); !os.IsNotExist(err) {
        t.Errorf("temp file not removed")
    }

    if _, c, err := Resolve(ctx, srv.URL+"/missing.pdf", nil, 0); err == nil {
        c()
        t.Error("404 accepted")
    }

    s3copy := filepath.Join(dir, "fetched.pdf")
    if err := os.WriteFile(s3copy, []byte("%PDF"), 0o644); err != nil {
        t.Fatal(err)
    }
    p, cleanup, err = Resolve(ctx, "s3://docs/novel.pdf", fakeFetcher{path: s3copy}, 0)
    if err != nil || p != s3copy {
        t.Errorf("Resolve(s3) = %q, %v", p, err)
    }
    cleanup()
    if _, _, err := Resolve(ctx, "s3://docs/novel.pdf", nil, 0); err == nil {
        t.Error("s3 without storage accepted")
    }
}

func TestResolveRejectsOversizedDownload(t *testing.T) {
    tmp := t.TempDir()
    t.Setenv("TMPDIR", tmp)
    body := bytes.Repeat([]byte("x"), 1500)
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path == "/stream.pdf" {
            // flushing first forces a chunked response with no Content-Length
            w.(http.Flusher).Flush()
        }
        w.Write(body)
    }))
    defer srv.Close()

    ctx := context.Background()
    for _, path := range []string{"/sized.pdf", "/stream.pdf"} {
        p, cleanup, err := Resolve(ctx, srv.URL+path, nil, 1024)
        cleanup()
        if !errors.Is(err, ErrTooLarge) {
            t.Errorf("Resolve(%s) = %q, %v, want ErrTooLarge", path, p, err)
        }
    }
    left, _ := os.ReadDir(tmp)
    if len(left) != 0 {
        t.Errorf("temp files left behind: %v", left)
    }

    p, cleanup, err := Resolve(ctx, srv.URL+"/sized.pdf", nil, int64(len(body)))
    defer cleanup()
    if err != nil {
        t.Fatalf("download at the limit: %v", err)
    }
    if fi, err := os.Stat(p); err != nil || fi.Size() != int64(len(body)) {
        t.Errorf("downloaded %v, %v", fi, err)
    }
}
