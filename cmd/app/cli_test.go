package main

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/jung-kurt/gofpdf"

    "github.com/local/bookletizer/internal/imposition"
)

func run(t *testing.T, args ...string) (string, error) {
    t.Helper()
    root := newRootCmd()
    var out bytes.Buffer
    root.SetOut(&out)
    root.SetErr(&out)
    root.SetArgs(append(args, "--quiet"))
    err := root.Execute()
    return out.String(), err
}

func TestPlanJSON(t *testing.T) {
    out, err := run(t, "plan", "--pages", "38", "--sheets", "10", "--format", "json")
    if err != nil { t.Fatalf("plan: %v\n%s", err, out) }
    var d imposition.Description
    if err := json.Unmarshal([]byte(out), &d); err != nil { t.Fatalf("decode: %v\n%s", err, out) }
    if d.Binding != "middle" { t.Errorf("binding = %q", d.Binding) }
    if d.Plan.BookletCount != 1 || d.Plan.PaddedPages != 40 {
        t.Errorf("plan = %+v", d.Plan)
    }
    if len(d.Groups) != 1 || d.Groups[0].Blanks != 2 || d.Groups[0].Sheets != 10 {
        t.Errorf("groups = %+v", d.Groups)
    }
}

func TestPlanYAMLAndTable(t *testing.T) {
    out, err := run(t, "plan", "-n", "202", "--cover", "--keep-cover", "-f", "yaml")
    if err != nil { t.Fatalf("plan yaml: %v", err) }
    for _, want := range []string{"binding: middle", "booklet_count: 5", "kind: first_with_cover"} {
        if !strings.Contains(out, want) { t.Errorf("yaml output lacks %q:\n%s", want, out) }
    }

    out, err = run(t, "plan", "-n", "80", "-b", "edge")
    if err != nil { t.Fatalf("plan table: %v", err) }
    if !strings.Contains(out, "BOOKLET") || !strings.Contains(out, "edge binding") {
        t.Errorf("table output:\n%s", out)
    }
}

func TestPlanErrors(t *testing.T) {
    if _, err := run(t, "plan"); err == nil {
        t.Error("plan without pages should fail")
    }
    if _, err := run(t, "plan", "-n", "40", "-b", "spiral"); !errors.Is(err, imposition.ErrConfig) {
        t.Errorf("bad binding err = %v", err)
    }
    if _, err := run(t, "plan", "-n", "4000000000000", "-s", "1"); !errors.Is(err, imposition.ErrConfig) {
        t.Errorf("huge page count err = %v", err)
    }
    if _, err := run(t, "plan", "-n", "40", "-f", "xml"); err == nil {
        t.Error("unknown format should fail")
    }
}

func TestSplit(t *testing.T) {
    dir := t.TempDir()
    pdf := gofpdf.New("P", "pt", "A5", "")
    pdf.SetFont("Helvetica", "", 24)
    for i := 1; i <= 10; i++ {
        pdf.AddPage()
        pdf.Text(60, 100, fmt.Sprintf("%d", i))
    }
    src := filepath.Join(dir, "notes.pdf")
    if err := pdf.OutputFileAndClose(src); err != nil { t.Fatal(err) }

    outDir := filepath.Join(dir, "parts")
    out, err := run(t, "split", src, "--size", "4", "--out", outDir)
    if err != nil { t.Fatalf("split: %v\n%s", err, out) }
    lines := strings.Fields(out)
    if len(lines) != 3 { t.Fatalf("split printed %d paths: %q", len(lines), out) }
    for i, p := range lines {
        want := filepath.Join(outDir, fmt.Sprintf("notes_%02d.pdf", i+1))
        if p != want { t.Errorf("path %d = %s, want %s", i, p, want) }
        if _, err := os.Stat(p); err != nil { t.Errorf("missing part: %v", err) }
    }
}
