package filetype

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectReader(t *testing.T) {
	d := New()
	info, err := d.DetectReader(strings.NewReader("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"))
	if err != nil {
		t.Fatalf("DetectReader(): %v", err)
	}
	if !info.Supported || info.Extension != ".pdf" {
		t.Errorf("info = %+v", info)
	}
}

func TestRequirePDF(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(txt, []byte("just some text, despite the name"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := New().RequirePDF(txt)
	var unsupported *UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want *UnsupportedError", err)
	}
	if !strings.HasPrefix(unsupported.MIMEType, "text/plain") {
		t.Errorf("mime = %q", unsupported.MIMEType)
	}
}
