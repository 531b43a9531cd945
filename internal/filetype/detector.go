package filetype

import (
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// UnsupportedError reports an input that is not a PDF.
type UnsupportedError struct {
	MIMEType string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported file type %s: only PDF documents can be imposed", e.MIMEType)
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := classify(mtype)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// DetectReader sniffs the head of r.
func (d *Detector) DetectReader(r io.Reader) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	return classify(mtype), nil
}

// RequirePDF returns an *UnsupportedError unless filePath is a PDF.
func (d *Detector) RequirePDF(filePath string) error {
	info, err := d.Detect(filePath)
	if err != nil {
		return err
	}
	if !info.Supported {
		return &UnsupportedError{MIMEType: info.MIMEType}
	}
	return nil
}

func classify(mtype *mimetype.MIME) *FileTypeInfo {
	info := &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}
	if mtype.Is(pdfMIME) {
		info.Supported = true
		info.Description = "PDF document"
		return info
	}
	info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	return info
}
