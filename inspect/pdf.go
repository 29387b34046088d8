package inspect

import (
	"bytes"
	"fmt"
	"io"
)

// PDFValidator checks the PDF header and end-of-file marker.
type PDFValidator struct {
	MaxSize int64
}

// DefaultPDFValidator creates a PDF validator with sensible defaults
func DefaultPDFValidator() *PDFValidator {
	return &PDFValidator{MaxSize: 50 * MB}
}

// ValidateContent implements ContentValidator. Seekable readers are checked
// by reading the first and last kilobyte only.
func (v *PDFValidator) ValidateContent(reader io.Reader, size int64) error {
	if size > v.MaxSize {
		return NewValidationError(ErrorTypeSize,
			fmt.Sprintf("PDF size %d exceeds maximum %d", size, v.MaxSize))
	}

	var header, trailer []byte
	if seeker, ok := reader.(io.ReadSeeker); ok && size > 0 {
		window := min(size, KB)
		header = make([]byte, window)
		if _, err := io.ReadFull(seeker, header); err != nil {
			return NewValidationError(ErrorTypeContent, "failed to read PDF header")
		}
		if _, err := seeker.Seek(-window, io.SeekEnd); err != nil {
			return NewValidationError(ErrorTypeContent, "failed to seek to PDF trailer")
		}
		trailer = make([]byte, window)
		if _, err := io.ReadFull(seeker, trailer); err != nil {
			return NewValidationError(ErrorTypeContent, "failed to read PDF trailer")
		}
	} else {
		data, err := io.ReadAll(io.LimitReader(reader, v.MaxSize))
		if err != nil {
			return NewValidationError(ErrorTypeContent, "failed to read PDF content")
		}
		header, trailer = data, data
	}

	if !bytes.HasPrefix(header, []byte("%PDF-")) {
		return NewValidationError(ErrorTypeContent, "invalid PDF header")
	}
	if !bytes.Contains(trailer, []byte("%%EOF")) {
		return NewValidationError(ErrorTypeContent, "invalid PDF trailer")
	}
	return nil
}

// SupportedMIMETypes implements ContentValidator.
func (v *PDFValidator) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}
