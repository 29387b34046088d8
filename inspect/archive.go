package inspect

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ZipValidator rejects ZIP archives that look like decompression bombs or
// contain entries escaping the extraction root.
type ZipValidator struct {
	MaxCompressionRatio float64
	MaxFiles            int
	MaxUncompressedSize int64
}

// DefaultZipValidator creates a ZIP validator with sensible defaults
func DefaultZipValidator() *ZipValidator {
	return &ZipValidator{
		MaxCompressionRatio: 100.0,
		MaxFiles:            1000,
		MaxUncompressedSize: 1 * GB,
	}
}

// ValidateContent implements ContentValidator. Only the central directory
// is read when reader implements io.ReaderAt.
func (v *ZipValidator) ValidateContent(reader io.Reader, size int64) error {
	readerAt, ok := reader.(io.ReaderAt)
	if !ok {
		if size > 1*MB {
			return NewValidationError(ErrorTypeContent,
				"large ZIP files require a seekable reader")
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return NewValidationError(ErrorTypeContent, "failed to read archive content")
		}
		readerAt, size = bytes.NewReader(data), int64(len(data))
	}

	zr, err := zip.NewReader(readerAt, size)
	if err != nil {
		return NewValidationError(ErrorTypeContent, fmt.Sprintf("cannot open archive: %v", err))
	}

	if len(zr.File) > v.MaxFiles {
		return NewValidationError(ErrorTypeContent,
			fmt.Sprintf("archive contains %d files, maximum is %d", len(zr.File), v.MaxFiles))
	}

	var total uint64
	for _, f := range zr.File {
		if strings.Contains(f.Name, "..") || strings.HasPrefix(f.Name, "/") {
			return NewValidationError(ErrorTypeContent,
				fmt.Sprintf("archive entry %q escapes the archive root", f.Name))
		}
		if f.CompressedSize64 > 0 {
			ratio := float64(f.UncompressedSize64) / float64(f.CompressedSize64)
			if ratio > v.MaxCompressionRatio {
				return NewValidationError(ErrorTypeContent,
					fmt.Sprintf("archive entry %q compression ratio %.0f exceeds maximum %.0f", f.Name, ratio, v.MaxCompressionRatio))
			}
		}
		total += f.UncompressedSize64
	}
	if total > uint64(v.MaxUncompressedSize) {
		return NewValidationError(ErrorTypeSize,
			fmt.Sprintf("archive expands to %d bytes, maximum is %d", total, v.MaxUncompressedSize))
	}
	return nil
}

// SupportedMIMETypes implements ContentValidator.
func (v *ZipValidator) SupportedMIMETypes() []string {
	return []string{
		"application/zip",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
}
