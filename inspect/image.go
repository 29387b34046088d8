package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// ImageValidator checks that an image header decodes and that its
// dimensions are within bounds. Only the header is read.
type ImageValidator struct {
	MaxWidth   int
	MaxHeight  int
	MaxPixels  int
	MinWidth   int
	MinHeight  int
	AllowSVG   bool
	MaxSVGSize int64
}

// DefaultImageValidator creates an image validator with sensible defaults
func DefaultImageValidator() *ImageValidator {
	return &ImageValidator{
		MaxWidth:   10000,
		MaxHeight:  10000,
		MaxPixels:  50000000,
		MinWidth:   1,
		MinHeight:  1,
		AllowSVG:   true,
		MaxSVGSize: 5 * MB,
	}
}

// ValidateContent implements ContentValidator.
func (v *ImageValidator) ValidateContent(reader io.Reader, size int64) error {
	header := make([]byte, 1024)
	n, err := io.ReadFull(reader, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return NewValidationError(ErrorTypeContent, "failed to read image header")
	}
	header = header[:n]

	if bytes.Contains(header, []byte("<svg")) {
		if !v.AllowSVG {
			return NewValidationError(ErrorTypeContent, "SVG files are not allowed")
		}
		if size > v.MaxSVGSize {
			return NewValidationError(ErrorTypeContent,
				fmt.Sprintf("SVG file size %d exceeds maximum %d", size, v.MaxSVGSize))
		}
		return nil
	}

	cfg, _, err := image.DecodeConfig(io.MultiReader(bytes.NewReader(header), reader))
	if err != nil {
		return NewValidationError(ErrorTypeContent, fmt.Sprintf("cannot decode image: %v", err))
	}

	switch {
	case cfg.Width > v.MaxWidth:
		return NewValidationError(ErrorTypeContent,
			fmt.Sprintf("image width %d exceeds maximum %d", cfg.Width, v.MaxWidth))
	case cfg.Height > v.MaxHeight:
		return NewValidationError(ErrorTypeContent,
			fmt.Sprintf("image height %d exceeds maximum %d", cfg.Height, v.MaxHeight))
	case cfg.Width < v.MinWidth:
		return NewValidationError(ErrorTypeContent,
			fmt.Sprintf("image width %d below minimum %d", cfg.Width, v.MinWidth))
	case cfg.Height < v.MinHeight:
		return NewValidationError(ErrorTypeContent,
			fmt.Sprintf("image height %d below minimum %d", cfg.Height, v.MinHeight))
	case cfg.Width*cfg.Height > v.MaxPixels:
		return NewValidationError(ErrorTypeContent,
			fmt.Sprintf("total pixels %d exceeds maximum %d", cfg.Width*cfg.Height, v.MaxPixels))
	}
	return nil
}

// SupportedMIMETypes implements ContentValidator. Only formats with a
// registered decoder are listed.
func (v *ImageValidator) SupportedMIMETypes() []string {
	types := []string{"image/jpeg", "image/png", "image/gif"}
	if v.AllowSVG {
		types = append(types, "image/svg+xml")
	}
	return types
}
