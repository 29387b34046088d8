package inspect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gobeaver/fgen/storage"
)

// MagicInspector accepts a file when the MIME type detected from its
// content matches the expected type. When Accept is set the detected type
// must match one of its patterns instead.
type MagicInspector struct {
	Accept []string
}

// NewMagicInspector creates an inspector that accepts the given patterns.
// With no patterns it compares against the expected type.
func NewMagicInspector(accept ...string) *MagicInspector {
	return &MagicInspector{Accept: accept}
}

// Check implements the dispatcher's inspector contract.
func (i *MagicInspector) Check(ctx context.Context, src storage.FileReader, path, expectedType string) (bool, error) {
	detected, err := detectFile(ctx, src, path)
	if err != nil {
		return false, err
	}
	return matchesAny(i.Accept, expectedType, detected), nil
}

// ContentInspector runs the MIME comparison of MagicInspector and then the
// content validator registered for the detected type.
type ContentInspector struct {
	MagicInspector

	// Registry supplies validators; DefaultRegistry is used when nil.
	Registry *Registry

	// MaxSize bounds how much of the file is buffered for validation.
	MaxSize int64
}

// NewContentInspector creates a ContentInspector with the default registry.
func NewContentInspector(accept ...string) *ContentInspector {
	return &ContentInspector{
		MagicInspector: MagicInspector{Accept: accept},
		Registry:       DefaultRegistry(),
		MaxSize:        64 * MB,
	}
}

// Check implements the dispatcher's inspector contract. A validator
// rejection is reported as (false, *ValidationError).
func (i *ContentInspector) Check(ctx context.Context, src storage.FileReader, path, expectedType string) (bool, error) {
	rc, err := src.Read(ctx, path)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	limit := i.MaxSize
	if limit <= 0 {
		limit = 64 * MB
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return false, err
	}
	if int64(len(data)) > limit {
		return false, NewValidationError(ErrorTypeSize, fmt.Sprintf("file exceeds inspection limit of %d bytes", limit))
	}

	detected := withExtension(DetectMIMEFromBytes(head(data)), path)
	if !matchesAny(i.Accept, expectedType, detected) {
		return false, nil
	}

	registry := i.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	if err := registry.ValidateContent(detected, bytes.NewReader(data), int64(len(data))); err != nil {
		return false, err
	}
	return true, nil
}

// DetectFile detects the MIME type of a stored file. Content that sniffs as
// generic text or binary falls back to the extension table.
func DetectFile(ctx context.Context, src storage.FileReader, path string) (string, error) {
	return detectFile(ctx, src, path)
}

func detectFile(ctx context.Context, src storage.FileReader, path string) (string, error) {
	rc, err := src.Read(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	detected, err := DetectMIME(rc)
	if err != nil {
		return "", err
	}
	return withExtension(detected, path), nil
}

// withExtension replaces generic sniffing results with the type implied by
// the extension of path. Text content only takes textual extension types.
func withExtension(detected, path string) string {
	byExt := MIMETypeForPath(path)
	switch {
	case byExt == "":
		return detected
	case detected == OctetStream:
		return byExt
	case detected == "text/plain" && isTextual(byExt):
		return byExt
	default:
		return detected
	}
}

func isTextual(m string) bool {
	switch {
	case strings.HasPrefix(m, "text/"):
		return true
	case m == "application/json", m == "application/xml", m == "image/svg+xml":
		return true
	default:
		return false
	}
}

func head(data []byte) []byte {
	if len(data) > HeaderSize {
		return data[:HeaderSize]
	}
	return data
}

func matchesAny(accept []string, expectedType, detected string) bool {
	if len(accept) == 0 {
		return MatchesType(expectedType, detected)
	}
	for _, pattern := range accept {
		if MatchesType(pattern, detected) {
			return true
		}
	}
	return false
}
