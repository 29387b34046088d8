package inspect

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/gobeaver/fgen/storage/memory"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = f.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectMIMEFromBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, OctetStream},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "image/jpeg"},
		{"gif", []byte("GIF89a...."), "image/gif"},
		{"pdf", []byte("%PDF-1.7\n"), "application/pdf"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "audio/wav"},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A \x00"), "audio/mp4"},
		{"json object", []byte(`  {"a": 1}`), "application/json"},
		{"html", []byte("<html><body></body></html>"), "text/html"},
		{"plain text", []byte("just words"), "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEFromBytes(tt.data); got != tt.want {
				t.Errorf("DetectMIMEFromBytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectMIMEPNGAndDocx(t *testing.T) {
	got, err := DetectMIME(bytes.NewReader(pngBytes(t, 2, 2)))
	if err != nil || got != "image/png" {
		t.Errorf("png: got %q, %v", got, err)
	}

	docx := zipBytes(t, map[string]string{"word/document.xml": "<w/>"})
	if got := DetectMIMEFromBytes(docx); !strings.Contains(got, "wordprocessingml") {
		t.Errorf("docx: got %q", got)
	}
}

func TestMIMETypeForExtension(t *testing.T) {
	tests := map[string]string{
		"jpg":   "image/jpeg",
		".JPEG": "image/jpeg",
		".csv":  "text/csv",
		"":      "",
		".zzz9": "",
	}
	for ext, want := range tests {
		if got := MIMETypeForExtension(ext); got != want {
			t.Errorf("MIMETypeForExtension(%q) = %q, want %q", ext, got, want)
		}
	}
	if got := MIMETypeForPath("dir/photo.PNG"); got != "image/png" {
		t.Errorf("MIMETypeForPath = %q", got)
	}
}

func TestExtensionForMIME(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":      "jpg",
		"application/pdf": "pdf",
		"text/html":       "html",
		"x-unknown/type":  "",
	}
	for m, want := range tests {
		if got := ExtensionForMIME(m); got != want {
			t.Errorf("ExtensionForMIME(%q) = %q, want %q", m, got, want)
		}
	}
}

func TestMatchesType(t *testing.T) {
	tests := []struct {
		pattern, mime string
		want          bool
	}{
		{"image/png", "image/png", true},
		{"image/*", "image/gif", true},
		{"image/*", "video/mp4", false},
		{"*/*", "anything/else", true},
		{"document/*", "application/pdf", true},
		{"document/*", "image/png", false},
		{"image/jpg", "image/jpeg", true},
		{"text/plain", "text/plain; charset=utf-8", true},
		{"", "image/png", false},
	}
	for _, tt := range tests {
		if got := MatchesType(tt.pattern, tt.mime); got != tt.want {
			t.Errorf("MatchesType(%q, %q) = %v, want %v", tt.pattern, tt.mime, got, tt.want)
		}
	}
}

func TestImageValidator(t *testing.T) {
	v := DefaultImageValidator()
	data := pngBytes(t, 4, 3)
	if err := v.ValidateContent(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Errorf("valid png rejected: %v", err)
	}

	v.MaxWidth = 2
	err := v.ValidateContent(bytes.NewReader(data), int64(len(data)))
	if !IsErrorOfType(err, ErrorTypeContent) {
		t.Errorf("expected content error, got %v", err)
	}

	garbage := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}
	if err := DefaultImageValidator().ValidateContent(bytes.NewReader(garbage), 11); err == nil {
		t.Error("truncated png accepted")
	}
}

func TestPDFValidator(t *testing.T) {
	v := DefaultPDFValidator()
	good := []byte("%PDF-1.4\n1 0 obj\nendobj\n%%EOF\n")
	if err := v.ValidateContent(bytes.NewReader(good), int64(len(good))); err != nil {
		t.Errorf("valid pdf rejected: %v", err)
	}
	if err := v.ValidateContent(strings.NewReader(string(good)), int64(len(good))); err != nil {
		t.Errorf("valid pdf rejected from plain reader: %v", err)
	}
	bad := []byte("%PDF-1.4\ntruncated")
	if err := v.ValidateContent(bytes.NewReader(bad), int64(len(bad))); err == nil {
		t.Error("pdf without trailer accepted")
	}
}

func TestZipValidator(t *testing.T) {
	v := DefaultZipValidator()
	good := zipBytes(t, map[string]string{"a.txt": "hello"})
	if err := v.ValidateContent(bytes.NewReader(good), int64(len(good))); err != nil {
		t.Errorf("valid zip rejected: %v", err)
	}

	evil := zipBytes(t, map[string]string{"../etc/passwd": "x"})
	if err := v.ValidateContent(bytes.NewReader(evil), int64(len(evil))); err == nil {
		t.Error("path traversal entry accepted")
	}

	v.MaxFiles = 1
	two := zipBytes(t, map[string]string{"a": "1", "b": "2"})
	if err := v.ValidateContent(bytes.NewReader(two), int64(len(two))); err == nil {
		t.Error("file count limit ignored")
	}
}

func TestJSONValidator(t *testing.T) {
	v := DefaultJSONValidator()
	if err := v.ValidateContent(strings.NewReader(`{"ok":true}`), 11); err != nil {
		t.Errorf("valid json rejected: %v", err)
	}
	if err := v.ValidateContent(strings.NewReader(`{"ok":`), 6); !IsValidationError(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if r.Validator("image/png") == nil || r.Validator("application/pdf") == nil {
		t.Fatal("default validators missing")
	}
	if r.Validator("video/mp4") != nil {
		t.Error("unexpected validator for video/mp4")
	}
	if err := r.ValidateContent("video/mp4", strings.NewReader("x"), 1); err != nil {
		t.Errorf("types without a validator should pass, got %v", err)
	}
}

func TestInspectors(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	_ = src.Write(ctx, "real.png", bytes.NewReader(pngBytes(t, 2, 2)))
	_ = src.Write(ctx, "fake.png", strings.NewReader("not an image at all"))
	_ = src.Write(ctx, "broken.json", strings.NewReader(`{"a": [1, 2`))

	magic := NewMagicInspector()
	if ok, err := magic.Check(ctx, src, "real.png", "image/png"); !ok || err != nil {
		t.Errorf("magic real.png = %v, %v", ok, err)
	}
	if ok, _ := magic.Check(ctx, src, "fake.png", "image/png"); ok {
		t.Error("magic accepted text disguised as png")
	}

	images := NewMagicInspector("image/*")
	if ok, _ := images.Check(ctx, src, "real.png", "whatever"); !ok {
		t.Error("accept pattern ignored")
	}

	content := NewContentInspector()
	if ok, err := content.Check(ctx, src, "real.png", "image/png"); !ok || err != nil {
		t.Errorf("content real.png = %v, %v", ok, err)
	}
	ok, err := content.Check(ctx, src, "broken.json", "application/json")
	if ok || !IsValidationError(err) {
		t.Errorf("content broken.json = %v, %v", ok, err)
	}

	if _, err := magic.Check(ctx, src, "missing.png", "image/png"); err == nil {
		t.Error("missing file should return an error")
	}
}
