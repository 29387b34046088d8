package inspect

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// HeaderSize is the number of leading bytes read for detection.
const HeaderSize = 512

// OctetStream is reported when nothing better is known.
const OctetStream = "application/octet-stream"

type signature struct {
	mime   string
	offset int
	magic  []byte
}

// Ordered by specificity. RIFF and ftyp containers are refined afterwards.
var signatures = []signature{
	{"image/jpeg", 0, []byte{0xFF, 0xD8, 0xFF}},
	{"image/png", 0, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{"image/gif", 0, []byte("GIF87a")},
	{"image/gif", 0, []byte("GIF89a")},
	{"image/bmp", 0, []byte("BM")},
	{"image/tiff", 0, []byte{0x49, 0x49, 0x2A, 0x00}},
	{"image/tiff", 0, []byte{0x4D, 0x4D, 0x00, 0x2A}},
	{"image/x-icon", 0, []byte{0x00, 0x00, 0x01, 0x00}},
	{"image/heic", 4, []byte("ftypheic")},
	{"image/heic", 4, []byte("ftypmif1")},
	{"image/avif", 4, []byte("ftypavif")},

	{"application/pdf", 0, []byte("%PDF-")},

	{"application/zip", 0, []byte{'P', 'K', 0x03, 0x04}},
	{"application/zip", 0, []byte{'P', 'K', 0x05, 0x06}},
	{"application/gzip", 0, []byte{0x1F, 0x8B}},
	{"application/x-tar", 257, []byte("ustar")},
	{"application/x-7z-compressed", 0, []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}},
	{"application/x-bzip2", 0, []byte("BZh")},
	{"application/x-xz", 0, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}},

	{"audio/mpeg", 0, []byte("ID3")},
	{"audio/flac", 0, []byte("fLaC")},
	{"audio/ogg", 0, []byte("OggS")},
	{"audio/midi", 0, []byte("MThd")},
	{"audio/wav", 0, []byte("RIFF")},

	{"video/webm", 0, []byte{0x1A, 0x45, 0xDF, 0xA3}},
	{"video/mp4", 4, []byte("ftyp")},
	{"video/x-flv", 0, []byte("FLV")},

	{"application/xml", 0, []byte("<?xml")},
	{"text/html", 0, []byte("<!DOCTYPE html")},
	{"text/html", 0, []byte("<!doctype html")},
	{"text/html", 0, []byte("<html")},

	{"application/x-msdownload", 0, []byte("MZ")},
	{"application/x-executable", 0, []byte{0x7F, 'E', 'L', 'F'}},

	{"font/woff", 0, []byte("wOFF")},
	{"font/woff2", 0, []byte("wOF2")},
}

// DetectMIME reads up to HeaderSize bytes from r and detects the MIME type.
func DetectMIME(r io.Reader) (string, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", NewValidationError(ErrorTypeMIME, "failed to read file for MIME detection")
	}
	return DetectMIMEFromBytes(buf[:n]), nil
}

// DetectMIMEFromBytes detects the MIME type of a file header. Empty input is
// reported as OctetStream.
func DetectMIMEFromBytes(data []byte) string {
	if len(data) == 0 {
		return OctetStream
	}

	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if end <= len(data) && bytes.Equal(data[sig.offset:end], sig.magic) {
			return refine(data, sig.mime)
		}
	}

	if looksLikeJSON(data) {
		return "application/json"
	}

	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = contentType[:idx]
	}
	return contentType
}

func refine(data []byte, mime string) string {
	switch mime {
	case "audio/wav":
		if len(data) >= 12 {
			switch string(data[8:12]) {
			case "AVI ":
				return "video/x-msvideo"
			case "WEBP":
				return "image/webp"
			}
		}
	case "application/zip":
		content := string(data)
		switch {
		case strings.Contains(content, "word/"):
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		case strings.Contains(content, "xl/"):
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		case strings.Contains(content, "ppt/"):
			return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
		}
	case "video/mp4":
		if len(data) >= 12 {
			switch string(data[8:12]) {
			case "M4A ":
				return "audio/mp4"
			case "qt  ":
				return "video/quicktime"
			case "3gp4", "3gp5", "3gp6":
				return "video/3gpp"
			}
		}
	}
	return mime
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	// a bare bracket followed by binary noise is not JSON
	return !bytes.ContainsRune(trimmed, 0)
}
