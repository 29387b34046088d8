package inspect

import (
	"mime"
	"path"
	"sort"
	"strings"
)

// Group patterns accepted by MatchesType in addition to "type/*" wildcards.
const (
	GroupDocuments = "document/*"
	GroupAll       = "*/*"
)

var documentTypes = setOf(
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain",
	"text/csv",
	"text/rtf",
)

func setOf(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

var extensionToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".heic": "image/heic",
	".avif": "image/avif",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".rtf":  "text/rtf",
	".json": "application/json",
	".xml":  "application/xml",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",

	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".md":   "text/markdown",
}

// preferred extensions where a MIME type has several
var mimeToExtension = map[string]string{
	"image/jpeg": "jpg",
	"image/tiff": "tiff",
	"text/html":  "html",
}

// MIMETypeForExtension returns the MIME type for an extension (with or
// without the leading dot). Unknown extensions consult the system table and
// return "" when nothing is found.
func MIMETypeForExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if m, ok := extensionToMIME[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		if idx := strings.Index(m, ";"); idx > 0 {
			m = m[:idx]
		}
		return m
	}
	return ""
}

// MIMETypeForPath returns the MIME type implied by the extension of p.
func MIMETypeForPath(p string) string {
	return MIMETypeForExtension(path.Ext(p))
}

// ExtensionForMIME returns the canonical extension (without dot) for a MIME
// type, or "".
func ExtensionForMIME(mimeType string) string {
	if ext, ok := mimeToExtension[mimeType]; ok {
		return ext
	}
	var candidates []string
	for ext, m := range extensionToMIME {
		if m == mimeType {
			candidates = append(candidates, ext)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return strings.TrimPrefix(candidates[0], ".")
}

// MatchesType reports whether mimeType satisfies pattern. Patterns are exact
// types, "type/*" wildcards, "*/*", or GroupDocuments. Parameters such as
// "; charset=utf-8" are ignored on both sides.
func MatchesType(pattern, mimeType string) bool {
	pattern = baseType(pattern)
	mimeType = baseType(mimeType)
	switch {
	case pattern == "" || mimeType == "":
		return false
	case pattern == GroupAll:
		return true
	case pattern == GroupDocuments:
		return documentTypes[mimeType]
	case strings.HasSuffix(pattern, "/*"):
		return strings.HasPrefix(mimeType, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == mimeType || aliases[pattern] == mimeType || aliases[mimeType] == pattern
	}
}

var aliases = map[string]string{
	"image/jpg":                "image/jpeg",
	"image/vnd.microsoft.icon": "image/x-icon",
	"text/xml":                 "application/xml",
	"audio/x-wav":              "audio/wav",
}

func baseType(m string) string {
	if idx := strings.Index(m, ";"); idx >= 0 {
		m = m[:idx]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
