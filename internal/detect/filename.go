package detect

import (
	"context"
	"mime"
	"path"
	"strings"
)

// extensionTypes takes precedence over the platform mime table so results
// do not depend on the host.
var extensionTypes = map[string]string{
	".txt":   "text/plain",
	".html":  "text/html",
	".htm":   "text/html",
	".xhtml": "application/xhtml+xml",
	".css":   "text/css",
	".js":    "application/javascript",
	".json":  "application/json",
	".xml":   "application/xml",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".mp3":   "audio/mpeg",
	".ogg":   "audio/ogg",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mkv":   "video/x-matroska",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
	".gz":    "application/gzip",
	".tar":   "application/x-tar",
	".csv":   "text/csv",
	".md":    "text/markdown",
	".doc":   "application/msword",
	".docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":   "application/vnd.ms-excel",
	".xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":   "application/vnd.ms-powerpoint",
	".pptx":  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".otf":   "font/otf",
}

// FilenameDetector guesses from the URL's extension. The query string is
// ignored.
type FilenameDetector struct{}

func (FilenameDetector) Name() string { return "filename" }

func (FilenameDetector) DetectType(_ context.Context, in Input) (string, error) {
	return TypeByURL(in.URL), nil
}

// TypeByURL returns the media type for the extension of u, or "".
func TypeByURL(u string) string {
	u, _, _ = strings.Cut(u, "?")
	ext := strings.ToLower(path.Ext(u))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return MediaType(mime.TypeByExtension(ext))
}
