package mediatypes

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

// FileType represents the role a file plays inside an annotated dataset.
type FileType string

const (
	// FileTypeImage is a collection image that can be paged through.
	FileTypeImage FileType = "image"
	// FileTypeLabels is a label sidecar (<base>.txt).
	FileTypeLabels FileType = "labels"
	// FileTypeDetections is a detection sidecar (<base>.det.txt).
	FileTypeDetections FileType = "detections"
	// FileTypeOther is anything the annotator ignores.
	FileTypeOther FileType = "other"
)

const (
	// LabelsSuffix is appended to an image's base name to form its label sidecar.
	LabelsSuffix = ".txt"
	// DetectionsSuffix is appended to an image's base name to form its detection sidecar.
	DetectionsSuffix = ".det.txt"
)

// CollectionExtensions maps lower-case extensions to whether they are
// indexed as collection images.
var CollectionExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".txt":  "text/plain; charset=utf-8",
}

// IsCollectionImage reports whether name has an indexed image extension.
// The comparison is case-insensitive.
func IsCollectionImage(name string) bool {
	return CollectionExtensions[strings.ToLower(filepath.Ext(name))]
}

// GetFileType classifies a file name.
func GetFileType(name string) FileType {
	lower := strings.ToLower(name)
	switch {
	case IsCollectionImage(lower):
		return FileTypeImage
	case strings.HasSuffix(lower, DetectionsSuffix):
		return FileTypeDetections
	case strings.HasSuffix(lower, LabelsSuffix):
		return FileTypeLabels
	default:
		return FileTypeOther
	}
}

// GetMimeType returns the MIME type for a file name or extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" && strings.HasPrefix(name, ".") {
		ext = strings.ToLower(name)
	}
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// BaseName returns the file name without directory and extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// DataURL encodes data as a base64 data URL for transport to a consumer
// that cannot read the file system directly.
func DataURL(mimeType string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mimeType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
