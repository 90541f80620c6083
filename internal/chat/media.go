package chat

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaOther    MediaKind = "other"
)

var mediaKinds = map[string]MediaKind{
	"png": MediaImage, "jpeg": MediaImage, "jpg": MediaImage, "svg": MediaImage,
	"mp4": MediaVideo, "mov": MediaVideo,
	"mp3": MediaAudio, "wav": MediaAudio,
	"pdf": MediaDocument, "doc": MediaDocument, "docx": MediaDocument,
	"xlsx": MediaDocument, "csv": MediaDocument, "txt": MediaDocument,
}

// MediaTypeForFile derives the media_type sent with an upload: the
// lower-cased extension with its dot, or "" when there is none.
func MediaTypeForFile(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ClassifyMedia accepts either an extension (".png", "png") or a MIME type
// ("image/png").
func ClassifyMedia(mediaType string) MediaKind {
	ext := strings.ToLower(mediaType)
	if i := strings.LastIndex(ext, "/"); i >= 0 {
		ext = ext[i+1:]
	}
	ext = strings.TrimPrefix(ext, ".")

	if kind, ok := mediaKinds[ext]; ok {
		return kind
	}
	return MediaOther
}

var (
	uploadPrefix    = regexp.MustCompile(`^\d{8}_\d{6}_(.+)$`)
	reportDateRange = regexp.MustCompile(`_\d{4}-\d{2}-\d{2}_to_\d{4}-\d{2}-\d{2}`)
)

// DisplayFileName turns a stored media URL into a readable file name: the
// last path segment, unescaped, without its extension, the
// "YYYYMMDD_HHMMSS_" prefix the upload service adds or a
// "_YYYY-MM-DD_to_YYYY-MM-DD" report range.
func DisplayFileName(mediaURL string) string {
	raw := mediaURL
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	name := path.Base(raw)
	if name == "." || name == "/" || name == "" {
		return "File"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if m := uploadPrefix.FindStringSubmatch(name); m != nil {
		name = m[1]
	}
	if loc := reportDateRange.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + name[loc[1]:]
	}
	return name
}
