package platform

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"storageverifier/internal/locator"
)

const (
	mimeOctetStream = "application/octet-stream"
	// MimeDirectory is the document MIME type of folders.
	MimeDirectory = "vnd.android.document/directory"
)

// mediaExtensions covers the media formats the catalog accepts; the host's
// MIME tables usually lack most of them.
var mediaExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".heic": "image/heic",
	".heif": "image/heif",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".3gp":  "video/3gpp",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/x-wav",
	".flac": "audio/flac",
	".txt":  "text/plain",
}

// MimeForName derives a MIME type from a display name.
func MimeForName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := mediaExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		base, _, _ := strings.Cut(t, ";")
		return base
	}
	return mimeOctetStream
}

// DetectMime sniffs the MIME type of content.
func DetectMime(data []byte) string {
	base, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return base
}

// mimeForFile names the type of a host file: by name when the extension is
// known, by content otherwise.
func mimeForFile(name, host string) string {
	if t := MimeForName(name); t != mimeOctetStream {
		return t
	}
	m, err := mimetype.DetectFile(host)
	if err != nil {
		return mimeOctetStream
	}
	base, _, _ := strings.Cut(m.String(), ";")
	return base
}

// acceptsMime reports whether collection may hold items of type t.
func acceptsMime(collection, t string) bool {
	switch collection {
	case locator.CollectionDownloads:
		return true
	case locator.CollectionImages:
		return strings.HasPrefix(t, "image/")
	case locator.CollectionVideo:
		return strings.HasPrefix(t, "video/")
	case locator.CollectionAudio:
		return strings.HasPrefix(t, "audio/")
	}
	return false
}

func collectionKind(collection string) string {
	switch collection {
	case locator.CollectionImages:
		return "image"
	case locator.CollectionVideo:
		return "video"
	case locator.CollectionAudio:
		return "audio"
	}
	return collection
}
