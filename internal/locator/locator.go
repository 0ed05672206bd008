// Package locator models the opaque resource handles the platform grants
// for storage objects. A Locator is not a path: turning one back into a
// path is the job of pathuri.Translator and may legitimately fail.
package locator

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	SchemeContent = "content"
	SchemeFile    = "file"

	// MediaAuthority owns catalog item locators.
	MediaAuthority = "media"
	// ExternalStorageAuthority owns documents addressed as "volume:relativePath".
	ExternalStorageAuthority = "com.android.externalstorage.documents"
	// DownloadsAuthority owns documents addressed by a numeric downloads id.
	DownloadsAuthority = "com.android.providers.downloads.documents"
	// MediaDocumentsAuthority owns documents addressed as "type:id".
	MediaDocumentsAuthority = "com.android.providers.media.documents"
	// CloudAuthority owns remote documents with no local path.
	CloudAuthority = "storageverifier.cloud.documents"

	// PrimaryVolume is the volume name of the emulated primary storage.
	PrimaryVolume = "primary"

	requireOriginalParam = "requireOriginal"
)

// Kind classifies a locator by the route that serves it.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindMediaItem
	KindDocument
	KindTree
	KindDownloadsDocument
	KindMediaDocument
	KindCloudDocument
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindMediaItem:
		return "media-item"
	case KindDocument:
		return "document"
	case KindTree:
		return "tree"
	case KindDownloadsDocument:
		return "downloads-document"
	case KindMediaDocument:
		return "media-document"
	case KindCloudDocument:
		return "cloud-document"
	default:
		return "unknown"
	}
}

// Collection names of the content catalog.
const (
	CollectionDownloads = "downloads"
	CollectionImages    = "images"
	CollectionVideo     = "video"
	CollectionAudio     = "audio"
)

// Locator is an opaque platform handle, e.g.
// content://media/external/images/media/42.
type Locator string

func (l Locator) String() string { return string(l) }

// File returns the identity locator of a filesystem path.
func File(path string) Locator {
	return Locator(SchemeFile + "://" + path)
}

// MediaItem returns the catalog locator of row id in collection.
func MediaItem(collection string, id int64) Locator {
	return Locator(CollectionURI(collection) + "/" + strconv.FormatInt(id, 10))
}

// CollectionURI returns the base locator of a catalog collection.
func CollectionURI(collection string) string {
	base := SchemeContent + "://" + MediaAuthority + "/external/"
	if collection == CollectionDownloads {
		return base + collection
	}
	return base + collection + "/media"
}

// Document returns a single-document locator.
func Document(authority, docID string) Locator {
	return Locator(SchemeContent + "://" + authority + "/document/" + escapeID(docID))
}

// Tree returns a tree (directory grant) locator.
func Tree(authority, docID string) Locator {
	return Locator(SchemeContent + "://" + authority + "/tree/" + escapeID(docID))
}

// DocumentInTree returns the locator of docID addressed through a tree grant.
func DocumentInTree(tree Locator, docID string) (Locator, error) {
	treeID, ok := tree.TreeID()
	if !ok {
		return "", fmt.Errorf("invalid tree locator: %s", tree)
	}
	return Locator(SchemeContent + "://" + tree.Authority() + "/tree/" + escapeID(treeID) + "/document/" + escapeID(docID)), nil
}

// PrimaryDocID returns the external-storage document id of a
// volume-relative path.
func PrimaryDocID(rel string) string {
	return PrimaryVolume + ":" + strings.TrimPrefix(rel, "/")
}

func escapeID(id string) string {
	return strings.ReplaceAll(url.PathEscape(id), ":", "%3A")
}

func (l Locator) parse() (*url.URL, []string, bool) {
	u, err := url.Parse(string(l))
	if err != nil {
		return nil, nil, false
	}
	raw := strings.Trim(u.EscapedPath(), "/")
	if raw == "" {
		return u, nil, true
	}
	parts := strings.Split(raw, "/")
	for i, p := range parts {
		s, err := url.PathUnescape(p)
		if err != nil {
			return nil, nil, false
		}
		parts[i] = s
	}
	return u, parts, true
}

// Scheme returns the locator scheme.
func (l Locator) Scheme() string {
	scheme, _, ok := strings.Cut(string(l), "://")
	if !ok {
		return ""
	}
	return scheme
}

// Authority returns the owning authority of a content locator.
func (l Locator) Authority() string {
	u, _, ok := l.parse()
	if !ok {
		return ""
	}
	return u.Host
}

// Kind classifies l.
func (l Locator) Kind() Kind {
	if strings.HasPrefix(string(l), SchemeFile+"://") {
		return KindFile
	}
	u, parts, ok := l.parse()
	if !ok {
		return KindUnknown
	}
	if u.Scheme != SchemeContent {
		return KindUnknown
	}
	switch u.Host {
	case MediaAuthority:
		if _, _, ok := l.MediaItem(); ok {
			return KindMediaItem
		}
	case ExternalStorageAuthority:
		if len(parts) == 2 && parts[0] == "tree" {
			return KindTree
		}
		if _, ok := l.DocumentID(); ok {
			return KindDocument
		}
	case DownloadsAuthority:
		if _, ok := l.DocumentID(); ok {
			return KindDownloadsDocument
		}
	case MediaDocumentsAuthority:
		if _, ok := l.DocumentID(); ok {
			return KindMediaDocument
		}
	case CloudAuthority:
		if _, ok := l.DocumentID(); ok {
			return KindCloudDocument
		}
	}
	return KindUnknown
}

// IsDocument reports whether l is served by a document provider.
func (l Locator) IsDocument() bool {
	switch l.Kind() {
	case KindDocument, KindTree, KindDownloadsDocument, KindMediaDocument, KindCloudDocument:
		return true
	}
	return false
}

// FilePath returns the path of a file locator. File locators carry the
// path verbatim.
func (l Locator) FilePath() (string, bool) {
	p, ok := strings.CutPrefix(string(l), SchemeFile+"://")
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// MediaItem returns the collection and row id of a catalog locator.
func (l Locator) MediaItem() (string, int64, bool) {
	u, parts, ok := l.parse()
	if !ok || u.Scheme != SchemeContent || u.Host != MediaAuthority || len(parts) < 3 || parts[0] != "external" {
		return "", 0, false
	}
	var collection, idPart string
	switch {
	case len(parts) == 3 && parts[1] == CollectionDownloads:
		collection, idPart = CollectionDownloads, parts[2]
	case len(parts) == 4 && parts[2] == "media":
		switch parts[1] {
		case CollectionImages, CollectionVideo, CollectionAudio:
			collection, idPart = parts[1], parts[3]
		default:
			return "", 0, false
		}
	default:
		return "", 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id < 0 {
		return "", 0, false
	}
	return collection, id, true
}

// MediaDocument returns the catalog collection and row id a media
// document ("image:42") stands for.
func (l Locator) MediaDocument() (string, int64, bool) {
	if l.Kind() != KindMediaDocument {
		return "", 0, false
	}
	docID, _ := l.DocumentID()
	kind, idPart, ok := SplitDocID(docID)
	if !ok {
		return "", 0, false
	}
	var collection string
	switch kind {
	case "image":
		collection = CollectionImages
	case "video":
		collection = CollectionVideo
	case "audio":
		collection = CollectionAudio
	default:
		return "", 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id < 0 {
		return "", 0, false
	}
	return collection, id, true
}

// DocumentID returns the document id of a document locator, including a
// document addressed through a tree grant. For a bare tree locator it
// returns the tree id, which is also the id of the tree root document.
func (l Locator) DocumentID() (string, bool) {
	u, parts, ok := l.parse()
	if !ok || u.Scheme != SchemeContent {
		return "", false
	}
	switch {
	case len(parts) == 2 && (parts[0] == "document" || parts[0] == "tree"):
		return parts[1], parts[1] != ""
	case len(parts) == 4 && parts[0] == "tree" && parts[2] == "document":
		return parts[3], parts[3] != ""
	}
	return "", false
}

// TreeID returns the tree id of a tree locator (or of a document reached
// through one).
func (l Locator) TreeID() (string, bool) {
	_, parts, ok := l.parse()
	if !ok || len(parts) < 2 || parts[0] != "tree" {
		return "", false
	}
	return parts[1], parts[1] != ""
}

// LastSegment returns the final path segment of l.
func (l Locator) LastSegment() string {
	_, parts, ok := l.parse()
	if !ok || len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// WithOriginal marks l as requesting the unrestricted original content.
func (l Locator) WithOriginal() Locator {
	if l.Kind() == KindFile || l.RequiresOriginal() {
		return l
	}
	sep := "?"
	if strings.Contains(string(l), "?") {
		sep = "&"
	}
	return Locator(string(l) + sep + requireOriginalParam + "=1")
}

// RequiresOriginal reports whether l carries the original-content marker.
func (l Locator) RequiresOriginal() bool {
	if l.Kind() == KindFile {
		return false
	}
	u, _, ok := l.parse()
	return ok && u.Query().Get(requireOriginalParam) == "1"
}

// Base strips query parameters from l.
func (l Locator) Base() Locator {
	if l.Kind() == KindFile {
		return l
	}
	s := string(l)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return Locator(s[:i])
	}
	return l
}

// SplitDocID splits "volume:rel" or "type:id".
func SplitDocID(docID string) (string, string, bool) {
	head, tail, ok := strings.Cut(docID, ":")
	return head, tail, ok
}
