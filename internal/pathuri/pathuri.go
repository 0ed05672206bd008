// Package pathuri maps filesystem paths onto the platform's locator space
// and back.
package pathuri

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"storageverifier/internal/locator"
)

const (
	// EmulatedRoot is the canonical root of the primary volume.
	EmulatedRoot = "/storage/emulated/0"
	// SdcardRoot is the legacy alias of EmulatedRoot.
	SdcardRoot = "/sdcard"

	appPrivateSubtree = "/Android/data"
	downloadFolder    = "Download"
)

// ErrNotSupported marks paths outside the space a route can address.
var ErrNotSupported = errors.New("NOT_SUPPORTED")

var collectionByFolder = map[string]string{
	"Download": locator.CollectionDownloads,
	"Pictures": locator.CollectionImages,
	"Movies":   locator.CollectionVideo,
	"Music":    locator.CollectionAudio,
}

var folderByCollection = map[string]string{
	locator.CollectionDownloads: "Download",
	locator.CollectionImages:    "Pictures",
	locator.CollectionVideo:     "Movies",
	locator.CollectionAudio:     "Music",
}

// EmulatedPath rewrites p onto EmulatedRoot.
func EmulatedPath(p string) (string, error) {
	switch {
	case strings.Contains(p, EmulatedRoot+"/"):
		return p, nil
	case strings.Contains(p, SdcardRoot+"/"):
		return strings.Replace(p, SdcardRoot+"/", EmulatedRoot+"/", 1), nil
	default:
		return "", fmt.Errorf("%w: path is not on the primary volume: %s", ErrNotSupported, p)
	}
}

// IsDirectory reports whether p is directory-shaped.
func IsDirectory(p string) bool {
	return strings.HasSuffix(p, "/")
}

// FolderPath returns the directory p denotes: p itself when it is
// directory-shaped, its parent otherwise.
func FolderPath(p string) string {
	if IsDirectory(p) {
		return path.Clean(p)
	}
	return path.Dir(p)
}

// SameFolder compares the folders of two paths on the primary volume,
// falling back to a plain comparison for paths outside it.
func SameFolder(a, b string) bool {
	ea, errA := EmulatedPath(a)
	eb, errB := EmulatedPath(b)
	if errA != nil || errB != nil {
		return FolderPath(a) == FolderPath(b)
	}
	return FolderPath(ea) == FolderPath(eb)
}

// Relative returns p relative to EmulatedRoot, without a leading slash.
func Relative(p string) (string, error) {
	e, err := EmulatedPath(p)
	if err != nil {
		return "", err
	}
	rel := strings.TrimPrefix(e[strings.Index(e, EmulatedRoot)+len(EmulatedRoot):], "/")
	return path.Clean("/" + rel)[1:], nil
}

// Absolute joins a volume-relative path onto EmulatedRoot.
func Absolute(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return EmulatedRoot
	}
	return EmulatedRoot + "/" + rel
}

// CollectionForPath returns the catalog collection p belongs to. Only
// paths under one of the four category folders of the primary volume are
// catalogued; the app-private subtree never is.
func CollectionForPath(p string) (string, error) {
	convert := p
	if strings.Contains(p, SdcardRoot+"/") {
		e, err := EmulatedPath(p)
		if err != nil {
			return "", err
		}
		convert = e
	}
	if !strings.Contains(convert, EmulatedRoot+"/") || strings.Contains(convert, appPrivateSubtree) {
		return "", fmt.Errorf("%w: catalog does not cover %s", ErrNotSupported, convert)
	}
	segments := strings.Split(convert, "/")
	if len(segments) <= 4 {
		return "", fmt.Errorf("%w: catalog does not cover %s", ErrNotSupported, convert)
	}
	collection, ok := collectionByFolder[segments[4]]
	if !ok {
		return "", fmt.Errorf("%w: catalog does not cover folder %q", ErrNotSupported, segments[4])
	}
	return collection, nil
}

// CollectionFolder returns the default folder new items of collection are
// placed in.
func CollectionFolder(collection string) string {
	return folderByCollection[collection]
}

// Index is the part of the content catalog the translator reads.
type Index interface {
	// ItemPath returns the stored path (or, if absent, the display name)
	// of a catalog row; "" when there is no such row.
	ItemPath(ctx context.Context, collection string, id int64) (string, error)
	// DownloadPath returns the stored value of a downloads side-table row;
	// "" when there is no such row.
	DownloadPath(ctx context.Context, id int64) (string, error)
}

// Translator turns locators back into paths.
type Translator struct {
	index Index
}

// NewTranslator returns a Translator backed by index.
func NewTranslator(index Index) *Translator {
	return &Translator{index: index}
}

// Path returns the filesystem path l denotes. ok is false when l has no
// path (remote documents, unknown volumes, missing rows); that is not an
// error. err reports lookup failures only.
func (t *Translator) Path(ctx context.Context, l locator.Locator) (string, bool, error) {
	l = l.Base()
	switch l.Kind() {
	case locator.KindFile:
		p, ok := l.FilePath()
		return p, ok, nil

	case locator.KindDocument, locator.KindTree:
		docID, _ := l.DocumentID()
		volume, rel, ok := locator.SplitDocID(docID)
		if !ok || !strings.EqualFold(volume, locator.PrimaryVolume) {
			return "", false, nil
		}
		return Absolute(rel), true, nil

	case locator.KindDownloadsDocument:
		docID, _ := l.DocumentID()
		if raw, ok := strings.CutPrefix(docID, "raw:"); ok {
			return raw, true, nil
		}
		id, err := strconv.ParseInt(docID, 10, 64)
		if err != nil {
			return "", false, nil
		}
		data, err := t.index.DownloadPath(ctx, id)
		if err != nil || data == "" {
			return "", false, err
		}
		if strings.HasPrefix(data, "/storage/emulated") {
			return data, true, nil
		}
		return Absolute(downloadFolder + "/" + data), true, nil

	case locator.KindMediaDocument:
		collection, id, ok := l.MediaDocument()
		if !ok {
			return "", false, nil
		}
		return t.itemPath(ctx, collection, id)

	case locator.KindMediaItem:
		collection, id, _ := l.MediaItem()
		return t.itemPath(ctx, collection, id)
	}
	return "", false, nil
}

func (t *Translator) itemPath(ctx context.Context, collection string, id int64) (string, bool, error) {
	p, err := t.index.ItemPath(ctx, collection, id)
	if err != nil || p == "" {
		return "", false, err
	}
	return p, true, nil
}

// NumberedName returns the n-th collision alternative of name:
// "a.txt" -> "a (1).txt". n == 0 returns name unchanged.
func NumberedName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	return fmt.Sprintf("%s (%d)%s", stem, n, ext)
}

// DocumentLocator returns the external-storage document locator of a path
// on the primary volume.
func DocumentLocator(p string) (locator.Locator, error) {
	rel, err := Relative(p)
	if err != nil {
		return "", err
	}
	return locator.Document(locator.ExternalStorageAuthority, locator.PrimaryDocID(rel)), nil
}

// FolderLocator returns the document locator of the folder holding p, the
// initial location offered to a picker.
func FolderLocator(p string) (locator.Locator, error) {
	rel, err := Relative(FolderPath(p) + "/")
	if err != nil {
		return "", err
	}
	return locator.Document(locator.ExternalStorageAuthority, locator.PrimaryDocID(rel)), nil
}
