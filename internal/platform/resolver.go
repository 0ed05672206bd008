package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/catalog"
	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
)

// Row is one result row of a query, keyed by column name.
type Row map[string]any

// Int64 returns an integer column; a column the row lacks is an error.
func (r Row) Int64(col string) (int64, error) {
	v, ok := r[col]
	if !ok {
		return 0, fmt.Errorf("column '%s' does not exist", col)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("column '%s' is not an integer", col)
}

// String returns a text column; a column the row lacks is an error.
func (r Row) String(col string) (string, error) {
	v, ok := r[col]
	if !ok {
		return "", fmt.Errorf("column '%s' does not exist", col)
	}
	s, _ := v.(string)
	return s, nil
}

// ContentResolver routes content operations on any locator to its owner.
type ContentResolver struct {
	pc *Context
}

func notFound(op string, l locator.Locator) error {
	return &fs.PathError{Op: op, Path: string(l), Err: fs.ErrNotExist}
}

func denied(op string, l locator.Locator) error {
	return &fs.PathError{Op: op, Path: string(l), Err: fs.ErrPermission}
}

// Item returns the visible catalog row behind a media item or media
// document locator, or nil.
func (r *ContentResolver) Item(ctx context.Context, l locator.Locator) (*catalog.Item, error) {
	l = l.Base()
	collection, id, ok := l.MediaItem()
	if !ok {
		collection, id, ok = l.MediaDocument()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a catalog item", ErrUnsupportedLocator, l)
	}
	item, err := r.pc.Catalog.Get(ctx, collection, id)
	if err != nil || item == nil {
		return nil, err
	}
	item, err = r.refresh(ctx, item)
	if err != nil || item == nil {
		return nil, err
	}
	if !r.pc.visible(item) {
		return nil, nil
	}
	return item, nil
}

// refresh brings a row in line with its file, dropping rows whose file is
// gone.
func (r *ContentResolver) refresh(ctx context.Context, item *catalog.Item) (*catalog.Item, error) {
	fi, err := os.Stat(r.pc.Volume.HostPath(item.Data))
	if errors.Is(err, fs.ErrNotExist) {
		if _, err := r.pc.Catalog.Delete(ctx, item.Collection, item.ID); err != nil {
			return nil, err
		}
		if err := r.pc.Catalog.ForgetDownload(ctx, item.Data); err != nil {
			return nil, err
		}
		r.pc.Log.WithField("data", item.Data).Debug("catalog row dropped, file is gone")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fi.Size() != item.Size || fi.ModTime().Unix() != item.DateModified {
		item.Size, item.DateModified = fi.Size(), fi.ModTime().Unix()
		if err := r.pc.Catalog.Touch(ctx, item.ID, item.Size, item.DateModified); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// original strips the original-content marker, refusing it where the
// worker lacks the capability.
func (r *ContentResolver) original(l locator.Locator) (locator.Locator, error) {
	if !l.RequiresOriginal() {
		return l, nil
	}
	base := l.Base()
	switch base.Kind() {
	case locator.KindMediaItem, locator.KindMediaDocument:
		if !r.pc.Grants.MediaLocation {
			return "", fmt.Errorf("%w: media_location grant required for the original content of %s", ErrCapability, base)
		}
		return base, nil
	}
	return "", fmt.Errorf("%w: original content is only defined for catalog items, not %s", ErrCapability, base)
}

// hostFile returns the host file behind a volume-backed locator, with the
// catalog row when there is one.
func (r *ContentResolver) hostFile(ctx context.Context, l locator.Locator) (string, *catalog.Item, error) {
	switch l.Kind() {
	case locator.KindFile:
		p, _ := l.FilePath()
		return r.pc.Volume.HostPath(p), nil, nil
	case locator.KindMediaItem, locator.KindMediaDocument:
		item, err := r.Item(ctx, l)
		if err != nil {
			return "", nil, err
		}
		if item == nil {
			return "", nil, notFound("open", l)
		}
		return r.pc.Volume.HostPath(item.Data), item, nil
	case locator.KindDocument, locator.KindTree, locator.KindDownloadsDocument:
		p, ok, err := r.pc.Paths.Path(ctx, l)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, notFound("open", l)
		}
		return r.pc.Volume.HostPath(p), nil, nil
	case locator.KindCloudDocument:
		return "", nil, fmt.Errorf("%w: remote document %s has no local file", ErrUnsupportedLocator, l)
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, l)
}

// OpenInput opens the content of l for reading.
func (r *ContentResolver) OpenInput(ctx context.Context, l locator.Locator) (io.ReadCloser, error) {
	l, err := r.original(l)
	if err != nil {
		return nil, err
	}
	switch l.Kind() {
	case locator.KindCloudDocument:
		if r.pc.Cloud == nil {
			return nil, ErrNoCloud
		}
		key, _ := l.DocumentID()
		return r.pc.Cloud.Open(ctx, key)
	case locator.KindDocument, locator.KindTree:
		rel, err := r.pc.Documents().volumeRel(ctx, l)
		if err != nil {
			return nil, err
		}
		return r.pc.Provider.Open(rel)
	}
	host, _, err := r.hostFile(ctx, l)
	if err != nil {
		return nil, err
	}
	return os.Open(host)
}

// OpenOutput opens l for writing in "wt" mode: the content is replaced.
func (r *ContentResolver) OpenOutput(ctx context.Context, l locator.Locator) (io.WriteCloser, error) {
	l = l.Base()
	switch l.Kind() {
	case locator.KindCloudDocument:
		if r.pc.Cloud == nil {
			return nil, ErrNoCloud
		}
		key, _ := l.DocumentID()
		if _, err := r.pc.Cloud.Stat(ctx, key); err != nil {
			return nil, err
		}
		return &bufferedWriter{flush: func(b []byte) error { return r.pc.Cloud.Write(ctx, key, b) }}, nil
	case locator.KindDocument, locator.KindTree:
		rel, err := r.pc.Documents().volumeRel(ctx, l)
		if err != nil {
			return nil, err
		}
		fi, err := r.pc.Provider.Stat(rel)
		if err != nil {
			return nil, err
		}
		if fi.IsDir() {
			return nil, fmt.Errorf("cannot write to directory document %s", l)
		}
		return &bufferedWriter{flush: func(b []byte) error { return r.pc.Provider.Write(rel, b) }}, nil
	}
	d, err := r.openHost(ctx, l, "wt")
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDescriptor opens the host file behind l. mode is "r" or "wt".
// Provider documents are served from their backing file on the volume;
// remote documents have no descriptor.
func (r *ContentResolver) OpenDescriptor(ctx context.Context, l locator.Locator, mode string) (*Descriptor, error) {
	switch mode {
	case "r":
		var err error
		if l, err = r.original(l); err != nil {
			return nil, err
		}
	case "wt":
		l = l.Base()
	default:
		return nil, fmt.Errorf("unsupported descriptor mode %q", mode)
	}
	return r.openHost(ctx, l, mode)
}

func (r *ContentResolver) openHost(ctx context.Context, l locator.Locator, mode string) (*Descriptor, error) {
	host, item, err := r.hostFile(ctx, l)
	if err != nil {
		return nil, err
	}
	if mode == "r" {
		f, err := os.Open(host)
		if err != nil {
			return nil, err
		}
		return &Descriptor{File: f}, nil
	}

	flag := os.O_WRONLY | os.O_TRUNC
	if l.Kind() == locator.KindFile {
		flag |= os.O_CREATE
	}
	if item != nil && !r.pc.writable(item) {
		return nil, denied("write", l)
	}
	fi, err := os.Stat(host)
	if err == nil && fi.IsDir() {
		return nil, fmt.Errorf("cannot write to directory %s", l)
	}
	f, err := os.OpenFile(host, flag, 0644)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{File: f}
	if item != nil {
		d.after = func() error {
			_, err := r.refresh(ctx, item)
			return err
		}
	}
	return d, nil
}

// Query returns the row behind l restricted to projection (all columns when
// empty). Catalog items answer with catalog columns, documents with
// document columns. A nil row means no cursor: either the item is not
// visible or nothing answers queries for l.
func (r *ContentResolver) Query(ctx context.Context, l locator.Locator, projection ...string) (Row, error) {
	l = l.Base()
	var row Row
	switch l.Kind() {
	case locator.KindMediaItem:
		item, err := r.Item(ctx, l)
		if err != nil || item == nil {
			return nil, err
		}
		row = itemRow(item)
	case locator.KindDocument, locator.KindTree, locator.KindDownloadsDocument, locator.KindMediaDocument, locator.KindCloudDocument:
		var err error
		if row, err = r.pc.Documents().Stat(ctx, l); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	if len(projection) == 0 {
		return row, nil
	}
	projected := make(Row, len(projection))
	for _, col := range projection {
		if v, ok := row[col]; ok {
			projected[col] = v
		}
	}
	return projected, nil
}

func itemRow(item *catalog.Item) Row {
	return Row{
		"_id":           item.ID,
		"_data":         item.Data,
		"_display_name": item.DisplayName,
		"mime_type":     item.MimeType,
		"_size":         item.Size,
		"date_modified": item.DateModified,
		"owner_package": item.Owner,
	}
}

// Lookup finds the visible item of collection stored at p, indexing the
// file first when the catalog has not seen it yet. It returns "" when there
// is none.
func (r *ContentResolver) Lookup(ctx context.Context, collection, p string) (locator.Locator, error) {
	data, err := pathuri.EmulatedPath(p)
	if err != nil {
		return "", err
	}
	item, err := r.pc.Catalog.FindByData(ctx, collection, data)
	if err != nil {
		return "", err
	}
	if item != nil {
		if item, err = r.refresh(ctx, item); err != nil {
			return "", err
		}
	}
	if item == nil {
		if item, err = r.scan(ctx, collection, data); err != nil || item == nil {
			return "", err
		}
	}
	if !r.pc.visible(item) {
		r.pc.Log.WithFields(logrus.Fields{"data": data, "owner": item.Owner}).Debug("catalog row not visible to this package")
		return "", nil
	}
	return locator.MediaItem(collection, item.ID), nil
}

// scan indexes a file created behind the catalog's back. Files are indexed
// without an owner.
func (r *ContentResolver) scan(ctx context.Context, collection, data string) (*catalog.Item, error) {
	host := r.pc.Volume.HostPath(data)
	fi, err := os.Stat(host)
	if err != nil || fi.IsDir() {
		return nil, nil
	}
	name := path.Base(data)
	mt := mimeForFile(name, host)
	if !acceptsMime(collection, mt) {
		return nil, nil
	}
	if taken, err := r.pc.Catalog.Exists(ctx, data); err != nil || taken {
		// indexed under another collection
		return nil, err
	}
	item := &catalog.Item{
		Collection:   collection,
		Data:         data,
		DisplayName:  name,
		MimeType:     mt,
		Size:         fi.Size(),
		DateModified: fi.ModTime().Unix(),
	}
	if err := r.pc.Catalog.Insert(ctx, item); err != nil {
		return nil, err
	}
	if collection == locator.CollectionDownloads {
		if _, err := r.pc.Catalog.RegisterDownload(ctx, data, name); err != nil {
			return nil, err
		}
	}
	r.pc.Log.WithFields(logrus.Fields{"collection": collection, "data": data, "mime": mt}).Debug("catalog indexed file")
	return item, nil
}

// Insert creates an empty item named displayName in the default folder of
// collection. A taken name is replaced by "name (n).ext".
func (r *ContentResolver) Insert(ctx context.Context, collection, displayName string) (locator.Locator, error) {
	folder := pathuri.CollectionFolder(collection)
	if folder == "" {
		return "", fmt.Errorf("%w: unknown collection %q", ErrUnsupportedLocator, collection)
	}
	if displayName == "" || strings.Contains(displayName, "/") {
		return "", fmt.Errorf("invalid display name %q", displayName)
	}
	mt := MimeForName(displayName)
	if !acceptsMime(collection, mt) {
		return "", fmt.Errorf("MIME type %s cannot be inserted into %s; expected MIME type under %s/*",
			mt, locator.CollectionURI(collection), collectionKind(collection))
	}

	for n := 0; n < 32; n++ {
		name := pathuri.NumberedName(displayName, n)
		data := pathuri.Absolute(folder + "/" + name)
		if r.pc.Volume.Exists(data) {
			continue
		}
		taken, err := r.pc.Catalog.Exists(ctx, data)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}

		host := r.pc.Volume.HostPath(data)
		if err := os.MkdirAll(filepath.Dir(host), 0755); err != nil {
			return "", err
		}
		f, err := os.OpenFile(host, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return "", err
		}
		f.Close()

		item := &catalog.Item{
			Collection:   collection,
			Data:         data,
			DisplayName:  name,
			MimeType:     mt,
			DateModified: Now().Unix(),
			Owner:        r.pc.Package,
		}
		if err := r.pc.Catalog.Insert(ctx, item); err != nil {
			os.Remove(host)
			return "", err
		}
		if collection == locator.CollectionDownloads {
			if _, err := r.pc.Catalog.RegisterDownload(ctx, data, name); err != nil {
				return "", err
			}
		}
		if n > 0 {
			r.pc.Log.WithFields(logrus.Fields{"requested": displayName, "created": name}).Info("catalog renamed new item")
		}
		return locator.MediaItem(collection, item.ID), nil
	}
	return "", fmt.Errorf("no free name for %s in %s", displayName, folder)
}

// Delete removes a catalog item and its file. It returns the number of rows
// removed; items the worker cannot see count as zero.
func (r *ContentResolver) Delete(ctx context.Context, l locator.Locator) (int64, error) {
	l = l.Base()
	if l.Kind() != locator.KindMediaItem {
		return 0, fmt.Errorf("%w: delete is not supported for %s", ErrUnsupportedLocator, l)
	}
	item, err := r.Item(ctx, l)
	if err != nil || item == nil {
		return 0, err
	}
	if !r.pc.writable(item) {
		return 0, denied("delete", l)
	}
	if err := os.Remove(r.pc.Volume.HostPath(item.Data)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	n, err := r.pc.Catalog.Delete(ctx, item.Collection, item.ID)
	if err != nil {
		return 0, err
	}
	return n, r.pc.Catalog.ForgetDownload(ctx, item.Data)
}

// Update sets the display name of a catalog item, renaming its file within
// its folder. It returns the number of rows updated.
func (r *ContentResolver) Update(ctx context.Context, l locator.Locator, displayName string) (int64, error) {
	l = l.Base()
	if l.Kind() != locator.KindMediaItem {
		return 0, fmt.Errorf("%w: update is not supported for %s", ErrUnsupportedLocator, l)
	}
	if displayName == "" || strings.Contains(displayName, "/") {
		return 0, fmt.Errorf("invalid display name %q", displayName)
	}
	item, err := r.Item(ctx, l)
	if err != nil || item == nil {
		return 0, err
	}
	if !r.pc.writable(item) {
		return 0, denied("update", l)
	}
	if item.DisplayName == displayName {
		return 1, nil
	}

	newData := path.Join(path.Dir(item.Data), displayName)
	if r.pc.Volume.Exists(newData) {
		return 0, fmt.Errorf("failed to rename %s: %s already exists", item.Data, newData)
	}
	if err := os.Rename(r.pc.Volume.HostPath(item.Data), r.pc.Volume.HostPath(newData)); err != nil {
		return 0, err
	}
	n, err := r.pc.Catalog.Move(ctx, item.ID, newData, displayName)
	if err != nil {
		return 0, err
	}
	return n, r.pc.Catalog.MoveDownload(ctx, item.Data, newData, displayName)
}

// Descriptor is an open host file. Closing it brings the catalog up to
// date with what was written.
type Descriptor struct {
	*os.File
	after func() error
}

func (d *Descriptor) Close() error {
	err := d.File.Close()
	if d.after != nil {
		if aerr := d.after(); err == nil {
			err = aerr
		}
	}
	return err
}

// bufferedWriter collects a document's new content and hands it to the
// owning provider on Close.
type bufferedWriter struct {
	buf    bytes.Buffer
	flush  func([]byte) error
	closed bool
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *bufferedWriter) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true
	return w.flush(w.buf.Bytes())
}
