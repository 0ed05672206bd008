package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
)

// Document columns.
const (
	ColumnDocumentID   = "document_id"
	ColumnDisplayName  = "_display_name"
	ColumnMimeType     = "mime_type"
	ColumnSize         = "_size"
	ColumnLastModified = "last_modified" // milliseconds
)

// Documents is the document provider facade. Volume-backed documents are
// served by the WebDAV provider, remote documents by the cloud root.
type Documents struct {
	pc *Context
}

// docRef is the backing object of a document: a volume-relative path, or
// an object key when cloud is set.
type docRef struct {
	cloud bool
	key   string
}

// volumeRel returns the volume-relative path of an external-storage
// document or tree.
func (d *Documents) volumeRel(ctx context.Context, l locator.Locator) (string, error) {
	ref, err := d.ref(ctx, l)
	if err != nil {
		return "", err
	}
	if ref.cloud {
		return "", fmt.Errorf("%w: %s is a remote document", ErrUnsupportedLocator, l)
	}
	return ref.key, nil
}

func (d *Documents) ref(ctx context.Context, l locator.Locator) (docRef, error) {
	l = l.Base()
	switch l.Kind() {
	case locator.KindDocument, locator.KindTree:
		docID, _ := l.DocumentID()
		volume, rel, ok := locator.SplitDocID(docID)
		if !ok || !strings.EqualFold(volume, locator.PrimaryVolume) {
			return docRef{}, notFound("document", l)
		}
		return docRef{key: strings.Trim(path.Clean("/"+rel), "/")}, nil
	case locator.KindDownloadsDocument, locator.KindMediaDocument:
		p, ok, err := d.pc.Paths.Path(ctx, l)
		if err != nil {
			return docRef{}, err
		}
		if !ok {
			return docRef{}, notFound("document", l)
		}
		rel, err := pathuri.Relative(p)
		if err != nil {
			return docRef{}, err
		}
		return docRef{key: rel}, nil
	case locator.KindCloudDocument:
		if d.pc.Cloud == nil {
			return docRef{}, ErrNoCloud
		}
		key, _ := l.DocumentID()
		return docRef{cloud: true, key: key}, nil
	}
	return docRef{}, fmt.Errorf("%w: %s is not a document", ErrUnsupportedLocator, l)
}

// Stat returns the document columns of l.
func (d *Documents) Stat(ctx context.Context, l locator.Locator) (Row, error) {
	ref, err := d.ref(ctx, l)
	if err != nil {
		return nil, err
	}
	docID, _ := l.Base().DocumentID()
	if ref.cloud {
		info, err := d.pc.Cloud.Stat(ctx, ref.key)
		if err != nil {
			return nil, err
		}
		mt := info.MimeType
		if mt == "" {
			mt = MimeForName(info.Key)
		}
		return Row{
			ColumnDocumentID:   docID,
			ColumnDisplayName:  path.Base(info.Key),
			ColumnMimeType:     mt,
			ColumnSize:         info.Size,
			ColumnLastModified: info.Modified.UnixMilli(),
		}, nil
	}

	fi, err := d.pc.Provider.Stat(ref.key)
	if err != nil {
		return nil, err
	}
	mt := MimeDirectory
	if !fi.IsDir() {
		mt = MimeForName(fi.Name())
	}
	return Row{
		ColumnDocumentID:   docID,
		ColumnDisplayName:  path.Base(ref.key),
		ColumnMimeType:     mt,
		ColumnSize:         fi.Size(),
		ColumnLastModified: fi.ModTime().UnixMilli(),
	}, nil
}

// IsDirectory reports whether l denotes a folder.
func (d *Documents) IsDirectory(ctx context.Context, l locator.Locator) (bool, error) {
	row, err := d.Stat(ctx, l)
	if err != nil {
		return false, err
	}
	return row[ColumnMimeType] == MimeDirectory, nil
}

// Delete removes a document.
func (d *Documents) Delete(ctx context.Context, l locator.Locator) error {
	ref, err := d.ref(ctx, l)
	if err != nil {
		return err
	}
	if ref.cloud {
		return d.pc.Cloud.Delete(ctx, ref.key)
	}
	if err := d.pc.Provider.Delete(ref.key); err != nil {
		return err
	}
	d.syncCatalog(ctx, pathuri.Absolute(ref.key), "")
	return nil
}

// Rename gives a document a new display name and returns its locator after
// the rename. The provider picks a free alternative when name is taken.
func (d *Documents) Rename(ctx context.Context, l locator.Locator, name string) (locator.Locator, error) {
	ref, err := d.ref(ctx, l)
	if err != nil {
		return "", err
	}
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid display name %q", name)
	}
	if ref.cloud {
		newKey := path.Join(path.Dir(ref.key), name)
		if newKey == ref.key {
			return l.Base(), nil
		}
		if _, err := d.pc.Cloud.Stat(ctx, newKey); err == nil {
			return "", fmt.Errorf("cloud rename '%s': %w", newKey, fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if err := d.pc.Cloud.Rename(ctx, ref.key, newKey); err != nil {
			return "", err
		}
		return locator.Document(locator.CloudAuthority, newKey), nil
	}

	newRel, err := d.pc.Provider.Rename(ref.key, name)
	if err != nil {
		return "", err
	}
	d.syncCatalog(ctx, pathuri.Absolute(ref.key), pathuri.Absolute(newRel))
	switch l.Base().Kind() {
	case locator.KindDownloadsDocument, locator.KindMediaDocument:
		// ids survive a rename
		return l.Base(), nil
	}
	return d.volumeLocator(l, newRel)
}

// Move moves a document into the folder target and returns its new
// locator. Both must live on the same backing store.
func (d *Documents) Move(ctx context.Context, l, target locator.Locator) (locator.Locator, error) {
	ref, err := d.ref(ctx, l)
	if err != nil {
		return "", err
	}
	dir, err := d.ref(ctx, target)
	if err != nil {
		return "", err
	}
	if ref.cloud != dir.cloud {
		return "", fmt.Errorf("cannot move %s into %s: different document providers", l.Base(), target.Base())
	}
	if ref.cloud {
		newKey := path.Join(dir.key, path.Base(ref.key))
		if _, err := d.pc.Cloud.Stat(ctx, newKey); err == nil {
			return "", fmt.Errorf("cloud move '%s': %w", newKey, fs.ErrExist)
		}
		if err := d.pc.Cloud.Rename(ctx, ref.key, newKey); err != nil {
			return "", err
		}
		return locator.Document(locator.CloudAuthority, newKey), nil
	}

	newRel, err := d.pc.Provider.Move(ref.key, dir.key)
	if err != nil {
		return "", err
	}
	d.syncCatalog(ctx, pathuri.Absolute(ref.key), pathuri.Absolute(newRel))
	return d.volumeLocator(target, newRel)
}

// Create makes an empty document named name in the folder parent.
func (d *Documents) Create(ctx context.Context, parent locator.Locator, name string) (locator.Locator, error) {
	dir, err := d.ref(ctx, parent)
	if err != nil {
		return "", err
	}
	if dir.cloud {
		key, err := d.pc.Cloud.Create(ctx, dir.key, name)
		if err != nil {
			return "", err
		}
		return locator.Document(locator.CloudAuthority, key), nil
	}
	rel, err := d.pc.Provider.Create(dir.key, name)
	if err != nil {
		return "", err
	}
	return d.volumeLocator(parent, rel)
}

// volumeLocator addresses rel the way via was addressed: through the same
// tree grant when via carries one.
func (d *Documents) volumeLocator(via locator.Locator, rel string) (locator.Locator, error) {
	via = via.Base()
	docID := locator.PrimaryDocID(rel)
	if treeID, ok := via.TreeID(); ok {
		return locator.DocumentInTree(locator.Tree(via.Authority(), treeID), docID)
	}
	return locator.Document(locator.ExternalStorageAuthority, docID), nil
}

// syncCatalog follows a document provider change in the catalog: the row
// stored at oldAbs moves to newAbs, or goes away when newAbs is empty or
// outside its collection.
func (d *Documents) syncCatalog(ctx context.Context, oldAbs, newAbs string) {
	log := d.pc.Log.WithFields(logrus.Fields{"from": oldAbs, "to": newAbs})
	collection, err := pathuri.CollectionForPath(oldAbs)
	if err != nil {
		return
	}
	item, err := d.pc.Catalog.FindByData(ctx, collection, oldAbs)
	if err != nil {
		log.WithError(err).Warn("catalog lookup failed")
		return
	}
	if item == nil {
		return
	}

	newCollection := ""
	if newAbs != "" {
		newCollection, _ = pathuri.CollectionForPath(newAbs)
	}
	if newCollection != collection {
		if _, err := d.pc.Catalog.Delete(ctx, collection, item.ID); err != nil {
			log.WithError(err).Warn("catalog delete failed")
		}
		if err := d.pc.Catalog.ForgetDownload(ctx, oldAbs); err != nil {
			log.WithError(err).Warn("catalog delete failed")
		}
		return
	}
	name := path.Base(newAbs)
	if _, err := d.pc.Catalog.Move(ctx, item.ID, newAbs, name); err != nil {
		log.WithError(err).Warn("catalog move failed")
	}
	if err := d.pc.Catalog.MoveDownload(ctx, oldAbs, newAbs, name); err != nil {
		log.WithError(err).Warn("catalog move failed")
	}
}
