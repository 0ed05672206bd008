// Package mediastore resolves paths through the content catalog: existing
// files by querying their collection, new files by inserting into it.
package mediastore

import (
	"context"
	"fmt"
	"path"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
	"storageverifier/internal/platform"
)

const Name = "media-store"

type API struct {
	pc *platform.Context
}

var _ backend.Locator = (*API)(nil)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

// ResolveExisting finds the catalog item stored at p. A directory-shaped
// path is refused without touching the catalog.
func (a *API) ResolveExisting(ctx context.Context, p string) backend.Result[locator.Locator] {
	if pathuri.IsDirectory(p) {
		return backend.Fault[locator.Locator](pathuri.ErrNotSupported)
	}
	return backend.Capture(func() (locator.Locator, bool, error) {
		collection, err := pathuri.CollectionForPath(p)
		if err != nil {
			return "", false, err
		}
		l, err := a.pc.Resolver().Lookup(ctx, collection, p)
		if err != nil {
			return "", false, err
		}
		if l == "" {
			a.pc.Log.WithFields(logrus.Fields{"path": p, "collection": collection}).Debug("no catalog item")
			return "", false, nil
		}
		return l, true, nil
	})
}

// ResolveForNew inserts an item named after p into the collection p
// belongs to. The catalog decides where the item ends up.
func (a *API) ResolveForNew(ctx context.Context, p string) backend.Result[locator.Locator] {
	return backend.Capture(func() (locator.Locator, bool, error) {
		if pathuri.IsDirectory(p) {
			return "", false, fmt.Errorf("%w: cannot insert a directory", pathuri.ErrNotSupported)
		}
		collection, err := pathuri.CollectionForPath(p)
		if err != nil {
			return "", false, err
		}
		l, err := a.pc.Resolver().Insert(ctx, collection, path.Base(p))
		if err != nil {
			return "", false, err
		}
		return l, true, nil
	})
}
