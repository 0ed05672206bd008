// Package documentfile manages documents the way a document-file wrapper
// does: attribute lookups swallow their faults and report zero, and moves
// copy into a new document created under the target tree.
package documentfile

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

const Name = "document-file"

const unnamed = "unnamed"

type API struct {
	pc *platform.Context
}

var _ backend.Lifecycle = (*API)(nil)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

// Delete deletes the document and reports whether its file is gone. A
// refused delete is not a fault; the file is simply still there.
func (a *API) Delete(ctx context.Context, l locator.Locator) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		before, err := backend.ReversePath(ctx, a.pc, l)
		if err != nil {
			return nil, false, err
		}
		if err := a.pc.Documents().Delete(ctx, l); err != nil {
			a.pc.Log.WithError(err).WithField("locator", l).Debug("document delete refused")
		}
		return before, backend.Gone(a.pc, before), nil
	})
}

// attribute queries one integer column, treating any fault as zero.
func (a *API) attribute(ctx context.Context, l locator.Locator, col string) int64 {
	row, err := a.pc.Resolver().Query(ctx, l, col)
	if err != nil || row == nil {
		return 0
	}
	v, err := row.Int64(col)
	if err != nil {
		return 0
	}
	return v
}

func (a *API) Size(ctx context.Context, l locator.Locator) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		n := a.attribute(ctx, l, platform.ColumnSize)
		return n, n > 0, nil
	})
}

// ModifiedTime reports the last modification in seconds.
func (a *API) ModifiedTime(ctx context.Context, l locator.Locator) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		s := a.attribute(ctx, l, platform.ColumnLastModified) / 1000
		return s, s > 0, nil
	})
}

func (a *API) Rename(ctx context.Context, l locator.Locator, to string) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		renamed, err := a.pc.Documents().Rename(ctx, l, path.Base(to))
		if err != nil {
			return nil, false, err
		}
		p, err := backend.ReversePath(ctx, a.pc, renamed)
		return p, p != nil, err
	})
}

// Move creates a document of the same name in the tree to, copies the
// content of from into it and deletes from.
func (a *API) Move(ctx context.Context, from, to locator.Locator) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		if _, ok := to.TreeID(); !ok {
			return nil, false, fmt.Errorf("invalid tree locator: %s", to)
		}
		name := unnamed
		if row, err := a.pc.Resolver().Query(ctx, from, platform.ColumnDisplayName); err == nil && row != nil {
			if s, _ := row.String(platform.ColumnDisplayName); s != "" {
				name = s
			}
		}

		target, err := a.pc.Documents().Create(ctx, to, name)
		if err != nil {
			return nil, false, err
		}
		data, err := backend.ReadOriginal(a.pc, from, func(l locator.Locator) (io.ReadCloser, error) {
			return a.pc.Resolver().OpenInput(ctx, l)
		})
		if err != nil {
			return nil, false, err
		}
		a.pc.Log.WithFields(logrus.Fields{"source": from, "target": target, "mime": platform.DetectMime(data)}).Debug("copying document")

		out, err := a.pc.Resolver().OpenOutput(ctx, target)
		if err != nil {
			return nil, false, err
		}
		if _, err := out.Write(data); err != nil {
			out.Close()
			return nil, false, err
		}
		if err := out.Close(); err != nil {
			return nil, false, err
		}

		if err := a.pc.Documents().Delete(ctx, from); err != nil {
			a.pc.Log.WithError(err).WithField("locator", from).Warn("source document left behind")
		}
		p, err := backend.ReversePath(ctx, a.pc, target)
		return p, p != nil, err
	})
}
