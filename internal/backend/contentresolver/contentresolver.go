// Package contentresolver manages located objects through catalog columns:
// size and modification time are queried, renames update the display name,
// and moves copy the content into the target before deleting the source.
package contentresolver

import (
	"context"
	"io"
	"path"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

const Name = "content-resolver"

const (
	columnSize         = "_size"
	columnDateModified = "date_modified"
)

type API struct {
	pc *platform.Context
}

var _ backend.Lifecycle = (*API)(nil)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

// Delete deletes the object behind l. It succeeds when the file l denoted
// is gone afterwards.
func (a *API) Delete(ctx context.Context, l locator.Locator) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		before, err := backend.ReversePath(ctx, a.pc, l)
		if err != nil {
			return nil, false, err
		}
		n, err := a.pc.Resolver().Delete(ctx, l)
		if err != nil {
			return nil, false, err
		}
		a.pc.Log.WithFields(logrus.Fields{"locator": l, "rows": n}).Debug("content resolver delete")
		return before, backend.Gone(a.pc, before), nil
	})
}

func (a *API) column(ctx context.Context, l locator.Locator, col string) (int64, bool, error) {
	row, err := a.pc.Resolver().Query(ctx, l, col)
	if err != nil || row == nil {
		return 0, false, err
	}
	v, err := row.Int64(col)
	if err != nil {
		return 0, false, err
	}
	return v, v > 0, nil
}

// Size queries the _size column.
func (a *API) Size(ctx context.Context, l locator.Locator) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		return a.column(ctx, l, columnSize)
	})
}

// ModifiedTime queries the date_modified column.
func (a *API) ModifiedTime(ctx context.Context, l locator.Locator) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		return a.column(ctx, l, columnDateModified)
	})
}

// Rename sets the display name to the last element of to.
func (a *API) Rename(ctx context.Context, l locator.Locator, to string) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		n, err := a.pc.Resolver().Update(ctx, l, path.Base(to))
		if err != nil {
			return nil, false, err
		}
		p, err := backend.ReversePath(ctx, a.pc, l)
		return p, n > 0, err
	})
}

// Move copies the content of from into the object to, then deletes from.
// to is the new object, not its folder.
func (a *API) Move(ctx context.Context, from, to locator.Locator) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		if err := a.copy(ctx, from, to); err != nil {
			return nil, false, err
		}
		if _, err := a.pc.Resolver().Delete(ctx, from); err != nil {
			return nil, false, err
		}
		p, err := backend.ReversePath(ctx, a.pc, to)
		return p, p != nil, err
	})
}

func (a *API) copy(ctx context.Context, from, to locator.Locator) error {
	in, err := a.pc.Resolver().OpenInput(ctx, from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := a.pc.Resolver().OpenOutput(ctx, to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
