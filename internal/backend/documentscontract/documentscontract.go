// Package documentscontract manages documents through the document provider
// contract. Moves need a tree grant for the destination folder.
package documentscontract

import (
	"context"
	"fmt"
	"path"

	"storageverifier/internal/backend"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

const Name = "documents-contract"

type API struct {
	pc *platform.Context
}

var _ backend.Lifecycle = (*API)(nil)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

func (a *API) Delete(ctx context.Context, l locator.Locator) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		before, err := backend.ReversePath(ctx, a.pc, l)
		if err != nil {
			return nil, false, err
		}
		if err := a.pc.Documents().Delete(ctx, l); err != nil {
			return nil, false, err
		}
		return before, backend.Gone(a.pc, before), nil
	})
}

func (a *API) Size(ctx context.Context, l locator.Locator) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		row, err := a.pc.Documents().Stat(ctx, l)
		if err != nil {
			return 0, false, err
		}
		n, err := row.Int64(platform.ColumnSize)
		return n, n > 0, err
	})
}

// ModifiedTime reports the last modification in seconds.
func (a *API) ModifiedTime(ctx context.Context, l locator.Locator) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		row, err := a.pc.Documents().Stat(ctx, l)
		if err != nil {
			return 0, false, err
		}
		ms, err := row.Int64(platform.ColumnLastModified)
		s := ms / 1000
		return s, s > 0, err
	})
}

// Rename renames the document to the last element of to.
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

// Move moves the document from into the folder granted by the tree to.
func (a *API) Move(ctx context.Context, from, to locator.Locator) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		if _, ok := to.TreeID(); !ok {
			return nil, false, fmt.Errorf("invalid tree locator: %s", to)
		}
		moved, err := a.pc.Documents().Move(ctx, from, to)
		if err != nil {
			return nil, false, err
		}
		p, err := backend.ReversePath(ctx, a.pc, moved)
		return p, p != nil, err
	})
}
