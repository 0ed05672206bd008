// Package filedescriptor reads and writes content through file descriptors
// opened by the content resolver. Only locators backed by a local file
// have a descriptor.
package filedescriptor

import (
	"context"
	"io"

	"storageverifier/internal/backend"
	"storageverifier/internal/codec"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

const Name = "file-descriptor"

type API struct {
	pc *platform.Context
}

var _ backend.Access = (*API)(nil)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

func (a *API) Read(ctx context.Context, l locator.Locator) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		data, err := backend.ReadOriginal(a.pc, l, func(l locator.Locator) (io.ReadCloser, error) {
			d, err := a.pc.Resolver().OpenDescriptor(ctx, l, "r")
			if err != nil {
				return nil, err
			}
			return d, nil
		})
		if err != nil {
			return "", false, err
		}
		return codec.Encode(data), true, nil
	})
}

func (a *API) Write(ctx context.Context, l locator.Locator, content string) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		data, err := codec.Decode(content)
		if err != nil {
			return nil, false, err
		}
		d, err := a.pc.Resolver().OpenDescriptor(ctx, l, "wt")
		if err != nil {
			return nil, false, err
		}
		if _, err := d.Write(data); err != nil {
			d.Close()
			return nil, false, err
		}
		if err := d.Sync(); err != nil {
			d.Close()
			return nil, false, err
		}
		if err := d.Close(); err != nil {
			return nil, false, err
		}
		p, err := backend.ReversePath(ctx, a.pc, l)
		return p, p != nil, err
	})
}
