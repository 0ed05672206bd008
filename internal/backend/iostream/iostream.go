// Package iostream reads and writes content through streams opened by the
// content resolver.
package iostream

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/codec"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

const Name = "io-stream"

type API struct {
	pc *platform.Context
}

var _ backend.Access = (*API)(nil)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

// Read returns the codec-encoded content of l, unrestricted when the
// platform allows it.
func (a *API) Read(ctx context.Context, l locator.Locator) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		data, err := backend.ReadOriginal(a.pc, l, func(l locator.Locator) (io.ReadCloser, error) {
			return a.pc.Resolver().OpenInput(ctx, l)
		})
		if err != nil {
			return "", false, err
		}
		return codec.Encode(data), true, nil
	})
}

// Write replaces the content of l with the decoded payload and returns the
// path l denotes.
func (a *API) Write(ctx context.Context, l locator.Locator, content string) backend.Result[*string] {
	return backend.Capture(func() (*string, bool, error) {
		data, err := codec.Decode(content)
		if err != nil {
			return nil, false, err
		}
		out, err := a.pc.Resolver().OpenOutput(ctx, l)
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
		a.pc.Log.WithFields(logrus.Fields{"locator": l, "size": humanize.Bytes(uint64(len(data)))}).Debug("stream written")

		p, err := backend.ReversePath(ctx, a.pc, l)
		return p, p != nil, err
	})
}
