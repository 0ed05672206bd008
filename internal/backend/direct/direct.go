// Package direct is the path backend: every operation goes straight to the
// filesystem, and locator resolution is the identity.
package direct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/codec"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

const Name = "direct"

// FileAPI runs operations on paths. Paths on the primary volume land in
// the volume directory; anything else is a host path.
type FileAPI struct {
	pc *platform.Context
}

var _ backend.Locator = (*FileAPI)(nil)

func New(pc *platform.Context) *FileAPI {
	return &FileAPI{pc: pc}
}

// ResolveExisting returns the file locator of p.
func (f *FileAPI) ResolveExisting(_ context.Context, p string) backend.Result[locator.Locator] {
	return backend.Ok(locator.File(p))
}

// ResolveForNew returns the file locator of p.
func (f *FileAPI) ResolveForNew(_ context.Context, p string) backend.Result[locator.Locator] {
	return backend.Ok(locator.File(p))
}

func (f *FileAPI) host(p string) string {
	return f.pc.Volume.HostPath(p)
}

func absolute(p string) string {
	if !path.IsAbs(p) {
		p = "/" + p
	}
	return path.Clean(p)
}

// Content reads the file at p, codec-encoded.
func (f *FileAPI) Content(_ context.Context, p string) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		b, err := os.ReadFile(f.host(p))
		if err != nil {
			return "", false, err
		}
		return codec.Encode(b), true, nil
	})
}

// Size returns the length of the file at p; 0 when it cannot be read.
func (f *FileAPI) Size(_ context.Context, p string) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		fi, err := os.Stat(f.host(p))
		if err != nil {
			return 0, false, nil
		}
		return fi.Size(), true, nil
	})
}

// ModifiedTime returns the modification time of the file at p in unix
// seconds; 0 when it cannot be read.
func (f *FileAPI) ModifiedTime(_ context.Context, p string) backend.Result[int64] {
	return backend.Capture(func() (int64, bool, error) {
		fi, err := os.Stat(f.host(p))
		if err != nil {
			return 0, false, nil
		}
		return fi.ModTime().Unix(), true, nil
	})
}

// Create writes payload to p, or creates it empty when payload is nil. The
// value is the absolute path of the file.
func (f *FileAPI) Create(_ context.Context, p string, payload *string) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		host := f.host(p)
		if payload == nil {
			fh, err := os.OpenFile(host, os.O_WRONLY|os.O_CREATE, 0644)
			if err != nil {
				return "", false, err
			}
			if err := fh.Close(); err != nil {
				return "", false, err
			}
			return absolute(p), true, nil
		}
		if err := f.write(host, *payload); err != nil {
			return "", false, err
		}
		return absolute(p), true, nil
	})
}

func (f *FileAPI) write(host, payload string) error {
	b, err := codec.Decode(payload)
	if err != nil {
		return err
	}
	return os.WriteFile(host, b, 0644)
}

// Delete removes the file at p. It succeeds when the file is gone
// afterwards; the value is p.
func (f *FileAPI) Delete(_ context.Context, p string) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		host := f.host(p)
		if err := os.Remove(host); err != nil {
			f.pc.Log.WithError(err).WithField("path", p).Debug("direct delete failed")
		}
		if _, err := os.Stat(host); errors.Is(err, fs.ErrNotExist) {
			return p, true, nil
		}
		return p, false, nil
	})
}

// Rename renames from to to within one folder. The value is to.
func (f *FileAPI) Rename(_ context.Context, from, to string) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		if path.Dir(absolute(from)) != path.Dir(absolute(to)) {
			return "", false, errors.New("cannot rename file to another directory")
		}
		if err := os.Rename(f.host(from), f.host(to)); err != nil {
			return "", false, fmt.Errorf("cannot rename file: %w", err)
		}
		return to, true, nil
	})
}

// Move copies from into the folder toDir, then removes from. The value is
// the absolute path of the copy.
func (f *FileAPI) Move(_ context.Context, from, toDir string) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		target := absolute(path.Join(toDir, path.Base(from)))
		if path.Dir(absolute(from)) == path.Dir(target) {
			return "", false, errors.New("please use rename to rename a file within its folder")
		}
		if err := copyFile(f.host(from), f.host(target)); err != nil {
			return "", false, err
		}
		if err := os.Remove(f.host(from)); err != nil {
			f.pc.Log.WithFields(logrus.Fields{"from": from, "to": target}).WithError(err).Warn("direct move left the source behind")
		}
		return target, true, nil
	})
}

// Overwrite replaces the content of the file at p.
func (f *FileAPI) Overwrite(_ context.Context, p, payload string) backend.Result[string] {
	return backend.Capture(func() (string, bool, error) {
		if err := f.write(f.host(p), payload); err != nil {
			return "", false, err
		}
		return absolute(p), true, nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
