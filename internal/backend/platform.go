package backend

import (
	"context"
	"errors"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"storageverifier/internal/locator"
	"storageverifier/internal/platform"
)

// ReversePath translates l back to a path; nil when l has none.
func ReversePath(ctx context.Context, pc *platform.Context, l locator.Locator) (*string, error) {
	p, ok, err := pc.Paths.Path(ctx, l)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// Gone reports whether the object that lived at p is gone. An object
// without a path counts as gone.
func Gone(pc *platform.Context, p *string) bool {
	return p == nil || !pc.Volume.Exists(*p)
}

// ReadOriginal reads l through open, asking for the unrestricted content
// first. A capability fault on that attempt is retried once with the
// restricted content; any other fault is final.
func ReadOriginal(pc *platform.Context, l locator.Locator, open func(locator.Locator) (io.ReadCloser, error)) ([]byte, error) {
	data, err := readAll(open, l.WithOriginal())
	if errors.Is(err, platform.ErrCapability) {
		pc.Log.WithFields(logrus.Fields{"locator": l, "reason": err}).Info("unrestricted read refused, falling back")
		data, err = readAll(open, l.Base())
	}
	if err != nil {
		return nil, err
	}
	pc.Log.WithFields(logrus.Fields{"locator": l, "size": humanize.Bytes(uint64(len(data)))}).Debug("read content")
	return data, nil
}

func readAll(open func(locator.Locator) (io.ReadCloser, error), l locator.Locator) ([]byte, error) {
	rc, err := open(l)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
