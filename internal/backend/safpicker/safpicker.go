// Package safpicker resolves paths through the interactive picker. Every
// resolution launches one picker intent and suspends until the picker
// grants a locator, the user cancels, or the wait times out.
package safpicker

import (
	"context"
	"errors"
	"path"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
	"storageverifier/internal/picker"
	"storageverifier/internal/platform"
)

const Name = "saf-picker"

var errNotAFile = errors.New("path is not a file")

type API struct {
	pc *platform.Context
}

var (
	_ backend.Locator     = (*API)(nil)
	_ backend.MoveLocator = (*API)(nil)
)

func New(pc *platform.Context) *API {
	return &API{pc: pc}
}

// request launches one intent and waits for the grant.
func (a *API) request(ctx context.Context, action picker.Action, p, title string) (picker.Completion, error) {
	initial, err := pathuri.FolderLocator(p)
	if err != nil {
		return picker.Completion{}, err
	}
	intent := picker.NewIntent(action, initial, title)
	log := a.pc.Log.WithFields(logrus.Fields{"intent": intent.ID, "action": intent.Action, "title": title})
	log.Debug("launching picker")

	c, err := picker.Request(ctx, a.pc.Picker, intent, a.pc.PickerTimeout)
	if err != nil {
		return picker.Completion{}, err
	}
	log.WithFields(logrus.Fields{"ok": c.OK, "uri": c.URI}).Debug("picker completed")
	return c, nil
}

// granted checks that the picker granted a locator in the folder of p.
func (a *API) granted(ctx context.Context, c picker.Completion, p string) (bool, error) {
	if !c.OK || c.URI == "" {
		a.pc.Log.WithField("path", p).Info("picker granted nothing")
		return false, nil
	}
	got, ok, err := a.pc.Paths.Path(ctx, c.URI)
	if err != nil {
		return false, err
	}
	if !ok {
		a.pc.Log.WithFields(logrus.Fields{"uri": c.URI, "path": p}).Info("path redirected: granted locator has no path")
		return false, nil
	}
	if c.URI.Kind() == locator.KindTree {
		// a tree is the folder itself
		got += "/"
	}
	if !pathuri.SameFolder(got, p) {
		a.pc.Log.WithFields(logrus.Fields{"real": got, "path": p}).Info("path redirected")
		return false, nil
	}
	return true, nil
}

// ResolveExisting asks the picker to open the file at p.
func (a *API) ResolveExisting(ctx context.Context, p string) backend.Result[locator.Locator] {
	return backend.Capture(func() (locator.Locator, bool, error) {
		return a.existing(ctx, p)
	})
}

func (a *API) existing(ctx context.Context, p string) (locator.Locator, bool, error) {
	if pathuri.IsDirectory(p) {
		return "", false, errNotAFile
	}
	c, err := a.request(ctx, picker.OpenDocument, p, path.Base(p))
	if err != nil {
		return "", false, err
	}
	ok, err := a.granted(ctx, c, p)
	return c.URI, ok, err
}

// ResolveForNew asks the picker to create the file at p, or to grant the
// folder p when p is directory-shaped.
func (a *API) ResolveForNew(ctx context.Context, p string) backend.Result[locator.Locator] {
	return backend.Capture(func() (locator.Locator, bool, error) {
		action, title := picker.CreateDocument, path.Base(p)
		if pathuri.IsDirectory(p) {
			action, title = picker.OpenDocumentTree, ""
		}
		c, err := a.request(ctx, action, p, title)
		if err != nil {
			return "", false, err
		}
		ok, err := a.granted(ctx, c, p)
		return c.URI, ok, err
	})
}

// ResolveForMove asks the picker for the file at from, then for the folder
// toDir. The second picker is launched only once the first one granted the
// right file.
func (a *API) ResolveForMove(ctx context.Context, from, toDir string) backend.Result[backend.MoveTargets] {
	return backend.Capture(func() (backend.MoveTargets, bool, error) {
		if !pathuri.IsDirectory(toDir) {
			return backend.MoveTargets{}, false, errors.New("move target is not a directory")
		}
		src, ok, err := a.existing(ctx, from)
		if err != nil || !ok {
			return backend.MoveTargets{From: src}, false, err
		}

		c, err := a.request(ctx, picker.OpenDocumentTree, toDir, "")
		if err != nil {
			return backend.MoveTargets{From: src}, false, err
		}
		if !c.OK || c.URI == "" {
			return backend.MoveTargets{From: src}, false, nil
		}
		return backend.MoveTargets{From: src, To: c.URI}, true, nil
	})
}
