// Package platform is the ambient context every backend receives: the
// volume, the content catalog, the document provider, the optional cloud
// root and the picker, plus the identity and grants the worker runs with.
//
// The content resolver and documents facades route a locator to whichever
// of these owns it.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/catalog"
	"storageverifier/internal/cloud"
	"storageverifier/internal/config"
	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
	"storageverifier/internal/picker"
	"storageverifier/internal/provider"
)

// ErrCapability is the platform's refusal of a restricted capability, such
// as the unrestricted (original) content of a media item.
var ErrCapability = errors.New("capability denied")

// ErrUnsupportedLocator is returned when a locator is not owned by the
// facade it was handed to.
var ErrUnsupportedLocator = errors.New("unsupported locator")

// ErrNoCloud is returned for cloud documents when no cloud root is
// configured.
var ErrNoCloud = errors.New("no cloud document root configured")

// Volume maps the primary volume onto a host directory. Paths outside the
// volume are host paths already.
type Volume struct {
	Root string
}

// standardFolders are created by Prepare.
var standardFolders = []string{"Download", "Pictures", "Movies", "Music", "Documents", "DCIM", "Android/data"}

// Prepare creates the volume root and its standard folders.
func (v Volume) Prepare() error {
	for _, dir := range standardFolders {
		if err := os.MkdirAll(filepath.Join(v.Root, filepath.FromSlash(dir)), 0755); err != nil {
			return fmt.Errorf("failed to prepare volume: %w", err)
		}
	}
	return nil
}

// HostPath returns the host path of p.
func (v Volume) HostPath(p string) string {
	rel, err := pathuri.Relative(p)
	if err != nil {
		return p
	}
	return filepath.Join(v.Root, filepath.FromSlash(rel))
}

// Exists reports whether p exists on the host.
func (v Volume) Exists(p string) bool {
	_, err := os.Stat(v.HostPath(p))
	return err == nil
}

type Context struct {
	Volume   Volume
	Catalog  *catalog.Catalog
	Paths    *pathuri.Translator
	Provider *provider.Client
	// Cloud is nil unless a remote document root is configured.
	Cloud         *cloud.Root
	Picker        picker.Launcher
	PickerTimeout time.Duration
	Package       string
	Grants        config.Grants
	Log           logrus.FieldLogger
}

// Resolver returns the content resolver facade.
func (c *Context) Resolver() *ContentResolver {
	return &ContentResolver{pc: c}
}

// Documents returns the document provider facade.
func (c *Context) Documents() *Documents {
	return &Documents{pc: c}
}

// Now is the clock catalog timestamps come from.
var Now = time.Now

// visible reports whether the worker may see a catalog row. Rows belong to
// the package that created them; media rows of other packages need
// read_media, anything else needs manage_external_storage.
func (c *Context) visible(item *catalog.Item) bool {
	switch {
	case c.Grants.ManageExternalStorage:
		return true
	case item.Owner != "" && item.Owner == c.Package:
		return true
	case item.Collection != locator.CollectionDownloads && c.Grants.ReadMedia:
		return true
	}
	return false
}

// writable reports whether the worker may modify a visible catalog row.
func (c *Context) writable(item *catalog.Item) bool {
	return c.Grants.ManageExternalStorage || (item.Owner != "" && item.Owner == c.Package)
}
