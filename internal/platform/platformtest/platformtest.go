// Package platformtest builds throwaway platform contexts for tests: a
// temporary volume, its catalog, and a document provider served over
// httptest.
package platformtest

import (
	"context"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"storageverifier/internal/catalog"
	"storageverifier/internal/config"
	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
	"storageverifier/internal/picker"
	"storageverifier/internal/platform"
	"storageverifier/internal/provider"
)

// Package is the package name test contexts run as.
const Package = "com.abc.storage_verifier"

type Option func(*platform.Context)

// WithGrants sets the grants the worker holds.
func WithGrants(g config.Grants) Option {
	return func(pc *platform.Context) { pc.Grants = g }
}

// WithPicker answers picker intents with fn.
func WithPicker(fn func(picker.Intent) picker.Completion) Option {
	return func(pc *platform.Context) { pc.Picker = picker.LauncherFunc(fn) }
}

// WithFaithfulPicker answers every intent with what it asked for: the
// titled file in the initial folder, a new document there, or the initial
// folder as a tree.
func WithFaithfulPicker() Option {
	return func(pc *platform.Context) {
		pc.Picker = picker.LauncherFunc(func(in picker.Intent) picker.Completion {
			return FaithfulGrant(pc, in)
		})
	}
}

// FaithfulGrant is the grant a well-behaved picker gives for in.
func FaithfulGrant(pc *platform.Context, in picker.Intent) picker.Completion {
	docID, _ := in.InitialURI.DocumentID()
	switch in.Action {
	case picker.OpenDocument:
		_, rel, _ := locator.SplitDocID(docID)
		l := locator.Document(locator.ExternalStorageAuthority, locator.PrimaryDocID(path.Join(rel, in.Title)))
		return picker.Completion{OK: true, URI: l}
	case picker.CreateDocument:
		l, err := pc.Documents().Create(context.Background(), in.InitialURI, in.Title)
		if err != nil {
			return picker.Completion{}
		}
		return picker.Completion{OK: true, URI: l}
	case picker.OpenDocumentTree:
		return picker.Completion{OK: true, URI: locator.Tree(locator.ExternalStorageAuthority, docID)}
	}
	return picker.Completion{}
}

// New returns a context over a fresh volume. The worker holds no grants
// unless WithGrants says otherwise, and every picker intent is cancelled
// unless WithPicker says otherwise.
func New(t *testing.T, opts ...Option) (*platform.Context, *test.Hook) {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	vol := platform.Volume{Root: filepath.Join(t.TempDir(), "volume")}
	require.NoError(t, vol.Prepare())

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	srv := httptest.NewServer(provider.NewServer(vol.Root, "", "", log))
	t.Cleanup(srv.Close)

	pc := &platform.Context{
		Volume:   vol,
		Catalog:  cat,
		Paths:    pathuri.NewTranslator(cat),
		Provider: provider.NewClient(provider.Config{URL: srv.URL}, log),
		Picker: picker.LauncherFunc(func(picker.Intent) picker.Completion {
			return picker.Completion{}
		}),
		Package: Package,
		Log:     log,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc, hook
}

// WriteFile writes content to the volume path p, creating parents.
func WriteFile(t *testing.T, pc *platform.Context, p, content string) {
	t.Helper()
	host := pc.Volume.HostPath(p)
	require.NoError(t, os.MkdirAll(filepath.Dir(host), 0755))
	require.NoError(t, os.WriteFile(host, []byte(content), 0644))
}

// ReadFile returns the content of the volume path p.
func ReadFile(t *testing.T, pc *platform.Context, p string) string {
	t.Helper()
	b, err := os.ReadFile(pc.Volume.HostPath(p))
	require.NoError(t, err)
	return string(b)
}

// Exists reports whether the volume path p exists.
func Exists(pc *platform.Context, p string) bool {
	return pc.Volume.Exists(p)
}

// Own writes content to p and catalogs it as an item owned by the worker.
func Own(t *testing.T, pc *platform.Context, p, content string) locator.Locator {
	t.Helper()
	return catalogue(t, pc, p, content, Package)
}

// Foreign writes content to p and catalogs it as owned by another package.
func Foreign(t *testing.T, pc *platform.Context, p, content string) locator.Locator {
	t.Helper()
	return catalogue(t, pc, p, content, "com.other.app")
}

func catalogue(t *testing.T, pc *platform.Context, p, content, owner string) locator.Locator {
	t.Helper()
	WriteFile(t, pc, p, content)
	collection, err := pathuri.CollectionForPath(p)
	require.NoError(t, err)
	data, err := pathuri.EmulatedPath(p)
	require.NoError(t, err)

	fi, err := os.Stat(pc.Volume.HostPath(p))
	require.NoError(t, err)
	item := &catalog.Item{
		Collection:   collection,
		Data:         data,
		DisplayName:  filepath.Base(p),
		MimeType:     platform.MimeForName(p),
		Size:         fi.Size(),
		DateModified: fi.ModTime().Unix(),
		Owner:        owner,
	}
	require.NoError(t, pc.Catalog.Insert(context.Background(), item))
	if collection == locator.CollectionDownloads {
		_, err := pc.Catalog.RegisterDownload(context.Background(), data, item.DisplayName)
		require.NoError(t, err)
	}
	return locator.MediaItem(collection, item.ID)
}

// Document returns the external-storage document locator of p.
func Document(t *testing.T, p string) locator.Locator {
	t.Helper()
	l, err := pathuri.DocumentLocator(p)
	require.NoError(t, err)
	return l
}

// Tree returns the external-storage tree locator of the folder p.
func Tree(t *testing.T, p string) locator.Locator {
	t.Helper()
	rel, err := pathuri.Relative(p)
	require.NoError(t, err)
	return locator.Tree(locator.ExternalStorageAuthority, locator.PrimaryDocID(rel))
}
