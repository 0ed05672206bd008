package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "db", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	item := &Item{
		Collection:   "images",
		Data:         "/storage/emulated/0/Pictures/a.png",
		DisplayName:  "a.png",
		MimeType:     "image/png",
		Size:         10,
		DateModified: 1700000000,
		Owner:        "com.example",
	}
	require.NoError(t, c.Insert(ctx, item))
	require.NotZero(t, item.ID)

	t.Run("get by id", func(t *testing.T) {
		got, err := c.Get(ctx, "images", item.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *item, *got)
	})

	t.Run("wrong collection", func(t *testing.T) {
		got, err := c.Get(ctx, "video", item.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("find by data", func(t *testing.T) {
		got, err := c.FindByData(ctx, "images", item.Data)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, item.ID, got.ID)
	})

	t.Run("duplicate data rejected", func(t *testing.T) {
		dup := *item
		dup.ID = 0
		assert.Error(t, c.Insert(ctx, &dup))
	})

	t.Run("item path", func(t *testing.T) {
		p, err := c.ItemPath(ctx, "images", item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.Data, p)

		p, err = c.ItemPath(ctx, "images", item.ID+100)
		require.NoError(t, err)
		assert.Empty(t, p)
	})
}

func TestCatalog_MoveTouchDelete(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	item := &Item{Collection: "downloads", Data: "/storage/emulated/0/Download/a.txt", DisplayName: "a.txt"}
	require.NoError(t, c.Insert(ctx, item))

	n, err := c.Move(ctx, item.ID, "/storage/emulated/0/Download/b.txt", "b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, c.Touch(ctx, item.ID, 42, 1700000001))
	got, err := c.Get(ctx, "downloads", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.DisplayName)
	assert.EqualValues(t, 42, got.Size)
	assert.EqualValues(t, 1700000001, got.DateModified)

	exists, err := c.Exists(ctx, "/storage/emulated/0/Download/B.TXT")
	require.NoError(t, err)
	assert.True(t, exists, "paths compare case-insensitively")

	n, err = c.Delete(ctx, "downloads", item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = c.Delete(ctx, "downloads", item.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCatalog_Downloads(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	withPath, err := c.RegisterDownload(ctx, "/storage/emulated/0/Download/x.bin", "x.bin")
	require.NoError(t, err)
	nameOnly, err := c.RegisterDownload(ctx, "", "y.bin")
	require.NoError(t, err)

	p, err := c.DownloadPath(ctx, withPath)
	require.NoError(t, err)
	assert.Equal(t, "/storage/emulated/0/Download/x.bin", p)

	p, err = c.DownloadPath(ctx, nameOnly)
	require.NoError(t, err)
	assert.Equal(t, "y.bin", p)

	p, err = c.DownloadPath(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, p)

	d, err := c.FindDownload(ctx, "/storage/emulated/0/Download/x.bin")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, withPath, d.ID)

	require.NoError(t, c.ForgetDownload(ctx, "/storage/emulated/0/Download/x.bin"))
	d, err = c.FindDownload(ctx, "/storage/emulated/0/Download/x.bin")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCatalog_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	for _, p := range []string{
		"/storage/emulated/0/Pictures/a_1.png",
		"/storage/emulated/0/Pictures/sub/b.png",
		"/storage/emulated/0/Pictures_x/c.png",
	} {
		require.NoError(t, c.Insert(ctx, &Item{Collection: "images", Data: p, DisplayName: filepath.Base(p)}))
	}

	items, err := c.ListByPrefix(ctx, "/storage/emulated/0/Pictures/")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
