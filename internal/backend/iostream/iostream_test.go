package iostream

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storageverifier/internal/codec"
	"storageverifier/internal/config"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform/platformtest"
)

func TestRead(t *testing.T) {
	ctx := context.Background()
	binary := strings.Repeat("\x00\x01", 75)

	t.Run("catalog item without media_location falls back", func(t *testing.T) {
		pc, hook := platformtest.New(t)
		l := platformtest.Own(t, pc, "/sdcard/Pictures/a.jpg", "hello")
		res := New(pc).Read(ctx, l)
		require.True(t, res.Succeeded, res.Message)
		assert.Equal(t, "hello", res.Value)

		var fellBack bool
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.InfoLevel && e.Message == "unrestricted read refused, falling back" {
				fellBack = true
			}
		}
		assert.True(t, fellBack)
	})

	t.Run("catalog item with media_location", func(t *testing.T) {
		pc, hook := platformtest.New(t, platformtest.WithGrants(config.Grants{MediaLocation: true}))
		l := platformtest.Own(t, pc, "/sdcard/Pictures/a.jpg", "hello")
		res := New(pc).Read(ctx, l)
		require.True(t, res.Succeeded, res.Message)
		assert.Equal(t, "hello", res.Value)
		for _, e := range hook.AllEntries() {
			assert.NotEqual(t, "unrestricted read refused, falling back", e.Message)
		}
	})

	t.Run("binary document", func(t *testing.T) {
		pc, _ := platformtest.New(t)
		platformtest.WriteFile(t, pc, "/sdcard/Documents/b.bin", binary)
		res := New(pc).Read(ctx, platformtest.Document(t, "/sdcard/Documents/b.bin"))
		require.True(t, res.Succeeded, res.Message)
		assert.True(t, codec.IsTagged(res.Value))
		b, err := codec.Decode(res.Value)
		require.NoError(t, err)
		assert.Equal(t, binary, string(b))
	})

	t.Run("missing", func(t *testing.T) {
		pc, _ := platformtest.New(t)
		res := New(pc).Read(ctx, platformtest.Document(t, "/sdcard/Documents/none.txt"))
		assert.True(t, res.Faulted())
	})
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("document", func(t *testing.T) {
		pc, _ := platformtest.New(t)
		platformtest.WriteFile(t, pc, "/sdcard/Documents/d.txt", "old content")
		res := New(pc).Write(ctx, platformtest.Document(t, "/sdcard/Documents/d.txt"), "new")
		require.True(t, res.Succeeded, res.Message)
		assert.Equal(t, "/storage/emulated/0/Documents/d.txt", *res.Value)
		assert.Equal(t, "new", platformtest.ReadFile(t, pc, "/sdcard/Documents/d.txt"))
	})

	t.Run("tagged payload", func(t *testing.T) {
		pc, _ := platformtest.New(t)
		l := platformtest.Own(t, pc, "/sdcard/Download/a.bin", "")
		res := New(pc).Write(ctx, l, codec.Prefix+"AAEC")
		require.True(t, res.Succeeded, res.Message)
		assert.Equal(t, "\x00\x01\x02", platformtest.ReadFile(t, pc, "/sdcard/Download/a.bin"))
	})

	t.Run("invalid payload", func(t *testing.T) {
		pc, _ := platformtest.New(t)
		l := platformtest.Own(t, pc, "/sdcard/Download/a.bin", "keep")
		res := New(pc).Write(ctx, l, codec.Prefix+"%%%")
		assert.True(t, res.Faulted())
		assert.Equal(t, "keep", platformtest.ReadFile(t, pc, "/sdcard/Download/a.bin"))
	})

	t.Run("remote document has no path", func(t *testing.T) {
		pc, _ := platformtest.New(t)
		res := New(pc).Write(ctx, locator.Document(locator.CloudAuthority, "a.txt"), "x")
		assert.True(t, res.Faulted())
	})
}
