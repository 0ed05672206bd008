package safpicker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storageverifier/internal/locator"
	"storageverifier/internal/picker"
	"storageverifier/internal/platform"
	"storageverifier/internal/platform/platformtest"
)

// recorder wraps a picker and remembers what it was asked.
type recorder struct {
	pc      *platform.Context
	intents []picker.Intent
	answer  func(*platform.Context, picker.Intent) picker.Completion
}

func newRecorder(t *testing.T, answer func(*platform.Context, picker.Intent) picker.Completion) (*platform.Context, *recorder) {
	rec := &recorder{answer: answer}
	pc, _ := platformtest.New(t, platformtest.WithPicker(func(in picker.Intent) picker.Completion {
		rec.intents = append(rec.intents, in)
		return rec.answer(rec.pc, in)
	}))
	rec.pc = pc
	return pc, rec
}

func TestResolveExisting(t *testing.T) {
	ctx := context.Background()
	pc, rec := newRecorder(t, platformtest.FaithfulGrant)
	platformtest.WriteFile(t, pc, "/sdcard/Download/a.txt", "x")
	a := New(pc)

	res := a.ResolveExisting(ctx, "/sdcard/Download/a.txt")
	require.True(t, res.Succeeded, res.Message)
	assert.Equal(t, platformtest.Document(t, "/sdcard/Download/a.txt"), res.Value)

	require.Len(t, rec.intents, 1)
	in := rec.intents[0]
	assert.Equal(t, picker.OpenDocument, in.Action)
	assert.Equal(t, "a.txt", in.Title)
	assert.Equal(t, platformtest.Document(t, "/sdcard/Download/"), in.InitialURI)
	assert.Len(t, in.ID, 26)
}

func TestResolveExisting_Redirected(t *testing.T) {
	ctx := context.Background()
	pc, _ := newRecorder(t, func(_ *platform.Context, in picker.Intent) picker.Completion {
		// the user picked a file of the same name elsewhere
		l := locator.Document(locator.ExternalStorageAuthority, locator.PrimaryDocID("Documents/"+in.Title))
		return picker.Completion{OK: true, URI: l}
	})
	res := New(pc).ResolveExisting(ctx, "/sdcard/Download/a.txt")
	assert.False(t, res.Succeeded)
	assert.Equal(t, "false", res.Message)
}

func TestResolveExisting_Cancelled(t *testing.T) {
	pc, _ := platformtest.New(t)
	res := New(pc).ResolveExisting(context.Background(), "/sdcard/Download/a.txt")
	assert.False(t, res.Succeeded)
	assert.Equal(t, "false", res.Message)
}

func TestResolveExisting_Directory(t *testing.T) {
	pc, rec := newRecorder(t, platformtest.FaithfulGrant)
	res := New(pc).ResolveExisting(context.Background(), "/sdcard/Download/")
	assert.True(t, res.Faulted())
	assert.Empty(t, rec.intents)
}

func TestResolveExisting_Timeout(t *testing.T) {
	pc, _ := platformtest.New(t)
	broker := picker.NewBroker(pc.Log)
	pc.Picker = broker
	pc.PickerTimeout = 20 * time.Millisecond

	res := New(pc).ResolveExisting(context.Background(), "/sdcard/Download/a.txt")
	assert.True(t, res.Faulted())
	assert.Contains(t, res.Message, "no grant before timeout")
	assert.Eventually(t, func() bool { return len(broker.Pending()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestResolveForNew(t *testing.T) {
	ctx := context.Background()
	pc, rec := newRecorder(t, platformtest.FaithfulGrant)
	a := New(pc)

	res := a.ResolveForNew(ctx, "/sdcard/Documents/new.txt")
	require.True(t, res.Succeeded, res.Message)
	assert.True(t, platformtest.Exists(pc, "/sdcard/Documents/new.txt"))
	assert.Equal(t, picker.CreateDocument, rec.intents[0].Action)

	res = a.ResolveForNew(ctx, "/sdcard/Documents/")
	require.True(t, res.Succeeded, res.Message)
	assert.Equal(t, locator.KindTree, res.Value.Kind())
	assert.Equal(t, picker.OpenDocumentTree, rec.intents[1].Action)
	assert.Empty(t, rec.intents[1].Title)
}

func TestResolveForMove(t *testing.T) {
	ctx := context.Background()

	t.Run("chains both pickers", func(t *testing.T) {
		pc, rec := newRecorder(t, platformtest.FaithfulGrant)
		platformtest.WriteFile(t, pc, "/sdcard/Download/m.txt", "x")

		res := New(pc).ResolveForMove(ctx, "/sdcard/Download/m.txt", "/sdcard/Documents/")
		require.True(t, res.Succeeded, res.Message)
		assert.Equal(t, platformtest.Document(t, "/sdcard/Download/m.txt"), res.Value.From)
		assert.Equal(t, platformtest.Tree(t, "/sdcard/Documents/"), res.Value.To)

		require.Len(t, rec.intents, 2)
		assert.Equal(t, picker.OpenDocument, rec.intents[0].Action)
		assert.Equal(t, picker.OpenDocumentTree, rec.intents[1].Action)
	})

	t.Run("second picker skipped when the first fails", func(t *testing.T) {
		pc, rec := newRecorder(t, func(*platform.Context, picker.Intent) picker.Completion {
			return picker.Completion{}
		})

		res := New(pc).ResolveForMove(ctx, "/sdcard/Download/m.txt", "/sdcard/Documents/")
		assert.False(t, res.Succeeded)
		assert.Equal(t, "false", res.Message)
		assert.Len(t, rec.intents, 1)
	})

	t.Run("destination must be a directory", func(t *testing.T) {
		pc, rec := newRecorder(t, platformtest.FaithfulGrant)
		res := New(pc).ResolveForMove(ctx, "/sdcard/Download/m.txt", "/sdcard/Documents")
		assert.True(t, res.Faulted())
		assert.Empty(t, rec.intents)
	})
}
