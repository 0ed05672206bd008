package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storageverifier/internal/config"
	"storageverifier/internal/locator"
	"storageverifier/internal/platform/platformtest"
)

func TestCapture(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() (int64, bool, error)
		succeeded bool
		message   string
		value     int64
	}{
		{"positive", func() (int64, bool, error) { return 7, true, nil }, true, "true", 7},
		{"negative", func() (int64, bool, error) { return 0, false, nil }, false, "false", 0},
		{"fault", func() (int64, bool, error) { return 9, true, errors.New("boom") }, false, "EXCEPTION: boom", 0},
		{"panic", func() (int64, bool, error) { panic("bad state") }, false, "EXCEPTION: panic: bad state", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Capture(tt.fn)
			assert.Equal(t, tt.succeeded, res.Succeeded)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.value, res.Value)
		})
	}
}

func TestException_Truncates(t *testing.T) {
	msg := Exception(errors.New(strings.Repeat("é", 1500)))
	assert.True(t, strings.HasPrefix(msg, ExceptionMarker))
	assert.Equal(t, 1000, len([]rune(strings.TrimPrefix(msg, ExceptionMarker))))
}

func TestUnsupported(t *testing.T) {
	res := Unsupported[string]("document-file", "rename")
	assert.False(t, res.Succeeded)
	assert.True(t, res.Faulted())
	assert.Equal(t, "EXCEPTION: NOT_IMPLEMENTED: document-file does not support rename", res.Message)
	assert.False(t, Fail("").Faulted())
}

func TestReadOriginal(t *testing.T) {
	pc, hook := platformtest.New(t)
	l := platformtest.Own(t, pc, "/sdcard/Pictures/a.jpg", "content")

	var seen []locator.Locator
	open := func(l locator.Locator) (io.ReadCloser, error) {
		seen = append(seen, l)
		return pc.Resolver().OpenInput(context.Background(), l)
	}

	data, err := ReadOriginal(pc, l, open)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, []locator.Locator{l.WithOriginal(), l}, seen)
	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "unrestricted read refused, falling back", hook.Entries[0].Message)
}

func TestReadOriginal_NoFallbackForOtherFaults(t *testing.T) {
	pc, _ := platformtest.New(t, platformtest.WithGrants(config.Grants{MediaLocation: true}))
	calls := 0
	open := func(locator.Locator) (io.ReadCloser, error) {
		calls++
		return nil, errors.New("disk on fire")
	}
	_, err := ReadOriginal(pc, locator.MediaItem(locator.CollectionImages, 1), open)
	assert.EqualError(t, err, "disk on fire")
	assert.Equal(t, 1, calls)
}

func TestGone(t *testing.T) {
	pc, _ := platformtest.New(t)
	platformtest.WriteFile(t, pc, "/sdcard/Download/here.txt", "x")

	here := "/sdcard/Download/here.txt"
	gone := "/sdcard/Download/gone.txt"
	assert.True(t, Gone(pc, nil))
	assert.False(t, Gone(pc, &here))
	assert.True(t, Gone(pc, &gone))
}
