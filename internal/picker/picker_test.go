package picker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storageverifier/internal/locator"
)

func TestNewIntent(t *testing.T) {
	a := NewIntent(OpenDocument, "content://x/document/primary%3ADownload", "a.txt")
	b := NewIntent(OpenDocumentTree, "content://x/document/primary%3ADownload", "")

	_, err := ulid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "*/*", a.MimeType)
	assert.Empty(t, b.MimeType)
}

func post(t *testing.T, srv *httptest.Server, id, body string) int {
	t.Helper()
	resp, err := http.Post(srv.URL+"/intents/"+id, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestBroker_CompleteOnce(t *testing.T) {
	log, _ := test.NewNullLogger()
	b := NewBroker(log)
	srv := httptest.NewServer(b)
	defer srv.Close()

	intent := NewIntent(OpenDocument, "content://x/document/primary%3ADownload", "a.txt")
	result := make(chan Completion, 1)
	errs := make(chan error, 1)
	go func() {
		c, err := Request(context.Background(), b, intent, 5*time.Second)
		result <- c
		errs <- err
	}()

	require.Eventually(t, func() bool { return len(b.Pending()) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/intents")
	require.NoError(t, err)
	var listed []Intent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed, 1)
	assert.Equal(t, intent.ID, listed[0].ID)
	assert.Equal(t, OpenDocument, listed[0].Action)

	uri := "content://com.android.externalstorage.documents/document/primary%3ADownload%2Fa.txt"
	assert.Equal(t, http.StatusNoContent, post(t, srv, intent.ID, `{"result":"ok","uri":"`+uri+`"}`))
	assert.Equal(t, http.StatusConflict, post(t, srv, intent.ID, `{"result":"ok","uri":"`+uri+`"}`))

	require.NoError(t, <-errs)
	c := <-result
	assert.True(t, c.OK)
	assert.Equal(t, locator.Locator(uri), c.URI)
	assert.Empty(t, b.Pending())
}

func TestBroker_Errors(t *testing.T) {
	log, _ := test.NewNullLogger()
	b := NewBroker(log)
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	intent := NewIntent(CreateDocument, "", "new.txt")
	_, err := b.Launch(ctx, intent)
	require.NoError(t, err)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"unknown id", "01HNOSUCHINTENT", `{"result":"ok"}`, http.StatusNotFound},
		{"bad json", intent.ID, `{`, http.StatusBadRequest},
		{"bad result", intent.ID, `{"result":"maybe"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, srv, tt.id, tt.body))
		})
	}

	resp, err := http.Get(srv.URL + "/intents/" + intent.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/intents/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBroker_CanceledAndAbandoned(t *testing.T) {
	log, _ := test.NewNullLogger()
	b := NewBroker(log)
	srv := httptest.NewServer(b)
	defer srv.Close()

	t.Run("canceled", func(t *testing.T) {
		intent := NewIntent(OpenDocument, "", "a.txt")
		done, err := b.Launch(context.Background(), intent)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, post(t, srv, intent.ID, `{"result":"canceled"}`))
		c := <-done
		assert.False(t, c.OK)
	})

	t.Run("timeout abandons the intent", func(t *testing.T) {
		intent := NewIntent(OpenDocument, "", "b.txt")
		_, err := Request(context.Background(), b, intent, 20*time.Millisecond)
		assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)

		require.Eventually(t, func() bool {
			return post(t, srv, intent.ID, `{"result":"ok","uri":"content://x"}`) == http.StatusConflict
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Request(ctx, b, NewIntent(OpenDocument, "", "c.txt"), 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLauncherFunc(t *testing.T) {
	var seen []Action
	l := LauncherFunc(func(in Intent) Completion {
		seen = append(seen, in.Action)
		return Completion{OK: true, URI: "content://granted"}
	})
	c, err := Request(context.Background(), l, NewIntent(OpenDocumentTree, "", ""), time.Second)
	require.NoError(t, err)
	assert.True(t, c.OK)
	assert.Equal(t, []Action{OpenDocumentTree}, seen)
}
