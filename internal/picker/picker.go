// Package picker hands document-selection intents to the interactive
// picker and waits for the single grant each one produces.
package picker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"storageverifier/internal/locator"
)

type Action string

const (
	OpenDocument     Action = "OPEN_DOCUMENT"
	CreateDocument   Action = "CREATE_DOCUMENT"
	OpenDocumentTree Action = "OPEN_DOCUMENT_TREE"
)

// Intent asks the picker for one grant.
type Intent struct {
	ID         string          `json:"id"`
	Action     Action          `json:"action"`
	InitialURI locator.Locator `json:"initial_uri"`
	// Title is the file name the picker should select or type.
	Title    string    `json:"title,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
	Created  time.Time `json:"created"`
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewIntent builds an intent with a fresh id.
func NewIntent(action Action, initial locator.Locator, title string) Intent {
	in := Intent{
		ID:         newID(),
		Action:     action,
		InitialURI: initial,
		Title:      title,
		Created:    time.Now(),
	}
	if action != OpenDocumentTree {
		in.MimeType = "*/*"
	}
	return in
}

// Completion is the picker's answer. OK is false when the user cancelled;
// URI may be empty even when OK is true.
type Completion struct {
	OK  bool
	URI locator.Locator
}

// Launcher starts the picker for an intent. The returned channel delivers
// exactly one Completion unless ctx ends first; the launcher forgets the
// intent once ctx is done.
type Launcher interface {
	Launch(ctx context.Context, intent Intent) (<-chan Completion, error)
}

var ErrTimeout = errors.New("picker: no grant before timeout")

// Request launches intent and waits for its completion. timeout <= 0 waits
// until ctx is done.
func Request(ctx context.Context, l Launcher, intent Intent, timeout time.Duration) (Completion, error) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done, err := l.Launch(ctx, intent)
	if err != nil {
		return Completion{}, fmt.Errorf("picker: launch %s: %w", intent.Action, err)
	}

	select {
	case c := <-done:
		return c, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Completion{}, fmt.Errorf("%w: %s %s after %s", ErrTimeout, intent.Action, intent.ID, timeout)
		}
		return Completion{}, fmt.Errorf("picker: %s %s: %w", intent.Action, intent.ID, ctx.Err())
	}
}

// LauncherFunc answers intents synchronously, e.g. from a script.
type LauncherFunc func(Intent) Completion

func (f LauncherFunc) Launch(_ context.Context, intent Intent) (<-chan Completion, error) {
	done := make(chan Completion, 1)
	done <- f(intent)
	return done, nil
}
