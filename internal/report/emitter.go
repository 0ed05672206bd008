package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyEmitted is returned by every Emit after the first.
var ErrAlreadyEmitted = errors.New("feedback already emitted")

const indent = "    "

// Feedback is the report of one invocation.
type Feedback struct {
	Target  string     `json:"target"`
	Action  string     `json:"action"`
	Success string     `json:"success"`
	Result  *ResultSet `json:"result"`
}

// Emitter writes the feedback report once and then refuses further
// reports.
type Emitter struct {
	mu      sync.Mutex
	w       io.Writer
	log     logrus.FieldLogger
	emitted bool
}

func NewEmitter(w io.Writer, log logrus.FieldLogger) *Emitter {
	return &Emitter{w: w, log: log}
}

// Encode renders f the way Emit writes it.
func Encode(f Feedback) ([]byte, error) {
	if f.Result == nil {
		f.Result = NewResultSet()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode feedback: %w", err)
	}
	return buf.Bytes(), nil
}

// Emit writes f and logs it under its action tag.
func (e *Emitter) Emit(f Feedback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.emitted {
		return ErrAlreadyEmitted
	}

	b, err := Encode(f)
	if err != nil {
		return err
	}
	e.emitted = true
	e.log.WithFields(logrus.Fields{"channel": f.Action, "verdict": f.Success}).Info(string(bytes.TrimRight(b, "\n")))
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("failed to write feedback: %w", err)
	}
	return nil
}

// Emitted reports whether the feedback has been written.
func (e *Emitter) Emitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emitted
}
