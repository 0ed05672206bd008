// Package verifier runs one storage operation against a backend
// combination and reduces its outcome to a feedback report.
package verifier

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Action is an operation tag. The tag doubles as the report channel.
type Action string

const (
	ActionRead      Action = "READ_FILE"
	ActionCreate    Action = "CREATE_FILE"
	ActionDelete    Action = "DELETE_FILE"
	ActionRename    Action = "RENAME_FILE"
	ActionMove      Action = "MOVE_FILE"
	ActionOverwrite Action = "OVERWRITE_FILE"
)

var actions = map[string]Action{
	"read":      ActionRead,
	"create":    ActionCreate,
	"delete":    ActionDelete,
	"rename":    ActionRename,
	"move":      ActionMove,
	"overwrite": ActionOverwrite,
}

// ErrUnknownAction is returned by ParseAction.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction accepts an action tag or its lowercase short name.
func ParseAction(s string) (Action, error) {
	s = strings.TrimSpace(s)
	for _, a := range actions {
		if s == string(a) {
			return a, nil
		}
	}
	if a, ok := actions[s]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Descriptor describes one invocation.
type Descriptor struct {
	Action   Action
	Selector string
	Target   string
	// Secondary is the new path of a rename or the destination folder of
	// a move.
	Secondary string
	// Payload is the content to write; nil means none was given.
	Payload *string
}

// Validation failures, raised before any backend is called.
var (
	ErrFileNotExists          = errors.New("file not exists")
	ErrCrossDirectoryRename   = errors.New("cannot rename file to another directory")
	ErrMoveTargetNotDirectory = errors.New("please use directory path as move_to")
	ErrMoveWithinDirectory    = errors.New("please use rename if you just want to rename a file")
	ErrMissingArgument        = errors.New("missing argument")
)

// ValidationError is a structural precondition the descriptor violates.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks the structural preconditions of d that need no
// filesystem access.
func Validate(d Descriptor) error {
	switch d.Action {
	case ActionRename:
		if d.Secondary == "" {
			return invalid(ErrMissingArgument, "rename needs move_to")
		}
		if path.Dir(path.Clean(d.Target)) != path.Dir(path.Clean(d.Secondary)) {
			return invalid(ErrCrossDirectoryRename, "%s -> %s", d.Target, d.Secondary)
		}
	case ActionMove:
		if d.Secondary == "" {
			return invalid(ErrMissingArgument, "move needs move_to")
		}
		if !strings.HasSuffix(d.Secondary, "/") {
			return invalid(ErrMoveTargetNotDirectory, "%s", d.Secondary)
		}
		if path.Dir(path.Clean(d.Target)) == path.Clean(d.Secondary) {
			return invalid(ErrMoveWithinDirectory, "%s -> %s", d.Target, d.Secondary)
		}
	case ActionOverwrite:
		if d.Payload == nil {
			return invalid(ErrMissingArgument, "overwrite needs data")
		}
	}
	return nil
}
