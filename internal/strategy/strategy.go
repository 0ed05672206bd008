// Package strategy turns a backend selector into the backends one
// invocation runs with. A selector is either a single name, which picks the
// path backend, or "locate@manage@access".
package strategy

import (
	"fmt"
	"strings"

	"storageverifier/internal/backend"
	"storageverifier/internal/backend/contentresolver"
	"storageverifier/internal/backend/direct"
	"storageverifier/internal/backend/documentfile"
	"storageverifier/internal/backend/documentscontract"
	"storageverifier/internal/backend/filedescriptor"
	"storageverifier/internal/backend/iostream"
	"storageverifier/internal/backend/mediastore"
	"storageverifier/internal/backend/safpicker"
	"storageverifier/internal/platform"
)

// Separator splits the three names of a triple selector.
const Separator = "@"

// Capability names the slot a backend name fills.
type Capability string

const (
	CapabilitySelector Capability = "selector"
	CapabilityPath     Capability = "path"
	CapabilityLocate   Capability = "locate"
	CapabilityManage   Capability = "manage"
	CapabilityAccess   Capability = "access"
)

// directAlias is the name older harnesses use for the path backend.
const directAlias = "file"

// ResolutionError reports a selector naming no known backend.
type ResolutionError struct {
	Capability Capability
	Name       string
}

func (e *ResolutionError) Error() string {
	if e.Capability == CapabilitySelector {
		return fmt.Sprintf("invalid backend selector %q: expected <name> or <locate>@<manage>@<access>", e.Name)
	}
	return fmt.Sprintf("unknown %s backend %q", e.Capability, e.Name)
}

// Selector is a parsed selector. Exactly one of Direct and the triple is
// set: Direct holds the path backend name, the triple the three names in
// slot order.
type Selector struct {
	Direct string
	Locate string
	Manage string
	Access string
}

// IsDirect reports whether s selects the path backend.
func (s Selector) IsDirect() bool {
	return s.Direct != ""
}

func (s Selector) String() string {
	if s.IsDirect() {
		return s.Direct
	}
	return strings.Join([]string{s.Locate, s.Manage, s.Access}, Separator)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Parse splits a selector. Names are trimmed and lowercased but not
// checked; Resolve does that.
func Parse(selector string) (Selector, error) {
	parts := strings.Split(selector, Separator)
	for i := range parts {
		parts[i] = normalize(parts[i])
	}
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Selector{}, &ResolutionError{Capability: CapabilitySelector, Name: selector}
		}
		return Selector{Direct: parts[0]}, nil
	case 3:
		for _, p := range parts {
			if p == "" {
				return Selector{}, &ResolutionError{Capability: CapabilitySelector, Name: selector}
			}
		}
		return Selector{Locate: parts[0], Manage: parts[1], Access: parts[2]}, nil
	}
	return Selector{}, &ResolutionError{Capability: CapabilitySelector, Name: selector}
}

// Combination is the set of backends one invocation runs with. Direct is
// set for a path selector; Locate, Manage and Access for a triple.
type Combination struct {
	Selector Selector
	Direct   *direct.FileAPI
	Locate   backend.Locator
	Manage   backend.Lifecycle
	Access   backend.Access
}

// Resolve parses selector and constructs its backends. Construction does
// no I/O; every backend only keeps pc.
func Resolve(pc *platform.Context, selector string) (*Combination, error) {
	sel, err := Parse(selector)
	if err != nil {
		return nil, err
	}
	c := &Combination{Selector: sel}
	if sel.IsDirect() {
		switch sel.Direct {
		case direct.Name, directAlias:
			c.Direct = direct.New(pc)
			return c, nil
		}
		return nil, &ResolutionError{Capability: CapabilityPath, Name: sel.Direct}
	}

	if c.Locate, err = locate(pc, sel.Locate); err != nil {
		return nil, err
	}
	if c.Manage, err = manage(pc, sel.Manage); err != nil {
		return nil, err
	}
	if c.Access, err = access(pc, sel.Access); err != nil {
		return nil, err
	}
	return c, nil
}

func locate(pc *platform.Context, name string) (backend.Locator, error) {
	switch name {
	case direct.Name, directAlias:
		return direct.New(pc), nil
	case mediastore.Name:
		return mediastore.New(pc), nil
	case safpicker.Name:
		return safpicker.New(pc), nil
	}
	return nil, &ResolutionError{Capability: CapabilityLocate, Name: name}
}

func manage(pc *platform.Context, name string) (backend.Lifecycle, error) {
	switch name {
	case contentresolver.Name:
		return contentresolver.New(pc), nil
	case documentscontract.Name:
		return documentscontract.New(pc), nil
	case documentfile.Name:
		return documentfile.New(pc), nil
	}
	return nil, &ResolutionError{Capability: CapabilityManage, Name: name}
}

func access(pc *platform.Context, name string) (backend.Access, error) {
	switch name {
	case iostream.Name:
		return iostream.New(pc), nil
	case filedescriptor.Name:
		return filedescriptor.New(pc), nil
	}
	return nil, &ResolutionError{Capability: CapabilityAccess, Name: name}
}
