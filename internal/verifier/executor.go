package verifier

import (
	"context"
	"errors"
	"path"

	"github.com/sirupsen/logrus"

	"storageverifier/internal/backend"
	"storageverifier/internal/locator"
	"storageverifier/internal/pathuri"
	"storageverifier/internal/platform"
	"storageverifier/internal/report"
	"storageverifier/internal/strategy"
)

// Result fields.
const (
	FieldPath         = "path"
	FieldContent      = "content"
	FieldSize         = "size"
	FieldModifiedTime = "modified_time"
	FieldEditPath     = "edit_path"
)

// Executor runs descriptors against the platform context pc.
type Executor struct {
	pc *platform.Context
}

func New(pc *platform.Context) *Executor {
	return &Executor{pc: pc}
}

// Run executes d and returns its feedback. Backend faults end up inside the
// feedback. A selector that names no backend is returned as a
// *strategy.ResolutionError alongside a feedback reporting it; validation
// failures are reported in the feedback only.
func (e *Executor) Run(ctx context.Context, d Descriptor) (report.Feedback, error) {
	log := e.pc.Log.WithFields(logrus.Fields{"action": d.Action, "api": d.Selector, "path": d.Target})

	c, err := strategy.Resolve(e.pc, d.Selector)
	if err != nil {
		log.WithError(err).Error("cannot resolve backends")
		return e.abort(d, err), err
	}
	if err := e.validate(d); err != nil {
		log.WithError(err).Warn("invalid operation")
		return e.abort(d, err), nil
	}
	log.Debug("running operation")

	var success string
	var rs *report.ResultSet
	if c.Direct != nil {
		success, rs = e.runDirect(ctx, c.Direct, d)
	} else {
		success, rs = e.runURI(ctx, c, d)
	}
	return report.Feedback{Target: d.Target, Action: string(d.Action), Success: success, Result: rs}, nil
}

func (e *Executor) validate(d Descriptor) error {
	if err := Validate(d); err != nil {
		return err
	}
	if d.Action == ActionOverwrite && !e.pc.Volume.Exists(d.Target) {
		return invalid(ErrFileNotExists, "%s", d.Target)
	}
	return nil
}

// abort reports err as the sole diagnostic.
func (e *Executor) abort(d Descriptor, err error) report.Feedback {
	return report.Feedback{
		Target:  d.Target,
		Action:  string(d.Action),
		Success: backend.Exception(err),
		Result:  report.NewResultSet(),
	}
}

func payloadOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// pathValue turns an optional path into a result value.
func pathValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// outcome is the value of a succeeded result, its message otherwise.
func outcome[T any](r backend.Result[T], value func(T) any) any {
	if !r.Succeeded {
		return r.Message
	}
	return value(r.Value)
}

func same[T any](v T) any { return v }

func (e *Executor) runURI(ctx context.Context, c *strategy.Combination, d Descriptor) (string, *report.ResultSet) {
	rs := report.NewResultSet()
	switch d.Action {
	case ActionRead:
		return e.readURI(ctx, c, d.Target, rs)

	case ActionCreate, ActionOverwrite:
		var loc backend.Result[locator.Locator]
		if d.Action == ActionCreate {
			loc = c.Locate.ResolveForNew(ctx, d.Target)
		} else {
			loc = c.Locate.ResolveExisting(ctx, d.Target)
		}
		if !loc.Succeeded || loc.Value == "" {
			rs.Set(FieldEditPath, loc.Message)
			return report.Evaluate(rs), rs
		}
		rs.Set(FieldEditPath, outcome(c.Access.Write(ctx, loc.Value, payloadOrEmpty(d.Payload)), pathValue))
		return report.Evaluate(rs), rs

	case ActionDelete:
		loc := c.Locate.ResolveExisting(ctx, d.Target)
		if !loc.Succeeded || loc.Value == "" {
			rs.Set(FieldEditPath, "false")
			return report.Evaluate(loc.Message), rs
		}
		res := c.Manage.Delete(ctx, loc.Value)
		if !res.Succeeded {
			rs.Set(FieldEditPath, "false")
		} else {
			rs.Set(FieldEditPath, pathValue(res.Value))
		}
		return report.Evaluate(res.Message), rs

	case ActionRename:
		loc := c.Locate.ResolveExisting(ctx, d.Target)
		if !loc.Succeeded || loc.Value == "" {
			rs.Set(FieldEditPath, loc.Message)
			return report.Evaluate(rs), rs
		}
		rs.Set(FieldEditPath, outcome(c.Manage.Rename(ctx, loc.Value, d.Secondary), pathValue))
		return report.Evaluate(rs), rs

	case ActionMove:
		rs.Set(FieldEditPath, e.moveURI(ctx, c, d.Target, d.Secondary))
		return report.Evaluate(rs), rs
	}
	return report.Unknown, rs
}

func (e *Executor) readURI(ctx context.Context, c *strategy.Combination, p string, rs *report.ResultSet) (string, *report.ResultSet) {
	loc := c.Locate.ResolveExisting(ctx, p)
	if !loc.Succeeded || loc.Value == "" {
		rs.Set(FieldContent, loc.Message)
		return report.Evaluate(rs), rs
	}
	l := loc.Value

	// the granted locator may lead somewhere else than p
	got, err := backend.ReversePath(ctx, e.pc, l)
	if err != nil {
		rs.Set(FieldPath, backend.Exception(err))
	} else {
		rs.Set(FieldPath, pathValue(got))
	}
	rs.Set(FieldContent, outcome(c.Access.Read(ctx, l), same[string]))
	rs.Set(FieldSize, outcome(c.Manage.Size(ctx, l), same[int64]))
	rs.Set(FieldModifiedTime, outcome(c.Manage.ModifiedTime(ctx, l), same[int64]))
	return report.Evaluate(rs), rs
}

// moveURI returns the edit_path of a move: the new path, a diagnostic, or
// "false" when the object landed outside toDir.
func (e *Executor) moveURI(ctx context.Context, c *strategy.Combination, from, toDir string) any {
	var src, dst locator.Locator
	if ml, ok := c.Locate.(backend.MoveLocator); ok {
		targets := ml.ResolveForMove(ctx, from, toDir)
		if !targets.Succeeded || targets.Value.From == "" || targets.Value.To == "" {
			return targets.Message
		}
		src, dst = targets.Value.From, targets.Value.To
	} else {
		loc := c.Locate.ResolveExisting(ctx, from)
		if !loc.Succeeded || loc.Value == "" {
			return loc.Message
		}
		target := c.Locate.ResolveForNew(ctx, path.Join(toDir, path.Base(from)))
		if !target.Succeeded || target.Value == "" {
			return target.Message
		}
		src, dst = loc.Value, target.Value
	}

	res := c.Manage.Move(ctx, src, dst)
	if !res.Succeeded {
		return res.Message
	}
	if res.Value != nil && !pathuri.SameFolder(*res.Value, toDir) {
		e.pc.Log.WithFields(logrus.Fields{"real": *res.Value, "to": toDir}).Info("move redirected")
		return "false"
	}
	return pathValue(res.Value)
}

// IsResolutionError reports whether err came from selector resolution.
func IsResolutionError(err error) bool {
	var re *strategy.ResolutionError
	return errors.As(err, &re)
}
