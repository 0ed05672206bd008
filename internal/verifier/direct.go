package verifier

import (
	"context"

	"storageverifier/internal/backend"
	"storageverifier/internal/backend/direct"
	"storageverifier/internal/report"
)

// runDirect runs d straight on the filesystem.
func (e *Executor) runDirect(ctx context.Context, f *direct.FileAPI, d Descriptor) (string, *report.ResultSet) {
	rs := report.NewResultSet()
	switch d.Action {
	case ActionRead:
		rs.Set(FieldContent, outcome(f.Content(ctx, d.Target), same[string]))
		rs.Set(FieldSize, attribute(f.Size(ctx, d.Target)))
		rs.Set(FieldModifiedTime, attribute(f.ModifiedTime(ctx, d.Target)))
		return report.Evaluate(rs), rs

	case ActionCreate:
		rs.Set(FieldEditPath, outcome(f.Create(ctx, d.Target, d.Payload), same[string]))
		return report.Evaluate(rs), rs

	case ActionDelete:
		res := f.Delete(ctx, d.Target)
		if res.Succeeded {
			rs.Set(FieldEditPath, res.Value)
		} else {
			rs.Set(FieldEditPath, "false")
		}
		return report.Evaluate(res.Succeeded), rs

	case ActionRename:
		rs.Set(FieldEditPath, outcome(f.Rename(ctx, d.Target, d.Secondary), same[string]))
		return report.Evaluate(rs), rs

	case ActionMove:
		rs.Set(FieldEditPath, outcome(f.Move(ctx, d.Target, d.Secondary), same[string]))
		return report.Evaluate(rs), rs

	case ActionOverwrite:
		res := f.Overwrite(ctx, d.Target, payloadOrEmpty(d.Payload))
		if res.Faulted() {
			return report.Evaluate(res.Message), rs
		}
		return report.Evaluate(res.Succeeded), rs
	}
	return report.Unknown, rs
}

// attribute reports a file attribute the way the filesystem does: an
// unreadable file has size and modification time 0.
func attribute(r backend.Result[int64]) any {
	if r.Faulted() {
		return r.Message
	}
	return r.Value
}
