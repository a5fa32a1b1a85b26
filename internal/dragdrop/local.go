package dragdrop

import (
	"context"

	"github.com/example/studio-scheduler/internal/scheduler"
)

// SnapshotChecker runs checks in-process against a fixed snapshot.
type SnapshotChecker struct {
	Checker  *scheduler.Checker
	Snapshot scheduler.Snapshot
}

// CheckMove evaluates req unless ctx is already done.
func (s SnapshotChecker) CheckMove(ctx context.Context, req scheduler.Request) (scheduler.Result, error) {
	if err := ctx.Err(); err != nil {
		return scheduler.Result{}, err
	}
	return s.Checker.Check(s.Snapshot, req)
}
