package ssh

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

// ProbeBatch 并发探测，结果顺序与 targets 一致；ctx 取消后未开始的目标记为离线
func (p *Prober) ProbeBatch(ctx context.Context, targets []workflow.Target, workers int, force bool) []workflow.ProbeResult {
	if workers <= 0 {
		workers = 8
	}
	out := make([]workflow.ProbeResult, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = workflow.ProbeResult{Online: false, Detail: err.Error()}
				return nil
			}
			out[i] = p.Test(ctx, t, force)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
