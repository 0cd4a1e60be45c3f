package shared

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vsinha/bom/pkg/domain/graph"
)

// LevelRunner executes independent per-vertex work with a bounded pool of goroutines.
// Each call returns only after every task of the batch has finished, which is the
// barrier between two graph levels.
type LevelRunner struct {
	workers int
}

// NewLevelRunner creates a runner; workers <= 0 means GOMAXPROCS
func NewLevelRunner(workers int) *LevelRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &LevelRunner{workers: workers}
}

// Workers returns the pool size
func (r *LevelRunner) Workers() int {
	return r.workers
}

// RunAll calls fn for i in [0, n) and waits for all of them. The first error cancels
// the context handed to the remaining tasks and is returned.
func (r *LevelRunner) RunAll(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.workers)
	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			return fn(gCtx, i)
		})
	}
	return eg.Wait()
}

// RunLevel calls fn for every vertex of one level; pos is the vertex's index in nodes,
// so callers can write results into a slot per vertex and merge them after the barrier
func (r *LevelRunner) RunLevel(
	ctx context.Context,
	nodes []graph.NodeIndex,
	fn func(ctx context.Context, pos int, node graph.NodeIndex) error,
) error {
	return r.RunAll(ctx, len(nodes), func(ctx context.Context, i int) error {
		return fn(ctx, i, nodes[i])
	})
}
