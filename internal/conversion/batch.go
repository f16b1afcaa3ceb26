package conversion

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 3

// encodeFunc turns page i into its artifact on disk.
type encodeFunc func(ctx context.Context, i int) error

// runBatches calls encode for indices [0,total) in consecutive batches.
// Pages within a batch run concurrently; a batch starts only after the
// previous one finished and afterBatch returned nil. afterBatch gets the
// half-open index range of the finished batch.
func runBatches(ctx context.Context, total, size int, encode encodeFunc, afterBatch func(from, to int) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for from := 0; from < total; from += size {
		if err := context.Cause(ctx); err != nil {
			return err
		}
		to := min(from+size, total)

		g, gctx := errgroup.WithContext(ctx)
		for i := from; i < to; i++ {
			g.Go(func() error {
				if err := encode(gctx, i); err != nil {
					return fmt.Errorf("page %d: %w", i+1, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := afterBatch(from, to); err != nil {
			return err
		}
	}
	return nil
}
