package effers

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// generateParallel uses a three-phase pipeline:
//
//	Phase A (serial):   read each file, scan for directives, check the manifest
//	Phase B (parallel): parse, generate and render each input
//	Phase C (serial):   write outputs and commit manifest rows
//
// Phase C runs on the calling goroutine, so SQLite only ever sees one writer.
func (e *Engine) generateParallel(ctx context.Context, log *zap.Logger, run *Run, report *Report, paths []string) error {
	// ---- Phase A: Serial prepare ----
	var (
		items []*workItem
		errs  error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		item, skip, err := e.prepareFile(ctx, log, path)
		if err != nil {
			errs = multierr.Append(errs, e.fail(log, report, path, err))
			continue
		}
		if skip != nil {
			if skip.Skipped {
				log.Debug("unchanged, skipping", zap.String("path", path))
			}
			report.Files = append(report.Files, skip)
			continue
		}
		if item != nil {
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return errs
	}

	// ---- Phase B: Parallel generation ----
	numWorkers := min(runtime.NumCPU(), len(items))

	workCh := make(chan *workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	resultCh := make(chan *workItem, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					item.err = err
				} else {
					e.generateItem(ctx, item)
				}
				resultCh <- item
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for item := range resultCh {
		errs = multierr.Append(errs, e.commitItem(log, run, report, item))
	}
	return errs
}
