// Package bulkdelete implements C14: deleting a batch of message ids with
// bounded concurrency, tolerating individual failures (spec.md §4.14).
package bulkdelete

import (
	"context"
	"sync"
	"sync/atomic"
)

// Concurrency is the fixed worker count spec.md §4.14 specifies.
const Concurrency = 10

// DeleteFunc deletes a single message id, returning an error on failure.
type DeleteFunc func(ctx context.Context, messageID string) error

// Result is the outcome of a batch run.
type Result struct {
	Deleted int
	Failed  int
}

// Run deletes every id in ids using del, at most Concurrency in flight at
// once. Individual failures don't abort the batch.
func Run(ctx context.Context, ids []string, del DeleteFunc) Result {
	sem := make(chan struct{}, Concurrency)
	var wg sync.WaitGroup
	var deleted, failed int64

	for _, id := range ids {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := del(ctx, id); err != nil {
				atomic.AddInt64(&failed, 1)
				return
			}
			atomic.AddInt64(&deleted, 1)
		}()
	}
	wg.Wait()

	return Result{Deleted: int(deleted), Failed: int(failed)}
}
