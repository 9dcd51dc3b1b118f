package bulkdelete

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCountsSuccessesAndFailures(t *testing.T) {
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, fmt.Sprintf("msg-%d", i))
	}

	result := Run(context.Background(), ids, func(ctx context.Context, id string) error {
		if id == "msg-0" || id == "msg-1" {
			return errors.New("boom")
		}
		return nil
	})

	assert.Equal(t, 18, result.Deleted)
	assert.Equal(t, 2, result.Failed)
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight int64
	var maxObserved int64

	ids := make([]string, 50)
	Run(context.Background(), ids, func(ctx context.Context, id string) error {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			cur := atomic.LoadInt64(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt64(&maxObserved, cur, n) {
				break
			}
		}
		atomic.AddInt64(&inFlight, -1)
		return nil
	})

	assert.LessOrEqual(t, maxObserved, int64(Concurrency))
}
