package exchange_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polybot/internal/exchange"
)

func TestJobPool_RunsSubmittedJobsConcurrently(t *testing.T) {
	pool := exchange.NewJobPool(4)
	defer pool.Close()

	var completed int32
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			atomic.AddInt32(&completed, 1)
		})
	}
	pool.WaitForAllJobsToBeCompleted()

	assert.Equal(t, int32(20), atomic.LoadInt32(&completed))
}

func TestJobPool_SubmitDoesNotBlockCaller(t *testing.T) {
	pool := exchange.NewJobPool(1)
	defer pool.Close()

	done := make(chan struct{})
	go func() {
		pool.Submit(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked the caller")
	}
	pool.WaitForAllJobsToBeCompleted()
}
