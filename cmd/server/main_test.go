package main

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpirePending(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSweepHoldsStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := logrus.New()
	log.SetOutput(io.Discard)
	exp := &countingExpirer{err: errors.New("db gone")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweepHolds(ctx, exp, 5*time.Millisecond, log)
	}()

	require.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not return after cancel")
	}
	n := exp.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, exp.calls.Load(), "no sweeps after shutdown")
}
