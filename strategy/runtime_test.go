package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubStrategy struct {
	name      string
	runs      int64
	panics    bool
	fails     bool
	shutdowns int64
}

func (s *stubStrategy) Name() string   { return s.name }
func (s *stubStrategy) Status() string { return "ok" }

func (s *stubStrategy) Tasks() []Task {
	return []Task{{Name: "tick", Period: "1h", Run: func() error {
		atomic.AddInt64(&s.runs, 1)
		if s.panics {
			panic("boom")
		}
		if s.fails {
			return errors.New("boom")
		}
		return nil
	}}}
}

func (s *stubStrategy) Shutdown() error {
	atomic.AddInt64(&s.shutdowns, 1)
	return nil
}

func runBriefly(t *testing.T, strategies ...Strategy) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRuntime(strategies...).Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestRuntimeRunsTasksAndShutsDown(t *testing.T) {
	strat := &stubStrategy{name: "a"}
	runBriefly(t, strat)

	assert.Equal(t, int64(1), atomic.LoadInt64(&strat.runs), "first check fires exactly once per period")
	assert.Equal(t, int64(1), atomic.LoadInt64(&strat.shutdowns))
}

func TestRuntimeSurvivesPanicsAndErrors(t *testing.T) {
	panicky := &stubStrategy{name: "p", panics: true}
	failing := &stubStrategy{name: "f", fails: true}
	runBriefly(t, panicky, failing)

	assert.Equal(t, int64(1), atomic.LoadInt64(&panicky.runs))
	assert.Equal(t, int64(1), atomic.LoadInt64(&failing.runs))
	assert.Equal(t, int64(1), atomic.LoadInt64(&panicky.shutdowns))
	assert.Equal(t, int64(1), atomic.LoadInt64(&failing.shutdowns))
}
