package strategy

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"pivotbot/tools/log"
)

const (
	loopInterval     = time.Second
	shutdownAttempts = 5
)

// Runtime drives a set of strategies, each on its own goroutine with a
// one-second loop. Task failures and panics are logged and swallowed;
// the loops only stop when the context is cancelled.
type Runtime struct {
	strategies []Strategy
}

func NewRuntime(strategies ...Strategy) *Runtime {
	return &Runtime{strategies: strategies}
}

// Run blocks until ctx is done, then shuts every strategy down and
// prints a final summary.
func (r *Runtime) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, strat := range r.strategies {
		wg.Add(1)
		go func(strat Strategy) {
			defer wg.Done()
			r.loop(ctx, strat)
		}(strat)
	}
	wg.Wait()

	for _, strat := range r.strategies {
		r.shutdown(strat)
	}
	r.summary()
}

func (r *Runtime) loop(ctx context.Context, strat Strategy) {
	log.Infof("[%s] trade loop started", strat.Name())
	scheduler := NewScheduler()
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	for {
		for _, task := range strat.Tasks() {
			bucket := strat.Name() + "/" + task.Name
			fire, err := scheduler.Check(bucket, task.Period)
			if err != nil {
				log.Errorf("[%s] %v", strat.Name(), err)
				continue
			}
			if fire {
				r.runTask(strat.Name(), task)
			}
		}

		select {
		case <-ctx.Done():
			log.Infof("[%s] trade loop stopped", strat.Name())
			return
		case <-ticker.C:
		}
	}
}

func (r *Runtime) runTask(name string, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[%s] %s panicked: %v", name, task.Name, rec)
		}
	}()
	if err := task.Run(); err != nil {
		log.Errorf("[%s] %s: %v", name, task.Name, err)
	}
}

func (r *Runtime) shutdown(strat Strategy) {
	for attempt := 1; attempt <= shutdownAttempts; attempt++ {
		err := strat.Shutdown()
		if err == nil {
			log.Infof("[%s] shutdown complete", strat.Name())
			return
		}
		log.Errorf("[%s] shutdown attempt %d/%d: %v",
			strat.Name(), attempt, shutdownAttempts, err)
	}
}

func (r *Runtime) summary() {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Strategy", "Status"})
	for _, strat := range r.strategies {
		table.Append([]string{strat.Name(), strat.Status()})
	}
	fmt.Println()
	table.Render()
}
