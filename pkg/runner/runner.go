// Package runner queues commands and executes them sequentially or with a
// bounded worker pool. Dry-run mode logs what would run and touches nothing.
package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/comfykit/comfykit/pkg/cmd"
)

type Runner struct {
	tasks   []*cmd.Cmd
	threads int
	dryRun  bool
}

func New() Runner {
	return Runner{threads: 1}
}

func (r Runner) Contains(task *cmd.Cmd) bool {
	for _, t := range r.tasks {
		if t.Equal(task) {
			return true
		}
	}
	return false
}

// AddTask queues commands, skipping exact duplicates.
func (r Runner) AddTask(tasks ...*cmd.Cmd) Runner {
	for _, t := range tasks {
		if !r.Contains(t) {
			r.tasks = append(r.tasks, t)
		}
	}
	return r
}

func (r Runner) DryRun(flag bool) Runner {
	r.dryRun = flag
	return r
}

func (r Runner) Threads(threads int) Runner {
	if threads > 0 {
		r.threads = threads
	}
	return r
}

func (r Runner) Len() int {
	return len(r.tasks)
}

// Run executes the queue in order, stopping at the first failure.
func (r Runner) Run(ctx context.Context) error {
	for _, c := range r.tasks {
		if r.dryRun {
			log.Info().Str("cmd", c.String()).Msg("DRY-RUN: Run")
			continue
		}
		if _, err := c.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunParallel executes the queue on min(threads, len) workers and returns
// the first error once all workers drained.
func (r Runner) RunParallel(ctx context.Context) error {
	if r.threads <= 1 || len(r.tasks) <= 1 {
		return r.Run(ctx)
	}

	tasks := make(chan *cmd.Cmd)
	go func() {
		defer close(tasks)
		for _, c := range r.tasks {
			select {
			case tasks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	threads := min(r.threads, len(r.tasks))
	log.Debug().Int("threads", threads).Int("tasks", len(r.tasks)).Msg("Acquired parallelism")

	var wg sync.WaitGroup
	errs := make(chan error, threads)
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range tasks {
				if r.dryRun {
					log.Info().Str("cmd", c.String()).Msg("DRY-RUN: Run")
					continue
				}
				if _, err := c.Run(ctx); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	return <-errs
}
