package application

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	taskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xserver_task_runs_total",
		Help: "Iterations run per scheduled task.",
	}, []string{"task"})
	taskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xserver_task_failures_total",
		Help: "Failed iterations per scheduled task.",
	}, []string{"task"})
)

// Task is one named, independently cadenced periodic job. FatalOnError makes
// an unhandled error terminate that task's loop instead of being swallowed;
// the profile tasks use it to surface persistent corruption loudly rather
// than mask it.
type Task struct {
	Name         string
	Interval     time.Duration
	Precondition func() bool
	Run          func(ctx context.Context) error
	FatalOnError bool
	RunAtStart   bool
}

// Scheduler runs a fixed set of tasks, each on its own long-lived goroutine,
// all cancelled together through the context passed to Start. Tasks never
// block one another; a slow iteration only delays that task's next tick.
type Scheduler struct {
	mtx     sync.Mutex
	tasks   []Task
	started bool
	wg      sync.WaitGroup
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// AddTask registers a task. Tasks must be added before Start.
func (s *Scheduler) AddTask(task Task) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.started {
		return
	}
	s.tasks = append(s.tasks, task)
}

// Start launches one worker per task. It returns immediately; use Wait to
// block until all workers observed the cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, task := range s.tasks {
		task := task
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, task)
		}()
	}
}

// Wait blocks until every task loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	log.Debugf("scheduler: starting task %s every %s", task.Name, task.Interval)

	if task.RunAtStart {
		if !s.runOnce(ctx, task) {
			return
		}
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugf("scheduler: task %s stopped", task.Name)
			return
		case <-ticker.C:
			if !s.runOnce(ctx, task) {
				return
			}
		}
	}
}

// runOnce executes one iteration and reports whether the loop should keep
// running.
func (s *Scheduler) runOnce(ctx context.Context, task Task) bool {
	if ctx.Err() != nil {
		return false
	}
	if task.Precondition != nil && !task.Precondition() {
		return true
	}

	taskRuns.WithLabelValues(task.Name).Inc()
	if err := task.Run(ctx); err != nil {
		taskFailures.WithLabelValues(task.Name).Inc()
		if task.FatalOnError {
			log.WithError(err).Errorf("scheduler: task %s terminated", task.Name)
			return false
		}
		log.WithError(err).Warnf("scheduler: task %s iteration failed", task.Name)
	}
	return true
}
