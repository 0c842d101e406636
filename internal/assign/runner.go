package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrJobRunning = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
)

type JobFunc func(ctx context.Context) (Result, error)

// Locker guards a job across processes. Acquire returns ok=false when
// another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type job struct {
	name    string
	fn      JobFunc
	mu      sync.Mutex
	trigger chan struct{}
}

// Runner fires each job on its own ticker. A job never runs twice at once:
// a tick or trigger that arrives while it runs is dropped, ticks that are
// later than Grace are skipped, and triggers coalesce into one pending run.
type Runner struct {
	Interval time.Duration
	Grace    time.Duration
	Locker   Locker
	LockTTL  time.Duration
	Log      *zap.Logger

	jobs   map[string]*job
	order  []string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(interval, grace time.Duration, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Interval: interval,
		Grace:    grace,
		LockTTL:  2 * time.Minute,
		Log:      log,
		jobs:     map[string]*job{},
	}
}

// Register adds a job. It must be called before Start.
func (r *Runner) Register(name string, fn JobFunc) {
	r.jobs[name] = &job{name: name, fn: fn, trigger: make(chan struct{}, 1)}
	r.order = append(r.order, name)
}

// Start launches one loop per job. Stop waits for them to exit.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, name := range r.order {
		j := r.jobs[name]
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loop(ctx, j)
		}()
	}
	r.Log.Info("scheduler started", zap.Strings("jobs", r.order), zap.Duration("interval", r.Interval))
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.Log.Info("scheduler stopped")
}

// Run starts the runner and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.Start(ctx)
	<-ctx.Done()
	r.Stop()
	return nil
}

// Trigger asks for an early run of name. Several triggers before the run
// starts collapse into one.
func (r *Runner) Trigger(name string) {
	j, ok := r.jobs[name]
	if !ok {
		return
	}
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

func (r *Runner) loop(ctx context.Context, j *job) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fired := <-t.C:
			if late := time.Since(fired); r.Grace > 0 && late > r.Grace {
				r.Log.Warn("missed run skipped", zap.String("job", j.name), zap.Duration("late", late))
				continue
			}
			r.fire(ctx, j)
		case <-j.trigger:
			r.fire(ctx, j)
		}
	}
}

func (r *Runner) fire(ctx context.Context, j *job) {
	if _, err := r.exec(ctx, j); err != nil && !errors.Is(err, ErrJobRunning) {
		r.Log.Error("job failed", zap.String("job", j.name), zap.Error(err))
	}
}

// RunNow runs name synchronously under the same guards as a tick.
func (r *Runner) RunNow(ctx context.Context, name string) (Result, error) {
	j, ok := r.jobs[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return r.exec(ctx, j)
}

// RunAll runs every job once in registration order.
func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	var (
		out  []Result
		errs []error
	)
	for _, name := range r.order {
		res, err := r.RunNow(ctx, name)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, res)
	}
	return out, errors.Join(errs...)
}

func (r *Runner) exec(ctx context.Context, j *job) (Result, error) {
	if !j.mu.TryLock() {
		r.Log.Debug("job still running, skipping", zap.String("job", j.name))
		return Result{Job: j.name}, ErrJobRunning
	}
	defer j.mu.Unlock()

	if r.Locker != nil {
		release, ok, err := r.Locker.Acquire(ctx, "job:"+j.name, r.LockTTL)
		if err != nil {
			return Result{Job: j.name}, fmt.Errorf("acquire lock for %s: %w", j.name, err)
		}
		if !ok {
			r.Log.Debug("job locked by another instance", zap.String("job", j.name))
			return Result{Job: j.name}, ErrJobRunning
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.Log.Warn("release lock", zap.String("job", j.name), zap.Error(err))
			}
		}()
	}
	return j.fn(ctx)
}
