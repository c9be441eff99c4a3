// Package worker runs the long-lived loop that drains the job queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/queue"
)

// Processor handles one job kind end to end.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job *queue.Job) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, job *queue.Job) error {
	return f(ctx, job)
}

// Loop polls the queue store and dispatches claimed jobs by kind.
// It is strictly sequential: one job is processed end to end at a time.
type Loop struct {
	store        queue.Store
	processors   map[queue.JobKind]Processor
	pollInterval time.Duration
	logger       *observability.Logger
}

// NewLoop creates a worker loop over the given store.
func NewLoop(store queue.Store, pollInterval time.Duration, logger *observability.Logger) *Loop {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Loop{
		store:        store,
		processors:   make(map[queue.JobKind]Processor),
		pollInterval: pollInterval,
		logger:       logger.WithComponent("worker"),
	}
}

// Register binds a processor to a job kind.
func (l *Loop) Register(kind queue.JobKind, p Processor) {
	l.processors[kind] = p
}

// Run polls until ctx is cancelled. Cancellation stops new claims; the
// in-flight job, if any, runs to completion before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Dur("poll_interval", l.pollInterval).Msg("worker loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("worker loop stopping")
			return ctx.Err()
		default:
		}

		job, err := l.store.ClaimNextPending(ctx)
		if err != nil {
			// Queue storage error: fatal to this poll only, retry next cycle.
			l.logger.Error().Err(err).Msg("claim failed")
			if !l.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !l.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		l.runJob(ctx, job)
	}
}

// RunOnce claims and processes at most one job. Returns whether a job was
// claimed. Used by tests and one-shot invocations.
func (l *Loop) RunOnce(ctx context.Context) (bool, error) {
	job, err := l.store.ClaimNextPending(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	l.runJob(ctx, job)
	return true, nil
}

func (l *Loop) runJob(ctx context.Context, job *queue.Job) {
	log := l.logger.WithJob(job.ID.String())
	log.Info().Str("kind", string(job.Kind)).Msg("processing job")

	err := l.dispatch(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("job failed")
		if markErr := l.store.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("mark failed errored")
		}
		return
	}

	if markErr := l.store.MarkCompleted(ctx, job.ID); markErr != nil {
		log.Error().Err(markErr).Msg("mark completed errored")
		return
	}
	log.Info().Msg("job completed")
}

func (l *Loop) dispatch(ctx context.Context, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()

	p, ok := l.processors[job.Kind]
	if !ok {
		// Unknown kinds fail the job, never the loop.
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
	return p.Process(ctx, job)
}

func (l *Loop) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.pollInterval):
		return true
	}
}
