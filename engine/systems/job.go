package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

/**
 * @brief Describes a job to be run.
 */
type Job struct {
	/** @brief Shown in logs. */
	Name string
	/** @brief Invoked on a worker when the job starts. Required. */
	Run func(ctx context.Context) error
	/** @brief Invoked after Run returned nil. Optional. */
	OnComplete func()
	/** @brief Invoked with the error Run returned. Optional. */
	OnFailure func(err error)
}

type JobSystem struct {
	ctx        context.Context
	numWorkers int
	jobQueue   chan Job
	workers    sync.WaitGroup
	pending    sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

// NewJobSystem starts numWorkers goroutines. Jobs still queued when ctx is
// cancelled fail with the context error without running.
func NewJobSystem(ctx context.Context, numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		ctx:        ctx,
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.workers.Add(1)
		go func() {
			defer js.workers.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job Job) {
	defer js.pending.Done()

	err := js.ctx.Err()
	if err == nil {
		err = job.Run(js.ctx)
	}
	if err != nil {
		core.LogDebug("job %s failed: %v", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 * @param job The description of the job to be executed.
 */
func (js *JobSystem) Submit(job Job) {
	js.pending.Add(1)
	js.jobQueue <- job
}

/**
 * @brief Blocks until every submitted job has finished.
 */
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

/**
 * @brief Shuts the job system down. Queued jobs still run.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() { close(js.jobQueue) })
	js.workers.Wait()
	return nil
}
