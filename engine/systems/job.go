package systems

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system is shut down")
)

// Job runs Start on a worker. Complete or Fail is then called with its
// outcome from Update, on the thread that owns the renderer.
type Job struct {
	Start    func() (interface{}, error)
	Complete func(result interface{})
	Fail     func(err error)
}

type jobResult struct {
	job    Job
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup

	mu       sync.Mutex
	finished []jobResult

	// Held for reading while a job is queued so Shutdown cannot close the
	// queue under a blocked Submit.
	closeMu sync.RWMutex
	closed  bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.Start()
				if err != nil {
					core.LogError("%s", err)
				}
				js.mu.Lock()
				js.finished = append(js.finished, jobResult{job: job, result: result, err: err})
				js.mu.Unlock()
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run and their
 * callbacks are delivered before this returns.
 */
func (js *JobSystem) Shutdown() error {
	js.closeMu.Lock()
	if js.closed {
		js.closeMu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.closeMu.Unlock()

	js.wg.Wait()
	js.Update()
	return nil
}

/**
 * @brief Updates the job system. Should happen once an update cycle.
 * Runs the callbacks of every job finished since the last call.
 */
func (js *JobSystem) Update() {
	js.mu.Lock()
	finished := js.finished
	js.finished = nil
	js.mu.Unlock()

	for _, r := range finished {
		if r.err != nil {
			if r.job.Fail != nil {
				r.job.Fail(r.err)
			}
			continue
		}
		if r.job.Complete != nil {
			r.job.Complete(r.result)
		}
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(job Job) error {
	js.closeMu.RLock()
	defer js.closeMu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- job
	return nil
}
