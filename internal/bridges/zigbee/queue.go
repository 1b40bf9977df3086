package zigbee

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
)

// Queue defaults.
const (
	// DefaultQueueDepth bounds the number of waiting jobs.
	DefaultQueueDepth = 1000

	// DefaultCommandTimeout bounds a single device network call.
	DefaultCommandTimeout = 10 * time.Second
)

// NetworkRequest is one command addressed to a device endpoint.
type NetworkRequest struct {
	IEEEAddress string                    `json:"ieee_address"`
	Endpoint    uint8                     `json:"endpoint"`
	Cluster     string                    `json:"cluster"`
	Command     string                    `json:"command"`
	CommandType converters.CommandType    `json:"command_type"`
	Payload     map[string]any            `json:"payload"`
	Config      *converters.CommandConfig `json:"config,omitempty"`
}

// Response is the result of a successful network call.
type Response struct {
	Data map[string]any

	// Duration is the time spent in Network.Send. Set by the queue.
	Duration time.Duration
}

// Network sends commands to devices. Send blocks until the device network
// reports the outcome or ctx ends.
type Network interface {
	Send(ctx context.Context, req NetworkRequest) (Response, error)
}

// Job is a queued network request with its completion callback.
type Job struct {
	Request NetworkRequest

	// Context carries values, such as the trace span of the originating
	// message, into Send. Its cancellation is ignored. It may be nil.
	Context context.Context

	// OnComplete runs on the queue worker after Send returns, before the
	// next job starts. It may be nil.
	OnComplete func(Response, error)
}

// QueueState is the lifecycle state of a CommandQueue.
type QueueState int32

const (
	// QueueIdle means no job is executing.
	QueueIdle QueueState = iota

	// QueueRunning means a job is executing.
	QueueRunning

	// QueueStopped means Stop has been called.
	QueueStopped
)

func (s QueueState) String() string {
	switch s {
	case QueueIdle:
		return "idle"
	case QueueRunning:
		return "running"
	case QueueStopped:
		return "stopped"
	default:
		return fmt.Sprintf("QueueState(%d)", int32(s))
	}
}

// MarshalText encodes the state by name.
func (s QueueState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *QueueState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = QueueIdle
	case "running":
		*s = QueueRunning
	case "stopped":
		*s = QueueStopped
	default:
		return fmt.Errorf("unknown queue state %q", text)
	}
	return nil
}

// QueueOptions configures a CommandQueue.
type QueueOptions struct {
	// MaxDepth bounds the waiting jobs. Default: DefaultQueueDepth.
	MaxDepth int

	// Timeout bounds each Send call. Default: DefaultCommandTimeout.
	Timeout time.Duration

	Logger Logger
}

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	State     QueueState `json:"state"`
	Depth     int        `json:"depth"`
	Enqueued  uint64     `json:"enqueued"`
	Succeeded uint64     `json:"succeeded"`
	Failed    uint64     `json:"failed"`
	Rejected  uint64     `json:"rejected"`
	Discarded uint64     `json:"discarded"`
}

// CommandQueue executes jobs one at a time in submission order.
//
// Thread Safety: Enqueue, State, Depth and Stats are safe for concurrent use.
// Only the worker goroutine calls Network.Send.
type CommandQueue struct {
	network Network
	timeout time.Duration
	jobs    chan Job
	state   atomic.Int32

	// stopMu orders Enqueue against Stop so no job is accepted after Stop.
	stopMu  sync.RWMutex
	stopped bool

	enqueued  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	discarded atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	logger Logger
}

// NewCommandQueue creates a queue in front of network. Call Start to begin
// processing; jobs enqueued before Start wait in order.
func NewCommandQueue(network Network, opts QueueOptions) *CommandQueue {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultQueueDepth
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCommandTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &CommandQueue{
		network: network,
		timeout: opts.Timeout,
		jobs:    make(chan Job, opts.MaxDepth),
		done:    make(chan struct{}),
		logger:  opts.Logger,
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (q *CommandQueue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.worker()
	})
}

// Enqueue appends job to the queue. It never blocks.
// Returns ErrQueueFull at capacity and ErrQueueStopped after Stop.
func (q *CommandQueue) Enqueue(job Job) error {
	q.stopMu.RLock()
	defer q.stopMu.RUnlock()

	if q.stopped {
		return ErrQueueStopped
	}

	select {
	case q.jobs <- job:
		q.enqueued.Add(1)
		return nil
	default:
		q.rejected.Add(1)
		return ErrQueueFull
	}
}

// Stop waits for the in-flight job to complete, then discards waiting jobs
// without invoking their callbacks. The queue cannot be restarted.
func (q *CommandQueue) Stop() {
	q.stopOnce.Do(func() {
		q.stopMu.Lock()
		q.stopped = true
		q.stopMu.Unlock()

		close(q.done)
		q.wg.Wait()

		n := 0
	drain:
		for {
			select {
			case <-q.jobs:
				n++
			default:
				break drain
			}
		}
		q.discarded.Add(uint64(n)) //nolint:gosec // n is non-negative
		q.state.Store(int32(QueueStopped))

		if n > 0 {
			q.logger.Warn("command queue stopped with pending jobs", "discarded", n)
		}
	})
}

// State returns the current lifecycle state.
func (q *CommandQueue) State() QueueState {
	return QueueState(q.state.Load())
}

// Depth returns the number of waiting jobs, excluding the one in flight.
func (q *CommandQueue) Depth() int {
	return len(q.jobs)
}

// Stats returns a snapshot of the queue counters.
func (q *CommandQueue) Stats() QueueStats {
	return QueueStats{
		State:     q.State(),
		Depth:     q.Depth(),
		Enqueued:  q.enqueued.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
		Discarded: q.discarded.Load(),
	}
}

func (q *CommandQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.done:
			return
		case job := <-q.jobs:
			// Stop may race with a ready job; do not start new work after it.
			select {
			case <-q.done:
				q.discarded.Add(1)
				return
			default:
			}
			q.run(job)
		}
	}
}

// run executes one job and its callback. The state returns to idle even if
// the callback panics.
func (q *CommandQueue) run(job Job) {
	q.state.Store(int32(QueueRunning))
	defer q.state.Store(int32(QueueIdle))

	parent := job.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.timeout)
	start := time.Now()
	resp, err := q.network.Send(ctx, job.Request)
	cancel()
	resp.Duration = time.Since(start)

	if err != nil {
		q.failed.Add(1)
	} else {
		q.succeeded.Add(1)
	}

	q.complete(job, resp, err)
}

func (q *CommandQueue) complete(job Job, resp Response, err error) {
	if job.OnComplete == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("command completion panicked",
				"panic", r,
				"ieee_address", job.Request.IEEEAddress,
				"cluster", job.Request.Cluster)
		}
	}()
	job.OnComplete(resp, err)
}
