package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"prdeck/internal/logging"
)

const defaultBlockingLane = 2

// Operation is one unit of background work. It reports its result as a
// single Outcome; failures are error outcomes, not returned errors.
type Operation func(ctx context.Context) Outcome

// Dispatcher runs each operation on its own goroutine and delivers exactly
// one outcome per operation to the bus. Local git and disk work goes through
// the blocking lane so a slow filesystem cannot starve other tasks.
type Dispatcher struct {
	bus      *Bus
	blocking *semaphore.Weighted
	logger   logging.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(bus *Bus, blockingLane int64, logger logging.Logger) *Dispatcher {
	if blockingLane <= 0 {
		blockingLane = defaultBlockingLane
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		bus:      bus,
		blocking: semaphore.NewWeighted(blockingLane),
		logger:   logger,
	}
}

func (d *Dispatcher) Dispatch(name string, op Operation) {
	d.start(name, op, false)
}

func (d *Dispatcher) DispatchBlocking(name string, op Operation) {
	d.start(name, op, true)
}

// Wait blocks until every dispatched operation has delivered its outcome.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) start(name string, op Operation, blocking bool) {
	id := uuid.NewString()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.bus.Send(d.run(name, id, op, blocking))
	}()
}

func (d *Dispatcher) run(name, id string, op Operation, blocking bool) (outcome Outcome) {
	logger := d.logger.With(logging.F("task", name), logging.F("task_id", id))
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", logging.F("panic", fmt.Sprint(r)), logging.F("stack", string(debug.Stack())))
			outcome = taskFailedMsg{op: name, err: fmt.Errorf("%s crashed: %v", name, r)}
		}
	}()

	ctx := context.Background()
	if blocking {
		if err := d.blocking.Acquire(ctx, 1); err != nil {
			return taskFailedMsg{op: name, err: err}
		}
		defer d.blocking.Release(1)
	}
	logger.Debug("task started", logging.F("blocking", blocking))
	outcome = op(ctx)
	if outcome == nil {
		outcome = taskFailedMsg{op: name, err: errors.New(name + " produced no result")}
	}
	logger.Debug("task finished", logging.F("elapsed", time.Since(started)))
	return outcome
}
