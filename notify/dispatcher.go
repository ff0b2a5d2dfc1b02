/*
Package notify delivers leave workflow events to external sinks (a
front-end webhook, a Telegram chat).

DISPATCHER:
  The workflow calls Notify on the request path, so delivery must not
  block it. Dispatcher puts events on a buffered queue and a single
  background goroutine hands each one to every sink in turn.

  - Queue full: the event is dropped and ErrQueueFull is returned (the
    workflow logs it)
  - Sink error: logged, the other sinks still get the event
  - Stop: stops accepting, drains what is queued, then returns

USAGE:
  d := notify.NewDispatcher(logger, 64, notify.NewWebhook(url, nil))
  d.Start()
  defer d.Stop()
  wf := timeoff.NewWorkflow(svc, d, logger)

SEE ALSO:
  - timeoff/notifier.go: Event and the Notifier interface
*/
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/workfacts/timeoff"
	"go.uber.org/zap"
)

var (
	ErrQueueFull  = errors.New("notify: queue full")
	ErrNotRunning = errors.New("notify: dispatcher not running")
)

// Sink delivers one event somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev timeoff.Event) error
}

// Dispatcher implements timeoff.Notifier with asynchronous delivery.
type Dispatcher struct {
	Sinks       []Sink
	SendTimeout time.Duration

	log     *zap.Logger
	queue   chan timeoff.Event
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

var _ timeoff.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a stopped dispatcher.
func NewDispatcher(log *zap.Logger, queueSize int, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		Sinks:       sinks,
		SendTimeout: 10 * time.Second,
		log:         log,
		queue:       make(chan timeoff.Event, queueSize),
		stop:        make(chan struct{}),
	}
}

// Start begins delivering queued events.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.run()

	names := make([]string, 0, len(d.Sinks))
	for _, s := range d.Sinks {
		names = append(names, s.Name())
	}
	d.log.Info("notification dispatcher started", zap.Strings("sinks", names), zap.Int("queue", cap(d.queue)))
}

// Stop delivers what is already queued and returns. A stopped dispatcher
// cannot be restarted.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("notification dispatcher stopped")
}

// Notify enqueues ev without blocking.
func (d *Dispatcher) Notify(_ context.Context, ev timeoff.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		return ErrNotRunning
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		d.log.Warn("notification dropped, queue full", zap.String("event", string(ev.Kind)))
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev timeoff.Event) {
	for _, s := range d.Sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.SendTimeout)
		err := s.Send(ctx, ev)
		cancel()
		if err != nil {
			d.log.Error("notification failed",
				zap.String("sink", s.Name()),
				zap.String("event", string(ev.Kind)),
				zap.String("user_id", ev.Request.UserID),
				zap.Error(err))
			continue
		}
		d.log.Debug("notification sent", zap.String("sink", s.Name()), zap.String("event", string(ev.Kind)))
	}
}
