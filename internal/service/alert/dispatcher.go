package alert

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/pkg/logger"
	"github.com/jwalitptl/risk-api/pkg/metrics"
)

// Sink delivers an alert to one channel (email, broker, error tracker, database, log).
type Sink interface {
	Name() string
	// MinSeverity filters which alerts reach the sink.
	MinSeverity() model.Severity
	Send(ctx context.Context, alert *model.Alert) error
}

// Notifier is what the login guard depends on: fire and forget.
type Notifier interface {
	Dispatch(alert *model.Alert)
}

type Config struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher fans alerts out to every sink from a bounded queue. Dispatch never blocks the caller;
// a full queue drops the alert. Sink failures are logged and counted, never returned.
type Dispatcher struct {
	sinks   []Sink
	queue   chan *model.Alert
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(config Config, log *logger.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan *model.Alert, config.QueueSize),
		config:  config,
		logger:  log.With("alert"),
		metrics: m,
	}
}

// Start launches the delivery workers. They exit once Stop drains the queue.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.logger.Info("alert dispatcher started", "workers", d.config.Workers, "sinks", len(d.sinks))
}

func (d *Dispatcher) Dispatch(alert *model.Alert) {
	if alert == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("alert dropped after shutdown", "title", alert.Title)
		return
	}

	select {
	case d.queue <- alert:
		if d.metrics != nil {
			d.metrics.AlertsDispatched.WithLabelValues(string(alert.Severity)).Inc()
		}
	default:
		if d.metrics != nil {
			d.metrics.AlertsDropped.Inc()
		}
		d.logger.Warn("alert queue full, dropping alert", "title", alert.Title, "severity", string(alert.Severity))
	}
}

// Stop closes the queue and waits for in-flight deliveries, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("alert dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for alert := range d.queue {
		d.deliver(alert)
	}
}

func (d *Dispatcher) deliver(alert *model.Alert) {
	for _, sink := range d.sinks {
		if !alert.Severity.AtLeast(sink.MinSeverity()) {
			continue
		}
		d.send(sink, alert)
	}
}

func (d *Dispatcher) send(sink Sink, alert *model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("alert sink panicked", "sink", sink.Name(), "panic", r)
			d.count(sink.Name(), "error")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
	defer cancel()

	if err := sink.Send(ctx, alert); err != nil {
		d.logger.Error(err, "alert delivery failed", "sink", sink.Name(), "alert_id", alert.ID.String())
		d.count(sink.Name(), "error")
		return
	}
	d.count(sink.Name(), "ok")
}

func (d *Dispatcher) count(sink, status string) {
	if d.metrics != nil {
		d.metrics.AlertSinkSends.WithLabelValues(sink, status).Inc()
	}
}
