package core

import (
	"log/slog"
	"sync"
	"time"
)

// StatusReporter periodically snapshots the registry, logs the result and
// hands it to every sink.
type StatusReporter struct {
	registry *Registry
	interval time.Duration
	log      *slog.Logger
	sinks    []StatusSink

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewStatusReporter returns a reporter that is not yet running.
func NewStatusReporter(registry *Registry, interval time.Duration, log *slog.Logger, sinks ...StatusSink) *StatusReporter {
	return &StatusReporter{
		registry: registry,
		interval: interval,
		log:      log,
		sinks:    sinks,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the reporting goroutine. Calls after the first, or after Stop, do nothing.
func (r *StatusReporter) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Stop ends the reporting loop and waits for it to return.
func (r *StatusReporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	// A reporter that never started has nothing to wait for.
	r.startOnce.Do(func() {
		close(r.done)
	})
	<-r.done
}

// Report publishes one snapshot immediately.
func (r *StatusReporter) Report() Status {
	st := r.registry.Snapshot()
	r.log.Info("Status", "clients", st.Count(), "requests", st.RequestCounts())
	for _, sink := range r.sinks {
		sink.Publish(st)
	}
	return st
}

func (r *StatusReporter) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Report()
		}
	}
}
