package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/tmaxmax/go-sse"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/core"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/logger"
)

// StatusSource provides point-in-time registry snapshots.
type StatusSource interface {
	Snapshot() core.Status
}

// HealthServer exposes liveness, readiness and client status over HTTP.
// It is also a core.StatusSink: every periodic report is pushed to
// /status/stream subscribers as a server-sent event.
type HealthServer struct {
	server *http.Server
	ready  atomic.Bool
	source StatusSource

	mu          sync.Mutex
	subscribers map[chan core.Status]struct{}
	done        chan struct{}
	stopOnce    sync.Once
}

func NewHealthServer(addr string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		subscribers: make(map[chan core.Status]struct{}),
		done:        make(chan struct{}),
	}

	// Default to not ready until explicitly set
	hs.ready.Store(false)

	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/status", hs.handleStatus)
	mux.HandleFunc("/status/stream", hs.handleStatusStream)

	return hs
}

// SetStatusSource must be called before Start.
func (s *HealthServer) SetStatusSource(src StatusSource) {
	s.source = src
}

// Handler is the HTTP handler serving all endpoints.
func (s *HealthServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HealthServer) Start() {
	go func() {
		logger.Info("Health server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()
}

// Stop ends open status streams and shuts the HTTP server down.
func (s *HealthServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}

func (s *HealthServer) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Publish implements core.StatusSink. Slow subscribers miss updates rather
// than stall the reporter.
func (s *HealthServer) Publish(status core.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
}

func (s *HealthServer) subscribe() chan core.Status {
	ch := make(chan core.Status, 4)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *HealthServer) unsubscribe(ch chan core.Status) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

func (s *HealthServer) snapshot() core.Status {
	if s.source == nil {
		return core.Status{Clients: []core.ClientStatus{}}
	}
	return s.source.Snapshot()
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	}
}

type statusResponse struct {
	Count   int                 `json:"count"`
	Clients []core.ClientStatus `json:"clients"`
}

func newStatusResponse(st core.Status) statusResponse {
	clients := st.Clients
	if clients == nil {
		clients = []core.ClientStatus{}
	}
	return statusResponse{Count: st.Count(), Clients: clients}
}

func (s *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newStatusResponse(s.snapshot())); err != nil {
		logger.Error("Failed to encode status", "error", err)
	}
}

func (s *HealthServer) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		logger.Error("Failed to upgrade status stream", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	send := func(st core.Status) error {
		data, err := json.Marshal(newStatusResponse(st))
		if err != nil {
			return err
		}
		msg := &sse.Message{Type: sse.Type("status")}
		msg.AppendData(string(data))
		if err := sess.Send(msg); err != nil {
			return err
		}
		return sess.Flush()
	}

	if err := send(s.snapshot()); err != nil {
		logger.Warn("Failed to write status event", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case st := <-ch:
			if err := send(st); err != nil {
				logger.Debug("Status stream closed", "error", err)
				return
			}
		}
	}
}
