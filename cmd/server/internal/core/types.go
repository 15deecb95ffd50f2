package core

import (
	"context"
	"crypto/tls"
	"errors"
)

// ErrServerClosed is returned by Serve when called on a server that has been shut down.
var ErrServerClosed = errors.New("core: server closed")

// Transform maps one request to its response. It must be safe for concurrent
// use and free of side effects; it is chosen once when the server is built.
type Transform func(request string) string

// TLSProvider defines how to retrieve the server certificate.
// It abstracts away the storage mechanism (K8s Secret, File, memory).
type TLSProvider interface {
	GetCertificate(ctx context.Context) (*tls.Certificate, error)
	Store(ctx context.Context, certPEM, keyPEM []byte) error
}

// StatusSink receives every periodic status report.
// Publish is called from the reporter goroutine and must not block for long.
type StatusSink interface {
	Publish(status Status)
}

// ClientStatus describes one registered connection at snapshot time.
type ClientStatus struct {
	Session  string `json:"session"`
	Remote   string `json:"remote"`
	Requests int    `json:"requests"`
}

// Status is an immutable point-in-time view of the client registry.
type Status struct {
	Clients []ClientStatus `json:"clients"`
}

// Count is the number of registered clients.
func (s Status) Count() int { return len(s.Clients) }

// RequestCounts lists per-client history lengths in registration order.
func (s Status) RequestCounts() []int {
	counts := make([]int, len(s.Clients))
	for i, c := range s.Clients {
		counts[i] = c.Requests
	}
	return counts
}
