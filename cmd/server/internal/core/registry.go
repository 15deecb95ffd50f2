package core

import "sync"

// Registry is the set of connections that have a running or just-spawned
// worker. All methods hold the lock only for the copy or mutation itself.
type Registry struct {
	mu    sync.Mutex
	conns []*Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds c. Registering the same handle twice is a caller error.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	r.conns = append(r.conns, c)
	r.mu.Unlock()
}

// Unregister removes c; it is a no-op when c is absent.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.conns {
		if existing == c {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			return
		}
	}
}

// Len is the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Conns returns a copy of the registered handles in registration order.
func (r *Registry) Conns() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, len(r.conns))
	copy(out, r.conns)
	return out
}

// Snapshot captures the client count and per-client request counts. History
// lengths are read after the registry lock is released.
func (r *Registry) Snapshot() Status {
	conns := r.Conns()
	st := Status{Clients: make([]ClientStatus, len(conns))}
	for i, c := range conns {
		st.Clients[i] = c.status()
	}
	return st
}
