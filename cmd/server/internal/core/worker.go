package core

import "context"

// serveConn is the worker loop for one connection: receive, record,
// transform, send, until the server exits, the handle dies, or the peer goes
// away. It always unregisters and closes the handle on return.
func (s *Server) serveConn(ctx context.Context, c *Conn) {
	// Forced cancellation closes the socket, which unblocks a pending read.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer func() {
		stop()
		s.registry.Unregister(c)
		if err := c.Close(); err != nil {
			c.log.Debug("Error closing client socket", "error", err)
		}
		c.log.Info("Unregister client", "requests", c.HistoryLen(), "clients", s.registry.Len())
	}()

	for !s.exiting.Load() && c.IsAlive() {
		request, ok := c.ReceiveRequest()
		if !ok {
			return
		}
		c.log.Info("Get request", "request", request)
		c.RecordRequest(request)
		c.SendResponse(s.transform(request))
	}
}
