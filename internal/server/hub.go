package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PublishReport is the per-broadcast outcome. Dropped lists the recipients
// whose outbox was full; they have been evicted from the registry.
type PublishReport struct {
	Message   ChatMessage
	Delivered int
	Dropped   []Handle
}

type publishRequest struct {
	msg   ChatMessage
	reply chan PublishReport
}

// Hub fans chat messages out to every registered connection. Publishes are
// funneled through the single Run loop, so the order in which they reach the
// hub is the order in which every recipient receives them.
type Hub struct {
	registry *Registry
	log      *zap.Logger
	now      func() time.Time
	publish  chan publishRequest
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
}

// NewHub creates a hub broadcasting to the members of registry. The hub does
// nothing until Run is started.
func NewHub(registry *Registry, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry: registry,
		log:      log,
		now:      time.Now,
		publish:  make(chan publishRequest),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Publish stamps msg with the broadcast time and delivers it to every member
// of the registry snapshot. Failures to individual recipients are reported,
// never returned; the error is only set when the hub is not accepting work.
func (h *Hub) Publish(ctx context.Context, msg ChatMessage) (PublishReport, error) {
	req := publishRequest{msg: msg, reply: make(chan PublishReport, 1)}

	select {
	case h.publish <- req:
	case <-ctx.Done():
		return PublishReport{}, ctx.Err()
	case <-h.ctx.Done():
		return PublishReport{}, ErrHubClosed
	}

	select {
	case report := <-req.reply:
		return report, nil
	case <-h.done:
		return PublishReport{}, ErrHubClosed
	}
}

// Run starts the hub's event loop. It returns once Shutdown is called and all
// connections have been released. Only the first call runs the loop.
func (h *Hub) Run() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case req := <-h.publish:
			req.reply <- h.handleBroadcast(req.msg)
		}
	}
}

// Track runs fn in a goroutine that Shutdown waits for.
func (h *Hub) Track(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// handleBroadcast delivers one message and evicts recipients that could not
// take it.
func (h *Hub) handleBroadcast(msg ChatMessage) PublishReport {
	msg.Timestamp = h.now()
	report := PublishReport{Message: msg}

	payload, err := encodeChatMessage(msg)
	if err != nil {
		h.log.Error("Error encoding broadcast message", zap.Error(err))
		return report
	}

	h.registry.ForEach(func(m Member) {
		if m.deliver(payload) {
			report.Delivered++
			return
		}
		report.Dropped = append(report.Dropped, m.Handle)
	})

	h.log.Debug("Broadcast message",
		zap.String("sender", msg.Sender),
		zap.Int("delivered", report.Delivered),
		zap.Int("dropped", len(report.Dropped)))

	h.removeFailedClients(report.Dropped)
	return report
}

// removeFailedClients evicts stalled clients. Closing their outbox makes the
// write pump close the socket.
func (h *Hub) removeFailedClients(handles []Handle) {
	for _, handle := range handles {
		if h.registry.Unregister(handle) {
			h.log.Warn("Client removed due to full send buffer", zap.Stringer("handle", handle))
		}
	}
}

// shutdownClients releases every registered connection.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	var handles []Handle
	h.registry.ForEach(func(m Member) {
		handles = append(handles, m.Handle)
	})
	for _, handle := range handles {
		h.registry.Unregister(handle)
	}

	h.log.Info("Closed client connections", zap.Int("count", len(handles)))
}

// Shutdown stops the hub and waits for client goroutines to finish, or until
// the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	if h.started.CompareAndSwap(false, true) {
		// Run never started; keep it from starting and clean up here.
		close(h.done)
		h.shutdownClients()
	} else {
		<-h.done
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
