package server

import (
	"sync"

	"github.com/samber/lo"
)

// Connection is the registry-owned state of one live transport session: the
// handle, the asserted display name, and the buffered outbox drained by the
// client's write pump.
type Connection struct {
	handle Handle
	addr   string
	name   string
	send   chan []byte
	closed bool
}

// NewConnection creates an unregistered connection whose outbox holds up to
// buffer pending frames.
func NewConnection(addr string, buffer int) *Connection {
	if buffer <= 0 {
		buffer = 1
	}
	return &Connection{
		addr: addr,
		send: make(chan []byte, buffer),
	}
}

// Outbox returns the channel of frames waiting to be written. It is closed
// when the connection leaves the registry.
func (c *Connection) Outbox() <-chan []byte {
	return c.send
}

// Handle returns the identifier assigned by Register.
func (c *Connection) Handle() Handle {
	return c.handle
}

// Member is a read-only view of a registry entry handed to ForEach visitors.
type Member struct {
	Handle Handle
	Name   string
	Addr   string
	conn   *Connection
}

// Joined reports whether the member has set a display name.
func (m Member) Joined() bool {
	return m.Name != ""
}

// deliver enqueues payload without blocking. It must only be called while the
// registry read lock is held, which guarantees the outbox is still open.
func (m Member) deliver(payload []byte) bool {
	if m.conn.closed {
		return false
	}
	select {
	case m.conn.send <- payload:
		return true
	default:
		return false
	}
}

// Registry maps handles to live connections. Every entry corresponds to an
// open transport; entries are removed synchronously on disconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[Handle]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[Handle]*Connection)}
}

// Register adds conn without a display name and returns its handle.
func (r *Registry) Register(conn *Connection) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.handle = NewHandle()
	conn.name = ""
	if conn.closed {
		conn.send = make(chan []byte, cap(conn.send))
		conn.closed = false
	}
	r.conns[conn.handle] = conn
	return conn.handle
}

// SetName records or overwrites the display name for h.
func (r *Registry) SetName(h Handle, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[h]
	if !ok {
		return ErrUnknownConnection
	}
	conn.name = name
	return nil
}

// Unregister removes h and closes its outbox. Calling it again for the same
// handle is a no-op; the return value reports whether an entry was removed.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[h]
	if !ok {
		return false
	}
	delete(r.conns, h)
	if !conn.closed {
		conn.closed = true
		close(conn.send)
	}
	return true
}

// SendTo enqueues payload on the outbox of h alone, without blocking.
func (r *Registry) SendTo(h Handle, payload []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[h]
	if !ok {
		return ErrUnknownConnection
	}
	if !memberOf(conn).deliver(payload) {
		return ErrOutboxFull
	}
	return nil
}

// Lookup returns the member view for h.
func (r *Registry) Lookup(h Handle) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[h]
	if !ok {
		return Member{}, ErrUnknownConnection
	}
	return memberOf(conn), nil
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEach calls visit for every member of a snapshot taken under the read
// lock. The lock is held for the whole visit so no mutation can interleave;
// visit must not call back into the registry's mutating methods.
func (r *Registry) ForEach(visit func(Member)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.snapshotLocked() {
		visit(m)
	}
}

// Names returns the display names of joined members, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(r.snapshotLocked(), func(m Member, _ int) (string, bool) {
		return m.Name, m.Joined()
	})
}

func (r *Registry) snapshotLocked() []Member {
	return lo.MapToSlice(r.conns, func(_ Handle, conn *Connection) Member {
		return memberOf(conn)
	})
}

func memberOf(conn *Connection) Member {
	return Member{
		Handle: conn.handle,
		Name:   conn.name,
		Addr:   conn.addr,
		conn:   conn,
	}
}
