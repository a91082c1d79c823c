package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"restables/internal/config"
)

// Manager keeps one pool per connection name and reopens it when the
// configured target changes. Callers never close connections obtained here;
// they release rows and transactions, and the Manager closes pools on Close.
//
// Dialling happens outside the lock: a slow or unreachable database only
// delays callers asking for that same name.
type Manager struct {
	mu      sync.Mutex
	conns   map[string]*Connection
	pending map[string]*dial
}

// dial is an in-flight Open shared by concurrent callers for one name.
type dial struct {
	cfg  config.Connection
	done chan struct{}
	conn *Connection
	err  error
}

func NewManager() *Manager {
	return &Manager{
		conns:   make(map[string]*Connection),
		pending: make(map[string]*dial),
	}
}

// Get returns an open connection for name, opening or replacing it as needed.
func (m *Manager) Get(ctx context.Context, name string, cfg config.Connection) (*Connection, error) {
	for {
		m.mu.Lock()
		if c, ok := m.conns[name]; ok {
			if c.matches(cfg) {
				m.mu.Unlock()
				return c, nil
			}
			slog.Info("Connection settings changed, reopening", "connection", name)
			delete(m.conns, name)
			// database/sql waits for in-flight rows before the pool goes away.
			go c.Close()
		}

		if d, ok := m.pending[name]; ok {
			m.mu.Unlock()
			select {
			case <-d.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if sameTarget(d.cfg, cfg) {
				return d.conn, d.err
			}
			// Another target was being dialled; look again.
			continue
		}

		d := &dial{cfg: cfg, done: make(chan struct{})}
		m.pending[name] = d
		m.mu.Unlock()

		d.conn, d.err = Open(ctx, name, cfg)

		m.mu.Lock()
		delete(m.pending, name)
		if d.err == nil {
			m.conns[name] = d.conn
		}
		m.mu.Unlock()
		close(d.done)

		if d.err == nil {
			slog.Debug("Connection opened", "connection", name, "dialect", d.conn.dialect.Name())
		}
		return d.conn, d.err
	}
}

// sameTarget reports whether two settings resolve to the same pool.
func sameTarget(a, b config.Connection) bool {
	da, errA := Lookup(a.Dialect)
	db, errB := Lookup(b.Dialect)
	if errA != nil || errB != nil || da.Name() != db.Name() {
		return false
	}
	dsnA, errA := da.BuildDSN(a)
	dsnB, errB := db.BuildDSN(b)
	return errA == nil && errB == nil && dsnA == dsnB
}

// Close closes every pool. Dials still in flight finish on their own.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, c := range m.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.conns, name)
	}
	return errors.Join(errs...)
}
