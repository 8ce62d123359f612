package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"prodledger/pkg/logger"
)

// Channel is the NOTIFY channel the catalog triggers publish on. The payload
// names the changed catalog ("line" or "style").
const Channel = "catalog_changed"

// InvalidationListener is called for every notification.
type InvalidationListener func(payload string)

// Listener holds a dedicated connection in LISTEN and fans notifications out
// to the registered listeners. On reconnect every listener is called with an
// empty payload, since notifications sent while disconnected are lost.
type Listener struct {
	pool *pgxpool.Pool

	listeners   map[string][]InvalidationListener
	listenersMu sync.RWMutex

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewListener creates a listener. Register callbacks with On before Start.
func NewListener(pool *pgxpool.Pool) *Listener {
	return &Listener{
		pool:      pool,
		listeners: make(map[string][]InvalidationListener),
	}
}

// On registers fn for payload. fn is also called for an empty payload.
func (l *Listener) On(payload string, fn InvalidationListener) {
	l.listenersMu.Lock()
	l.listeners[payload] = append(l.listeners[payload], fn)
	l.listenersMu.Unlock()
}

// Start begins listening in the background.
func (l *Listener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "catalog cache listener started")
}

// Stop gracefully stops the listener.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	logger.Info(context.Background(), "catalog cache listener stopped")
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(l.ctx, "LISTEN "+Channel); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "channel", Channel, "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		logger.Info(l.ctx, "listening for catalog notifications", "channel", Channel)
		l.dispatch("")

		l.waitForNotifications(conn)
		conn.Release()
	}
}

func (l *Listener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		// Bounded wait so shutdown is noticed.
		ctx, cancel := context.WithTimeout(l.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(l.ctx, "LISTEN connection lost", "error", err)
			return
		}

		logger.Debug(l.ctx, "received notification", "channel", n.Channel, "payload", n.Payload)
		l.dispatch(n.Payload)
	}
}

// dispatch calls the listeners for payload. An empty payload reaches all of
// them. Panics are recovered per listener.
func (l *Listener) dispatch(payload string) {
	payload = strings.TrimSpace(payload)

	l.listenersMu.RLock()
	var targets []InvalidationListener
	if payload == "" {
		for _, fns := range l.listeners {
			targets = append(targets, fns...)
		}
	} else {
		targets = append(targets, l.listeners[payload]...)
	}
	l.listenersMu.RUnlock()

	for _, fn := range targets {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(context.Background(), "cache listener panic recovered", "payload", payload, "panic", r)
				}
			}()
			fn(payload)
		}()
	}
}
