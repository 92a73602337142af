package wsengine

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Noahnut/wsengine/config"
)

// Dispatcher owns the listening socket and a fixed pool of sessions.
// Accepted sockets go to an idle session or are closed at once when
// every session is busy.
type Dispatcher struct {
	cfg *config.Config
	log *logrus.Logger

	sessions []*Session
	idle     *slotQueue

	httpRoutes routeTable[HTTPHandler]
	wsRoutes   routeTable[WebSocketHandlerFactory]

	headerMu sync.RWMutex
	headers  [][2]string

	activeWS atomic.Int32
	stats    *Stats

	mu     sync.Mutex
	ln     net.Listener
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewDispatcher validates cfg and provisions the session pool. A nil
// cfg means config.Default(), a nil logger the logrus standard logger.
func NewDispatcher(cfg *config.Config, logger *logrus.Logger) (*Dispatcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &Dispatcher{
		cfg:   cfg,
		log:   logger,
		idle:  newSlotQueue(cfg.Workers),
		stats: newStats(),
	}
	d.sessions = make([]*Session, cfg.Workers)
	for i := range d.sessions {
		d.sessions[i] = newSession(d, i)
	}
	return d, nil
}

// Config returns the configuration the dispatcher was built with.
func (d *Dispatcher) Config() *config.Config { return d.cfg }

// Start binds the listener and starts the sessions and the accept
// loop. Cancelling ctx shuts the dispatcher down like Close.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ln != nil {
		return ErrDispatcherStarted
	}

	lc := net.ListenConfig{Control: listenControl(d.cfg.ReusePort)}
	ln, err := lc.Listen(ctx, "tcp", d.cfg.Addr())
	if err != nil {
		return errors.Wrapf(err, "listen on %s", d.cfg.Addr())
	}
	d.ln = ln
	d.done = make(chan struct{})

	ctx, d.cancel = context.WithCancel(ctx)
	for _, s := range d.sessions {
		d.wg.Add(1)
		go func(s *Session) {
			defer d.wg.Done()
			s.run(ctx)
		}(s)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.acceptLoop(ctx, ln)
	}()
	go d.shutdownOn(ctx)

	d.log.WithFields(logrus.Fields{
		"addr":       ln.Addr().String(),
		"workers":    d.cfg.Workers,
		"websockets": d.cfg.MaxWebSockets,
	}).Info("dispatcher started")
	return nil
}

// ListenAndServe starts the dispatcher and blocks until ctx is done or
// Close is called.
func (d *Dispatcher) ListenAndServe(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-d.done
	return nil
}

// Close stops accepting, closes every open session and waits for the
// session goroutines to return. WebSocket peers get a GoingAway close.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (d *Dispatcher) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ln == nil {
		return nil
	}
	return d.ln.Addr()
}

func (d *Dispatcher) shutdownOn(ctx context.Context) {
	<-ctx.Done()

	d.ln.Close()
	for _, s := range d.sessions {
		s.interrupt()
	}
	d.wg.Wait()
	for _, s := range d.sessions {
		s.drain()
	}

	d.log.Info("dispatcher stopped")
	close(d.done)
}

func (d *Dispatcher) acceptLoop(ctx context.Context, ln net.Listener) {
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else if tempDelay *= 2; tempDelay > time.Second {
				tempDelay = time.Second
			}
			d.log.WithError(err).WithField("retry", tempDelay).Warn("accept failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(tempDelay):
			}
			continue
		}
		tempDelay = 0
		d.assign(conn)
	}
}

// assign hands conn to an idle session, or closes it when none is free.
func (d *Dispatcher) assign(conn net.Conn) {
	idx, ok := d.idle.pop()
	if !ok || !d.sessions[idx].Start(conn) {
		d.stats.connectionRejected()
		d.log.WithField("remote", conn.RemoteAddr().String()).Warn("no idle session, connection dropped")
		conn.Close()
		return
	}
	d.stats.connectionAccepted()
}

func (d *Dispatcher) releaseSlot(idx int) { d.idle.push(idx) }

// Session returns the session in slot i.
func (d *Dispatcher) Session(i int) *Session { return d.sessions[i] }

// Workers returns the pool size.
func (d *Dispatcher) Workers() int { return len(d.sessions) }

// IdleSessions returns the number of sessions waiting for a socket.
func (d *Dispatcher) IdleSessions() int { return d.idle.len() }

// ── Routes ───────────────────────────────────────────────────────────

// SetHTTPHandler registers fn for path. A later registration for the
// same path replaces the earlier one.
func (d *Dispatcher) SetHTTPHandler(path string, fn HTTPHandler) {
	d.httpRoutes.set(path, fn)
}

// HTTPHandler finds the handler for a request path: the exact path,
// then the path up to its last '/', then the first registered handler.
// It returns nil only when nothing is registered.
func (d *Dispatcher) HTTPHandler(path string) HTTPHandler {
	if h, ok := d.httpRoutes.lookup(path); ok {
		return h
	}
	if h, ok := d.httpRoutes.lookup(handlerPath(path)); ok {
		return h
	}
	h, _ := d.httpRoutes.first()
	return h
}

// SetWSHandler registers the handler factory for upgrades on path.
func (d *Dispatcher) SetWSHandler(path string, factory WebSocketHandlerFactory) {
	d.wsRoutes.set(path, factory)
}

// WSHandler returns the factory registered for path or for the path up
// to its last '/', or nil.
func (d *Dispatcher) WSHandler(path string) WebSocketHandlerFactory {
	if f, ok := d.wsRoutes.lookup(path); ok {
		return f
	}
	f, _ := d.wsRoutes.lookup(handlerPath(path))
	return f
}

// ── Standard headers ─────────────────────────────────────────────────

// SetStandardHeader adds a header to every Response built on this
// dispatcher's sessions. Setting an existing key replaces its value.
func (d *Dispatcher) SetStandardHeader(key, value string) {
	d.headerMu.Lock()
	defer d.headerMu.Unlock()

	for i := range d.headers {
		if d.headers[i][0] == key {
			d.headers[i][1] = value
			return
		}
	}
	d.headers = append(d.headers, [2]string{key, value})
}

func (d *Dispatcher) visitStandardHeaders(fn func(key, value string)) {
	d.headerMu.RLock()
	defer d.headerMu.RUnlock()

	for _, h := range d.headers {
		fn(h[0], h[1])
	}
}

// ── WebSocket admission ──────────────────────────────────────────────

// IsWebSocketAvailable reports whether another upgrade would be
// admitted right now.
func (d *Dispatcher) IsWebSocketAvailable() bool {
	return int(d.activeWS.Load()) < d.cfg.MaxWebSockets
}

// WebSocketCount returns the number of sessions in WebSocket mode.
func (d *Dispatcher) WebSocketCount() int { return int(d.activeWS.Load()) }

// acquireWebSocket reserves one websocket slot if below the limit.
func (d *Dispatcher) acquireWebSocket() bool {
	for {
		n := d.activeWS.Load()
		if int(n) >= d.cfg.MaxWebSockets {
			return false
		}
		if d.activeWS.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (d *Dispatcher) releaseWebSocket() { d.activeWS.Add(-1) }

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() StatsSnapshot {
	snap := d.stats.Snapshot()
	snap.ActiveWebSockets = int64(d.WebSocketCount())
	return snap
}
