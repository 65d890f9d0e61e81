// Package session owns the event stream connection: dialing, the read loop,
// liveness checks, and reconnection with exponential backoff. Raw frames are
// handed to the dispatcher; the session never interprets them.
package session

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the slice of a websocket connection the manager uses. Satisfied by
// *websocket.Conn; tests substitute a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to the given URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Dispatch receives every inbound data frame, in order.
type Dispatch func(ctx context.Context, raw []byte)

// TokenSource yields the auth token appended to the stream URL.
type TokenSource interface {
	AuthToken() (string, error)
}

// Resyncer reloads the full snapshot after the stream has been silent long
// enough that events may have been missed.
type Resyncer interface {
	Reload(ctx context.Context, force bool) error
}

// Config carries the stream endpoint and the liveness timings.
type Config struct {
	URL         string
	Heartbeat   time.Duration
	Stale       time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// backoffDelay returns the reconnect delay for the given attempt:
// BackoffBase doubled per attempt, capped at BackoffCap, plus up to
// BackoffBase of jitter so restarting clients don't dial in lockstep.
func (c Config) backoffDelay(attempt int) time.Duration {
	d := c.BackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.BackoffCap || d <= 0 {
			d = c.BackoffCap
			break
		}
	}
	if c.BackoffBase > 0 {
		d += time.Duration(rand.Int64N(int64(c.BackoffBase)))
	}
	return d
}

type Manager struct {
	cfg      Config
	dial     Dialer
	dispatch Dispatch
	tokens   TokenSource
	resync   Resyncer

	mu            sync.Mutex
	conn          Conn
	lastMessage   time.Time
	reconnecting  bool
	stopHeartbeat chan struct{}
}

func New(cfg Config, dial Dialer, dispatch Dispatch, tokens TokenSource, resync Resyncer) *Manager {
	return &Manager{
		cfg:      cfg,
		dial:     dial,
		dispatch: dispatch,
		tokens:   tokens,
		resync:   resync,
	}
}

// WebsocketDialer returns a Dialer backed by gorilla's default dialer, with
// the given User-Agent on the handshake.
func WebsocketDialer(userAgent string) Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		hdr := http.Header{}
		hdr.Set("User-Agent", userAgent)
		c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, hdr)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, err
		}
		return c, nil
	}
}

// Connect dials the stream and starts the read and heartbeat loops. Calling
// it while a connection is live is a no-op. A dial failure is not raised:
// it enters the reconnection path, which keeps retrying with backoff. Only a
// missing or unusable auth token surfaces as an error, since no amount of
// redialing fixes that.
func (m *Manager) Connect(ctx context.Context) error {
	if m.Connected() {
		return nil
	}

	token, err := m.tokens.AuthToken()
	if err != nil {
		return err
	}

	if err := m.connectOnce(ctx, token); err != nil {
		log.Printf("SESSION: connect: %v", err)
		go m.reconnect(ctx)
	}
	return nil
}

// connectOnce performs a single dial and, on success, installs the
// connection and starts its loops.
func (m *Manager) connectOnce(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	conn, err := m.dial(ctx, m.cfg.URL+"?authToken="+token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.lastMessage = time.Now()
	stop := make(chan struct{})
	m.stopHeartbeat = stop
	m.mu.Unlock()

	log.Printf("SESSION: connected to %s", m.cfg.URL)
	go m.readLoop(ctx, conn)
	go m.heartbeat(ctx, conn, stop)
	return nil
}

// Disconnect stops the heartbeat and closes the connection. The read loop
// exits on the resulting read error.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *Manager) teardownLocked() {
	if m.stopHeartbeat != nil {
		close(m.stopHeartbeat)
		m.stopHeartbeat = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

// Connected reports whether a connection is currently held.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *Manager) touch() {
	m.mu.Lock()
	m.lastMessage = time.Now()
	m.mu.Unlock()
}

func (m *Manager) sinceLastMessage() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastMessage)
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("SESSION: read: %v", err)
			m.reconnect(ctx)
			return
		}
		m.touch()
		m.dispatch(ctx, raw)
	}
}

// heartbeat pings on every tick and watches for staleness. A stream that has
// been silent past the stale threshold has likely dropped events, so a full
// resync is kicked off before reconnecting.
func (m *Manager) heartbeat(ctx context.Context, conn Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		if m.sinceLastMessage() > m.cfg.Stale {
			log.Printf("SESSION: stream stale after %s, resyncing", m.cfg.Stale)
			go func() {
				if err := m.resync.Reload(ctx, true); err != nil {
					log.Printf("SESSION: resync: %v", err)
				}
			}()
			m.reconnect(ctx)
			return
		}

		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			log.Printf("SESSION: ping: %v", err)
			m.reconnect(ctx)
			return
		}
	}
}

// reconnect tears the connection down and redials with exponential backoff
// until it succeeds or the context is cancelled. Only one reconnect runs at
// a time; the read loop and the heartbeat both report failures and whichever
// arrives second returns immediately.
func (m *Manager) reconnect(ctx context.Context) {
	m.mu.Lock()
	if m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.teardownLocked()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	for attempt := 0; ; attempt++ {
		delay := m.cfg.backoffDelay(attempt)
		log.Printf("SESSION: reconnect attempt %d in %s", attempt+1, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		// Refetch the token each attempt; the cookie file may have been
		// rewritten while we were down.
		token, err := m.tokens.AuthToken()
		if err != nil {
			log.Printf("SESSION: reconnect attempt %d: %v", attempt+1, err)
			continue
		}

		err = m.connectOnce(ctx, token)
		if err == nil {
			log.Printf("SESSION: reconnected after %d attempt(s)", attempt+1)
			return
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		log.Printf("SESSION: reconnect attempt %d: %v", attempt+1, err)
	}
}
