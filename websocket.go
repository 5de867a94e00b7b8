package termsync

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Conn pumps protocol frames between a SyncSession and a WebSocket. Writes
// are serialized through a single write loop; reads decode host frames and
// feed them into the session.
type Conn struct {
	conn        *websocket.Conn
	session     *SyncSession
	hostVersion string
	writeChan   chan writeRequest
	done        chan struct{}
	closeOnce   sync.Once
	group       *errgroup.Group
}

type writeRequest struct {
	messageType int
	data        []byte
	result      chan error
}

type dialConfig struct {
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	header           http.Header
}

// DialOption configures DialSession.
type DialOption func(*dialConfig)

// WithHandshakeTimeout bounds the WebSocket handshake.
func WithHandshakeTimeout(d time.Duration) DialOption {
	return func(c *dialConfig) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithPingInterval sets the keepalive ping spacing. Zero disables pings.
func WithPingInterval(d time.Duration) DialOption {
	return func(c *dialConfig) { c.pingInterval = d }
}

// WithHeader adds HTTP headers to the handshake request (auth tokens etc).
func WithHeader(h http.Header) DialOption {
	return func(c *dialConfig) { c.header = h }
}

// DialSession connects to a host and starts the read, write, and tick loops
// for the given session. The loops run until the context is canceled, the
// peer closes, or the host sends a shutdown frame; Wait reports why.
func DialSession(ctx context.Context, url string, session *SyncSession, opts ...DialOption) (*Conn, error) {
	cfg := dialConfig{
		handshakeTimeout: 10 * time.Second,
		pingInterval:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	header := http.Header{}
	for k, v := range cfg.header {
		header[k] = v
	}
	header.Set("Termsync-Client-Version", Version)

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.handshakeTimeout,
		ReadBufferSize:   1024 * 1024,
		WriteBufferSize:  1024 * 1024,
	}
	if len(url) >= 4 && url[:4] == "wss:" {
		dialer.TLSClientConfig = &tls.Config{}
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil && len(body) > 0 {
				return nil, fmt.Errorf("termsync: connect failed: %w (HTTP %d: %s)", err, resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("termsync: connect failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("termsync: connect failed: %w", err)
	}

	c := &Conn{
		conn:      conn,
		session:   session,
		writeChan: make(chan writeRequest, 100),
		done:      make(chan struct{}),
	}
	if resp != nil {
		c.hostVersion = resp.Header.Get("Termsync-Version")
	}
	if c.hostVersion != "" {
		dbg("conn: host version", "version", c.hostVersion)
	}

	group, gctx := errgroup.WithContext(ctx)
	c.group = group
	group.Go(func() error { return c.readLoop(gctx) })
	group.Go(func() error { return c.writeLoop(gctx) })
	group.Go(func() error { return c.outboundLoop(gctx) })
	if cfg.pingInterval > 0 {
		group.Go(func() error { return c.pingLoop(gctx, cfg.pingInterval) })
	}
	return c, nil
}

// HostVersion returns the version the host advertised during the handshake,
// or the empty string.
func (c *Conn) HostVersion() string { return c.hostVersion }

// Wait blocks until the connection's loops stop and returns the first error.
// A clean peer close returns nil; a host shutdown returns ErrHostShutdown.
func (c *Conn) Wait() error {
	err := c.group.Wait()
	if err == nil {
		return nil
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		return nil
	}
	return err
}

// Close sends a normal-closure control frame and tears the connection down.
// Safe to call more than once and from multiple goroutines.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	deadline := time.Now().Add(time.Second)
	c.conn.SetWriteDeadline(deadline)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline)
	return c.conn.Close()
}

func (c *Conn) readLoop(ctx context.Context) error {
	defer c.Close()
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		frame, err := DecodeHostFrame(data)
		if err != nil {
			if errors.Is(err, ErrUnknownFrame) {
				dbg("conn: skipping unknown frame", "type", data[0])
				continue
			}
			return err
		}
		if _, err := c.session.HandleFrame(frame); err != nil {
			return err
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case req := <-c.writeChan:
			err := c.conn.WriteMessage(req.messageType, req.data)
			if req.result != nil {
				req.result <- err
			}
			if err != nil {
				return err
			}
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// outboundLoop drains frames the session wants sent and serializes them
// through the write loop.
func (c *Conn) outboundLoop(ctx context.Context) error {
	for {
		select {
		case frame, ok := <-c.session.Outbound():
			if !ok {
				return nil
			}
			if _, isResize := frame.(ResizeFrame); isResize && !hostAcceptsResize(c.hostVersion) {
				dbg("conn: host too old for resize frames", "version", c.hostVersion)
				continue
			}
			if err := c.writeRaw(ctx, EncodeClientFrame(frame)); err != nil {
				return err
			}
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeRaw hands data to the write loop and waits for the outcome. The wait
// also watches ctx and done: the write loop can exit without draining
// writeChan, so blocking on result alone could hang forever.
func (c *Conn) writeRaw(ctx context.Context, data []byte) error {
	result := make(chan error, 1)
	select {
	case c.writeChan <- writeRequest{messageType: websocket.BinaryMessage, data: data, result: result}:
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
