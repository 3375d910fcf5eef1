// Package pduclient implements the persistent-connection client for the
// power-distribution device protocol: one long-lived TCP session with an
// automatic login handshake, correlation of asynchronous replies back to the
// callers that issued them, typed lifecycle and notification events, and
// capped exponential-backoff reconnection after connection loss.
//
// A Client multiplexes any number of concurrent logical commands onto its
// single connection; replies are matched back to callers by message name,
// not by interleaving order.
package pduclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/go-pdu/logger"
	"github.com/cyberinferno/go-pdu/protocol"
)

const readBufferSize = 4096

// noRetry is the sentinel attempt count that disables automatic
// reconnection: set on explicit Close and on an authentication rejection.
const noRetry = -1

// maxBackoffShift caps the reconnect delay at 1<<5 = 32 units:
// 2s, 4s, 8s, 16s, 32s, 32s, ...
const maxBackoffShift = 5

// Client is a client for one power-distribution device. Create it with
// NewClient, register event handlers, then call Connect. It is safe for
// concurrent use; any number of goroutines may issue commands over the one
// shared connection.
type Client struct {
	config Config
	log    logger.Logger

	mu       sync.Mutex
	phase    Phase
	conn     net.Conn
	closed   bool
	attempts int

	bus *bus

	onPhaseChange  PhaseChangeHandler
	onReady        ReadyHandler
	onNotification NotificationHandler
	onRawMessage   RawMessageHandler
	onError        ErrorHandler
	onReconnect    ReconnectHandler

	stopChan      chan struct{}
	reconnectChan chan struct{}
	wg            sync.WaitGroup

	// backoffUnit scales the reconnect delay; tests compress it.
	backoffUnit time.Duration
}

// NewClient creates a client for the device at config.Host. The client
// starts Disconnected; call Connect to establish and authenticate the
// session, and Close to tear it down for good.
//
// Parameters:
//   - config: Connection settings (e.g. from DefaultConfig); zero-valued
//     timeouts fall back to the defaults
//
// Returns:
//   - A new *Client ready to use
func NewClient(config Config) *Client {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 5 * time.Second
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	c := &Client{
		config:        config,
		log:           log.With(logger.Field{Key: "device", Value: config.Host}),
		phase:         PhaseDisconnected,
		bus:           newBus(),
		stopChan:      make(chan struct{}),
		reconnectChan: make(chan struct{}, 1),
		backoffUnit:   time.Second,
	}

	c.wg.Add(1)
	go c.reconnectLoop()

	return c
}

// Host returns the configured device address.
func (c *Client) Host() string {
	return c.config.Host
}

// Phase returns the current session phase.
func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// IsReady reports whether the session is connected and authenticated.
func (c *Client) IsReady() bool {
	return c.Phase() == PhaseReady
}

// Connect establishes the transport and performs the login handshake,
// returning once the session is Ready. A ConnectError is retried
// automatically when AutoReconnect is enabled; ErrInvalidLogin is terminal
// and never retried.
//
// Returns:
//   - nil once the session reaches Ready, ErrInvalidLogin if the device
//     rejected the credentials, or a *ConnectError if the transport could
//     not be established or dropped during the handshake
func (c *Client) Connect() error {
	return c.ConnectWithContext(context.Background())
}

// ConnectWithContext is Connect bounded by ctx for cancellation.
func (c *Client) ConnectWithContext(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	return c.connect(ctx)
}

// connect drives Disconnected -> Connecting -> AwaitingLogin -> Ready.
// Callers must have verified the phase is Disconnected; concurrent entry is
// excluded by the login-key subscription, which admits one handshake at a time.
func (c *Client) connect(ctx context.Context) error {
	loginCh, err := c.bus.subscribe(loginKey)
	if err != nil {
		return ErrAlreadyConnected
	}

	c.transition(PhaseConnecting, nil)
	c.log.Debug("dialing device")

	dialer := net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Host)
	if err != nil {
		c.bus.cancel(loginKey)
		connErr := newConnectError("dial failed", err)
		c.transition(PhaseDisconnected, connErr)
		c.emitError(connErr)
		c.triggerReconnect()
		return connErr
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.bus.cancel(loginKey)
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.transition(PhaseAwaitingLogin, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	// The device drives the handshake: it prompts, the read loop answers
	// with the credentials, and the outcome lands on the login key.
	timer := time.NewTimer(c.config.CommandTimeout)
	defer timer.Stop()

	select {
	case res := <-loginCh:
		if res.err != nil {
			if errors.Is(res.err, ErrInvalidLogin) {
				// Credentials are wrong; retrying cannot help.
				c.mu.Lock()
				c.attempts = noRetry
				c.conn = nil
				c.mu.Unlock()
				_ = conn.Close()
				c.transition(PhaseDisconnected, res.err)
				c.log.Error("login rejected")
				return res.err
			}

			// Transport dropped mid-handshake; the read loop has already
			// moved the session to Disconnected and triggered reconnection.
			return res.err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.conn != conn {
			// The transport dropped right after the success line: the read
			// loop has already moved the session to Disconnected and armed
			// reconnection, so Ready must not be declared for a dead
			// connection.
			c.mu.Unlock()
			return newConnectError("connection lost during login", nil)
		}
		c.attempts = 0
		c.phase = PhaseReady
		c.mu.Unlock()
		c.emitPhaseChange(PhaseReady, nil)
		c.emitReady()
		c.log.Info("session ready")
		return nil

	case <-timer.C:
		c.bus.cancel(loginKey)
		c.dropConn(conn)
		connErr := newConnectError("login handshake timed out", nil)
		c.transition(PhaseDisconnected, connErr)
		c.emitError(connErr)
		c.triggerReconnect()
		return connErr

	case <-ctx.Done():
		c.bus.cancel(loginKey)
		c.dropConn(conn)
		c.transition(PhaseDisconnected, ctx.Err())
		return newConnectError("connect cancelled", ctx.Err())

	case <-c.stopChan:
		c.bus.cancel(loginKey)
		return ErrClosed
	}
}

// Close tears the session down for good: it cancels any pending reconnect,
// closes the transport, fails every pending command with ErrClosed, and
// leaves the client Disconnected. Idempotent; the client must not be
// reconnected afterwards.
//
// Returns:
//   - nil
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.attempts = noRetry
	conn := c.conn
	c.conn = nil
	c.phase = PhaseClosing
	c.mu.Unlock()

	c.emitPhaseChange(PhaseClosing, nil)

	close(c.stopChan)
	if conn != nil {
		_ = conn.Close()
	}
	c.bus.failAll(ErrClosed)
	c.wg.Wait()

	c.mu.Lock()
	c.phase = PhaseDisconnected
	c.mu.Unlock()
	c.emitPhaseChange(PhaseDisconnected, nil)
	c.log.Info("client closed")

	return nil
}

// SendQuery writes a query line (e.g. "?Firmware") and returns the raw
// correlated reply line (e.g. "?Firmware=1.2.3.4"), waiting at most the
// configured CommandTimeout.
//
// Parameters:
//   - query: The formatted query line, without trailing newline
//
// Returns:
//   - The full reply line, or ErrNotConnected / ErrTimeout /
//     ErrRequestInFlight / *ProtocolError
func (c *Client) SendQuery(query string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.CommandTimeout)
	defer cancel()
	return c.SendQueryWithContext(ctx, query)
}

// SendQueryWithContext is SendQuery bounded by ctx. When ctx expires the
// transport is forcibly closed: an unresponsive device must not keep the
// session, and the close feeds the normal loss-then-reconnect path. Plain
// cancellation only unregisters the pending request.
func (c *Client) SendQueryWithContext(ctx context.Context, query string) (string, error) {
	if err := protocol.ValidateOutbound(query); err != nil {
		return "", err
	}
	if query[0] != protocol.QuerySigil {
		return "", fmt.Errorf("%q is not a query command", query)
	}

	res, err := c.roundTrip(ctx, query, protocol.ReplyKey(query))
	if err != nil {
		return "", err
	}

	return res, nil
}

// SendControl writes a control line (e.g. "!OutletSet=1,ON") and waits for
// the device's acknowledgement, at most the configured CommandTimeout.
//
// Parameters:
//   - command: The formatted control line, without trailing newline
//
// Returns:
//   - nil on "OK"; *ProtocolError on "#Error"; otherwise ErrNotConnected /
//     ErrTimeout / ErrRequestInFlight
func (c *Client) SendControl(command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.CommandTimeout)
	defer cancel()
	return c.SendControlWithContext(ctx, command)
}

// SendControlWithContext is SendControl bounded by ctx, with the same
// timeout semantics as SendQueryWithContext.
func (c *Client) SendControlWithContext(ctx context.Context, command string) error {
	if err := protocol.ValidateOutbound(command); err != nil {
		return err
	}
	if command[0] != protocol.ControlSigil {
		return fmt.Errorf("%q is not a control command", command)
	}

	_, err := c.roundTrip(ctx, command, controlKey)
	if err != nil {
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) && protoErr.Command == "" {
			return &ProtocolError{Command: command}
		}
		return err
	}

	return nil
}

// roundTrip is the command gateway: it registers the single waiter for key,
// writes line, and resolves with whichever of {reply, error signal, timeout,
// cancellation, close} occurs first.
func (c *Client) roundTrip(ctx context.Context, line, key string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.phase != PhaseReady || c.conn == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	ch, err := c.bus.subscribe(key)
	if err != nil {
		return "", err
	}

	if err := c.writeLine(conn, line); err != nil {
		c.bus.cancel(key)
		return "", newConnectError("write failed", err)
	}
	c.emitRawMessage(DirectionOutbound, line)

	select {
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return res.payload, nil

	case <-ctx.Done():
		c.bus.cancel(key)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.log.Warn("command timed out, closing transport",
				logger.Field{Key: "command", Value: line})
			_ = conn.Close()
			return "", ErrTimeout
		}
		return "", ctx.Err()

	case <-c.stopChan:
		c.bus.cancel(key)
		return "", ErrClosed
	}
}

func (c *Client) writeLine(conn net.Conn, line string) error {
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

// readLoop drains one connection: it frames the byte stream into lines and
// classifies each in arrival order. It exits when the connection fails or is
// closed, reporting the loss exactly once.
func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	framer := &protocol.LineFramer{}
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range framer.Push(buf[:n]) {
				c.handleLine(conn, line)
			}
		}
		if err != nil {
			c.handleConnectionLoss(conn, err)
			return
		}
	}
}

// handleLine routes one classified inbound line. The login exchange is
// consumed silently; every other class also produces a raw diagnostic event.
func (c *Client) handleLine(conn net.Conn, line string) {
	msg := protocol.Classify(line)

	switch msg.Class {
	case protocol.ClassLoginPrompt:
		switch msg.Prompt {
		case protocol.PromptUsername:
			if err := c.writeLine(conn, c.config.Username); err != nil {
				c.log.Error("failed to send username", logger.Field{Key: "error", Value: err})
			}
		case protocol.PromptPassword:
			if err := c.writeLine(conn, c.config.Password); err != nil {
				c.log.Error("failed to send password", logger.Field{Key: "error", Value: err})
			}
		}
		return

	case protocol.ClassLoginResult:
		if msg.LoginOK {
			c.bus.publish(loginKey, "")
		} else {
			// Disable reconnection before the device closes the transport on
			// us, so the loss path cannot schedule a retry with credentials
			// that are known to be wrong.
			c.mu.Lock()
			c.attempts = noRetry
			c.mu.Unlock()
			c.bus.fail(loginKey, ErrInvalidLogin)
		}
		return
	}

	c.emitRawMessage(DirectionInbound, line)

	switch msg.Class {
	case protocol.ClassQueryReply:
		if !c.bus.publish(msg.Key, msg.Raw) {
			c.log.Debug("unmatched query reply dropped", logger.Field{Key: "key", Value: msg.Key})
		}

	case protocol.ClassControlOK:
		c.bus.publish(controlKey, "")

	case protocol.ClassControlError:
		// Prefer the pending control command; with none in flight the
		// rejection must answer a query-shaped command, so fail those
		// instead of letting them hang until timeout.
		if !c.bus.fail(controlKey, &ProtocolError{}) {
			c.bus.failQueries(&ProtocolError{})
		}

	case protocol.ClassNotification:
		c.emitNotification(msg.Name, msg.Values, msg.Raw)

	default:
		c.log.Debug("unclassified line", logger.Field{Key: "line", Value: line})
	}
}

// handleConnectionLoss reacts to the read loop failing: unless the loss was
// caused by Close or the connection has already been replaced, it fails all
// pending commands, moves to Disconnected, and hands over to the reconnect
// scheduler.
func (c *Client) handleConnectionLoss(conn net.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	connErr := newConnectError("connection lost", err)
	c.bus.failAll(connErr)
	c.transition(PhaseDisconnected, connErr)
	c.emitError(connErr)
	c.log.Warn("connection lost", logger.Field{Key: "error", Value: err})
	c.triggerReconnect()
}

// dropConn closes conn and clears it from the client if still current.
func (c *Client) dropConn(conn net.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) transition(phase Phase, err error) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()

	c.emitPhaseChange(phase, err)
}

func (c *Client) triggerReconnect() {
	c.mu.Lock()
	disabled := !c.config.AutoReconnect || c.closed || c.attempts == noRetry
	c.mu.Unlock()

	if disabled {
		return
	}

	select {
	case c.reconnectChan <- struct{}{}:
	default:
	}
}

// reconnectLoop waits for loss signals and re-drives connect after a capped
// exponential backoff delay. It runs for the lifetime of the client and
// exits on Close, which also cancels any delay in progress.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case <-c.reconnectChan:
		}

		c.mu.Lock()
		if c.closed || c.attempts == noRetry || c.phase != PhaseDisconnected {
			c.mu.Unlock()
			continue
		}
		c.attempts++
		attempt := c.attempts
		maxAttempts := c.config.MaxReconnectAttempts
		c.mu.Unlock()

		if maxAttempts > 0 && attempt > maxAttempts {
			c.log.Error("reconnect attempts exhausted",
				logger.Field{Key: "attempts", Value: maxAttempts})
			continue
		}

		delay := backoffDelay(attempt, c.backoffUnit)
		c.emitReconnectScheduled(attempt, delay)
		c.log.Info("reconnect scheduled",
			logger.Field{Key: "attempt", Value: attempt},
			logger.Field{Key: "delay", Value: delay.String()})

		select {
		case <-c.stopChan:
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		skip := c.closed || c.attempts == noRetry || c.phase != PhaseDisconnected
		c.mu.Unlock()
		if skip {
			continue
		}

		if err := c.connect(context.Background()); err != nil {
			// A failed attempt has already re-armed the next one via
			// triggerReconnect, unless the failure was terminal.
			c.log.Warn("reconnect attempt failed",
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "error", Value: err})
		}
	}
}

// backoffDelay returns min(32, 2^attempt) units: 2s, 4s, 8s, 16s, 32s,
// 32s, ... for the default unit of one second. The attempt number is
// clamped before shifting; an unbounded retry count must not overflow the
// shift and collapse the delay to zero.
func backoffDelay(attempt int, unit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}

	return time.Duration(1<<attempt) * unit
}
