package pduclient

import "time"

// Phase is the session state of the client. Exactly one connection is
// associated with any non-Disconnected phase at a time.
type Phase int

const (
	PhaseDisconnected  Phase = iota // No transport; idle or awaiting a scheduled reconnect
	PhaseConnecting                 // Transport dial in progress
	PhaseAwaitingLogin              // Transport open, login handshake in progress
	PhaseReady                      // Logged in; commands may be issued
	PhaseClosing                    // Close in progress; terminal
)

// String returns a human-readable name for the session phase.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseConnecting:
		return "Connecting"
	case PhaseAwaitingLogin:
		return "AwaitingLogin"
	case PhaseReady:
		return "Ready"
	case PhaseClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Direction tags a raw diagnostic line as sent or received.
type Direction int

const (
	DirectionInbound  Direction = iota // Line received from the device
	DirectionOutbound                  // Line written to the device
)

// String returns "in" or "out".
func (d Direction) String() string {
	if d == DirectionOutbound {
		return "out"
	}

	return "in"
}

// PhaseChangeEvent is emitted when the session phase changes.
// It is passed to the handler registered with OnPhaseChange.
type PhaseChangeEvent struct {
	Phase     Phase     // The new session phase
	Addr      string    // The configured device address
	Timestamp time.Time // When the phase change occurred
	Err       error     // Non-nil if the change was caused by an error
}

// NotificationEvent is emitted for every unsolicited '~' message the device
// sends. It is passed to the handler registered with OnNotification.
type NotificationEvent struct {
	Name      string    // Notification name, e.g. "OutletStatus"
	Values    []string  // Decoded comma-delimited payload fields
	Raw       string    // The full line as received
	Timestamp time.Time // When the notification arrived
}

// RawMessageEvent is a diagnostic record of one protocol line crossing the
// wire. Emitted for every classified line except the login exchange; for
// observability only, never part of control flow.
type RawMessageEvent struct {
	Direction Direction // Whether the line was received or sent
	Line      string    // The trimmed protocol line
	Timestamp time.Time // When the line crossed the wire
}

// ErrorEvent is emitted when a transport read, write, or connect error
// occurs. It is passed to the handler registered with OnError.
type ErrorEvent struct {
	Err       error     // The error that occurred
	Timestamp time.Time // When the error occurred
}

// ReconnectEvent is emitted when a reconnection attempt is scheduled.
type ReconnectEvent struct {
	Attempt   int           // 1-based attempt number since the last successful login
	Delay     time.Duration // Backoff delay before the attempt is made
	Timestamp time.Time     // When the attempt was scheduled
}

// PhaseChangeHandler is called when the session phase changes.
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type PhaseChangeHandler func(event PhaseChangeEvent)

// ReadyHandler is called each time the session reaches Ready (after every
// successful login, including reconnects).
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type ReadyHandler func()

// NotificationHandler is called for every unsolicited device notification.
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type NotificationHandler func(event NotificationEvent)

// RawMessageHandler is called for every diagnostic protocol line.
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type RawMessageHandler func(event RawMessageEvent)

// ErrorHandler is called when a transport error occurs.
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type ErrorHandler func(event ErrorEvent)

// ReconnectHandler is called when a reconnection attempt is scheduled.
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type ReconnectHandler func(event ReconnectEvent)

// OnPhaseChange registers the handler for session phase changes.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (c *Client) OnPhaseChange(handler PhaseChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = handler
}

// OnReady registers the handler invoked each time the session reaches Ready.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (c *Client) OnReady(handler ReadyHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReady = handler
}

// OnNotification registers the handler for unsolicited device notifications.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (c *Client) OnNotification(handler NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotification = handler
}

// OnRawMessage registers the handler for raw diagnostic protocol lines.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (c *Client) OnRawMessage(handler RawMessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRawMessage = handler
}

// OnError registers the handler for transport errors.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// OnReconnectScheduled registers the handler for scheduled reconnect attempts.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (c *Client) OnReconnectScheduled(handler ReconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = handler
}

func (c *Client) emitPhaseChange(phase Phase, err error) {
	c.mu.Lock()
	handler := c.onPhaseChange
	c.mu.Unlock()

	if handler != nil {
		event := PhaseChangeEvent{
			Phase:     phase,
			Addr:      c.config.Host,
			Timestamp: time.Now(),
			Err:       err,
		}

		go handler(event)
	}
}

func (c *Client) emitReady() {
	c.mu.Lock()
	handler := c.onReady
	c.mu.Unlock()

	if handler != nil {
		go handler()
	}
}

func (c *Client) emitNotification(name string, values []string, raw string) {
	c.mu.Lock()
	handler := c.onNotification
	c.mu.Unlock()

	if handler != nil {
		event := NotificationEvent{
			Name:      name,
			Values:    values,
			Raw:       raw,
			Timestamp: time.Now(),
		}

		go handler(event)
	}
}

func (c *Client) emitRawMessage(direction Direction, line string) {
	c.mu.Lock()
	handler := c.onRawMessage
	c.mu.Unlock()

	if handler != nil {
		event := RawMessageEvent{
			Direction: direction,
			Line:      line,
			Timestamp: time.Now(),
		}

		go handler(event)
	}
}

func (c *Client) emitError(err error) {
	c.mu.Lock()
	handler := c.onError
	c.mu.Unlock()

	if handler != nil {
		event := ErrorEvent{
			Err:       err,
			Timestamp: time.Now(),
		}

		go handler(event)
	}
}

func (c *Client) emitReconnectScheduled(attempt int, delay time.Duration) {
	c.mu.Lock()
	handler := c.onReconnect
	c.mu.Unlock()

	if handler != nil {
		event := ReconnectEvent{
			Attempt:   attempt,
			Delay:     delay,
			Timestamp: time.Now(),
		}

		go handler(event)
	}
}
