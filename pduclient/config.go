package pduclient

import (
	"time"

	"github.com/cyberinferno/go-pdu/logger"
)

// Config holds configuration for the device client.
type Config struct {
	// Host is the "host:port" of the device (e.g. "10.0.0.15:23").
	Host string
	// Username and Password are the credentials written when the device
	// prompts during the login handshake.
	Username string
	Password string
	// CommandTimeout bounds how long a query or control command waits for
	// its correlated reply, and how long the login handshake may take.
	CommandTimeout time.Duration
	// ConnectTimeout is the max duration for establishing the transport.
	ConnectTimeout time.Duration
	// AutoReconnect enables automatic reconnection with exponential backoff
	// after an unexpected connection loss.
	AutoReconnect bool
	// MaxReconnectAttempts caps consecutive reconnect attempts; 0 means
	// unbounded. The counter resets on every successful login.
	MaxReconnectAttempts int
	// Logger receives the client's structured log output. Nil means silent.
	Logger logger.Logger
}

// DefaultConfig returns a Config with default values for the given address:
// CommandTimeout 5s, ConnectTimeout 10s, AutoReconnect enabled, unbounded
// reconnect attempts, no logging. Override fields as needed before passing
// to NewClient.
//
// Parameters:
//   - host: The "host:port" of the device
//
// Returns:
//   - A Config with defaults applied
func DefaultConfig(host string) Config {
	return Config{
		Host:                 host,
		CommandTimeout:       5 * time.Second,
		ConnectTimeout:       10 * time.Second,
		AutoReconnect:        true,
		MaxReconnectAttempts: 0,
	}
}
