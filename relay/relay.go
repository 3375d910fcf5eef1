// Package relay republishes the unsolicited notifications of one device
// session to a Redis pub/sub channel, so fleet tooling can observe outlet
// state changes without speaking the device protocol itself.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/go-pdu/logger"
	"github.com/cyberinferno/go-pdu/pduclient"
)

// DefaultChannel is the Redis channel notifications are published to when
// none is configured.
const DefaultChannel = "pdu:events"

// publishTimeout bounds each Redis publish so a slow broker cannot pile up
// goroutines behind the notification stream.
const publishTimeout = 5 * time.Second

// Event is the JSON document published per notification.
type Event struct {
	Device    string    `json:"device"`
	Name      string    `json:"name"`
	Values    []string  `json:"values,omitempty"`
	Raw       string    `json:"raw"`
	Timestamp time.Time `json:"ts"`
}

// Config holds configuration for a Relay.
type Config struct {
	// Channel is the Redis channel to publish to; DefaultChannel if empty.
	Channel string
	// Logger receives the relay's structured log output. Nil means silent.
	Logger logger.Logger
}

// Relay forwards a client's notifications to Redis. Create it with New,
// then Start it; Stop detaches it from the client.
type Relay struct {
	client  *pduclient.Client
	rdb     *redis.Client
	channel string
	log     logger.Logger
}

// New creates a Relay over an existing session client and Redis connection.
// Neither is owned by the relay; the caller manages their lifecycles.
//
// Parameters:
//   - client: The device session whose notifications are forwarded
//   - rdb: The Redis connection to publish through
//   - config: Channel and logging settings
//
// Returns:
//   - A new *Relay, not yet started
func New(client *pduclient.Client, rdb *redis.Client, config Config) *Relay {
	channel := config.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Relay{
		client:  client,
		rdb:     rdb,
		channel: channel,
		log:     log.With(logger.Field{Key: "channel", Value: channel}),
	}
}

// Start attaches the relay to the client's notification stream. It claims
// the client's single notification handler slot; a previously registered
// handler is replaced.
func (r *Relay) Start() {
	r.client.OnNotification(r.forward)
	r.log.Info("relay started")
}

// Stop detaches the relay from the client. In-flight publishes complete on
// their own timeout.
func (r *Relay) Stop() {
	r.client.OnNotification(nil)
	r.log.Info("relay stopped")
}

// forward publishes one notification. Publish failures are logged and
// dropped; the notification stream must never block on the broker.
func (r *Relay) forward(event pduclient.NotificationEvent) {
	payload, err := json.Marshal(Event{
		Device:    r.client.Host(),
		Name:      event.Name,
		Values:    event.Values,
		Raw:       event.Raw,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		r.log.Error("failed to encode notification", logger.Field{Key: "error", Value: err})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Error("failed to publish notification",
			logger.Field{Key: "name", Value: event.Name},
			logger.Field{Key: "error", Value: err})
	}
}
