// Package device provides the typed command surface over a device session:
// each method wraps one protocol command, sends it through the client, and
// decodes the reply. Static identity values (model, firmware, service tag,
// outlet layout) are served through a read-through cache so dashboard-style
// polling does not hammer the device; live state always hits the wire.
package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cyberinferno/go-pdu/cacher"
	"github.com/cyberinferno/go-pdu/pduclient"
	"github.com/cyberinferno/go-pdu/protocol"
)

// defaultInfoTTL is how long cached identity values stay fresh. Identity
// only changes on a firmware upgrade, so a long TTL is safe.
const defaultInfoTTL = time.Hour

// OutletAction is a power action applied to a single outlet.
type OutletAction string

const (
	ActionOn     OutletAction = "ON"
	ActionOff    OutletAction = "OFF"
	ActionToggle OutletAction = "TOGGLE"
	ActionReset  OutletAction = "RESET"
)

// PowerMetrics is the decoded "?PowerStatus" reply.
type PowerMetrics struct {
	Amps  float64
	Watts float64
	Volts float64
}

// Device wraps a client with typed accessors for the device's command
// catalog. It is safe for concurrent use.
type Device struct {
	client  *pduclient.Client
	cache   cacher.Cacher[string]
	infoTTL time.Duration
}

// New creates a Device over an established client session. Pass nil for
// cache to use an in-process memory cache for static identity values, or a
// Redis-backed cacher to share one cache across a fleet of pollers.
//
// Parameters:
//   - client: The device session; the caller manages its lifecycle
//   - cache: Read-through cache for identity values, or nil for the default
//
// Returns:
//   - A new *Device
func New(client *pduclient.Client, cache cacher.Cacher[string]) *Device {
	if cache == nil {
		cache = cacher.NewMemoryCacher[string](defaultInfoTTL, 10*time.Minute)
	}

	return &Device{
		client:  client,
		cache:   cache,
		infoTTL: defaultInfoTTL,
	}
}

// Client returns the underlying session client.
func (d *Device) Client() *pduclient.Client {
	return d.client
}

// Firmware returns the device firmware version, cached.
func (d *Device) Firmware(ctx context.Context) (string, error) {
	return d.cachedValue(ctx, "Firmware")
}

// Model returns the device model string, cached.
func (d *Device) Model(ctx context.Context) (string, error) {
	return d.cachedValue(ctx, "Model")
}

// ServiceTag returns the device service tag, cached.
func (d *Device) ServiceTag(ctx context.Context) (string, error) {
	return d.cachedValue(ctx, "ServiceTag")
}

// Hostname returns the device hostname, cached.
func (d *Device) Hostname(ctx context.Context) (string, error) {
	return d.cachedValue(ctx, "Hostname")
}

// OutletCount returns the number of outlets, cached.
func (d *Device) OutletCount(ctx context.Context) (int, error) {
	raw, err := d.cachedValue(ctx, "OutletCount")
	if err != nil {
		return 0, err
	}

	counts, err := protocol.ParseInts([]string{raw})
	if err != nil {
		return 0, fmt.Errorf("bad outlet count reply: %w", err)
	}

	return counts[0], nil
}

// OutletNames returns the configured name of every outlet, cached.
func (d *Device) OutletNames(ctx context.Context) ([]string, error) {
	value, err := d.cachedValue(ctx, "OutletName")
	if err != nil {
		return nil, err
	}

	return strings.Split(value, ","), nil
}

// OutletStatus returns the live power state of every outlet, in outlet
// order: true means powered.
func (d *Device) OutletStatus(ctx context.Context) ([]bool, error) {
	fields, err := d.queryFields(ctx, "OutletStatus")
	if err != nil {
		return nil, err
	}

	states, err := protocol.ParseBools(fields)
	if err != nil {
		return nil, fmt.Errorf("bad outlet status reply: %w", err)
	}

	return states, nil
}

// Power returns the live current, power, and voltage readings.
func (d *Device) Power(ctx context.Context) (PowerMetrics, error) {
	fields, err := d.queryFields(ctx, "PowerStatus")
	if err != nil {
		return PowerMetrics{}, err
	}

	values, err := protocol.ParseFloats(fields)
	if err != nil || len(values) != 3 {
		return PowerMetrics{}, fmt.Errorf("bad power status reply %v: %v", fields, err)
	}

	return PowerMetrics{Amps: values[0], Watts: values[1], Volts: values[2]}, nil
}

// AutoRebootEnabled reports whether the device's auto-reboot feature is on.
func (d *Device) AutoRebootEnabled(ctx context.Context) (bool, error) {
	fields, err := d.queryFields(ctx, "AutoReboot")
	if err != nil {
		return false, err
	}

	flags, err := protocol.ParseBools(fields)
	if err != nil || len(flags) != 1 {
		return false, fmt.Errorf("bad auto-reboot reply %v: %v", fields, err)
	}

	return flags[0], nil
}

// SetOutlet applies a power action to the 1-based outlet number.
func (d *Device) SetOutlet(ctx context.Context, outlet int, action OutletAction) error {
	if outlet < 1 {
		return fmt.Errorf("outlet number %d must be positive", outlet)
	}

	cmd, err := protocol.Control("OutletSet", fmt.Sprintf("%d", outlet), string(action))
	if err != nil {
		return err
	}

	return d.client.SendControlWithContext(ctx, cmd)
}

// SetAutoReboot enables or disables the device's auto-reboot feature.
func (d *Device) SetAutoReboot(ctx context.Context, enabled bool) error {
	arg := "0"
	if enabled {
		arg = "1"
	}

	cmd, err := protocol.Control("AutoReboot", arg)
	if err != nil {
		return err
	}

	return d.client.SendControlWithContext(ctx, cmd)
}

// RebootDevice reboots the device itself (not its outlets). The session
// will be lost and recovered by the client's reconnect path.
func (d *Device) RebootDevice(ctx context.Context) error {
	cmd, err := protocol.Control("Reboot")
	if err != nil {
		return err
	}

	return d.client.SendControlWithContext(ctx, cmd)
}

// InvalidateInfo drops the cached identity values, forcing the next
// identity read to hit the device. Call after a firmware upgrade.
func (d *Device) InvalidateInfo(ctx context.Context) error {
	return d.cache.Clear(ctx)
}

// cachedValue serves an identity query through the cache. The decoded value
// is what gets cached, so a shared Redis cache stores plain strings rather
// than protocol lines.
func (d *Device) cachedValue(ctx context.Context, name string) (string, error) {
	return d.cache.GetOrFetch(ctx, d.cacheKey(name), d.infoTTL,
		func(ctx context.Context) (string, error) {
			raw, err := d.queryValue(ctx, name)
			if err != nil {
				return "", err
			}

			return protocol.ReplyValue(raw)
		})
}

// queryValue round-trips a query and returns its raw reply line.
func (d *Device) queryValue(ctx context.Context, name string) (string, error) {
	query, err := protocol.Query(name)
	if err != nil {
		return "", err
	}

	return d.client.SendQueryWithContext(ctx, query)
}

func (d *Device) queryFields(ctx context.Context, name string) ([]string, error) {
	raw, err := d.queryValue(ctx, name)
	if err != nil {
		return nil, err
	}

	_, fields, err := protocol.SplitReply(raw)
	if err != nil {
		return nil, err
	}

	return fields, nil
}

// cacheKey namespaces identity cache entries per device address, so a
// shared Redis cache can serve a whole fleet without collisions.
func (d *Device) cacheKey(name string) string {
	return "pdu:" + d.client.Host() + ":" + name
}
