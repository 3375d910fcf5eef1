package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-pdu/devicesim"
	"github.com/cyberinferno/go-pdu/pduclient"
)

func newTestDevice(t *testing.T) (*Device, *devicesim.Server) {
	t.Helper()

	sim := devicesim.New(devicesim.DefaultConfig("127.0.0.1:0"))
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)

	cfg := pduclient.DefaultConfig(sim.Addr())
	cfg.Username = "admin"
	cfg.Password = "admin"
	cfg.CommandTimeout = 2 * time.Second
	cfg.AutoReconnect = false

	client := pduclient.NewClient(cfg)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Close() })

	return New(client, nil), sim
}

func TestDevice_Identity(t *testing.T) {
	d, _ := newTestDevice(t)
	ctx := context.Background()

	firmware, err := d.Firmware(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0.6", firmware)

	model, err := d.Model(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PB-400-IPV", model)

	tag, err := d.ServiceTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ST200012345", tag)

	hostname, err := d.Hostname(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pdu-sim", hostname)

	count, err := d.OutletCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	names, err := d.OutletNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Outlet 1", "Outlet 2", "Outlet 3", "Outlet 4"}, names)
}

func TestDevice_IdentityIsCached(t *testing.T) {
	d, _ := newTestDevice(t)
	ctx := context.Background()

	var mu sync.Mutex
	sent := 0
	d.Client().OnRawMessage(func(event pduclient.RawMessageEvent) {
		if event.Direction == pduclient.DirectionOutbound && event.Line == "?Model" {
			mu.Lock()
			sent++
			mu.Unlock()
		}
	})

	for i := 0; i < 5; i++ {
		model, err := d.Model(ctx)
		require.NoError(t, err)
		assert.Equal(t, "PB-400-IPV", model)
	}

	// Handlers run on their own goroutines; let the counter settle.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, sent, "identity query must hit the wire once")
}

func TestDevice_InvalidateInfo(t *testing.T) {
	d, _ := newTestDevice(t)
	ctx := context.Background()

	var mu sync.Mutex
	sent := 0
	d.Client().OnRawMessage(func(event pduclient.RawMessageEvent) {
		if event.Direction == pduclient.DirectionOutbound && event.Line == "?Firmware" {
			mu.Lock()
			sent++
			mu.Unlock()
		}
	})

	_, err := d.Firmware(ctx)
	require.NoError(t, err)
	require.NoError(t, d.InvalidateInfo(ctx))
	_, err = d.Firmware(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, sent, "invalidation must force a refetch")
}

func TestDevice_LiveState(t *testing.T) {
	d, sim := newTestDevice(t)
	ctx := context.Background()

	t.Run("outlet status", func(t *testing.T) {
		states, err := d.OutletStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, true, true, true}, states)
	})

	t.Run("power metrics", func(t *testing.T) {
		metrics, err := d.Power(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.52, metrics.Amps, 0.001)
		assert.InDelta(t, 61.1, metrics.Watts, 0.001)
		assert.InDelta(t, 117.5, metrics.Volts, 0.001)
	})

	t.Run("live state bypasses the cache", func(t *testing.T) {
		require.NoError(t, d.SetOutlet(ctx, 3, ActionOff))
		states, err := d.OutletStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, true, false, true}, states)
		assert.Equal(t, []bool{true, true, false, true}, sim.OutletStates())
	})
}

func TestDevice_Controls(t *testing.T) {
	d, sim := newTestDevice(t)
	ctx := context.Background()

	t.Run("set outlet", func(t *testing.T) {
		require.NoError(t, d.SetOutlet(ctx, 1, ActionOff))
		assert.Equal(t, []bool{false, true, true, true}, sim.OutletStates())

		require.NoError(t, d.SetOutlet(ctx, 1, ActionOn))
		assert.Equal(t, []bool{true, true, true, true}, sim.OutletStates())
	})

	t.Run("outlet number must be positive", func(t *testing.T) {
		assert.Error(t, d.SetOutlet(ctx, 0, ActionOn))
	})

	t.Run("out-of-range outlet is rejected by the device", func(t *testing.T) {
		err := d.SetOutlet(ctx, 99, ActionOn)
		var protoErr *pduclient.ProtocolError
		assert.ErrorAs(t, err, &protoErr)
	})

	t.Run("auto reboot", func(t *testing.T) {
		enabled, err := d.AutoRebootEnabled(ctx)
		require.NoError(t, err)
		assert.False(t, enabled)

		require.NoError(t, d.SetAutoReboot(ctx, true))

		enabled, err = d.AutoRebootEnabled(ctx)
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("reboot", func(t *testing.T) {
		assert.NoError(t, d.RebootDevice(ctx))
	})
}
