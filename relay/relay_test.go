package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-pdu/devicesim"
	"github.com/cyberinferno/go-pdu/pduclient"
)

func TestRelay_ForwardsNotifications(t *testing.T) {
	sim := devicesim.New(devicesim.DefaultConfig("127.0.0.1:0"))
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)

	cfg := pduclient.DefaultConfig(sim.Addr())
	cfg.Username = "admin"
	cfg.Password = "admin"
	cfg.AutoReconnect = false

	client := pduclient.NewClient(cfg)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "pdu:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	r := New(client, rdb, Config{})
	r.Start()
	t.Cleanup(r.Stop)

	// Flipping an outlet makes the simulator broadcast an OutletStatus
	// notification, which the relay republishes to Redis.
	require.NoError(t, client.SendControl("!OutletSet=2,OFF"))

	select {
	case msg := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, sim.Addr(), event.Device)
		assert.Equal(t, "OutletStatus", event.Name)
		assert.Equal(t, []string{"1", "0", "1", "1"}, event.Values)
		assert.Equal(t, "~OutletStatus=1,0,1,1", event.Raw)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("notification never reached redis")
	}
}

func TestRelay_StopDetaches(t *testing.T) {
	sim := devicesim.New(devicesim.DefaultConfig("127.0.0.1:0"))
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)

	cfg := pduclient.DefaultConfig(sim.Addr())
	cfg.Username = "admin"
	cfg.Password = "admin"
	cfg.AutoReconnect = false

	client := pduclient.NewClient(cfg)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "pdu:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	r := New(client, rdb, Config{})
	r.Start()
	r.Stop()

	require.NoError(t, client.SendControl("!OutletSet=1,OFF"))

	select {
	case msg := <-sub.Channel():
		t.Fatalf("unexpected message after stop: %s", msg.Payload)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRelay_CustomChannel(t *testing.T) {
	sim := devicesim.New(devicesim.DefaultConfig("127.0.0.1:0"))
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)

	cfg := pduclient.DefaultConfig(sim.Addr())
	cfg.Username = "admin"
	cfg.Password = "admin"
	cfg.AutoReconnect = false

	client := pduclient.NewClient(cfg)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "lab:pdu")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	r := New(client, rdb, Config{Channel: "lab:pdu"})
	r.Start()
	t.Cleanup(r.Stop)

	require.NoError(t, client.SendControl("!OutletSet=4,TOGGLE"))

	select {
	case msg := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "OutletStatus", event.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("notification never reached redis")
	}
}
