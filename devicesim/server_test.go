package devicesim

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simConn is a raw protocol connection to a running simulator, for driving
// the device side without the client package.
type simConn struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func startServer(t *testing.T) *Server {
	t.Helper()

	s := New(DefaultConfig("127.0.0.1:0"))
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	return s
}

func dialSim(t *testing.T, s *Server) *simConn {
	t.Helper()

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	return &simConn{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *simConn) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *simConn) recv() string {
	c.t.Helper()
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimSpace(line)
}

// login walks the handshake with the given credentials and returns the
// result line.
func (c *simConn) login(username, password string) string {
	c.t.Helper()

	require.Equal(c.t, "Please Login to Continue", c.recv())
	require.Equal(c.t, "Username:", c.recv())
	c.send(username)
	require.Equal(c.t, "Password:", c.recv())
	c.send(password)

	return c.recv()
}

func TestServer_LoginSuccess(t *testing.T) {
	s := startServer(t)
	c := dialSim(t, s)

	assert.Equal(t, "Successfully Logged In!", c.login("admin", "admin"))
}

func TestServer_LoginFailureClosesConnection(t *testing.T) {
	s := startServer(t)
	c := dialSim(t, s)

	assert.Equal(t, "Invalid Login", c.login("admin", "nope"))

	// The device hangs up after a rejection.
	_, err := c.reader.ReadString('\n')
	assert.Error(t, err)
}

func TestServer_Queries(t *testing.T) {
	s := startServer(t)
	c := dialSim(t, s)
	require.Equal(t, "Successfully Logged In!", c.login("admin", "admin"))

	tests := []struct {
		query string
		want  string
	}{
		{"?Firmware", "?Firmware=1.3.0.6"},
		{"?Version", "?Version=1.3.0.6"},
		{"?Model", "?Model=PB-400-IPV"},
		{"?ServiceTag", "?ServiceTag=ST200012345"},
		{"?Hostname", "?Hostname=pdu-sim"},
		{"?OutletCount", "?OutletCount=4"},
		{"?OutletName", "?OutletName=Outlet 1,Outlet 2,Outlet 3,Outlet 4"},
		{"?OutletName=3", "?OutletName=Outlet 3"},
		{"?OutletStatus", "?OutletStatus=1,1,1,1"},
		{"?PowerStatus", "?PowerStatus=0.52,61.1,117.5"},
		{"?AutoReboot", "?AutoReboot=0"},
		{"?NoSuchThing", "#Error"},
		{"?OutletName=99", "#Error"},
	}

	for _, tc := range tests {
		c.send(tc.query)
		assert.Equal(t, tc.want, c.recv(), "query %s", tc.query)
	}
}

func TestServer_OutletControl(t *testing.T) {
	s := startServer(t)
	c := dialSim(t, s)
	require.Equal(t, "Successfully Logged In!", c.login("admin", "admin"))

	t.Run("off", func(t *testing.T) {
		c.send("!OutletSet=1,OFF")
		assert.Equal(t, "~OutletStatus=0,1,1,1", c.recv())
		assert.Equal(t, "OK", c.recv())
		assert.Equal(t, []bool{false, true, true, true}, s.OutletStates())
	})

	t.Run("toggle", func(t *testing.T) {
		c.send("!OutletSet=1,TOGGLE")
		assert.Equal(t, "~OutletStatus=1,1,1,1", c.recv())
		assert.Equal(t, "OK", c.recv())
	})

	t.Run("reset lands on", func(t *testing.T) {
		c.send("!OutletSet=2,RESET")
		assert.Equal(t, "~OutletStatus=1,1,1,1", c.recv())
		assert.Equal(t, "OK", c.recv())
	})

	t.Run("bad index", func(t *testing.T) {
		c.send("!OutletSet=9,ON")
		assert.Equal(t, "#Error", c.recv())
	})

	t.Run("bad action", func(t *testing.T) {
		c.send("!OutletSet=1,EXPLODE")
		assert.Equal(t, "#Error", c.recv())
	})
}

func TestServer_AutoRebootControl(t *testing.T) {
	s := startServer(t)
	c := dialSim(t, s)
	require.Equal(t, "Successfully Logged In!", c.login("admin", "admin"))

	c.send("!AutoReboot=1")
	assert.Equal(t, "OK", c.recv())
	c.send("?AutoReboot")
	assert.Equal(t, "?AutoReboot=1", c.recv())

	c.send("!AutoReboot=2")
	assert.Equal(t, "#Error", c.recv())
}

func TestServer_BroadcastToAllSessions(t *testing.T) {
	s := startServer(t)

	first := dialSim(t, s)
	require.Equal(t, "Successfully Logged In!", first.login("admin", "admin"))
	second := dialSim(t, s)
	require.Equal(t, "Successfully Logged In!", second.login("admin", "admin"))

	first.send("!OutletSet=4,OFF")
	assert.Equal(t, "~OutletStatus=1,1,1,0", first.recv())
	assert.Equal(t, "OK", first.recv())

	// The other session sees the outlet change too.
	assert.Equal(t, "~OutletStatus=1,1,1,0", second.recv())
}

func TestServer_StartTwice(t *testing.T) {
	s := startServer(t)
	assert.Error(t, s.Start())
}
