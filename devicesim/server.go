// Package devicesim implements an in-process simulated power-distribution
// device: a TCP server speaking the device side of the line protocol, with
// the login handshake, the query/control command catalog against in-memory
// outlet state, and unsolicited notifications broadcast to every logged-in
// session. It backs the client integration tests and the demo CLI's sim
// subcommand.
package devicesim

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/go-pdu/idgenerator"
	"github.com/cyberinferno/go-pdu/logger"
	"github.com/cyberinferno/go-pdu/protocol"
	"github.com/cyberinferno/go-pdu/safemap"
)

// Config holds the identity and credentials of the simulated device.
type Config struct {
	// Addr is the "host:port" to listen on; use "127.0.0.1:0" in tests.
	Addr string
	// Username and Password are the accepted credentials.
	Username string
	Password string
	// Device identity reported by the catalog queries.
	Model      string
	Firmware   string
	ServiceTag string
	Hostname   string
	// OutletNames defines the outlet count and the names reported per outlet.
	OutletNames []string
	// Logger receives the server's structured log output. Nil means silent.
	Logger logger.Logger
}

// DefaultConfig returns a simulated 4-outlet device listening on addr with
// credentials "admin"/"admin".
func DefaultConfig(addr string) Config {
	return Config{
		Addr:        addr,
		Username:    "admin",
		Password:    "admin",
		Model:       "PB-400-IPV",
		Firmware:    "1.3.0.6",
		ServiceTag:  "ST200012345",
		Hostname:    "pdu-sim",
		OutletNames: []string{"Outlet 1", "Outlet 2", "Outlet 3", "Outlet 4"},
	}
}

// Server is the simulated device. Start binds the listener and begins
// accepting sessions; Stop closes the listener and every session.
type Server struct {
	config Config
	log    logger.Logger

	listener net.Listener
	running  atomic.Bool
	sessions *safemap.SafeMap[uint32, *session]
	ids      *idgenerator.IdGenerator
	wg       sync.WaitGroup

	mu         sync.Mutex
	outlets    []bool
	autoReboot bool

	// Test hooks.
	replyDelay atomic.Int64 // nanoseconds added before every reply
	silent     atomic.Bool  // swallow commands without replying
}

// New creates a Server from config. Outlets start powered on.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	outlets := make([]bool, len(config.OutletNames))
	for i := range outlets {
		outlets[i] = true
	}

	return &Server{
		config:   config,
		log:      log,
		sessions: safemap.New[uint32, *session](),
		ids:      idgenerator.New(0),
		outlets:  outlets,
	}
}

// Start binds the listener and begins the accept loop in a goroutine.
//
// Returns:
//   - An error if the server is already running or if listening fails
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("simulator already running")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("simulator failed to listen on %s: %w", s.config.Addr, err)
	}

	s.listener = ln
	s.running.Store(true)
	s.log.Info("simulator started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the listener's actual address, useful when Addr was ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}

	return s.listener.Addr().String()
}

// Stop closes the listener and every active session. Safe to call when the
// server is not running.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.sessions.Range(func(id uint32, sess *session) bool {
		_ = sess.Close()
		return true
	})

	s.wg.Wait()
	s.log.Info("simulator stopped")
}

// DropAllSessions abruptly closes every connected session while keeping the
// listener alive. Used by tests to provoke the client's reconnect path.
func (s *Server) DropAllSessions() {
	s.sessions.Range(func(id uint32, sess *session) bool {
		_ = sess.Close()
		return true
	})
}

// SetReplyDelay makes every command reply wait d before being written.
// Used by tests to provoke command timeouts.
func (s *Server) SetReplyDelay(d time.Duration) {
	s.replyDelay.Store(int64(d))
}

// SetSilent makes the device swallow commands without replying. The login
// handshake is unaffected.
func (s *Server) SetSilent(silent bool) {
	s.silent.Store(silent)
}

// OutletStates returns a copy of the current outlet power flags.
func (s *Server) OutletStates() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.outlets...)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.log.Error("simulator accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		id := s.ids.Next()
		sess := newSession(id, conn, s)
		s.sessions.Store(id, sess)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.Handle()
		}()
	}
}

func (s *Server) removeSession(id uint32) {
	s.sessions.Delete(id)
}

// broadcast sends line to every logged-in session.
func (s *Server) broadcast(line string) {
	s.sessions.Range(func(id uint32, sess *session) bool {
		if sess.LoggedIn() {
			_ = sess.SendLine(line)
		}
		return true
	})
}

// handleCommand executes one post-login command line and returns the reply
// lines to write, which may be none when the device is in silent mode.
func (s *Server) handleCommand(line string) []string {
	if s.silent.Load() {
		return nil
	}

	if d := time.Duration(s.replyDelay.Load()); d > 0 {
		time.Sleep(d)
	}

	if line == "" {
		return nil
	}

	switch line[0] {
	case protocol.QuerySigil:
		return s.handleQuery(line[1:])
	case protocol.ControlSigil:
		return s.handleControl(line[1:])
	}

	return []string{protocol.ControlError}
}

func (s *Server) handleQuery(payload string) []string {
	name, arg := splitArg(payload)

	reply := func(value string) []string {
		return []string{fmt.Sprintf("%c%s=%s", protocol.QuerySigil, name, value)}
	}

	switch name {
	case "Firmware", "Version":
		return reply(s.config.Firmware)
	case "Model":
		return reply(s.config.Model)
	case "ServiceTag":
		return reply(s.config.ServiceTag)
	case "Hostname":
		return reply(s.config.Hostname)
	case "OutletCount":
		return reply(fmt.Sprintf("%d", len(s.config.OutletNames)))
	case "OutletName":
		if arg == "" {
			return reply(strings.Join(s.config.OutletNames, ","))
		}

		idx, err := outletIndex(arg, len(s.config.OutletNames))
		if err != nil {
			return []string{protocol.ControlError}
		}
		return reply(s.config.OutletNames[idx])
	case "OutletStatus":
		return reply(s.outletFlags())
	case "PowerStatus":
		return reply("0.52,61.1,117.5")
	case "AutoReboot":
		s.mu.Lock()
		enabled := s.autoReboot
		s.mu.Unlock()
		return reply(flag(enabled))
	}

	return []string{protocol.ControlError}
}

func (s *Server) handleControl(payload string) []string {
	name, arg := splitArg(payload)

	switch name {
	case "OutletSet":
		if err := s.setOutlet(arg); err != nil {
			return []string{protocol.ControlError}
		}

		s.broadcast(fmt.Sprintf("%cOutletStatus=%s", protocol.NotificationSigil, s.outletFlags()))
		return []string{protocol.ControlOK}

	case "AutoReboot":
		switch arg {
		case "0", "1":
			s.mu.Lock()
			s.autoReboot = arg == "1"
			s.mu.Unlock()
			return []string{protocol.ControlOK}
		}
		return []string{protocol.ControlError}

	case "Reboot":
		return []string{protocol.ControlOK}
	}

	return []string{protocol.ControlError}
}

// setOutlet applies an "index,ACTION" control argument to the outlet state.
func (s *Server) setOutlet(arg string) error {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		return fmt.Errorf("malformed outlet argument %q", arg)
	}

	idx, err := outletIndex(parts[0], len(s.config.OutletNames))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(parts[1]) {
	case "ON":
		s.outlets[idx] = true
	case "OFF":
		s.outlets[idx] = false
	case "TOGGLE":
		s.outlets[idx] = !s.outlets[idx]
	case "RESET":
		// Power cycle; the simulator lands back in the on state.
		s.outlets[idx] = true
	default:
		return fmt.Errorf("unknown outlet action %q", parts[1])
	}

	return nil
}

func (s *Server) outletFlags() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := make([]string, len(s.outlets))
	for i, on := range s.outlets {
		flags[i] = flag(on)
	}

	return strings.Join(flags, ",")
}

// splitArg divides "Name=arg" into its parts; a payload without '=' yields
// an empty arg.
func splitArg(payload string) (string, string) {
	if i := strings.IndexByte(payload, '='); i >= 0 {
		return payload[:i], payload[i+1:]
	}

	return payload, ""
}

// outletIndex parses a 1-based outlet number and bounds-checks it.
func outletIndex(arg string, count int) (int, error) {
	var n int
	if _, err := fmt.Sscanf(arg, "%d", &n); err != nil {
		return 0, fmt.Errorf("outlet %q is not a number", arg)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("outlet %d out of range 1..%d", n, count)
	}

	return n - 1, nil
}

func flag(on bool) string {
	if on {
		return "1"
	}

	return "0"
}
