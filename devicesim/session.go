package devicesim

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/go-pdu/logger"
	"github.com/cyberinferno/go-pdu/protocol"
)

// session handles one accepted connection: the server-initiated login
// handshake followed by the command loop. Writes may come from the session's
// own goroutine or from a broadcast, so they are serialized with a mutex.
type session struct {
	id     uint32
	conn   net.Conn
	server *Server
	log    logger.Logger

	writeMu  sync.Mutex
	loggedIn atomic.Bool
	closed   atomic.Bool
}

func newSession(id uint32, conn net.Conn, server *Server) *session {
	return &session{
		id:     id,
		conn:   conn,
		server: server,
		log: server.log.With(
			logger.Field{Key: "session", Value: id},
			logger.Field{Key: "remote", Value: conn.RemoteAddr().String()},
		),
	}
}

// LoggedIn reports whether the session passed the login handshake.
func (s *session) LoggedIn() bool {
	return s.loggedIn.Load()
}

// Handle runs the session's main loop: login handshake, then commands until
// the peer disconnects or the session is closed.
func (s *session) Handle() {
	defer func() {
		_ = s.Close()
		s.server.removeSession(s.id)
	}()

	reader := bufio.NewReader(s.conn)

	if !s.login(reader) {
		return
	}

	s.log.Debug("session logged in")

	for {
		line, err := readLine(reader)
		if err != nil {
			return
		}
		if line == "" {
			continue
		}

		s.log.Debug("command received", logger.Field{Key: "line", Value: line})
		for _, reply := range s.server.handleCommand(line) {
			if err := s.SendLine(reply); err != nil {
				return
			}
		}
	}
}

// login drives the server side of the handshake. Returns false when the
// credentials were rejected or the connection failed; the device closes the
// connection after a rejection.
func (s *session) login(reader *bufio.Reader) bool {
	if err := s.SendLine(protocol.LoginBanner); err != nil {
		return false
	}
	if err := s.SendLine(protocol.UsernamePrompt); err != nil {
		return false
	}

	username, err := readLine(reader)
	if err != nil {
		return false
	}

	if err := s.SendLine(protocol.PasswordPrompt); err != nil {
		return false
	}

	password, err := readLine(reader)
	if err != nil {
		return false
	}

	if username != s.server.config.Username || password != s.server.config.Password {
		s.log.Warn("login rejected", logger.Field{Key: "username", Value: username})
		_ = s.SendLine(protocol.LoginFailure)
		return false
	}

	if err := s.SendLine(protocol.LoginSuccess); err != nil {
		return false
	}

	s.loggedIn.Store(true)
	return true
}

// SendLine writes one newline-terminated protocol line. Safe for concurrent
// use; commands and broadcasts may interleave but lines stay whole.
func (s *session) SendLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

// Close closes the session's connection. Safe to call multiple times.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.conn.Close()
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
