package adcp

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockProjector is a loopback ADCP endpoint. Commands are read by one
// goroutine and answered by another so the test can see whether the client
// ever has two requests on the wire at once.
type mockProjector struct {
	t  *testing.T
	ln net.Listener

	password    string
	requireAuth bool
	// silentLogin makes the projector swallow the username and never answer
	silentLogin bool
	replyDelay  time.Duration
	loginDelay  time.Duration
	// reply maps a command to its response; ok=false leaves it unanswered
	reply func(cmd string) (string, bool)

	accepts     atomic.Int32
	outstanding atomic.Int32
	overlaps    atomic.Int32

	mu       sync.Mutex
	logins   []string
	commands []string
	conns    []net.Conn
}

func newMockProjector(t *testing.T, opts ...func(*mockProjector)) *mockProjector {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := &mockProjector{
		t:  t,
		ln: ln,
		reply: func(cmd string) (string, bool) {
			return "ok", true
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.serve()
	t.Cleanup(m.close)
	return m
}

func (m *mockProjector) port() int {
	return m.ln.Addr().(*net.TCPAddr).Port
}

func (m *mockProjector) config() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           m.port(),
		Username:       "root",
		Password:       m.password,
		UseAuth:        m.requireAuth,
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
	}
}

func (m *mockProjector) close() {
	m.ln.Close()
	m.dropConnections()
}

// dropConnections closes every accepted socket from the projector side
func (m *mockProjector) dropConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.conns {
		conn.Close()
	}
	m.conns = nil
}

func (m *mockProjector) receivedLogins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logins...)
}

func (m *mockProjector) receivedCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func (m *mockProjector) serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return
		}
		m.accepts.Add(1)
		m.mu.Lock()
		m.conns = append(m.conns, conn)
		m.mu.Unlock()
		go m.handle(conn)
	}
}

func (m *mockProjector) handle(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	readLine := func() (string, bool) {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", false
		}
		return strings.TrimRight(line, "\r\n"), true
	}

	if m.requireAuth {
		user, ok := readLine()
		if !ok {
			return
		}
		m.recordLogin(user)
		if m.silentLogin {
			// Hold the socket open without answering.
			reader.ReadString('\n')
			return
		}

		conn.Write([]byte("Password: "))
		pass, ok := readLine()
		if !ok {
			return
		}
		m.recordLogin(pass)

		time.Sleep(m.loginDelay)
		if pass != m.password {
			conn.Write([]byte("Login incorrect\r\n"))
			return
		}
		conn.Write([]byte("Login successful\r\n"))
	}

	pending := make(chan string, 16)
	defer close(pending)

	go func() {
		for cmd := range pending {
			time.Sleep(m.replyDelay)
			resp, ok := m.reply(cmd)
			if !ok {
				continue
			}
			m.outstanding.Add(-1)
			conn.Write([]byte(resp + "\r\n"))
		}
	}()

	for {
		cmd, ok := readLine()
		if !ok {
			return
		}
		m.mu.Lock()
		m.commands = append(m.commands, cmd)
		m.mu.Unlock()

		if m.outstanding.Add(1) > 1 {
			m.overlaps.Add(1)
		}
		pending <- cmd
	}
}

func (m *mockProjector) recordLogin(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, line)
}

func withAuth(password string) func(*mockProjector) {
	return func(m *mockProjector) {
		m.requireAuth = true
		m.password = password
	}
}

func withReply(reply func(cmd string) (string, bool)) func(*mockProjector) {
	return func(m *mockProjector) { m.reply = reply }
}

func withReplyDelay(d time.Duration) func(*mockProjector) {
	return func(m *mockProjector) { m.replyDelay = d }
}

func withLoginDelay(d time.Duration) func(*mockProjector) {
	return func(m *mockProjector) { m.loginDelay = d }
}

func withSilentLogin() func(*mockProjector) {
	return func(m *mockProjector) {
		m.requireAuth = true
		m.silentLogin = true
	}
}
