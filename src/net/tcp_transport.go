package net

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var errTransportShutdown = errors.New("transport shutdown")

// TCPTransport implements the Transport interface over plain TCP. Outbound
// connections are pooled per target and replaced on error.
type TCPTransport struct {
	sync.RWMutex

	listener   net.Listener
	consumerCh chan RPC
	peers      map[string]struct{}
	pool       map[string]net.Conn
	timeout    time.Duration

	shutdown   bool
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewTCPTransport binds the listener immediately; call Listen to start the
// accept loop.
func NewTCPTransport(bindAddr string, timeout time.Duration, logger *logrus.Entry) (*TCPTransport, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	return &TCPTransport{
		listener:   listener,
		consumerCh: make(chan RPC, 64),
		peers:      map[string]struct{}{},
		pool:       map[string]net.Conn{},
		timeout:    timeout,
		shutdownCh: make(chan struct{}),
		logger:     logger,
	}, nil
}

// Listen implements the Transport interface.
func (t *TCPTransport) Listen() {
	go t.acceptLoop()
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				t.logger.WithError(err).Error("Failed to accept connection")
				continue
			}
		}

		t.logger.WithField("remote", conn.RemoteAddr().String()).Debug("Inbound connection")
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		command, err := readCommand(r)
		if err != nil {
			select {
			case <-t.shutdownCh:
			default:
				t.logger.WithError(err).Debug("Connection closed")
			}
			return
		}

		select {
		case t.consumerCh <- RPC{Command: command}:
		case <-t.shutdownCh:
			return
		}
	}
}

// Consumer implements the Transport interface.
func (t *TCPTransport) Consumer() <-chan RPC {
	return t.consumerCh
}

// LocalAddr implements the Transport interface.
func (t *TCPTransport) LocalAddr() string {
	return t.listener.Addr().String()
}

// AddPeer implements the Transport interface.
func (t *TCPTransport) AddPeer(addr string) {
	t.Lock()
	defer t.Unlock()
	t.peers[addr] = struct{}{}
}

// Peers implements the Transport interface.
func (t *TCPTransport) Peers() []string {
	t.RLock()
	defer t.RUnlock()

	res := make([]string, 0, len(t.peers))
	for addr := range t.peers {
		res = append(res, addr)
	}
	return res
}

func (t *TCPTransport) getConn(target string) (net.Conn, error) {
	t.Lock()
	defer t.Unlock()

	if t.shutdown {
		return nil, errTransportShutdown
	}

	if conn, ok := t.pool[target]; ok {
		return conn, nil
	}

	conn, err := net.DialTimeout("tcp", target, t.timeout)
	if err != nil {
		return nil, err
	}
	t.pool[target] = conn

	return conn, nil
}

func (t *TCPTransport) dropConn(target string) {
	t.Lock()
	defer t.Unlock()

	if conn, ok := t.pool[target]; ok {
		conn.Close()
		delete(t.pool, target)
	}
}

// Send implements the Transport interface.
func (t *TCPTransport) Send(target string, command interface{}) error {
	conn, err := t.getConn(target)
	if err != nil {
		return err
	}

	if t.timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}

	if err := writeCommand(conn, command); err != nil {
		t.dropConn(target)
		return err
	}

	return nil
}

// Broadcast implements the Transport interface. Unreachable peers are logged
// and skipped; delivery to the rest proceeds.
func (t *TCPTransport) Broadcast(command interface{}) error {
	for _, addr := range t.Peers() {
		if err := t.Send(addr, command); err != nil {
			t.logger.WithField("peer", addr).WithError(err).Debug("Broadcast send failed")
		}
	}
	return nil
}

// Close implements the Transport interface.
func (t *TCPTransport) Close() error {
	t.Lock()
	defer t.Unlock()

	if t.shutdown {
		return nil
	}
	t.shutdown = true
	close(t.shutdownCh)

	for target, conn := range t.pool {
		conn.Close()
		delete(t.pool, target)
	}

	return t.listener.Close()
}
