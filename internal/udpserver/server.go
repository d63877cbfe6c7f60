package udpserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/tinytelemetry/udp2redis/internal/model"
)

// ErrBind is returned when the inbound socket cannot be acquired.
var ErrBind = errors.New("udpserver: bind failed")

// Socket is a bound UDP socket owned by exactly one ingestion worker.
type Socket struct {
	conn *net.UDPConn
	addr string
}

// Bind acquires the inbound socket. Default host is "0.0.0.0".
// Port 0 picks an ephemeral port; use Addr to find it.
func Bind(host string, port int) (*Socket, error) {
	if host == "" {
		host = model.DefaultUDPHost
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid udp port %d", ErrBind, port)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrBind, addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", ErrBind, addr, err)
	}
	return &Socket{conn: conn, addr: addr}, nil
}

// Addr returns the active listen address.
func (s *Socket) Addr() string {
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr
}

// Close releases the socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

func (s *Socket) read(buf []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(buf)
}
