package udp

import (
	"fmt"
	"io"
	"net"

	coapNet "github.com/flukkyy/libcoap/net"
	"github.com/flukkyy/libcoap/udp/client"
)

// Conn is a client bound to its own UDP socket.
type Conn struct {
	*client.Client
	conn   *coapNet.UDPConn
	remote *net.UDPAddr
}

// Dial resolves target (host:port) and creates a client on a socket of the
// same address family. Bodies of completed responses are written to sink.
func Dial(target string, sink io.Writer, opts ...client.Option) (*Conn, error) {
	cfg := client.DefaultConfig
	for _, o := range opts {
		o.UDPClientApply(&cfg)
	}
	raddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %v: %w", target, err)
	}
	network := "udp4"
	if coapNet.IsIPv6(raddr.IP) {
		network = "udp6"
	}
	var connOpts []coapNet.UDPOption
	if cfg.Errors != nil {
		connOpts = append(connOpts, coapNet.WithErrors(cfg.Errors))
	}
	laddr := cfg.LocalAddr
	if laddr == "" {
		laddr = ":0"
	}
	conn, err := coapNet.NewListenUDP(network, laddr, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %v %v: %w", network, laddr, err)
	}
	return &Conn{
		Client: client.New(conn, raddr, sink, opts...),
		conn:   conn,
		remote: raddr,
	}, nil
}

// RemoteAddr returns the resolved address requests are sent to.
func (c *Conn) RemoteAddr() *net.UDPAddr {
	return c.remote
}

// UDPConn returns the socket of the client.
func (c *Conn) UDPConn() *coapNet.UDPConn {
	return c.conn
}

// Close closes the socket. A running exchange fails.
func (c *Conn) Close() error {
	return c.conn.Close()
}
