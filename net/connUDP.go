package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UDPConn is a udp connection provides Read/Write with context.
//
// Multiple goroutines may invoke methods on a UDPConn simultaneously.
type UDPConn struct {
	packetConn packetConn
	network    string
	connection *net.UDPConn
	errors     func(err error)
	closed     atomic.Bool
}

type packetConn interface {
	WriteTo(b []byte, dst net.Addr) (n int, err error)
	SetMulticastLoopback(on bool) error
	JoinGroup(ifi *net.Interface, group net.Addr) error
	LeaveGroup(ifi *net.Interface, group net.Addr) error
	IsIPv6() bool
}

type packetConnIPv4 struct {
	packetConn *ipv4.PacketConn
}

func newPacketConnIPv4(p *ipv4.PacketConn) *packetConnIPv4 {
	return &packetConnIPv4{packetConn: p}
}

func (p *packetConnIPv4) IsIPv6() bool {
	return false
}

func (p *packetConnIPv4) WriteTo(b []byte, dst net.Addr) (n int, err error) {
	return p.packetConn.WriteTo(b, nil, dst)
}

func (p *packetConnIPv4) SetMulticastLoopback(on bool) error {
	return p.packetConn.SetMulticastLoopback(on)
}

func (p *packetConnIPv4) JoinGroup(ifi *net.Interface, group net.Addr) error {
	return p.packetConn.JoinGroup(ifi, group)
}

func (p *packetConnIPv4) LeaveGroup(ifi *net.Interface, group net.Addr) error {
	return p.packetConn.LeaveGroup(ifi, group)
}

type packetConnIPv6 struct {
	packetConn *ipv6.PacketConn
}

func newPacketConnIPv6(p *ipv6.PacketConn) *packetConnIPv6 {
	return &packetConnIPv6{packetConn: p}
}

func (p *packetConnIPv6) IsIPv6() bool {
	return true
}

func (p *packetConnIPv6) WriteTo(b []byte, dst net.Addr) (n int, err error) {
	return p.packetConn.WriteTo(b, nil, dst)
}

func (p *packetConnIPv6) SetMulticastLoopback(on bool) error {
	return p.packetConn.SetMulticastLoopback(on)
}

func (p *packetConnIPv6) JoinGroup(ifi *net.Interface, group net.Addr) error {
	return p.packetConn.JoinGroup(ifi, group)
}

func (p *packetConnIPv6) LeaveGroup(ifi *net.Interface, group net.Addr) error {
	return p.packetConn.LeaveGroup(ifi, group)
}

func IsIPv6(addr net.IP) bool {
	if ip := addr.To16(); ip != nil && ip.To4() == nil {
		return true
	}
	return false
}

var DefaultUDPConnConfig = UDPConnConfig{
	Errors: func(error) {
		// don't log any error from fails for multicast group join
	},
}

type UDPConnConfig struct {
	Errors func(err error)
}

type UDPOption interface {
	ApplyUDP(cfg *UDPConnConfig)
}

type ErrorsOpt struct {
	errors func(err error)
}

func (o ErrorsOpt) ApplyUDP(cfg *UDPConnConfig) {
	cfg.Errors = o.errors
}

// WithErrors sets the callback of errors which are not returned to the caller.
func WithErrors(v func(err error)) ErrorsOpt {
	return ErrorsOpt{errors: v}
}

// NewListenUDP listens on addr, for example ":0" for a client socket.
func NewListenUDP(network, addr string, opts ...UDPOption) (*UDPConn, error) {
	listenAddress, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP(network, listenAddress)
	if err != nil {
		return nil, err
	}
	return NewUDPConn(network, conn, opts...), nil
}

func newPacketConn(c *net.UDPConn) packetConn {
	if addr, ok := c.LocalAddr().(*net.UDPAddr); ok && IsIPv6(addr.IP) {
		return newPacketConnIPv6(ipv6.NewPacketConn(c))
	}
	if addr, ok := c.LocalAddr().(*net.UDPAddr); ok && addr.IP == nil {
		// wildcard listener binds both families
		return newPacketConnIPv6(ipv6.NewPacketConn(c))
	}
	return newPacketConnIPv4(ipv4.NewPacketConn(c))
}

// NewUDPConn creates connection over net.UDPConn.
func NewUDPConn(network string, c *net.UDPConn, opts ...UDPOption) *UDPConn {
	cfg := DefaultUDPConnConfig
	for _, o := range opts {
		o.ApplyUDP(&cfg)
	}
	return &UDPConn{
		network:    network,
		connection: c,
		packetConn: newPacketConn(c),
		errors:     cfg.Errors,
	}
}

// LocalAddr returns the local network address. The Addr returned is shared by all invocations of LocalAddr, so do not modify it.
func (c *UDPConn) LocalAddr() net.Addr {
	return c.connection.LocalAddr()
}

// Network name of the network (for example, udp4, udp6, udp)
func (c *UDPConn) Network() string {
	return c.network
}

// Close closes the connection.
func (c *UDPConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.connection.Close()
}

// packetConnFor returns the packet connection matching the address family
// of ip. A dual-stack socket needs an IPv4 packet connection to reach IPv4
// destinations and groups.
func (c *UDPConn) packetConnFor(ip net.IP) packetConn {
	if !IsIPv6(ip) && c.packetConn.IsIPv6() {
		return newPacketConnIPv4(ipv4.NewPacketConn(c.connection))
	}
	return c.packetConn
}

// WriteWithContext writes data with context.
func (c *UDPConn) WriteWithContext(ctx context.Context, raddr *net.UDPAddr, buffer []byte) error {
	if raddr == nil {
		return errors.New("cannot write with context: invalid raddr")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if c.closed.Load() {
		return ErrConnectionIsClosed
	}
	n, err := c.packetConnFor(raddr.IP).WriteTo(buffer, raddr)
	if err != nil {
		return fmt.Errorf("cannot write to udp connection: %w", err)
	}
	if n != len(buffer) {
		return ErrWriteInterrupted
	}
	return nil
}

// ReadWithContext reads packet with context. A blocked read returns when
// ctx is done.
func (c *UDPConn) ReadWithContext(ctx context.Context, buffer []byte) (int, *net.UDPAddr, error) {
	select {
	case <-ctx.Done():
		return -1, nil, ctx.Err()
	default:
	}
	if c.closed.Load() {
		return -1, nil, ErrConnectionIsClosed
	}
	if err := c.connection.SetReadDeadline(time.Time{}); err != nil {
		return -1, nil, fmt.Errorf("cannot reset read deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.connection.SetReadDeadline(time.Now())
	})
	defer stop()
	n, srcAddr, err := c.connection.ReadFromUDP(buffer)
	if err != nil {
		if ctx.Err() != nil {
			return -1, nil, ctx.Err()
		}
		if c.closed.Load() {
			return -1, nil, ErrConnectionIsClosed
		}
		return -1, nil, fmt.Errorf("cannot read from udp connection: %w", err)
	}
	return n, srcAddr, nil
}

// SetMulticastLoopback sets whether transmitted multicast packets
// should be copied and send back to the originator.
func (c *UDPConn) SetMulticastLoopback(on bool) error {
	return c.packetConn.SetMulticastLoopback(on)
}

// JoinGroup joins the group address group on the interface ifi.
// JoinGroup uses the system assigned multicast interface when ifi is
// nil, although this is not recommended because the assignment
// depends on platforms and sometimes it might require routing
// configuration.
func (c *UDPConn) JoinGroup(ifi *net.Interface, group *net.UDPAddr) error {
	if group == nil || !group.IP.IsMulticast() {
		return fmt.Errorf("%w: %v", ErrInvalidGroup, group)
	}
	return c.packetConnFor(group.IP).JoinGroup(ifi, group)
}

// LeaveGroup leaves the group address group on the interface ifi.
func (c *UDPConn) LeaveGroup(ifi *net.Interface, group *net.UDPAddr) error {
	if group == nil {
		return fmt.Errorf("%w: %v", ErrInvalidGroup, group)
	}
	return c.packetConnFor(group.IP).LeaveGroup(ifi, group)
}

// JoinGroupAllInterfaces joins the group on every multicast capable
// interface. It fails only when no interface joined.
func (c *UDPConn) JoinGroupAllInterfaces(group *net.UDPAddr) error {
	if group == nil || !group.IP.IsMulticast() {
		return fmt.Errorf("%w: %v", ErrInvalidGroup, group)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("cannot get interfaces: %w", err)
	}
	joined := 0
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if errJ := c.JoinGroup(&iface, group); errJ != nil {
			c.errors(fmt.Errorf("cannot join group %v on %v: %w", group, iface.Name, errJ))
			continue
		}
		joined++
	}
	if joined == 0 {
		return c.JoinGroup(nil, group)
	}
	return nil
}

// NetConn returns the underlying connection that is wrapped by c. The Conn returned is shared by all invocations of NetConn, so do not modify it.
func (c *UDPConn) NetConn() net.Conn {
	return c.connection
}
