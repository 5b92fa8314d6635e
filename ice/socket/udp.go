package socket

import (
	"context"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UDPSocket wraps a bound net.UDPConn. Binding to an arbitrary port (rather
// than a configured range) is the default; ListenUDPRange below covers
// configured port ranges for environments with restrictive firewalls.
type UDPSocket struct {
	conn *net.UDPConn
	pc4  *ipv4.PacketConn
	pc6  *ipv6.PacketConn
}

func NewUDPSocket(laddr *net.UDPAddr) (*UDPSocket, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return wrapUDP(conn), nil
}

// ListenUDPRange binds the first available port in [lo, hi], the idiomatic
// way to satisfy deployments whose firewall only opens a narrow UDP range
// (spec.md §4.D's port-range gathering option).
func ListenUDPRange(ip net.IP, lo, hi int) (*UDPSocket, error) {
	if lo == 0 && hi == 0 {
		return NewUDPSocket(&net.UDPAddr{IP: ip, Port: 0})
	}
	var lastErr error
	for port := lo; port <= hi; port++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
		if err == nil {
			return wrapUDP(conn), nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func wrapUDP(conn *net.UDPConn) *UDPSocket {
	s := &UDPSocket{conn: conn}
	if conn.LocalAddr().(*net.UDPAddr).IP.To4() != nil {
		s.pc4 = ipv4.NewPacketConn(conn)
	} else {
		s.pc6 = ipv6.NewPacketConn(conn)
	}
	return s
}

func (s *UDPSocket) Kind() Kind          { return KindUDP }
func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }
func (s *UDPSocket) Close() error        { return s.conn.Close() }

func (s *UDPSocket) WriteTo(b []byte, addr net.Addr) (int, error) {
	return s.conn.WriteTo(b, addr)
}

func (s *UDPSocket) ReadFrom(ctx context.Context) ([]byte, net.Addr, error) {
	s.conn.SetReadDeadline(deadlineFromContext(ctx))
	buf := make([]byte, maxDatagramSize)
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, ErrReadTimeout
		}
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// SetTOS marks outgoing datagrams with a Diffserv/ToS codepoint
// (Stream.tos in spec.md §3), using golang.org/x/net's ipv4/ipv6 socket
// option wrappers since the standard library exposes no portable way to
// set IP_TOS/IPV6_TCLASS.
func (s *UDPSocket) SetTOS(tos int) error {
	if s.pc4 != nil {
		return s.pc4.SetTOS(tos)
	}
	return s.pc6.SetTrafficClass(tos)
}

const maxDatagramSize = 1500
