package ice

import (
	"fmt"
	"net"
)

// Protocol is the transport protocol a candidate or socket carries.
type Protocol int

const (
	UDP Protocol = iota
	TCP
)

func (p Protocol) String() string {
	if p == TCP {
		return "tcp"
	}
	return "udp"
}

// Family distinguishes IPv4 from IPv6 addresses, mirroring the teacher's
// transport_test.go expectations that never made it into transport.go.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// TransportAddress is a transport-layer endpoint: an IP, a port, and the
// protocol it is reached over. It replaces the teacher's string-based
// TransportAddress with a structured one, resolving the inconsistency
// between transport.go (plain strings) and transport_test.go (an
// IPAddress/family-aware shape) in favor of the latter.
type TransportAddress struct {
	IP       net.IP
	Port     int
	Protocol Protocol
}

func NewTransportAddress(ip net.IP, port int, proto Protocol) TransportAddress {
	return TransportAddress{IP: ip, Port: port, Protocol: proto}
}

func transportAddressFromNetAddr(a net.Addr, proto Protocol) (TransportAddress, error) {
	switch v := a.(type) {
	case *net.UDPAddr:
		return TransportAddress{IP: v.IP, Port: v.Port, Protocol: UDP}, nil
	case *net.TCPAddr:
		return TransportAddress{IP: v.IP, Port: v.Port, Protocol: TCP}, nil
	default:
		host, port, err := net.SplitHostPort(a.String())
		if err != nil {
			return TransportAddress{}, fmt.Errorf("ice: unrecognized address %v: %w", a, err)
		}
		ip := net.ParseIP(host)
		var p int
		fmt.Sscanf(port, "%d", &p)
		return TransportAddress{IP: ip, Port: p, Protocol: proto}, nil
	}
}

// Family reports whether the address is IPv4 or IPv6. An unresolved or
// zero-value address is reported as IPv4, matching net.IP's default zero
// behavior.
func (t TransportAddress) Family() Family {
	if t.IP != nil && t.IP.To4() == nil {
		return IPv6
	}
	return IPv4
}

func (t TransportAddress) String() string {
	return net.JoinHostPort(t.IP.String(), fmt.Sprintf("%d", t.Port))
}

// Equal compares IP, port and protocol exactly.
func (t TransportAddress) Equal(o TransportAddress) bool {
	return t.IP.Equal(o.IP) && t.Port == o.Port && t.Protocol == o.Protocol
}

// EqualAddr compares IP and protocol only, ignoring port — used when
// matching an inbound datagram's source against a base that may have a
// different ephemeral port than the one a remote candidate advertised
// (symmetric NAT discovery, peer-reflexive promotion).
func (t TransportAddress) EqualAddr(o TransportAddress) bool {
	return t.IP.Equal(o.IP) && t.Protocol == o.Protocol
}

func (t TransportAddress) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: t.IP, Port: t.Port}
}

func (t TransportAddress) tcpAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: t.IP, Port: t.Port}
}

func (t TransportAddress) NetAddr() net.Addr {
	if t.Protocol == TCP {
		return t.tcpAddr()
	}
	return t.udpAddr()
}
