package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportAddressEqual(t *testing.T) {
	a := NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)
	b := NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)
	c := NewTransportAddress(net.ParseIP("192.0.2.1"), 1001, UDP)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestTransportAddressEqualAddrIgnoresPort(t *testing.T) {
	a := NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)
	b := NewTransportAddress(net.ParseIP("192.0.2.1"), 2000, UDP)
	assert.True(t, a.EqualAddr(b))
}

func TestTransportAddressFamily(t *testing.T) {
	v4 := NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)
	v6 := NewTransportAddress(net.ParseIP("2001:db8::1"), 1000, UDP)
	assert.Equal(t, IPv4, v4.Family())
	assert.Equal(t, IPv6, v6.Family())
}

func TestTransportAddressFromNetAddr(t *testing.T) {
	udp := &net.UDPAddr{IP: net.ParseIP("192.0.2.5"), Port: 4321}
	addr, err := transportAddressFromNetAddr(udp, UDP)
	assert.NoError(t, err)
	assert.Equal(t, UDP, addr.Protocol)
	assert.Equal(t, 4321, addr.Port)

	tcp := &net.TCPAddr{IP: net.ParseIP("192.0.2.6"), Port: 1234}
	addr2, err := transportAddressFromNetAddr(tcp, TCP)
	assert.NoError(t, err)
	assert.Equal(t, TCP, addr2.Protocol)
}

func TestTransportAddressNetAddr(t *testing.T) {
	udp := NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)
	_, ok := udp.NetAddr().(*net.UDPAddr)
	assert.True(t, ok)

	tcp := NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, TCP)
	_, ok = tcp.NetAddr().(*net.TCPAddr)
	assert.True(t, ok)
}
