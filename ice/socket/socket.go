// Package socket implements the transport-agnostic socket abstraction ICE
// candidates bind to: plain UDP, active/passive/established TCP with RFC
// 4571 framing, and a TURN-relayed variant. It is grounded on the teacher's
// internal/ice/base.go, generalized from "one UDP PacketConn per local
// address" to the full set of RFC 6544 TCP candidate kinds.
package socket

import (
	"context"
	"net"
	"time"
)

// Kind tags the concrete transport a Socket wraps.
type Kind int

const (
	KindUDP Kind = iota
	KindTCPActive
	KindTCPPassive
	KindTCPEstablished
	KindTURN
)

func (k Kind) String() string {
	switch k {
	case KindUDP:
		return "udp"
	case KindTCPActive:
		return "tcp-active"
	case KindTCPPassive:
		return "tcp-passive"
	case KindTCPEstablished:
		return "tcp-established"
	case KindTURN:
		return "turn"
	default:
		return "unknown"
	}
}

// Socket is the minimal contract the ice package's check-list and discovery
// engines need from a transport binding: send a datagram to a peer, receive
// inbound datagrams (STUN or application data, undifferentiated — ice/wire
// classifies them), and report the local address candidates are built
// against.
type Socket interface {
	Kind() Kind
	LocalAddr() net.Addr
	WriteTo(b []byte, addr net.Addr) (int, error)
	ReadFrom(ctx context.Context) (b []byte, addr net.Addr, err error)
	SetTOS(tos int) error
	Close() error
}

// ErrReadTimeout is returned by ReadFrom when no datagram arrives within the
// socket's internal poll deadline, letting the caller's select loop re-check
// its context without blocking forever on a dead interface — the same
// pattern the teacher's base.go readLoop used with a 5s deadline.
type timeoutError struct{}

func (timeoutError) Error() string   { return "ice/socket: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var ErrReadTimeout error = timeoutError{}

const readPollInterval = 5 * time.Second
