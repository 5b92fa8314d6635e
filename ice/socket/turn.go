package socket

import (
	"context"
	"net"
	"sync"

	"github.com/lanikai/iceagent/ice/wire"
)

// TURNSocket relays application data through an existing TURN allocation.
// It owns only the data path (ChannelData framing once a channel is bound,
// falling back to Send/Data indications otherwise); allocation lifetime and
// refresh scheduling belong to ice/turn, kept separate so the socket layer
// never has to know about credentials or the realm/nonce handshake.
type TURNSocket struct {
	base       Socket // the UDP or TCP socket bound to the TURN server
	serverAddr net.Addr
	relayed    net.Addr

	channelsMu sync.RWMutex
	channels   map[string]uint16 // peer addr string -> bound channel number
}

func NewTURNSocket(base Socket, serverAddr, relayed net.Addr) *TURNSocket {
	return &TURNSocket{
		base:       base,
		serverAddr: serverAddr,
		relayed:    relayed,
		channels:   make(map[string]uint16),
	}
}

func (s *TURNSocket) Kind() Kind          { return KindTURN }
func (s *TURNSocket) LocalAddr() net.Addr { return s.relayed }
func (s *TURNSocket) Close() error        { return s.base.Close() }
func (s *TURNSocket) SetTOS(tos int) error { return s.base.SetTOS(tos) }

// BindChannel records a channel number obtained via ice/turn's
// ChannelBind, letting subsequent WriteTo calls use the cheaper 4-byte
// ChannelData framing instead of a full Send indication.
func (s *TURNSocket) BindChannel(peer net.Addr, channel uint16) {
	s.channelsMu.Lock()
	s.channels[peer.String()] = channel
	s.channelsMu.Unlock()
}

func (s *TURNSocket) WriteTo(b []byte, peer net.Addr) (int, error) {
	s.channelsMu.RLock()
	channel, bound := s.channels[peer.String()]
	s.channelsMu.RUnlock()

	if bound {
		frame := wire.EncodeChannelData(channel, b)
		return s.base.WriteTo(frame, s.serverAddr)
	}

	ip, port, err := splitHostPort(peer)
	if err != nil {
		return 0, err
	}
	msg, err := wire.NewSendIndication(ip, port, b)
	if err != nil {
		return 0, err
	}
	return s.base.WriteTo(msg.Raw, s.serverAddr)
}

// ReadFrom unwraps a ChannelData frame or Data indication arriving from the
// TURN server and reports the original peer address the data came from.
func (s *TURNSocket) ReadFrom(ctx context.Context) ([]byte, net.Addr, error) {
	raw, _, err := s.base.ReadFrom(ctx)
	if err != nil {
		return nil, nil, err
	}
	if wire.IsChannelData(raw) {
		cd, err := wire.DecodeChannelData(raw)
		if err != nil {
			return nil, nil, err
		}
		peer := s.peerForChannel(cd.Channel)
		return cd.Data, peer, nil
	}
	msg, err := wire.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	data, from, err := wire.ParseDataIndication(msg)
	if err != nil {
		return nil, nil, err
	}
	return data, from, nil
}

func (s *TURNSocket) peerForChannel(channel uint16) net.Addr {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	for addrStr, ch := range s.channels {
		if ch == channel {
			if a, err := net.ResolveUDPAddr("udp", addrStr); err == nil {
				return a
			}
		}
	}
	return nil
}

func splitHostPort(a net.Addr) (net.IP, int, error) {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP, v.Port, nil
	case *net.TCPAddr:
		return v.IP, v.Port, nil
	default:
		host, port, err := net.SplitHostPort(a.String())
		if err != nil {
			return nil, 0, err
		}
		ip := net.ParseIP(host)
		p, err := net.LookupPort("udp", port)
		if err != nil {
			return nil, 0, err
		}
		return ip, p, nil
	}
}
