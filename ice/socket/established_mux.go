package socket

import (
	"context"
	"net"

	"github.com/lanikai/iceagent/internal/mux"
)

// muxedEstablished wraps an established TCP connection through
// internal/mux so STUN control traffic and opaque application data can be
// read independently once a pair on this socket is selected — the
// single-port/ICE-TCP use case where the data consumer and the ICE
// dispatcher must not steal each other's frames. The mux sees the raw byte
// stream: neither it nor WriteTo adds or strips RFC 4571 length prefixes.
type muxedEstablished struct {
	m      *mux.Mux
	stunEP *mux.Endpoint
	dataEP *mux.Endpoint
}

// NewMuxedTCPEstablished builds a tcp-established Socket whose inbound
// frames are pre-classified as STUN or application data via internal/mux,
// letting a caller drain application data through DataConn while ReadFrom
// continues to serve only STUN frames to the dispatcher.
func NewMuxedTCPEstablished(conn net.Conn, isSTUN func([]byte) bool) *muxedEstablished {
	m := mux.NewMux(conn, maxFrameSize)
	return &muxedEstablished{
		m:      m,
		stunEP: m.NewEndpoint(mux.MatchFunc(isSTUN)),
		dataEP: m.NewEndpoint(func(b []byte) bool { return len(b) > 0 && !isSTUN(b) }),
	}
}

func (e *muxedEstablished) Kind() Kind          { return KindTCPEstablished }
func (e *muxedEstablished) LocalAddr() net.Addr { return e.stunEP.LocalAddr() }
func (e *muxedEstablished) Close() error        { return e.m.Close() }

func (e *muxedEstablished) WriteTo(b []byte, _ net.Addr) (int, error) {
	return e.stunEP.Write(b)
}

func (e *muxedEstablished) ReadFrom(ctx context.Context) ([]byte, net.Addr, error) {
	buf := make([]byte, maxFrameSize)
	n, err := e.stunEP.Read(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], e.stunEP.RemoteAddr(), nil
}

func (e *muxedEstablished) SetTOS(tos int) error { return nil }

// DataConn exposes the application-data endpoint as a plain net.Conn for
// the component consumer to read/write through directly, bypassing the ICE
// dispatcher entirely.
func (e *muxedEstablished) DataConn() net.Conn { return e.dataEP }
