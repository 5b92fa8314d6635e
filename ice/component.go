package ice

import (
	"net"
	"sync/atomic"

	"github.com/lanikai/iceagent/ice/socket"
)

// Component is one flow within a Stream (RFC 8445 §2's RTP/RTCP split is
// the canonical example; a data-only stream has exactly one).
type Component struct {
	ID    int
	state ComponentState

	sockets      []socket.Socket
	selectedPair *CandidatePair

	// Per-component configuration set through set_port_range/
	// set_tcp_active_port_range/set_transport/set_stun_info/set_relay_info
	// (spec.md §6). Zero values mean "inherit the agent's GatherConfig
	// default"; gatherConfigFor merges the port range, STUN server and relay
	// settings per component. tcpPortMin/tcpPortMax and transport are stored
	// but not read by gathering, which binds UDP sockets only.
	portMin, portMax       int
	tcpPortMin, tcpPortMax int
	transport              Protocol
	stunServer             net.Addr
	relayServer            net.Addr
	relayUser, relayPass   string

	// fallbackMode is set by the keepalive loop on a tick where this
	// component has no selected pair and the agent has a STUN server
	// configured; while it is set and no pair is selected, each keepalive
	// tick sends a Binding indication (not a Binding request) to the first
	// agent-wide STUN server to keep the NAT binding open
	// (original_source/agent.c's priv_conn_keepalive_tick, carried into
	// SPEC_FULL §9). It is never cleared.
	fallbackMode bool

	// manualSelect is set by set_selected_pair (spec.md §6): once true, the
	// checklist no longer drives this component's pair selection, though
	// keepalive on the forced pair continues.
	manualSelect bool

	// recvCb is the application callback bound via attach_recv; it is read
	// directly by the socket's read loop, outside the reactor goroutine, so
	// it is stored behind atomic.Value rather than touched only from do().
	recvCb atomic.Value // func([]byte)
}

func newComponent(id int) *Component {
	return &Component{ID: id, state: ComponentDisconnected}
}

// setState advances the component's state and reports whether it actually
// changed. Ready never regresses to Connected (spec.md §4's
// component-state-changed invariant); that is the only transition refused.
// A ready component is not moved to failed on restart: Stream.restart moves
// it to connecting, and Agent.Close to closed.
func (c *Component) setState(next ComponentState) bool {
	if c.state == ComponentReady && next == ComponentConnected {
		return false
	}
	if c.state == next {
		return false
	}
	c.state = next
	return true
}

func (c *Component) socketFor(kind socket.Kind) socket.Socket {
	for _, s := range c.sockets {
		if s.Kind() == kind {
			return s
		}
	}
	return nil
}

func (c *Component) setRecvCallback(cb func([]byte)) {
	c.recvCb.Store(cb)
}

func (c *Component) invokeRecvCallback(data []byte) bool {
	v := c.recvCb.Load()
	if v == nil {
		return false
	}
	cb := v.(func([]byte))
	cb(data)
	return true
}
