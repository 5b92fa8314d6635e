// Package ice implements an RFC 5245/RFC 8445 (and Microsoft WLM2009/
// OC2007R2) compatible Interactive Connectivity Establishment agent: the
// candidate/address model, STUN transaction layer, check-list engine,
// inbound dispatcher, nomination logic and the public Agent facade.
// STUN/TURN wire encoding lives in ice/wire, socket transport in
// ice/socket, TURN allocation lifecycle in ice/turn.
package ice

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lanikai/iceagent/ice/socket"
	"github.com/lanikai/iceagent/ice/wire"
	"github.com/lanikai/iceagent/internal/logging"
)

// Ta is the minimum interval between connectivity checks across the whole
// agent (RFC 8445 §14.1's pacing interval; spec.md §6 default 20 ms).
const Ta = 20 * time.Millisecond

// Tr is the default interval between consent/keepalive Binding indications
// sent on each selected pair once connected (RFC 8445 §11; spec.md §6
// default 25000 ms). TrMin is the documented floor an agent configuration
// may not go below.
const Tr = 25 * time.Second
const TrMin = 15 * time.Second

// defaultMaxConnChecks is the spec.md §6 max_conn_checks default.
const defaultMaxConnChecks = 80

// defaultRegularNominationTimeout is the spec.md §6 default
// regular_nomination_timeout: once the elapsed pacing time (ticks × Ta)
// exceeds this duration, the controlling agent nominates any succeeded pair
// rather than waiting for the highest-priority one (§4.G/§8).
const defaultRegularNominationTimeout = 3000 * time.Millisecond

// Config configures a new Agent (spec.md §6's constructor parameters).
type Config struct {
	Compat                   Compatibility
	Controlling              bool
	Nomination               NominationMode
	Gather                   GatherConfig
	Logger                   *logging.Logger
	MaxConnChecks            int           // spec.md §6 max_conn_checks; 0 selects the default of 80
	RegularNominationTimeout time.Duration // spec.md §6; 0 selects the default of 3000ms
}

// Agent is the top-level ICE facade (Component I). All mutable state is
// owned by a single reactor goroutine; every exported method forwards a
// closure onto cmdCh and waits for it to run, replacing the recursive
// mutex the teacher's design implied with the command-channel façade
// SPEC_FULL.md §5 calls for.
type Agent struct {
	log    *logging.Logger
	compat Compatibility
	gather GatherConfig

	controllingIsLocal bool
	tieBreaker         uint64
	nomination         NominationMode
	maxConnChecks      int
	nominationTimeout  time.Duration

	streams   map[uint32]*Stream
	nextID    uint32

	// extraLocalAddrs holds addresses registered through add_local_address
	// with no stream_id (spec.md §6): applied to every stream's gathering
	// in addition to whatever local interfaces it discovers on its own.
	extraLocalAddrs []net.IP

	cmdCh    chan func()
	inbound  chan inboundMsg
	events   chan Event
	closed   chan struct{}
	closeOne sync.Once

	limiter *rate.Limiter

	// compIndex lets readLoop, which runs outside the reactor goroutine,
	// look up a Component to deliver application data to attach_recv's
	// callback without round-tripping through do() on every packet.
	compIndex sync.Map // componentKey -> *Component
}

type componentKey struct {
	streamID  uint32
	component int
}

type inboundMsg struct {
	streamID  uint32
	component int
	local     TransportAddress
	from      TransportAddress
	raw       []byte
}

// NewAgent constructs an Agent and starts its reactor goroutine.
func NewAgent(cfg Config) (*Agent, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger
	}
	tieBreaker, err := generateTieBreaker()
	if err != nil {
		return nil, err
	}

	maxConnChecks := cfg.MaxConnChecks
	if maxConnChecks <= 0 {
		maxConnChecks = defaultMaxConnChecks
	}
	nominationTimeout := cfg.RegularNominationTimeout
	if nominationTimeout <= 0 {
		nominationTimeout = defaultRegularNominationTimeout
	}

	a := &Agent{
		log:                 log.WithTag("ice"),
		compat:              cfg.Compat,
		gather:              cfg.Gather,
		controllingIsLocal:  cfg.Controlling,
		tieBreaker:          tieBreaker,
		nomination:          cfg.Nomination,
		maxConnChecks:       maxConnChecks,
		nominationTimeout:   nominationTimeout,
		streams:             make(map[uint32]*Stream),
		cmdCh:               make(chan func()),
		inbound:             make(chan inboundMsg, 256),
		events:              make(chan Event, 64),
		closed:              make(chan struct{}),
		limiter:             rate.NewLimiter(rate.Every(Ta), 1),
	}
	go a.run()
	return a, nil
}

// Events returns the channel the application drains for gathering,
// candidate-pair-selected and state-change notifications.
func (a *Agent) Events() <-chan Event { return a.events }

// do runs fn inside the reactor goroutine and blocks until it completes,
// the synchronous half of the command-channel façade.
func (a *Agent) do(fn func()) error {
	done := make(chan struct{})
	select {
	case a.cmdCh <- func() { fn(); close(done) }:
	case <-a.closed:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-a.closed:
		return ErrClosed
	}
}

// CreateStream registers a new Stream with numComponents components and
// returns it. (spec.md §6 add_stream.)
func (a *Agent) CreateStream(name string, numComponents int) (*Stream, error) {
	var stream *Stream
	var err error
	derr := a.do(func() {
		id := a.nextID + 1
		stream, err = newStream(id, name, a.compat, a.maxConnChecks, a.log)
		if err != nil {
			return
		}
		a.nextID = id
		for i := 1; i <= numComponents; i++ {
			comp := stream.component(i)
			a.compIndex.Store(componentKey{id, i}, comp)
		}
		a.streams[id] = stream
	})
	if derr != nil {
		return nil, derr
	}
	return stream, err
}

// RemoveStream tears down a stream inside one reactor closure: it closes
// every component's sockets, drops the components from compIndex and
// deletes the stream, whose pairs and discovery state go with it. The agent
// keeps no per-stream timers; the shared pacing and keepalive tickers
// simply stop seeing the stream (see SPEC_FULL.md §9).
func (a *Agent) RemoveStream(streamID uint32) error {
	return a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		for id, c := range stream.components {
			for _, s := range c.sockets {
				s.Close()
			}
			a.compIndex.Delete(componentKey{streamID, id})
		}
		delete(a.streams, streamID)
	})
}

// SetRemoteCredentials sets the ICE ufrag/password learned from the remote
// offer/answer (spec.md §6 set_remote_credentials).
func (a *Agent) SetRemoteCredentials(streamID uint32, ufrag, password string) error {
	return a.do(func() {
		if s, ok := a.streams[streamID]; ok {
			s.RemoteUfrag, s.RemotePassword = ufrag, password
		}
	})
}

// SetLocalCredentials overrides the auto-generated local ufrag/password
// (spec.md §6 set_local_credentials), enabling the
// set_local_credentials -> get_local_credentials round-trip law (§8).
// Lengths are validated per §6: ufrag in [4,256], password in [22,256].
func (a *Agent) SetLocalCredentials(streamID uint32, ufrag, password string) error {
	if len(ufrag) < 4 || len(ufrag) > 256 || len(password) < 22 || len(password) > 256 {
		return ErrInvalidCredentials
	}
	return a.do(func() {
		if s, ok := a.streams[streamID]; ok {
			s.LocalUfrag, s.LocalPassword = ufrag, password
		}
	})
}

// AddRemoteCandidate adds one remote candidate and repairs the check-list
// (spec.md §6 add_remote_candidate), supporting trickle ICE.
func (a *Agent) AddRemoteCandidate(streamID uint32, c Candidate) error {
	return a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		stream.addRemoteCandidate(c)
		stream.checklist.AddPairs(stream.localCandidates, stream.remoteCandidates, a.controllingIsLocal)
	})
}

// SetRemoteCandidates bulk-adds remote candidates for one component
// (spec.md §6 set_remote_candidates) and returns the number actually added.
func (a *Agent) SetRemoteCandidates(streamID uint32, componentID int, cands []Candidate) (int, error) {
	added := 0
	err := a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		for _, c := range cands {
			if c.Component != componentID {
				continue
			}
			stream.addRemoteCandidate(c)
			added++
		}
		stream.checklist.AddPairs(stream.localCandidates, stream.remoteCandidates, a.controllingIsLocal)
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// EndOfCandidates marks a component's peer gathering done (spec.md §6
// end_of_candidates) and finalizes the check-list if nothing remains to
// pair, rather than waiting indefinitely on further trickled candidates.
func (a *Agent) EndOfCandidates(streamID uint32, componentID int) error {
	return a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		stream.peerGatheringDone[componentID] = true
		stream.checklist.sortAndPrune()
		stream.checklist.updateOverallState()
	})
}

// Send writes data over componentID's selected pair, to the selected pair's
// remote address, per spec.md §6 send. It returns ErrNoSelectedPair if no
// pair has been selected yet.
func (a *Agent) Send(streamID uint32, componentID int, data []byte) (int, error) {
	var s socket.Socket
	var to TransportAddress
	err := a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		comp, ok := stream.components[componentID]
		if !ok || comp.selectedPair == nil {
			return
		}
		s = comp.socketFor(socket.KindUDP)
		if s == nil && len(comp.sockets) > 0 {
			s = comp.sockets[0]
		}
		to = comp.selectedPair.Remote.Addr
	})
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, ErrNoSelectedPair
	}
	return s.WriteTo(data, to.NetAddr())
}

// AttachRecv binds an application callback that receives inbound data on
// componentID once it arrives (spec.md §6 attach_recv). Pass nil to detach.
func (a *Agent) AttachRecv(streamID uint32, componentID int, cb func([]byte)) error {
	return a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		if comp, ok := stream.components[componentID]; ok {
			comp.setRecvCallback(cb)
		}
	})
}

// SetSelectedPair forces componentID's selected pair to the one identified
// by its two candidates' foundations, disabling further ICE processing for
// that component while keepalive continues (spec.md §6 set_selected_pair).
// It reports whether a matching pair was found.
func (a *Agent) SetSelectedPair(streamID uint32, componentID int, localFoundation, remoteFoundation string) (bool, error) {
	found := false
	err := a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		comp, ok := stream.components[componentID]
		if !ok {
			return
		}
		for _, p := range stream.checklist.pairs {
			if p.Local.Component != componentID {
				continue
			}
			if p.Local.Foundation != localFoundation || p.Remote.Foundation != remoteFoundation {
				continue
			}
			p.state = PairSucceeded
			p.valid = true
			p.nominated = true
			comp.manualSelect = true
			comp.selectedPair = nil // let promoteSelectedPair (re-)assign cleanly
			a.promoteSelectedPair(stream, p)
			found = true
			return
		}
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// RestartStream regenerates streamID's local credentials and empties its
// check-list while preserving its current selected pair's remote candidate
// as restart_candidate (spec.md §6 restart_stream).
func (a *Agent) RestartStream(streamID uint32) (bool, error) {
	ok2 := false
	err := a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		if rerr := stream.restart(); rerr != nil {
			return
		}
		ok2 = true
	})
	if err != nil {
		return false, err
	}
	return ok2, nil
}

// Restart regenerates the agent's tie-breaker and restarts every stream
// (spec.md §6 restart).
func (a *Agent) Restart() (bool, error) {
	ok2 := true
	err := a.do(func() {
		tieBreaker, terr := generateTieBreaker()
		if terr != nil {
			ok2 = false
			return
		}
		a.tieBreaker = tieBreaker
		for _, stream := range a.streams {
			if rerr := stream.restart(); rerr != nil {
				ok2 = false
			}
		}
	})
	if err != nil {
		return false, err
	}
	return ok2, nil
}

// GetLocalCandidates returns a snapshot of componentID's gathered local
// candidates (spec.md §6 get_local_candidates).
func (a *Agent) GetLocalCandidates(streamID uint32, componentID int) ([]Candidate, error) {
	var out []Candidate
	err := a.do(func() {
		stream, ok := a.streams[streamID]
		if !ok {
			return
		}
		for _, c := range stream.localCandidates {
			if c.Component == componentID {
				out = append(out, c)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddLocalAddress registers an extra local IP address to bind host
// candidates on (spec.md §6 add_local_address). streamID == 0 registers
// the address agent-wide, applied to every stream's future
// gather_candidates call; a non-zero streamID scopes it to that stream.
func (a *Agent) AddLocalAddress(streamID uint32, ip net.IP) error {
	return a.do(func() {
		if streamID == 0 {
			a.extraLocalAddrs = append(a.extraLocalAddrs, ip)
			return
		}
		if s, ok := a.streams[streamID]; ok {
			s.extraLocalAddrs = append(s.extraLocalAddrs, ip)
		}
	})
}

// SetPortRange restricts componentID's host-candidate socket binding to
// [min, max] (spec.md §6 set_port_range).
func (a *Agent) SetPortRange(streamID uint32, componentID int, min, max int) error {
	return a.do(func() {
		if comp := a.lookupComponent(streamID, componentID); comp != nil {
			comp.portMin, comp.portMax = min, max
		}
	})
}

// SetTcpActivePortRange records [min, max] as componentID's TCP-active
// candidate port range (spec.md §6 set_tcp_active_port_range). The range is
// only stored: gathering binds UDP sockets and does not read it.
func (a *Agent) SetTcpActivePortRange(streamID uint32, componentID int, min, max int) error {
	return a.do(func() {
		if comp := a.lookupComponent(streamID, componentID); comp != nil {
			comp.tcpPortMin, comp.tcpPortMax = min, max
		}
	})
}

// SetTransport records the transport for componentID (spec.md §6
// set_transport). The value is only stored: gathering binds UDP sockets and
// does not read it.
func (a *Agent) SetTransport(streamID uint32, componentID int, transport Protocol) error {
	return a.do(func() {
		if comp := a.lookupComponent(streamID, componentID); comp != nil {
			comp.transport = transport
		}
	})
}

// SetRelayInfo configures componentID's TURN server (spec.md §6
// set_relay_info). relayType is ignored.
func (a *Agent) SetRelayInfo(streamID uint32, componentID int, serverIP net.IP, serverPort int, user, pass string, relayType int) error {
	return a.do(func() {
		if comp := a.lookupComponent(streamID, componentID); comp != nil {
			comp.relayServer = &net.UDPAddr{IP: serverIP, Port: serverPort}
			comp.relayUser, comp.relayPass = user, pass
		}
	})
}

// SetStunInfo configures componentID's STUN server (spec.md §6
// set_stun_info).
func (a *Agent) SetStunInfo(streamID uint32, componentID int, stunIP net.IP, stunPort int) error {
	return a.do(func() {
		if comp := a.lookupComponent(streamID, componentID); comp != nil {
			comp.stunServer = &net.UDPAddr{IP: stunIP, Port: stunPort}
		}
	})
}

// lookupComponent fetches componentID within streamID, creating it if the
// stream exists but the component has not been touched yet. Must run
// inside do().
func (a *Agent) lookupComponent(streamID uint32, componentID int) *Component {
	stream, ok := a.streams[streamID]
	if !ok {
		return nil
	}
	return stream.component(componentID)
}

// gatherConfigFor merges the agent's default GatherConfig with componentID's
// per-component overrides set via SetPortRange/SetStunInfo/SetRelayInfo and
// the extra addresses from AddLocalAddress. Values set through SetTransport
// and SetTcpActivePortRange are not merged. Must run inside do().
func (a *Agent) gatherConfigFor(stream *Stream, comp *Component) GatherConfig {
	cfg := a.gather
	cfg.Compat = a.compat

	cfg.ExtraAddrs = append(append([]net.IP(nil), a.extraLocalAddrs...), stream.extraLocalAddrs...)

	if comp.portMin != 0 || comp.portMax != 0 {
		cfg.PortMin, cfg.PortMax = comp.portMin, comp.portMax
	}
	if comp.stunServer != nil {
		cfg.STUNServers = []net.Addr{comp.stunServer}
	}
	if comp.relayServer != nil {
		cfg.TURNServer = comp.relayServer
		cfg.TURNUser = comp.relayUser
		cfg.TURNPass = comp.relayPass
	}
	return cfg
}

// GatherCandidates starts host and server-reflexive discovery for every
// component of stream and posts EventNewLocalCandidate/
// EventGatheringStateChanged as candidates arrive (spec.md §6
// gather_candidates). Relayed candidates are not gathered: a TURN server
// set through GatherConfig or SetRelayInfo is carried in the component's
// GatherConfig, but gatherAll makes no allocation on it. Gathering itself
// runs outside the reactor goroutine (it blocks on network I/O); only the
// results are applied inside it.
func (a *Agent) GatherCandidates(streamID uint32) error {
	var stream *Stream
	cfgs := make(map[int]GatherConfig)
	derr := a.do(func() {
		s, ok := a.streams[streamID]
		if !ok {
			return
		}
		if s.gatheringState == GatheringGathering {
			return
		}
		s.gatheringState = GatheringGathering
		for id, comp := range s.components {
			if comp.setState(ComponentGathering) {
				a.postEvent(Event{Kind: EventComponentStateChanged, StreamID: s.ID, ComponentID: comp.ID, ComponentStat: ComponentGathering})
			}
			cfgs[id] = a.gatherConfigFor(s, comp)
		}
		stream = s
	})
	if derr != nil {
		return derr
	}
	if stream == nil {
		return ErrUnknownStream
	}

	ctx := context.Background()
	for id := range stream.components {
		id := id
		go func() {
			cands, socks, err := gatherAll(ctx, cfgs[id], id, a.log)
			a.do(func() {
				comp := stream.component(id)
				comp.sockets = append(comp.sockets, socks...)
				for _, c := range cands {
					stream.addLocalCandidate(c)
					a.postEvent(Event{Kind: EventNewLocalCandidate, StreamID: stream.ID, ComponentID: id, Candidate: c})
				}
				if err != nil {
					a.log.Warn("gather: component %d: %v", id, err)
				}
				for _, s := range socks {
					go a.readLoop(stream.ID, id, s)
				}
				stream.checklist.AddPairs(stream.localCandidates, stream.remoteCandidates, a.controllingIsLocal)
				stream.gatheringState = GatheringComplete
				a.postEvent(Event{Kind: EventGatheringStateChanged, StreamID: stream.ID, GatheringStat: GatheringComplete})
				if comp.setState(ComponentConnecting) {
					a.postEvent(Event{Kind: EventComponentStateChanged, StreamID: stream.ID, ComponentID: comp.ID, ComponentStat: ComponentConnecting})
				}
			})
		}()
	}
	return nil
}

// readLoop continuously drains one socket: STUN datagrams go into the
// reactor's inbound queue, and application data goes straight to the
// component's attach_recv callback (looked up through compIndex), or is
// dropped when no callback is attached.
func (a *Agent) readLoop(streamID uint32, component int, s socket.Socket) {
	local, err := transportAddressFromNetAddr(s.LocalAddr(), UDP)
	if err != nil {
		return
	}
	for {
		select {
		case <-a.closed:
			return
		default:
		}
		raw, from, err := s.ReadFrom(context.Background())
		if err != nil {
			if err == socket.ErrReadTimeout {
				continue
			}
			return
		}
		// socket.Socket.ReadFrom always hands back the final application
		// payload (TURNSocket unwraps ChannelData/Data indications itself
		// before returning), so a non-STUN datagram here is application
		// data on every socket kind, never raw ChannelData framing.
		if !wire.IsSTUN(raw) {
			// Application data: deliver to attach_recv's callback, if any,
			// rather than the STUN dispatcher.
			if v, ok := a.compIndex.Load(componentKey{streamID, component}); ok {
				v.(*Component).invokeRecvCallback(raw)
			}
			continue
		}
		fromAddr, err := transportAddressFromNetAddr(from, UDP)
		if err != nil {
			continue
		}
		select {
		case a.inbound <- inboundMsg{streamID, component, local, fromAddr, raw}:
		case <-a.closed:
			return
		default:
			a.log.Warn("dispatch: inbound queue full, dropping datagram from %v", from)
		}
	}
}

// run is the single-threaded reactor: every piece of Agent/Stream/Component
// mutable state is touched only from this goroutine.
func (a *Agent) run() {
	paceTick := time.NewTicker(Ta)
	defer paceTick.Stop()
	keepaliveTick := time.NewTicker(Tr)
	defer keepaliveTick.Stop()

	for {
		select {
		case fn := <-a.cmdCh:
			fn()
		case msg := <-a.inbound:
			a.handleInbound(msg)
		case <-paceTick.C:
			if a.limiter.Allow() {
				a.advanceChecklists()
			}
		case <-keepaliveTick.C:
			a.sendKeepalives()
		case <-a.closed:
			return
		}
	}
}

func (a *Agent) handleInbound(msg inboundMsg) {
	stream, ok := a.streams[msg.streamID]
	if !ok {
		return
	}
	var pair *CandidatePair
	if wire.IsSTUN(msg.raw) {
		if decoded, err := wire.Decode(msg.raw); err == nil {
			pair = stream.checklist.FindPairByTxID(decoded.TransactionID)
			if pair == nil {
				pair = stream.checklist.FindPair(msg.local, msg.from)
			}
		}
	}
	a.classifyAndRoute(stream, msg.component, msg.local, pair, msg.from, msg.raw)
	a.nominateIfReady(stream)
}

// advanceChecklists sends the next scheduled check for each running
// stream, per the single global Ta pacing tick (RFC 8445 §14.1).
func (a *Agent) advanceChecklists() {
	for _, stream := range a.streams {
		stream.ticks++
		if stream.checklist.state == checklistRunning {
			pair := stream.checklist.NextPair()
			if pair != nil {
				if comp, ok := stream.components[pair.Local.Component]; !ok || !comp.manualSelect {
					a.sendCheck(stream, pair, a.nomination == NominationAggressive && a.controllingIsLocal)
				}
			}
		}
		a.nominateIfReady(stream)
	}
}

func (a *Agent) sendCheck(stream *Stream, pair *CandidatePair, useCandidate bool) {
	pair.state = PairInProgress
	req, err := wire.NewBindingRequest(stream.RemoteUfrag+":"+stream.LocalUfrag, stream.RemotePassword, pair.Local.Priority, a.controllingIsLocal, a.tieBreaker, useCandidate)
	if err != nil {
		a.log.Warn("check: failed to build request: %v", err)
		return
	}
	pair.txID = req.TransactionID
	if useCandidate {
		pair.nominated = true
	}
	a.sendTo(stream, pair.Local.Component, pair.Remote.Addr, req.Raw)
}

func (a *Agent) sendNominationCheck(stream *Stream, pair *CandidatePair) {
	a.sendCheck(stream, pair, true)
}

func (a *Agent) sendTo(stream *Stream, component int, to TransportAddress, raw []byte) {
	comp, ok := stream.components[component]
	if !ok {
		return
	}
	s := comp.socketFor(socket.KindUDP)
	if s == nil && len(comp.sockets) > 0 {
		s = comp.sockets[0]
	}
	if s == nil {
		return
	}
	if _, err := s.WriteTo(raw, to.NetAddr()); err != nil {
		a.log.Debug("send to %v failed: %v", to, err)
	}
}

// sendKeepalives refreshes the NAT binding on every component's selected
// pair (RFC 8445 §11), and, for components with no selected pair yet but a
// configured STUN server, the fallback keepalive from
// original_source/agent.c's priv_conn_keepalive_tick (SPEC_FULL.md §9).
func (a *Agent) sendKeepalives() {
	for _, stream := range a.streams {
		for _, comp := range stream.components {
			if comp.selectedPair != nil {
				a.sendBindingIndication(stream, comp, comp.selectedPair.Remote.Addr)
				continue
			}
			if !comp.fallbackMode && len(a.gather.STUNServers) > 0 {
				comp.fallbackMode = true
			}
			if comp.fallbackMode && len(a.gather.STUNServers) > 0 {
				if addr, err := transportAddressFromNetAddr(a.gather.STUNServers[0], UDP); err == nil {
					a.sendBindingIndication(stream, comp, addr)
				}
			}
		}
	}
}

func (a *Agent) sendBindingIndication(stream *Stream, comp *Component, to TransportAddress) {
	m, err := wire.NewBareBindingIndication()
	if err != nil {
		return
	}
	a.sendTo(stream, comp.ID, to, m)
}

func (a *Agent) postEvent(e Event) {
	select {
	case a.events <- e:
	default:
		a.log.Warn("event sink full, dropping %T event", e.Kind)
	}
}

// Close shuts down the reactor and every socket held by every stream.
func (a *Agent) Close() error {
	a.closeOne.Do(func() {
		a.do(func() {
			for _, stream := range a.streams {
				for _, comp := range stream.components {
					comp.state = ComponentClosed
					for _, s := range comp.sockets {
						s.Close()
					}
				}
			}
		})
		close(a.closed)
	})
	return nil
}

func (a *Agent) String() string {
	return fmt.Sprintf("ice.Agent{streams=%d, controlling=%v}", len(a.streams), a.controllingIsLocal)
}
