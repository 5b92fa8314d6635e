package ice

import (
	"github.com/pion/stun/v3"

	"github.com/lanikai/iceagent/ice/wire"
)

// classifyAndRoute implements spec.md §4.F's inbound STUN dispatcher for
// Binding messages: it decodes the datagram and hands Binding requests,
// success responses and error responses to the check-list handlers below.
// It does not itself check MESSAGE-INTEGRITY or FINGERPRINT, routes nothing
// to discovery or TURN refresh, and returns no value; messages of any other
// method are logged and dropped.
func (a *Agent) classifyAndRoute(stream *Stream, component int, local TransportAddress, pair *CandidatePair, from TransportAddress, raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		a.log.Debug("dispatch: malformed STUN datagram from %v: %v", from, err)
		return
	}

	switch wire.Method(msg) {
	case stun.MethodBinding:
		a.handleBinding(stream, component, local, pair, from, msg)
	default:
		// Allocate/Refresh/ChannelBind and every other non-Binding method
		// are not handled in this package: nothing here passes them on to
		// ice/turn, so they are only logged.
		a.log.Debug("dispatch: unexpected STUN method %v from %v", wire.Method(msg), from)
	}
}

func (a *Agent) handleBinding(stream *Stream, component int, local TransportAddress, pair *CandidatePair, from TransportAddress, msg *stun.Message) {
	switch wire.Class(msg) {
	case stun.ClassRequest:
		a.handleBindingRequest(stream, component, local, from, msg)
	case stun.ClassSuccessResponse:
		a.handleBindingSuccess(stream, pair, msg)
	case stun.ClassErrorResponse:
		a.handleBindingError(stream, pair, msg)
	case stun.ClassIndication:
		// Binding indications are keepalives; no action required beyond
		// having received traffic on the pair (NAT binding refreshed).
	}
}

// handleBindingRequest answers an inbound connectivity check per RFC 8445
// §7.3: validate credentials, resolve any ICE role conflict, look up (or
// create, for a peer-reflexive candidate) the pair, trigger a check on it,
// and reply.
func (a *Agent) handleBindingRequest(stream *Stream, component int, local TransportAddress, from TransportAddress, msg *stun.Message) {
	if err := wire.CheckIntegrity(msg, stream.LocalPassword); err != nil {
		a.log.Warn("dispatch: bad MESSAGE-INTEGRITY from %v on stream %d: %v", from, stream.ID, err)
		return
	}

	remoteControlling, tieBreaker, present := wire.GetRole(msg)
	if present {
		if conflict, swap := a.resolveRoleConflict(remoteControlling, tieBreaker); conflict {
			if swap {
				a.controllingIsLocal = !a.controllingIsLocal
			} else {
				resp, err := wire.NewBindingError(msg.TransactionID, stun.CodeRoleConflict, "Role Conflict")
				if err == nil {
					a.sendTo(stream, component, from, resp.Raw)
				}
				return
			}
		}
	}

	priority, _ := wire.GetPriority(msg)

	pair := stream.checklist.FindPair(local, from)
	if pair == nil {
		pair = a.adoptPeerReflexiveCandidate(stream, component, local, from, priority)
	}
	if pair != nil {
		stream.checklist.TriggerCheck(pair)
	}

	mapped := stun.XORMappedAddress{IP: from.IP, Port: from.Port}
	resp, err := wire.NewBindingSuccess(msg.TransactionID, mapped, stream.LocalPassword)
	if err != nil {
		a.log.Warn("dispatch: failed to build Binding success: %v", err)
		return
	}
	a.sendTo(stream, component, from, resp.Raw)

	if wire.HasUseCandidate(msg) && pair != nil {
		a.handleUseCandidate(stream, pair)
	}
}

func (a *Agent) handleBindingSuccess(stream *Stream, pair *CandidatePair, msg *stun.Message) {
	if pair == nil {
		return
	}
	// A Binding success response is integrity-protected with the
	// responder's password, i.e. the REMOTE password from our side, since
	// we sent the request keyed the same way (RFC 8445 §7.2.2, §7.3.2.1).
	if err := wire.CheckIntegrity(msg, stream.RemotePassword); err != nil {
		a.log.Warn("dispatch: bad MESSAGE-INTEGRITY on response for pair %v: %v", pair, err)
		return
	}

	resolved := pair
	if ip, port, err := wire.GetMappedAddress(msg); err == nil {
		mapped := NewTransportAddress(ip, port, pair.Local.Addr.Protocol)
		if !mapped.Equal(pair.Local.Addr) {
			resolved = a.resolvePeerReflexiveLocal(stream, pair, mapped)
		}
	}

	stream.checklist.ProcessSuccess(pair)
	if resolved != pair {
		stream.checklist.ProcessSuccess(resolved)
	}

	if resolved.nominated {
		a.promoteSelectedPair(stream, resolved)
	} else if comp, ok := stream.components[resolved.Local.Component]; ok {
		if comp.setState(ComponentConnected) {
			a.postEvent(Event{Kind: EventComponentStateChanged, StreamID: stream.ID, ComponentID: comp.ID, ComponentStat: ComponentConnected})
		}
	}
}

// resolvePeerReflexiveLocal implements spec.md §4.E.4's "mapped address
// present" branch: the address the peer observed for our side of pair
// differs from the local candidate we sent the check from, meaning a NAT
// between us and the peer translated it. Locate a local candidate already
// describing that observed address; if none exists, synthesize a
// peer-reflexive local candidate (base = the checking pair's local base,
// priority = the original request's PRIORITY attribute, carried on
// pair.Local.Priority since that is what sendCheck put on the wire). Either
// way, find or create the (local', remote) pair and return it as the
// valid pair for this check, leaving the originating pair's own transition
// to ProcessSuccess in the caller.
func (a *Agent) resolvePeerReflexiveLocal(stream *Stream, pair *CandidatePair, mapped TransportAddress) *CandidatePair {
	local := findCandidateByAddr(stream.localCandidates, mapped)
	if local == nil {
		cand := Candidate{
			Type:       PeerReflexiveCandidate,
			Component:  pair.Local.Component,
			Addr:       mapped,
			ConnAddr:   pair.Local.ConnAddr,
			Priority:   pair.Local.Priority,
			generation: pair.Local.generation,
		}
		cand.Foundation = stream.allocatePeerReflexiveFoundation()
		stream.localCandidates = append(stream.localCandidates, cand)
		local = &stream.localCandidates[len(stream.localCandidates)-1]
		a.postEvent(Event{Kind: EventNewLocalCandidate, StreamID: stream.ID, ComponentID: pair.Local.Component, Candidate: cand})
	}

	if existing := stream.checklist.FindPair(local.Addr, pair.Remote.Addr); existing != nil {
		return existing
	}

	newPair, err := newCandidatePair(len(stream.checklist.pairs), *local, pair.Remote)
	if err != nil {
		return pair
	}
	newPair.nominated = pair.nominated
	stream.checklist.pairs = append(stream.checklist.pairs, newPair)
	return newPair
}

func (a *Agent) handleBindingError(stream *Stream, pair *CandidatePair, msg *stun.Message) {
	if pair == nil {
		return
	}
	var ec stun.ErrorCodeAttribute
	if err := ec.GetFrom(msg); err == nil && ec.Code == stun.CodeRoleConflict {
		a.controllingIsLocal = !a.controllingIsLocal
		pair.state = PairWaiting
		return
	}
	stream.checklist.ProcessFailure(pair)
}
