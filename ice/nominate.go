package ice

import "time"

// NominationMode selects how the controlling agent nominates a pair, per
// RFC 8445 §8.1.
type NominationMode int

const (
	NominationRegular NominationMode = iota
	NominationAggressive
)

// resolveRoleConflict implements RFC 8445 §7.3.1.1's tie-breaker
// comparison: if the peer asserts the role opposite to ours, there is no
// conflict. Otherwise the agent with the larger tie-breaker value ends up
// controlling; the other switches roles. It returns whether a conflict
// existed and, if so, whether the local agent must switch (swap=true) as
// opposed to replying 487 and keeping its role (swap=false).
func (a *Agent) resolveRoleConflict(remoteControlling bool, remoteTieBreaker uint64) (conflict bool, swap bool) {
	if remoteControlling != a.controllingIsLocal {
		return false, false
	}
	if !a.controllingIsLocal {
		// Both controlled: the larger (or equal) tie-breaker switches to
		// controlling; otherwise tell the peer to switch via 487.
		return true, a.tieBreaker >= remoteTieBreaker
	}
	if a.tieBreaker >= remoteTieBreaker {
		// We keep our role; tell the peer to switch via 487.
		return true, false
	}
	return true, true
}

// adoptPeerReflexiveCandidate implements RFC 8445 §7.3.1.3: an inbound
// Binding request whose source address matches no known remote candidate
// produces a new peer-reflexive remote candidate and a fresh pair against
// the local base that received it. Per spec.md §8 scenario 4, the
// candidate's priority is taken verbatim from the request's PRIORITY
// attribute (not recomputed), and its foundation is assigned by the
// "highest unused foundation starting at 100" rule rather than the
// generic content hash used for locally-gathered candidates.
func (a *Agent) adoptPeerReflexiveCandidate(stream *Stream, component int, local, from TransportAddress, priority uint32) *CandidatePair {
	localCand := findCandidateByAddr(stream.localCandidates, local)
	if localCand == nil {
		return nil
	}

	remote := Candidate{
		Type:      PeerReflexiveCandidate,
		Component: component,
		Addr:      from,
		ConnAddr:  from,
		Priority:  priority,
	}
	remote.Foundation = stream.allocatePeerReflexiveFoundation()

	stream.remoteCandidates = append(stream.remoteCandidates, remote)

	pair, err := newCandidatePair(len(stream.checklist.pairs), *localCand, remote)
	if err != nil {
		return nil
	}
	pair.state = PairWaiting
	stream.checklist.pairs = append(stream.checklist.pairs, pair)
	a.postEvent(Event{Kind: EventNewLocalCandidate, StreamID: stream.ID, ComponentID: component, Candidate: remote})
	return pair
}

func findCandidateByAddr(cands []Candidate, addr TransportAddress) *Candidate {
	for i := range cands {
		if cands[i].Addr.Equal(addr) {
			return &cands[i]
		}
	}
	return nil
}

// handleUseCandidate implements the controlled agent's side of RFC 8445
// §7.3.1.5: the first successful pair whose request carried USE-CANDIDATE
// becomes the nominated pair for its component.
func (a *Agent) handleUseCandidate(stream *Stream, pair *CandidatePair) {
	if a.controllingIsLocal {
		return // only the controlled agent nominates reactively
	}
	pair.nominated = true
	if pair.state == PairSucceeded {
		a.promoteSelectedPair(stream, pair)
	}
}

// nominateIfReady implements the controlling agent's nomination policy
// (RFC 8445 §8.1, spec.md §4.G "Regular nomination"): in aggressive mode,
// every check carries USE-CANDIDATE and the first to succeed wins; in
// regular mode, on each pacing tick the controlling agent inspects each
// component's succeeded pairs and either:
//   - does nothing, if none have succeeded or one is already nominated;
//   - nominates any succeeded pair (the highest-priority one), once the
//     elapsed tick count exceeds regular_nomination_timeout; or
//   - otherwise only nominates once the highest-priority pair overall has
//     itself succeeded.
func (a *Agent) nominateIfReady(stream *Stream) {
	if !a.controllingIsLocal || stream.nominated {
		return
	}
	if a.nomination == NominationAggressive {
		return // aggressive nomination is driven by sendCheck setting USE-CANDIDATE directly
	}

	elapsed := time.Duration(stream.ticks) * Ta
	timeoutExceeded := elapsed > a.nominationTimeout

	for id, comp := range stream.components {
		if comp.selectedPair != nil {
			continue
		}
		valid := validForComponent(stream.checklist.Valid(), id)
		if len(valid) == 0 {
			continue
		}
		if anyNominated(valid) {
			continue
		}

		var target *CandidatePair
		switch {
		case timeoutExceeded:
			target = bestValidPair(valid)
		default:
			if highest := highestPriorityPair(stream.checklist.pairs, id); highest != nil && highest.state == PairSucceeded {
				target = highest
			}
		}
		if target == nil {
			continue
		}
		target.nominated = true
		a.sendNominationCheck(stream, target)
	}
}

func validForComponent(valid []*CandidatePair, component int) []*CandidatePair {
	var out []*CandidatePair
	for _, p := range valid {
		if p.Local.Component == component {
			out = append(out, p)
		}
	}
	return out
}

func anyNominated(pairs []*CandidatePair) bool {
	for _, p := range pairs {
		if p.nominated {
			return true
		}
	}
	return false
}

func bestValidPair(valid []*CandidatePair) *CandidatePair {
	var best *CandidatePair
	for _, p := range valid {
		if best == nil || p.Priority(true) > best.Priority(true) {
			best = p
		}
	}
	return best
}

// highestPriorityPair returns component's single highest-priority pair
// regardless of state, relying on the check-list's pairs slice already
// being sorted by descending priority (sortAndPrune runs on every AddPairs).
func highestPriorityPair(pairs []*CandidatePair, component int) *CandidatePair {
	for _, p := range pairs {
		if p.Local.Component == component {
			return p
		}
	}
	return nil
}

// promoteSelectedPair implements RFC 8445 §8.1.2 and spec.md §4.G's
// selected-pair promotion rule: once a nominated pair succeeds, it becomes
// the component's selected pair if none is set yet, or replaces the
// existing one when its priority is higher (cancelling the old pair's
// keepalive by simply forgetting it — Tr's keepalive loop always reads
// comp.selectedPair fresh). Every other pair for that component is pruned
// (Waiting/Frozen -> Cancelled, In-Progress left to finish and then
// ignored), and, for OC2007R2, every other check for the whole stream is
// cancelled outright once any component nominates (original_source/agent.c's
// more aggressive cleanup — see SPEC_FULL.md).
func (a *Agent) promoteSelectedPair(stream *Stream, pair *CandidatePair) {
	comp, ok := stream.components[pair.Local.Component]
	if !ok {
		return
	}
	if comp.selectedPair != nil {
		if pair.Priority(a.controllingIsLocal) <= comp.selectedPair.Priority(a.controllingIsLocal) {
			return
		}
	}
	comp.selectedPair = pair
	comp.setState(ComponentReady)
	stream.selectedFrom[pair.Local.Component] = pair

	for _, p := range stream.checklist.pairs {
		if p == pair || p.Local.Component != pair.Local.Component {
			continue
		}
		if p.state == PairWaiting || p.state == PairFrozen {
			p.state = PairCancelled
		}
	}

	if stream.compat == CompatibilityOC2007R2 {
		for _, p := range stream.checklist.pairs {
			if p.state == PairWaiting || p.state == PairFrozen {
				p.state = PairCancelled
			}
		}
	}

	a.postEvent(Event{Kind: EventCandidatePairSelected, StreamID: stream.ID, ComponentID: pair.Local.Component, Pair: pair})
	a.postEvent(Event{Kind: EventComponentStateChanged, StreamID: stream.ID, ComponentID: pair.Local.Component, ComponentStat: ComponentReady})

	if stream.allConnected() {
		stream.nominated = true
		a.postEvent(Event{Kind: EventStreamStateChanged, StreamID: stream.ID})
	}
}
