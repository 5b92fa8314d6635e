package ice

import (
	"sort"

	"github.com/lanikai/iceagent/internal/logging"
)

// checklistState is the RFC 8445 §6.1.2.1 overall check-list state.
type checklistState int

const (
	checklistRunning checklistState = iota
	checklistCompleted
	checklistFailed
)

// defaultMaxPairsPerChecklist is the max_conn_checks default (spec.md §6):
// 80 outstanding pairs. Agent.Config.MaxConnChecks overrides it per agent.
const defaultMaxPairsPerChecklist = 80

// Checklist owns every candidate pair for one Stream's components and
// drives them through the RFC 8445 §6.1.2 connectivity-check state machine.
// It is generalized from the teacher's internal/ice/checklist.go, which
// only ever handled a single component.
type Checklist struct {
	streamID uint32
	compat   Compatibility
	log      *logging.Logger

	pairs     []*CandidatePair
	triggered []*CandidatePair

	state              checklistState
	controllingIsLocal bool

	maxPairs int

	foundationsUnfrozen map[string]bool
}

func newChecklist(streamID uint32, compat Compatibility, maxPairs int, log *logging.Logger) *Checklist {
	if maxPairs <= 0 {
		maxPairs = defaultMaxPairsPerChecklist
	}
	return &Checklist{
		streamID:            streamID,
		compat:              compat,
		log:                 log.WithTag("checklist"),
		state:               checklistRunning,
		maxPairs:            maxPairs,
		foundationsUnfrozen: make(map[string]bool),
	}
}

// canBePaired reports whether local and remote may form a candidate pair:
// same component, same IP family (RFC 8445 §6.1.2.2).
func canBePaired(local, remote Candidate) bool {
	return local.Component == remote.Component && local.Addr.Family() == remote.Addr.Family()
}

// AddPairs constructs every valid (local, remote) pair from the given
// candidate sets, sorts by priority, prunes redundant pairs, and applies
// the RFC 8445 §6.1.2.5 cap. It may be called repeatedly as new local or
// remote candidates arrive (trickle ICE).
func (cl *Checklist) AddPairs(locals, remotes []Candidate, controllingIsLocal bool) error {
	cl.controllingIsLocal = controllingIsLocal

	existing := make(map[string]bool, len(cl.pairs))
	for _, p := range cl.pairs {
		existing[pairKey(p.Local, p.Remote)] = true
	}

	for _, local := range locals {
		for _, remote := range remotes {
			if !canBePaired(local, remote) {
				continue
			}
			key := pairKey(local, remote)
			if existing[key] {
				continue
			}
			existing[key] = true
			pair, err := newCandidatePair(len(cl.pairs), local, remote)
			if err != nil {
				return err
			}
			cl.pairs = append(cl.pairs, pair)
		}
	}

	cl.sortAndPrune()
	cl.enforceMaxPairs()
	cl.unfreezeInitialBatch()

	return nil
}

// enforceMaxPairs implements the spec.md §6 max_conn_checks cap (§4.E):
// once sortAndPrune has ordered pairs by descending priority, discard the
// lowest-priority pairs in excess of the configured limit rather than
// rejecting the whole AddPairs call. A pair already In-Progress or
// Succeeded is never discarded even if it would otherwise fall past the
// cap, since dropping it would abandon or forget a live/selected check.
func (cl *Checklist) enforceMaxPairs() {
	if len(cl.pairs) <= cl.maxPairs {
		return
	}
	kept := make([]*CandidatePair, 0, len(cl.pairs))
	dropped := 0
	for _, p := range cl.pairs {
		if len(kept) < cl.maxPairs || p.state == PairInProgress || p.state == PairSucceeded {
			kept = append(kept, p)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		cl.log.Debug("checklist: pruned %d pair(s) exceeding max_conn_checks=%d", dropped, cl.maxPairs)
	}
	cl.pairs = kept
}

func pairKey(local, remote Candidate) string {
	return local.Addr.String() + "|" + remote.Addr.String() + "|" + local.Type.String()
}

// sortAndPrune orders pairs by descending priority and removes redundant
// ones (RFC 8445 §6.1.2.4): among pairs with the same remote address and
// the same local base (ConnAddr), whatever the local candidate's type, only
// the highest-priority one stays; the others are dropped from the slice.
// Pairs already in-progress, succeeded, failed or cancelled are never
// pruned.
func (cl *Checklist) sortAndPrune() {
	sort.SliceStable(cl.pairs, func(i, j int) bool {
		return cl.pairs[i].Priority(cl.controllingIsLocal) > cl.pairs[j].Priority(cl.controllingIsLocal)
	})

	seen := make(map[string]bool)
	kept := cl.pairs[:0]
	for _, p := range cl.pairs {
		if p.state == PairInProgress || p.state == PairSucceeded || p.state == PairFailed || p.state == PairCancelled {
			kept = append(kept, p)
			continue
		}
		key := p.Remote.Addr.String() + "|" + p.Local.ConnAddr.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, p)
	}
	cl.pairs = kept
}

// unfreezeInitialBatch implements the RFC 8445 §6.1.2.6 rule: for each
// distinct foundation, the single highest-priority Frozen pair becomes
// Waiting; the rest of that foundation's pairs stay Frozen until
// unfreezeFoundation is called (e.g. when that pair fails).
func (cl *Checklist) unfreezeInitialBatch() {
	seenFoundation := make(map[string]bool)
	for _, p := range cl.pairs {
		if p.state != PairFrozen {
			continue
		}
		f := p.Foundation()
		if cl.foundationsUnfrozen[f] || seenFoundation[f] {
			continue
		}
		seenFoundation[f] = true
		cl.foundationsUnfrozen[f] = true
		p.state = PairWaiting
	}
}

// unfreezeFoundation promotes every Frozen pair sharing foundation to
// Waiting. ProcessFailure calls it when a pair of that foundation fails
// (RFC 8445 §6.1.2.6 "failure case"), and ProcessSuccess when one succeeds.
func (cl *Checklist) unfreezeFoundation(foundation string) {
	for _, p := range cl.pairs {
		if p.state == PairFrozen && p.Foundation() == foundation {
			p.state = PairWaiting
		}
	}
}

// TriggerCheck appends pair to the triggered-check queue per RFC 8445
// §7.3.1.4, used when an inbound check request arrives for a pair that is
// not yet Succeeded; NextPair serves that queue in FIFO order ahead of the
// ordinary Waiting pairs, and a pair already queued is not added twice. An
// In-Progress pair is queued with its state unchanged, and NextPair skips
// it, so no new check is sent and no timer is restarted for it.
func (cl *Checklist) TriggerCheck(pair *CandidatePair) {
	if pair.state == PairSucceeded {
		return
	}
	for _, p := range cl.triggered {
		if p == pair {
			return
		}
	}
	if pair.state != PairInProgress {
		pair.state = PairWaiting
	}
	cl.triggered = append(cl.triggered, pair)
}

// NextPair returns the next pair to send a connectivity check for, per RFC
// 8445 §6.1.4.2: the triggered-check queue first (FIFO), then the
// highest-priority Waiting pair. Returns nil if there is nothing to do
// right now (everything Frozen, In-Progress, Succeeded or Failed).
func (cl *Checklist) NextPair() *CandidatePair {
	for len(cl.triggered) > 0 {
		p := cl.triggered[0]
		cl.triggered = cl.triggered[1:]
		if p.state == PairWaiting || p.state == PairFrozen {
			return p
		}
	}
	for _, p := range cl.pairs {
		if p.state == PairWaiting {
			return p
		}
	}
	return nil
}

// FindPair locates the pair matching a local/remote address tuple, used to
// correlate an inbound STUN transaction or request with its pair.
func (cl *Checklist) FindPair(local, remote TransportAddress) *CandidatePair {
	for _, p := range cl.pairs {
		if p.Local.Addr.Equal(local) && p.Remote.Addr.Equal(remote) {
			return p
		}
	}
	return nil
}

// FindPairByTxID locates the pair whose in-flight check used txID,
// correlating a Binding response with the request that produced it.
func (cl *Checklist) FindPairByTxID(txID [12]byte) *CandidatePair {
	for _, p := range cl.pairs {
		if p.state == PairInProgress && p.txID == txID {
			return p
		}
	}
	return nil
}

// ProcessSuccess marks pair Succeeded and valid, cancels the pairs it makes
// redundant (pruneRedundantAfterSuccess), unfreezes the other pairs of its
// foundation, and updates the overall check-list state.
func (cl *Checklist) ProcessSuccess(pair *CandidatePair) {
	pair.state = PairSucceeded
	pair.valid = true
	cl.pruneRedundantAfterSuccess(pair)
	cl.unfreezeFoundation(pair.Foundation())
	cl.updateOverallState()
}

// ProcessFailure marks pair Failed and unfreezes its foundation's other
// pairs so the check-list can keep making progress.
func (cl *Checklist) ProcessFailure(pair *CandidatePair) {
	pair.state = PairFailed
	cl.unfreezeFoundation(pair.Foundation())
	cl.updateOverallState()
}

// pruneRedundantAfterSuccess implements RFC 8445 §6.1.2.4's
// pair-pruning-on-valid rule: once a pair succeeds, every other pair that
// is neither Succeeded nor In-Progress (Frozen, Waiting or Failed) and has
// the winner's component, local base and remote address can never do
// better and is marked Cancelled rather than wasting a check slot.
func (cl *Checklist) pruneRedundantAfterSuccess(winner *CandidatePair) {
	for _, p := range cl.pairs {
		if p == winner || p.state == PairSucceeded || p.state == PairInProgress {
			continue
		}
		if p.Local.Component == winner.Local.Component &&
			p.Local.ConnAddr.Equal(winner.Local.ConnAddr) &&
			p.Remote.Addr.Equal(winner.Remote.Addr) {
			p.state = PairCancelled
		}
	}
}

func (cl *Checklist) updateOverallState() {
	anyActive := false
	anySucceededPerComponent := make(map[int]bool)
	for _, p := range cl.pairs {
		switch p.state {
		case PairFrozen, PairWaiting, PairInProgress:
			anyActive = true
		case PairSucceeded:
			anySucceededPerComponent[p.Local.Component] = true
		}
	}
	if !anyActive {
		if len(anySucceededPerComponent) > 0 {
			cl.state = checklistCompleted
		} else {
			cl.state = checklistFailed
		}
	}
}

// Valid returns every Succeeded pair, the candidate set for nomination.
func (cl *Checklist) Valid() []*CandidatePair {
	var out []*CandidatePair
	for _, p := range cl.pairs {
		if p.valid {
			out = append(out, p)
		}
	}
	return out
}
