package ice

import "fmt"

// PairState is the RFC 8445 §6.1.2.6 candidate-pair state machine.
type PairState int

const (
	PairFrozen PairState = iota
	PairWaiting
	PairInProgress
	PairSucceeded
	PairFailed
	// PairCancelled marks a pair retired by pruning (nomination, max-checks
	// eviction, redundancy) rather than by a check genuinely failing
	// (spec.md §3/§4.G).
	PairCancelled
)

func (s PairState) String() string {
	switch s {
	case PairFrozen:
		return "frozen"
	case PairWaiting:
		return "waiting"
	case PairInProgress:
		return "in-progress"
	case PairSucceeded:
		return "succeeded"
	case PairFailed:
		return "failed"
	case PairCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CandidatePair couples a local and remote candidate under connectivity
// check, per spec.md §3/§4.E.
type CandidatePair struct {
	id int

	Local  Candidate
	Remote Candidate

	state      PairState
	nominated  bool
	valid      bool
	generation int

	// txID identifies the in-flight check, if any. retries and nextTimeout
	// are not read anywhere: a check is sent once and is neither
	// retransmitted nor timed out.
	txID        [12]byte
	retries     int
	nextTimeout int64 // unix nanos

	// default-ness per RFC 8445 §5.1.3 (unused directly by the checklist
	// but retained for diagnostics/events).
	isDefault bool
}

func newCandidatePair(id int, local, remote Candidate) (*CandidatePair, error) {
	if local.Component != remote.Component {
		return nil, fmt.Errorf("ice: cannot pair candidates from different components (%d != %d)", local.Component, remote.Component)
	}
	return &CandidatePair{id: id, Local: local, Remote: remote, state: PairFrozen}, nil
}

func (p *CandidatePair) String() string {
	return fmt.Sprintf("#%d %s <-> %s [%s]", p.id, p.Local.Addr, p.Remote.Addr, p.state)
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Priority implements the RFC 8445 §6.1.2.3 pair-priority formula:
//
//	pair_priority = 2^32*MIN(G,D) + 2*MAX(G,D) + (G>D?1:0)
//
// where G is the controlling agent's candidate priority and D is the
// controlled agent's. controllingIsLocal tells the formula which side of
// the pair (local or remote) belongs to the controlling agent.
func (p *CandidatePair) Priority(controllingIsLocal bool) uint64 {
	g, d := p.Remote.Priority, p.Local.Priority
	if controllingIsLocal {
		g, d = p.Local.Priority, p.Remote.Priority
	}
	pri := uint64(minU32(g, d))<<32 + 2*uint64(maxU32(g, d))
	if g > d {
		pri++
	}
	return pri
}

// Foundation is the pair's foundation, the concatenation of its two
// candidates' foundations (RFC 8445 §6.1.2.6), used to group pairs for
// unfreezing.
func (p *CandidatePair) Foundation() string {
	return p.Local.Foundation + ":" + p.Remote.Foundation
}
