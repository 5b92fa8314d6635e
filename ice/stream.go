package ice

import (
	"net"
	"strconv"

	"github.com/lanikai/iceagent/internal/logging"
)

// Stream is one m-line's worth of ICE state: its own credentials, its
// components, and the single check-list shared by all of them (RFC 8445
// §2's "pairs with the same foundation across components are grouped").
type Stream struct {
	ID   uint32
	Name string

	LocalUfrag, LocalPassword   string
	RemoteUfrag, RemotePassword string

	compat        Compatibility
	maxConnChecks int

	components map[int]*Component

	localCandidates  []Candidate
	remoteCandidates []Candidate

	checklist *Checklist

	gatheringState GatheringState

	nominated    bool
	selectedFrom map[int]*CandidatePair // component id -> nominated pair

	// restartCandidate preserves, per component, the remote candidate of the
	// pair selected before an ICE restart (spec.md §6's restart_candidate):
	// restart also keeps it in remoteCandidates, so the next AddPairs pairs
	// it alongside whatever the new offer/answer carries.
	restartCandidate map[int]Candidate

	// peerGatheringDone marks components whose remote side has signalled
	// end-of-candidates (spec.md's end_of_candidates), finalizing the
	// check-list if nothing is left to pair.
	peerGatheringDone map[int]bool

	// extraLocalAddrs holds addresses registered through add_local_address
	// scoped to this stream (spec.md §6).
	extraLocalAddrs []net.IP

	// ticks counts Ta pacing ticks elapsed since this check-list started (or
	// was last reset by restart), used by regular nomination's
	// regular_nomination_timeout gate (spec.md §4.G/§8).
	ticks int

	// prflxFoundationNext tracks the next candidate foundation to hand out
	// to a peer-reflexive remote candidate discovered mid-session (spec.md
	// §8 scenario 4's "highest unused foundation starting at 100" rule).
	prflxFoundationNext int
}

// allocatePeerReflexiveFoundation returns the next unused numeric
// foundation starting at 100, skipping any value already in use by an
// existing local or remote candidate.
func (s *Stream) allocatePeerReflexiveFoundation() string {
	if s.prflxFoundationNext < 100 {
		s.prflxFoundationNext = 100
	}
	for {
		f := strconv.Itoa(s.prflxFoundationNext)
		s.prflxFoundationNext++
		if !s.foundationInUse(f) {
			return f
		}
	}
}

func (s *Stream) foundationInUse(f string) bool {
	for _, c := range s.localCandidates {
		if c.Foundation == f {
			return true
		}
	}
	for _, c := range s.remoteCandidates {
		if c.Foundation == f {
			return true
		}
	}
	return false
}

func newStream(id uint32, name string, compat Compatibility, maxConnChecks int, log *logging.Logger) (*Stream, error) {
	ufrag, err := generateUfrag()
	if err != nil {
		return nil, err
	}
	pwd, err := generatePassword()
	if err != nil {
		return nil, err
	}
	return &Stream{
		ID:                id,
		Name:              name,
		LocalUfrag:        ufrag,
		LocalPassword:     pwd,
		compat:            compat,
		maxConnChecks:     maxConnChecks,
		components:        make(map[int]*Component),
		checklist:         newChecklist(id, compat, maxConnChecks, log),
		gatheringState:    GatheringNew,
		selectedFrom:      make(map[int]*CandidatePair),
		restartCandidate:  make(map[int]Candidate),
		peerGatheringDone: make(map[int]bool),
	}, nil
}

func (s *Stream) component(id int) *Component {
	c, ok := s.components[id]
	if !ok {
		c = newComponent(id)
		s.components[id] = c
	}
	return c
}

func (s *Stream) addLocalCandidate(c Candidate) {
	s.localCandidates = append(s.localCandidates, c)
}

func (s *Stream) addRemoteCandidate(c Candidate) {
	s.remoteCandidates = append(s.remoteCandidates, c)
}

// restart implements spec.md §6's restart_stream: regenerate local
// credentials, empty the check-list, and free every remote candidate except
// the one belonging to each component's current selected pair, which is
// recorded as restartCandidate and kept in remoteCandidates so later
// AddPairs calls pair it alongside whatever the new offer/answer carries.
// Each component's
// selected pair is cleared and its state drops back to connecting so a
// fresh connectivity check run can re-promote one.
func (s *Stream) restart() error {
	ufrag, err := generateUfrag()
	if err != nil {
		return err
	}
	pwd, err := generatePassword()
	if err != nil {
		return err
	}
	s.LocalUfrag, s.LocalPassword = ufrag, pwd

	preserved := make(map[int]Candidate)
	for id, pair := range s.selectedFrom {
		preserved[id] = pair.Remote
	}
	s.restartCandidate = preserved

	s.remoteCandidates = s.remoteCandidates[:0]
	for _, c := range preserved {
		s.remoteCandidates = append(s.remoteCandidates, c)
	}

	s.checklist = newChecklist(s.ID, s.compat, s.maxConnChecks, s.checklist.log)
	s.nominated = false
	s.peerGatheringDone = make(map[int]bool)
	s.ticks = 0

	for id, comp := range s.components {
		comp.selectedPair = nil
		comp.manualSelect = false
		comp.setState(ComponentConnecting)
		delete(s.selectedFrom, id)
	}
	return nil
}

// allConnected reports whether every component has a selected pair.
func (s *Stream) allConnected() bool {
	if len(s.components) == 0 {
		return false
	}
	for _, c := range s.components {
		if c.selectedPair == nil {
			return false
		}
	}
	return true
}
