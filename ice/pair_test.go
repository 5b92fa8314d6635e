package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCandidatePairRejectsComponentMismatch(t *testing.T) {
	local := Candidate{Component: 1, Addr: NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)}
	remote := Candidate{Component: 2, Addr: NewTransportAddress(net.ParseIP("192.0.2.2"), 2000, UDP)}

	_, err := newCandidatePair(0, local, remote)
	assert.Error(t, err)
}

func TestPairPriorityFormula(t *testing.T) {
	local := Candidate{Component: 1, Priority: 126, Addr: NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)}
	remote := Candidate{Component: 1, Priority: 100, Addr: NewTransportAddress(net.ParseIP("192.0.2.2"), 2000, UDP)}

	p, err := newCandidatePair(0, local, remote)
	require.NoError(t, err)

	// Controlling agent is local: G=126, D=100.
	want := uint64(100)<<32 + 2*uint64(126) + 1
	assert.Equal(t, want, p.Priority(true))

	// Controlling agent is remote: G=100, D=126.
	want = uint64(100)<<32 + 2*uint64(126)
	assert.Equal(t, want, p.Priority(false))
}

func TestPairPriorityIsSymmetricOnMinMax(t *testing.T) {
	local := Candidate{Component: 1, Priority: 50, Addr: NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)}
	remote := Candidate{Component: 1, Priority: 50, Addr: NewTransportAddress(net.ParseIP("192.0.2.2"), 2000, UDP)}

	p, err := newCandidatePair(0, local, remote)
	require.NoError(t, err)

	// Equal priorities: tie bit never set regardless of role assignment.
	assert.Equal(t, p.Priority(true), p.Priority(false))
}

func TestPairFoundationConcatenatesBoth(t *testing.T) {
	local := Candidate{Component: 1, Foundation: "aaa", Addr: NewTransportAddress(net.ParseIP("192.0.2.1"), 1000, UDP)}
	remote := Candidate{Component: 1, Foundation: "bbb", Addr: NewTransportAddress(net.ParseIP("192.0.2.2"), 2000, UDP)}

	p, err := newCandidatePair(0, local, remote)
	require.NoError(t, err)
	assert.Equal(t, "aaa:bbb", p.Foundation())
}

func TestPairStateStringCoversAllValues(t *testing.T) {
	states := []PairState{PairFrozen, PairWaiting, PairInProgress, PairSucceeded, PairFailed, PairCancelled}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		assert.NotEqual(t, "unknown", str)
		seen[str] = true
	}
	assert.Len(t, seen, len(states))
}
