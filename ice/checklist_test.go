package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/iceagent/internal/logging"
)

func cand(component int, port int, priority uint32) Candidate {
	return Candidate{
		Type:      HostCandidate,
		Component: component,
		Addr:      NewTransportAddress(net.ParseIP("192.0.2.1"), port, UDP),
		ConnAddr:  NewTransportAddress(net.ParseIP("192.0.2.1"), port, UDP),
		Priority:  priority,
	}
}

func TestAddPairsOnlySameComponent(t *testing.T) {
	cl := newChecklist(1, CompatibilityRFC5245, 0, logging.DefaultLogger)
	locals := []Candidate{cand(1, 1000, 100), cand(2, 1001, 100)}
	remotes := []Candidate{cand(1, 2000, 50)}

	require.NoError(t, cl.AddPairs(locals, remotes, true))
	assert.Len(t, cl.pairs, 1)
	assert.Equal(t, 1, cl.pairs[0].Local.Component)
}

func TestSortInPriorityOrder(t *testing.T) {
	cl := newChecklist(1, CompatibilityRFC5245, 0, logging.DefaultLogger)
	locals := []Candidate{cand(1, 1000, 10), cand(1, 1001, 50)}
	remotes := []Candidate{cand(1, 2000, 5)}

	require.NoError(t, cl.AddPairs(locals, remotes, true))
	require.Len(t, cl.pairs, 2)
	assert.GreaterOrEqual(t, cl.pairs[0].Priority(true), cl.pairs[1].Priority(true))
}

func TestUnfreezeInitialBatchOnePerFoundation(t *testing.T) {
	cl := newChecklist(1, CompatibilityRFC5245, 0, logging.DefaultLogger)
	locals := []Candidate{cand(1, 1000, 10)}
	remotes := []Candidate{cand(1, 2000, 5)}
	require.NoError(t, cl.AddPairs(locals, remotes, true))

	waiting := 0
	for _, p := range cl.pairs {
		if p.state == PairWaiting {
			waiting++
		}
	}
	assert.Equal(t, 1, waiting)
}

func TestTriggerCheckMovesToFrontAndDoesNotDuplicate(t *testing.T) {
	cl := newChecklist(1, CompatibilityRFC5245, 0, logging.DefaultLogger)
	locals := []Candidate{cand(1, 1000, 10), cand(1, 1001, 20)}
	remotes := []Candidate{cand(1, 2000, 5)}
	require.NoError(t, cl.AddPairs(locals, remotes, true))

	target := cl.pairs[1]
	cl.TriggerCheck(target)
	cl.TriggerCheck(target)
	assert.Len(t, cl.triggered, 1)

	next := cl.NextPair()
	assert.Equal(t, target, next)
}

func TestProcessFailureUnfreezesFoundation(t *testing.T) {
	cl := newChecklist(1, CompatibilityRFC5245, 0, logging.DefaultLogger)
	local := cand(1, 1000, 10)
	remote := cand(1, 2000, 5)
	require.NoError(t, cl.AddPairs([]Candidate{local}, []Candidate{remote}, true))

	p := cl.pairs[0]
	foundation := p.Foundation()
	// Manually reintroduce a frozen sibling sharing the same foundation,
	// simulating a second pair the initial unfreeze batch left frozen.
	sibling, err := newCandidatePair(len(cl.pairs), local, remote)
	require.NoError(t, err)
	cl.pairs = append(cl.pairs, sibling)
	require.Equal(t, foundation, sibling.Foundation())

	p.state = PairInProgress
	cl.ProcessFailure(p)

	assert.Equal(t, PairFailed, p.state)
	assert.Equal(t, PairWaiting, sibling.state)
}

func TestProcessSuccessMarksValidAndPrunesRedundant(t *testing.T) {
	cl := newChecklist(1, CompatibilityRFC5245, 0, logging.DefaultLogger)
	local := cand(1, 1000, 10)
	remote := cand(1, 2000, 5)
	require.NoError(t, cl.AddPairs([]Candidate{local}, []Candidate{remote}, true))

	p := cl.pairs[0]
	// A Frozen pair with the same component, base and remote address is
	// redundant once p succeeds.
	sibling, err := newCandidatePair(len(cl.pairs), local, remote)
	require.NoError(t, err)
	cl.pairs = append(cl.pairs, sibling)

	p.state = PairInProgress
	cl.ProcessSuccess(p)

	assert.True(t, p.valid)
	assert.Equal(t, PairSucceeded, p.state)
	assert.Equal(t, PairCancelled, sibling.state)
	assert.Len(t, cl.Valid(), 1)
}
