package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateSDPRoundTrip(t *testing.T) {
	c := Candidate{
		Type:       HostCandidate,
		Component:  1,
		Foundation: "4a9bdc01",
		Priority:   2113937151,
		Addr:       NewTransportAddress(net.ParseIP("192.0.2.1"), 54321, UDP),
	}

	line := c.SDP()
	parsed, err := ParseCandidateSDP(line)
	require.NoError(t, err)

	assert.Equal(t, c.Type, parsed.Type)
	assert.Equal(t, c.Component, parsed.Component)
	assert.Equal(t, c.Foundation, parsed.Foundation)
	assert.Equal(t, c.Priority, parsed.Priority)
	assert.True(t, c.Addr.Equal(parsed.Addr))
}

func TestCandidateSDPWithRelatedAddress(t *testing.T) {
	c := Candidate{
		Type:        ServerReflexiveCandidate,
		Component:   1,
		Foundation:  "abc12345",
		Priority:    1677729535,
		Addr:        NewTransportAddress(net.ParseIP("203.0.113.9"), 2000, UDP),
		RelatedAddr: NewTransportAddress(net.ParseIP("192.0.2.1"), 54321, UDP),
		hasRelated:  true,
	}

	parsed, err := ParseCandidateSDP(c.SDP())
	require.NoError(t, err)
	assert.True(t, parsed.hasRelated)
	assert.True(t, parsed.RelatedAddr.IP.Equal(c.RelatedAddr.IP))
}

func TestPriorityOrdersByType(t *testing.T) {
	host := Candidate{Type: HostCandidate, Component: 1}
	srflx := Candidate{Type: ServerReflexiveCandidate, Component: 1}
	relay := Candidate{Type: RelayedCandidate, Component: 1}

	host.ComputePriority(CompatibilityRFC5245)
	srflx.ComputePriority(CompatibilityRFC5245)
	relay.ComputePriority(CompatibilityRFC5245)

	assert.Greater(t, host.Priority, srflx.Priority)
	assert.Greater(t, srflx.Priority, relay.Priority)
}

func TestFoundationGroupsByTypeBaseProtocol(t *testing.T) {
	base := NewTransportAddress(net.ParseIP("192.0.2.1"), 1, UDP)
	other := NewTransportAddress(net.ParseIP("192.0.2.2"), 1, UDP)

	f1 := computeFoundation(HostCandidate, base, UDP, TransportAddress{}, false)
	f2 := computeFoundation(HostCandidate, base, UDP, TransportAddress{}, false)
	f3 := computeFoundation(HostCandidate, other, UDP, TransportAddress{}, false)

	assert.Equal(t, f1, f2)
	assert.NotEqual(t, f1, f3)
}

func TestParseCandidateSDPRejectsMalformed(t *testing.T) {
	_, err := ParseCandidateSDP("candidate:1 1 udp")
	assert.Error(t, err)
}
