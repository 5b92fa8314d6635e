package ice

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lanikai/iceagent/ice/socket"
)

// setupLoopbackComponent binds a UDP socket for component 1 of stream,
// registers it as a host candidate, wires it into the component and starts
// its read loop -- the minimal state GatherCandidates would otherwise
// produce, built directly so the test doesn't depend on STUN/TURN servers.
func setupLoopbackComponent(t *testing.T, a *Agent, stream *Stream) Candidate {
	t.Helper()
	s, err := socket.NewUDPSocket(&net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	addr, err := transportAddressFromNetAddr(s.LocalAddr(), UDP)
	require.NoError(t, err)

	cand := Candidate{
		Type:      HostCandidate,
		Component: 1,
		Addr:      addr,
		ConnAddr:  addr,
	}
	cand.Foundation = computeFoundation(cand.Type, addr, UDP, TransportAddress{}, false)
	cand.ComputePriority(CompatibilityRFC5245)

	require.NoError(t, a.do(func() {
		comp := stream.component(1)
		comp.sockets = append(comp.sockets, s)
		stream.addLocalCandidate(cand)
		a.compIndex.Store(componentKey{stream.ID, 1}, comp)
	}))
	go a.readLoop(stream.ID, 1, s)

	return cand
}

func waitForEvent(t *testing.T, events <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestAgentCompletesConnectivityCheckOverLoopback(t *testing.T) {
	a, err := NewAgent(Config{Compat: CompatibilityRFC5245, Controlling: true, Nomination: NominationRegular})
	require.NoError(t, err)
	defer a.Close()

	b, err := NewAgent(Config{Compat: CompatibilityRFC5245, Controlling: false, Nomination: NominationRegular})
	require.NoError(t, err)
	defer b.Close()

	streamA, err := a.CreateStream("data", 1)
	require.NoError(t, err)
	streamB, err := b.CreateStream("data", 1)
	require.NoError(t, err)

	candA := setupLoopbackComponent(t, a, streamA)
	candB := setupLoopbackComponent(t, b, streamB)

	require.NoError(t, a.SetRemoteCredentials(streamA.ID, streamB.LocalUfrag, streamB.LocalPassword))
	require.NoError(t, b.SetRemoteCredentials(streamB.ID, streamA.LocalUfrag, streamA.LocalPassword))

	require.NoError(t, a.AddRemoteCandidate(streamA.ID, candB))
	require.NoError(t, b.AddRemoteCandidate(streamB.ID, candA))

	waitForEvent(t, a.Events(), EventCandidatePairSelected, 5*time.Second)
	waitForEvent(t, b.Events(), EventCandidatePairSelected, 5*time.Second)
}

func TestAgentSendDeliversOverSelectedPair(t *testing.T) {
	a, err := NewAgent(Config{Compat: CompatibilityRFC5245, Controlling: true, Nomination: NominationRegular})
	require.NoError(t, err)
	defer a.Close()

	b, err := NewAgent(Config{Compat: CompatibilityRFC5245, Controlling: false, Nomination: NominationRegular})
	require.NoError(t, err)
	defer b.Close()

	streamA, err := a.CreateStream("data", 1)
	require.NoError(t, err)
	streamB, err := b.CreateStream("data", 1)
	require.NoError(t, err)

	candA := setupLoopbackComponent(t, a, streamA)
	candB := setupLoopbackComponent(t, b, streamB)

	require.NoError(t, a.SetRemoteCredentials(streamA.ID, streamB.LocalUfrag, streamB.LocalPassword))
	require.NoError(t, b.SetRemoteCredentials(streamB.ID, streamA.LocalUfrag, streamA.LocalPassword))

	received := make(chan []byte, 1)
	require.NoError(t, b.AttachRecv(streamB.ID, 1, func(data []byte) {
		received <- append([]byte(nil), data...)
	}))

	require.NoError(t, a.AddRemoteCandidate(streamA.ID, candB))
	require.NoError(t, b.AddRemoteCandidate(streamB.ID, candA))

	waitForEvent(t, a.Events(), EventCandidatePairSelected, 5*time.Second)
	waitForEvent(t, b.Events(), EventCandidatePairSelected, 5*time.Second)

	_, err = a.Send(streamA.ID, 1, []byte("hello over ice"))
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, "hello over ice", string(got))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for application data to arrive")
	}
}
