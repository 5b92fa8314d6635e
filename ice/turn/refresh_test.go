package turn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/iceagent/ice/wire"
)

func testServer() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: 3478}
}

func TestAllocateChallengeRetryCarriesCredentials(t *testing.T) {
	a := NewAllocation(testServer(), "user", "pass")

	raw, err := a.BuildAllocateRequest()
	require.NoError(t, err)
	m, err := wire.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.AllocateRequest, m.Type)

	retry, err := a.HandleChallenge("realm.example", "nonce-1")
	require.NoError(t, err)
	retryMsg, err := wire.Decode(retry)
	require.NoError(t, err)
	assert.Equal(t, wire.AllocateRequest, retryMsg.Type)
}

func TestNeedsRefreshNearExpiry(t *testing.T) {
	a := NewAllocation(testServer(), "user", "pass")
	relayed := &net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 50000}
	a.HandleAllocateSuccess(relayed, 100)

	assert.False(t, a.NeedsRefresh(time.Now()))
	assert.True(t, a.NeedsRefresh(time.Now().Add(50*time.Second)))
}

func TestHandleStaleNonceUpdatesNonceForNextRefresh(t *testing.T) {
	a := NewAllocation(testServer(), "user", "pass")
	_, _ = a.HandleChallenge("realm.example", "stale-nonce")
	a.HandleStaleNonce("fresh-nonce")
	assert.Equal(t, "fresh-nonce", a.nonce)

	raw, err := a.BuildRefreshRequest()
	require.NoError(t, err)
	m, err := wire.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.RefreshRequest, m.Type)
}

func TestHandleRefreshSuccessExtendsOrClearsExpiry(t *testing.T) {
	a := NewAllocation(testServer(), "user", "pass")
	a.HandleAllocateSuccess(&net.UDPAddr{}, 100)
	require.False(t, a.expiresAt.IsZero())

	a.HandleRefreshSuccess(0)
	assert.True(t, a.expiresAt.IsZero())

	a.HandleRefreshSuccess(300)
	assert.False(t, a.expiresAt.IsZero())
}

func TestChannelBindRequestReusesChannelForSamePeer(t *testing.T) {
	a := NewAllocation(testServer(), "user", "pass")
	_, _ = a.HandleChallenge("realm.example", "nonce-1")
	peer := &net.UDPAddr{IP: net.ParseIP("203.0.113.4"), Port: 9000}

	ch1, raw1, err := a.BuildChannelBindRequest(peer)
	require.NoError(t, err)
	m1, err := wire.Decode(raw1)
	require.NoError(t, err)
	assert.Equal(t, wire.ChannelBindReq, m1.Type)

	ch2, _, err := a.BuildChannelBindRequest(peer)
	require.NoError(t, err)
	assert.Equal(t, ch1, ch2)

	other := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 9001}
	ch3, _, err := a.BuildChannelBindRequest(other)
	require.NoError(t, err)
	assert.NotEqual(t, ch1, ch3)
}
