package wire

import (
	"net"
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateRequestRoundTrip(t *testing.T) {
	m, err := NewAllocateRequest()
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	assert.Equal(t, AllocateRequest, decoded.Type)
}

func TestAuthenticatedAllocateCarriesLongTermIntegrity(t *testing.T) {
	m, err := NewAuthenticatedAllocateRequest("user", "realm.example", "nonce123", "pass", 600)
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	require.NoError(t, stun.NewLongTermIntegrity("user", "realm.example", "pass").Check(decoded))

	lifetime, err := GetLifetime(decoded)
	require.NoError(t, err)
	assert.EqualValues(t, 600, lifetime)
}

func TestRefreshRequestCarriesLifetime(t *testing.T) {
	m, err := NewRefreshRequest("user", "realm.example", "nonce123", "pass", 0)
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	assert.Equal(t, RefreshRequest, decoded.Type)

	lifetime, err := GetLifetime(decoded)
	require.NoError(t, err)
	assert.EqualValues(t, 0, lifetime)
}

func TestIsStaleNonceDetectsCode438(t *testing.T) {
	m, err := stun.Build(
		stun.TransactionID,
		stun.NewType(methodRefresh, stun.ClassErrorResponse),
		&stun.ErrorCodeAttribute{Code: stun.CodeStaleNonce, Reason: []byte("Stale Nonce")},
	)
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	assert.True(t, IsStaleNonce(decoded))
}

func TestIsStaleNonceFalseForOtherErrors(t *testing.T) {
	m, err := stun.Build(
		stun.TransactionID,
		stun.NewType(methodAllocate, stun.ClassErrorResponse),
		&stun.ErrorCodeAttribute{Code: stun.CodeUnauthorized, Reason: []byte("Unauthorized")},
	)
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	assert.False(t, IsStaleNonce(decoded))
}

func TestChannelBindRequestCarriesChannelAndPeer(t *testing.T) {
	peerIP := net.ParseIP("203.0.113.5")
	m, err := NewChannelBindRequest(0x4001, peerIP, 5000, "user", "realm.example", "nonce", "pass")
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	assert.Equal(t, ChannelBindReq, decoded.Type)

	var peer xorPeerAddress
	require.NoError(t, peer.GetFrom(decoded))
	assert.True(t, peer.IP.Equal(peerIP))
	assert.Equal(t, 5000, peer.Port)
}

func TestSendIndicationAndDataIndicationRoundTrip(t *testing.T) {
	peerIP := net.ParseIP("203.0.113.7")
	payload := []byte("hello turn")

	m, err := NewSendIndication(peerIP, 6000, payload)
	require.NoError(t, err)
	assert.Equal(t, SendIndication, m.Type)

	// The same attributes framed as a Data indication, the way a TURN
	// server relays inbound peer traffic back to the client.
	dm, err := NewDataIndication(peerIP, 6000, payload)
	require.NoError(t, err)

	decoded, err := Decode(dm.Raw)
	require.NoError(t, err)
	data, addr, err := ParseDataIndication(decoded)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "203.0.113.7:6000", addr.String())
}

func TestRelayedAddressExtractsFromAllocateSuccess(t *testing.T) {
	relayed := stun.XORMappedAddress{IP: net.ParseIP("198.51.100.9"), Port: 45000}
	m, err := stun.Build(
		stun.TransactionID,
		stun.NewType(methodAllocate, stun.ClassSuccessResponse),
		XORRelayedAddress(relayed),
		Lifetime(600),
	)
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)
	addr, err := RelayedAddress(decoded)
	require.NoError(t, err)
	assert.True(t, addr.IP.Equal(relayed.IP))
	assert.Equal(t, relayed.Port, addr.Port)
}
