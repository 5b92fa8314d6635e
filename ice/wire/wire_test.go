package wire

import (
	"net"
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingRequestRoundTrip(t *testing.T) {
	m, err := NewBindingRequest("frag:frag", "pwd", 12345, true, 0xdeadbeef, true)
	require.NoError(t, err)

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)

	assert.Equal(t, stun.BindingRequest, decoded.Type)
	assert.True(t, HasUseCandidate(decoded))

	priority, err := GetPriority(decoded)
	require.NoError(t, err)
	assert.EqualValues(t, 12345, priority)

	controlling, tieBreaker, present := GetRole(decoded)
	require.True(t, present)
	assert.True(t, controlling)
	assert.EqualValues(t, 0xdeadbeef, tieBreaker)

	require.NoError(t, CheckIntegrity(decoded, "pwd"))
}

func TestBindingSuccessCarriesMappedAddress(t *testing.T) {
	req, err := NewBindingRequest("u", "p", 1, false, 1, false)
	require.NoError(t, err)

	mapped := stun.XORMappedAddress{IP: net.ParseIP("203.0.113.5"), Port: 54321}
	resp, err := NewBindingSuccess(req.TransactionID, mapped, "p")
	require.NoError(t, err)

	decoded, err := Decode(resp.Raw)
	require.NoError(t, err)
	assert.Equal(t, stun.BindingSuccess, decoded.Type)

	var got stun.XORMappedAddress
	require.NoError(t, got.GetFrom(decoded))
	assert.True(t, got.IP.Equal(mapped.IP))
	assert.Equal(t, mapped.Port, got.Port)
}

func TestIsSTUNRejectsChannelData(t *testing.T) {
	cd := EncodeChannelData(0x4001, []byte("hello"))
	assert.False(t, IsSTUN(cd))
	assert.True(t, IsChannelData(cd))

	decoded, err := DecodeChannelData(cd)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4001), decoded.Channel)
	assert.Equal(t, []byte("hello"), decoded.Data)
}

func TestRelayedAddressAttribute(t *testing.T) {
	addr := XORRelayedAddress{IP: net.ParseIP("198.51.100.9"), Port: 3478}
	msg, err := stun.Build(stun.TransactionID, AllocateRequest, addr, stun.Fingerprint)
	require.NoError(t, err)

	var got XORRelayedAddress
	require.NoError(t, got.GetFrom(msg))
	assert.True(t, got.IP.Equal(addr.IP))
	assert.Equal(t, addr.Port, got.Port)
}
