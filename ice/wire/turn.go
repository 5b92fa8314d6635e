package wire

import (
	"net"

	"github.com/pion/stun/v3"
)

// TURN method codepoints (RFC 5766 §13): pion/stun only defines the STUN
// Binding method, so the TURN methods it doesn't ship are declared here the
// same way ice/wire's attribute codepoints are.
const (
	methodAllocate     stun.Method = 0x003
	methodRefresh      stun.Method = 0x004
	methodSend         stun.Method = 0x006
	methodData         stun.Method = 0x007
	methodChannelBind  stun.Method = 0x009
)

var (
	AllocateRequest = stun.NewType(methodAllocate, stun.ClassRequest)
	RefreshRequest  = stun.NewType(methodRefresh, stun.ClassRequest)
	SendIndication  = stun.NewType(methodSend, stun.ClassIndication)
	DataIndication  = stun.NewType(methodData, stun.ClassIndication)
	ChannelBindReq  = stun.NewType(methodChannelBind, stun.ClassRequest)
)

// NewSendIndication builds a TURN Send indication (RFC 5766 §10.3) carrying
// data bound for peer, addressed via XOR-PEER-ADDRESS (reusing the same
// XOR-obfuscation scheme as XOR-RELAYED-ADDRESS, just a different attribute
// number).
func NewSendIndication(peerIP net.IP, peerPort int, data []byte) (*stun.Message, error) {
	peer := xorPeerAddress{IP: peerIP, Port: peerPort}
	return stun.Build(stun.TransactionID, SendIndication, peer, DataAttribute(data))
}

// NewDataIndication builds a TURN Data indication (RFC 5766 §10.4), the
// message a TURN server sends a client to relay data received from peer.
func NewDataIndication(peerIP net.IP, peerPort int, data []byte) (*stun.Message, error) {
	peer := xorPeerAddress{IP: peerIP, Port: peerPort}
	return stun.Build(stun.TransactionID, DataIndication, peer, DataAttribute(data))
}

// ParseDataIndication extracts the relayed payload and originating peer
// address from a TURN Data indication (RFC 5766 §10.4).
func ParseDataIndication(m *stun.Message) ([]byte, net.Addr, error) {
	var data DataAttribute
	if err := data.GetFrom(m); err != nil {
		return nil, nil, err
	}
	var peer xorPeerAddress
	if err := peer.GetFrom(m); err != nil {
		return nil, nil, err
	}
	return data, &net.UDPAddr{IP: peer.IP, Port: peer.Port}, nil
}

const attrXORPeerAddress stun.AttrType = 0x0012

type xorPeerAddress stun.XORMappedAddress

func (a xorPeerAddress) AddTo(m *stun.Message) error {
	mapped := stun.XORMappedAddress(a)
	var buf stun.Message
	if err := mapped.AddTo(&buf); err != nil {
		return err
	}
	v, err := buf.Get(stun.AttrXORMappedAddress)
	if err != nil {
		return err
	}
	m.Add(attrXORPeerAddress, v)
	return nil
}

func (a *xorPeerAddress) GetFrom(m *stun.Message) error {
	v, err := m.Get(attrXORPeerAddress)
	if err != nil {
		return err
	}
	var buf stun.Message
	buf.Add(stun.AttrXORMappedAddress, v)
	mapped := (*stun.XORMappedAddress)(a)
	return mapped.GetFrom(&buf)
}

// NewAllocateRequest builds an unauthenticated TURN Allocate request (the
// first leg of the realm/nonce challenge handshake, RFC 5766 §6.2).
func NewAllocateRequest() (*stun.Message, error) {
	return stun.Build(stun.TransactionID, AllocateRequest, RequestedTransport(), stun.Fingerprint)
}

// NewAuthenticatedAllocateRequest builds the retried Allocate request
// carrying long-term credentials once the server has returned a realm and
// nonce (RFC 5766 §6.2, RFC 5389 §10.2.2).
func NewAuthenticatedAllocateRequest(username, realm, nonce, password string, lifetime uint32) (*stun.Message, error) {
	return stun.Build(
		stun.TransactionID,
		AllocateRequest,
		RequestedTransport(),
		Lifetime(lifetime),
		stun.NewUsername(username),
		stun.NewRealm(realm),
		stun.NewNonce(nonce),
		stun.NewLongTermIntegrity(username, realm, password),
		stun.Fingerprint,
	)
}

// NewRefreshRequest builds a TURN Refresh request; lifetime 0 requests
// early deallocation (RFC 5766 §7).
func NewRefreshRequest(username, realm, nonce, password string, lifetime uint32) (*stun.Message, error) {
	return stun.Build(
		stun.TransactionID,
		RefreshRequest,
		Lifetime(lifetime),
		stun.NewUsername(username),
		stun.NewRealm(realm),
		stun.NewNonce(nonce),
		stun.NewLongTermIntegrity(username, realm, password),
		stun.Fingerprint,
	)
}

// IsStaleNonce reports whether an error response is TURN's 438 Stale Nonce,
// the signal to retry with the fresh nonce the response carries.
func IsStaleNonce(m *stun.Message) bool {
	var ec stun.ErrorCodeAttribute
	if err := ec.GetFrom(m); err != nil {
		return false
	}
	return ec.Code == stun.CodeStaleNonce
}

// NewChannelBindRequest builds a TURN ChannelBind request (RFC 5766 §11.1)
// binding channel to peer.
func NewChannelBindRequest(channel uint16, peerIP net.IP, peerPort int, username, realm, nonce, password string) (*stun.Message, error) {
	peer := xorPeerAddress{IP: peerIP, Port: peerPort}
	return stun.Build(
		stun.TransactionID,
		ChannelBindReq,
		ChannelNumberAttr(channel),
		peer,
		stun.NewUsername(username),
		stun.NewRealm(realm),
		stun.NewNonce(nonce),
		stun.NewLongTermIntegrity(username, realm, password),
		stun.Fingerprint,
	)
}

// RelayedAddress extracts the XOR-RELAYED-ADDRESS from an Allocate success
// response.
func RelayedAddress(m *stun.Message) (stun.XORMappedAddress, error) {
	var addr XORRelayedAddress
	err := addr.GetFrom(m)
	return stun.XORMappedAddress(addr), err
}
