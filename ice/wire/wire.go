// Package wire implements the STUN/TURN message construction and attribute
// codec the ice package needs, layered on top of github.com/pion/stun/v3's
// generic message envelope the same way github.com/pion/turn layers TURN
// semantics over it.
package wire

import (
	"net"

	"github.com/pion/stun/v3"
)

// NewBindingRequest builds a STUN Binding request carrying the attributes
// connectivity checks require: USERNAME, PRIORITY, the controlling/
// controlled role attribute, an optional USE-CANDIDATE, MESSAGE-INTEGRITY
// and FINGERPRINT.
func NewBindingRequest(username, password string, priority uint32, controlling bool, tieBreaker uint64, useCandidate bool) (*stun.Message, error) {
	setters := []stun.Setter{
		stun.TransactionID,
		stun.BindingRequest,
		stun.NewUsername(username),
		Priority(priority),
	}
	if controlling {
		setters = append(setters, ICEControlling(tieBreaker))
	} else {
		setters = append(setters, ICEControlled(tieBreaker))
	}
	if useCandidate {
		setters = append(setters, UseCandidate())
	}
	setters = append(setters, stun.NewShortTermIntegrity(password), stun.Fingerprint)

	return stun.Build(setters...)
}

// NewBindingSuccess builds a successful Binding response carrying the
// XOR-MAPPED-ADDRESS of the request's source, integrity-protected with the
// given password. txID is the transaction ID of the request being answered.
func NewBindingSuccess(txID stun.TransactionID, mapped stun.XORMappedAddress, password string) (*stun.Message, error) {
	return stun.Build(
		txID,
		stun.BindingSuccess,
		&mapped,
		stun.NewShortTermIntegrity(password),
		stun.Fingerprint,
	)
}

// NewBindingError builds a Binding error response, e.g. 487 Role Conflict
// or 400 Bad Request.
func NewBindingError(txID stun.TransactionID, code stun.ErrorCode, reason string) (*stun.Message, error) {
	return stun.Build(
		txID,
		stun.BindingError,
		&stun.ErrorCodeAttribute{Code: code, Reason: []byte(reason)},
		stun.Fingerprint,
	)
}

// NewBareBindingIndication builds a consent-freshness/keepalive Binding
// indication (RFC 8445 §11): no response is expected, so it carries no
// credentials beyond FINGERPRINT.
func NewBareBindingIndication() ([]byte, error) {
	m, err := stun.Build(stun.TransactionID, stun.BindingIndication, stun.Fingerprint)
	if err != nil {
		return nil, err
	}
	return m.Raw, nil
}

// NewBareBindingRequest builds a Binding request with no USERNAME,
// MESSAGE-INTEGRITY or PRIORITY — used for discovery against a public STUN
// server, which knows nothing of this agent's ICE credentials. It returns
// the raw wire bytes and the transaction ID to correlate the response.
func NewBareBindingRequest() ([]byte, stun.TransactionID, error) {
	m, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	if err != nil {
		return nil, stun.TransactionID{}, err
	}
	return m.Raw, m.TransactionID, nil
}

// SameTransaction reports whether m's transaction ID matches txID.
func SameTransaction(m *stun.Message, txID stun.TransactionID) bool {
	return m.TransactionID == txID
}

// GetMappedAddress extracts XOR-MAPPED-ADDRESS (falling back to the
// deprecated MAPPED-ADDRESS some servers still send) from a Binding
// success response.
func GetMappedAddress(m *stun.Message) (net.IP, int, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(m); err == nil {
		return xorAddr.IP, xorAddr.Port, nil
	}
	var addr stun.MappedAddress
	if err := addr.GetFrom(m); err != nil {
		return nil, 0, err
	}
	return addr.IP, addr.Port, nil
}

// IsSTUN reports whether data looks like a STUN-framed datagram, the same
// test the socket layer uses to demultiplex STUN control traffic from
// opaque application data on a shared port.
func IsSTUN(data []byte) bool {
	return stun.IsMessage(data)
}

// Decode parses a raw STUN/TURN datagram.
func Decode(data []byte) (*stun.Message, error) {
	m := new(stun.Message)
	m.Raw = append([]byte(nil), data...)
	if err := m.Decode(); err != nil {
		return nil, err
	}
	return m, nil
}

// CheckIntegrity validates MESSAGE-INTEGRITY against the given password
// (short-term credential mechanism, RFC 5389 §15.4).
func CheckIntegrity(m *stun.Message, password string) error {
	return stun.NewShortTermIntegrity(password).Check(m)
}

// Class reports the STUN message class (request/indication/success/error).
func Class(m *stun.Message) stun.MessageClass { return m.Type.Class }

// Method reports the STUN message method (Binding, Allocate, Refresh, ...).
func Method(m *stun.Message) stun.Method { return m.Type.Method }
