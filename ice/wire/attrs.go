package wire

import (
	"encoding/binary"

	"github.com/pion/stun/v3"
)

// Attribute codepoints pion/stun doesn't ship: ICE (RFC 8445 §16.1) and
// TURN (RFC 5766 §14).
const (
	attrPriority           stun.AttrType = 0x0024
	attrUseCandidate       stun.AttrType = 0x0025
	attrICEControlled      stun.AttrType = 0x8029
	attrICEControlling     stun.AttrType = 0x802A
	attrLifetime           stun.AttrType = 0x000D
	attrRequestedTransport stun.AttrType = 0x0019
	attrXORRelayedAddress  stun.AttrType = 0x0016
	attrData               stun.AttrType = 0x0013
	attrChannelNumber      stun.AttrType = 0x000C

	// attrNoAlignedAttrs is Microsoft's OC2007R2 extension marking a
	// message as using unaligned (4-byte-unpadded) attribute values; see
	// spec.md's OC2007R2 compatibility notes.
	attrNoAlignedAttrs stun.AttrType = 0x8001
)

// Priority is the PRIORITY attribute (RFC 8445 §16.1.2): the sending
// candidate's priority, carried on every connectivity-check request.
type priorityAttr uint32

func Priority(p uint32) stun.Setter { return priorityAttr(p) }

func (p priorityAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(p))
	m.Add(attrPriority, v)
	return nil
}

// GetPriority extracts the PRIORITY attribute, if present.
func GetPriority(m *stun.Message) (uint32, error) {
	v, err := m.Get(attrPriority)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, stun.ErrAttributeSizeInvalid
	}
	return binary.BigEndian.Uint32(v), nil
}

// UseCandidate is the zero-length USE-CANDIDATE flag attribute (RFC 8445
// §16.1.4), set by the controlling agent to nominate a pair.
type useCandidateAttr struct{}

func UseCandidate() stun.Setter { return useCandidateAttr{} }

func (useCandidateAttr) AddTo(m *stun.Message) error {
	m.Add(attrUseCandidate, nil)
	return nil
}

// HasUseCandidate reports whether the USE-CANDIDATE flag is present.
func HasUseCandidate(m *stun.Message) bool {
	return m.Contains(attrUseCandidate)
}

// ICEControlling/ICEControlled carry the sender's 64-bit tie-breaker value
// and its asserted role (RFC 8445 §16.1.5/16.1.6).
type roleAttr struct {
	attr       stun.AttrType
	tieBreaker uint64
}

func ICEControlling(tieBreaker uint64) stun.Setter {
	return roleAttr{attrICEControlling, tieBreaker}
}

func ICEControlled(tieBreaker uint64) stun.Setter {
	return roleAttr{attrICEControlled, tieBreaker}
}

func (r roleAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, r.tieBreaker)
	m.Add(r.attr, v)
	return nil
}

// GetRole reports whether the message carries ICE-CONTROLLING or
// ICE-CONTROLLED, and the tie-breaker value it carries.
func GetRole(m *stun.Message) (controlling bool, tieBreaker uint64, present bool) {
	if v, err := m.Get(attrICEControlling); err == nil && len(v) == 8 {
		return true, binary.BigEndian.Uint64(v), true
	}
	if v, err := m.Get(attrICEControlled); err == nil && len(v) == 8 {
		return false, binary.BigEndian.Uint64(v), true
	}
	return false, 0, false
}

// Lifetime is the TURN LIFETIME attribute (RFC 5766 §14.2), in seconds.
type lifetimeAttr uint32

func Lifetime(seconds uint32) stun.Setter { return lifetimeAttr(seconds) }

func (l lifetimeAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(l))
	m.Add(attrLifetime, v)
	return nil
}

func GetLifetime(m *stun.Message) (uint32, error) {
	v, err := m.Get(attrLifetime)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, stun.ErrAttributeSizeInvalid
	}
	return binary.BigEndian.Uint32(v), nil
}

// requestedTransportUDP is the protocol number for UDP (RFC 5766 §14.7);
// TURN only relays UDP.
const requestedTransportUDP = 17

// RequestedTransport is the TURN REQUESTED-TRANSPORT attribute.
func RequestedTransport() stun.Setter { return requestedTransportAttr{} }

type requestedTransportAttr struct{}

func (requestedTransportAttr) AddTo(m *stun.Message) error {
	v := []byte{requestedTransportUDP, 0, 0, 0}
	m.Add(attrRequestedTransport, v)
	return nil
}

// XORRelayedAddress mirrors stun.XORMappedAddress's XOR-obfuscation scheme
// but under TURN's own attribute number (RFC 5766 §14.5).
type XORRelayedAddress stun.XORMappedAddress

func (a XORRelayedAddress) AddTo(m *stun.Message) error {
	mapped := stun.XORMappedAddress(a)
	var buf stun.Message
	if err := mapped.AddTo(&buf); err != nil {
		return err
	}
	v, err := buf.Get(stun.AttrXORMappedAddress)
	if err != nil {
		return err
	}
	m.Add(attrXORRelayedAddress, v)
	return nil
}

func (a *XORRelayedAddress) GetFrom(m *stun.Message) error {
	v, err := m.Get(attrXORRelayedAddress)
	if err != nil {
		return err
	}
	var buf stun.Message
	buf.Add(stun.AttrXORMappedAddress, v)
	mapped := (*stun.XORMappedAddress)(a)
	return mapped.GetFrom(&buf)
}

// ChannelData wraps a TURN ChannelData message (RFC 5766 §11.4): a 4-byte
// header (channel number + length) followed by the raw application payload,
// distinct from STUN-framed messages and classified before IsSTUN is
// consulted.
type ChannelData struct {
	Channel uint16
	Data    []byte
}

func EncodeChannelData(channel uint16, data []byte) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(out[0:2], channel)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(data)))
	copy(out[4:], data)
	return out
}

func DecodeChannelData(raw []byte) (ChannelData, error) {
	if len(raw) < 4 {
		return ChannelData{}, stun.ErrAttributeSizeInvalid
	}
	channel := binary.BigEndian.Uint16(raw[0:2])
	n := binary.BigEndian.Uint16(raw[2:4])
	if int(n) > len(raw)-4 {
		return ChannelData{}, stun.ErrAttributeSizeInvalid
	}
	return ChannelData{Channel: channel, Data: raw[4 : 4+n]}, nil
}

// IsChannelData reports whether raw looks like a ChannelData message: a
// channel number in TURN's reserved 0x4000-0x7FFF range, which can never
// collide with a STUN message's 0b00 leading bits.
func IsChannelData(raw []byte) bool {
	if len(raw) < 4 {
		return false
	}
	ch := binary.BigEndian.Uint16(raw[0:2])
	return ch >= 0x4000 && ch <= 0x7FFF
}

// HasNoAlignedAttributes reports whether a message carries OC2007R2's
// marker for unaligned attribute encoding. The agent only ever needs to detect the marker on
// inbound messages from legacy clients; ice/wire does not itself re-pad
// attributes differently, since pion/stun always produces RFC-aligned
// output and OC2007R2 peers tolerate RFC alignment on replies.
func HasNoAlignedAttributes(m *stun.Message) bool {
	return m.Contains(attrNoAlignedAttrs)
}

// DataAttribute carries relayed/encapsulated application data inside a TURN
// Send/Data indication (RFC 5766 §14.9).
type DataAttribute []byte

func (d DataAttribute) AddTo(m *stun.Message) error {
	m.Add(attrData, d)
	return nil
}

func (d *DataAttribute) GetFrom(m *stun.Message) error {
	v, err := m.Get(attrData)
	if err != nil {
		return err
	}
	*d = append((*d)[:0], v...)
	return nil
}

// ChannelNumber is the TURN CHANNEL-NUMBER attribute used in
// ChannelBind requests (RFC 5766 §14.1).
type ChannelNumberAttr uint16

func (c ChannelNumberAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], uint16(c))
	m.Add(attrChannelNumber, v)
	return nil
}

func (c *ChannelNumberAttr) GetFrom(m *stun.Message) error {
	v, err := m.Get(attrChannelNumber)
	if err != nil {
		return err
	}
	if len(v) < 2 {
		return stun.ErrAttributeSizeInvalid
	}
	*c = ChannelNumberAttr(binary.BigEndian.Uint16(v[0:2]))
	return nil
}
