// Package turn implements the TURN allocation lifecycle: the realm/nonce
// challenge handshake and the periodic refresh schedule (spec.md §4.H).
// Socket-level relaying (ChannelData/Send framing once an allocation
// exists) lives in ice/socket; this package owns only the timing and
// credential-retry state machine, grounded on
// original_source/agent/agent.c's refresh-timer handling.
package turn

import (
	"net"
	"time"

	"github.com/lanikai/iceagent/ice/wire"
)

// DefaultLifetime is the lifetime (seconds) requested on Allocate/Refresh
// when the caller does not specify one (RFC 5766 §2.2 recommends 600s).
const DefaultLifetime = 600

// refreshMargin is how long before expiry a refresh is sent: 60 seconds of
// slack before the allocation actually lapses.
const refreshMargin = 60 * time.Second

// Allocation tracks one TURN allocation's refresh schedule and the
// realm/nonce credential state the server assigned it.
type Allocation struct {
	Server   net.Addr
	Username string
	Password string

	realm string
	nonce string

	RelayedAddr net.Addr
	lifetime    time.Duration
	expiresAt   time.Time

	channels map[string]uint16
	nextChan uint16
}

func NewAllocation(server net.Addr, username, password string) *Allocation {
	return &Allocation{
		Server:   server,
		Username: username,
		Password: password,
		channels: make(map[string]uint16),
		nextChan: 0x4000,
	}
}

// BuildAllocateRequest returns the first, unauthenticated Allocate request;
// the caller sends it and feeds the 401 challenge response to
// HandleChallenge.
func (a *Allocation) BuildAllocateRequest() ([]byte, error) {
	m, err := wire.NewAllocateRequest()
	if err != nil {
		return nil, err
	}
	return m.Raw, nil
}

// HandleChallenge takes the realm and nonce carried by a 401 Unauthorized
// error response, stores them, and returns the authenticated retry.
func (a *Allocation) HandleChallenge(realm, nonce string) ([]byte, error) {
	a.realm, a.nonce = realm, nonce
	m, err := wire.NewAuthenticatedAllocateRequest(a.Username, a.realm, a.nonce, a.Password, DefaultLifetime)
	if err != nil {
		return nil, err
	}
	return m.Raw, nil
}

// HandleAllocateSuccess records the relayed address and lifetime from a
// successful Allocate response and arms the refresh schedule.
func (a *Allocation) HandleAllocateSuccess(relayed net.Addr, lifetime uint32) {
	a.RelayedAddr = relayed
	a.lifetime = time.Duration(lifetime) * time.Second
	a.expiresAt = time.Now().Add(a.lifetime)
}

// NeedsRefresh reports whether the allocation is close enough to expiry
// that a refresh should be sent now.
func (a *Allocation) NeedsRefresh(now time.Time) bool {
	return !a.expiresAt.IsZero() && now.Add(refreshMargin).After(a.expiresAt)
}

// BuildRefreshRequest returns a Refresh request asking for a lifetime of
// DefaultLifetime seconds.
func (a *Allocation) BuildRefreshRequest() ([]byte, error) {
	m, err := wire.NewRefreshRequest(a.Username, a.realm, a.nonce, a.Password, DefaultLifetime)
	if err != nil {
		return nil, err
	}
	return m.Raw, nil
}

// HandleStaleNonce takes the nonce carried by a 438 Stale Nonce error, updating the stored
// nonce so the next refresh attempt succeeds (RFC 5766 §7, retry-once).
func (a *Allocation) HandleStaleNonce(nonce string) {
	a.nonce = nonce
}

// HandleRefreshSuccess extends the expiry after a successful Refresh.
func (a *Allocation) HandleRefreshSuccess(lifetime uint32) {
	a.lifetime = time.Duration(lifetime) * time.Second
	a.expiresAt = time.Now().Add(a.lifetime)
	if lifetime == 0 {
		a.expiresAt = time.Time{}
	}
}

// BuildChannelBindRequest allocates the next available channel number for
// peer and returns the request to bind it (RFC 5766 §11.1); the caller
// records the binding in ice/socket's TURNSocket once it succeeds.
func (a *Allocation) BuildChannelBindRequest(peer net.Addr) (uint16, []byte, error) {
	key := peer.String()
	if ch, ok := a.channels[key]; ok {
		m, err := wire.NewChannelBindRequest(ch, ipOf(peer), portOf(peer), a.Username, a.realm, a.nonce, a.Password)
		if err != nil {
			return 0, nil, err
		}
		return ch, m.Raw, nil
	}
	ch := a.nextChan
	a.nextChan++
	a.channels[key] = ch
	m, err := wire.NewChannelBindRequest(ch, ipOf(peer), portOf(peer), a.Username, a.realm, a.nonce, a.Password)
	if err != nil {
		return 0, nil, err
	}
	return ch, m.Raw, nil
}

func ipOf(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.TCPAddr:
		return v.IP
	default:
		return nil
	}
}

func portOf(a net.Addr) int {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.Port
	case *net.TCPAddr:
		return v.Port
	default:
		return 0
	}
}
