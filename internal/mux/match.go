package mux

// MatchFunc decides whether a packet's leading bytes belong to a given
// endpoint. It inspects buf without consuming it.
type MatchFunc func(buf []byte) bool

// MatchRange matches packets whose first byte falls within [lo, hi],
// inclusive — the classifier originally used to split STUN (whose leading
// byte's two high bits are always 0, RFC 5389 §6) from arbitrary
// application data sharing the same socket.
func MatchRange(lo, hi byte) MatchFunc {
	return func(buf []byte) bool {
		return len(buf) > 0 && buf[0] >= lo && buf[0] <= hi
	}
}

// MatchAny returns a MatchFunc that accepts any non-empty packet. Mux tries
// its endpoints in no fixed order, so a MatchAny endpoint also competes for
// packets that another endpoint's MatchFunc accepts.
func MatchAny() MatchFunc {
	return func(buf []byte) bool { return len(buf) > 0 }
}
