package ice

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/pion/randutil"
)

// iceCharset is the character set used for ufrag/password generation,
// restricted to RFC 8445 §5.3's ice-char (ALPHA / DIGIT / "+" / "/").
const iceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// resolveHost parses a literal IP. SDP candidate lines occasionally carry a
// mDNS/DNS name instead (RFC 8839 §5.1), but resolving names is an explicit
// Non-goal (spec.md §1) — callers that need name resolution do it themselves
// before constructing a Candidate.
func resolveHost(host string) (net.IP, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("ice: %q is not a literal IP (name resolution is out of scope)", host)
	}
	return ip, nil
}

// generateUfrag produces an ICE username fragment per RFC 8445 §5.3's
// minimum-16-bits-of-randomness requirement; it draws from the same
// randomness source as candidate/pair tie-breaking, per spec.md's
// "randomness" external-collaborator carve-out.
func generateUfrag() (string, error) {
	return randutil.GenerateCryptoRandomString(8, iceCharset)
}

// generatePassword produces an ICE password per RFC 8445 §5.3 (at least 128
// bits of randomness).
func generatePassword() (string, error) {
	return randutil.GenerateCryptoRandomString(24, iceCharset)
}

// generateTieBreaker produces the 64-bit controlling/controlled tie-breaker
// value from RFC 8445 §16.
func generateTieBreaker() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
