package ice

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// CandidateType is the RFC 5245 §4.1.1 candidate type tag.
type CandidateType int

const (
	HostCandidate CandidateType = iota
	ServerReflexiveCandidate
	PeerReflexiveCandidate
	RelayedCandidate
)

func (t CandidateType) String() string {
	switch t {
	case HostCandidate:
		return "host"
	case ServerReflexiveCandidate:
		return "srflx"
	case PeerReflexiveCandidate:
		return "prflx"
	case RelayedCandidate:
		return "relay"
	default:
		return "unknown"
	}
}

func parseCandidateType(s string) (CandidateType, error) {
	switch s {
	case "host":
		return HostCandidate, nil
	case "srflx":
		return ServerReflexiveCandidate, nil
	case "prflx":
		return PeerReflexiveCandidate, nil
	case "relay":
		return RelayedCandidate, nil
	default:
		return 0, fmt.Errorf("ice: unknown candidate type %q", s)
	}
}

// Compatibility selects the wire/attribute dialect an agent speaks.
// SPEC_FULL narrows the original's five-way compatibility enum to the two
// the spec names; the type stays open so a future variant can be added
// without touching callers that only ever compare against these two.
type Compatibility int

const (
	CompatibilityRFC5245 Compatibility = iota
	CompatibilityOC2007R2
)

// typePreference returns the RFC 8445 §5.1.2.1 (or OC2007R2 equivalent)
// type-preference term of the priority formula.
func typePreference(t CandidateType, compat Compatibility) int {
	switch compat {
	case CompatibilityOC2007R2:
		// OC2007R2 favors relayed candidates over reflexive, since Lync
		// clients are usually behind symmetric NATs where srflx/prflx
		// pairs rarely succeed but the TURN-like relay always will.
		switch t {
		case HostCandidate:
			return 120
		case PeerReflexiveCandidate:
			return 100
		case ServerReflexiveCandidate:
			return 60
		case RelayedCandidate:
			return 110
		}
	default:
		switch t {
		case HostCandidate:
			return 120
		case PeerReflexiveCandidate:
			return 110
		case ServerReflexiveCandidate:
			return 100
		case RelayedCandidate:
			return 60
		}
	}
	return 0
}

// Candidate is a local or remote transport address offered for
// connectivity checks, per spec.md §3/§4.A.
type Candidate struct {
	Type          CandidateType
	Component     int
	Foundation    string
	Priority      uint32
	Addr          TransportAddress
	RelatedAddr   TransportAddress
	hasRelated    bool
	Ufrag         string
	LocalPref     uint16
	generation    int
	ConnAddr      TransportAddress // the socket's local listening address (base), used for foundation grouping
}

// ComputePriority fills in Priority per RFC 8445 §5.1.2.1:
//
//	priority = (2^24)*type_pref + (2^8)*local_pref + (256 - component_id)
func (c *Candidate) ComputePriority(compat Compatibility) {
	typePref := typePreference(c.Type, compat)
	localPref := int(c.LocalPref)
	if localPref == 0 {
		localPref = 65535
	}
	c.Priority = uint32((typePref << 24) + (localPref << 8) + (256 - c.Component))
}

// computeFoundation groups candidates sharing (type, base IP, protocol,
// rendezvous server) under the same foundation, per RFC 8445 §5.1.1.3. It
// is a pure hash instead of the teacher's index-assignment scheme so it
// stays stable across gathering passes started from different goroutines.
func computeFoundation(typ CandidateType, base TransportAddress, proto Protocol, server TransportAddress, hasServer bool) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%s/%s", typ, base.IP, proto)
	if hasServer {
		fmt.Fprintf(h, "/%s", server.IP)
	} else {
		h.Write([]byte("/none"))
	}
	return strconv.FormatUint(h.Sum64(), 32)[:8]
}

func (c *Candidate) isReflexive() bool {
	return c.Type == ServerReflexiveCandidate || c.Type == PeerReflexiveCandidate
}

// SDP renders the candidate attribute line defined by RFC 8839 §5.1,
// e.g. "candidate:4a9bdc01 1 udp 2113937151 192.0.2.1 54321 typ host".
func (c Candidate) SDP() string {
	var b strings.Builder
	fmt.Fprintf(&b, "candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.Component, c.Addr.Protocol, c.Priority, c.Addr.IP, c.Addr.Port, c.Type)
	if c.hasRelated {
		fmt.Fprintf(&b, " raddr %s rport %d", c.RelatedAddr.IP, c.RelatedAddr.Port)
	}
	return b.String()
}

func (c Candidate) String() string { return c.SDP() }

// ParseCandidateSDP parses a "candidate:..." attribute line, the inverse of
// Candidate.SDP. Related-address fields are optional.
func ParseCandidateSDP(line string) (Candidate, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "a=")
	s := bufio.NewScanner(strings.NewReader(line))
	s.Split(bufio.ScanWords)

	fields := make([]string, 0, 8)
	for s.Scan() {
		fields = append(fields, s.Text())
	}
	if len(fields) < 8 {
		return Candidate{}, fmt.Errorf("ice: malformed candidate line %q", line)
	}

	foundation := strings.TrimPrefix(fields[0], "candidate:")
	component, err := strconv.Atoi(fields[1])
	if err != nil {
		return Candidate{}, fmt.Errorf("ice: bad component in %q: %w", line, err)
	}
	var proto Protocol
	switch strings.ToLower(fields[2]) {
	case "udp":
		proto = UDP
	case "tcp":
		proto = TCP
	default:
		return Candidate{}, fmt.Errorf("ice: unknown protocol %q", fields[2])
	}
	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Candidate{}, fmt.Errorf("ice: bad priority in %q: %w", line, err)
	}
	addr, err := resolveHost(fields[4])
	if err != nil {
		return Candidate{}, err
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return Candidate{}, fmt.Errorf("ice: bad port in %q: %w", line, err)
	}
	if fields[6] != "typ" {
		return Candidate{}, fmt.Errorf("ice: expected \"typ\" in %q", line)
	}
	typ, err := parseCandidateType(fields[7])
	if err != nil {
		return Candidate{}, err
	}

	c := Candidate{
		Type:       typ,
		Component:  component,
		Foundation: foundation,
		Priority:   uint32(priority),
		Addr:       NewTransportAddress(addr, port, proto),
	}

	for i := 8; i+1 < len(fields); i += 2 {
		switch fields[i] {
		case "raddr":
			rip, err := resolveHost(fields[i+1])
			if err != nil {
				return Candidate{}, err
			}
			c.RelatedAddr.IP = rip
			c.hasRelated = true
		case "rport":
			rport, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return Candidate{}, fmt.Errorf("ice: bad rport in %q: %w", line, err)
			}
			c.RelatedAddr.Port = rport
		}
	}

	return c, nil
}
