package ice

import (
	"context"
	"math/rand"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lanikai/iceagent/ice/socket"
	"github.com/lanikai/iceagent/ice/wire"
	"github.com/lanikai/iceagent/internal/logging"
)

// discoveryJitter staggers the first request of each discovery item by a
// small random delay so a component with many local interfaces does not
// fire a burst of simultaneous Binding/Allocate requests at the STUN/TURN
// server (original_source/agent/discovery.c; see SPEC_FULL.md §9).
func discoveryJitter() time.Duration {
	return time.Duration(rand.Intn(20)) * time.Millisecond
}

// GatherConfig configures the discovery engine (spec.md §4.D).
type GatherConfig struct {
	Interfaces  []net.Interface // nil means "use all non-loopback, up interfaces"
	IncludeIPv6 bool
	PortMin     int
	PortMax     int
	STUNServers []net.Addr
	TURNServer  net.Addr
	TURNUser    string
	TURNPass    string
	Compat      Compatibility

	// ExtraAddrs holds addresses registered out of band via
	// Agent.AddLocalAddress (spec.md §6 add_local_address), bound in
	// addition to whatever local interfaces are otherwise discovered.
	ExtraAddrs []net.IP
}

// gatherHostCandidates enumerates local interfaces and binds one UDP socket
// per usable address, generalizing the teacher's base.go initializeBases.
func gatherHostCandidates(cfg GatherConfig, component int) ([]Candidate, []socket.Socket, error) {
	ifaces := cfg.Interfaces
	if ifaces == nil {
		var err error
		ifaces, err = net.Interfaces()
		if err != nil {
			return nil, nil, err
		}
	}

	var candidates []Candidate
	var sockets []socket.Socket

	bind := func(ip net.IP) {
		if ip.To4() == nil && !cfg.IncludeIPv6 {
			return
		}
		sock, err := socket.ListenUDPRange(ip, cfg.PortMin, cfg.PortMax)
		if err != nil {
			return
		}
		sockets = append(sockets, sock)

		base, err := transportAddressFromNetAddr(sock.LocalAddr(), UDP)
		if err != nil {
			return
		}

		c := Candidate{
			Type:      HostCandidate,
			Component: component,
			Addr:      base,
			ConnAddr:  base,
		}
		c.Foundation = computeFoundation(c.Type, base, UDP, TransportAddress{}, false)
		c.ComputePriority(cfg.Compat)
		candidates = append(candidates, c)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			bind(ipNet.IP)
		}
	}

	for _, ip := range cfg.ExtraAddrs {
		bind(ip)
	}

	return candidates, sockets, nil
}

// gatherServerReflexiveCandidate sends a Binding request through base to
// the one STUN server given and builds a srflx candidate from the
// XOR-MAPPED-ADDRESS of the first reply, per RFC 8445 §5.1.1.2.
func gatherServerReflexiveCandidate(ctx context.Context, base socket.Socket, server net.Addr, component int, compat Compatibility, log *logging.Logger) (Candidate, error) {
	// Server reflexive discovery requests carry no ICE credentials — an
	// unaffiliated public STUN server knows nothing of this agent's
	// ufrag/password and would simply ignore an authenticated request.
	req, txID, err := wire.NewBareBindingRequest()
	if err != nil {
		return Candidate{}, err
	}

	if _, err := base.WriteTo(req, server); err != nil {
		return Candidate{}, err
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		cctx, cancel := context.WithDeadline(ctx, deadline)
		raw, _, err := base.ReadFrom(cctx)
		cancel()
		if err != nil {
			if err == socket.ErrReadTimeout {
				continue
			}
			return Candidate{}, err
		}
		if !wire.IsSTUN(raw) {
			continue
		}
		resp, err := wire.Decode(raw)
		if err != nil {
			continue
		}
		if !wire.SameTransaction(resp, txID) {
			continue
		}
		mappedIP, mappedPort, err := wire.GetMappedAddress(resp)
		if err != nil {
			log.Debug("srflx: no mapped address in response from %v: %v", server, err)
			return Candidate{}, err
		}

		baseAddr, _ := transportAddressFromNetAddr(base.LocalAddr(), UDP)
		serverAddr, _ := transportAddressFromNetAddr(server, UDP)
		mappedAddr := TransportAddress{IP: mappedIP, Port: mappedPort, Protocol: UDP}

		c := Candidate{
			Type:        ServerReflexiveCandidate,
			Component:   component,
			Addr:        mappedAddr,
			RelatedAddr: baseAddr,
			hasRelated:  true,
			ConnAddr:    baseAddr,
		}
		c.Foundation = computeFoundation(c.Type, baseAddr, UDP, serverAddr, true)
		c.ComputePriority(compat)
		return c, nil
	}
	return Candidate{}, ErrNoLocalCandidates
}

// gatherAll runs host discovery then, in parallel per base, server
// reflexive discovery against every configured STUN server, using
// errgroup to fan out and join (replacing the teacher's manual
// sync.WaitGroup in gatherAllCandidates).
func gatherAll(ctx context.Context, cfg GatherConfig, component int, log *logging.Logger) ([]Candidate, []socket.Socket, error) {
	hosts, sockets, err := gatherHostCandidates(cfg, component)
	if err != nil {
		return nil, nil, err
	}

	candidates := append([]Candidate(nil), hosts...)

	if len(cfg.STUNServers) == 0 || len(sockets) == 0 {
		return candidates, sockets, nil
	}

	type result struct {
		c   Candidate
		err error
	}
	results := make([]result, 0, len(sockets)*len(cfg.STUNServers))
	resultsCh := make(chan result, len(sockets)*len(cfg.STUNServers))

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sockets {
		s := s
		for _, server := range cfg.STUNServers {
			server := server
			g.Go(func() error {
				time.Sleep(discoveryJitter())
				c, err := gatherServerReflexiveCandidate(gctx, s, server, component, cfg.Compat, log)
				resultsCh <- result{c, err}
				return nil // a single server's failure must not abort siblings
			})
		}
	}
	_ = g.Wait()
	close(resultsCh)
	for r := range resultsCh {
		if r.err == nil {
			results = append(results, r)
		}
	}

	seen := make(map[string]bool)
	for _, r := range results {
		key := r.c.Addr.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, r.c)
	}

	return candidates, sockets, nil
}
