package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/lanikai/iceagent/ice"
)

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		printVersion()
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	compat, err := parseCompat(flagCompat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	nomination := ice.NominationRegular
	if flagAggressive {
		nomination = ice.NominationAggressive
	}

	gather := ice.GatherConfig{Compat: compat}
	if flagSTUNAddress != "" {
		addr, err := net.ResolveUDPAddr("udp", flagSTUNAddress)
		if err != nil {
			log.Fatalf("resolve stun address: %v", err)
		}
		gather.STUNServers = []net.Addr{addr}
	}
	if flagTURNAddress != "" {
		addr, err := net.ResolveUDPAddr("udp", flagTURNAddress)
		if err != nil {
			log.Fatalf("resolve turn address: %v", err)
		}
		gather.TURNServer = addr
		gather.TURNUser = flagTURNUser
		gather.TURNPass = flagTURNPass
	}

	agent, err := ice.NewAgent(ice.Config{
		Compat:      compat,
		Controlling: flagControlling,
		Nomination:  nomination,
		Gather:      gather,
	})
	if err != nil {
		log.Fatalf("new agent: %v", err)
	}
	defer agent.Close()

	stream, err := agent.CreateStream("data", flagComponents)
	if err != nil {
		log.Fatalf("create stream: %v", err)
	}

	go printEvents(agent)

	if err := agent.GatherCandidates(stream.ID); err != nil {
		log.Fatalf("gather candidates: %v", err)
	}

	// Give discovery a moment to finish before printing the local block;
	// GatheringComplete also arrives as an event, logged by printEvents.
	time.Sleep(500 * time.Millisecond)

	printLocalBlock(agent, stream)

	stdin := bufio.NewScanner(os.Stdin)
	remoteUfrag, remotePassword, remoteCands := readRemoteBlock(stdin)
	if err := agent.SetRemoteCredentials(stream.ID, remoteUfrag, remotePassword); err != nil {
		log.Fatalf("set remote credentials: %v", err)
	}

	byComponent := make(map[int][]ice.Candidate)
	for _, c := range remoteCands {
		byComponent[c.Component] = append(byComponent[c.Component], c)
	}
	for component, cands := range byComponent {
		n, err := agent.SetRemoteCandidates(stream.ID, component, cands)
		if err != nil {
			log.Fatalf("set remote candidates: %v", err)
		}
		log.Printf("added %d remote candidate(s) for component %d", n, component)
		if err := agent.EndOfCandidates(stream.ID, component); err != nil {
			log.Fatalf("end of candidates: %v", err)
		}
	}

	for i := 1; i <= flagComponents; i++ {
		i := i
		if err := agent.AttachRecv(stream.ID, i, func(data []byte) {
			fmt.Printf("[component %d] %s\n", i, string(data))
		}); err != nil {
			log.Fatalf("attach recv: %v", err)
		}
	}

	log.Println("ready; type a line to send it on component 1, ctrl-d to quit")
	for stdin.Scan() {
		if _, err := agent.Send(stream.ID, 1, stdin.Bytes()); err != nil {
			log.Printf("send: %v", err)
		}
	}
}

func parseCompat(s string) (ice.Compatibility, error) {
	switch strings.ToLower(s) {
	case "rfc5245", "":
		return ice.CompatibilityRFC5245, nil
	case "oc2007r2":
		return ice.CompatibilityOC2007R2, nil
	default:
		return 0, fmt.Errorf("unknown compatibility dialect %q", s)
	}
}

func printEvents(agent *ice.Agent) {
	for ev := range agent.Events() {
		switch ev.Kind {
		case ice.EventGatheringStateChanged:
			log.Printf("gathering state: %s", ev.GatheringStat)
		case ice.EventNewLocalCandidate:
			log.Printf("local candidate: %s", ev.Candidate.SDP())
		case ice.EventComponentStateChanged:
			log.Printf("component %d state: %s", ev.ComponentID, ev.ComponentStat)
		case ice.EventCandidatePairSelected:
			log.Printf("component %d selected pair: %s", ev.ComponentID, ev.Pair)
		case ice.EventNominationFailed:
			log.Printf("nomination failed: %v", ev.Err)
		}
	}
}

// printLocalBlock prints this agent's ufrag, password and local candidates
// as a self-delimited block the peer pastes back in, since there is no
// signaling channel wired into this standalone tool.
func printLocalBlock(agent *ice.Agent, stream *ice.Stream) {
	fmt.Fprintln(os.Stderr, "--- paste this block to the remote peer ---")
	fmt.Printf("ice-ufrag:%s\n", stream.LocalUfrag)
	fmt.Printf("ice-pwd:%s\n", stream.LocalPassword)
	for i := 1; i <= flagComponents; i++ {
		cands, err := agent.GetLocalCandidates(stream.ID, i)
		if err != nil {
			log.Fatalf("get local candidates: %v", err)
		}
		for _, c := range cands {
			fmt.Printf("a=%s\n", c.SDP())
		}
	}
	fmt.Fprintln(os.Stderr, "--- end of block; append remote block + blank line below ---")
}

// readRemoteBlock reads "ice-ufrag:", "ice-pwd:" and "a=candidate:" lines
// until a blank line or EOF, the inverse of printLocalBlock.
func readRemoteBlock(scanner *bufio.Scanner) (ufrag, password string, cands []ice.Candidate) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			return
		case strings.HasPrefix(line, "ice-ufrag:"):
			ufrag = strings.TrimPrefix(line, "ice-ufrag:")
		case strings.HasPrefix(line, "ice-pwd:"):
			password = strings.TrimPrefix(line, "ice-pwd:")
		case strings.HasPrefix(line, "a=candidate:") || strings.HasPrefix(line, "candidate:"):
			c, err := ice.ParseCandidateSDP(line)
			if err != nil {
				log.Printf("skipping malformed candidate line %q: %v", line, err)
				continue
			}
			cands = append(cands, c)
		}
	}
	return
}
