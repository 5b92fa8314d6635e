package main

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

var (
	flagControlling bool
	flagAggressive  bool
	flagCompat      string
	flagComponents  int
	flagSTUNAddress string
	flagTURNAddress string
	flagTURNUser    string
	flagTURNPass    string
	flagHelp        bool
	flagVersion     bool
)

func init() {
	flag.BoolVarP(&flagControlling, "controlling", "c", false, "Take the controlling ICE role")
	flag.BoolVarP(&flagAggressive, "aggressive", "a", false, "Use aggressive nomination")
	flag.StringVarP(&flagCompat, "compat", "p", "rfc5245", "Compatibility dialect: rfc5245 or oc2007r2")
	flag.IntVarP(&flagComponents, "components", "n", 1, "Number of components on the stream")
	flag.StringVarP(&flagSTUNAddress, "stun-address", "s", "", "STUN server address (host:port)")
	flag.StringVarP(&flagTURNAddress, "turn-address", "t", "", "TURN server address (host:port)")
	flag.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	flag.StringVarP(&flagTURNPass, "turn-pass", "k", "", "TURN password")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Manual connectivity-check exerciser for the ice agent

Usage: ice-agent [OPTION]...

Paste the candidate block this side prints onto the other side's stdin,
and paste the other side's block back here, to run a connectivity check
between two manually-bridged agents.

Role:
  -c, --controlling        Take the controlling role (default: controlled)
  -a, --aggressive         Use aggressive nomination (default: regular)
  -p, --compat=DIALECT     rfc5245 or oc2007r2 (default: rfc5245)
  -n, --components=NUM     Number of components (default: 1)

Servers:
  -s, --stun-address=ADDR  STUN server address
  -t, --turn-address=ADDR  TURN server address
  -u, --turn-user=USER     TURN username
  -k, --turn-pass=PASS     TURN password

Miscellaneous:
  -h, --help               Prints this help message and exits
  -v, --version            Prints version information and exits
`

func help() {
	fmt.Print(helpString)
}

const version = "ice-agent 0.1.0"

func printVersion() {
	fmt.Println(version)
}
