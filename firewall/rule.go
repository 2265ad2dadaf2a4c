package firewall

import (
	"strconv"
	"strings"

	"emperror.dev/errors"
)

// Backend identifies the packet filter administered on this host.
type Backend string

const (
	// BackendNftables is the ruleset-based filter administered with nft.
	BackendNftables Backend = "nftables"
	// BackendIptables is the legacy rule-list filter administered with iptables.
	BackendIptables Backend = "iptables"
)

// ParseBackend returns the backend matching name.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(name)) {
	case BackendNftables:
		return BackendNftables, nil
	case BackendIptables:
		return BackendIptables, nil
	}
	return "", errors.Errorf("invalid backend: %s (must be 'nftables' or 'iptables')", name)
}

// Action represents what happens to traffic matched by a rule.
type Action string

const (
	// ActionAllow accepts matching traffic.
	ActionAllow Action = "allow"
	// ActionDrop silently discards matching traffic.
	ActionDrop Action = "drop"
)

// ParseAction validates that action is allow or drop.
func ParseAction(action string) (Action, error) {
	switch Action(action) {
	case ActionAllow, ActionDrop:
		return Action(action), nil
	}
	return "", errors.Errorf("invalid action: %s (must be 'allow' or 'drop')", action)
}

// Protocol is the transport protocol a rule matches.
type Protocol string

const (
	// ProtocolTCP matches TCP segments.
	ProtocolTCP Protocol = "tcp"
	// ProtocolUDP matches UDP datagrams.
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol validates that protocol is tcp or udp.
func ParseProtocol(protocol string) (Protocol, error) {
	switch Protocol(protocol) {
	case ProtocolTCP, ProtocolUDP:
		return Protocol(protocol), nil
	}
	return "", errors.Errorf("invalid protocol: %s (must be 'tcp' or 'udp')", protocol)
}

// ParsePort converts a port argument into an integer between 0 and 65535.
func ParsePort(port string) (int, error) {
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, errors.Errorf("invalid port: %s (must be an integer between 0 and 65535)", port)
	}
	return int(p), nil
}

// RuleSpec is a single port rule as requested on the command line. Source is
// an IP address or CIDR block and is empty when the rule matches any source.
type RuleSpec struct {
	Action   Action
	Protocol Protocol
	Port     int
	Source   string
}

func (r RuleSpec) String() string {
	s := string(r.Action) + " " + string(r.Protocol) + "/" + strconv.Itoa(r.Port)
	if r.Source != "" {
		s += " from " + r.Source
	}
	return s
}

// CommandLine is the argument vector of one invocation of a firewall
// administration binary, binary name first.
type CommandLine []string

func (c CommandLine) String() string {
	return strings.Join(c, " ")
}
