package firewall

import (
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
)

// Layout names the binaries, tables and chains that rules are written to.
type Layout struct {
	NftBinary string
	Family    string
	Table     string
	Chain     string

	// Policy is the hook policy given to the chain when it has to be created.
	Policy string

	IptablesBinary string
	IptablesChain  string
}

// DefaultLayout targets the inbound chain of both backends.
func DefaultLayout() Layout {
	return Layout{
		NftBinary:      "nft",
		Family:         "inet",
		Table:          "filter",
		Chain:          "input",
		Policy:         "drop",
		IptablesBinary: "iptables",
		IptablesChain:  "INPUT",
	}
}

// Builder turns rule specifications into command lines for a single backend.
// It never runs anything.
type Builder struct {
	Backend Backend
	Layout  Layout
}

// NewBuilder returns a builder for backend using the default layout.
func NewBuilder(backend Backend) *Builder {
	return &Builder{Backend: backend, Layout: DefaultLayout()}
}

// Rule returns the command lines for an allow or drop rule. The first line
// accepts established and related connections, the second adds the rule.
func (b *Builder) Rule(spec RuleSpec) []CommandLine {
	if b.Backend == BackendNftables {
		return []CommandLine{
			b.nft("add", "rule", b.Layout.Family, b.Layout.Table, b.Layout.Chain, "ct", "state", "established,related", "accept"),
			b.nft(append([]string{"add", "rule", b.Layout.Family, b.Layout.Table, b.Layout.Chain}, b.Expression(spec)...)...),
		}
	}
	return []CommandLine{
		b.iptables("-A", b.Layout.IptablesChain, "-m", "conntrack", "--ctstate", "ESTABLISHED,RELATED", "-j", "ACCEPT"),
		b.iptables(append([]string{"-A", b.Layout.IptablesChain}, b.Expression(spec)...)...),
	}
}

// Delete returns the command line removing the rule that Rule added for spec.
func (b *Builder) Delete(spec RuleSpec) CommandLine {
	if b.Backend == BackendNftables {
		return b.nft(append([]string{"delete", "rule", b.Layout.Family, b.Layout.Table, b.Layout.Chain}, b.Expression(spec)...)...)
	}
	return b.iptables(append([]string{"-D", b.Layout.IptablesChain}, b.Expression(spec)...)...)
}

// Expression returns the match and verdict tokens for spec in the backend's
// native syntax. The source clause is only present when spec has a source.
func (b *Builder) Expression(spec RuleSpec) []string {
	port := strconv.Itoa(spec.Port)
	if b.Backend == BackendNftables {
		var expr []string
		if spec.Source != "" {
			expr = append(expr, addressFamily(spec.Source), "saddr", spec.Source)
		}
		verdict := "accept"
		if spec.Action == ActionDrop {
			verdict = "drop"
		}
		return append(expr, string(spec.Protocol), "dport", port, verdict)
	}

	expr := []string{"-p", string(spec.Protocol), "--dport", port}
	if spec.Source != "" {
		expr = append(expr, "-s", spec.Source)
	}
	target := "ACCEPT"
	if spec.Action == ActionDrop {
		target = "DROP"
	}
	return append(expr, "-j", target)
}

// DeleteHandle removes a ruleset rule by the handle nft assigned to it.
func (b *Builder) DeleteHandle(handle string) CommandLine {
	return b.nft("delete", "rule", b.Layout.Family, b.Layout.Table, b.Layout.Chain, "handle", handle)
}

// ListChain lists the inbound ruleset chain with rule handles.
func (b *Builder) ListChain() CommandLine {
	return b.nft("-a", "list", "chain", b.Layout.Family, b.Layout.Table, b.Layout.Chain)
}

// List returns the command printing the backend's full rule listing.
func (b *Builder) List() CommandLine {
	if b.Backend == BackendNftables {
		return b.nft("list", "ruleset")
	}
	return b.iptables("-L", "-n", "-v")
}

// Flush returns the command lines resetting the backend to an empty,
// accept-everything state.
func (b *Builder) Flush() []CommandLine {
	if b.Backend == BackendNftables {
		return []CommandLine{b.nft("flush", "ruleset")}
	}
	return []CommandLine{
		b.iptables("-F"),
		b.iptables("-Z"),
		b.iptables("-P", "INPUT", "ACCEPT"),
		b.iptables("-P", "FORWARD", "ACCEPT"),
		b.iptables("-P", "OUTPUT", "ACCEPT"),
		b.iptables("-t", "nat", "-F"),
	}
}

// Bootstrap returns the commands creating the ruleset table and inbound
// chain. The legacy backend has built-in chains and needs none.
func (b *Builder) Bootstrap() []CommandLine {
	if b.Backend != BackendNftables {
		return nil
	}
	return []CommandLine{
		b.nft("add", "table", b.Layout.Family, b.Layout.Table),
		b.nft("add", "chain", b.Layout.Family, b.Layout.Table, b.Layout.Chain,
			"{", "type", "filter", "hook", "input", "priority", "0", ";", "policy", b.Layout.Policy, ";", "}"),
	}
}

// Probe returns the read-only command used to check that the backend can be
// administered.
func (b *Builder) Probe() CommandLine {
	if b.Backend == BackendNftables {
		return b.nft("list", "ruleset")
	}
	return b.iptables("-L")
}

func (b *Builder) nft(args ...string) CommandLine {
	return append(CommandLine{b.Layout.NftBinary}, args...)
}

func (b *Builder) iptables(args ...string) CommandLine {
	return append(CommandLine{b.Layout.IptablesBinary}, args...)
}

// addressFamily picks the nft payload keyword for a source address.
func addressFamily(source string) string {
	host := source
	if i := strings.IndexByte(source, '/'); i >= 0 {
		host = source[:i]
	}
	if govalidator.IsIPv6(host) {
		return "ip6"
	}
	return "ip"
}
