package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/priyxstudio/portwall/firewall"
)

type recordingRunner struct {
	calls  []string
	fail   map[string]string
	stdout map[string]string
}

func (r *recordingRunner) Run(_ context.Context, argv []string, stdout, stderr io.Writer) error {
	cmd := strings.Join(argv, " ")
	r.calls = append(r.calls, cmd)
	for k, v := range r.stdout {
		if strings.Contains(cmd, k) {
			io.WriteString(stdout, v)
		}
	}
	for k, v := range r.fail {
		if strings.Contains(cmd, k) {
			io.WriteString(stderr, v)
			return errors.New("exit status 1")
		}
	}
	return nil
}

type result struct {
	stdout string
	stderr string
	err    error
	calls  []string
}

func execute(r *recordingRunner, stdin string, args ...string) result {
	if r.fail == nil {
		r.fail = map[string]string{}
	}
	command := newRootCommand(&app{runner: r})

	var stdout, stderr bytes.Buffer
	command.SetArgs(args)
	command.SetIn(strings.NewReader(stdin))
	command.SetOut(&stdout)
	command.SetErr(&stderr)

	err := command.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err, calls: r.calls}
}

func TestAllowOnNftables(t *testing.T) {
	res := execute(&recordingRunner{}, "", "allow", "tcp", "443")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}

	expected := []string{
		"sudo nft list ruleset",
		"sudo nft add table inet filter",
		"sudo nft add chain inet filter input { type filter hook input priority 0 ; policy drop ; }",
		"sudo nft add rule inet filter input ct state established,related accept",
		"sudo nft add rule inet filter input tcp dport 443 accept",
	}
	if strings.Join(res.calls, "\n") != strings.Join(expected, "\n") {
		t.Fatalf("unexpected commands:\n%s", strings.Join(res.calls, "\n"))
	}
}

func TestDropFallsBackToIptables(t *testing.T) {
	r := &recordingRunner{fail: map[string]string{"nft": "sudo: nft: command not found"}}
	res := execute(r, "", "drop", "udp", "53", "--source", "10.0.0.0/24")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}

	expected := []string{
		"sudo nft list ruleset",
		"sudo iptables -L",
		"sudo iptables -A INPUT -m conntrack --ctstate ESTABLISHED,RELATED -j ACCEPT",
		"sudo iptables -A INPUT -p udp --dport 53 -s 10.0.0.0/24 -j DROP",
	}
	if strings.Join(res.calls, "\n") != strings.Join(expected, "\n") {
		t.Fatalf("unexpected commands:\n%s", strings.Join(res.calls, "\n"))
	}
}

func TestDeleteWithForcedBackend(t *testing.T) {
	res := execute(&recordingRunner{}, "", "delete", "drop", "udp", "53", "--source", "10.0.0.0/24", "--backend", "iptables")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if len(res.calls) != 1 || res.calls[0] != "sudo iptables -D INPUT -p udp --dport 53 -s 10.0.0.0/24 -j DROP" {
		t.Fatalf("unexpected commands: %#v", res.calls)
	}
}

func TestSudoFlagOverride(t *testing.T) {
	res := execute(&recordingRunner{}, "", "allow", "tcp", "22", "--backend", "iptables", "--sudo", "")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if res.calls[1] != "iptables -A INPUT -p tcp --dport 22 -j ACCEPT" {
		t.Fatalf("expected no privilege prefix, got %q", res.calls[1])
	}
}

func TestMalformedArgumentsNeverReachBackend(t *testing.T) {
	cases := [][]string{
		{"allow", "tcp"},
		{"allow", "icmp", "22"},
		{"allow", "tcp", "http"},
		{"drop", "udp", "70000"},
		{"delete", "reject", "tcp", "22"},
		{"delete", "allow", "tcp"},
		{"list", "extra"},
		{"allow", "tcp", "22", "--backend", "ufw"},
	}

	for _, args := range cases {
		r := &recordingRunner{}
		res := execute(r, "", args...)
		if res.err == nil {
			t.Fatalf("%v: expected an error", args)
		}
		if len(res.calls) != 0 {
			t.Fatalf("%v: expected no commands, got %#v", args, res.calls)
		}
	}
}

func TestDetectionFailure(t *testing.T) {
	r := &recordingRunner{fail: map[string]string{"nft": "not found", "iptables": "not found"}}
	res := execute(r, "", "list")
	if !errors.Is(res.err, firewall.ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", res.err)
	}

	var buf bytes.Buffer
	reportError(&buf, res.err)
	if !strings.Contains(buf.String(), "sudo") {
		t.Fatalf("expected guidance about sudo, got %q", buf.String())
	}
}

func TestCommandFailureIsNotFatal(t *testing.T) {
	r := &recordingRunner{fail: map[string]string{"ESTABLISHED": "iptables: No chain/target/match by that name."}}
	res := execute(r, "", "allow", "tcp", "80", "--backend", "iptables")
	if res.err != nil {
		t.Fatalf("expected command failures to be non-fatal, got %v", res.err)
	}
	if len(res.calls) != 2 {
		t.Fatalf("expected both rules to run, got %#v", res.calls)
	}
	if !strings.Contains(res.stderr, "No chain/target/match") {
		t.Fatalf("expected stderr to be surfaced, got %q", res.stderr)
	}
}

func TestList(t *testing.T) {
	r := &recordingRunner{stdout: map[string]string{"list ruleset": "table inet filter {\n}\n"}}
	res := execute(r, "", "list")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if !strings.Contains(res.stdout, "table inet filter {") {
		t.Fatalf("expected listing in output, got %q", res.stdout)
	}
}

func TestFlushConfirmation(t *testing.T) {
	cases := map[string]bool{
		"s\n":   true,
		"S\n":   true,
		"s":     true,
		"s\r\n": true,
		"\n":    false,
		"":      false,
		"n\n":   false,
		"sim\n": false,
		" s\n":  false,
		"yes\n": false,
	}

	for input, proceed := range cases {
		res := execute(&recordingRunner{}, input, "flush", "--backend", "nftables")
		if res.err != nil {
			t.Fatalf("%q: expected no error, got %v", input, res.err)
		}

		flushed := len(res.calls) == 1 && res.calls[0] == "sudo nft flush ruleset"
		if proceed != flushed {
			t.Fatalf("%q: expected flush=%v, got commands %#v", input, proceed, res.calls)
		}
		if !proceed && !strings.Contains(res.stdout, "cancelled") {
			t.Fatalf("%q: expected a cancellation message, got %q", input, res.stdout)
		}
	}
}

func TestFlushIptables(t *testing.T) {
	res := execute(&recordingRunner{}, "s\n", "flush", "--backend", "iptables")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if len(res.calls) != 6 || res.calls[5] != "sudo iptables -t nat -F" {
		t.Fatalf("unexpected commands: %#v", res.calls)
	}
}

func TestStatus(t *testing.T) {
	res := execute(&recordingRunner{}, "", "status")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if !strings.Contains(res.stdout, "nftables (detected)") || !strings.Contains(res.stdout, "(defaults)") || !strings.Contains(res.stdout, "sudo") {
		t.Fatalf("unexpected status output: %q", res.stdout)
	}
}

func TestStatusReportsConfiguredBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portwall.yml")
	if err := os.WriteFile(path, []byte("backend: iptables\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res := execute(&recordingRunner{}, "", "status", "--config", path)
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if len(res.calls) != 0 {
		t.Fatalf("expected no detection probes, got %#v", res.calls)
	}
	if !strings.Contains(res.stdout, "iptables (configured)") || !strings.Contains(res.stdout, path) {
		t.Fatalf("unexpected status output: %q", res.stdout)
	}
}

func TestHelpSkipsDetection(t *testing.T) {
	r := &recordingRunner{fail: map[string]string{"nft": "not found", "iptables": "not found"}}
	res := execute(r, "", "help", "allow")
	if res.err != nil {
		t.Fatalf("expected no error, got %v", res.err)
	}
	if len(res.calls) != 0 {
		t.Fatalf("expected no commands, got %#v", res.calls)
	}
	if !strings.Contains(res.stdout, "allow") {
		t.Fatalf("expected usage output, got %q", res.stdout)
	}
}
