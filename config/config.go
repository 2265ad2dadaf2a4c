package config

import (
	"os"
	"sync"

	"emperror.dev/errors"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v2"

	"github.com/priyxstudio/portwall/firewall"
)

var (
	mu      sync.RWMutex
	_config *Configuration
)

// PrivilegeConfiguration defines how firewall commands are elevated.
type PrivilegeConfiguration struct {
	// The command every firewall invocation is prefixed with. An empty value
	// runs the firewall binaries directly, which requires running as root.
	Command string `default:"sudo" yaml:"command"`

	// Extra arguments passed to the privilege command before the firewall
	// binary, for example "-n" to make sudo fail instead of prompting.
	Args []string `yaml:"args"`
}

// NftablesConfiguration names the table and chain rules are added to on the
// ruleset backend.
type NftablesConfiguration struct {
	Binary string `default:"nft" yaml:"binary"`
	Family string `default:"inet" yaml:"family"`
	Table  string `default:"filter" yaml:"table"`
	Chain  string `default:"input" yaml:"chain"`

	// The hook policy used when the input chain has to be created.
	Policy string `default:"drop" yaml:"policy"`
}

// IptablesConfiguration names the chain rules are added to on the legacy
// backend.
type IptablesConfiguration struct {
	Binary string `default:"iptables" yaml:"binary"`
	Chain  string `default:"INPUT" yaml:"chain"`
}

type Configuration struct {
	// The location from which this configuration was loaded, empty when only
	// defaults are in use.
	path string

	// Determines if debug level logging is enabled.
	Debug bool `default:"false" yaml:"debug"`

	// Forces a firewall backend ("nftables" or "iptables") instead of
	// detecting one at startup.
	Backend string `yaml:"backend"`

	Privilege PrivilegeConfiguration `yaml:"privilege"`
	Nftables  NftablesConfiguration  `yaml:"nftables"`
	Iptables  IptablesConfiguration  `yaml:"iptables"`
}

// NewAtPath returns a configuration holding only default values that reports
// path as its origin.
func NewAtPath(path string) (*Configuration, error) {
	var c Configuration
	if err := defaults.Set(&c); err != nil {
		return nil, errors.Wrap(err, "config: failed to apply defaults")
	}
	c.path = path
	return &c, nil
}

// FromFile reads the YAML configuration at path on top of the defaults.
func FromFile(path string) (*Configuration, error) {
	c, err := NewAtPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: failed to read config file")
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "config: failed to parse %s", path)
	}
	if c.Backend != "" {
		if _, err := firewall.ParseBackend(c.Backend); err != nil {
			return nil, errors.WithMessage(err, "config")
		}
	}
	return c, nil
}

// Set replaces the global configuration.
func Set(c *Configuration) {
	mu.Lock()
	defer mu.Unlock()
	_config = c
}

// Get returns a copy of the global configuration, or the defaults if none has
// been set.
func Get() *Configuration {
	mu.RLock()
	if _config == nil {
		mu.RUnlock()
		c, _ := NewAtPath("")
		return c
	}
	c := *_config
	mu.RUnlock()
	return &c
}

// GetPath returns the location the configuration was loaded from.
func (c *Configuration) GetPath() string {
	return c.path
}

// Layout converts the table and chain settings into a firewall.Layout.
func (c *Configuration) Layout() firewall.Layout {
	return firewall.Layout{
		NftBinary:      c.Nftables.Binary,
		Family:         c.Nftables.Family,
		Table:          c.Nftables.Table,
		Chain:          c.Nftables.Chain,
		Policy:         c.Nftables.Policy,
		IptablesBinary: c.Iptables.Binary,
		IptablesChain:  c.Iptables.Chain,
	}
}
