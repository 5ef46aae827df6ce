package config

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ChainProfile is the economic profile of a real chain used as a preset.
type ChainProfile struct {
	Name           string  `yaml:"name" json:"name"`
	Reward         float64 `yaml:"reward" json:"reward"`
	Halving        int     `yaml:"halving" json:"halving"`
	BlockTime      float64 `yaml:"block_time" json:"block_time"`
	MaxTxPerBlock  int     `yaml:"max_tx_per_block" json:"max_tx_per_block"`
	BlockSizeLimit int     `yaml:"block_size_limit" json:"block_size_limit"`
	Description    string  `yaml:"description" json:"description"`
}

// WorkloadProfile is a preset transaction workload.
type WorkloadProfile struct {
	Wallets      int     `yaml:"wallets" json:"wallets"`
	Transactions int     `yaml:"transactions" json:"transactions"`
	Interval     float64 `yaml:"interval" json:"interval"`
	Description  string  `yaml:"description" json:"description"`
}

// Built-in presets. A halving of 0 means a static reward.
const chainProfilesYAML = `
BTC:
  name: Bitcoin
  reward: 50
  halving: 210000
  block_time: 600
  max_tx_per_block: 4000
  block_size_limit: 1048576
  description: Original Bitcoin with 10-minute block time
BCH:
  name: Bitcoin Cash
  reward: 12.5
  halving: 210000
  block_time: 600
  max_tx_per_block: 128000
  block_size_limit: 33554432
  description: Bitcoin Cash with larger blocks
LTC:
  name: Litecoin
  reward: 50
  halving: 840000
  block_time: 150
  max_tx_per_block: 4000
  block_size_limit: 1048576
  description: Litecoin with faster block time
DOGE:
  name: Dogecoin
  reward: 10000
  halving: 0
  block_time: 60
  max_tx_per_block: 4000
  block_size_limit: 1048576
  description: Dogecoin with static reward
MEMO:
  name: MEMO
  reward: 51.8457072
  halving: 9644000
  block_time: 3.27
  max_tx_per_block: 32000
  block_size_limit: 8388608
  description: MEMO with very fast block time
`

const workloadProfilesYAML = `
NONE:
  wallets: 0
  transactions: 0
  interval: 1.0
  description: No user transactions, mining only
SMALL:
  wallets: 10
  transactions: 10
  interval: 10.0
  description: "Small workload: 10 wallets, 10 transactions each, 10s interval"
MEDIUM:
  wallets: 1000
  transactions: 1000
  interval: 1.0
  description: "Medium workload: 1000 wallets, 1000 transactions each, 1s interval"
LARGE:
  wallets: 1000
  transactions: 1000
  interval: 0.01
  description: "Large workload: 1000 wallets, 1000 transactions each, 0.01s interval"
`

var (
	profilesOnce     sync.Once
	chainProfiles    map[string]ChainProfile
	workloadProfiles map[string]WorkloadProfile
)

func loadProfiles() {
	profilesOnce.Do(func() {
		if err := yaml.Unmarshal([]byte(chainProfilesYAML), &chainProfiles); err != nil {
			panic(fmt.Sprintf("config: built-in chain profiles: %v", err))
		}
		if err := yaml.Unmarshal([]byte(workloadProfilesYAML), &workloadProfiles); err != nil {
			panic(fmt.Sprintf("config: built-in workload profiles: %v", err))
		}
	})
}

// Chain returns a built-in chain profile. Unknown names fail fast.
func Chain(name string) (ChainProfile, error) {
	loadProfiles()
	p, ok := chainProfiles[name]
	if !ok {
		return ChainProfile{}, fmt.Errorf("config: unknown chain %q (known: %v)", name, ChainNames())
	}
	return p, nil
}

// Workload returns a built-in workload profile. Unknown names fail fast.
func Workload(name string) (WorkloadProfile, error) {
	loadProfiles()
	p, ok := workloadProfiles[name]
	if !ok {
		return WorkloadProfile{}, fmt.Errorf("config: unknown workload %q (known: %v)", name, WorkloadNames())
	}
	return p, nil
}

// ChainNames lists the built-in chain profiles in sorted order.
func ChainNames() []string {
	loadProfiles()
	names := make([]string, 0, len(chainProfiles))
	for name := range chainProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WorkloadNames lists the built-in workload profiles in sorted order.
func WorkloadNames() []string {
	loadProfiles()
	names := make([]string, 0, len(workloadProfiles))
	for name := range workloadProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyChain overlays a chain profile onto the configuration.
func (c *SimulationConfig) ApplyChain(p ChainProfile) {
	c.Reward = p.Reward
	c.Halving = p.Halving
	c.BlockTime = p.BlockTime
	c.BlockSize = p.MaxTxPerBlock
}

// ApplyWorkload overlays a workload profile onto the configuration.
func (c *SimulationConfig) ApplyWorkload(p WorkloadProfile) {
	c.Wallets = p.Wallets
	c.Transactions = p.Transactions
	c.Interval = p.Interval
}
