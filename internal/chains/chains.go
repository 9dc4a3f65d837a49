// Package chains holds the supported-network registry and the trusted
// protocol table. Both are built once at startup from configuration and
// passed explicitly into the services that need them.
package chains

import (
	"fmt"
	"strings"
)

// ChainID identifies a supported network.
type ChainID string

const (
	Ethereum ChainID = "ethereum"
	BSC      ChainID = "bsc"
	Polygon  ChainID = "polygon"
	Arbitrum ChainID = "arbitrum"
	Base     ChainID = "base"
)

// Config describes one supported chain's provider endpoints.
type Config struct {
	ID          ChainID
	Name        string
	SecurityID  string // numeric chain id used by the token-security provider
	ExplorerURL string // explorer API base URL
	ExplorerKey string
	RPCURL      string
}

// Registry resolves chain configuration and trusted spender protocols.
type Registry struct {
	chains  map[ChainID]Config
	trusted map[string]string // lowercase address -> protocol name
}

// defaultChains is the built-in chain table. Explorer keys and RPC URLs
// are filled in from configuration by NewRegistry.
var defaultChains = []Config{
	{ID: Ethereum, Name: "Ethereum", SecurityID: "1", ExplorerURL: "https://api.etherscan.io/api"},
	{ID: BSC, Name: "BNB Smart Chain", SecurityID: "56", ExplorerURL: "https://api.bscscan.com/api"},
	{ID: Polygon, Name: "Polygon", SecurityID: "137", ExplorerURL: "https://api.polygonscan.com/api"},
	{ID: Arbitrum, Name: "Arbitrum One", SecurityID: "42161", ExplorerURL: "https://api.arbiscan.io/api"},
	{ID: Base, Name: "Base", SecurityID: "8453", ExplorerURL: "https://api.basescan.org/api"},
}

// defaultTrustedProtocols maps well-known spender contracts to protocol names.
// Addresses are checked case-insensitively.
var defaultTrustedProtocols = map[string]string{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "Uniswap V2 Router",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "Uniswap V3 Router 2",
	"0x000000000022d473030f116ddee9f6b43ac78ba3": "Permit2",
	"0x1111111254eeb25477b68fb85ed929f73a960582": "1inch Router",
	"0xdef1c0ded9bec7f1a1670819833240f027b25eff": "0x Exchange Proxy",
	"0x00000000006c3852cbef3e08e8df289169ede581": "OpenSea Seaport",
	"0x10ed43c718714eb63d5aa57b78b54704e256024e": "PancakeSwap Router",
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "SushiSwap Router",
}

// Overrides carries per-chain settings sourced from configuration.
type Overrides struct {
	ExplorerKeys map[ChainID]string
	RPCURLs      map[ChainID]string
	ExplorerURLs map[ChainID]string
}

// NewRegistry builds the chain registry, applying configuration overrides
// on top of the built-in tables.
func NewRegistry(ov Overrides) *Registry {
	r := &Registry{
		chains:  make(map[ChainID]Config, len(defaultChains)),
		trusted: make(map[string]string, len(defaultTrustedProtocols)),
	}
	for _, c := range defaultChains {
		if key, ok := ov.ExplorerKeys[c.ID]; ok {
			c.ExplorerKey = key
		}
		if rpc, ok := ov.RPCURLs[c.ID]; ok {
			c.RPCURL = rpc
		}
		if u, ok := ov.ExplorerURLs[c.ID]; ok {
			c.ExplorerURL = u
		}
		r.chains[c.ID] = c
	}
	for addr, name := range defaultTrustedProtocols {
		r.trusted[strings.ToLower(addr)] = name
	}
	return r
}

// Get returns the configuration for a chain.
func (r *Registry) Get(id ChainID) (Config, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// Supported reports whether the chain id is known.
func (r *Registry) Supported(id ChainID) bool {
	_, ok := r.chains[id]
	return ok
}

// TrustedProtocol returns the protocol name for a known spender address.
func (r *Registry) TrustedProtocol(addr string) (string, bool) {
	name, ok := r.trusted[strings.ToLower(addr)]
	return name, ok
}

// Parse validates a chain identifier string.
func Parse(s string) (ChainID, error) {
	id := ChainID(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range defaultChains {
		if c.ID == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("unsupported chain %q", s)
}
