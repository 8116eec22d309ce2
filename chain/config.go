package chain

import (
	"fmt"
	"strconv"
)

// RPCConfig holds the connection parameters for an EVM JSON-RPC endpoint.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	ChainID  uint64 `json:"chain_id"`
	Network  string `json:"network"`
}

// NetworkPresets contains default RPC configurations for known networks.
var NetworkPresets = map[string]RPCConfig{
	"hyperevm":         {URL: "https://rpc.hyperliquid.xyz/evm", ChainID: 999},
	"hyperevm-testnet": {URL: "https://rpc.hyperliquid-testnet.xyz/evm", ChainID: 998},
	"local":            {URL: "http://localhost:8545", ChainID: 31337},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (AIRDROP_RPC_URL, AIRDROP_RPC_USER, AIRDROP_RPC_PASS, AIRDROP_CHAIN_ID)
//  3. Network presets (lowest priority)
//
// Unknown networks have no preset and need both a URL and a chain ID.
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v, ok := env["AIRDROP_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["AIRDROP_RPC_USER"]; ok && v != "" {
			result.User = v
		}
		if v, ok := env["AIRDROP_RPC_PASS"]; ok && v != "" {
			result.Password = v
		}
		if v, ok := env["AIRDROP_CHAIN_ID"]; ok && v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("chain: invalid AIRDROP_CHAIN_ID %q: %w", v, err)
			}
			result.ChainID = id
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
		if flags.ChainID != 0 {
			result.ChainID = flags.ChainID
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("chain: network %q requires explicit RPC configuration (set --rpc-url or AIRDROP_RPC_URL)", network)
	}
	if result.ChainID == 0 {
		return nil, fmt.Errorf("chain: network %q requires a chain ID (set --chain-id or AIRDROP_CHAIN_ID)", network)
	}
	return &result, nil
}
