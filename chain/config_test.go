package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkPresets(t *testing.T) {
	tests := []struct {
		network string
		url     string
		chainID uint64
	}{
		{"hyperevm", "https://rpc.hyperliquid.xyz/evm", 999},
		{"hyperevm-testnet", "https://rpc.hyperliquid-testnet.xyz/evm", 998},
		{"local", "http://localhost:8545", 31337},
	}
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			preset, ok := NetworkPresets[tt.network]
			require.True(t, ok, "preset should exist for %s", tt.network)
			assert.Equal(t, tt.url, preset.URL)
			assert.Equal(t, tt.chainID, preset.ChainID)
		})
	}
}

func TestResolveConfigFlagsOverrideAll(t *testing.T) {
	flags := &RPCConfig{URL: "http://custom:9999", User: "me", Password: "secret", ChainID: 5}
	env := map[string]string{"AIRDROP_RPC_URL": "http://env:1", "AIRDROP_CHAIN_ID": "7"}
	cfg, err := ResolveConfig(flags, env, "local")
	require.NoError(t, err)
	assert.Equal(t, "http://custom:9999", cfg.URL)
	assert.Equal(t, "me", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, uint64(5), cfg.ChainID)
	assert.Equal(t, "local", cfg.Network)
}

func TestResolveConfigEnvOverridesPreset(t *testing.T) {
	env := map[string]string{
		"AIRDROP_RPC_URL":  "http://env-node:8545",
		"AIRDROP_RPC_USER": "envuser",
	}
	cfg, err := ResolveConfig(nil, env, "hyperevm")
	require.NoError(t, err)
	assert.Equal(t, "http://env-node:8545", cfg.URL)
	assert.Equal(t, "envuser", cfg.User)
	assert.Equal(t, uint64(999), cfg.ChainID) // falls through to preset
}

func TestResolveConfigPresetFallback(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil, "hyperevm-testnet")
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.hyperliquid-testnet.xyz/evm", cfg.URL)
	assert.Equal(t, uint64(998), cfg.ChainID)
}

func TestResolveConfigUnknownNetwork(t *testing.T) {
	_, err := ResolveConfig(nil, nil, "mainnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires explicit RPC configuration")

	_, err = ResolveConfig(&RPCConfig{URL: "http://x"}, nil, "mainnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a chain ID")

	cfg, err := ResolveConfig(&RPCConfig{URL: "http://x", ChainID: 1}, nil, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
}

func TestResolveConfigBadChainIDEnv(t *testing.T) {
	_, err := ResolveConfig(nil, map[string]string{"AIRDROP_CHAIN_ID": "abc"}, "local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AIRDROP_CHAIN_ID")
}
