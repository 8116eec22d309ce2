// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/plan"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. Values
// that are only needed by some commands may be empty; see Require.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if _, ok := chain.NetworkPresets[cfg.Network]; !ok && (cfg.RPCURL == "" || cfg.ChainID == 0) {
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, cfg.Network)
	}

	for name, addr := range map[string]string{
		"token":       cfg.Token,
		"distributor": cfg.Distributor,
		"presale":     cfg.Presale,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: %s %q", ErrInvalidAddress, name, addr)
		}
	}

	if cfg.BatchSize < 1 {
		return ErrInvalidBatchSize
	}
	if cfg.BatchDelay < 0 {
		return ErrInvalidBatchDelay
	}
	if cfg.Decimals < 0 || cfg.Decimals > plan.MaxDecimals {
		return ErrInvalidDecimals
	}
	if cfg.Rate != "" {
		if _, err := plan.ParseRate(cfg.Rate); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRate, err)
		}
	}
	if cfg.LogRange == 0 {
		return ErrInvalidLogRange
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMetricsAddr, err)
		}
	}

	return nil
}

// Require reports ErrMissingValue for the first named key that is empty.
// Names are the config file keys.
func Require(cfg Config, keys ...string) error {
	values := make(map[string]string)
	for _, kv := range cfg.pairs() {
		values[kv[0]] = kv[1]
	}
	for _, k := range keys {
		if v, ok := values[k]; !ok || v == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, k)
		}
	}
	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
