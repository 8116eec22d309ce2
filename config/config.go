// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads airdrop settings from a key = value file in the data
// directory, overlaid with AIRDROP_* environment variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bitfsorg/libairdrop-go/distribute"
	"github.com/bitfsorg/libairdrop-go/loader"
	"github.com/bitfsorg/libairdrop-go/plan"
)

// Config holds every setting the airdrop command needs.
type Config struct {
	DataDir     string        `env:"AIRDROP_DATADIR"`
	Network     string        `env:"AIRDROP_NETWORK"`
	RPCURL      string        `env:"AIRDROP_RPC_URL"`
	ChainID     uint64        `env:"AIRDROP_CHAIN_ID"`
	Token       string        `env:"AIRDROP_TOKEN"`
	Distributor string        `env:"AIRDROP_DISTRIBUTOR"`
	Presale     string        `env:"AIRDROP_PRESALE"`
	BatchSize   int           `env:"AIRDROP_BATCH_SIZE"`
	BatchDelay  time.Duration `env:"AIRDROP_BATCH_DELAY"`
	Decimals    int           `env:"AIRDROP_DECIMALS"`
	Rate        string        `env:"AIRDROP_RATE"`
	FromBlock   uint64        `env:"AIRDROP_FROM_BLOCK"`
	LogRange    uint64        `env:"AIRDROP_LOG_RANGE"`
	LogLevel    string        `env:"AIRDROP_LOG_LEVEL"`
	MetricsAddr string        `env:"AIRDROP_METRICS_ADDR"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		Network:    "hyperevm",
		BatchSize:  plan.DefaultBatchSize,
		BatchDelay: distribute.DefaultInterBatchDelay,
		Decimals:   18,
		LogRange:   loader.DefaultRangeSize,
		LogLevel:   "info",
	}
}

// DefaultDataDir returns ~/.airdrop, falling back to ./.airdrop when the
// home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".airdrop"
	}
	return filepath.Join(home, ".airdrop")
}

// ConfigPath returns the path of the config file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// JournalPath returns the path of the run journal inside dataDir.
func JournalPath(dataDir string) string {
	return filepath.Join(dataDir, "journal.db")
}

// LoadConfig reads a key = value config file. Missing keys keep their
// defaults and unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating the parent directory if needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Airdrop Configuration\n\n")
	for _, kv := range cfg.pairs() {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}

// ApplyEnv overlays AIRDROP_* variables onto cfg. Unset variables leave the
// current value in place. A nil environ reads the process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "rpc_url":
		c.RPCURL = value
	case "chain_id":
		c.ChainID, err = parseUint(value)
	case "token":
		c.Token = value
	case "distributor":
		c.Distributor = value
	case "presale":
		c.Presale = value
	case "batch_size":
		c.BatchSize, err = strconv.Atoi(value)
	case "batch_delay":
		c.BatchDelay, err = time.ParseDuration(value)
	case "decimals":
		c.Decimals, err = strconv.Atoi(value)
	case "rate":
		c.Rate = value
	case "from_block":
		c.FromBlock, err = parseUint(value)
	case "log_range":
		c.LogRange, err = parseUint(value)
	case "loglevel":
		c.LogLevel = value
	case "metrics_addr":
		c.MetricsAddr = value
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func (c Config) pairs() [][2]string {
	return [][2]string{
		{"datadir", c.DataDir},
		{"network", c.Network},
		{"rpc_url", c.RPCURL},
		{"chain_id", strconv.FormatUint(c.ChainID, 10)},
		{"token", c.Token},
		{"distributor", c.Distributor},
		{"presale", c.Presale},
		{"batch_size", strconv.Itoa(c.BatchSize)},
		{"batch_delay", c.BatchDelay.String()},
		{"decimals", strconv.Itoa(c.Decimals)},
		{"rate", c.Rate},
		{"from_block", strconv.FormatUint(c.FromBlock, 10)},
		{"log_range", strconv.FormatUint(c.LogRange, 10)},
		{"loglevel", c.LogLevel},
		{"metrics_addr", c.MetricsAddr},
	}
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
