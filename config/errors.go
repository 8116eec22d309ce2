// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name has no RPC preset and no explicit RPC URL.
	ErrInvalidNetwork = errors.New("config: invalid network (must be a known preset or set rpc_url and chain_id)")

	// ErrInvalidMetricsAddr indicates the metrics listen address is malformed.
	ErrInvalidMetricsAddr = errors.New("config: invalid metrics address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidAddress indicates a contract address is not a 20-byte hex address.
	ErrInvalidAddress = errors.New("config: invalid contract address")

	// ErrInvalidBatchSize indicates batch_size is below 1.
	ErrInvalidBatchSize = errors.New("config: batch size must be at least 1")

	// ErrInvalidBatchDelay indicates batch_delay is negative.
	ErrInvalidBatchDelay = errors.New("config: batch delay must not be negative")

	// ErrInvalidDecimals indicates decimals is outside [0, 255].
	ErrInvalidDecimals = errors.New("config: decimals must be between 0 and 255")

	// ErrInvalidRate indicates rate is not a positive decimal.
	ErrInvalidRate = errors.New("config: rate must be a positive decimal")

	// ErrInvalidLogRange indicates log_range is zero.
	ErrInvalidLogRange = errors.New("config: log range must be at least 1")

	// ErrMissingValue indicates a value an operation needs was not configured.
	ErrMissingValue = errors.New("config: required value not set")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
