// Package binance provides Binance spot REST connectivity.
package binance

import (
	"time"
)

// Base URLs.
const (
	MainnetURL = "https://api.binance.com"
	TestnetURL = "https://testnet.binance.vision"
)

// Config holds Binance connection configuration.
type Config struct {
	// Endpoint
	BaseURL string

	// Credentials
	APIKey    string
	APISecret string

	// Timeouts
	RequestTimeout time.Duration
	RecvWindow     time.Duration

	// Rate limiting
	MaxRequestsPerSecond int
}

// DefaultConfig returns default Binance configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:              MainnetURL,
		RequestTimeout:       10 * time.Second,
		RecvWindow:           5 * time.Second,
		MaxRequestsPerSecond: 10, // weight limit is 1200/min
	}
}

// TestnetConfig returns configuration for the spot testnet.
func TestnetConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = TestnetURL
	return cfg
}
