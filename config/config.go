package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Chain access
	RPCURL       string
	ChainID      int64
	PrivateKey   string
	NativeSymbol string
	ExplorerURL  string

	// External services
	DirectoryURL    string
	DirectoryAPIKey string
	PriceURL        string
	PriceAPIKey     string
	QuoteURL        string
	QuoteAPIKey     string

	// ReserveToken is the contract address of the currency creator coins are
	// priced against.
	ReserveToken string

	// Execution bounds
	SubmitAttempts  int
	SubmitBaseDelay time.Duration
	ConfirmAttempts int
	ConfirmTimeout  time.Duration
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".tipcourier")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("chain_id", 8453)
	viper.SetDefault("native_symbol", "ETH")
	viper.SetDefault("explorer_url", "https://basescan.org/tx")
	viper.SetDefault("quote_url", "https://api.0x.org")
	viper.SetDefault("submit_attempts", 3)
	viper.SetDefault("submit_base_delay", "1s")
	viper.SetDefault("confirm_attempts", 5)
	viper.SetDefault("confirm_timeout", "30s")

	// Read from environment variables
	viper.SetEnvPrefix("TIPCOURIER")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		RPCURL:          viper.GetString("rpc_url"),
		ChainID:         viper.GetInt64("chain_id"),
		PrivateKey:      viper.GetString("private_key"),
		NativeSymbol:    viper.GetString("native_symbol"),
		ExplorerURL:     viper.GetString("explorer_url"),
		DirectoryURL:    viper.GetString("directory_url"),
		DirectoryAPIKey: viper.GetString("directory_api_key"),
		PriceURL:        viper.GetString("price_url"),
		PriceAPIKey:     viper.GetString("price_api_key"),
		QuoteURL:        viper.GetString("quote_url"),
		QuoteAPIKey:     viper.GetString("quote_api_key"),
		ReserveToken:    viper.GetString("reserve_token"),
		SubmitAttempts:  viper.GetInt("submit_attempts"),
		SubmitBaseDelay: viper.GetDuration("submit_base_delay"),
		ConfirmAttempts: viper.GetInt("confirm_attempts"),
		ConfirmTimeout:  viper.GetDuration("confirm_timeout"),
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC endpoint not found. Please set TIPCOURIER_RPC_URL environment variable or create a .tipcourier.yaml config file")
	}
	if cfg.DirectoryURL == "" {
		return nil, fmt.Errorf("directory endpoint not found. Please set TIPCOURIER_DIRECTORY_URL")
	}
	if cfg.PriceURL == "" {
		return nil, fmt.Errorf("price endpoint not found. Please set TIPCOURIER_PRICE_URL")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
