package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("allowed_origin", "http://localhost:3000")
		viper.SetDefault("data_dir", "./dev_wallet_data")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("allowed_origin", "https://wallet.example.com")
		viper.SetDefault("data_dir", "/var/lib/wallet-core")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("network_id", "1") // mainnet
	viper.SetDefault("api_port", 9003)
	viper.SetDefault("use_https", false)
	viper.SetDefault("cert_file", "server.crt")
	viper.SetDefault("key_file", "server.key")

	// Custody session behavior
	viper.SetDefault("session_window", "15m")
	viper.SetDefault("auto_lock_interval", "5m")
	viper.SetDefault("first_wallet_auto_unlock", true)

	// Storage layout: each tier owns its own namespace under data_dir
	// so clearing one tier can never touch another.
	viper.SetDefault("secret_dir", "secrets")
	viper.SetDefault("device_key_file", "device.key")
	viper.SetDefault("descriptor_db", "descriptors.db")

	// Cache TTL overrides in Go duration syntax; empty means class default
	viper.SetDefault("cache_ttl_balance", "")
	viper.SetDefault("cache_ttl_price", "")
	viper.SetDefault("cache_ttl_gas", "")
	viper.SetDefault("cache_ttl_nft", "")
	viper.SetDefault("cache_ttl_dapp", "")
	viper.SetDefault("cache_ttl_quote", "")

	// Logging
	viper.SetDefault("log_file", "./logs/wallet-core.log")
	viper.SetDefault("log_max_size_mb", 20)
	viper.SetDefault("log_max_age_days", 14)

	viper.SetDefault("jwt_key_file", "jwt.key")
	viper.SetDefault("jwt_token_ttl", "15m")
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	// Write the default configuration to a file
	err := viper.SafeWriteConfig()
	if err != nil {
		if os.IsExist(err) {
			// If the config already exists, attempt to overwrite it
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}
