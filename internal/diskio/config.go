package diskio

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds configuration for the physical-volume I/O pool.
type Config struct {
	// SectorSize is a default sector size for the physical-volume pool. It is loaded but
	// not read by the container; the read path always uses types.LogicalSectorSize.
	SectorSize int `mapstructure:"sector_size"`
	// CacheEnabled toggles the single-sector decrypted cache used on the read path.
	CacheEnabled bool `mapstructure:"cache_enabled"`
	// RecoveryPlistSearchPaths lists directories associated with an out-of-band
	// EncryptedRoot.plist. It is loaded but not read by the container: no directory is
	// probed, and an out-of-band plist is used only when its bytes are passed explicitly.
	RecoveryPlistSearchPaths []string `mapstructure:"recovery_plist_search_paths"`
}

// LoadConfig loads I/O pool configuration using Viper (config file optional,
// environment override, sane defaults).
func LoadConfig() (*Config, error) {
	viper.SetConfigName("fvde-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.fvde")
	viper.AddConfigPath("/etc/fvde")

	viper.SetDefault("sector_size", 512)
	viper.SetDefault("cache_enabled", true)
	viper.SetDefault("recovery_plist_search_paths", []string{".", "./com.apple.boot.P"})

	viper.SetEnvPrefix("FVDE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}
