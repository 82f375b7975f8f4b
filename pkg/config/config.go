package config

// Package config provides the loader for a ghostchain node's
// configuration file and environment overrides. It is a viper-based
// loader that autodetects TOML or JSON instead of committing to one
// format, and names fields after this node's own settings rather than
// a broader network/consensus/vm/storage split.
//
// Version: v0.1.0

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"ghostchain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a ghostchain node.
type Config struct {
	ChainID         string `mapstructure:"chain_id" json:"chain_id"`
	BlockTimeMS     int    `mapstructure:"block_time_ms" json:"block_time_ms"`
	EpochLength     uint64 `mapstructure:"epoch_length" json:"epoch_length"`
	EnableContracts bool   `mapstructure:"enable_contracts" json:"enable_contracts"`
	EnableMining    bool   `mapstructure:"enable_mining" json:"enable_mining"`
	EnableDomains   bool   `mapstructure:"enable_domains" json:"enable_domains"`
	MaxPeers        int    `mapstructure:"max_peers" json:"max_peers"`
	DataDir         string `mapstructure:"data_dir" json:"data_dir"`
	DatabaseType    string `mapstructure:"database_type" json:"database_type"`
	CacheSizeMB     int    `mapstructure:"cache_size_mb" json:"cache_size_mb"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// setDefaults sets a default for each Config option; defaults are
// applied before any file or environment override is read.
func setDefaults(v *viper.Viper) {
	v.SetDefault("chain_id", "ghostchain-mainnet")
	v.SetDefault("block_time_ms", 6000)
	v.SetDefault("epoch_length", 100)
	v.SetDefault("enable_contracts", true)
	v.SetDefault("enable_mining", true)
	v.SetDefault("enable_domains", true)
	v.SetDefault("max_peers", 50)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database_type", "embedded-kv")
	v.SetDefault("cache_size_mb", 256)
	v.SetDefault("logging.level", "info")
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the configuration file at path (TOML or JSON, detected
// from its extension; ".toml" and ".json" are both accepted, anything
// else is assumed to be TOML) and merges GHOSTCHAIN_-prefixed
// environment variables over it. The result is stored in AppConfig and
// returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case "json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("toml")
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("load config %s", path))
	}

	v.SetEnvPrefix("ghostchain")
	v.AutomaticEnv()

	if err := v.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads ".env" into the process environment (if present),
// then loads the configuration file named by GHOSTCHAIN_CONFIG,
// defaulting to "config.toml" in the working directory.
func LoadFromEnv() (*Config, error) {
	if err := utils.LoadDotEnv(".env"); err != nil {
		return nil, utils.Wrap(err, "load .env")
	}
	return Load(utils.EnvOrDefault("GHOSTCHAIN_CONFIG", "config.toml"))
}
