package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/solraffle/raffle-node/raffleNode/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Set defaults for the API server
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.APIPort < 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("api port must be between 1 and 65535")
	}
	if cfg.APIRateLimitRPS == 0 {
		cfg.APIRateLimitRPS = 20
	}
	if cfg.APIRateLimitBurst == 0 {
		cfg.APIRateLimitBurst = 40
	}

	// Database
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DatabaseDriverSQLite
	}
	switch cfg.DatabaseDriver {
	case DatabaseDriverSQLite:
	case DatabaseDriverPostgres:
		if cfg.DatabaseDSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database driver must be 'sqlite' or 'postgres'")
	}

	// Solana
	if len(cfg.SolanaRPCURLs) == 0 {
		cfg.SolanaRPCURLs = []string{"https://api.devnet.solana.com"}
	}
	if cfg.TransferConfirmTimeoutSeconds == 0 {
		cfg.TransferConfirmTimeoutSeconds = 60
	}

	// Economics
	if cfg.PlatformFeeBps > 10_000 {
		return fmt.Errorf("platform fee must not exceed 10000 bps")
	}
	if cfg.DepositToleranceBps > 10_000 {
		return fmt.Errorf("deposit tolerance must not exceed 10000 bps")
	}
	if cfg.PayoutQuarantineSeconds == 0 {
		cfg.PayoutQuarantineSeconds = 86400
	}

	// Limits
	if cfg.MinTicketPriceLamports == 0 {
		cfg.MinTicketPriceLamports = 1_000_000
	}
	if cfg.MaxTicketPriceLamports == 0 {
		cfg.MaxTicketPriceLamports = 100 * constant.LamportsPerSOL
	}
	if cfg.MinPrizeLamports == 0 {
		cfg.MinPrizeLamports = 10_000_000
	}
	if cfg.MaxPrizeLamports == 0 {
		cfg.MaxPrizeLamports = 10_000 * constant.LamportsPerSOL
	}
	if cfg.MinTickets == 0 {
		cfg.MinTickets = 2
	}
	if cfg.MaxTickets == 0 {
		cfg.MaxTickets = 10_000
	}
	if cfg.MinDurationHours == 0 {
		cfg.MinDurationHours = 1
	}
	if cfg.MaxDurationHours == 0 {
		cfg.MaxDurationHours = 168
	}
	if cfg.MaxTicketsPerWallet == 0 {
		cfg.MaxTicketsPerWallet = 100
	}
	if cfg.MinParticipants == 0 {
		cfg.MinParticipants = 2
	}
	if cfg.MinTicketPriceLamports > cfg.MaxTicketPriceLamports {
		return fmt.Errorf("min ticket price exceeds max ticket price")
	}
	if cfg.MinPrizeLamports > cfg.MaxPrizeLamports {
		return fmt.Errorf("min prize exceeds max prize")
	}
	if cfg.MinTickets > cfg.MaxTickets {
		return fmt.Errorf("min tickets exceeds max tickets")
	}
	if cfg.MinDurationHours > cfg.MaxDurationHours {
		return fmt.Errorf("min duration exceeds max duration")
	}
	if cfg.MinParticipants < 1 {
		return fmt.Errorf("min participants must be at least 1")
	}

	// Purchase rate limit
	if cfg.PurchaseIntervalSeconds == 0 {
		cfg.PurchaseIntervalSeconds = 30
	}
	if cfg.PurchaseBurst == 0 {
		cfg.PurchaseBurst = 3
	}

	// Access control
	if cfg.SignatureMaxSkewSeconds == 0 {
		cfg.SignatureMaxSkewSeconds = 300
	}

	// Jobs
	if cfg.DepositJobSpec == "" {
		cfg.DepositJobSpec = "@every 30s"
	}
	if cfg.DrawJobSpec == "" {
		cfg.DrawJobSpec = "@every 1m"
	}
	if cfg.PayoutJobSpec == "" {
		cfg.PayoutJobSpec = "@every 5m"
	}
	if cfg.RefundJobSpec == "" {
		cfg.RefundJobSpec = "@every 2m"
	}
	if cfg.ReconcileJobSpec == "" {
		cfg.ReconcileJobSpec = "@every 1m"
	}
	if cfg.StatsJobSpec == "" {
		cfg.StatsJobSpec = "@every 30s"
	}
	if cfg.JobTimeoutSeconds == 0 {
		cfg.JobTimeoutSeconds = 120
	}

	// Locking
	if cfg.LockTTLSeconds == 0 {
		cfg.LockTTLSeconds = 30
	}

	return nil
}

// Save writes the given config to <NodeDir>/config/raffled_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads <BasePath>/config/raffled_config.json on top of the embedded
// defaults. Every key can be overridden with a RAFFLED_<KEY> environment
// variable, e.g. RAFFLED_CRON_SECRET or RAFFLED_SOLANA_RPC_URLS="a,b".
func Load(basePath string) (Config, error) {
	v := newViper()

	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	v.SetConfigFile(filepath.Clean(configFile))
	if err := v.MergeInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.NodeHome == "" {
		cfg.NodeHome = basePath
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// newViper returns a viper instance seeded with the embedded defaults so that
// environment overrides apply to every known key, even ones missing from disk.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The embedded document is validated by LoadDefaultConfig tests.
	_ = v.ReadConfig(bytes.NewReader(defaultConfigJSON))
	return v
}
