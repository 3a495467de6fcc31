package config

import "time"

// DatabaseDriver selects the GORM dialector used by the db package.
type DatabaseDriver string

const (
	// DatabaseDriverSQLite stores state in a local SQLite file (default).
	DatabaseDriverSQLite DatabaseDriver = "sqlite"

	// DatabaseDriverPostgres stores state in a hosted PostgreSQL database.
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" mapstructure:"log_level"`     // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format" mapstructure:"log_format"`   // "json" or "console"
	LogSampler bool   `json:"log_sampler" mapstructure:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home" mapstructure:"node_home"` // Node home directory (default: ~/.raffled)

	// API Server Config
	APIPort           int     `json:"api_port" mapstructure:"api_port"`                         // HTTP port (default: 8080)
	APIRateLimitRPS   float64 `json:"api_rate_limit_rps" mapstructure:"api_rate_limit_rps"`     // per-IP requests per second (default: 20)
	APIRateLimitBurst int     `json:"api_rate_limit_burst" mapstructure:"api_rate_limit_burst"` // per-IP burst (default: 40)

	// Database Config
	DatabaseDriver DatabaseDriver `json:"database_driver" mapstructure:"database_driver"` // "sqlite" or "postgres"
	DatabaseDSN    string         `json:"database_dsn" mapstructure:"database_dsn"`       // postgres DSN, unused for sqlite
	DatabaseDir    string         `json:"database_dir" mapstructure:"database_dir"`       // sqlite directory (default: <home>/databases)

	// Solana Config
	SolanaRPCURLs                 []string `json:"solana_rpc_urls" mapstructure:"solana_rpc_urls"`                                   // RPC endpoints, tried round-robin
	HotWalletKeyFile              string   `json:"hot_wallet_key_file" mapstructure:"hot_wallet_key_file"`                           // solana-keygen JSON file; RAFFLED_HOT_WALLET_KEY overrides
	TransferConfirmTimeoutSeconds int      `json:"transfer_confirm_timeout_seconds" mapstructure:"transfer_confirm_timeout_seconds"` // max wait for payout confirmation (default: 60)

	// Platform Economics
	PlatformFeeBps          uint16 `json:"platform_fee_bps" mapstructure:"platform_fee_bps"`                   // fee withheld from creator revenue (default: 300 = 3%)
	DepositToleranceBps     uint16 `json:"deposit_tolerance_bps" mapstructure:"deposit_tolerance_bps"`         // accepted shortfall on deposits and payments (default: 10 = 0.1%)
	PayoutQuarantineSeconds int    `json:"payout_quarantine_seconds" mapstructure:"payout_quarantine_seconds"` // delay between draw and creator payout (default: 86400)
	AutoPrizePayout         bool   `json:"auto_prize_payout" mapstructure:"auto_prize_payout"`                 // pay the winner right after the draw

	// Raffle Limits (lamports / counts / hours)
	MinTicketPriceLamports uint64 `json:"min_ticket_price_lamports" mapstructure:"min_ticket_price_lamports"`
	MaxTicketPriceLamports uint64 `json:"max_ticket_price_lamports" mapstructure:"max_ticket_price_lamports"`
	MinPrizeLamports       uint64 `json:"min_prize_lamports" mapstructure:"min_prize_lamports"`
	MaxPrizeLamports       uint64 `json:"max_prize_lamports" mapstructure:"max_prize_lamports"`
	MinTickets             uint32 `json:"min_tickets" mapstructure:"min_tickets"`
	MaxTickets             uint32 `json:"max_tickets" mapstructure:"max_tickets"`
	MinDurationHours       int    `json:"min_duration_hours" mapstructure:"min_duration_hours"`
	MaxDurationHours       int    `json:"max_duration_hours" mapstructure:"max_duration_hours"`
	MaxTicketsPerWallet    uint32 `json:"max_tickets_per_wallet" mapstructure:"max_tickets_per_wallet"`
	MinParticipants        int    `json:"min_participants" mapstructure:"min_participants"`

	// Purchase Rate Limit
	PurchaseIntervalSeconds int `json:"purchase_interval_seconds" mapstructure:"purchase_interval_seconds"` // one purchase token per interval per wallet (default: 30)
	PurchaseBurst           int `json:"purchase_burst" mapstructure:"purchase_burst"`                       // bucket size (default: 3)

	// Access Control
	AdminWallets            []string `json:"admin_wallets" mapstructure:"admin_wallets"`                           // wallets allowed to run admin actions
	OwnerWallet             string   `json:"owner_wallet" mapstructure:"owner_wallet"`                             // wallet allowed to trigger creator payouts
	CronSecret              string   `json:"cron_secret" mapstructure:"cron_secret"`                               // bearer token for /auto routes, empty disables the check
	SignatureMaxSkewSeconds int      `json:"signature_max_skew_seconds" mapstructure:"signature_max_skew_seconds"` // accepted request timestamp skew (default: 300)

	// Background Jobs (robfig/cron specs)
	JobsEnabled       bool   `json:"jobs_enabled" mapstructure:"jobs_enabled"`
	DepositJobSpec    string `json:"deposit_job_spec" mapstructure:"deposit_job_spec"`
	DrawJobSpec       string `json:"draw_job_spec" mapstructure:"draw_job_spec"`
	PayoutJobSpec     string `json:"payout_job_spec" mapstructure:"payout_job_spec"`
	RefundJobSpec     string `json:"refund_job_spec" mapstructure:"refund_job_spec"`
	ReconcileJobSpec  string `json:"reconcile_job_spec" mapstructure:"reconcile_job_spec"`
	StatsJobSpec      string `json:"stats_job_spec" mapstructure:"stats_job_spec"`
	JobTimeoutSeconds int    `json:"job_timeout_seconds" mapstructure:"job_timeout_seconds"` // per-run deadline (default: 120)

	// Distributed Locking
	RedisURL       string `json:"redis_url" mapstructure:"redis_url"`               // empty uses in-process locks
	LockTTLSeconds int    `json:"lock_ttl_seconds" mapstructure:"lock_ttl_seconds"` // lease length (default: 30)
}

// PayoutQuarantine returns the draw-to-creator-payout delay.
func (c *Config) PayoutQuarantine() time.Duration {
	return time.Duration(c.PayoutQuarantineSeconds) * time.Second
}

// TransferConfirmTimeout returns the max wait for a payout confirmation.
func (c *Config) TransferConfirmTimeout() time.Duration {
	return time.Duration(c.TransferConfirmTimeoutSeconds) * time.Second
}

// SignatureMaxSkew returns the accepted clock skew for signed requests.
func (c *Config) SignatureMaxSkew() time.Duration {
	return time.Duration(c.SignatureMaxSkewSeconds) * time.Second
}

// JobTimeout returns the deadline applied to each background job run.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// LockTTL returns the lease length for raffle locks.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PurchaseInterval returns the per-wallet purchase token refill interval.
func (c *Config) PurchaseInterval() time.Duration {
	return time.Duration(c.PurchaseIntervalSeconds) * time.Second
}
