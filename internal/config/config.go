// Package config defines the top-level configuration for the copy trader
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYCOPY_* environment variables.
type Config struct {
	Watch      WatchConfig      `toml:"watch"`
	Wallet     WalletConfig     `toml:"wallet"`
	Chain      ChainConfig      `toml:"chain"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Sizing     SizingConfig     `toml:"sizing"`
	Admission  AdmissionConfig  `toml:"admission"`
	Balance    BalanceConfig    `toml:"balance"`
	Persist    PersistConfig    `toml:"persist"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	LogLevel   string           `toml:"log_level"`
}

// WatchConfig identifies the account whose fills are copied.
type WatchConfig struct {
	// TargetAddress is the maker address to follow, in 0x hex form.
	TargetAddress string `toml:"target_address"`
}

// WalletConfig holds the trading wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`

	// FundsAddress is the address whose USDC balance is reported in the
	// audit log. Defaults to the signer's own address.
	FundsAddress string `toml:"funds_address"`
}

// ChainConfig holds Polygon RPC endpoints.
type ChainConfig struct {
	// WsURL is the websocket RPC endpoint used for the OrderFilled
	// subscription. Required.
	WsURL string `toml:"ws_url"`

	// RPCURL is used for balance reads. Defaults to WsURL.
	RPCURL string `toml:"rpc_url"`
}

// PolymarketConfig holds CLOB endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost string `toml:"clob_host"`
	WsHost   string `toml:"ws_host"`
	ChainID  int    `toml:"chain_id"`
}

// SizingConfig holds the replica order sizing rules.
type SizingConfig struct {
	SizeMultiplier  float64 `toml:"size_multiplier"`
	MinShares       float64 `toml:"min_shares"`
	MaxUSDCPerOrder float64 `toml:"max_usdc_per_order"`
}

// AdmissionConfig bounds the submission rate and concurrency.
type AdmissionConfig struct {
	MaxOrdersPerMin int      `toml:"max_orders_per_min"`
	MaxInflight     int      `toml:"max_inflight"`
	DedupTTL        duration `toml:"dedup_ttl"`
}

// BalanceConfig controls the cached USDC balance refresh.
type BalanceConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
}

// PersistConfig holds the audit log and snapshot locations.
type PersistConfig struct {
	OrdersLogPath  string `toml:"orders_log_path"`
	SnapshotPath   string `toml:"snapshot_path"`
	SnapshotEveryN int    `toml:"snapshot_every_n"`
}

// PostgresConfig holds connection parameters for the optional audit mirror.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds connection parameters for the optional price mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the optional audit archiver.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
	ArchiveMinBytes int64    `toml:"archive_min_bytes"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost: "https://clob.polymarket.com",
			WsHost:   "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:  137,
		},
		Sizing: SizingConfig{
			SizeMultiplier:  1.0,
			MinShares:       1,
			MaxUSDCPerOrder: 50,
		},
		Admission: AdmissionConfig{
			MaxOrdersPerMin: 90,
			MaxInflight:     8,
			DedupTTL:        duration{10 * time.Minute},
		},
		Balance: BalanceConfig{
			RefreshInterval: duration{1500 * time.Millisecond},
		},
		Persist: PersistConfig{
			OrdersLogPath:  "./logs/orders.ndjson",
			SnapshotPath:   "./logs/positions.json",
			SnapshotEveryN: 50,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "polycopy-data",
			ForcePathStyle:  true,
			ArchiveInterval: duration{6 * time.Hour},
			ArchiveMinBytes: 1 << 20,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Watch target
	if c.Watch.TargetAddress == "" {
		errs = append(errs, "watch: target_address must be set")
	} else if !common.IsHexAddress(c.Watch.TargetAddress) {
		errs = append(errs, fmt.Sprintf("watch: target_address %q is not a valid address", c.Watch.TargetAddress))
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.FundsAddress != "" && !common.IsHexAddress(c.Wallet.FundsAddress) {
		errs = append(errs, fmt.Sprintf("wallet: funds_address %q is not a valid address", c.Wallet.FundsAddress))
	}

	// Chain
	if c.Chain.WsURL == "" {
		errs = append(errs, "chain: ws_url must be set")
	}

	// Polymarket
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Sizing
	if c.Sizing.SizeMultiplier <= 0 {
		errs = append(errs, "sizing: size_multiplier must be > 0")
	}
	if c.Sizing.MinShares < 0 {
		errs = append(errs, "sizing: min_shares must be >= 0")
	}
	if c.Sizing.MaxUSDCPerOrder <= 0 {
		errs = append(errs, "sizing: max_usdc_per_order must be > 0")
	}

	// Admission
	if c.Admission.MaxOrdersPerMin < 1 {
		errs = append(errs, "admission: max_orders_per_min must be >= 1")
	}
	if c.Admission.MaxInflight < 1 {
		errs = append(errs, "admission: max_inflight must be >= 1")
	}
	if c.Admission.DedupTTL.Duration <= 0 {
		errs = append(errs, "admission: dedup_ttl must be > 0")
	}

	// Balance
	if c.Balance.RefreshInterval.Duration <= 0 {
		errs = append(errs, "balance: refresh_interval must be > 0")
	}

	// Persist
	if c.Persist.OrdersLogPath == "" {
		errs = append(errs, "persist: orders_log_path must not be empty")
	}
	if c.Persist.SnapshotPath == "" {
		errs = append(errs, "persist: snapshot_path must not be empty")
	}
	if c.Persist.SnapshotEveryN < 1 {
		errs = append(errs, "persist: snapshot_every_n must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
