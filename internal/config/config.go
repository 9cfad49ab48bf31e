// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SNIPER_RPC_HTTP.
const EnvPrefix = "SNIPER"

type Config struct {
	RPC         RPCConfig         `mapstructure:"rpc"`
	Sniping     SnipingConfig     `mapstructure:"strategy"`
	Wallet      WalletConfig      `mapstructure:"wallet"`
	CopyTrading CopyTradingConfig `mapstructure:"copy_trading"`
	Entry       EntryConfig       `mapstructure:"entry"`
	Filters     FiltersConfig     `mapstructure:"filters"`
	Exit        ExitConfig        `mapstructure:"exit"`
	Fees        FeesConfig        `mapstructure:"fees"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Price       PriceConfig       `mapstructure:"price"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type RPCConfig struct {
	HTTP       string `mapstructure:"http"`
	WS         string `mapstructure:"ws"`
	FallbackWS string `mapstructure:"fallback_ws"`
}

type WalletConfig struct {
	KeyPath string `mapstructure:"key_path"`
}

// SnipingConfig toggles entries on new pools. Copy trading is switched
// separately.
type SnipingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type CopyTradingConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Mode              string   `mapstructure:"mode"`
	FixedAmountSOL    float64  `mapstructure:"fixed_amount_sol"`
	ProportionalRatio float64  `mapstructure:"proportional_ratio"`
	MaxSOLPerTrade    float64  `mapstructure:"max_sol_per_trade"`
	DelayMs           int      `mapstructure:"delay_ms"`
	FollowSells       bool     `mapstructure:"follow_sells"`
	TargetWallets     []string `mapstructure:"target_wallets"`
}

type EntryConfig struct {
	PositionSizeSOL float64 `mapstructure:"position_size_sol"`
	MinLiquiditySOL float64 `mapstructure:"min_liquidity_sol"`
}

type FiltersConfig struct {
	CheckMintAuthority   bool `mapstructure:"check_mint_authority"`
	CheckFreezeAuthority bool `mapstructure:"check_freeze_authority"`
}

type ExitConfig struct {
	TakeProfitPercent float64 `mapstructure:"take_profit_percent"`
	StopLossPercent   float64 `mapstructure:"stop_loss_percent"`
	MaxHoldTimeMin    int     `mapstructure:"max_hold_time_min"`
	CheckIntervalSec  int     `mapstructure:"check_interval_sec"`
}

type FeesConfig struct {
	Buy              uint64 `mapstructure:"buy"`
	Sell             uint64 `mapstructure:"sell"`
	ComputeUnitLimit uint32 `mapstructure:"compute_unit_limit"`
}

type ExecutionConfig struct {
	SlippageBps       uint16  `mapstructure:"slippage_bps"`
	ConfirmTimeoutSec int     `mapstructure:"confirm_timeout_sec"`
	SOLReserve        float64 `mapstructure:"sol_reserve"`
	ShutdownGraceSec  int     `mapstructure:"shutdown_grace_sec"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Stream string `mapstructure:"stream"`
}

type DiscoveryConfig struct {
	PoolListURL   string `mapstructure:"pool_list_url"`
	PoolByMintURL string `mapstructure:"pool_by_mint_url"`
}

type PriceConfig struct {
	URL string `mapstructure:"url"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
}

const (
	CopyModeFixed        = "fixed"
	CopyModeProportional = "proportional"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var defaults = map[string]interface{}{
	"rpc.http":                        "https://api.mainnet-beta.solana.com",
	"rpc.ws":                          "wss://api.mainnet-beta.solana.com",
	"rpc.fallback_ws":                 "",
	"wallet.key_path":                 "configs/wallet.key",
	"strategy.enabled":                true,
	"copy_trading.enabled":            false,
	"copy_trading.mode":               CopyModeFixed,
	"copy_trading.fixed_amount_sol":   0.1,
	"copy_trading.proportional_ratio": 0.1,
	"copy_trading.max_sol_per_trade":  0.5,
	"copy_trading.delay_ms":           2000,
	"copy_trading.follow_sells":       true,
	"copy_trading.target_wallets":     []string{},
	"entry.position_size_sol":         0.1,
	"entry.min_liquidity_sol":         5.0,
	"filters.check_mint_authority":    true,
	"filters.check_freeze_authority":  true,
	"exit.take_profit_percent":        50.0,
	"exit.stop_loss_percent":          10.0,
	"exit.max_hold_time_min":          60,
	"exit.check_interval_sec":         60,
	"fees.buy":                        10_000,
	"fees.sell":                       10_000,
	"fees.compute_unit_limit":         1_400_000,
	"execution.slippage_bps":          50,
	"execution.confirm_timeout_sec":   30,
	"execution.sol_reserve":           0.02,
	"execution.shutdown_grace_sec":    35,
	"database.driver":                 DriverSQLite,
	"database.path":                   "data/trades.db",
	"database.postgres_url":           "",
	"redis.addr":                      "",
	"redis.stream":                    "sniper:trades",
	"discovery.pool_list_url":         "https://api.raydium.io/v2/sdk/liquidity/mainnet.json",
	"discovery.pool_by_mint_url":      "",
	"price.url":                       "https://price.jup.ag/v6/price",
	"metrics.addr":                    "",
	"logging.debug":                   false,
	"logging.file":                    "",
}

// LoadConfig reads path (optional), a .env file in the working directory
// (optional) and SNIPER_* environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Из env список приходит строкой через запятую.
	cfg.CopyTrading.TargetWallets = splitList(strings.Join(cfg.CopyTrading.TargetWallets, ","))

	return &cfg, cfg.Validate()
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// Strategy builds the immutable strategy view of c.
func (c *Config) Strategy() StrategyConfig {
	return newStrategyConfig(c)
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	if c.RPC.HTTP == "" {
		return errors.New("rpc.http is required")
	}
	if err := validateURLWithCache(c.RPC.HTTP, "http"); err != nil {
		return fmt.Errorf("rpc.http: %w", err)
	}
	if err := validateURLWithCache(c.RPC.WS, "ws"); err != nil {
		return fmt.Errorf("rpc.ws: %w", err)
	}
	if c.RPC.FallbackWS != "" {
		if err := validateURLWithCache(c.RPC.FallbackWS, "ws"); err != nil {
			return fmt.Errorf("rpc.fallback_ws: %w", err)
		}
	}
	if c.Wallet.KeyPath == "" {
		return errors.New("wallet.key_path is required")
	}
	if err := c.validateStrategy(); err != nil {
		return err
	}
	if err := c.validateCopyTrading(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.PostgresURL == "" {
			return errors.New("database.postgres_url is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateStrategy() error {
	if c.Entry.PositionSizeSOL <= 0 {
		return errors.New("invalid entry.position_size_sol")
	}
	if c.Entry.MinLiquiditySOL < 0 {
		return errors.New("invalid entry.min_liquidity_sol")
	}
	if c.Exit.TakeProfitPercent <= 0 {
		return errors.New("exit.take_profit_percent must be positive")
	}
	if c.Exit.StopLossPercent < 0 || c.Exit.StopLossPercent >= 100 {
		return errors.New("exit.stop_loss_percent must be in [0, 100)")
	}
	if c.Exit.MaxHoldTimeMin < 0 {
		return errors.New("invalid exit.max_hold_time_min")
	}
	if c.Exit.CheckIntervalSec <= 0 {
		return errors.New("invalid exit.check_interval_sec")
	}
	if c.Execution.SlippageBps >= 10_000 {
		return errors.New("execution.slippage_bps must be below 10000")
	}
	if c.Execution.ConfirmTimeoutSec <= 0 {
		return errors.New("invalid execution.confirm_timeout_sec")
	}
	if c.Execution.SOLReserve < 0 {
		return errors.New("invalid execution.sol_reserve")
	}
	if c.Fees.ComputeUnitLimit == 0 {
		return errors.New("invalid fees.compute_unit_limit")
	}
	return nil
}

func (c *Config) validateCopyTrading() error {
	ct := c.CopyTrading
	if !ct.Enabled {
		return nil
	}
	switch ct.Mode {
	case CopyModeFixed:
		if ct.FixedAmountSOL <= 0 {
			return errors.New("copy_trading.fixed_amount_sol must be positive")
		}
	case CopyModeProportional:
		if ct.ProportionalRatio <= 0 || ct.ProportionalRatio > 1 {
			return errors.New("copy_trading.proportional_ratio must be in (0, 1]")
		}
	default:
		return fmt.Errorf("copy_trading.mode must be %q or %q", CopyModeFixed, CopyModeProportional)
	}
	if ct.MaxSOLPerTrade <= 0 {
		return errors.New("copy_trading.max_sol_per_trade must be positive")
	}
	if ct.DelayMs < 0 {
		return errors.New("invalid copy_trading.delay_ms")
	}
	if len(ct.TargetWallets) == 0 {
		return errors.New("copy_trading.target_wallets is empty")
	}
	for _, w := range ct.TargetWallets {
		if _, err := solana.PublicKeyFromBase58(w); err != nil {
			return fmt.Errorf("copy_trading.target_wallets: invalid address %q", w)
		}
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	// Один и тот же адрес проверяется и как http, и как ws.
	key := protocol + "|" + rawURL
	if _, ok := urlCache.Load(key); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(key, parsed)
	return nil
}

// ConfirmTimeout returns execution.confirm_timeout_sec as a duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Execution.ConfirmTimeoutSec) * time.Second
}

// ShutdownGrace returns execution.shutdown_grace_sec as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Execution.ShutdownGraceSec) * time.Second
}

// CheckInterval returns exit.check_interval_sec as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Exit.CheckIntervalSec) * time.Second
}
