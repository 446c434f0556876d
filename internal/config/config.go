// Package config defines all configuration for the cross-venue arbitrage
// executor. Config is loaded from a YAML file (default: configs/config.yaml)
// with sensitive fields overridable via ARBX_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	CEX       CEXConfig       `mapstructure:"cex"`
	DEX       DEXConfig       `mapstructure:"dex"`
	Symbols   SymbolConfig    `mapstructure:"symbols"`
	Fees      FeeConfig       `mapstructure:"fees"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// CEXConfig holds the Binance-shaped centralized exchange endpoints and
// HMAC credentials.
type CEXConfig struct {
	RESTBaseURL string `mapstructure:"rest_base_url"`
	WSMarketURL string `mapstructure:"ws_market_url"`
	WSUserURL   string `mapstructure:"ws_user_url"`
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	Testnet     bool   `mapstructure:"testnet"`
}

// DEXConfig holds the Hyperliquid-shaped on-chain venue endpoints and the
// wallet used to sign orders via EIP-712.
type DEXConfig struct {
	RESTBaseURL string `mapstructure:"rest_base_url"`
	WSURL       string `mapstructure:"ws_url"`
	WalletAddr  string `mapstructure:"wallet_address"`
	PrivateKey  string `mapstructure:"private_key"`
	Testnet     bool   `mapstructure:"testnet"`
}

// SymbolConfig names the symbol traded on each venue. The two are related
// only by configuration — never inferred from one another.
type SymbolConfig struct {
	CEXSymbol string `mapstructure:"cex_symbol"`
	DEXSymbol string `mapstructure:"dex_symbol"`
}

// FeeConfig carries the maker/taker fee rates used for the fee-adjusted
// net-spread estimate. Expressed as fractions, e.g. 0.0002 for 2bps.
type FeeConfig struct {
	CEXMaker float64 `mapstructure:"cex_maker"`
	CEXTaker float64 `mapstructure:"cex_taker"`
	DEXMaker float64 `mapstructure:"dex_maker"`
	DEXTaker float64 `mapstructure:"dex_taker"`
}

// StrategyConfig tunes the two-leg open/close protocol.
//
//   - MinSpreadThreshold: minimum fee-adjusted edge required to open/close a cycle.
//   - CycleQty: base quantity traded per cycle.
//   - TOrder: how long a resting leg waits before it is considered for cancel/chase.
//   - TCancel: how long a cancel-in-flight is given before being treated as stuck.
//   - NCancelRetry: how many times a cancel is retried before escalating.
//   - ChaseLimitAttempts: number of Leg2 limit placements, the initial hedge
//     included, before the remainder falls back to a market order (3 means
//     two reposts at a new best price, then market).
type StrategyConfig struct {
	MinSpreadThreshold float64       `mapstructure:"min_spread_threshold"`
	CycleQty           float64       `mapstructure:"cycle_qty"`
	TOrder             time.Duration `mapstructure:"t_order"`
	TCancel            time.Duration `mapstructure:"t_cancel"`
	NCancelRetry       int           `mapstructure:"n_cancel_retry"`
	ChaseLimitAttempts int           `mapstructure:"chase_limit_attempts"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
}

// SafetyConfig sets guardrails that gate new OpenCondition cycles. These
// never force-cancel a live leg — only the strategy's own timeout/cancel
// logic owns that decision.
type SafetyConfig struct {
	MaxHeldNotional       float64       `mapstructure:"max_held_notional"`
	StaleBookTimeout      time.Duration `mapstructure:"stale_book_timeout"`
	MaxConsecutiveRejects int           `mapstructure:"max_consecutive_rejects"`
	MinTopDepthQty        float64       `mapstructure:"min_top_depth_qty"`
}

// AuditConfig sets where completed-cycle audit records are appended.
type AuditConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DashboardConfig controls the read-only status dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: ARBX_CEX_API_KEY, ARBX_CEX_API_SECRET,
// ARBX_DEX_PRIVATE_KEY, ARBX_DEX_WALLET_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARBX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("ARBX_CEX_API_KEY"); key != "" {
		cfg.CEX.APIKey = key
	}
	if secret := os.Getenv("ARBX_CEX_API_SECRET"); secret != "" {
		cfg.CEX.APISecret = secret
	}
	if key := os.Getenv("ARBX_DEX_PRIVATE_KEY"); key != "" {
		cfg.DEX.PrivateKey = key
	}
	if addr := os.Getenv("ARBX_DEX_WALLET_ADDRESS"); addr != "" {
		cfg.DEX.WalletAddr = addr
	}
	if os.Getenv("ARBX_DRY_RUN") == "true" || os.Getenv("ARBX_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.CEX.RESTBaseURL == "" {
		return fmt.Errorf("cex.rest_base_url is required")
	}
	if c.CEX.APIKey == "" {
		return fmt.Errorf("cex.api_key is required (set ARBX_CEX_API_KEY)")
	}
	if c.CEX.APISecret == "" {
		return fmt.Errorf("cex.api_secret is required (set ARBX_CEX_API_SECRET)")
	}
	if c.DEX.RESTBaseURL == "" {
		return fmt.Errorf("dex.rest_base_url is required")
	}
	if c.DEX.PrivateKey == "" {
		return fmt.Errorf("dex.private_key is required (set ARBX_DEX_PRIVATE_KEY)")
	}
	if c.DEX.WalletAddr == "" {
		return fmt.Errorf("dex.wallet_address is required (set ARBX_DEX_WALLET_ADDRESS)")
	}
	if c.Symbols.CEXSymbol == "" || c.Symbols.DEXSymbol == "" {
		return fmt.Errorf("symbols.cex_symbol and symbols.dex_symbol are both required")
	}
	if c.Strategy.CycleQty <= 0 {
		return fmt.Errorf("strategy.cycle_qty must be > 0")
	}
	if c.Strategy.TOrder <= 0 {
		return fmt.Errorf("strategy.t_order must be > 0")
	}
	if c.Strategy.TCancel <= 0 {
		return fmt.Errorf("strategy.t_cancel must be > 0")
	}
	if c.Strategy.ChaseLimitAttempts <= 0 {
		c.Strategy.ChaseLimitAttempts = 3
	}
	if c.Strategy.TickInterval <= 0 {
		c.Strategy.TickInterval = time.Second
	}
	if c.Safety.MaxHeldNotional <= 0 {
		return fmt.Errorf("safety.max_held_notional must be > 0")
	}
	if c.Safety.StaleBookTimeout <= 0 {
		return fmt.Errorf("safety.stale_book_timeout must be > 0")
	}
	if c.Safety.MaxConsecutiveRejects <= 0 {
		c.Safety.MaxConsecutiveRejects = 3
	}
	return nil
}
