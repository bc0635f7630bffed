package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Secrets (from .env)
	PrivateKey      string
	WalletAddress   string
	WebhookURL      string
	BotName         string
	APIKey          string
	CORSAllowOrigin string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	// Database
	StorageBackend string
	DBHost         string
	DBPort         int
	DBName         string
	DBUser         string
	DBPassword     string

	// Chain
	Network        string
	RPCURL         string
	ChainID        int
	RouterAddress  string
	LensAddress    string
	CurveAddress   string
	ExplorerURL    string
	GasLimit       int
	GasMultiplier  float64
	ConfirmTimeout time.Duration
	TxDeadline     time.Duration

	// Discovery
	ScanChunkBlocks    int
	ScanWindowBlocks   int
	DiscoveryBatchSize int
	EnrichTokens       bool

	// Risk Management
	StopLossPercent         float64
	TakeProfitPercent       float64
	MaxPositionAgeHours     float64
	MaxDrawdownPercent      float64
	MaxPositionSharePercent float64
	StartingBalance         float64
	MaxTradeMON             float64
	MaxDailyTrades          int

	// Timing
	CycleInterval          time.Duration
	ErrorBackoff           time.Duration
	HealthCheckEveryCycles int
	StatusReportInterval   time.Duration

	// Misc
	APIPort            int
	SocialPostsEnabled bool
	LogLevel           string
	LogFormat          string
}

// NetworkPreset holds the contract set for one deployment of the launch platform.
type NetworkPreset struct {
	ChainID  int
	RPCURL   string
	Router   string
	Lens     string
	Curve    string
	Explorer string
}

var Networks = map[string]NetworkPreset{
	"mainnet": {
		ChainID:  143,
		RPCURL:   "https://monad-mainnet.drpc.org",
		Router:   "0x6F6B8F1a20703309951a5127c45B49b1CD981A22",
		Lens:     "0x7e78A8DE94f21804F7a17F4E8BF9EC2c872187ea",
		Curve:    "0xA7283d07812a02AFB7C09B60f8896bCEA3F90aCE",
		Explorer: "https://monadscan.com/tx/",
	},
	"testnet": {
		ChainID:  10143,
		RPCURL:   "https://testnet-rpc.monad.xyz",
		Router:   "0x865054F0F6A288adaAc30261731361EA7E908003",
		Lens:     "0xB056d79CA5257589692699a46623F901a3BB76f1",
		Curve:    "0x1228b0dc9481C11D3071E7A924B794CfB038994e",
		Explorer: "https://testnet.monadexplorer.com/tx/",
	},
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	network := strings.ToLower(envStr("NETWORK", "mainnet"))
	preset, ok := Networks[network]
	if !ok {
		return nil, fmt.Errorf("unknown NETWORK %q, expected mainnet|testnet", network)
	}

	cfg := &Config{
		// Secrets
		PrivateKey:      envStr("MONAD_PRIVATE_KEY", ""),
		WalletAddress:   envStr("WALLET_ADDRESS", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		BotName:         envStr("BOT_NAME", "SovereignScout"),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),

		// Database
		StorageBackend: strings.ToLower(envStr("STORAGE_BACKEND", "postgres")),
		DBHost:         envStr("DB_HOST", "localhost"),
		DBPort:         envInt("DB_PORT", 5432),
		DBName:         envStr("DB_NAME", "scout_agent"),
		DBUser:         envStr("DB_USER", ""),
		DBPassword:     envStr("DB_PASSWORD", ""),

		// Chain
		Network:        network,
		RPCURL:         envStr("MONAD_RPC_URL", preset.RPCURL),
		ChainID:        envInt("MONAD_CHAIN_ID", preset.ChainID),
		RouterAddress:  envStr("ROUTER_ADDRESS", preset.Router),
		LensAddress:    envStr("LENS_ADDRESS", preset.Lens),
		CurveAddress:   envStr("CURVE_ADDRESS", preset.Curve),
		ExplorerURL:    envStr("EXPLORER_URL", preset.Explorer),
		GasLimit:       envInt("GAS_LIMIT", 800000),
		GasMultiplier:  envFloat("GAS_MULTIPLIER", 1.2),
		ConfirmTimeout: envDuration("TX_CONFIRM_TIMEOUT_SECONDS", 120*time.Second),
		TxDeadline:     envDuration("TX_DEADLINE_SECONDS", 300*time.Second),

		// Discovery
		ScanChunkBlocks:    envInt("SCAN_CHUNK_BLOCKS", 1000),
		ScanWindowBlocks:   envInt("SCAN_WINDOW_BLOCKS", 10000),
		DiscoveryBatchSize: envInt("DISCOVERY_BATCH_SIZE", 50),
		EnrichTokens:       envBool("ENRICH_TOKENS", false),

		// Risk Management
		StopLossPercent:         envFloat("STOP_LOSS_PERCENT", -20),
		TakeProfitPercent:       envFloat("TAKE_PROFIT_PERCENT", 50),
		MaxPositionAgeHours:     envFloat("MAX_POSITION_AGE_HOURS", 72),
		MaxDrawdownPercent:      envFloat("MAX_DRAWDOWN_PERCENT", -30),
		MaxPositionSharePercent: envFloat("MAX_POSITION_SHARE_PERCENT", 20),
		StartingBalance:         envFloat("STARTING_BALANCE", 0),
		MaxTradeMON:             envFloat("MAX_TRADE_MON", 0),
		MaxDailyTrades:          envInt("MAX_DAILY_TRADES", 0),

		// Timing
		CycleInterval:          envDuration("CYCLE_INTERVAL_SECONDS", 30*time.Second),
		ErrorBackoff:           envDuration("ERROR_BACKOFF_SECONDS", 10*time.Second),
		HealthCheckEveryCycles: envInt("HEALTH_CHECK_EVERY_CYCLES", 10),
		StatusReportInterval:   time.Duration(envInt("STATUS_REPORT_INTERVAL_MINUTES", 60)) * time.Minute,

		// Misc
		APIPort:            envInt("API_PORT", 3001),
		SocialPostsEnabled: envBool("SOCIAL_POSTS_ENABLED", false),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		LogFormat:          envStr("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.RPCURL == "" {
		errs = append(errs, "MONAD_RPC_URL is required")
	}
	if c.PrivateKey != "" {
		if _, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x")); err != nil {
			errs = append(errs, "MONAD_PRIVATE_KEY must be 32 bytes of hex")
		}
	}
	if c.WalletAddress != "" && !common.IsHexAddress(c.WalletAddress) {
		errs = append(errs, "WALLET_ADDRESS is not a valid address")
	}
	for name, addr := range map[string]string{
		"ROUTER_ADDRESS": c.RouterAddress,
		"LENS_ADDRESS":   c.LensAddress,
		"CURVE_ADDRESS":  c.CurveAddress,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, name+" is not a valid address")
		}
	}
	if c.StorageBackend != "postgres" && c.StorageBackend != "memory" {
		errs = append(errs, "STORAGE_BACKEND must be postgres or memory")
	}
	if c.ScanChunkBlocks <= 0 || c.ScanWindowBlocks <= 0 {
		errs = append(errs, "SCAN_CHUNK_BLOCKS and SCAN_WINDOW_BLOCKS must be positive")
	}
	if c.CycleInterval <= 0 {
		errs = append(errs, "CYCLE_INTERVAL_SECONDS must be positive")
	}

	if c.PrivateKey == "" {
		log.Warn().Msg("MONAD_PRIVATE_KEY not set, running read-only: trades are simulated")
	}
	if c.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, sentiment uses the heuristic analyzer")
	}
	if c.StorageBackend == "memory" {
		log.Warn().Msg("STORAGE_BACKEND=memory, portfolio and seen tokens are lost on restart")
	}
	if c.MaxTradeMON == 0 {
		log.Warn().Msg("MAX_TRADE_MON is 0, buys are sized by confidence only")
	}
	if c.APIKey == "" {
		log.Warn().Msg("API_KEY not set, REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ReadOnly reports whether trades must be simulated.
func (c *Config) ReadOnly() bool { return c.PrivateKey == "" }

func (c *Config) Print() {
	mode := boolLabel(c.ReadOnly(), "READ-ONLY (simulated trades)", "LIVE TRADING")
	log.Info().
		Str("mode", mode).
		Str("network", c.Network).
		Int("chain_id", c.ChainID).
		Str("rpc", c.RPCURL).
		Str("wallet", truncAddr(c.WalletAddress)).
		Str("router", truncAddr(c.RouterAddress)).
		Str("storage", c.StorageBackend).
		Msg("configuration")
	log.Info().
		Float64("stop_loss_pct", c.StopLossPercent).
		Float64("take_profit_pct", c.TakeProfitPercent).
		Float64("max_age_hours", c.MaxPositionAgeHours).
		Float64("max_drawdown_pct", c.MaxDrawdownPercent).
		Float64("max_trade_mon", c.MaxTradeMON).
		Int("max_daily_trades", c.MaxDailyTrades).
		Dur("cycle", c.CycleInterval).
		Str("sentiment", boolLabel(c.OpenAIAPIKey != "", c.OpenAIModel, "heuristic")).
		Msg("risk configuration")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envDuration reads a whole number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func truncAddr(addr string) string {
	if len(addr) > 16 {
		return addr[:10] + "..." + addr[len(addr)-6:]
	}
	return addr
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
