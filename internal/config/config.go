package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort          string        `mapstructure:"app_port"`
	HMACSecret       string        `mapstructure:"hmac_secret"`
	SigMaxAgeSeconds int64         `mapstructure:"sig_max_age_seconds"`
	SQLiteDSN        string        `mapstructure:"sqlite_dsn"`
	SolanaRPCURL     string        `mapstructure:"solana_rpc_url"`
	Commitment       string        `mapstructure:"solana_commitment"`
	RequestLogDir    string        `mapstructure:"request_log_dir"`
	PendingTTL       time.Duration `mapstructure:"pending_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	RatesURL         string        `mapstructure:"rates_url"`
	RatesInterval    time.Duration `mapstructure:"rates_interval"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	LogLevel         string        `mapstructure:"log_level"`
}

var keys = []string{
	"app_port",
	"hmac_secret",
	"sig_max_age_seconds",
	"sqlite_dsn",
	"solana_rpc_url",
	"solana_commitment",
	"request_log_dir",
	"pending_ttl",
	"sweep_interval",
	"rates_url",
	"rates_interval",
	"cors_origins",
	"log_level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "8080")
	v.SetDefault("hmac_secret", "")
	v.SetDefault("sig_max_age_seconds", 300)
	v.SetDefault("sqlite_dsn", "./solpay.db")
	v.SetDefault("solana_rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana_commitment", "confirmed")
	v.SetDefault("request_log_dir", "logs")
	v.SetDefault("pending_ttl", 24*time.Hour)
	v.SetDefault("sweep_interval", 10*time.Minute)
	v.SetDefault("rates_url", "https://api.coingecko.com/api/v3/simple/price?ids=solana,tether,usd-coin&vs_currencies=usd")
	v.SetDefault("rates_interval", 5*time.Minute)
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log_level", "info")
}

// Load reads .env (if present), then an optional config file, then the
// environment. Environment variables use the upper-case key names, e.g.
// SOLANA_RPC_URL. An empty path skips the config file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.AppPort == "" {
		return fmt.Errorf("app_port is required")
	}
	if c.SolanaRPCURL == "" {
		return fmt.Errorf("solana_rpc_url is required")
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("solana_commitment must be processed, confirmed or finalized, got %q", c.Commitment)
	}
	if c.PendingTTL < 0 {
		return fmt.Errorf("pending_ttl must not be negative")
	}
	return nil
}
