// internal/config/config.go
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList            []string `mapstructure:"rpc_list"`
	PostgresURL        string   `mapstructure:"postgres_url"`
	TelegramToken      string   `mapstructure:"telegram_token"`
	PriceAPIURL        string   `mapstructure:"price_api_url"`
	MonitorIntervalMin int      `mapstructure:"monitor_interval_min"`
	CycleTimeoutMin    int      `mapstructure:"cycle_timeout_min"`
	Workers            int      `mapstructure:"workers"`
	ValueChangePercent float64  `mapstructure:"value_change_percent"`
	ILThresholdPercent float64  `mapstructure:"il_threshold_percent"`
	ILStepPercent      float64  `mapstructure:"il_step_percent"`
	DebugLogging       bool     `mapstructure:"debug_logging"`
	LogFile            string   `mapstructure:"log_file"`
}

const (
	DefaultMonitorIntervalMin = 15
	DefaultCycleTimeoutMin    = 10
	DefaultWorkers            = 4
	DefaultPriceAPIURL        = "https://lite-api.jup.ag/price/v3"

	DefaultValueChangePercent = 10.0
	DefaultILThresholdPercent = -5.0
	DefaultILStepPercent      = 2.5
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"monitor_interval_min": DefaultMonitorIntervalMin,
		"cycle_timeout_min":    DefaultCycleTimeoutMin,
		"workers":              DefaultWorkers,
		"price_api_url":        DefaultPriceAPIURL,
		"value_change_percent": DefaultValueChangePercent,
		"il_threshold_percent": DefaultILThresholdPercent,
		"il_step_percent":      DefaultILStepPercent,
		"log_file":             "sentinel.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

// MonitorInterval returns the cycle period.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalMin) * time.Minute
}

// CycleTimeout returns the soft deadline for one monitor cycle.
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutMin) * time.Minute
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.PostgresURL == "" {
		return errors.New("missing postgres_url in configuration")
	}
	if cfg.TelegramToken == "" {
		return errors.New("missing telegram_token in configuration")
	}
	if err := validateURL(cfg.PriceAPIURL, "http"); err != nil {
		return errors.New("invalid price API URL")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.MonitorIntervalMin <= 0 {
		return errors.New("invalid monitor_interval_min")
	}
	if cfg.CycleTimeoutMin <= 0 {
		return errors.New("invalid cycle_timeout_min")
	}
	if cfg.CycleTimeoutMin > cfg.MonitorIntervalMin {
		return errors.New("cycle_timeout_min must not exceed monitor_interval_min")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.ValueChangePercent <= 0 {
		return errors.New("invalid value_change_percent")
	}
	if cfg.ILThresholdPercent >= 0 {
		return errors.New("il_threshold_percent must be negative")
	}
	if cfg.ILStepPercent <= 0 {
		return errors.New("invalid il_step_percent")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("DLMM_SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if pgURL := v.GetString("POSTGRES_URL"); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if envRPCList := v.GetString("RPC_LIST"); envRPCList != "" {
		var cleanRPCs []string
		for _, rpc := range strings.Split(envRPCList, ",") {
			if clean := strings.TrimSpace(rpc); clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
