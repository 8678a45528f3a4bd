package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de resolvebot.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Wallet   WalletConfig   `yaml:"wallet"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Feed     FeedConfig     `yaml:"feed"`
	Status   StatusConfig   `yaml:"status"`
	Log      LogConfig      `yaml:"log"`
}

// StrategyConfig agrupa los filtros de elegibilidad y las reglas de posición.
type StrategyConfig struct {
	MaxHoursToClose     float64  `yaml:"max_hours_to_close"`
	MinProbability      float64  `yaml:"min_probability"`
	MaxProbability      float64  `yaml:"max_probability"`
	MinLiquidityUSD     *float64 `yaml:"min_liquidity_usd"` // nil = default; 0 desactiva el filtro
	StopProbDrop        float64  `yaml:"stop_prob_drop"`
	PerEventCap         int      `yaml:"per_event_cap"`
	StakeUSD            float64  `yaml:"stake_usd"`
	MaxOpenPositions    int      `yaml:"max_open_positions"` // 0 = sin límite
	ReleaseLocksOnClose bool     `yaml:"release_locks_on_close"`
}

type ScannerConfig struct {
	IntervalSeconds          int            `yaml:"interval_seconds"`
	PageSize                 int            `yaml:"page_size"`
	BatchSize                int            `yaml:"batch_size"`
	BatchDelayMS             int            `yaml:"batch_delay_ms"`
	RateLimitCooldownSeconds int            `yaml:"rate_limit_cooldown_seconds"`
	MaxRateLimitRetries      *int           `yaml:"max_rate_limit_retries"` // 0 = sin reintentos
	RequestTimeoutSeconds    int            `yaml:"request_timeout_seconds"`
	Denylist                 DenylistConfig `yaml:"denylist"`
}

// DenylistConfig reemplaza la lista built-in cuando trae al menos una entrada.
type DenylistConfig struct {
	Fragments []string `yaml:"fragments"`
	Tokens    []string `yaml:"tokens"`
}

// Empty indica que no se configuró ninguna entrada.
func (d DenylistConfig) Empty() bool {
	return len(d.Fragments) == 0 && len(d.Tokens) == 0
}

type WalletConfig struct {
	InitialBalance *float64 `yaml:"initial_balance"`
}

type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	WSURL     string `yaml:"ws_url"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // file | sqlite
	Path       string `yaml:"path"`
	LedgerPath string `yaml:"ledger_path"`
}

type FeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"` // vacío = solo stdout
}

// Load lee el archivo YAML, aplica overrides de entorno y defaults.
// Un .env en el directorio de trabajo se carga primero si existe.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse yaml: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Default devuelve la configuración por defecto sin leer archivo.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STATE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		cfg.Status.Addr = v
	}
}

func setDefaults(cfg *Config) {
	s := &cfg.Strategy
	if s.MaxHoursToClose == 0 {
		s.MaxHoursToClose = 4
	}
	if s.MinProbability == 0 {
		s.MinProbability = 0.80
	}
	if s.MaxProbability == 0 {
		s.MaxProbability = 0.96
	}
	if s.MinLiquidityUSD == nil {
		s.MinLiquidityUSD = ptr(2.0)
	}
	if s.StopProbDrop == 0 {
		s.StopProbDrop = 0.25
	}
	if s.PerEventCap == 0 {
		s.PerEventCap = 2
	}
	if s.StakeUSD == 0 {
		s.StakeUSD = 10
	}

	sc := &cfg.Scanner
	if sc.IntervalSeconds == 0 {
		sc.IntervalSeconds = 3600
	}
	if sc.PageSize == 0 {
		sc.PageSize = 100
	}
	if sc.BatchSize == 0 {
		sc.BatchSize = 10
	}
	if sc.BatchDelayMS == 0 {
		sc.BatchDelayMS = 5
	}
	if sc.RateLimitCooldownSeconds == 0 {
		sc.RateLimitCooldownSeconds = 60
	}
	if sc.MaxRateLimitRetries == nil {
		sc.MaxRateLimitRetries = ptr(5)
	}
	if sc.RequestTimeoutSeconds == 0 {
		sc.RequestTimeoutSeconds = 10
	}

	if cfg.Wallet.InitialBalance == nil {
		cfg.Wallet.InitialBalance = ptr(1000.0)
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Path == "" {
		if cfg.Storage.Driver == "sqlite" {
			cfg.Storage.Path = "state.db"
		} else {
			cfg.Storage.Path = "state.json"
		}
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = "trades.csv"
	}

	if cfg.Status.Addr == "" {
		cfg.Status.Addr = ":3000"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate rechaza combinaciones que el bot no puede operar.
func (c *Config) Validate() error {
	s := c.Strategy
	var errs []error
	if s.MinProbability <= 0 || s.MinProbability >= 1 {
		errs = append(errs, fmt.Errorf("strategy.min_probability %.4f outside (0,1)", s.MinProbability))
	}
	if s.MaxProbability <= 0 || s.MaxProbability >= 1 {
		errs = append(errs, fmt.Errorf("strategy.max_probability %.4f outside (0,1)", s.MaxProbability))
	}
	if s.MinProbability > s.MaxProbability {
		errs = append(errs, fmt.Errorf("strategy.min_probability %.4f > max_probability %.4f", s.MinProbability, s.MaxProbability))
	}
	if s.MaxHoursToClose <= 0 {
		errs = append(errs, errors.New("strategy.max_hours_to_close must be positive"))
	}
	if s.StopProbDrop <= 0 || s.StopProbDrop >= 1 {
		errs = append(errs, fmt.Errorf("strategy.stop_prob_drop %.4f outside (0,1)", s.StopProbDrop))
	}
	if s.PerEventCap < 1 {
		errs = append(errs, errors.New("strategy.per_event_cap must be at least 1"))
	}
	if s.StakeUSD <= 0 {
		errs = append(errs, errors.New("strategy.stake_usd must be positive"))
	}
	if s.MaxOpenPositions < 0 {
		errs = append(errs, errors.New("strategy.max_open_positions must be >= 0"))
	}
	if c.Scanner.PageSize < 1 || c.Scanner.BatchSize < 1 {
		errs = append(errs, errors.New("scanner.page_size and scanner.batch_size must be positive"))
	}
	if s.MinLiquidityUSD != nil && *s.MinLiquidityUSD < 0 {
		errs = append(errs, errors.New("strategy.min_liquidity_usd must be >= 0"))
	}
	if r := c.Scanner.MaxRateLimitRetries; r != nil && *r < 0 {
		errs = append(errs, errors.New("scanner.max_rate_limit_retries must be >= 0"))
	}
	if b := c.Wallet.InitialBalance; b != nil && *b < 0 {
		errs = append(errs, errors.New("wallet.initial_balance must be >= 0"))
	}
	switch c.Storage.Driver {
	case "file", "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q unknown", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// ScanInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Scanner.BatchDelayMS) * time.Millisecond
}

func (c *Config) RateLimitCooldown() time.Duration {
	return time.Duration(c.Scanner.RateLimitCooldownSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scanner.RequestTimeoutSeconds) * time.Second
}

func ptr[T any](v T) *T { return &v }
