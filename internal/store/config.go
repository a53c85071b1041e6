package store

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RiskConfig holds portfolio and trade-level risk limits. All values are
// fractions of portfolio value except MaxOpenPositions and RequireStopLoss.
type RiskConfig struct {
	MaxDrawdown      float64 `yaml:"max_drawdown" validate:"gt=0,lte=1"`
	MaxExposure      float64 `yaml:"max_exposure" validate:"gt=0,lte=2"`
	MaxPositionSize  float64 `yaml:"max_position_size" validate:"gt=0,lte=1"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss" validate:"gt=0,lte=1"`
	MaxCorrelation   float64 `yaml:"max_correlation" validate:"gte=0,lte=1"`
	MinConfidence    float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
	MaxOpenPositions int     `yaml:"max_open_positions" validate:"gt=0"`
	RequireStopLoss  bool    `yaml:"require_stop_loss"`
	MaxLeverage      float64 `yaml:"max_leverage" validate:"gte=1"`
}

// ExecutionConfig controls order construction and submission retry behavior.
type ExecutionConfig struct {
	OrderType     string  `yaml:"order_type" validate:"oneof=market limit"`
	TimeInForce   string  `yaml:"time_in_force" validate:"oneof=day gtc ioc fok"`
	Qty           float64 `yaml:"qty" validate:"gte=0"`
	Notional      float64 `yaml:"notional" validate:"gte=0"`
	NotionalPct   float64 `yaml:"notional_pct" validate:"gt=0,lte=1"`
	Bracket       bool    `yaml:"bracket"`
	MaxRetries    int     `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseMs   int     `yaml:"retry_base_ms" validate:"gt=0"`
	SubmitTimeout int     `yaml:"submit_timeout_ms" validate:"gt=0"`
}

func (c ExecutionConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMs) * time.Millisecond
}

func (c ExecutionConfig) SubmitTimeoutDur() time.Duration {
	return time.Duration(c.SubmitTimeout) * time.Millisecond
}

// SignalConfig parameterizes the built-in strategies.
type SignalConfig struct {
	Strategy         string  `yaml:"strategy" validate:"oneof=composite momentum mean_reversion breakout"`
	MomentumPeriod   int     `yaml:"momentum_period" validate:"gt=1"`
	RSIPeriod        int     `yaml:"rsi_period" validate:"gt=1"`
	BBWindow         int     `yaml:"bb_window" validate:"gt=1"`
	BBStdDev         float64 `yaml:"bb_stddev" validate:"gt=0"`
	ATRPeriod        int     `yaml:"atr_period" validate:"gt=1"`
	BreakoutLookback int     `yaml:"breakout_lookback" validate:"gt=1"`
	StopATRMult      float64 `yaml:"stop_atr_mult" validate:"gt=0"`
	TargetATRMult    float64 `yaml:"target_atr_mult" validate:"gt=0"`
	// VolumeBonus is the confidence bump applied when volume confirms a
	// breakout. A tuned policy parameter, not a derived constant.
	VolumeBonus float64 `yaml:"volume_bonus" validate:"gte=0,lte=0.5"`
}

// LearningConfig holds the advisory recommendation thresholds. These are
// tuned policy parameters, not derived constants.
type LearningConfig struct {
	MinAccuracy   float64 `yaml:"min_accuracy" validate:"gte=0,lte=1"`
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
}

// BrokerConfig selects the broker endpoint and credential env vars.
type BrokerConfig struct {
	BaseURL   string `yaml:"base_url"`
	KeyEnv    string `yaml:"key_env"`
	SecretEnv string `yaml:"secret_env"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=jsonl postgres"`
	DSN    string `yaml:"dsn"`
	Dir    string `yaml:"dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Mode           string          `yaml:"mode" validate:"oneof=DRY_RUN LIVE"`
	PollSeconds    int             `yaml:"poll_seconds" validate:"gt=0"`
	Symbols        []string        `yaml:"symbols" validate:"min=1"`
	CandleLookback int             `yaml:"candle_lookback" validate:"gte=50"`
	PollIntervalMs int             `yaml:"order_poll_interval_ms"`
	Risk           RiskConfig      `yaml:"risk"`
	Execution      ExecutionConfig `yaml:"execution"`
	Signals        SignalConfig    `yaml:"signals"`
	Learning       LearningConfig  `yaml:"learning"`
	Broker         BrokerConfig    `yaml:"broker"`
	Store          StoreConfig     `yaml:"store"`
	Redis          RedisConfig     `yaml:"redis"`
	Metrics        MetricsConfig   `yaml:"metrics"`
}

func (c *Config) applyDefaults() {
	if c.PollSeconds == 0 {
		c.PollSeconds = 30
	}
	if c.CandleLookback == 0 {
		c.CandleLookback = 120
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 5000
	}
	if c.Risk.MaxDrawdown == 0 {
		c.Risk.MaxDrawdown = 0.15
	}
	if c.Risk.MaxExposure == 0 {
		c.Risk.MaxExposure = 0.9
	}
	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = 0.25
	}
	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 0.05
	}
	if c.Risk.MaxCorrelation == 0 {
		c.Risk.MaxCorrelation = 0.7
	}
	if c.Risk.MinConfidence == 0 {
		c.Risk.MinConfidence = 0.55
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 8
	}
	if c.Risk.MaxLeverage == 0 {
		c.Risk.MaxLeverage = 2.0
	}
	if c.Execution.OrderType == "" {
		c.Execution.OrderType = "market"
	}
	if c.Execution.TimeInForce == "" {
		c.Execution.TimeInForce = "day"
	}
	if c.Execution.NotionalPct == 0 {
		c.Execution.NotionalPct = 0.10
	}
	if c.Execution.MaxRetries == 0 {
		c.Execution.MaxRetries = 3
	}
	if c.Execution.RetryBaseMs == 0 {
		c.Execution.RetryBaseMs = 1000
	}
	if c.Execution.SubmitTimeout == 0 {
		c.Execution.SubmitTimeout = 4000
	}
	if c.Signals.Strategy == "" {
		c.Signals.Strategy = "composite"
	}
	if c.Signals.MomentumPeriod == 0 {
		c.Signals.MomentumPeriod = 10
	}
	if c.Signals.RSIPeriod == 0 {
		c.Signals.RSIPeriod = 14
	}
	if c.Signals.BBWindow == 0 {
		c.Signals.BBWindow = 20
	}
	if c.Signals.BBStdDev == 0 {
		c.Signals.BBStdDev = 2.0
	}
	if c.Signals.ATRPeriod == 0 {
		c.Signals.ATRPeriod = 14
	}
	if c.Signals.BreakoutLookback == 0 {
		c.Signals.BreakoutLookback = 20
	}
	if c.Signals.StopATRMult == 0 {
		c.Signals.StopATRMult = 2.0
	}
	if c.Signals.TargetATRMult == 0 {
		c.Signals.TargetATRMult = 3.0
	}
	if c.Signals.VolumeBonus == 0 {
		c.Signals.VolumeBonus = 0.1
	}
	if c.Learning.MinAccuracy == 0 {
		c.Learning.MinAccuracy = 0.5
	}
	if c.Learning.MinConfidence == 0 {
		c.Learning.MinConfidence = 0.6
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "jsonl"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "data"
	}
	if c.Broker.KeyEnv == "" {
		c.Broker.KeyEnv = "BROKER_API_KEY"
	}
	if c.Broker.SecretEnv == "" {
		c.Broker.SecretEnv = "BROKER_API_SECRET"
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Mode == "LIVE" && c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required in LIVE mode")
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres driver")
	}
	return nil
}

// LoadConfig reads and validates the YAML config at path. Unknown fields are
// rejected at the boundary rather than passed through silently.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig parses, defaults, and validates raw YAML config bytes.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
