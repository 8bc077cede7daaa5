package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// DetectorConfig tunes the market-structure detector.
type DetectorConfig struct {
	LookbackBars     int     `yaml:"lookback_bars"`
	VolumeThreshold  float64 `yaml:"volume_threshold"`
	MinGapPct        float64 `yaml:"min_gap_pct"`
	SwingThreshold   float64 `yaml:"swing_threshold"`
	SwingStrength    int     `yaml:"swing_strength"`
	ConfirmationBars int     `yaml:"confirmation_bars"`
	BiasMAPeriod     int     `yaml:"bias_ma_period"`
}

// SignalConfig tunes the signal generator. Confidence weights are
// configuration, not a fixed formula; the result is clamped to [0,1].
type SignalConfig struct {
	Strategy           string             `yaml:"strategy"`
	MinRiskReward      float64            `yaml:"min_risk_reward"`
	MinFiltersRequired int                `yaml:"min_filters_required"`
	Filters            []string           `yaml:"filters"`
	FilterWeights      map[string]float64 `yaml:"filter_weights"`
	BaseConfidence     float64            `yaml:"base_confidence"`
	SweepWeight        float64            `yaml:"sweep_weight"`
	BOSWeight          float64            `yaml:"bos_weight"`
	SLBufferATR        float64            `yaml:"sl_buffer_atr"`
	ATRPeriod          int                `yaml:"atr_period"`
	ZoneProximityPct   float64            `yaml:"zone_proximity_pct"`
	MaxPositions       int                `yaml:"max_positions"`
	RSIOverbought      float64            `yaml:"rsi_overbought"`
	RSIOversold        float64            `yaml:"rsi_oversold"`
	VolumeRatioMin     float64            `yaml:"volume_ratio_min"`
}

// RiskConfig tunes position sizing.
type RiskConfig struct {
	RiskPerTrade float64 `yaml:"risk_per_trade"`
	Leverage     float64 `yaml:"leverage"`
	LotStep      float64 `yaml:"lot_step"`
	MinNotional  float64 `yaml:"min_notional"`
}

// ExecutionConfig tunes the simulation execution engine.
type ExecutionConfig struct {
	CommissionRate      float64       `yaml:"commission_rate"`
	SlippageRate        float64       `yaml:"slippage_rate"`
	RequireConfirmation bool          `yaml:"require_confirmation"`
	ConfirmTTL          time.Duration `yaml:"confirm_ttl"`
	IdempotencyWindow   time.Duration `yaml:"idempotency_window"`
	StaleAfter          time.Duration `yaml:"stale_after"`
	SnapshotOnFill      bool          `yaml:"snapshot_on_fill"`
}

// PairConfig binds one trading pair to its bias and trigger timeframes.
type PairConfig struct {
	Symbol string `yaml:"symbol"`
	HTF    string `yaml:"htf"`
	LTF    string `yaml:"ltf"`
}

// Config holds all application configuration. It is built once at
// startup and passed into constructors; there is no ambient global state.
type Config struct {
	Mode     string       `yaml:"mode"` // "simulation" or "live"
	Pairs    []PairConfig `yaml:"pairs"`
	Exchange struct {
		APIKey    string `yaml:"api_key"`
		SecretKey string `yaml:"secret_key"`
		Testnet   bool   `yaml:"testnet"`
	} `yaml:"exchange"`
	Detector  DetectorConfig  `yaml:"detector"`
	Signal    SignalConfig    `yaml:"signal"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	Sim       struct {
		InitialCash float64 `yaml:"initial_cash"`
	} `yaml:"sim"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		EvalCron     string `yaml:"eval_cron"`
		SnapshotCron string `yaml:"snapshot_cron"`
		SweepCron    string `yaml:"sweep_cron"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best effort; real env wins

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		cfg.Exchange.SecretKey = v
	}
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		cfg.Exchange.Testnet = v == "true" || v == "1"
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("INITIAL_CASH"); v != "" {
		if cash, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sim.InitialCash = cash
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "simulation"
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = []PairConfig{{Symbol: "BTCUSDT", HTF: "4h", LTF: "15m"}}
	}

	d := &cfg.Detector
	if d.LookbackBars == 0 {
		d.LookbackBars = 20
	}
	if d.VolumeThreshold == 0 {
		d.VolumeThreshold = 1.5
	}
	if d.MinGapPct == 0 {
		d.MinGapPct = 0.001
	}
	if d.SwingThreshold == 0 {
		d.SwingThreshold = 0.005
	}
	if d.SwingStrength == 0 {
		d.SwingStrength = 2
	}
	if d.ConfirmationBars == 0 {
		d.ConfirmationBars = 2
	}
	if d.BiasMAPeriod == 0 {
		d.BiasMAPeriod = 50
	}

	s := &cfg.Signal
	if s.Strategy == "" {
		s.Strategy = "smc"
	}
	if s.MinRiskReward == 0 {
		s.MinRiskReward = 3.0
	}
	if s.MinFiltersRequired == 0 {
		s.MinFiltersRequired = 2
	}
	if len(s.Filters) == 0 {
		s.Filters = []string{"rsi", "macd", "bollinger", "stochastic", "volume"}
	}
	if s.FilterWeights == nil {
		s.FilterWeights = map[string]float64{
			"rsi":        0.08,
			"macd":       0.08,
			"bollinger":  0.06,
			"stochastic": 0.06,
			"volume":     0.07,
		}
	}
	if s.BaseConfidence == 0 {
		s.BaseConfidence = 0.35
	}
	if s.SweepWeight == 0 {
		s.SweepWeight = 0.15
	}
	if s.BOSWeight == 0 {
		s.BOSWeight = 0.10
	}
	if s.SLBufferATR == 0 {
		s.SLBufferATR = 0.5
	}
	if s.ATRPeriod == 0 {
		s.ATRPeriod = 14
	}
	if s.ZoneProximityPct == 0 {
		s.ZoneProximityPct = 0.005
	}
	if s.MaxPositions == 0 {
		s.MaxPositions = 1
	}
	if s.RSIOverbought == 0 {
		s.RSIOverbought = 70
	}
	if s.RSIOversold == 0 {
		s.RSIOversold = 30
	}
	if s.VolumeRatioMin == 0 {
		s.VolumeRatioMin = 1.2
	}

	r := &cfg.Risk
	if r.RiskPerTrade == 0 {
		r.RiskPerTrade = 0.01
	}
	if r.Leverage == 0 {
		r.Leverage = 5
	}
	if r.LotStep == 0 {
		r.LotStep = 0.001
	}
	if r.MinNotional == 0 {
		r.MinNotional = 10
	}

	e := &cfg.Execution
	if e.CommissionRate == 0 {
		e.CommissionRate = 0.0004
	}
	if e.SlippageRate == 0 {
		e.SlippageRate = 0.0005
	}
	if e.ConfirmTTL == 0 {
		e.ConfirmTTL = 5 * time.Minute
	}
	if e.IdempotencyWindow == 0 {
		e.IdempotencyWindow = 10 * time.Minute
	}
	if e.StaleAfter == 0 {
		e.StaleAfter = 2 * time.Minute
	}

	if cfg.Sim.InitialCash == 0 {
		cfg.Sim.InitialCash = 10000
	}
	if cfg.Schedule.EvalCron == "" {
		cfg.Schedule.EvalCron = "0 * * * * *"
	}
	if cfg.Schedule.SnapshotCron == "" {
		cfg.Schedule.SnapshotCron = "0 */5 * * * *"
	}
	if cfg.Schedule.SweepCron == "" {
		cfg.Schedule.SweepCron = "*/30 * * * * *"
	}
}

// Validate checks cross-field invariants that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Mode != "simulation" && c.Mode != "live" {
		return fmt.Errorf("mode must be \"simulation\" or \"live\", got %q", c.Mode)
	}
	if c.Mode == "live" && (c.Exchange.APIKey == "" || c.Exchange.SecretKey == "") {
		return fmt.Errorf("exchange.api_key and exchange.secret_key are required in live mode")
	}
	for _, p := range c.Pairs {
		if p.Symbol == "" {
			return fmt.Errorf("pair symbol is required")
		}
		htf := model.Timeframe(p.HTF).Duration()
		ltf := model.Timeframe(p.LTF).Duration()
		if htf == 0 || ltf == 0 {
			return fmt.Errorf("pair %s: unknown timeframe (htf=%q ltf=%q)", p.Symbol, p.HTF, p.LTF)
		}
		if htf <= ltf {
			return fmt.Errorf("pair %s: HTF duration must exceed LTF duration", p.Symbol)
		}
	}
	if c.Signal.MinRiskReward < 1 {
		return fmt.Errorf("signal.min_risk_reward must be >= 1")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 0.1 {
		return fmt.Errorf("risk.risk_per_trade must be in (0, 0.1]")
	}
	if c.Risk.Leverage < 1 {
		return fmt.Errorf("risk.leverage must be >= 1")
	}
	if c.Sim.InitialCash <= 0 {
		return fmt.Errorf("sim.initial_cash must be positive")
	}
	return nil
}
