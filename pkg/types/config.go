// Package types provides configuration and Play document types for the
// backtest execution core.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType names one directional or position-management action a
// matched case can emit.
type ActionType string

const (
	ActionEnterLong  ActionType = "enter_long"
	ActionEnterShort ActionType = "enter_short"
	ActionExit       ActionType = "exit"
	ActionClose      ActionType = "close"
	ActionFlip       ActionType = "flip"
)

// ActionSpec is one emitted action within a matched case: a directional
// intent plus optional sizing/protective overrides layered onto the
// Play's position_policy/risk_model defaults for this signal only.
type ActionSpec struct {
	Type         ActionType      `json:"type"`
	SizeOverride decimal.Decimal `json:"sizeOverride,omitempty"`
	StopLoss     decimal.Decimal `json:"stopLoss,omitempty"`
	TakeProfit   decimal.Decimal `json:"takeProfit,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// Case is one when/emit pair inside an ActionBlock. When is a condition
// tree in either the DSL's shorthand list form (`[lhs, op, rhs, extra?]`)
// or its dict form (`{all: [...]}`, `{gt: [...]}`, `{var: name}`, ...);
// it decodes generically here (a Play file's YAML/JSON nests maps and
// lists freely) and internal/ruledsl compiles it into a rule tree, so
// this package carries no rule-tree types of its own.
type Case struct {
	When interface{}  `json:"when"`
	Emit []ActionSpec `json:"emit"`
}

// ActionBlock is one ordered sequence of when/emit cases. Per spec.md
// §4.5, a block's cases are evaluated in order and only the first match
// emits, stopping further cases in that block; blocks themselves are
// evaluated in their declared order and each may emit independently.
type ActionBlock struct {
	ID    string `json:"id"`
	Cases []Case `json:"cases"`
}

// SlippageConfig selects and parameterizes one of the exchange's slippage
// models.
type SlippageConfig struct {
	Model          string          `json:"model"` // "fixed", "volume_weighted", "orderbook"
	FixedBps       decimal.Decimal `json:"fixedBps,omitempty"`
	ImpactFactor   decimal.Decimal `json:"impactFactor,omitempty"`
	VolumeFraction decimal.Decimal `json:"volumeFraction,omitempty"`
}

// RiskModel bounds the exchange's acceptance of orders and the gate
// layer's signal-to-order pipeline for a single Play.
type RiskModel struct {
	MaxLeverage       decimal.Decimal `json:"maxLeverage"`
	MaxPositionNotional decimal.Decimal `json:"maxPositionNotional"`
	MaxOpenPositions  int             `json:"maxOpenPositions"`
	MaxDrawdownPct    decimal.Decimal `json:"maxDrawdownPct"`
	MaxDailyLossPct   decimal.Decimal `json:"maxDailyLossPct"`
	CooldownBars      int             `json:"cooldownBars"`
}

// SizingMode selects how PositionPolicy converts a Signal into an order
// quantity.
type SizingMode string

const (
	SizingPercentEquity SizingMode = "percent_equity"
	SizingFixedUSDT     SizingMode = "fixed_usdt"
	SizingRiskPerTrade  SizingMode = "risk_per_trade_pct"
)

// PositionPolicy is the Play's default sizing and protective-order policy,
// used whenever a Signal doesn't supply its own overrides.
type PositionPolicy struct {
	Mode              SizingMode      `json:"mode"`
	Value             decimal.Decimal `json:"value"` // meaning depends on Mode
	DefaultStopLossPct decimal.Decimal `json:"defaultStopLossPct,omitempty"`
	DefaultTakeProfitPct decimal.Decimal `json:"defaultTakeProfitPct,omitempty"`
	MakerFeeBps       decimal.Decimal `json:"makerFeeBps"`
	TakerFeeBps       decimal.Decimal `json:"takerFeeBps"`
}

// AccountConfig is the simulated account's starting isolated-margin state.
type AccountConfig struct {
	InitialCashUSDT decimal.Decimal `json:"initialCashUsdt"`
	Leverage        decimal.Decimal `json:"leverage"`
	Slippage        SlippageConfig  `json:"slippage"`
}

// FeatureSpec declares one named feature a Play's rule tree may reference,
// bound to an indicator/structure type, its parameters, and the timeframe
// role it is computed against.
type FeatureSpec struct {
	Key         string         `json:"key"`
	Kind        string         `json:"kind"` // "indicator" or "structure"
	Type        string         `json:"type"` // e.g. "ema", "rsi", "swing"
	Params      map[string]any `json:"params"`
	Role        TimeframeRole  `json:"role"`
	InputSource string         `json:"inputSource,omitempty"` // "price" (default), "volume", or another feature's key
}

// TimeframeBinding maps a Play's abstract timeframe roles to concrete
// Timeframe values.
type TimeframeBinding struct {
	Exec Timeframe `json:"exec"`
	Mid  Timeframe `json:"mid,omitempty"`
	High Timeframe `json:"high,omitempty"`
}

// Play is the declarative strategy document the engine executes: a
// symbol universe, timeframe bindings, the account and position policy,
// a feature catalog, and the action blocks that produce its signals.
type Play struct {
	ID             string           `json:"id"`
	Version        string           `json:"version"`
	SymbolUniverse []string         `json:"symbolUniverse"`
	Timeframes     TimeframeBinding `json:"timeframes"`
	Account        AccountConfig    `json:"account"`
	Features       []FeatureSpec    `json:"features"`
	// Variables holds named reusable condition trees, each in the same
	// shorthand-list-or-dict shape a Case's When uses. A When tree
	// references one by name with {"var": name}; internal/ruledsl expands
	// the reference at compile time, so a variable is pure sugar — it adds
	// no new evaluation semantics of its own.
	Variables      map[string]interface{} `json:"variables"`
	Actions        []ActionBlock           `json:"actions"`
	RiskModel      RiskModel               `json:"riskModel"`
	PositionPolicy PositionPolicy          `json:"positionPolicy"`
}

// BacktestConfig represents the run-level configuration wrapping a Play:
// the symbols/date range to execute it over, outside of the Play document
// itself.
type BacktestConfig struct {
	ID        string    `json:"id"`
	Play      Play      `json:"play"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// BacktestResult represents the results of a backtest run.
type BacktestResult struct {
	ID              string              `json:"id"`
	Config          *BacktestConfig     `json:"config"`
	Metrics         *PerformanceMetrics `json:"metrics"`
	RiskMetrics     *RiskMetrics        `json:"riskMetrics"`
	EquityCurve     []EquityPoint       `json:"equityCurve"`
	Trades          []Trade             `json:"trades"`
	StartedAt       time.Time           `json:"startedAt"`
	CompletedAt     time.Time           `json:"completedAt"`
	Duration        time.Duration       `json:"duration"`
	BarsProcessed   uint64              `json:"barsProcessed"`
	PlayHash        string              `json:"playHash"`
	InputHash       string              `json:"inputHash"`
	TradesHash      string              `json:"tradesHash"`
	EquityHash      string              `json:"equityHash"`
	RunHash         string              `json:"runHash"`
}

// BacktestProgress represents the progress of a running backtest, polled
// over the internal/api boundary.
type BacktestProgress struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"` // "running", "completed", "failed", "cancelled"
	Progress      float64         `json:"progress"` // 0-100
	BarsProcessed uint64          `json:"barsProcessed"`
	TotalBars     uint64          `json:"totalBars"`
	CurrentTsMs   int64           `json:"currentTsMs"`
	TradesExecuted int            `json:"tradesExecuted"`
	CurrentEquity decimal.Decimal `json:"currentEquity"`
	Error         string          `json:"error,omitempty"`
}

// ServerConfig represents the internal/api HTTP server configuration.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
	EnableMetrics  bool          `json:"enableMetrics"`
	MetricsPort    int           `json:"metricsPort"`
}

// DataConfig represents bar data storage configuration.
type DataConfig struct {
	DataDir   string `json:"dataDir"`
	CacheSize int    `json:"cacheSize"` // MB
}
