package analysis

import "time"

// Trade is one closed trade used for performance analysis
type Trade struct {
	ID         int64      `json:"id"`
	StrategyID string     `json:"strategy_id"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Quantity   float64    `json:"quantity"`
	Price      float64    `json:"price"`
	NetPnL     float64    `json:"net_pnl"`
	Regime     string     `json:"regime,omitempty"`
	EnteredAt  *time.Time `json:"entered_at,omitempty"`
	ExitedAt   time.Time  `json:"exited_at"`
}

// PerformanceSnapshot is a point-in-time record of performance metrics
type PerformanceSnapshot struct {
	StrategyID   string    `json:"strategy_id"`
	CapturedAt   time.Time `json:"captured_at"`
	WinRate      float64   `json:"win_rate"`
	ProfitFactor float64   `json:"profit_factor"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	TotalTrades  int       `json:"total_trades"`
	NetPnL       float64   `json:"net_pnl"`
}

// Metric returns the named snapshot metric for trend calculations
func (s PerformanceSnapshot) Metric(name string) float64 {
	switch name {
	case "win_rate":
		return s.WinRate
	case "profit_factor":
		return s.ProfitFactor
	case "sharpe_ratio":
		return s.SharpeRatio
	case "max_drawdown":
		return s.MaxDrawdown
	case "net_pnl":
		return s.NetPnL
	default:
		return 0
	}
}

// TrendDirection classifies how a metric is moving
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// PerformanceTrend is the trend analysis for one metric
type PerformanceTrend struct {
	MetricName        string         `json:"metric_name"`
	Direction         TrendDirection `json:"direction"`
	ChangePercent     float64        `json:"change_percent"`
	Volatility        float64        `json:"volatility"`
	RecentAverage     float64        `json:"recent_average"`
	HistoricalAverage float64        `json:"historical_average"`
}

// Alert flags a metric that crossed a threshold
type Alert struct {
	Severity  string  `json:"severity"` // critical, warning
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Report is the composite output of a performance analysis run
type Report struct {
	Period          string                      `json:"period"`
	Summary         map[string]float64          `json:"summary"`
	Trends          map[string]PerformanceTrend `json:"trends"`
	Alerts          []Alert                     `json:"alerts"`
	Recommendations []string                    `json:"recommendations"`
}

// TradeStats summarizes trade outcomes over a window
type TradeStats struct {
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	TotalTrades  int     `json:"total_trades"`
	NetPnL       float64 `json:"net_pnl"`
}

// StrategyPerformance summarizes risk-adjusted strategy metrics
type StrategyPerformance struct {
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

// ModelPerformance summarizes prediction model quality
type ModelPerformance struct {
	ModelID       string     `json:"model_id"`
	Version       string     `json:"version"`
	Accuracy      float64    `json:"accuracy"`
	Precision     float64    `json:"precision"`
	Recall        float64    `json:"recall"`
	LastTrainedAt *time.Time `json:"last_trained_at,omitempty"`
}

// RegimeStats is per-market-regime performance
type RegimeStats struct {
	WinRate float64 `json:"win_rate"`
	Trades  int     `json:"trades"`
}

// ConsecutiveStats describes win/loss streak behavior
type ConsecutiveStats struct {
	MaxWinStreak      int     `json:"max_win_streak"`
	MaxLossStreak     int     `json:"max_loss_streak"`
	CurrentStreak     int     `json:"current_streak"`
	CurrentStreakType string  `json:"current_streak_type"`
	TotalStreaks      int     `json:"total_streaks"`
	AvgStreakLength   float64 `json:"avg_streak_length"`
}

// PeriodStats aggregates trades within one time bucket
type PeriodStats struct {
	Trades  int     `json:"trades"`
	PnL     float64 `json:"pnl"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	AvgPnL  float64 `json:"avg_pnl"`
}

// TimePatterns groups performance by time of day and day of week
type TimePatterns struct {
	ByHour map[int]*PeriodStats    `json:"by_hour"`
	ByDay  map[string]*PeriodStats `json:"by_day"`
}
