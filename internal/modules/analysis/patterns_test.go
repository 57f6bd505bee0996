package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateConsecutiveStatsEmpty(t *testing.T) {
	stats := CalculateConsecutiveStats(nil)
	assert.Zero(t, stats.MaxWinStreak)
	assert.Zero(t, stats.MaxLossStreak)
	assert.Zero(t, stats.CurrentStreak)
	assert.Empty(t, stats.CurrentStreakType)
	assert.Zero(t, stats.TotalStreaks)
}

func TestCalculateConsecutiveStatsStreaks(t *testing.T) {
	// W W L L L W: streaks of 2, 3, 1
	stats := CalculateConsecutiveStats(tradesWithPnL(10, 20, -5, -5, -5, 15))

	assert.Equal(t, 2, stats.MaxWinStreak)
	assert.Equal(t, 3, stats.MaxLossStreak)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, "win", stats.CurrentStreakType)
	assert.Equal(t, 3, stats.TotalStreaks)
	assert.InDelta(t, 2.0, stats.AvgStreakLength, 1e-9)
}

func TestCalculateConsecutiveStatsZeroPnLIsLoss(t *testing.T) {
	stats := CalculateConsecutiveStats(tradesWithPnL(10, 0, 0))

	assert.Equal(t, 1, stats.MaxWinStreak)
	assert.Equal(t, 2, stats.MaxLossStreak)
	assert.Equal(t, "loss", stats.CurrentStreakType)
	assert.Equal(t, 2, stats.CurrentStreak)
}

func TestCalculateConsecutiveStatsSingleTrade(t *testing.T) {
	stats := CalculateConsecutiveStats(tradesWithPnL(-10))

	assert.Equal(t, 1, stats.MaxLossStreak)
	assert.Zero(t, stats.MaxWinStreak)
	assert.Equal(t, 1, stats.TotalStreaks)
	assert.Equal(t, "loss", stats.CurrentStreakType)
}

func TestAnalyzeTimePatterns(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)

	trades := []Trade{
		{NetPnL: 100, ExitedAt: monday},
		{NetPnL: -50, ExitedAt: monday.Add(15 * time.Minute)},
		{NetPnL: 30, ExitedAt: tuesday},
	}

	patterns := AnalyzeTimePatterns(trades)

	require.Contains(t, patterns.ByHour, 10)
	ten := patterns.ByHour[10]
	assert.Equal(t, 2, ten.Trades)
	assert.Equal(t, 1, ten.Wins)
	assert.InDelta(t, 0.5, ten.WinRate, 1e-9)
	assert.InDelta(t, 25.0, ten.AvgPnL, 1e-9)

	require.Contains(t, patterns.ByHour, 14)
	assert.Equal(t, 1, patterns.ByHour[14].Trades)

	require.Contains(t, patterns.ByDay, "Monday")
	assert.Equal(t, 2, patterns.ByDay["Monday"].Trades)
	assert.InDelta(t, 50.0, patterns.ByDay["Monday"].PnL, 1e-9)
	require.Contains(t, patterns.ByDay, "Tuesday")
	assert.InDelta(t, 1.0, patterns.ByDay["Tuesday"].WinRate, 1e-9)
}

func TestAnalyzeTimePatternsEmpty(t *testing.T) {
	patterns := AnalyzeTimePatterns(nil)
	assert.Empty(t, patterns.ByHour)
	assert.Empty(t, patterns.ByDay)
}
