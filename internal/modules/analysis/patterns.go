package analysis

// CalculateConsecutiveStats walks the trades in order and computes win/loss
// streak statistics. A streak ends when the outcome sign flips; zero-PnL
// trades count as losses.
func CalculateConsecutiveStats(trades []Trade) ConsecutiveStats {
	stats := ConsecutiveStats{}
	if len(trades) == 0 {
		return stats
	}

	var streakLengths []int
	current := 0
	currentIsWin := false

	for i, t := range trades {
		isWin := t.NetPnL > 0
		if i == 0 || isWin == currentIsWin {
			current++
		} else {
			streakLengths = append(streakLengths, current)
			if currentIsWin {
				if current > stats.MaxWinStreak {
					stats.MaxWinStreak = current
				}
			} else {
				if current > stats.MaxLossStreak {
					stats.MaxLossStreak = current
				}
			}
			current = 1
		}
		currentIsWin = isWin
	}

	// Close out the final streak
	streakLengths = append(streakLengths, current)
	if currentIsWin {
		if current > stats.MaxWinStreak {
			stats.MaxWinStreak = current
		}
		stats.CurrentStreakType = "win"
	} else {
		if current > stats.MaxLossStreak {
			stats.MaxLossStreak = current
		}
		stats.CurrentStreakType = "loss"
	}
	stats.CurrentStreak = current
	stats.TotalStreaks = len(streakLengths)

	total := 0
	for _, l := range streakLengths {
		total += l
	}
	stats.AvgStreakLength = float64(total) / float64(len(streakLengths))

	return stats
}

// AnalyzeTimePatterns buckets trades by exit hour and weekday and computes
// per-bucket outcome stats.
func AnalyzeTimePatterns(trades []Trade) TimePatterns {
	patterns := TimePatterns{
		ByHour: make(map[int]*PeriodStats),
		ByDay:  make(map[string]*PeriodStats),
	}

	for _, t := range trades {
		hour := t.ExitedAt.Hour()
		day := t.ExitedAt.Weekday().String()

		for _, stats := range []*PeriodStats{
			bucketFor(patterns.ByHour, hour),
			bucketForDay(patterns.ByDay, day),
		} {
			stats.Trades++
			stats.PnL += t.NetPnL
			if t.NetPnL > 0 {
				stats.Wins++
			}
		}
	}

	for _, stats := range patterns.ByHour {
		finalize(stats)
	}
	for _, stats := range patterns.ByDay {
		finalize(stats)
	}

	return patterns
}

func bucketFor(m map[int]*PeriodStats, hour int) *PeriodStats {
	if s, ok := m[hour]; ok {
		return s
	}
	s := &PeriodStats{}
	m[hour] = s
	return s
}

func bucketForDay(m map[string]*PeriodStats, day string) *PeriodStats {
	if s, ok := m[day]; ok {
		return s
	}
	s := &PeriodStats{}
	m[day] = s
	return s
}

func finalize(s *PeriodStats) {
	if s.Trades == 0 {
		return
	}
	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.AvgPnL = s.PnL / float64(s.Trades)
}
