package journal

import (
	"context"
	"math/rand"
	"time"

	"trade-journal/internal/models"
)

// Sample data mirrors a month of one-hour forex trades on the majors.
var (
	samplePairs    = []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD"}
	sampleSetups   = []string{"EMA + Trendline", "Support/Resistance", "Break & Retest"}
	sampleLotUnits = 100000.0
)

// AddSampleTrades creates n closed demo trades for the user spread over the
// last 30 days and returns how many were stored. rng makes runs repeatable.
func (s *Service) AddSampleTrades(ctx context.Context, userID int64, n int, rng *rand.Rand) (int, error) {
	now := s.now()
	created := 0
	for i := 0; i < n; i++ {
		isBuy := rng.Intn(2) == 0
		entry := 1.05 + rng.Float64()*0.05
		lots := 0.1 + rng.Float64()*0.9

		dir, stop, target := models.DirectionBuy, entry-0.0010, entry+0.0020
		if !isBuy {
			dir, stop, target = models.DirectionSell, entry+0.0010, entry-0.0020
		}

		// Six in ten trades move 10-30 pips in favor; the rest stop out early.
		move := 0.001 + rng.Float64()*0.002
		if rng.Float64() <= 0.4 {
			move = -(0.0005 + rng.Float64()*0.0005)
		}
		exit := entry + move
		if !isBuy {
			exit = entry - move
		}

		entryTime := now.AddDate(0, 0, -rng.Intn(31)).Add(-time.Duration(rng.Intn(24)) * time.Hour)
		exitTime := entryTime.Add(time.Duration(1+rng.Intn(24)) * time.Hour)
		if exitTime.After(now) {
			exitTime = now
		}

		trade, err := s.CreateTrade(ctx, userID, NewTrade{
			Pair:         samplePairs[rng.Intn(len(samplePairs))],
			Session:      models.Sessions[rng.Intn(len(models.Sessions))],
			Timeframe:    "H1",
			SetupType:    sampleSetups[rng.Intn(len(sampleSetups))],
			Direction:    dir,
			EntryPrice:   entry,
			StopLoss:     stop,
			TakeProfit:   target,
			PositionSize: lots * sampleLotUnits,
			EntryTime:    &entryTime,
		})
		if err != nil {
			return created, err
		}
		if _, err := s.CloseTrade(ctx, userID, trade.ID, exit, exitTime); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
