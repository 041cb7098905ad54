package journal

import (
	"context"
	"time"

	"trade-journal/internal/analytics"
	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// MaxTimeframeDays bounds the daily report window.
const MaxTimeframeDays = 3650

// closedTrades loads the user's closed trades in exit order.
func (s *Service) closedTrades(ctx context.Context, filter store.TradeFilter, report string) ([]models.Trade, error) {
	start := time.Now()
	trades, err := s.store.ListTrades(ctx, filter)
	if err != nil {
		return nil, jerrors.Wrapf(err, "load trades for %s report", report)
	}
	logging.LogReport(logging.WithUser(s.log(ctx), filter.UserID), report, len(trades), time.Since(start))
	return trades, nil
}

// Summary returns the overall performance report of the user.
func (s *Service) Summary(ctx context.Context, userID int64) (analytics.Summary, error) {
	trades, err := s.closedTrades(ctx, store.ClosedSince(userID, time.Time{}), "overall")
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.OverallSummary(trades), nil
}

// Daily returns per-day results for the trades closed in the last days days.
func (s *Service) Daily(ctx context.Context, userID int64, days int) ([]analytics.DailyStats, error) {
	if days <= 0 || days > MaxTimeframeDays {
		return nil, jerrors.NewValidationError("days", days, "must be between 1 and 3650")
	}
	now := s.now()
	trades, err := s.closedTrades(ctx, store.ClosedSince(userID, now.AddDate(0, 0, -days)), "daily")
	if err != nil {
		return nil, err
	}
	return analytics.StatsByTimeframe(trades, days, now), nil
}

// BySession returns the per-session breakdown of the user's closed trades.
func (s *Service) BySession(ctx context.Context, userID int64) ([]analytics.GroupStats, error) {
	trades, err := s.closedTrades(ctx, store.ClosedSince(userID, time.Time{}), "session")
	if err != nil {
		return nil, err
	}
	return analytics.StatsBySession(trades), nil
}

// BySetup returns the per-setup breakdown of the user's closed trades.
func (s *Service) BySetup(ctx context.Context, userID int64) ([]analytics.GroupStats, error) {
	trades, err := s.closedTrades(ctx, store.ClosedSince(userID, time.Time{}), "setup")
	if err != nil {
		return nil, err
	}
	return analytics.StatsBySetup(trades), nil
}

// Mistakes returns how often each tag was attached to the user's trades,
// open or closed.
func (s *Service) Mistakes(ctx context.Context, userID int64) ([]analytics.TagFrequency, error) {
	trades, err := s.closedTrades(ctx, store.TradeFilter{UserID: userID}, "mistakes")
	if err != nil {
		return nil, err
	}
	return analytics.MistakeFrequency(trades), nil
}

// Monthly returns the monthly report of the user for year and month.
func (s *Service) Monthly(ctx context.Context, userID int64, year int, month time.Month) (analytics.MonthlyReport, error) {
	if month < time.January || month > time.December {
		return analytics.MonthlyReport{}, jerrors.NewValidationError("month", int(month), "must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return analytics.MonthlyReport{}, jerrors.NewValidationError("year", year, "must be between 1970 and 9999")
	}
	from, to := analytics.MonthBounds(year, month)
	trades, err := s.closedTrades(ctx, store.ClosedBetween(userID, from, to), "monthly")
	if err != nil {
		return analytics.MonthlyReport{}, err
	}
	return analytics.BuildMonthlyReport(trades, year, month), nil
}

// MonthTrades returns the user's closed trades of one month in exit order.
func (s *Service) MonthTrades(ctx context.Context, userID int64, year int, month time.Month) ([]models.Trade, error) {
	from, to := analytics.MonthBounds(year, month)
	return s.closedTrades(ctx, store.ClosedBetween(userID, from, to), "month trades")
}

// EquityCurve returns the cumulative balance walk of the user's closed trades.
func (s *Service) EquityCurve(ctx context.Context, userID int64) ([]analytics.EquityPoint, error) {
	trades, err := s.closedTrades(ctx, store.ClosedSince(userID, time.Time{}), "equity")
	if err != nil {
		return nil, err
	}
	return analytics.EquityCurve(trades), nil
}
