package store

import (
	"context"
	"database/sql"
	"fmt"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

const tradeColumns = `id, user_id, pair, session, timeframe, setup_type, trade_type,
	entry_price, stop_loss, take_profit, exit_price, position_size,
	risk_amount, reward_amount, risk_reward_ratio, risk_percentage,
	confidence, COALESCE(emotion_before, ''), rule_followed,
	entry_time, exit_time, profit_loss, COALESCE(status, 'open'), COALESCE(notes, ''),
	COALESCE(screenshot_before, ''), COALESCE(screenshot_after, ''), created_at`

func scanTrade(row interface{ Scan(...interface{}) error }) (*models.Trade, error) {
	var t models.Trade
	var session, direction, status string
	err := row.Scan(
		&t.ID, &t.UserID, &t.Pair, &session, &t.Timeframe, &t.SetupType, &direction,
		&t.EntryPrice, &t.StopLoss, &t.TakeProfit, &t.ExitPrice, &t.PositionSize,
		&t.RiskAmount, &t.RewardAmount, &t.RiskReward, &t.RiskPercentage,
		&t.Confidence, &t.EmotionBefore, &t.RuleFollowed,
		&t.EntryTime, &t.ExitTime, &t.ProfitLoss, &status, &t.Notes,
		&t.ScreenshotBefore, &t.ScreenshotAfter, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Session = models.Session(session)
	t.Direction = models.Direction(direction)
	t.Status = models.TradeStatus(status)
	return &t, nil
}

// InsertTrade stores a new trade and sets its ID.
func (s *SQLiteStore) InsertTrade(ctx context.Context, trade *models.Trade) error {
	if trade.Status == "" {
		trade.Status = models.StatusOpen
	}
	trade.EntryTime = dbTime(trade.EntryTime)
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = trade.EntryTime
	}
	trade.CreatedAt = dbTime(trade.CreatedAt)
	if trade.ExitTime != nil {
		exit := dbTime(*trade.ExitTime)
		trade.ExitTime = &exit
	}
	ruleFollowed := trade.FollowedRules()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (user_id, pair, session, timeframe, setup_type, trade_type,
			entry_price, stop_loss, take_profit, exit_price, position_size,
			risk_amount, reward_amount, risk_reward_ratio, risk_percentage,
			confidence, emotion_before, rule_followed,
			entry_time, exit_time, profit_loss, status, notes,
			screenshot_before, screenshot_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.UserID, trade.Pair, string(trade.Session), trade.Timeframe, trade.SetupType, string(trade.Direction),
		trade.EntryPrice, trade.StopLoss, trade.TakeProfit, trade.ExitPrice, trade.PositionSize,
		trade.RiskAmount, trade.RewardAmount, trade.RiskReward, trade.RiskPercentage,
		trade.Confidence, trade.EmotionBefore, ruleFollowed,
		trade.EntryTime, trade.ExitTime, trade.ProfitLoss, string(trade.Status), trade.Notes,
		trade.ScreenshotBefore, trade.ScreenshotAfter, trade.CreatedAt)
	if err != nil {
		return jerrors.NewStoreError("insert", "trade", err)
	}

	trade.ID, err = res.LastInsertId()
	return err
}

// GetTrade retrieves one of the user's trades with its tags.
func (s *SQLiteStore) GetTrade(ctx context.Context, userID, tradeID int64) (*models.Trade, error) {
	t, err := scanTrade(s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = ? AND user_id = ?`, tradeID, userID))
	if err == sql.ErrNoRows {
		return nil, jerrors.Wrapf(jerrors.ErrTradeNotFound, "trade %d", tradeID)
	}
	if err != nil {
		return nil, jerrors.NewStoreError("get", "trade", err)
	}

	tags, err := s.TradeTags(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	t.Tags = tags
	return t, nil
}

// ListTrades retrieves the user's trades matching filter, with tags attached.
// Trades are ordered by entry time descending unless filter.ByExit is set.
func (s *SQLiteStore) ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE user_id = ?"
	args := []interface{}{filter.UserID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.ExitFrom.IsZero() {
		query += " AND exit_time >= ?"
		args = append(args, dbTime(filter.ExitFrom))
	}
	if !filter.ExitTo.IsZero() {
		query += " AND exit_time < ?"
		args = append(args, dbTime(filter.ExitTo))
	}
	if filter.Pair != "" {
		query += " AND pair = ?"
		args = append(args, filter.Pair)
	}

	if filter.ByExit {
		query += " ORDER BY exit_time ASC, id ASC"
	} else {
		query += " ORDER BY entry_time DESC, id DESC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := s.userTags(ctx, filter.UserID)
	if err != nil {
		return nil, err
	}
	for i := range trades {
		trades[i].Tags = tags[trades[i].ID]
	}
	return trades, nil
}

// CloseTrade records the exit of an open trade. A trade that is already
// closed is left untouched and reported as ErrTradeClosed.
func (s *SQLiteStore) CloseTrade(ctx context.Context, userID, tradeID int64, tc TradeClose) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET exit_price = ?, exit_time = ?, profit_loss = ?, status = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`, tc.ExitPrice, dbTime(tc.ExitTime), tc.ProfitLoss, string(models.StatusClosed),
		tradeID, userID, string(models.StatusOpen))
	if err != nil {
		return jerrors.NewStoreError("close", "trade", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if err := s.ownsTrade(ctx, userID, tradeID); err != nil {
			return err
		}
		return jerrors.Wrapf(jerrors.ErrTradeClosed, "trade %d", tradeID)
	}
	return nil
}

// DeleteTrade removes one of the user's trades. Its tag links go with it.
func (s *SQLiteStore) DeleteTrade(ctx context.Context, userID, tradeID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ? AND user_id = ?`, tradeID, userID)
	if err != nil {
		return jerrors.NewStoreError("delete", "trade", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return jerrors.Wrapf(jerrors.ErrTradeNotFound, "trade %d", tradeID)
	}
	return nil
}

// DeleteUserTrades removes every trade of a user and returns how many were
// deleted.
func (s *SQLiteStore) DeleteUserTrades(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE user_id = ?`, userID)
	if err != nil {
		return 0, jerrors.NewStoreError("delete", "trade", err)
	}
	return res.RowsAffected()
}

// SetScreenshot records a screenshot file name on one of the user's trades.
func (s *SQLiteStore) SetScreenshot(ctx context.Context, userID, tradeID int64, kind models.ScreenshotKind, file string) error {
	var column string
	switch kind {
	case models.ScreenshotBefore:
		column = "screenshot_before"
	case models.ScreenshotAfter:
		column = "screenshot_after"
	default:
		return jerrors.NewValidationError("kind", kind, "must be before or after")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE trades SET `+column+` = ? WHERE id = ? AND user_id = ?`, file, tradeID, userID)
	if err != nil {
		return jerrors.NewStoreError("update", "trade screenshot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return jerrors.Wrapf(jerrors.ErrTradeNotFound, "trade %d", tradeID)
	}
	return nil
}

// ownsTrade returns ErrTradeNotFound unless the trade exists and belongs to
// the user.
func (s *SQLiteStore) ownsTrade(ctx context.Context, userID, tradeID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM trades WHERE id = ? AND user_id = ?`, tradeID, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return jerrors.Wrapf(jerrors.ErrTradeNotFound, "trade %d", tradeID)
	}
	if err != nil {
		return jerrors.NewStoreError("get", "trade", err)
	}
	return nil
}
