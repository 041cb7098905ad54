package journal

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/security"
	"trade-journal/internal/store"
)

// MaxPrice and MaxPositionSize bound trade inputs so that derived amounts
// stay finite.
const (
	MaxPrice        = 1e9
	MaxPositionSize = 1e12
)

// NewTrade is the input for entering a trade.
type NewTrade struct {
	Pair          string           `json:"pair" validate:"required,pair"`
	Session       models.Session   `json:"session" validate:"required,session"`
	Timeframe     string           `json:"timeframe" validate:"required,max=10"`
	SetupType     string           `json:"setup_type" validate:"required,max=100"`
	Direction     models.Direction `json:"trade_type" validate:"required,oneof=Buy Sell"`
	EntryPrice    float64          `json:"entry_price" validate:"gt=0,lte=1000000000"`
	StopLoss      float64          `json:"stop_loss" validate:"gt=0,lte=1000000000"`
	TakeProfit    float64          `json:"take_profit" validate:"gt=0,lte=1000000000"`
	PositionSize  float64          `json:"position_size" validate:"gt=0,lte=1000000000000"`
	Confidence    *int             `json:"confidence_level,omitempty" validate:"omitempty,min=1,max=10"`
	EmotionBefore string           `json:"emotion_before,omitempty" validate:"max=50"`
	RuleFollowed  *bool            `json:"rule_followed,omitempty"`
	EntryTime     *time.Time       `json:"entry_time,omitempty"`
	Notes         string           `json:"notes,omitempty" validate:"max=5000"`
	TagIDs        []int64          `json:"tag_ids,omitempty"`
}

// Plan holds the risk figures derived from a trade's entry, stop and target.
type Plan struct {
	RiskAmount     float64
	RewardAmount   float64
	RiskReward     float64
	RiskPercentage float64
}

// PlanTrade derives the planned risk of a trade. The risk-reward ratio is 0
// when the stop sits at the entry price.
func PlanTrade(entry, stop, target, size float64) Plan {
	risk := math.Abs(entry - stop)
	reward := math.Abs(target - entry)

	var p Plan
	if rr := reward / risk; risk > 0 && finite(rr) {
		p.RiskReward, _ = decimal.NewFromFloat(rr).Round(2).Float64()
	}
	p.RiskAmount = risk * size
	p.RewardAmount = reward * size
	if entry > 0 {
		p.RiskPercentage = risk / entry * 100
	}
	return p
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ProfitLoss returns the realized result of closing a position at exit.
func ProfitLoss(direction models.Direction, entry, exit, size float64) float64 {
	if direction == models.DirectionSell {
		return (entry - exit) * size
	}
	return (exit - entry) * size
}

// CreateTrade validates and stores a new open trade for the user and returns
// it with its ID and derived risk figures.
func (s *Service) CreateTrade(ctx context.Context, userID int64, in NewTrade) (*models.Trade, error) {
	if err := s.authorize(ctx, security.OpCreateTrade); err != nil {
		return nil, err
	}
	in.Pair = security.SanitizePair(in.Pair)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	plan := PlanTrade(in.EntryPrice, in.StopLoss, in.TakeProfit, in.PositionSize)
	if !finite(plan.RiskAmount) || !finite(plan.RewardAmount) || !finite(plan.RiskPercentage) {
		return nil, jerrors.NewValidationError("position_size", in.PositionSize, "gives a risk amount that is out of range")
	}
	entryTime := s.now()
	if in.EntryTime != nil {
		entryTime = *in.EntryTime
	}

	trade := &models.Trade{
		UserID:         userID,
		Pair:           in.Pair,
		Session:        in.Session,
		Timeframe:      in.Timeframe,
		SetupType:      in.SetupType,
		Direction:      in.Direction,
		EntryPrice:     in.EntryPrice,
		StopLoss:       in.StopLoss,
		TakeProfit:     in.TakeProfit,
		PositionSize:   in.PositionSize,
		RiskAmount:     plan.RiskAmount,
		RewardAmount:   plan.RewardAmount,
		RiskReward:     plan.RiskReward,
		RiskPercentage: models.Float(plan.RiskPercentage),
		Confidence:     in.Confidence,
		EmotionBefore:  in.EmotionBefore,
		RuleFollowed:   models.Bool(in.RuleFollowed == nil || *in.RuleFollowed),
		EntryTime:      entryTime,
		Status:         models.StatusOpen,
		Notes:          security.SanitizeText(in.Notes),
		CreatedAt:      s.now(),
	}

	if err := s.store.InsertTrade(ctx, trade); err != nil {
		return nil, jerrors.Wrap(err, "create trade")
	}
	for _, tagID := range in.TagIDs {
		if err := s.store.AttachTag(ctx, userID, trade.ID, tagID); err != nil {
			return nil, jerrors.Wrapf(err, "tag trade %d", trade.ID)
		}
	}

	logging.LogTrade(logging.WithUser(s.log(ctx), userID), "opened", trade.ID, trade.Pair, string(trade.Direction), trade.EntryPrice)
	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditTradeCreated,
		UserID:    userID,
		TradeID:   trade.ID,
		Action:    string(trade.Direction),
		Details: map[string]interface{}{
			"pair":        trade.Pair,
			"entry_price": trade.EntryPrice,
			"risk_amount": trade.RiskAmount,
		},
	})
	return trade, nil
}

// CloseTrade closes one of the user's open trades at exitPrice. A zero exitTime
// means now. It returns the realized profit/loss.
func (s *Service) CloseTrade(ctx context.Context, userID, tradeID int64, exitPrice float64, exitTime time.Time) (float64, error) {
	if err := s.authorize(ctx, security.OpCloseTrade); err != nil {
		return 0, err
	}
	if !(exitPrice > 0) || exitPrice > MaxPrice {
		return 0, jerrors.NewValidationError("exit_price", exitPrice, "must be greater than 0 and at most 1e9")
	}

	trade, err := s.store.GetTrade(ctx, userID, tradeID)
	if err != nil {
		return 0, err
	}
	if trade.Status == models.StatusClosed {
		return 0, jerrors.Wrapf(jerrors.ErrTradeClosed, "trade %d", tradeID)
	}

	if exitTime.IsZero() {
		exitTime = s.now()
	}
	if exitTime.Before(trade.EntryTime) {
		return 0, jerrors.NewValidationError("exit_time", exitTime, "must not be before entry time")
	}

	pnl := ProfitLoss(trade.Direction, trade.EntryPrice, exitPrice, trade.PositionSize)
	if !finite(pnl) {
		return 0, jerrors.NewValidationError("exit_price", exitPrice, "gives a profit/loss that is out of range")
	}
	err = s.store.CloseTrade(ctx, userID, tradeID, store.TradeClose{
		ExitPrice:  exitPrice,
		ExitTime:   exitTime,
		ProfitLoss: pnl,
	})
	if err != nil {
		return 0, jerrors.Wrap(err, "close trade")
	}

	logging.LogTrade(logging.WithUser(s.log(ctx), userID), "closed", tradeID, trade.Pair, string(trade.Direction), exitPrice)
	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditTradeClosed,
		UserID:    userID,
		TradeID:   tradeID,
		Details: map[string]interface{}{
			"exit_price":  exitPrice,
			"profit_loss": pnl,
		},
	})
	return pnl, nil
}

// DeleteTrade removes one of the user's trades.
func (s *Service) DeleteTrade(ctx context.Context, userID, tradeID int64) error {
	if err := s.authorize(ctx, security.OpDeleteTrade); err != nil {
		return err
	}
	if err := s.store.DeleteTrade(ctx, userID, tradeID); err != nil {
		return err
	}
	logger := logging.WithTrade(logging.WithUser(s.log(ctx), userID), tradeID)
	logger.Info().Msg("Trade deleted")
	s.audit(ctx, security.AuditEvent{EventType: security.AuditTradeDeleted, UserID: userID, TradeID: tradeID})
	return nil
}

// GetTrade returns one of the user's trades with its tags.
func (s *Service) GetTrade(ctx context.Context, userID, tradeID int64) (*models.Trade, error) {
	return s.store.GetTrade(ctx, userID, tradeID)
}

// ListTrades returns the user's trades, newest entry first.
func (s *Service) ListTrades(ctx context.Context, userID int64, status models.TradeStatus, limit int) ([]models.Trade, error) {
	return s.store.ListTrades(ctx, store.TradeFilter{UserID: userID, Status: status, Limit: limit})
}

// RecordScreenshot stores a screenshot file name on one of the user's trades.
func (s *Service) RecordScreenshot(ctx context.Context, userID, tradeID int64, kind models.ScreenshotKind, file string) error {
	if err := s.authorize(ctx, security.OpAttachFile); err != nil {
		return err
	}
	if err := s.store.SetScreenshot(ctx, userID, tradeID, kind, file); err != nil {
		return err
	}
	logger := logging.WithTrade(logging.WithUser(s.log(ctx), userID), tradeID)
	logger.Debug().
		Str("kind", string(kind)).
		Str("file", file).
		Msg("Screenshot recorded")
	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditScreenshot,
		UserID:    userID,
		TradeID:   tradeID,
		Action:    string(kind),
		Details:   map[string]interface{}{"file": file},
	})
	return nil
}
