package models

import "time"

// Trade is a single journal record. Exit fields stay nil until the trade is
// closed; risk and reward amounts are derived once when the trade is entered.
type Trade struct {
	ID               int64       `json:"id"`
	UserID           int64       `json:"user_id"`
	Pair             string      `json:"pair"`
	Session          Session     `json:"session"`
	Timeframe        string      `json:"timeframe"`
	SetupType        string      `json:"setup_type"`
	Direction        Direction   `json:"trade_type"`
	EntryPrice       float64     `json:"entry_price"`
	StopLoss         float64     `json:"stop_loss"`
	TakeProfit       float64     `json:"take_profit"`
	ExitPrice        *float64    `json:"exit_price"`
	PositionSize     float64     `json:"position_size"`
	RiskAmount       float64     `json:"risk_amount"`
	RewardAmount     float64     `json:"reward_amount"`
	RiskReward       float64     `json:"risk_reward"`
	RiskPercentage   *float64    `json:"risk_percentage"`
	Confidence       *int        `json:"confidence_level"`
	EmotionBefore    string      `json:"emotion_before"`
	RuleFollowed     *bool       `json:"rule_followed"`
	EntryTime        time.Time   `json:"entry_time"`
	ExitTime         *time.Time  `json:"exit_time"`
	ProfitLoss       *float64    `json:"profit_loss"`
	Status           TradeStatus `json:"status"`
	Notes            string      `json:"notes"`
	ScreenshotBefore string      `json:"screenshot_before,omitempty"`
	ScreenshotAfter  string      `json:"screenshot_after,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	Tags             []Tag       `json:"tags,omitempty"`
}

// IsClosed reports whether the trade is closed and carries the exit time and
// profit/loss every report relies on.
func (t Trade) IsClosed() bool {
	return t.Status == StatusClosed && t.ExitTime != nil && t.ProfitLoss != nil
}

// PnL returns the realized profit/loss, or 0 for an open trade.
func (t Trade) PnL() float64 {
	if t.ProfitLoss == nil {
		return 0
	}
	return *t.ProfitLoss
}

// IsWin reports whether the trade closed with a strictly positive result.
// Breakeven trades count as losses.
func (t Trade) IsWin() bool {
	return t.PnL() > 0
}

// FollowedRules reports the rule_followed flag. An absent flag means the
// trader followed the plan.
func (t Trade) FollowedRules() bool {
	return t.RuleFollowed == nil || *t.RuleFollowed
}

// HasTag reports whether a tag with the given ID is attached.
func (t Trade) HasTag(tagID int64) bool {
	for _, tag := range t.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// Float returns a pointer to v. It keeps optional numeric fields readable at
// call sites.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Time returns a pointer to v.
func Time(v time.Time) *time.Time { return &v }
