// Package models provides domain models for the trading journal.
package models

import (
	"time"
)

// Session represents the market session a trade was opened in.
type Session string

const (
	SessionAsian   Session = "Asian"
	SessionLondon  Session = "London"
	SessionNewYork Session = "New York"
)

// Sessions lists the recognized sessions.
var Sessions = []Session{SessionAsian, SessionLondon, SessionNewYork}

// Direction represents the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "Buy"
	DirectionSell Direction = "Sell"
)

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "open"
	StatusClosed TradeStatus = "closed"
)

// ScreenshotKind identifies which chart snapshot of a trade a file holds.
type ScreenshotKind string

const (
	ScreenshotBefore ScreenshotKind = "before"
	ScreenshotAfter  ScreenshotKind = "after"
)

// Valid reports whether k is a known screenshot kind.
func (k ScreenshotKind) Valid() bool {
	return k == ScreenshotBefore || k == ScreenshotAfter
}

// Plan is the subscription plan of a user account.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// User represents a journal account. Every trade belongs to exactly one user.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Plan         Plan       `json:"plan"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Tag is a named, colored mistake label that can be attached to trades.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#ef4444"

// DefaultTags are seeded into every new journal database.
var DefaultTags = []Tag{
	{Name: "Early Entry", Color: "#ef4444"},
	{Name: "Overtrade", Color: "#f97316"},
	{Name: "News Trade", Color: "#eab308"},
	{Name: "FOMO", Color: "#dc2626"},
	{Name: "Revenge Trade", Color: "#b91c1c"},
	{Name: "No Stop Loss", Color: "#991b1b"},
	{Name: "Moved Stop Loss", Color: "#7f1d1d"},
}
