package model

import "time"

// GachaDraw records one successful draw. Draw rows are never updated or
// deleted; they are the only source of truth for the daily limit.
type GachaDraw struct {
	ID        int64
	UserID    int64
	VillageID int64
	DrawnAt   time.Time
}

// GachaStatus reports whether the caller may draw today.
type GachaStatus struct {
	CanDraw        bool       `json:"canDraw"`
	RemainingCount int        `json:"remainingCount"`
	LastDrawTime   *time.Time `json:"lastDrawTime"`
	TodayDrawCount int        `json:"todayDrawCount"`
}

// DrawResult is the drawn village plus draw metadata. The embedded Village
// fields are flattened into the JSON object.
type DrawResult struct {
	Village
	IsNew   bool      `json:"isNew"`
	DrawnAt time.Time `json:"drawnAt"`
}
