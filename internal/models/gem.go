package models

import (
	"time"
)

// ActionKind enumerates the user actions that earn gems. The wire codes
// match the whereby column in the gems table.
type ActionKind int

const (
	ActionView    ActionKind = 1
	ActionLike    ActionKind = 2
	ActionDislike ActionKind = 3
	ActionComment ActionKind = 4
	ActionPost    ActionKind = 5
)

func (k ActionKind) String() string {
	switch k {
	case ActionView:
		return "view"
	case ActionLike:
		return "like"
	case ActionDislike:
		return "dislike"
	case ActionComment:
		return "comment"
	case ActionPost:
		return "post"
	}
	return "unknown"
}

// ParseActionKind maps an action name to its kind.
func ParseActionKind(s string) (ActionKind, bool) {
	switch s {
	case "view":
		return ActionView, true
	case "like":
		return ActionLike, true
	case "dislike":
		return ActionDislike, true
	case "comment":
		return ActionComment, true
	case "post":
		return ActionPost, true
	}
	return 0, false
}

// GemEntry is one point-earning event. Entries are immutable except for the
// Collected flag, which the mint engine flips exactly once.
type GemEntry struct {
	GemID       string     `json:"gemId" db:"gemid"`
	UserID      string     `json:"userId" db:"userid"`   // beneficiary (content owner)
	FromID      string     `json:"fromId" db:"fromid"`   // actor who triggered the action
	PostID      string     `json:"postId,omitempty" db:"postid"`
	Gems        string     `json:"gems" db:"gems"` // signed decimal string
	GemsQ       string     `json:"-" db:"gemsq"`
	Whereby     ActionKind `json:"actionKind" db:"whereby"`
	Collected   bool       `json:"collected" db:"collected"`
	CreatedAt   time.Time  `json:"createdAt" db:"createdat"`
}

// GemsStats holds per-window counts of uncollected gems.
type GemsStats struct {
	D0 int `json:"d0"`
	D1 int `json:"d1"`
	D2 int `json:"d2"`
	D3 int `json:"d3"`
	D4 int `json:"d4"`
	D5 int `json:"d5"`
	D6 int `json:"d6"`
	D7 int `json:"d7"`
	W0 int `json:"w0"`
	M0 int `json:"m0"`
	Y0 int `json:"y0"`
}
