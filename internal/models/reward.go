package models

import "time"

// TokenTypePoints is the ledger token type that counts toward a user's points
const TokenTypePoints = "points"

// ReasonPuzzleSolved marks the credit for solving a puzzle. A user holds at
// most one such row per puzzle.
const ReasonPuzzleSolved = "puzzle solved"

const (
	// PointsPerSOLUnit points convert into SOLUnit SOL
	PointsPerSOLUnit = 1000
	SOLUnit          = 0.01
	// MinPointsForSOL is the balance required before a SOL claim is possible
	MinPointsForSOL = 5000
)

// Reward is an immutable ledger row. Negative amounts act as resets.
type Reward struct {
	ID          int64          `json:"id" db:"id"`
	UserID      string         `json:"userId" db:"user_id"`
	PuzzleID    *int64         `json:"puzzleId" db:"puzzle_id"`
	TokenType   string         `json:"tokenType" db:"token_type"`
	TokenAmount int64          `json:"tokenAmount" db:"token_amount"`
	Reason      string         `json:"reason" db:"reason"`
	Metadata    map[string]any `json:"metadata" db:"metadata"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty" db:"expires_at"`
	ClaimedAt   *time.Time     `json:"claimedAt,omitempty" db:"claimed_at"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
}

// CreateRewardRequest is the body of a reward posting
type CreateRewardRequest struct {
	UserID      string `json:"userId"`
	PuzzleID    *int64 `json:"puzzleId"`
	TokenType   string `json:"tokenType"`
	TokenAmount int64  `json:"tokenAmount"`
	Reason      string `json:"reason"`
}

// PointsSummary is a user's point balance and its SOL conversion
type PointsSummary struct {
	UserID      string  `json:"userId"`
	Points      int64   `json:"points"`
	SOLEligible bool    `json:"solEligible"`
	SOLAmount   float64 `json:"solAmount"`
}

// NewPointsSummary computes the SOL conversion for a balance
func NewPointsSummary(userID string, points int64) PointsSummary {
	s := PointsSummary{UserID: userID, Points: points}
	if points >= MinPointsForSOL {
		s.SOLEligible = true
		s.SOLAmount = float64(points/PointsPerSOLUnit) * SOLUnit
	}
	return s
}
