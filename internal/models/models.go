package models

import "time"

// Review is a student's review of a property, plus the sentiment fields
// derived from its comment
type Review struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	BookingID  string `json:"booking_id,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	Rating     int    `json:"rating"` // 1 to 5
	Comment    string `json:"comment"`

	// Derived fields. Nil until the review has been scored.
	SentimentScore *float64 `json:"sentiment_score"`   // -1.0 to 1.0
	SentimentLabel *string  `json:"sentiment_label"`   // positive, negative, neutral
	Keywords       string   `json:"keywords"`          // comma-joined top keywords
	Summary        string   `json:"summary,omitempty"` // AI-generated one-line summary

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ScoredAt  *time.Time `json:"scored_at,omitempty"`
}

// IsScored reports whether the sentiment fields have been populated
func (r *Review) IsScored() bool {
	return r.SentimentLabel != nil
}

// PropertySentiment aggregates the scored reviews of one property
type PropertySentiment struct {
	PropertyID    string  `json:"property_id"`
	ReviewCount   int     `json:"review_count"`
	ScoredCount   int     `json:"scored_count"`
	AverageScore  float64 `json:"average_score"`
	AverageRating float64 `json:"average_rating"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	Neutral       int     `json:"neutral"`
}
