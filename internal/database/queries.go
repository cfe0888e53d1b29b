package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/reviewsentiment/internal/models"
)

const reviewColumns = `id, property_id, booking_id, student_id, rating, comment,
	sentiment_score, sentiment_label, keywords, summary, created_at, updated_at, scored_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*models.Review, error) {
	var (
		r        models.Review
		score    sql.NullFloat64
		label    sql.NullString
		keywords sql.NullString
		summary  sql.NullString
		scoredAt sql.NullTime
	)

	err := row.Scan(&r.ID, &r.PropertyID, &r.BookingID, &r.StudentID, &r.Rating, &r.Comment,
		&score, &label, &keywords, &summary, &r.CreatedAt, &r.UpdatedAt, &scoredAt)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		r.SentimentScore = &score.Float64
	}
	if label.Valid {
		r.SentimentLabel = &label.String
	}
	r.Keywords = keywords.String
	r.Summary = summary.String
	if scoredAt.Valid {
		r.ScoredAt = &scoredAt.Time
	}

	return &r, nil
}

// SaveReview inserts a review, or replaces it when the ID already exists
func (db *DB) SaveReview(review *models.Review) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(db.rebind("DELETE FROM reviews WHERE id = ?"), review.ID); err != nil {
		return fmt.Errorf("failed to replace review: %w", err)
	}

	if _, err := tx.Exec(db.rebind(insertReviewQuery), reviewArgs(review)...); err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CreateReview inserts a new review. An existing review with the same ID is
// left untouched and ErrAlreadyExists is returned.
func (db *DB) CreateReview(review *models.Review) error {
	result, err := db.conn.Exec(db.rebind(insertReviewQuery+` ON CONFLICT (id) DO NOTHING`), reviewArgs(review)...)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}

	return nil
}

const insertReviewQuery = `INSERT INTO reviews (` + reviewColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func reviewArgs(review *models.Review) []any {
	var (
		score    sql.NullFloat64
		label    sql.NullString
		scoredAt sql.NullTime
	)
	if review.SentimentScore != nil {
		score = sql.NullFloat64{Float64: *review.SentimentScore, Valid: true}
	}
	if review.SentimentLabel != nil {
		label = sql.NullString{String: *review.SentimentLabel, Valid: true}
	}
	if review.ScoredAt != nil {
		scoredAt = sql.NullTime{Time: review.ScoredAt.UTC(), Valid: true}
	}

	return []any{review.ID, review.PropertyID, review.BookingID, review.StudentID, review.Rating, review.Comment,
		score, label, review.Keywords, review.Summary,
		review.CreatedAt.UTC(), review.UpdatedAt.UTC(), scoredAt}
}

// GetReview retrieves a review by ID
func (db *DB) GetReview(id string) (*models.Review, error) {
	row := db.conn.QueryRow(db.rebind(`SELECT `+reviewColumns+` FROM reviews WHERE id = ?`), id)

	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return review, nil
}

// ListReviewsByProperty retrieves the reviews of a property, newest first
func (db *DB) ListReviewsByProperty(propertyID string, limit, offset int) ([]*models.Review, error) {
	rows, err := db.conn.Query(db.rebind(`
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE property_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), propertyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// ListUnscoredReviews retrieves up to limit reviews that have no sentiment label, oldest first
func (db *DB) ListUnscoredReviews(limit int) ([]*models.Review, error) {
	rows, err := db.conn.Query(db.rebind(`
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE sentiment_label IS NULL
		ORDER BY created_at, id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscored reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

func collectReviews(rows *sql.Rows) ([]*models.Review, error) {
	reviews := []*models.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return reviews, nil
}

// UpdateSentiment stores the derived sentiment fields of a review
func (db *DB) UpdateSentiment(id string, score float64, label, keywords string) error {
	now := time.Now().UTC()
	result, err := db.conn.Exec(db.rebind(`
		UPDATE reviews
		SET sentiment_score = ?, sentiment_label = ?, keywords = ?, scored_at = ?, updated_at = ?
		WHERE id = ?
	`), score, label, keywords, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update sentiment: %w", err)
	}

	return expectOneRow(result)
}

// UpdateSummary stores the generated summary of a review
func (db *DB) UpdateSummary(id, summary string) error {
	result, err := db.conn.Exec(db.rebind(`
		UPDATE reviews SET summary = ?, updated_at = ? WHERE id = ?
	`), summary, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}

	return expectOneRow(result)
}

// PropertySentimentSummary aggregates the reviews of a property
func (db *DB) PropertySentimentSummary(propertyID string) (*models.PropertySentiment, error) {
	var (
		reviewCount   int
		scoredCount   int
		averageScore  sql.NullFloat64
		averageRating sql.NullFloat64
		positive      sql.NullInt64
		negative      sql.NullInt64
		neutral       sql.NullInt64
	)

	err := db.conn.QueryRow(db.rebind(`
		SELECT
			COUNT(*),
			COUNT(sentiment_label),
			AVG(sentiment_score),
			AVG(CAST(rating AS DOUBLE PRECISION)),
			SUM(CASE WHEN sentiment_label = 'positive' THEN 1 ELSE 0 END),
			SUM(CASE WHEN sentiment_label = 'negative' THEN 1 ELSE 0 END),
			SUM(CASE WHEN sentiment_label = 'neutral' THEN 1 ELSE 0 END)
		FROM reviews
		WHERE property_id = ?
	`), propertyID).Scan(&reviewCount, &scoredCount, &averageScore, &averageRating, &positive, &negative, &neutral)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise property sentiment: %w", err)
	}

	return &models.PropertySentiment{
		PropertyID:    propertyID,
		ReviewCount:   reviewCount,
		ScoredCount:   scoredCount,
		AverageScore:  averageScore.Float64,
		AverageRating: averageRating.Float64,
		Positive:      int(positive.Int64),
		Negative:      int(negative.Int64),
		Neutral:       int(neutral.Int64),
	}, nil
}

// DeleteReview deletes a review by ID
func (db *DB) DeleteReview(id string) error {
	result, err := db.conn.Exec(db.rebind("DELETE FROM reviews WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
