package database

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewsentiment/internal/models"
)

func newTestReview(id, propertyID, comment string) *models.Review {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Review{
		ID:         id,
		PropertyID: propertyID,
		BookingID:  "booking-" + id,
		StudentID:  "student-1",
		Rating:     4,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSaveAndGetReview(t *testing.T) {
	db := NewTestDB(t)

	review := newTestReview("r1", "p1", "Lovely room near campus")
	require.NoError(t, db.SaveReview(review))

	got, err := db.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, review.PropertyID, got.PropertyID)
	assert.Equal(t, review.BookingID, got.BookingID)
	assert.Equal(t, review.Comment, got.Comment)
	assert.Equal(t, 4, got.Rating)
	assert.Nil(t, got.SentimentScore)
	assert.Nil(t, got.SentimentLabel)
	assert.Nil(t, got.ScoredAt)
	assert.False(t, got.IsScored())
	assert.True(t, review.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", review.CreatedAt, got.CreatedAt)
}

func TestSaveReviewWithSentiment(t *testing.T) {
	db := NewTestDB(t)

	score := -0.25
	label := "negative"
	scoredAt := time.Now().UTC().Truncate(time.Millisecond)
	review := newTestReview("r1", "p1", "not good")
	review.SentimentScore = &score
	review.SentimentLabel = &label
	review.Keywords = "good"
	review.ScoredAt = &scoredAt
	require.NoError(t, db.SaveReview(review))

	got, err := db.GetReview("r1")
	require.NoError(t, err)
	require.True(t, got.IsScored())
	assert.Equal(t, -0.25, *got.SentimentScore)
	assert.Equal(t, "negative", *got.SentimentLabel)
	assert.Equal(t, "good", got.Keywords)
	require.NotNil(t, got.ScoredAt)
	assert.True(t, scoredAt.Equal(*got.ScoredAt))
}

func TestSaveReviewReplaces(t *testing.T) {
	db := NewTestDB(t)

	review := newTestReview("r1", "p1", "first")
	require.NoError(t, db.SaveReview(review))
	review.Comment = "second"
	require.NoError(t, db.SaveReview(review))

	got, err := db.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Comment)

	reviews, err := db.ListReviewsByProperty("p1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestCreateReviewKeepsExisting(t *testing.T) {
	db := NewTestDB(t)

	original := newTestReview("r1", "p1", "first")
	original.Summary = "a summary"
	require.NoError(t, db.CreateReview(original))

	err := db.CreateReview(newTestReview("r1", "p2", "second"))
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	got, err := db.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PropertyID)
	assert.Equal(t, "first", got.Comment)
	assert.Equal(t, "a summary", got.Summary)
	assert.True(t, original.CreatedAt.Equal(got.CreatedAt))
}

func TestGetReviewNotFound(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.GetReview("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListReviewsByProperty(t *testing.T) {
	db := NewTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"a", "b", "c"} {
		r := newTestReview(id, "p1", "comment "+id)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		r.UpdatedAt = r.CreatedAt
		require.NoError(t, db.SaveReview(r))
	}
	require.NoError(t, db.SaveReview(newTestReview("other", "p2", "elsewhere")))

	reviews, err := db.ListReviewsByProperty("p1", 10, 0)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, "c", reviews[0].ID, "newest first")
	assert.Equal(t, "a", reviews[2].ID)

	page, err := db.ListReviewsByProperty("p1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	none, err := db.ListReviewsByProperty("p3", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdateSentiment(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.SaveReview(newTestReview("r1", "p1", "very good")))

	require.NoError(t, db.UpdateSentiment("r1", 0.75, "positive", "good"))

	got, err := db.GetReview("r1")
	require.NoError(t, err)
	require.True(t, got.IsScored())
	assert.Equal(t, 0.75, *got.SentimentScore)
	assert.Equal(t, "positive", *got.SentimentLabel)
	assert.Equal(t, "good", got.Keywords)
	assert.NotNil(t, got.ScoredAt)

	err = db.UpdateSentiment("missing", 0, "neutral", "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateSummary(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.SaveReview(newTestReview("r1", "p1", "Quiet and clean")))

	require.NoError(t, db.UpdateSummary("r1", "The student found the room quiet."))
	got, err := db.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, "The student found the room quiet.", got.Summary)

	assert.True(t, errors.Is(db.UpdateSummary("missing", "x"), ErrNotFound))
}

func TestListUnscoredReviews(t *testing.T) {
	db := NewTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"a", "b", "c"} {
		r := newTestReview(id, "p1", "comment")
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.SaveReview(r))
	}
	require.NoError(t, db.UpdateSentiment("b", 0, "neutral", ""))

	unscored, err := db.ListUnscoredReviews(10)
	require.NoError(t, err)
	require.Len(t, unscored, 2)
	assert.Equal(t, "a", unscored[0].ID, "oldest first")
	assert.Equal(t, "c", unscored[1].ID)

	limited, err := db.ListUnscoredReviews(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPropertySentimentSummary(t *testing.T) {
	db := NewTestDB(t)

	ratings := map[string]int{"a": 5, "b": 2, "c": 3, "d": 4}
	for id, rating := range ratings {
		r := newTestReview(id, "p1", "comment")
		r.Rating = rating
		require.NoError(t, db.SaveReview(r))
	}
	require.NoError(t, db.UpdateSentiment("a", 0.8, "positive", ""))
	require.NoError(t, db.UpdateSentiment("b", -0.4, "negative", ""))
	require.NoError(t, db.UpdateSentiment("c", 0.2, "neutral", ""))

	summary, err := db.PropertySentimentSummary("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", summary.PropertyID)
	assert.Equal(t, 4, summary.ReviewCount)
	assert.Equal(t, 3, summary.ScoredCount)
	assert.InDelta(t, 0.2, summary.AverageScore, 1e-9)
	assert.InDelta(t, 3.5, summary.AverageRating, 1e-9)
	assert.Equal(t, 1, summary.Positive)
	assert.Equal(t, 1, summary.Negative)
	assert.Equal(t, 1, summary.Neutral)
}

func TestPropertySentimentSummaryEmpty(t *testing.T) {
	db := NewTestDB(t)

	summary, err := db.PropertySentimentSummary("nothing")
	require.NoError(t, err)
	assert.Zero(t, summary.ReviewCount)
	assert.Zero(t, summary.AverageScore)
	assert.Zero(t, summary.Positive)
}

func TestDeleteReview(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.SaveReview(newTestReview("r1", "p1", "bye")))

	require.NoError(t, db.DeleteReview("r1"))
	_, err := db.GetReview("r1")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(db.DeleteReview("r1"), ErrNotFound))
}
