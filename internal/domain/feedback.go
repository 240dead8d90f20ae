package domain

import "unicode/utf8"

// Rating classifies a feedback entry.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
)

// MaxCommentRunes bounds the optional feedback comment.
const MaxCommentRunes = 2000

// Valid reports whether r is one of the known ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingPositive, RatingNegative, RatingNeutral:
		return true
	}
	return false
}

// Feedback is an immutable rating + optional comment attached to exactly one
// (message, revision index) pair. At most one Feedback exists per revision.
type Feedback struct {
	rating  Rating
	comment string
}

// NewFeedback validates and builds a Feedback.
func NewFeedback(rating Rating, comment string) (Feedback, error) {
	if !rating.Valid() {
		return Feedback{}, Validationf("rating must be one of positive, negative, neutral; got %q", rating)
	}
	if n := utf8.RuneCountInString(comment); n > MaxCommentRunes {
		return Feedback{}, Validationf("feedback comment must be at most %d characters, got %d", MaxCommentRunes, n)
	}
	return Feedback{rating: rating, comment: comment}, nil
}

// RehydrateFeedback rebuilds a Feedback from persisted state without
// validation. The repository is the only intended caller.
func RehydrateFeedback(rating Rating, comment string) Feedback {
	return Feedback{rating: rating, comment: comment}
}

// Rating returns the rating value.
func (f Feedback) Rating() Rating { return f.rating }

// Comment returns the optional comment, possibly "".
func (f Feedback) Comment() string { return f.comment }
