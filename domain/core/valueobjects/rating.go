package valueobjects

import "fmt"

// Rating is a single user's score for a video.
type Rating struct {
	value int
}

// NewRating validates v against the inclusive [min, max] bounds.
func NewRating(v, min, max int) (Rating, error) {
	if v < min || v > max {
		return Rating{}, fmt.Errorf("rating %d out of range [%d, %d]", v, min, max)
	}
	return Rating{value: v}, nil
}

// RatingOf wraps a rating read back from storage without bounds checks.
func RatingOf(v int) Rating {
	return Rating{value: v}
}

// Value returns the numeric rating.
func (r Rating) Value() int { return r.value }

// IsZero reports whether the rating was never set.
func (r Rating) IsZero() bool { return r.value == 0 }
