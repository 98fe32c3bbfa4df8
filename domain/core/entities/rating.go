package entities

import (
	"killrvideo/domain/config"
	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// UserRating is one user's current rating of one video
type UserRating struct {
	VideoID uuid.UUID
	UserID  uuid.UUID
	Rating  valueobjects.Rating
}

// NewUserRating validates the rating against the configured bounds
func NewUserRating(cfg *config.DomainConfig, videoID, userID uuid.UUID, value int) (*UserRating, error) {
	if videoID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("video id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("user id is required")
	}
	r, err := valueobjects.NewRating(value, cfg.MinRating, cfg.MaxRating)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	return &UserRating{VideoID: videoID, UserID: userID, Rating: r}, nil
}

// RatingAggregate is the per-video counter pair
type RatingAggregate struct {
	VideoID uuid.UUID
	Count   valueobjects.Counter
	Total   valueobjects.Counter
}

// Average returns total/count, or false when nobody has rated the video yet
func (a RatingAggregate) Average() (float64, bool) {
	if a.Count.Value() <= 0 {
		return 0, false
	}
	return float64(a.Total.Value()) / float64(a.Count.Value()), true
}
