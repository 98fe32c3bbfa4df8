package queries

import (
	"time"

	"killrvideo/pkg/errors"
	"killrvideo/pkg/utils"
)

// GetUserQuery reads a user profile
type GetUserQuery struct {
	UserID string `validate:"required,uuid"`
}

func (q GetUserQuery) Validate() error { return utils.ValidateStruct(q) }

// VerifyCredentialsQuery checks an email and password and answers with the
// user id they belong to
type VerifyCredentialsQuery struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (q VerifyCredentialsQuery) Validate() error { return utils.ValidateStruct(q) }

// GetVideoQuery reads a video with its rating summary
type GetVideoQuery struct {
	VideoID string `validate:"required,uuid"`
}

func (q GetVideoQuery) Validate() error { return utils.ValidateStruct(q) }

// ListUserVideosQuery lists a user's videos
type ListUserVideosQuery struct {
	UserID      string `validate:"required,uuid"`
	From        time.Time
	To          time.Time
	OldestFirst bool
	Limit       int `validate:"gte=0"`
}

func (q ListUserVideosQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return err
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return errors.NewValidationError("from must be before to")
	}
	return nil
}

// LatestVideosQuery reads the newest videos, starting at Day (today when
// empty) and walking back at most Days day buckets
type LatestVideosQuery struct {
	Day   string `validate:"omitempty,datetime=2006-01-02"`
	Days  int    `validate:"gte=0,lte=366"`
	Limit int    `validate:"gte=0"`
}

func (q LatestVideosQuery) Validate() error { return utils.ValidateStruct(q) }

// VideosByTagQuery lists the videos carrying a tag
type VideosByTagQuery struct {
	Tag   string `validate:"required,max=50"`
	Limit int    `validate:"gte=0"`
}

func (q VideosByTagQuery) Validate() error { return utils.ValidateStruct(q) }

// SuggestTagsQuery lists known tags starting with a prefix
type SuggestTagsQuery struct {
	Prefix string `validate:"required,max=50"`
	Limit  int    `validate:"gte=0"`
}

func (q SuggestTagsQuery) Validate() error { return utils.ValidateStruct(q) }

// GetRatingQuery reads a video's rating summary and, when UserID is set,
// that user's own rating
type GetRatingQuery struct {
	VideoID string `validate:"required,uuid"`
	UserID  string `validate:"omitempty,uuid"`
}

func (q GetRatingQuery) Validate() error { return utils.ValidateStruct(q) }

// ListCommentsQuery lists the comments of one video or of one author
type ListCommentsQuery struct {
	VideoID string `validate:"required_without=UserID,excluded_with=UserID,omitempty,uuid"`
	UserID  string `validate:"omitempty,uuid"`
	Before  string `validate:"omitempty,uuid"`
	Limit   int    `validate:"gte=0"`
}

func (q ListCommentsQuery) Validate() error { return utils.ValidateStruct(q) }

// PlaybackHistoryQuery lists a user's newest playback events on a video
type PlaybackHistoryQuery struct {
	VideoID string `validate:"required,uuid"`
	UserID  string `validate:"required,uuid"`
	Limit   int    `validate:"gte=0"`
}

func (q PlaybackHistoryQuery) Validate() error { return utils.ValidateStruct(q) }

// JobStatusQuery reads the current state and history of an encoding job
type JobStatusQuery struct {
	JobID string `validate:"required,max=128"`
	Limit int    `validate:"gte=0"`
}

func (q JobStatusQuery) Validate() error { return utils.ValidateStruct(q) }

// GetUploadQuery reads an upload registration by video id or job id
type GetUploadQuery struct {
	VideoID string `validate:"required_without=JobID,omitempty,uuid"`
	JobID   string `validate:"max=128"`
}

func (q GetUploadQuery) Validate() error { return utils.ValidateStruct(q) }
