package commands

import (
	"killrvideo/pkg/utils"
)

// CreateUserCommand registers a user account
type CreateUserCommand struct {
	UserID    string `json:"userId" validate:"omitempty,uuid"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=6,max=128"`
}

func (c CreateUserCommand) Validate() error { return utils.ValidateStruct(c) }

// VideoMetadataInput describes one encoding of a video
type VideoMetadataInput struct {
	Height        int      `json:"height" validate:"gte=0"`
	Width         int      `json:"width" validate:"gte=0"`
	VideoBitRates []string `json:"videoBitRate"`
	Encoding      string   `json:"encoding" validate:"max=50"`
}

// AddVideoCommand adds a video, or replaces it when VideoID already exists
type AddVideoCommand struct {
	VideoID           string               `json:"videoId" validate:"omitempty,uuid"`
	UserID            string               `json:"userId" validate:"required,uuid"`
	Name              string               `json:"name" validate:"required,max=200"`
	Description       string               `json:"description" validate:"max=5000"`
	Location          string               `json:"location" validate:"required"`
	LocationType      int                  `json:"locationType" validate:"oneof=0 1"`
	PreviewThumbnails map[string]string    `json:"previewThumbnails"`
	Tags              []string             `json:"tags" validate:"max=20,dive,min=1,max=50"`
	Metadata          []VideoMetadataInput `json:"metadata" validate:"dive"`
}

func (c AddVideoCommand) Validate() error { return utils.ValidateStruct(c) }

// AddCommentCommand posts a comment on a video
type AddCommentCommand struct {
	VideoID string `json:"videoId" validate:"required,uuid"`
	UserID  string `json:"userId" validate:"required,uuid"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

func (c AddCommentCommand) Validate() error { return utils.ValidateStruct(c) }

// RateVideoCommand records or changes a user's rating of a video.
// SubmissionID makes redelivery of the same rating safe.
type RateVideoCommand struct {
	VideoID      string `json:"videoId" validate:"required,uuid"`
	UserID       string `json:"userId" validate:"required,uuid"`
	Rating       int    `json:"rating" validate:"required,gte=1,lte=5"`
	SubmissionID string `json:"submissionId" validate:"max=128"`
}

func (c RateVideoCommand) Validate() error { return utils.ValidateStruct(c) }

// RecordPlaybackEventCommand appends a playback event
type RecordPlaybackEventCommand struct {
	VideoID     string `json:"videoId" validate:"required,uuid"`
	UserID      string `json:"userId" validate:"required,uuid"`
	Event       string `json:"event" validate:"required,oneof=start stop seek pause"`
	VideoOffset int64  `json:"videoOffset" validate:"gte=0"`
}

func (c RecordPlaybackEventCommand) Validate() error { return utils.ValidateStruct(c) }

// AdvanceUploadJobStateCommand appends a state transition to an encoding job
type AdvanceUploadJobStateCommand struct {
	JobID    string `json:"jobId" validate:"required,max=128"`
	ETag     string `json:"etag" validate:"max=128"`
	OldState string `json:"oldState" validate:"max=50"`
	NewState string `json:"newState" validate:"required,max=50"`
}

func (c AdvanceUploadJobStateCommand) Validate() error { return utils.ValidateStruct(c) }

// RegisterUploadCommand records an uploaded video waiting on an encoding job
type RegisterUploadCommand struct {
	VideoID     string   `json:"videoId" validate:"omitempty,uuid"`
	UserID      string   `json:"userId" validate:"required,uuid"`
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Tags        []string `json:"tags" validate:"max=20,dive,min=1,max=50"`
	JobID       string   `json:"jobId" validate:"required,max=128"`
}

func (c RegisterUploadCommand) Validate() error { return utils.ValidateStruct(c) }
