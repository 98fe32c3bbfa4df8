package queries

import (
	"time"

	"killrvideo/domain/core/entities"

	"github.com/google/uuid"
)

// UserView is the public profile of a user
type UserView struct {
	UserID    uuid.UUID `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdDate"`
}

func NewUserView(u *entities.User) UserView {
	return UserView{
		UserID:    u.ID(),
		FirstName: u.FirstName(),
		LastName:  u.LastName(),
		Email:     u.Email(),
		CreatedAt: u.CreatedAt(),
	}
}

// CredentialView identifies the owner of verified credentials
type CredentialView struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

// VideoView is a full video record with its rating summary
type VideoView struct {
	VideoID           uuid.UUID                `json:"videoId"`
	UserID            uuid.UUID                `json:"userId"`
	Name              string                   `json:"name"`
	Description       string                   `json:"description,omitempty"`
	Location          string                   `json:"location"`
	LocationType      int                      `json:"locationType"`
	PreviewThumbnails map[string]string        `json:"previewThumbnails,omitempty"`
	PreviewImage      string                   `json:"previewImageLocation,omitempty"`
	Tags              []string                 `json:"tags"`
	Metadata          []entities.VideoMetadata `json:"metadata,omitempty"`
	AddedAt           time.Time                `json:"addedDate"`
	Rating            *RatingSummary           `json:"rating,omitempty"`
}

func NewVideoView(v *entities.Video) VideoView {
	tags := v.Tags()
	if tags == nil {
		tags = []string{}
	}
	return VideoView{
		VideoID:           v.ID(),
		UserID:            v.OwnerID(),
		Name:              v.Name(),
		Description:       v.Description(),
		Location:          v.Location(),
		LocationType:      int(v.LocationType()),
		PreviewThumbnails: v.PreviewThumbnails(),
		PreviewImage:      v.PreviewImage(),
		Tags:              tags,
		Metadata:          v.Metadata(),
		AddedAt:           v.AddedAt(),
	}
}

// CommentView is one comment with the time encoded in its id
type CommentView struct {
	CommentID uuid.UUID `json:"commentId"`
	VideoID   uuid.UUID `json:"videoId"`
	UserID    uuid.UUID `json:"userId"`
	Comment   string    `json:"comment"`
	PostedAt  time.Time `json:"commentTimestamp"`
}

func NewCommentView(c *entities.Comment) CommentView {
	return CommentView{
		CommentID: c.CommentID,
		VideoID:   c.VideoID,
		UserID:    c.UserID,
		Comment:   c.Body,
		PostedAt:  c.PostedAt(),
	}
}

// PlaybackEventView is one playback event
type PlaybackEventView struct {
	EventID     uuid.UUID `json:"eventId"`
	Event       string    `json:"event"`
	VideoOffset int64     `json:"videoOffset"`
	OccurredAt  time.Time `json:"eventTimestamp"`
}

func NewPlaybackEventView(e *entities.PlaybackEvent) PlaybackEventView {
	return PlaybackEventView{
		EventID:     e.EventID,
		Event:       e.Kind,
		VideoOffset: e.VideoOffset,
		OccurredAt:  e.OccurredAt(),
	}
}

// JobTransitionView is one entry of a job's state log
type JobTransitionView struct {
	StatusDate time.Time `json:"statusDate"`
	ETag       string    `json:"etag"`
	OldState   string    `json:"oldState,omitempty"`
	NewState   string    `json:"newState"`
}

func NewJobTransitionView(t *entities.JobTransition) JobTransitionView {
	return JobTransitionView{
		StatusDate: t.StatusDate,
		ETag:       t.ETag,
		OldState:   t.OldState,
		NewState:   t.NewState,
	}
}

// JobStatusView is the current state of a job with its newest transitions
type JobStatusView struct {
	JobID   string              `json:"jobId"`
	State   string              `json:"state"`
	History []JobTransitionView `json:"history"`
}

// RatingView is a video's rating summary plus, optionally, one user's rating
type RatingView struct {
	RatingSummary
	UserRating *int `json:"userRating,omitempty"`
}

// UploadView is an uploaded video waiting on its encoding job
type UploadView struct {
	VideoID     uuid.UUID `json:"videoId"`
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	AddedAt     time.Time `json:"addedDate"`
	JobID       string    `json:"jobId"`
}

func NewUploadView(u *entities.UploadedVideo) UploadView {
	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}
	return UploadView{
		VideoID:     u.VideoID,
		UserID:      u.OwnerID,
		Name:        u.Name,
		Description: u.Description,
		Tags:        tags,
		AddedAt:     u.AddedAt,
		JobID:       u.JobID,
	}
}
