package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events
// Events represent a logical mutation whose fan-out has been applied
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   at,
		Version:     1,
	}
}

// UserCreated is raised when both user placements were written
type UserCreated struct {
	BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// NewUserCreated creates a UserCreated event
func NewUserCreated(userID uuid.UUID, email string, at time.Time) UserCreated {
	return UserCreated{
		BaseEvent: newBase(userID.String(), "user.created", at),
		UserID:    userID,
		Email:     email,
	}
}

// VideoAdded is raised when every view of a video was written
type VideoAdded struct {
	BaseEvent
	VideoID uuid.UUID `json:"video_id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Tags    []string  `json:"tags"`
}

// NewVideoAdded creates a VideoAdded event
func NewVideoAdded(videoID, ownerID uuid.UUID, tags []string, at time.Time) VideoAdded {
	return VideoAdded{
		BaseEvent: newBase(videoID.String(), "video.added", at),
		VideoID:   videoID,
		OwnerID:   ownerID,
		Tags:      tags,
	}
}

// CommentPosted is raised when the comment pair was applied
type CommentPosted struct {
	BaseEvent
	VideoID   uuid.UUID `json:"video_id"`
	CommentID uuid.UUID `json:"comment_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// NewCommentPosted creates a CommentPosted event
func NewCommentPosted(videoID, commentID, userID uuid.UUID, at time.Time) CommentPosted {
	return CommentPosted{
		BaseEvent: newBase(videoID.String(), "comment.posted", at),
		VideoID:   videoID,
		CommentID: commentID,
		UserID:    userID,
	}
}

// VideoRated is raised when a rating was counted
type VideoRated struct {
	BaseEvent
	VideoID    uuid.UUID `json:"video_id"`
	UserID     uuid.UUID `json:"user_id"`
	Rating     int       `json:"rating"`
	CountDelta int64     `json:"count_delta"`
	SumDelta   int64     `json:"sum_delta"`
}

// NewVideoRated creates a VideoRated event
func NewVideoRated(videoID, userID uuid.UUID, rating int, countDelta, sumDelta int64, at time.Time) VideoRated {
	return VideoRated{
		BaseEvent:  newBase(videoID.String(), "video.rated", at),
		VideoID:    videoID,
		UserID:     userID,
		Rating:     rating,
		CountDelta: countDelta,
		SumDelta:   sumDelta,
	}
}

// PlaybackRecorded is raised for each stored playback event
type PlaybackRecorded struct {
	BaseEvent
	VideoID uuid.UUID `json:"video_id"`
	UserID  uuid.UUID `json:"user_id"`
	Event   string    `json:"event"`
}

// NewPlaybackRecorded creates a PlaybackRecorded event
func NewPlaybackRecorded(videoID, userID uuid.UUID, event string, at time.Time) PlaybackRecorded {
	return PlaybackRecorded{
		BaseEvent: newBase(videoID.String(), "playback.recorded", at),
		VideoID:   videoID,
		UserID:    userID,
		Event:     event,
	}
}

// UploadJobAdvanced is raised when an encoding job changes state
type UploadJobAdvanced struct {
	BaseEvent
	JobID    string `json:"job_id"`
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

// NewUploadJobAdvanced creates an UploadJobAdvanced event
func NewUploadJobAdvanced(jobID, oldState, newState string, at time.Time) UploadJobAdvanced {
	return UploadJobAdvanced{
		BaseEvent: newBase(jobID, "upload.job_advanced", at),
		JobID:     jobID,
		OldState:  oldState,
		NewState:  newState,
	}
}

// UploadRegistered is raised when an upload was recorded in both views
type UploadRegistered struct {
	BaseEvent
	VideoID uuid.UUID `json:"video_id"`
	JobID   string    `json:"job_id"`
}

// NewUploadRegistered creates an UploadRegistered event
func NewUploadRegistered(videoID uuid.UUID, jobID string, at time.Time) UploadRegistered {
	return UploadRegistered{
		BaseEvent: newBase(videoID.String(), "upload.registered", at),
		VideoID:   videoID,
		JobID:     jobID,
	}
}
