package entities

import (
	"strings"
	"time"

	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// Playback event kinds
const (
	EventStart = "start"
	EventStop  = "stop"
	EventSeek  = "seek"
	EventPause = "pause"
)

// PlaybackEvent is an append-only fact about a user watching a video
type PlaybackEvent struct {
	VideoID     uuid.UUID
	UserID      uuid.UUID
	EventID     uuid.UUID
	Kind        string
	VideoOffset int64
}

// NewPlaybackEvent validates the event and mints its time-based id
func NewPlaybackEvent(videoID, userID uuid.UUID, kind string, offset int64, at time.Time) (*PlaybackEvent, error) {
	if videoID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("video id and user id are required")
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case EventStart, EventStop, EventSeek, EventPause:
	default:
		return nil, pkgerrors.NewValidationError("event must be one of: start stop seek pause")
	}
	if offset < 0 {
		return nil, pkgerrors.NewValidationError("video offset must not be negative")
	}
	if at.IsZero() {
		at = time.Now()
	}
	return &PlaybackEvent{
		VideoID:     videoID,
		UserID:      userID,
		EventID:     valueobjects.TimeUUIDAt(at),
		Kind:        kind,
		VideoOffset: offset,
	}, nil
}

// OccurredAt is the time embedded in the event id
func (e *PlaybackEvent) OccurredAt() time.Time {
	return valueobjects.TimeOf(e.EventID)
}
