package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"killrvideo/domain/config"
	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// Comment is a user's remark on a video. The comment id is a time-based UUID,
// so the posting time travels with the id.
type Comment struct {
	VideoID   uuid.UUID
	CommentID uuid.UUID
	UserID    uuid.UUID
	Body      string
}

// NewComment validates the body and mints a comment id for postedAt
func NewComment(cfg *config.DomainConfig, videoID, userID uuid.UUID, body string, postedAt time.Time) (*Comment, error) {
	if videoID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("video id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("user id is required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, pkgerrors.NewValidationError("comment body is required")
	}
	if utf8.RuneCountInString(body) > cfg.MaxCommentLength {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("comment exceeds %d characters", cfg.MaxCommentLength))
	}
	if postedAt.IsZero() {
		postedAt = time.Now()
	}

	return &Comment{
		VideoID:   videoID,
		CommentID: valueobjects.TimeUUIDAt(postedAt),
		UserID:    userID,
		Body:      body,
	}, nil
}

// PostedAt is the time embedded in the comment id
func (c *Comment) PostedAt() time.Time {
	return valueobjects.TimeOf(c.CommentID)
}
