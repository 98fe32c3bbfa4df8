package entities

import (
	"strings"
	"time"

	"killrvideo/domain/config"
	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// Encoding job states
const (
	JobStateSubmitted  = "submitted"
	JobStateProcessing = "processing"
	JobStateFinished   = "finished"
	JobStateError      = "error"
	JobStateCanceled   = "canceled"
)

// JobTransition is one entry of an upload job's state log. The current state
// of a job is the newest transition.
type JobTransition struct {
	JobID      string
	StatusDate time.Time
	ETag       string
	OldState   string
	NewState   string
}

// NewJobTransition validates a state change
func NewJobTransition(jobID, etag, oldState, newState string, at time.Time) (*JobTransition, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, pkgerrors.NewValidationError("job id is required")
	}
	newState = strings.ToLower(strings.TrimSpace(newState))
	if newState == "" {
		return nil, pkgerrors.NewValidationError("new state is required")
	}
	oldState = strings.ToLower(strings.TrimSpace(oldState))
	if oldState == newState {
		return nil, pkgerrors.NewValidationError("new state must differ from old state")
	}
	if etag == "" {
		etag = uuid.NewString()
	}
	if at.IsZero() {
		at = time.Now()
	}
	return &JobTransition{
		JobID:      jobID,
		StatusDate: valueobjects.Timestamp(at),
		ETag:       etag,
		OldState:   oldState,
		NewState:   newState,
	}, nil
}

// UploadedVideo is a user upload waiting on (or finished with) an encoding job
type UploadedVideo struct {
	VideoID     uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Description string
	Tags        []string
	AddedAt     time.Time
	JobID       string
}

// NewUploadedVideo validates an upload registration
func NewUploadedVideo(cfg *config.DomainConfig, u UploadedVideo) (*UploadedVideo, error) {
	if u.OwnerID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("owner user id is required")
	}
	if strings.TrimSpace(u.JobID) == "" {
		return nil, pkgerrors.NewValidationError("job id is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return nil, pkgerrors.NewValidationError("video name is required")
	}
	tags, err := valueobjects.NormalizeTags(u.Tags, cfg.MaxTagsPerVideo, cfg.MaxTagLength)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if u.VideoID == uuid.Nil {
		u.VideoID = uuid.New()
	}
	if u.AddedAt.IsZero() {
		u.AddedAt = time.Now()
	}
	u.AddedAt = valueobjects.Timestamp(u.AddedAt)
	u.Name = strings.TrimSpace(u.Name)
	u.JobID = strings.TrimSpace(u.JobID)
	u.Tags = tags
	return &u, nil
}
