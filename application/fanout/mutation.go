package fanout

import (
	"killrvideo/domain/core/entities"
)

// Mutation is one logical change to the data model. The set is closed: each
// variant below has exactly one fan-out plan.
type Mutation interface {
	// Name identifies the mutation kind in outcomes, logs and metrics
	Name() string
	isMutation()
}

// Mutation names
const (
	NameCreateUser            = "create_user"
	NameAddVideo              = "add_video"
	NameAddComment            = "add_comment"
	NameRateVideo             = "rate_video"
	NameRecordPlaybackEvent   = "record_playback_event"
	NameAdvanceUploadJobState = "advance_upload_job_state"
	NameRegisterUpload        = "register_upload"
)

// CreateUser writes the credential and the profile of a new user
type CreateUser struct {
	User *entities.User
}

// AddVideo writes every view of a video. Applying it again with the same
// video id replaces the stored attributes.
type AddVideo struct {
	Video *entities.Video
}

// AddComment writes both placements of a comment as one atomic group
type AddComment struct {
	Comment *entities.Comment
}

// RateVideo records one user's rating and moves the per-video counters.
// SubmissionID, when set, makes redelivery of the same submission harmless.
type RateVideo struct {
	Rating       *entities.UserRating
	SubmissionID string
}

// RecordPlaybackEvent appends one playback fact
type RecordPlaybackEvent struct {
	Event *entities.PlaybackEvent
}

// AdvanceUploadJobState appends one encoding job transition
type AdvanceUploadJobState struct {
	Transition *entities.JobTransition
}

// RegisterUpload records an upload under its video id and its job id
type RegisterUpload struct {
	Upload *entities.UploadedVideo
}

func (CreateUser) Name() string            { return NameCreateUser }
func (AddVideo) Name() string              { return NameAddVideo }
func (AddComment) Name() string            { return NameAddComment }
func (RateVideo) Name() string             { return NameRateVideo }
func (RecordPlaybackEvent) Name() string   { return NameRecordPlaybackEvent }
func (AdvanceUploadJobState) Name() string { return NameAdvanceUploadJobState }
func (RegisterUpload) Name() string        { return NameRegisterUpload }

func (CreateUser) isMutation()            {}
func (AddVideo) isMutation()              {}
func (AddComment) isMutation()            {}
func (RateVideo) isMutation()             {}
func (RecordPlaybackEvent) isMutation()   {}
func (AdvanceUploadJobState) isMutation() {}
func (RegisterUpload) isMutation()        {}
