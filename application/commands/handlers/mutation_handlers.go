package handlers

import (
	"context"
	"fmt"
	"time"

	"killrvideo/application/commands"
	"killrvideo/application/commands/bus"
	"killrvideo/application/fanout"
	"killrvideo/domain/config"
	"killrvideo/domain/core/entities"
	"killrvideo/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is what every mutation command returns: the id of the entity the
// mutation wrote and the per-target outcome. A partial fan-out failure
// returns both a Result and the error.
type Result struct {
	ID      string          `json:"id"`
	Outcome *fanout.Outcome `json:"outcome,omitempty"`
}

// MutationHandlers turns commands into entities and hands them to the
// fan-out coordinator
type MutationHandlers struct {
	coordinator *fanout.Coordinator
	config      *config.DomainConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewMutationHandlers creates the mutation command handlers
func NewMutationHandlers(coordinator *fanout.Coordinator, cfg *config.DomainConfig, logger *zap.Logger) *MutationHandlers {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationHandlers{
		coordinator: coordinator,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Register binds every mutation command to the bus
func (h *MutationHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.CreateUserCommand{}, h.createUser},
		{commands.AddVideoCommand{}, h.addVideo},
		{commands.AddCommentCommand{}, h.addComment},
		{commands.RateVideoCommand{}, h.rateVideo},
		{commands.RecordPlaybackEventCommand{}, h.recordPlayback},
		{commands.AdvanceUploadJobStateCommand{}, h.advanceJob},
		{commands.RegisterUploadCommand{}, h.registerUpload},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *MutationHandlers) apply(ctx context.Context, id string, m fanout.Mutation) (interface{}, error) {
	outcome, err := h.coordinator.Apply(ctx, m)
	if outcome == nil {
		return nil, err
	}
	return &Result{ID: id, Outcome: outcome}, err
}

func (h *MutationHandlers) createUser(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.CreateUserCommand)
	id, err := optionalUUID("userId", cmd.UserID)
	if err != nil {
		return nil, err
	}
	user, err := entities.NewUser(entities.UserParams{
		ID:        id,
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Email:     cmd.Email,
		Password:  cmd.Password,
	})
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, user.ID().String(), fanout.CreateUser{User: user})
}

func (h *MutationHandlers) addVideo(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AddVideoCommand)
	videoID, err := optionalUUID("videoId", cmd.VideoID)
	if err != nil {
		return nil, err
	}
	ownerID, err := requiredUUID("userId", cmd.UserID)
	if err != nil {
		return nil, err
	}

	metadata := make([]entities.VideoMetadata, 0, len(cmd.Metadata))
	for _, m := range cmd.Metadata {
		metadata = append(metadata, entities.VideoMetadata{
			Height:        m.Height,
			Width:         m.Width,
			VideoBitRates: m.VideoBitRates,
			Encoding:      m.Encoding,
		})
	}

	video, err := entities.NewVideo(h.config, entities.VideoParams{
		ID:                videoID,
		OwnerID:           ownerID,
		Name:              cmd.Name,
		Description:       cmd.Description,
		Location:          cmd.Location,
		LocationType:      entities.LocationType(cmd.LocationType),
		PreviewThumbnails: cmd.PreviewThumbnails,
		Tags:              cmd.Tags,
		Metadata:          metadata,
	})
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, video.ID().String(), fanout.AddVideo{Video: video})
}

func (h *MutationHandlers) addComment(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AddCommentCommand)
	videoID, err := requiredUUID("videoId", cmd.VideoID)
	if err != nil {
		return nil, err
	}
	userID, err := requiredUUID("userId", cmd.UserID)
	if err != nil {
		return nil, err
	}
	comment, err := entities.NewComment(h.config, videoID, userID, cmd.Comment, h.now())
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, comment.CommentID.String(), fanout.AddComment{Comment: comment})
}

func (h *MutationHandlers) rateVideo(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.RateVideoCommand)
	videoID, err := requiredUUID("videoId", cmd.VideoID)
	if err != nil {
		return nil, err
	}
	userID, err := requiredUUID("userId", cmd.UserID)
	if err != nil {
		return nil, err
	}
	rating, err := entities.NewUserRating(h.config, videoID, userID, cmd.Rating)
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, videoID.String(), fanout.RateVideo{Rating: rating, SubmissionID: cmd.SubmissionID})
}

func (h *MutationHandlers) recordPlayback(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.RecordPlaybackEventCommand)
	videoID, err := requiredUUID("videoId", cmd.VideoID)
	if err != nil {
		return nil, err
	}
	userID, err := requiredUUID("userId", cmd.UserID)
	if err != nil {
		return nil, err
	}
	event, err := entities.NewPlaybackEvent(videoID, userID, cmd.Event, cmd.VideoOffset, h.now())
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, event.EventID.String(), fanout.RecordPlaybackEvent{Event: event})
}

func (h *MutationHandlers) advanceJob(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AdvanceUploadJobStateCommand)
	transition, err := entities.NewJobTransition(cmd.JobID, cmd.ETag, cmd.OldState, cmd.NewState, h.now())
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, transition.JobID, fanout.AdvanceUploadJobState{Transition: transition})
}

func (h *MutationHandlers) registerUpload(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.RegisterUploadCommand)
	videoID, err := optionalUUID("videoId", cmd.VideoID)
	if err != nil {
		return nil, err
	}
	ownerID, err := requiredUUID("userId", cmd.UserID)
	if err != nil {
		return nil, err
	}
	upload, err := entities.NewUploadedVideo(h.config, entities.UploadedVideo{
		VideoID:     videoID,
		OwnerID:     ownerID,
		Name:        cmd.Name,
		Description: cmd.Description,
		Tags:        cmd.Tags,
		JobID:       cmd.JobID,
	})
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, upload.VideoID.String(), fanout.RegisterUpload{Upload: upload})
}

func requiredUUID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.NewValidationError(fmt.Sprintf("%s must be a uuid", field))
	}
	return id, nil
}

func optionalUUID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return requiredUUID(field, s)
}
