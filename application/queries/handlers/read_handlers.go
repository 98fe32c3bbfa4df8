package handlers

import (
	"context"
	"crypto/subtle"
	"time"

	"killrvideo/application/queries"
	"killrvideo/application/queries/bus"
	"killrvideo/domain/core/valueobjects"
	"killrvideo/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadHandlers answers the read queries through the query router
type ReadHandlers struct {
	router *queries.Router
	logger *zap.Logger
	now    func() time.Time
}

// NewReadHandlers creates the read query handlers
func NewReadHandlers(router *queries.Router, logger *zap.Logger) *ReadHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadHandlers{router: router, logger: logger, now: time.Now}
}

// Register binds every read query to the bus
func (h *ReadHandlers) Register(b *bus.QueryBus) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandlerFunc
	}{
		{queries.GetUserQuery{}, h.getUser},
		{queries.VerifyCredentialsQuery{}, h.verifyCredentials},
		{queries.GetVideoQuery{}, h.getVideo},
		{queries.ListUserVideosQuery{}, h.listUserVideos},
		{queries.LatestVideosQuery{}, h.latestVideos},
		{queries.VideosByTagQuery{}, h.videosByTag},
		{queries.SuggestTagsQuery{}, h.suggestTags},
		{queries.GetRatingQuery{}, h.getRating},
		{queries.ListCommentsQuery{}, h.listComments},
		{queries.PlaybackHistoryQuery{}, h.playbackHistory},
		{queries.JobStatusQuery{}, h.jobStatus},
		{queries.GetUploadQuery{}, h.getUpload},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// parse is only called on ids the query already validated as uuids
func parse(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func (h *ReadHandlers) getUser(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetUserQuery)
	user, err := h.router.User(ctx, parse(query.UserID))
	if err != nil {
		return nil, err
	}
	return queries.NewUserView(user), nil
}

func (h *ReadHandlers) verifyCredentials(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.VerifyCredentialsQuery)
	cred, err := h.router.Credential(ctx, query.Email)
	switch {
	case errors.IsNotFound(err):
		return nil, errors.NewUnauthorizedError("invalid email or password")
	case err != nil:
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(cred.Password), []byte(query.Password)) != 1 {
		return nil, errors.NewUnauthorizedError("invalid email or password")
	}
	return queries.CredentialView{UserID: cred.UserID, Email: cred.Email}, nil
}

func (h *ReadHandlers) getVideo(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetVideoQuery)
	video, err := h.router.Video(ctx, parse(query.VideoID))
	if err != nil {
		return nil, err
	}
	view := queries.NewVideoView(video)
	summary, err := h.router.RatingSummary(ctx, video.ID())
	if err != nil {
		// the video itself is still worth returning
		h.logger.Warn("Failed to read rating summary",
			zap.String("video_id", query.VideoID),
			zap.Error(err),
		)
	} else {
		view.Rating = &summary
	}
	return view, nil
}

func (h *ReadHandlers) listUserVideos(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.ListUserVideosQuery)
	return h.router.Previews(ctx, queries.VideosByOwner{
		UserID:      parse(query.UserID),
		From:        query.From,
		To:          query.To,
		OldestFirst: query.OldestFirst,
		Limit:       query.Limit,
	})
}

func (h *ReadHandlers) latestVideos(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.LatestVideosQuery)
	day := valueobjects.DayBucketOf(h.now())
	if query.Day != "" {
		d, err := valueobjects.ParseDayBucket(query.Day)
		if err != nil {
			return nil, err
		}
		day = d
	}
	return h.router.LatestFeed(ctx, day, query.Days, query.Limit)
}

func (h *ReadHandlers) videosByTag(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.VideosByTagQuery)
	return h.router.Previews(ctx, queries.VideosByTag{Tag: query.Tag, Limit: query.Limit})
}

func (h *ReadHandlers) suggestTags(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.SuggestTagsQuery)
	return h.router.Tags(ctx, query.Prefix, query.Limit)
}

func (h *ReadHandlers) getRating(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetRatingQuery)
	videoID := parse(query.VideoID)
	summary, err := h.router.RatingSummary(ctx, videoID)
	if err != nil {
		return nil, err
	}
	view := queries.RatingView{RatingSummary: summary}
	if query.UserID != "" {
		rating, err := h.router.UserRatingOf(ctx, videoID, parse(query.UserID))
		if err != nil {
			return nil, err
		}
		if !rating.Rating.IsZero() {
			v := rating.Rating.Value()
			view.UserRating = &v
		}
	}
	return view, nil
}

func (h *ReadHandlers) listComments(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.ListCommentsQuery)
	var before uuid.UUID
	if query.Before != "" {
		before = parse(query.Before)
	}

	var shape queries.Shape = queries.CommentsByVideo{VideoID: parse(query.VideoID), Before: before, Limit: query.Limit}
	if query.VideoID == "" {
		shape = queries.CommentsByUser{UserID: parse(query.UserID), Before: before, Limit: query.Limit}
	}
	comments, err := h.router.Comments(ctx, shape)
	if err != nil {
		return nil, err
	}
	out := make([]queries.CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, queries.NewCommentView(c))
	}
	return out, nil
}

func (h *ReadHandlers) playbackHistory(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.PlaybackHistoryQuery)
	events, err := h.router.PlaybackHistory(ctx, parse(query.VideoID), parse(query.UserID), query.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]queries.PlaybackEventView, 0, len(events))
	for _, e := range events {
		out = append(out, queries.NewPlaybackEventView(e))
	}
	return out, nil
}

func (h *ReadHandlers) jobStatus(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.JobStatusQuery)
	current, err := h.router.CurrentJobState(ctx, query.JobID)
	if err != nil {
		return nil, err
	}
	history, err := h.router.JobHistory(ctx, query.JobID, query.Limit)
	if err != nil {
		return nil, err
	}
	view := queries.JobStatusView{
		JobID:   query.JobID,
		State:   current.NewState,
		History: make([]queries.JobTransitionView, 0, len(history)),
	}
	for _, t := range history {
		view.History = append(view.History, queries.NewJobTransitionView(t))
	}
	return view, nil
}

func (h *ReadHandlers) getUpload(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetUploadQuery)
	var videoID uuid.UUID
	if query.VideoID != "" {
		videoID = parse(query.VideoID)
	}
	upload, err := h.router.Upload(ctx, videoID, query.JobID)
	if err != nil {
		return nil, err
	}
	return queries.NewUploadView(upload), nil
}
