package queries

import (
	"context"
	"fmt"

	"killrvideo/application/counters"
	"killrvideo/domain/core/entities"
	"killrvideo/domain/core/valueobjects"
	"killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// RatingSummary is the aggregate rating of a video. Average is nil when
// nobody has rated it.
type RatingSummary struct {
	VideoID uuid.UUID `json:"videoId"`
	Count   int64     `json:"ratingsCount"`
	Total   int64     `json:"ratingsTotal"`
	Average *float64  `json:"averageRating"`
}

// RatingSummary reads the counter pair of videoID and derives the average
func (r *Router) RatingSummary(ctx context.Context, videoID uuid.UUID) (RatingSummary, error) {
	row, err := r.first(ctx, RatingByVideo{VideoID: videoID})
	if err != nil {
		return RatingSummary{}, err
	}
	agg := entities.RatingAggregate{VideoID: videoID}
	if row != nil {
		agg = counters.FromRow(row)
	}

	summary := RatingSummary{VideoID: videoID, Count: agg.Count.Value(), Total: agg.Total.Value()}
	if avg, ok := agg.Average(); ok {
		summary.Average = &avg
	}
	return summary, nil
}

// LatestFeed gathers up to n of the newest videos, walking back one day
// bucket at a time from `from` for at most `days` buckets. days <= 0 uses
// the configured lookback.
func (r *Router) LatestFeed(ctx context.Context, from valueobjects.DayBucket, days, n int) ([]VideoPreview, error) {
	if days <= 0 {
		days = r.config.LatestFeedLookback
	}
	if n <= 0 {
		n = r.config.DefaultQueryLimit
	}

	var feed []VideoPreview
	day := from
	for i := 0; i < days && len(feed) < n; i++ {
		rows, err := r.Read(ctx, LatestVideos{Day: day, Limit: n - len(feed)})
		if err != nil {
			return nil, err
		}
		page, err := Collect(rows, n-len(feed))
		if err != nil {
			return nil, fmt.Errorf("failed to read latest videos of %s: %w", day, err)
		}
		for _, row := range page {
			feed = append(feed, DecodeVideoPreview(row))
		}
		day = day.Previous()
	}
	return feed, nil
}

// CurrentJobState returns the newest transition of an upload job
func (r *Router) CurrentJobState(ctx context.Context, jobID string) (*entities.JobTransition, error) {
	row, err := r.first(ctx, UploadJobHistory{JobID: jobID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("upload job %s", jobID))
	}
	return DecodeJobTransition(row), nil
}

// User reads a user profile
func (r *Router) User(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	row, err := r.first(ctx, UserByID{UserID: userID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("user %s", userID))
	}
	return DecodeUser(row), nil
}

// Credential reads the credential record of an email
func (r *Router) Credential(ctx context.Context, email string) (entities.Credential, error) {
	row, err := r.first(ctx, CredentialsByEmail{Email: email})
	if err != nil {
		return entities.Credential{}, err
	}
	if row == nil {
		return entities.Credential{}, errors.NewNotFoundError("credentials")
	}
	return DecodeCredential(row), nil
}

// Video reads the full video record
func (r *Router) Video(ctx context.Context, videoID uuid.UUID) (*entities.Video, error) {
	row, err := r.first(ctx, VideoByID{VideoID: videoID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("video %s", videoID))
	}
	return DecodeVideo(row), nil
}

// Previews runs a listing shape (owner, latest or tag) and decodes its rows
func (r *Router) Previews(ctx context.Context, shape Shape) ([]VideoPreview, error) {
	rows, err := r.all(ctx, shape)
	if err != nil {
		return nil, err
	}
	out := make([]VideoPreview, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecodeVideoPreview(row))
	}
	return out, nil
}

// Tags lists the known tags starting with prefix
func (r *Router) Tags(ctx context.Context, prefix string, limit int) ([]string, error) {
	rows, err := r.all(ctx, TagsByLetter{Prefix: prefix, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, text(row, "tag"))
	}
	return out, nil
}

// UserRatingOf reads one user's rating of a video. The rating is zero when
// the user has not rated it.
func (r *Router) UserRatingOf(ctx context.Context, videoID, userID uuid.UUID) (*entities.UserRating, error) {
	row, err := r.first(ctx, UserRating{VideoID: videoID, UserID: userID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &entities.UserRating{VideoID: videoID, UserID: userID}, nil
	}
	return DecodeUserRating(row), nil
}

// Comments runs a comment listing shape and decodes its rows
func (r *Router) Comments(ctx context.Context, shape Shape) ([]*entities.Comment, error) {
	rows, err := r.all(ctx, shape)
	if err != nil {
		return nil, err
	}
	out := make([]*entities.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecodeComment(row))
	}
	return out, nil
}

// PlaybackHistory lists a user's newest playback events on a video
func (r *Router) PlaybackHistory(ctx context.Context, videoID, userID uuid.UUID, limit int) ([]*entities.PlaybackEvent, error) {
	if limit <= 0 {
		limit = r.config.PlaybackPageSize
	}
	rows, err := r.all(ctx, PlaybackEvents{VideoID: videoID, UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]*entities.PlaybackEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecodePlaybackEvent(row))
	}
	return out, nil
}

// JobHistory lists the transitions of an upload job, newest first
func (r *Router) JobHistory(ctx context.Context, jobID string, limit int) ([]*entities.JobTransition, error) {
	rows, err := r.all(ctx, UploadJobHistory{JobID: jobID, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]*entities.JobTransition, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecodeJobTransition(row))
	}
	return out, nil
}

// Upload reads an upload registration by video id or, when videoID is nil,
// by job id
func (r *Router) Upload(ctx context.Context, videoID uuid.UUID, jobID string) (*entities.UploadedVideo, error) {
	var shape Shape = UploadByJob{JobID: jobID}
	if videoID != uuid.Nil {
		shape = UploadByVideo{VideoID: videoID}
	}
	row, err := r.first(ctx, shape)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NewNotFoundError("upload")
	}
	return DecodeUpload(row), nil
}
