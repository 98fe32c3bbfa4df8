package queries

import (
	"strings"
	"time"

	"killrvideo/domain/core/valueobjects"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/google/uuid"
)

// UserByID reads a user profile
type UserByID struct {
	UserID uuid.UUID
}

func (s UserByID) Request() Request {
	return Request{Shape: schema.ShapeUserByID, Equal: abstractions.Row{"userid": s.UserID}}
}

// CredentialsByEmail reads the credential record of an email
type CredentialsByEmail struct {
	Email string
}

func (s CredentialsByEmail) Request() Request {
	return Request{
		Shape: schema.ShapeCredentialsByEmail,
		Equal: abstractions.Row{"email": strings.ToLower(strings.TrimSpace(s.Email))},
	}
}

// VideoByID reads the full video record
type VideoByID struct {
	VideoID uuid.UUID
}

func (s VideoByID) Request() Request {
	return Request{Shape: schema.ShapeVideoByID, Equal: abstractions.Row{"videoid": s.VideoID}}
}

// VideosByOwner lists a user's videos, newest first unless OldestFirst is
// set. From is inclusive and To exclusive; zero times leave that end open.
type VideosByOwner struct {
	UserID      uuid.UUID
	From        time.Time
	To          time.Time
	OldestFirst bool
	Limit       int
}

func (s VideosByOwner) Request() Request {
	req := Request{
		Shape:   schema.ShapeVideosByOwner,
		Equal:   abstractions.Row{"userid": s.UserID},
		Limit:   s.Limit,
		Reverse: s.OldestFirst,
	}
	if !s.From.IsZero() || !s.To.IsZero() {
		r := &abstractions.Range{Column: "added_date"}
		if !s.From.IsZero() {
			r.Lower = &abstractions.Bound{Value: s.From, Inclusive: true}
		}
		if !s.To.IsZero() {
			r.Upper = &abstractions.Bound{Value: s.To}
		}
		req.Range = r
	}
	return req
}

// LatestVideos lists the videos added on one UTC day, newest first
type LatestVideos struct {
	Day   valueobjects.DayBucket
	Limit int
}

func (s LatestVideos) Request() Request {
	return Request{
		Shape: schema.ShapeLatestVideos,
		Equal: abstractions.Row{"yyyymmdd": s.Day.String()},
		Limit: s.Limit,
	}
}

// VideosByTag lists the videos carrying a tag
type VideosByTag struct {
	Tag   string
	Limit int
}

func (s VideosByTag) Request() Request {
	return Request{
		Shape: schema.ShapeVideosByTag,
		Equal: abstractions.Row{"tag": valueobjects.NormalizeTag(s.Tag)},
		Limit: s.Limit,
	}
}

// TagsByLetter lists known tags starting with Prefix. The first letter picks
// the partition; the rest of the prefix narrows the tag range.
type TagsByLetter struct {
	Prefix string
	Limit  int
}

func (s TagsByLetter) Request() Request {
	prefix := valueobjects.NormalizeTag(s.Prefix)
	req := Request{
		Shape: schema.ShapeTagsByLetter,
		Equal: abstractions.Row{"first_letter": valueobjects.FirstLetter(prefix)},
		Limit: s.Limit,
	}
	if len([]rune(prefix)) > 1 {
		req.Range = &abstractions.Range{
			Column: "tag",
			Lower:  &abstractions.Bound{Value: prefix, Inclusive: true},
			Upper:  &abstractions.Bound{Value: prefix + "\uffff"},
		}
	}
	return req
}

// RatingByVideo reads the counter pair of a video
type RatingByVideo struct {
	VideoID uuid.UUID
}

func (s RatingByVideo) Request() Request {
	return Request{Shape: schema.ShapeRatingByVideo, Equal: abstractions.Row{"videoid": s.VideoID}}
}

// UserRating reads one user's rating of a video
type UserRating struct {
	VideoID uuid.UUID
	UserID  uuid.UUID
}

func (s UserRating) Request() Request {
	return Request{
		Shape: schema.ShapeUserRating,
		Equal: abstractions.Row{"videoid": s.VideoID, "userid": s.UserID},
	}
}

// CommentsByVideo lists a video's comments, newest first. A non-nil Before
// pages past that comment.
type CommentsByVideo struct {
	VideoID uuid.UUID
	Before  uuid.UUID
	Limit   int
}

func (s CommentsByVideo) Request() Request {
	return Request{
		Shape: schema.ShapeCommentsByVideo,
		Equal: abstractions.Row{"videoid": s.VideoID},
		Range: commentPage(s.Before),
		Limit: s.Limit,
	}
}

// CommentsByUser lists an author's comments, newest first
type CommentsByUser struct {
	UserID uuid.UUID
	Before uuid.UUID
	Limit  int
}

func (s CommentsByUser) Request() Request {
	return Request{
		Shape: schema.ShapeCommentsByUser,
		Equal: abstractions.Row{"userid": s.UserID},
		Range: commentPage(s.Before),
		Limit: s.Limit,
	}
}

func commentPage(before uuid.UUID) *abstractions.Range {
	if before == uuid.Nil {
		return nil
	}
	return &abstractions.Range{Column: "commentid", Upper: &abstractions.Bound{Value: before}}
}

// PlaybackEvents lists a user's playback events on a video, newest first
type PlaybackEvents struct {
	VideoID uuid.UUID
	UserID  uuid.UUID
	Limit   int
}

func (s PlaybackEvents) Request() Request {
	return Request{
		Shape: schema.ShapePlaybackEvents,
		Equal: abstractions.Row{"videoid": s.VideoID, "userid": s.UserID},
		Limit: s.Limit,
	}
}

// UploadJobHistory lists the state transitions of a job, newest first
type UploadJobHistory struct {
	JobID string
	Limit int
}

func (s UploadJobHistory) Request() Request {
	return Request{
		Shape: schema.ShapeUploadJobHistory,
		Equal: abstractions.Row{"jobid": s.JobID},
		Limit: s.Limit,
	}
}

// UploadByVideo reads an upload registration by video id
type UploadByVideo struct {
	VideoID uuid.UUID
}

func (s UploadByVideo) Request() Request {
	return Request{Shape: schema.ShapeUploadByVideo, Equal: abstractions.Row{"videoid": s.VideoID}}
}

// UploadByJob reads an upload registration by encoding job id
type UploadByJob struct {
	JobID string
}

func (s UploadByJob) Request() Request {
	return Request{Shape: schema.ShapeUploadByJob, Equal: abstractions.Row{"jobid": s.JobID}}
}
