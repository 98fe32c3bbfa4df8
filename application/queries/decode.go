package queries

import (
	"time"

	"killrvideo/domain/core/entities"
	"killrvideo/domain/core/valueobjects"
	"killrvideo/infrastructure/persistence/abstractions"

	"github.com/google/uuid"
)

// VideoPreview is the denormalized listing entry kept by the owner, latest
// and tag views
type VideoPreview struct {
	VideoID      uuid.UUID `json:"videoId"`
	UserID       uuid.UUID `json:"userId,omitempty"`
	Name         string    `json:"name"`
	PreviewImage string    `json:"previewImageLocation,omitempty"`
	AddedAt      time.Time `json:"addedDate"`
}

func text(row abstractions.Row, col string) string {
	s, _ := row[col].(string)
	return s
}

func id(row abstractions.Row, col string) uuid.UUID {
	u, _ := row[col].(uuid.UUID)
	return u
}

func timestamp(row abstractions.Row, col string) time.Time {
	t, _ := row[col].(time.Time)
	return t
}

func textSet(row abstractions.Row, col string) []string {
	s, _ := row[col].([]string)
	return s
}

// DecodeUser decodes a users row
func DecodeUser(row abstractions.Row) *entities.User {
	return entities.ReconstructUser(
		id(row, "userid"),
		text(row, "firstname"),
		text(row, "lastname"),
		text(row, "email"),
		timestamp(row, "created_date"),
	)
}

// DecodeCredential decodes a user_credentials row
func DecodeCredential(row abstractions.Row) entities.Credential {
	return entities.Credential{
		Email:    text(row, "email"),
		Password: text(row, "password"),
		UserID:   id(row, "userid"),
	}
}

// DecodeVideo decodes a videos row
func DecodeVideo(row abstractions.Row) *entities.Video {
	locationType, _ := row["location_type"].(int)
	thumbs, _ := row["preview_thumbnails"].(map[string]string)

	var metadata []entities.VideoMetadata
	if set, ok := row["metadata"].([]map[string]interface{}); ok {
		for _, udt := range set {
			m := entities.VideoMetadata{}
			m.Height, _ = udt["height"].(int)
			m.Width, _ = udt["width"].(int)
			m.Encoding, _ = udt["encoding"].(string)
			m.VideoBitRates, _ = udt["video_bit_rate"].([]string)
			metadata = append(metadata, m)
		}
	}

	return entities.ReconstructVideo(entities.VideoParams{
		ID:                id(row, "videoid"),
		OwnerID:           id(row, "userid"),
		Name:              text(row, "name"),
		Description:       text(row, "description"),
		Location:          text(row, "location"),
		LocationType:      entities.LocationType(locationType),
		PreviewThumbnails: thumbs,
		PreviewImage:      text(row, "preview_image_location"),
		Tags:              textSet(row, "tags"),
		Metadata:          metadata,
		AddedAt:           timestamp(row, "added_date"),
	})
}

// DecodeVideoPreview decodes a user_videos, latest_videos or videos_by_tag row
func DecodeVideoPreview(row abstractions.Row) VideoPreview {
	return VideoPreview{
		VideoID:      id(row, "videoid"),
		UserID:       id(row, "userid"),
		Name:         text(row, "name"),
		PreviewImage: text(row, "preview_image_location"),
		AddedAt:      timestamp(row, "added_date"),
	}
}

// DecodeComment decodes a comments_by_video or comments_by_user row
func DecodeComment(row abstractions.Row) *entities.Comment {
	return &entities.Comment{
		VideoID:   id(row, "videoid"),
		CommentID: id(row, "commentid"),
		UserID:    id(row, "userid"),
		Body:      text(row, "comment"),
	}
}

// DecodePlaybackEvent decodes a video_event row
func DecodePlaybackEvent(row abstractions.Row) *entities.PlaybackEvent {
	offset, _ := row["video_timestamp"].(int64)
	return &entities.PlaybackEvent{
		VideoID:     id(row, "videoid"),
		UserID:      id(row, "userid"),
		EventID:     id(row, "event_timestamp"),
		Kind:        text(row, "event"),
		VideoOffset: offset,
	}
}

// DecodeJobTransition decodes an encoding_job_notifications row
func DecodeJobTransition(row abstractions.Row) *entities.JobTransition {
	return &entities.JobTransition{
		JobID:      text(row, "jobid"),
		StatusDate: timestamp(row, "status_date"),
		ETag:       text(row, "etag"),
		OldState:   text(row, "oldstate"),
		NewState:   text(row, "newstate"),
	}
}

// DecodeUpload decodes an uploaded_videos or uploaded_videos_by_jobid row
func DecodeUpload(row abstractions.Row) *entities.UploadedVideo {
	return &entities.UploadedVideo{
		VideoID:     id(row, "videoid"),
		OwnerID:     id(row, "userid"),
		Name:        text(row, "name"),
		Description: text(row, "description"),
		Tags:        textSet(row, "tags"),
		AddedAt:     timestamp(row, "added_date"),
		JobID:       text(row, "jobid"),
	}
}

// DecodeUserRating decodes a video_ratings_by_user row
func DecodeUserRating(row abstractions.Row) *entities.UserRating {
	v, _ := row["rating"].(int)
	return &entities.UserRating{
		VideoID: id(row, "videoid"),
		UserID:  id(row, "userid"),
		Rating:  valueobjects.RatingOf(v),
	}
}
