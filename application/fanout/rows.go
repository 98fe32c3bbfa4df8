package fanout

import (
	"killrvideo/domain/core/entities"
	"killrvideo/domain/core/valueobjects"
	"killrvideo/infrastructure/persistence/abstractions"
)

func credentialRow(u *entities.User) abstractions.Row {
	return abstractions.Row{
		"email":    u.Email(),
		"password": u.Password(),
		"userid":   u.ID(),
	}
}

func userRow(u *entities.User) abstractions.Row {
	return abstractions.Row{
		"userid":       u.ID(),
		"firstname":    u.FirstName(),
		"lastname":     u.LastName(),
		"email":        u.Email(),
		"created_date": u.CreatedAt(),
	}
}

func videoRow(v *entities.Video) abstractions.Row {
	row := abstractions.Row{
		"videoid":                v.ID(),
		"userid":                 v.OwnerID(),
		"name":                   v.Name(),
		"description":            v.Description(),
		"location":               v.Location(),
		"location_type":          int(v.LocationType()),
		"preview_image_location": v.PreviewImage(),
		"added_date":             v.AddedAt(),
	}
	if thumbs := v.PreviewThumbnails(); len(thumbs) > 0 {
		row["preview_thumbnails"] = thumbs
	}
	if tags := v.Tags(); len(tags) > 0 {
		row["tags"] = tags
	}
	if meta := v.Metadata(); len(meta) > 0 {
		set := make([]map[string]interface{}, 0, len(meta))
		for _, m := range meta {
			udt := map[string]interface{}{
				"height":   m.Height,
				"width":    m.Width,
				"encoding": m.Encoding,
			}
			if len(m.VideoBitRates) > 0 {
				udt["video_bit_rate"] = m.VideoBitRates
			}
			set = append(set, udt)
		}
		row["metadata"] = set
	}
	return row
}

func userVideoRow(v *entities.Video) abstractions.Row {
	return abstractions.Row{
		"userid":                 v.OwnerID(),
		"added_date":             v.AddedAt(),
		"videoid":                v.ID(),
		"name":                   v.Name(),
		"preview_image_location": v.PreviewImage(),
	}
}

func latestVideoRow(v *entities.Video) abstractions.Row {
	return abstractions.Row{
		"yyyymmdd":               v.DayBucket().String(),
		"added_date":             v.AddedAt(),
		"videoid":                v.ID(),
		"userid":                 v.OwnerID(),
		"name":                   v.Name(),
		"preview_image_location": v.PreviewImage(),
	}
}

func videoTagRow(v *entities.Video, tag string) abstractions.Row {
	return abstractions.Row{
		"tag":                    tag,
		"videoid":                v.ID(),
		"added_date":             v.AddedAt(),
		"userid":                 v.OwnerID(),
		"name":                   v.Name(),
		"preview_image_location": v.PreviewImage(),
		"tagged_date":            v.AddedAt(),
	}
}

func tagLetterRow(tag string) abstractions.Row {
	return abstractions.Row{
		"first_letter": valueobjects.FirstLetter(tag),
		"tag":          tag,
	}
}

func userRatingRow(r *entities.UserRating) abstractions.Row {
	return abstractions.Row{
		"videoid": r.VideoID,
		"userid":  r.UserID,
		"rating":  r.Rating.Value(),
	}
}

func commentByVideoRow(c *entities.Comment) abstractions.Row {
	return abstractions.Row{
		"videoid":   c.VideoID,
		"commentid": c.CommentID,
		"userid":    c.UserID,
		"comment":   c.Body,
	}
}

func commentByUserRow(c *entities.Comment) abstractions.Row {
	return abstractions.Row{
		"userid":    c.UserID,
		"commentid": c.CommentID,
		"videoid":   c.VideoID,
		"comment":   c.Body,
	}
}

func playbackRow(e *entities.PlaybackEvent) abstractions.Row {
	return abstractions.Row{
		"videoid":         e.VideoID,
		"userid":          e.UserID,
		"event_timestamp": e.EventID,
		"event":           e.Kind,
		"video_timestamp": e.VideoOffset,
	}
}

func jobTransitionRow(j *entities.JobTransition) abstractions.Row {
	row := abstractions.Row{
		"jobid":       j.JobID,
		"status_date": j.StatusDate,
		"etag":        j.ETag,
		"newstate":    j.NewState,
	}
	if j.OldState != "" {
		row["oldstate"] = j.OldState
	}
	return row
}

// uploadRow serves both upload views; they carry the same columns
func uploadRow(u *entities.UploadedVideo) abstractions.Row {
	row := abstractions.Row{
		"videoid":     u.VideoID,
		"userid":      u.OwnerID,
		"name":        u.Name,
		"description": u.Description,
		"added_date":  u.AddedAt,
		"jobid":       u.JobID,
	}
	if len(u.Tags) > 0 {
		row["tags"] = u.Tags
	}
	return row
}
