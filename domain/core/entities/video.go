package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"killrvideo/domain/config"
	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// LocationType says where the video bytes live
type LocationType int

const (
	LocationYouTube LocationType = 0
	LocationUpload  LocationType = 1
)

// VideoMetadata describes one encoding of a video
type VideoMetadata struct {
	Height        int      `json:"height"`
	Width         int      `json:"width"`
	VideoBitRates []string `json:"video_bit_rate"`
	Encoding      string   `json:"encoding"`
}

// Video is the central catalog entity. id, owner and addedAt never change
// after creation; the remaining attributes are replaced wholesale by a new
// AddVideo with the same id.
type Video struct {
	id                uuid.UUID
	ownerID           uuid.UUID
	name              string
	description       string
	location          string
	locationType      LocationType
	previewThumbnails map[string]string
	previewImage      string
	tags              []string
	metadata          []VideoMetadata
	addedAt           time.Time
}

// VideoParams carries the caller-supplied fields of a video
type VideoParams struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	Name              string
	Description       string
	Location          string
	LocationType      LocationType
	PreviewThumbnails map[string]string
	PreviewImage      string
	Tags              []string
	Metadata          []VideoMetadata
	AddedAt           time.Time
}

// NewVideo creates a new video with full business rule validation
func NewVideo(cfg *config.DomainConfig, p VideoParams) (*Video, error) {
	if p.OwnerID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("owner user id is required")
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, pkgerrors.NewValidationError("video name is required")
	}
	if utf8.RuneCountInString(name) > cfg.MaxNameLength {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("video name exceeds %d characters", cfg.MaxNameLength))
	}
	if utf8.RuneCountInString(p.Description) > cfg.MaxDescriptionLen {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("description exceeds %d characters", cfg.MaxDescriptionLen))
	}
	if strings.TrimSpace(p.Location) == "" {
		return nil, pkgerrors.NewValidationError("video location is required")
	}
	if p.LocationType != LocationYouTube && p.LocationType != LocationUpload {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown location type %d", p.LocationType))
	}
	if len(p.PreviewThumbnails) > cfg.MaxThumbnails {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("too many preview thumbnails (max %d)", cfg.MaxThumbnails))
	}

	tags, err := valueobjects.NormalizeTags(p.Tags, cfg.MaxTagsPerVideo, cfg.MaxTagLength)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	for i, m := range p.Metadata {
		if m.Height < 0 || m.Width < 0 {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("metadata[%d]: dimensions must not be negative", i))
		}
	}

	// A new video gets a time-based id carrying its creation time, so a
	// resend with that id rebuilds the same keyed rows.
	id, addedAt := p.ID, p.AddedAt
	switch {
	case id == uuid.Nil:
		if addedAt.IsZero() {
			addedAt = time.Now()
		}
		id = valueobjects.TimeUUIDAt(addedAt)
	case addedAt.IsZero():
		addedAt = valueobjects.TimeOf(id)
		if addedAt.IsZero() {
			addedAt = time.Now()
		}
	}

	thumbs := make(map[string]string, len(p.PreviewThumbnails))
	for k, v := range p.PreviewThumbnails {
		thumbs[k] = v
	}

	v := &Video{
		id:                id,
		ownerID:           p.OwnerID,
		name:              name,
		description:       p.Description,
		location:          strings.TrimSpace(p.Location),
		locationType:      p.LocationType,
		previewThumbnails: thumbs,
		previewImage:      p.PreviewImage,
		tags:              tags,
		metadata:          normalizeMetadata(p.Metadata),
		addedAt:           valueobjects.Timestamp(addedAt),
	}
	if v.previewImage == "" {
		v.previewImage = defaultPreview(thumbs)
	}
	return v, nil
}

// ReconstructVideo rebuilds a video from stored fields without validation
func ReconstructVideo(p VideoParams) *Video {
	return &Video{
		id:                p.ID,
		ownerID:           p.OwnerID,
		name:              p.Name,
		description:       p.Description,
		location:          p.Location,
		locationType:      p.LocationType,
		previewThumbnails: p.PreviewThumbnails,
		previewImage:      p.PreviewImage,
		tags:              p.Tags,
		metadata:          p.Metadata,
		addedAt:           p.AddedAt,
	}
}

func (v *Video) ID() uuid.UUID                        { return v.id }
func (v *Video) OwnerID() uuid.UUID                   { return v.ownerID }
func (v *Video) Name() string                         { return v.name }
func (v *Video) Description() string                  { return v.description }
func (v *Video) Location() string                     { return v.location }
func (v *Video) LocationType() LocationType           { return v.locationType }
func (v *Video) PreviewThumbnails() map[string]string { return v.previewThumbnails }
func (v *Video) PreviewImage() string                 { return v.previewImage }
func (v *Video) Tags() []string                       { return v.tags }
func (v *Video) Metadata() []VideoMetadata            { return v.metadata }
func (v *Video) AddedAt() time.Time                   { return v.addedAt }

// RestoreAddedAt keeps the creation time of an already stored video when the
// video is added again
func (v *Video) RestoreAddedAt(t time.Time) {
	if !t.IsZero() {
		v.addedAt = valueobjects.Timestamp(t)
	}
}

// DayBucket is the latest-videos partition the video lands in
func (v *Video) DayBucket() valueobjects.DayBucket {
	return valueobjects.DayBucketOf(v.addedAt)
}

// defaultPreview picks the thumbnail with the smallest resolution key
func defaultPreview(thumbs map[string]string) string {
	if len(thumbs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(thumbs))
	for k := range thumbs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return thumbs[keys[0]]
}

func normalizeMetadata(in []VideoMetadata) []VideoMetadata {
	out := make([]VideoMetadata, 0, len(in))
	for _, m := range in {
		rates := append([]string(nil), m.VideoBitRates...)
		sort.Strings(rates)
		out = append(out, VideoMetadata{
			Height:        m.Height,
			Width:         m.Width,
			VideoBitRates: rates,
			Encoding:      m.Encoding,
		})
	}
	return out
}
