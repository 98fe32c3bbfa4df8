package entities

import (
	"testing"
	"time"

	"killrvideo/domain/config"
	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func videoParams() VideoParams {
	return VideoParams{
		OwnerID:  uuid.New(),
		Name:     "  Data Modeling  ",
		Location: "https://youtu.be/abc",
		Tags:     []string{"Cassandra", "cassandra", "data"},
	}
}

func TestNewVideoIdentity(t *testing.T) {
	cfg := config.DefaultDomainConfig()

	t.Run("new video gets a time-based id carrying its added date", func(t *testing.T) {
		v, err := NewVideo(cfg, videoParams())
		require.NoError(t, err)

		assert.True(t, valueobjects.IsTimeUUID(v.ID()))
		assert.Equal(t, v.AddedAt(), valueobjects.Timestamp(valueobjects.TimeOf(v.ID())))
		assert.Equal(t, "Data Modeling", v.Name())
		assert.Equal(t, []string{"cassandra", "data"}, v.Tags())
	})

	t.Run("given time-based id restores the same added date", func(t *testing.T) {
		first, err := NewVideo(cfg, videoParams())
		require.NoError(t, err)

		p := videoParams()
		p.ID = first.ID()
		again, err := NewVideo(cfg, p)
		require.NoError(t, err)

		assert.Equal(t, first.AddedAt(), again.AddedAt())
		assert.Equal(t, first.DayBucket(), again.DayBucket())
	})

	t.Run("random id takes the supplied added date", func(t *testing.T) {
		at := time.Date(2024, 3, 9, 10, 11, 12, 987654321, time.UTC)
		p := videoParams()
		p.ID = uuid.New()
		p.AddedAt = at

		v, err := NewVideo(cfg, p)
		require.NoError(t, err)
		assert.Equal(t, p.ID, v.ID())
		assert.Equal(t, valueobjects.Timestamp(at), v.AddedAt())
	})

	t.Run("random id without added date falls back to now", func(t *testing.T) {
		before := time.Now().Add(-time.Second)
		p := videoParams()
		p.ID = uuid.New()

		v, err := NewVideo(cfg, p)
		require.NoError(t, err)
		assert.True(t, v.AddedAt().After(before))
	})
}

func TestNewVideoValidation(t *testing.T) {
	cfg := config.DefaultDomainConfig()

	tests := []struct {
		name   string
		mutate func(*VideoParams)
	}{
		{"missing owner", func(p *VideoParams) { p.OwnerID = uuid.Nil }},
		{"blank name", func(p *VideoParams) { p.Name = "   " }},
		{"missing location", func(p *VideoParams) { p.Location = "" }},
		{"unknown location type", func(p *VideoParams) { p.LocationType = 7 }},
		{"negative dimensions", func(p *VideoParams) { p.Metadata = []VideoMetadata{{Height: -1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := videoParams()
			tt.mutate(&p)
			_, err := NewVideo(cfg, p)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
		})
	}
}
