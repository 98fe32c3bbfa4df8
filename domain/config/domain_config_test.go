package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDomainConfig(t *testing.T) {
	tests := []struct {
		environment string
		maxLimit    int
		ttl         time.Duration
	}{
		{"production", 100, 72 * time.Hour},
		{"development", 1000, time.Hour},
		{"staging", 500, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := LoadDomainConfig(tt.environment)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.maxLimit, cfg.MaxQueryLimit)
			assert.Equal(t, tt.ttl, cfg.SubmissionTTL)
		})
	}
}

func TestDomainConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DomainConfig)
	}{
		{"inverted rating bounds", func(c *DomainConfig) { c.MinRating, c.MaxRating = 5, 1 }},
		{"no tags allowed", func(c *DomainConfig) { c.MaxTagsPerVideo = 0 }},
		{"default above max", func(c *DomainConfig) { c.DefaultQueryLimit = c.MaxQueryLimit + 1 }},
		{"no lookback", func(c *DomainConfig) { c.LatestFeedLookback = 0 }},
		{"no submission ttl", func(c *DomainConfig) { c.SubmissionTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDomainConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestClampLimit(t *testing.T) {
	cfg := DefaultDomainConfig()

	assert.Equal(t, cfg.DefaultQueryLimit, cfg.ClampLimit(0))
	assert.Equal(t, cfg.DefaultQueryLimit, cfg.ClampLimit(-1))
	assert.Equal(t, 7, cfg.ClampLimit(7))
	assert.Equal(t, cfg.MaxQueryLimit, cfg.ClampLimit(cfg.MaxQueryLimit+1))
}
