package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Rating constraints
	MinRating int
	MaxRating int

	// Video constraints
	MaxTagsPerVideo   int
	MaxTagLength      int
	MaxNameLength     int
	MaxDescriptionLen int
	MaxThumbnails     int

	// Comment constraints
	MaxCommentLength int

	// Read limits
	DefaultQueryLimit int
	MaxQueryLimit     int
	PlaybackPageSize  int

	// Latest feed walks back this many day buckets at most
	LatestFeedLookback int

	// Rating submissions are remembered this long for deduplication
	SubmissionTTL time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MinRating: 1,
		MaxRating: 5,

		MaxTagsPerVideo:   20,
		MaxTagLength:      50,
		MaxNameLength:     200,
		MaxDescriptionLen: 5000,
		MaxThumbnails:     10,

		MaxCommentLength: 2000,

		DefaultQueryLimit: 25,
		MaxQueryLimit:     500,
		PlaybackPageSize:  5,

		LatestFeedLookback: 7,

		SubmissionTTL: 24 * time.Hour,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxQueryLimit = 100
	config.SubmissionTTL = 72 * time.Hour

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxQueryLimit = 1000
	config.LatestFeedLookback = 30
	config.SubmissionTTL = time.Hour

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MinRating < 1 || c.MaxRating < c.MinRating {
		return fmt.Errorf("invalid rating bounds [%d, %d]", c.MinRating, c.MaxRating)
	}
	if c.MaxTagsPerVideo <= 0 || c.MaxTagLength <= 0 {
		return fmt.Errorf("tag limits must be positive")
	}
	if c.DefaultQueryLimit <= 0 || c.MaxQueryLimit < c.DefaultQueryLimit {
		return fmt.Errorf("invalid query limits default=%d max=%d", c.DefaultQueryLimit, c.MaxQueryLimit)
	}
	if c.LatestFeedLookback <= 0 {
		return fmt.Errorf("latest feed lookback must be positive")
	}
	if c.SubmissionTTL <= 0 {
		return fmt.Errorf("submission ttl must be positive")
	}
	return nil
}

// ClampLimit applies the default and maximum read limits to a requested limit
func (c *DomainConfig) ClampLimit(requested int) int {
	if requested <= 0 {
		return c.DefaultQueryLimit
	}
	if requested > c.MaxQueryLimit {
		return c.MaxQueryLimit
	}
	return requested
}
