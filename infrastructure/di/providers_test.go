package di

import (
	"testing"
	"time"

	"killrvideo/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideDomainConfig(t *testing.T) {
	t.Run("environment limits", func(t *testing.T) {
		domain, err := ProvideDomainConfig(&config.Config{Environment: "production"})
		require.NoError(t, err)
		assert.Equal(t, 100, domain.MaxQueryLimit)
		assert.Equal(t, 72*time.Hour, domain.SubmissionTTL)
	})

	t.Run("dedup ttl overrides the environment", func(t *testing.T) {
		domain, err := ProvideDomainConfig(&config.Config{Environment: "development", DedupTTL: 90 * time.Minute})
		require.NoError(t, err)
		assert.Equal(t, 90*time.Minute, domain.SubmissionTTL)
		assert.Equal(t, 1000, domain.MaxQueryLimit)
	})
}
