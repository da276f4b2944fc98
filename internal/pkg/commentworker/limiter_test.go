package commentworker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forumarch/archiver/internal/pkg/config"
)

func TestCommentPageLimiterUsesConfiguredDelay(t *testing.T) {
	cfg := &config.Config{CommentsRequestDelayMs: 250}
	limiter := commentPageLimiter(cfg)
	require.InDelta(t, 4.0, float64(limiter.Limit()), 0.01)
}

func TestCommentPageLimiterFallsBackOnZeroDelay(t *testing.T) {
	cfg := &config.Config{CommentsRequestDelayMs: 0}
	limiter := commentPageLimiter(cfg)
	require.Greater(t, float64(limiter.Limit()), 0.0)
}
