package transit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	t.Run("before start is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Progress(start, end, start.Add(-time.Hour)))
	})

	t.Run("after end is one", func(t *testing.T) {
		assert.Equal(t, 1.0, Progress(start, end, end.Add(time.Hour)))
	})

	t.Run("halfway", func(t *testing.T) {
		assert.InDelta(t, 0.5, Progress(start, end, start.Add(5*time.Minute)), 1e-9)
	})

	t.Run("exact endpoints", func(t *testing.T) {
		assert.Equal(t, 0.0, Progress(start, end, start))
		assert.Equal(t, 1.0, Progress(start, end, end))
	})

	t.Run("degenerate intervals are zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Progress(start, start, start.Add(time.Minute)))
		assert.Equal(t, 0.0, Progress(end, start, start.Add(time.Minute)))
	})

	t.Run("monotone in now", func(t *testing.T) {
		prev := -1.0
		for now := start.Add(-time.Minute); !now.After(end.Add(time.Minute)); now = now.Add(13 * time.Second) {
			p := Progress(start, end, now)
			assert.GreaterOrEqual(t, p, prev, "progress regressed at %s", now)
			prev = p
		}
	})
}
