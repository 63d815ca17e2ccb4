package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore_NoEngagementIsZero(t *testing.T) {
	assert.Zero(t, DefaultRankConfig.Score(time.Hour, 0, 0, 0))
}

func TestScore_DecaysWithAge(t *testing.T) {
	fresh := DefaultRankConfig.Score(time.Hour, 10, 2, 1)
	old := DefaultRankConfig.Score(48*time.Hour, 10, 2, 1)
	assert.Greater(t, fresh, old)
}

func TestScore_BookmarksWeighMore(t *testing.T) {
	likes := DefaultRankConfig.Score(time.Hour, 3, 0, 0)
	bookmarks := DefaultRankConfig.Score(time.Hour, 0, 0, 3)
	assert.Greater(t, bookmarks, likes)
}

func TestScore_Value(t *testing.T) {
	// log10(10)*100 / (0+2)^1.5
	assert.InDelta(t, 35.355, DefaultRankConfig.Score(0, 9, 0, 0), 0.01)
}
