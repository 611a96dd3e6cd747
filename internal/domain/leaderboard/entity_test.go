package leaderboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	assert.NoError(t, err)
	assert.Equal(t, PeriodGlobal, p)

	p, err = ParsePeriod("Weekly")
	assert.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	_, err = ParsePeriod("yearly")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

func TestPeriod_IsResettable(t *testing.T) {
	assert.True(t, PeriodDaily.IsResettable())
	assert.True(t, PeriodMonthly.IsResettable())
	assert.False(t, PeriodGlobal.IsResettable())
}

func TestNewSnapshot_TruncatesToTop(t *testing.T) {
	entries := make([]Entry, 0, 15)
	for i := 15; i > 0; i-- {
		entries = append(entries, Entry{Username: fmt.Sprintf("u%d", i), Score: float64(i)})
	}
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	snap := NewSnapshot(PeriodDaily, entries, now, time.Hour)
	assert.Len(t, snap.Entries, TopSize)
	assert.True(t, snap.IsSorted())
	assert.Equal(t, now.Add(time.Hour), snap.ExpiresAt)
	assert.False(t, snap.IsExpired(now.Add(30*time.Minute)))
	assert.True(t, snap.IsExpired(now.Add(2*time.Hour)))
}

func TestRankFromGreaterCount_Ties(t *testing.T) {
	scores := []float64{10, 10, 8}
	ranks := make([]int, len(scores))
	for i, s := range scores {
		var greater int64
		for _, other := range scores {
			if other > s {
				greater++
			}
		}
		ranks[i] = shared.RankFromGreaterCount(greater).Int()
	}
	assert.Equal(t, []int{1, 1, 3}, ranks)
}
