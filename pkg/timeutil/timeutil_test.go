package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToday_UsesReferenceZone(t *testing.T) {
	// 03:30 UTC on March 2 is still March 1 in Mexico City.
	utc := time.Date(2024, 3, 2, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01", Today(FixedClock(utc)))

	later := time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-02", Today(FixedClock(later)))
}

func TestIsLastDayOfMonth(t *testing.T) {
	assert.True(t, IsLastDayOfMonth(DateTime(2024, 2, 29, 23, 59, 0)))
	assert.False(t, IsLastDayOfMonth(DateTime(2024, 2, 28, 23, 59, 0)))
	assert.True(t, IsLastDayOfMonth(DateTime(2023, 2, 28, 23, 59, 0)))
	assert.True(t, IsLastDayOfMonth(DateTime(2024, 4, 30, 23, 59, 0)))
	assert.False(t, IsLastDayOfMonth(DateTime(2024, 5, 30, 23, 59, 0)))
}

func TestDaysAgo(t *testing.T) {
	assert.Equal(t, "2024-01-01", DaysAgo(DateTime(2024, 3, 1, 12, 0, 0), 60))
}

func TestStartOfNextHour(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 17, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), StartOfNextHour(t0))
}

func TestSetLocation(t *testing.T) {
	require.Error(t, SetLocation("Not/AZone"))
	require.NoError(t, SetLocation(DefaultZoneName))
	assert.Equal(t, DefaultZoneName, Location().String())
}
