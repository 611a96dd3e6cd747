package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mexicoCity = time.FixedZone("CST", -6*60*60)

func TestCronNext(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "daily midnight",
			expr:  EveryDayMidnight,
			after: time.Date(2024, 3, 10, 15, 30, 0, 0, mexicoCity),
			want:  time.Date(2024, 3, 11, 0, 0, 0, 0, mexicoCity),
		},
		{
			name:  "sunday before midnight",
			expr:  SundayBeforeMidnight,
			after: time.Date(2024, 3, 13, 12, 0, 0, 0, mexicoCity), // Wednesday
			want:  time.Date(2024, 3, 17, 23, 59, 0, 0, mexicoCity),
		},
		{
			name:  "month end window starts on the 28th",
			expr:  MonthEndBeforeMidnight,
			after: time.Date(2024, 2, 1, 0, 0, 0, 0, mexicoCity),
			want:  time.Date(2024, 2, 28, 23, 59, 0, 0, mexicoCity),
		},
		{
			name:  "every fifth day",
			expr:  EveryFifthDay,
			after: time.Date(2024, 3, 2, 0, 0, 0, 0, mexicoCity),
			want:  time.Date(2024, 3, 6, 0, 0, 0, 0, mexicoCity),
		},
		{
			name:  "strictly after an exact match",
			expr:  EveryDayMidnight,
			after: time.Date(2024, 3, 11, 0, 0, 0, 0, mexicoCity),
			want:  time.Date(2024, 3, 12, 0, 0, 0, 0, mexicoCity),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := ParseCronExpressionIn(tt.expr, mexicoCity)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ce.Next(tt.after)), "got %s", ce.Next(tt.after))
		})
	}
}

func TestCronNext_EvaluatesInLocation(t *testing.T) {
	ce := MustParseCronExpression(EveryDayMidnight, mexicoCity)

	// 05:00 UTC is 23:00 the previous day in the business zone.
	after := time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC)
	next := ce.Next(after)

	assert.Equal(t, 0, next.Hour())
	assert.True(t, next.Equal(time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)))
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"*/0 * * * *",
		"5-2 * * * *",
		"a * * * *",
		"0 0 30 2 *",
		"0 0 31 4,6,9,11 *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseCronExpression_LeapDayIsValid(t *testing.T) {
	ce, err := ParseCronExpression("0 0 29 2 *")
	require.NoError(t, err)
	assert.True(t, ce.Next(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).IsZero(), "next leap day is more than a year away")
	assert.True(t, ce.Next(time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)).Equal(time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)))
}

func TestParseField_Lists(t *testing.T) {
	got, err := parseField("5,1,1-3", 0, 59)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 5}, got)
}

func TestAlignedSchedule_OnTheHour(t *testing.T) {
	s := NewAlignedSchedule(time.Hour, mexicoCity)

	next := s.Next(time.Date(2024, 3, 10, 14, 25, 13, 0, mexicoCity))
	assert.True(t, next.Equal(time.Date(2024, 3, 10, 15, 0, 0, 0, mexicoCity)))

	next = s.Next(time.Date(2024, 3, 10, 15, 0, 0, 0, mexicoCity))
	assert.True(t, next.Equal(time.Date(2024, 3, 10, 16, 0, 0, 0, mexicoCity)))

	next = s.Next(time.Date(2024, 3, 10, 23, 30, 0, 0, mexicoCity))
	assert.True(t, next.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, mexicoCity)))
}
