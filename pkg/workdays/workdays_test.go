package workdays

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCountClassifiesRange(t *testing.T) {
	friSat := NewWeekend(time.Friday, time.Saturday)
	satSun := NewWeekend(time.Saturday, time.Sunday)

	// 2025-03-03 is a Monday.
	cases := []struct {
		name    string
		start   time.Time
		end     time.Time
		weekend Weekend
		want    Span
	}{
		{
			name:    "mon to fri with sat-sun weekend",
			start:   day(2025, time.March, 3),
			end:     day(2025, time.March, 7),
			weekend: satSun,
			want:    Span{TotalDays: 5, WorkingDays: 5, WeekendDays: 0},
		},
		{
			name:    "mon to fri with fri-sat weekend",
			start:   day(2025, time.March, 3),
			end:     day(2025, time.March, 7),
			weekend: friSat,
			want:    Span{TotalDays: 5, WorkingDays: 4, WeekendDays: 1},
		},
		{
			name:    "full week",
			start:   day(2025, time.March, 2),
			end:     day(2025, time.March, 8),
			weekend: friSat,
			want:    Span{TotalDays: 7, WorkingDays: 5, WeekendDays: 2},
		},
		{
			name:    "single working day",
			start:   day(2025, time.March, 3),
			end:     day(2025, time.March, 3),
			weekend: friSat,
			want:    Span{TotalDays: 1, WorkingDays: 1, WeekendDays: 0},
		},
		{
			name:    "single rest day yields zero working days",
			start:   day(2025, time.March, 7),
			end:     day(2025, time.March, 7),
			weekend: friSat,
			want:    Span{TotalDays: 1, WorkingDays: 0, WeekendDays: 1},
		},
		{
			name:    "weekend only span",
			start:   day(2025, time.March, 7),
			end:     day(2025, time.March, 8),
			weekend: friSat,
			want:    Span{TotalDays: 2, WorkingDays: 0, WeekendDays: 2},
		},
		{
			name:    "month spanning range",
			start:   day(2025, time.February, 24),
			end:     day(2025, time.March, 9),
			weekend: friSat,
			want:    Span{TotalDays: 14, WorkingDays: 10, WeekendDays: 4},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Count(tc.start, tc.end, tc.weekend)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, got.TotalDays, got.WorkingDays+got.WeekendDays)
		})
	}
}

func TestCountRejectsInvertedRange(t *testing.T) {
	_, err := Count(day(2025, time.March, 7), day(2025, time.March, 3), NewWeekend(time.Friday, time.Saturday))
	require.Error(t, err)
}

func TestCountIgnoresClockTime(t *testing.T) {
	weekend := NewWeekend(time.Friday, time.Saturday)
	late := time.Date(2025, time.March, 3, 23, 59, 0, 0, time.UTC)
	early := time.Date(2025, time.March, 7, 0, 1, 0, 0, time.UTC)

	got, err := Count(late, early, weekend)
	require.NoError(t, err)
	require.Equal(t, Span{TotalDays: 5, WorkingDays: 4, WeekendDays: 1}, got)
}

func TestParseWeekend(t *testing.T) {
	w, err := ParseWeekend([]string{"Friday", " saturday "})
	require.NoError(t, err)
	require.True(t, w.Contains(time.Friday))
	require.True(t, w.Contains(time.Saturday))
	require.False(t, w.Contains(time.Sunday))

	_, err = ParseWeekend([]string{"Fridai"})
	require.Error(t, err)
}
