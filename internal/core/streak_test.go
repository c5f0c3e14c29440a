package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreakState_ApplyCorrectAnswer(t *testing.T) {
	tests := []struct {
		name        string
		initial     StreakState
		today       string
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "first activity",
			initial:     StreakState{Level: 1},
			today:       "2024-03-10",
			wantCurrent: 1,
			wantLongest: 1,
		},
		{
			name:        "same day keeps count",
			initial:     StreakState{CurrentStreak: 4, LongestStreak: 6, LastActivityDate: "2024-03-10", Level: 1},
			today:       "2024-03-10",
			wantCurrent: 4,
			wantLongest: 6,
		},
		{
			name:        "next day increments",
			initial:     StreakState{CurrentStreak: 4, LongestStreak: 4, LastActivityDate: "2024-03-09", Level: 1},
			today:       "2024-03-10",
			wantCurrent: 5,
			wantLongest: 5,
		},
		{
			name:        "next day across month boundary",
			initial:     StreakState{CurrentStreak: 2, LongestStreak: 9, LastActivityDate: "2024-02-29", Level: 1},
			today:       "2024-03-01",
			wantCurrent: 3,
			wantLongest: 9,
		},
		{
			name:        "gap resets to one",
			initial:     StreakState{CurrentStreak: 7, LongestStreak: 7, LastActivityDate: "2024-03-08", Level: 1},
			today:       "2024-03-10",
			wantCurrent: 1,
			wantLongest: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.initial
			s.ApplyCorrectAnswer(tt.today, ExperiencePerCorrect)

			assert.Equal(t, tt.wantCurrent, s.CurrentStreak)
			assert.Equal(t, tt.wantLongest, s.LongestStreak)
			assert.Equal(t, tt.today, s.LastActivityDate)
			assert.Equal(t, tt.initial.ExperiencePoints+ExperiencePerCorrect, s.ExperiencePoints)
		})
	}
}

func TestStreakState_LevelUp(t *testing.T) {
	s := StreakState{ExperiencePoints: 90, Level: 1}

	leveledUp := s.ApplyCorrectAnswer("2024-03-10", ExperiencePerCorrect)
	assert.True(t, leveledUp)
	assert.Equal(t, 2, s.Level)

	leveledUp = s.ApplyCorrectAnswer("2024-03-10", ExperiencePerCorrect)
	assert.False(t, leveledUp)
	assert.Equal(t, 2, s.Level)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, 1, LevelFor(0))
	assert.Equal(t, 1, LevelFor(99))
	assert.Equal(t, 2, LevelFor(100))
	assert.Equal(t, 5, LevelFor(450))
	assert.Equal(t, 1, LevelFor(-20))
}

func TestDateKey_Timezone(t *testing.T) {
	// 23:30 UTC is already the next day in Tokyo
	ts := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("timezone data unavailable")
	}

	assert.Equal(t, "2024-03-10", DateKey(ts, time.UTC))
	assert.Equal(t, "2024-03-11", DateKey(ts, tokyo))
	assert.Equal(t, "2024-03-10", DateKey(ts, nil))
}
