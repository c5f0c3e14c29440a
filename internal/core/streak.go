package core

import "time"

const dateLayout = "2006-01-02"

// DateKey formats a time as a calendar day in the given timezone
func DateKey(t time.Time, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	return t.In(tz).Format(dateLayout)
}

// isNextDay reports whether today is exactly one calendar day after last
func isNextDay(last, today string) bool {
	lastDay, err := time.Parse(dateLayout, last)
	if err != nil {
		return false
	}
	return lastDay.AddDate(0, 0, 1).Format(dateLayout) == today
}

// ApplyCorrectAnswer updates the streak for a correct answer given on today
// (a YYYY-MM-DD key) and adds experience. It returns true if the level went up.
func (s *StreakState) ApplyCorrectAnswer(today string, experience int) bool {
	switch {
	case s.LastActivityDate == today:
		// same-day repeats don't count twice
	case s.LastActivityDate != "" && isNextDay(s.LastActivityDate, today):
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = today

	previous := s.Level
	s.ExperiencePoints += experience
	s.Level = LevelFor(s.ExperiencePoints)
	return s.Level > previous
}
