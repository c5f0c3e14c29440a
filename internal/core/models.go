package core

import (
	"errors"
	"strings"
	"time"
)

// Difficulty is the question difficulty tier
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionSource tags where a question came from
type QuestionSource string

const (
	SourceGenerated QuestionSource = "generated"
	SourceLocal     QuestionSource = "local"
)

// TopicGeneral is the catch-all bank category used as the last fallback
const TopicGeneral = "general"

// ExperiencePerCorrect is the flat reward for every correct answer
const ExperiencePerCorrect = 10

// ExperiencePerLevel is the number of experience points per level
const ExperiencePerLevel = 100

// TargetApp represents an application gated behind quizzes
type TargetApp struct {
	ID                       string // stable app identifier (package name)
	Name                     string
	Enabled                  bool
	DailyLimitMinutes        int // 0 = no minute limit, only MaxUsesPerDay applies
	MaxUsesPerDay            int
	PerUnlockDurationMinutes int
	QuestionsPerUnlock       int
	DifficultyLevel          Difficulty
	SelectedTopics           []string
	EmergencyBypassEnabled   bool
	EmergencyUsesPerDay      int
	CurrentUsesToday         int
	EmergencyUsesUsed        int
	LedgerDate               string // YYYY-MM-DD of the counters above
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Question is a four-option multiple choice question
type Question struct {
	ID            string
	Text          string
	Options       [4]string
	CorrectAnswer string // option text of the correct slot
	Topic         string
	Difficulty    Difficulty
	Source        QuestionSource
	Model         string // generation model, empty for local questions
	CreatedAt     time.Time
}

// QuotaEntry is the per-app usage record for a single day
type QuotaEntry struct {
	AppID           string
	Date            string // YYYY-MM-DD
	MinutesUsed     int
	Attempts        int
	CorrectAttempts int
	EmergencyUses   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StreakState is the singleton reward ledger
type StreakState struct {
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate string // YYYY-MM-DD, empty when never active
	ExperiencePoints int
	Level            int
	UpdatedAt        time.Time
}

// Attempt is an answered (or timed out) question
type Attempt struct {
	ID          string
	AppID       string
	QuestionID  string
	Correct     bool
	Unlocks     bool // correct answer that completes an unlock
	TimeTakenMs int64
	AnsweredAt  time.Time
}

// Validation errors
var (
	ErrInvalidAppID         = errors.New("app ID cannot be empty")
	ErrInvalidAppName       = errors.New("app name cannot be empty")
	ErrInvalidMaxUses       = errors.New("max uses per day must be positive")
	ErrInvalidUnlockMinutes = errors.New("per-unlock duration must be positive")
	ErrInvalidQuestionCount = errors.New("questions per unlock must be positive")
	ErrInvalidDifficulty    = errors.New("unknown difficulty level")
	ErrInvalidLimit         = errors.New("limits cannot be negative")
	ErrEmptyQuestion        = errors.New("question text cannot be empty")
	ErrEmptyOption          = errors.New("question options cannot be empty")
	ErrAnswerNotAnOption    = errors.New("correct answer does not match any option")
	ErrAppNotFound          = errors.New("target app not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAppAlreadyExists     = errors.New("target app already exists")
)

// ErrNoQuestions is returned when no local question exists for a topic nor
// for the general category
var ErrNoQuestions = errors.New("no questions available")

// ErrQuotaUnavailable is returned when the ledger cannot reach storage.
// Callers must fail closed.
var ErrQuotaUnavailable = errors.New("quota ledger unavailable")

// ParseDifficulty converts a string to a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", ErrInvalidDifficulty
}

// Rank orders difficulties from easiest (0) to hardest (2)
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	}
	return -1
}

// Easier returns the tier one step easier, never below easy
func (d Difficulty) Easier() Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

// Validate validates a TargetApp
func (a *TargetApp) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrInvalidAppID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidAppName
	}
	if a.MaxUsesPerDay <= 0 {
		return ErrInvalidMaxUses
	}
	if a.PerUnlockDurationMinutes <= 0 {
		return ErrInvalidUnlockMinutes
	}
	if a.QuestionsPerUnlock <= 0 {
		return ErrInvalidQuestionCount
	}
	if a.DifficultyLevel.Rank() < 0 {
		return ErrInvalidDifficulty
	}
	if a.DailyLimitMinutes < 0 || a.EmergencyUsesPerDay < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// UnlockDuration returns the length of one unlock grant
func (a *TargetApp) UnlockDuration() time.Duration {
	return time.Duration(a.PerUnlockDurationMinutes) * time.Minute
}

// EmergencyRemaining returns how many bypasses are left today
func (a *TargetApp) EmergencyRemaining() int {
	if !a.EmergencyBypassEnabled {
		return 0
	}
	remaining := a.EmergencyUsesPerDay - a.EmergencyUsesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Validate validates a Question
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuestion
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return ErrEmptyOption
		}
	}
	if q.CorrectIndex() < 0 {
		return ErrAnswerNotAnOption
	}
	return nil
}

// CorrectIndex returns the slot of the correct answer, or -1
func (q *Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return i
		}
	}
	return -1
}

// CorrectLetter returns the letter (A-D) of the correct answer
func (q *Question) CorrectLetter() string {
	idx := q.CorrectIndex()
	if idx < 0 {
		return ""
	}
	return string(rune('A' + idx))
}

// IsCorrect reports whether a submitted answer matches the correct option.
// The answer may be the option letter or the option text.
func (q *Question) IsCorrect(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	if len(answer) == 1 {
		if idx := LetterIndex(answer); idx >= 0 {
			return q.Options[idx] == q.CorrectAnswer
		}
	}
	return strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))
}

// LetterIndex maps A-D (case-insensitive) to 0-3, or -1
func LetterIndex(letter string) int {
	if len(letter) != 1 {
		return -1
	}
	c := letter[0]
	if c >= 'a' && c <= 'd' {
		return int(c - 'a')
	}
	if c >= 'A' && c <= 'D' {
		return int(c - 'A')
	}
	return -1
}

// LevelFor computes the level for an experience total
func LevelFor(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/ExperiencePerLevel + 1
}
