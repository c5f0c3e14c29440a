package quiz

import (
	_ "embed"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"sync"

	"quizgate/internal/core"
	"quizgate/internal/idgen"

	"gopkg.in/yaml.v3"
)

//go:embed bank/default.yaml
var defaultBank []byte

// bankFile is the YAML layout of a question bank
type bankFile struct {
	Questions []bankEntry `yaml:"questions"`
}

type bankEntry struct {
	Topic      string   `yaml:"topic"`
	Difficulty string   `yaml:"difficulty"`
	Question   string   `yaml:"question"`
	Options    []string `yaml:"options"`
	Answer     string   `yaml:"answer"` // letter A-D or the option text
}

// ParseBank decodes a YAML bank. Entries that are not valid questions are
// skipped and logged; skipped reports how many.
func ParseBank(data []byte, logger *slog.Logger) (questions []*core.Question, skipped int, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, 0, fmt.Errorf("failed to decode question bank: %w", err)
	}

	for i, entry := range file.Questions {
		q, err := entry.toQuestion()
		if err != nil {
			skipped++
			logger.Warn("skipping malformed bank entry",
				"index", i,
				"topic", entry.Topic,
				"question", entry.Question,
				"error", err,
			)
			continue
		}
		questions = append(questions, q)
	}

	return questions, skipped, nil
}

// LoadBankFile reads and parses a bank file from disk
func LoadBankFile(path string, logger *slog.Logger) ([]*core.Question, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read question bank: %w", err)
	}
	return ParseBank(data, logger)
}

// DefaultQuestions returns the built-in bank
func DefaultQuestions(logger *slog.Logger) ([]*core.Question, error) {
	questions, _, err := ParseBank(defaultBank, logger)
	return questions, err
}

func (e bankEntry) toQuestion() (*core.Question, error) {
	if len(e.Options) != 4 {
		return nil, fmt.Errorf("expected 4 options, got %d", len(e.Options))
	}

	topic := strings.ToLower(strings.TrimSpace(e.Topic))
	if topic == "" {
		topic = core.TopicGeneral
	}

	difficulty := core.DifficultyMedium
	if strings.TrimSpace(e.Difficulty) != "" {
		d, err := core.ParseDifficulty(e.Difficulty)
		if err != nil {
			return nil, err
		}
		difficulty = d
	}

	q := &core.Question{
		Text:       strings.TrimSpace(e.Question),
		Topic:      topic,
		Difficulty: difficulty,
		Source:     core.SourceLocal,
	}
	for i, opt := range e.Options {
		q.Options[i] = strings.TrimSpace(opt)
	}

	answer := strings.TrimSpace(e.Answer)
	if idx := core.LetterIndex(answer); idx >= 0 {
		q.CorrectAnswer = q.Options[idx]
	} else {
		q.CorrectAnswer = answer
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.ID = idgen.LocalQuestion(q.Topic, q.Text)
	return q, nil
}

// Bank is the in-memory local question bank. It is safe for concurrent use
// and can be replaced wholesale on reload.
type Bank struct {
	mu      sync.RWMutex
	byTopic map[string][]*core.Question
	size    int
}

// NewBank creates a bank holding questions
func NewBank(questions []*core.Question) *Bank {
	b := &Bank{}
	b.Replace(questions)
	return b
}

// Replace swaps the bank contents
func (b *Bank) Replace(questions []*core.Question) {
	byTopic := make(map[string][]*core.Question)
	for _, q := range questions {
		byTopic[q.Topic] = append(byTopic[q.Topic], q)
	}

	b.mu.Lock()
	b.byTopic = byTopic
	b.size = len(questions)
	b.mu.Unlock()
}

// Len returns the number of questions in the bank
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Topics returns the sorted list of topics present in the bank
func (b *Bank) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.byTopic))
	for t := range b.byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Questions returns a snapshot of every question in the bank
func (b *Bank) Questions() []*core.Question {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*core.Question, 0, b.size)
	for _, qs := range b.byTopic {
		out = append(out, qs...)
	}
	return out
}

// Select picks a random question for topic and difficulty. It relaxes the
// difficulty first, then falls back to the general category.
func (b *Bank) Select(topic string, difficulty core.Difficulty) (*core.Question, error) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		topic = core.TopicGeneral
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	candidates := b.byTopic[topic]

	var matching []*core.Question
	for _, q := range candidates {
		if q.Difficulty == difficulty {
			matching = append(matching, q)
		}
	}
	if len(matching) == 0 {
		matching = candidates
	}
	if len(matching) == 0 {
		matching = b.byTopic[core.TopicGeneral]
	}
	if len(matching) == 0 {
		return nil, fmt.Errorf("%w: topic %q", core.ErrNoQuestions, topic)
	}

	picked := *matching[rand.IntN(len(matching))]
	return &picked, nil
}
