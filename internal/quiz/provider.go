package quiz

import (
	"context"
	"log/slog"
	"time"

	"quizgate/internal/core"
	"quizgate/internal/idgen"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a remote generation call
const DefaultTimeout = 10 * time.Second

// Generator produces free text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// QuestionStore persists generated questions
type QuestionStore interface {
	SaveQuestion(ctx context.Context, q *core.Question) error
}

// Provider implements core.QuestionProvider. With a generator configured it
// asks the generator first and falls back to the bank on any failure;
// without one it serves the bank directly.
type Provider struct {
	bank      *Bank
	generator Generator
	store     QuestionStore
	timeout   time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewProvider creates a question provider. generator and store may be nil.
func NewProvider(bank *Bank, generator Generator, store QuestionStore, timeout time.Duration, logger *slog.Logger) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		bank:      bank,
		generator: generator,
		store:     store,
		timeout:   timeout,
		logger:    logger.With("component", "question-provider"),
		tracer:    otel.Tracer("quizgate/quiz"),
	}
}

// GetQuestion returns a question for topic and difficulty. Remote failures
// never surface; the only error is core.ErrNoQuestions from the bank.
func (p *Provider) GetQuestion(ctx context.Context, topic string, difficulty core.Difficulty) (*core.Question, error) {
	ctx, span := p.tracer.Start(ctx, "quiz.GetQuestion", trace.WithAttributes(
		attribute.String("quiz.topic", topic),
		attribute.String("quiz.difficulty", string(difficulty)),
	))
	defer span.End()

	if p.generator != nil {
		q, err := p.generate(ctx, topic, difficulty)
		if err == nil {
			span.SetAttributes(attribute.String("quiz.source", string(core.SourceGenerated)))
			return q, nil
		}
		span.RecordError(err)
		p.logger.Warn("question generation failed, using local bank",
			"topic", topic,
			"difficulty", difficulty,
			"error", err,
		)
	}

	q, err := p.bank.Select(topic, difficulty)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("quiz.source", string(core.SourceLocal)))
	return q, nil
}

func (p *Provider) generate(ctx context.Context, topic string, difficulty core.Difficulty) (*core.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.generator.Generate(ctx, BuildPrompt(topic, difficulty))
	if err != nil {
		return nil, err
	}

	q, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}

	if topic == "" {
		topic = core.TopicGeneral
	}
	q.ID = idgen.NewQuestion()
	q.Topic = topic
	q.Difficulty = difficulty
	q.Source = core.SourceGenerated
	q.Model = p.generator.Model()
	q.CreatedAt = time.Now()

	if p.store != nil {
		// Persistence is for reuse and audit; the user still gets the question
		if err := p.store.SaveQuestion(ctx, q); err != nil {
			p.logger.Error("failed to persist generated question", "question_id", q.ID, "error", err)
		}
	}

	return q, nil
}

// Ensure Provider implements core.QuestionProvider
var _ core.QuestionProvider = (*Provider)(nil)
