package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"docquiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultStrictInstruction is appended to the retry prompt when the first
// attempt returned malformed or short output.
const DefaultStrictInstruction = "Return ONLY a JSON array with exactly the requested number of questions. " +
	"Every question must have a non-empty \"question\", an \"options\" array with distinct entries, " +
	"and a \"correct_answer\" that is the letter of one of the options. No prose, no markdown."

// BuilderConfig tunes quiz generation.
type BuilderConfig struct {
	// MaxContextBytes bounds the source text sent to the generator; 0 means unbounded.
	MaxContextBytes int
	// AttemptTimeout bounds each generator call.
	AttemptTimeout    time.Duration
	StrictInstruction string
	MaxQuestions      int
}

// CreateQuizParams are the caller-supplied quiz parameters.
type CreateQuizParams struct {
	Name               string              `json:"name" validate:"required,max=200"`
	Difficulty         domain.Difficulty   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Topic              string              `json:"topic" validate:"required,max=200"`
	FileIDs            []string            `json:"file_ids" validate:"required,min=1,dive,required"`
	NumberOfQuestions  int                 `json:"number_of_questions" validate:"required,min=1"`
	QuestionType       domain.QuestionType `json:"question_type" validate:"required,oneof=mcq true_false"`
	CustomInstructions string              `json:"custom_instructions" validate:"max=4000"`
}

// QuizBuilder turns documents into a persisted quiz.
type QuizBuilder struct {
	documents *DocumentIndex
	generator Generator
	quizzes   QuizStore
	cfg       BuilderConfig
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

func NewQuizBuilder(documents *DocumentIndex, generator Generator, quizzes QuizStore, cfg BuilderConfig) *QuizBuilder {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	if cfg.StrictInstruction == "" {
		cfg.StrictInstruction = DefaultStrictInstruction
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 50
	}
	return &QuizBuilder{
		documents: documents,
		generator: generator,
		quizzes:   quizzes,
		cfg:       cfg,
		validate:  validator.New(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateQuiz runs the full pipeline. On any error nothing is persisted.
func (b *QuizBuilder) CreateQuiz(ctx context.Context, p CreateQuizParams) (domain.Quiz, error) {
	p.QuestionType = canonicalQuestionType(p.QuestionType)
	p.Difficulty = domain.Difficulty(strings.ToLower(strings.TrimSpace(string(p.Difficulty))))
	if err := b.validateParams(p); err != nil {
		return domain.Quiz{}, err
	}

	fileIDs := dedupe(p.FileIDs)
	if len(fileIDs) == 0 {
		return domain.Quiz{}, &domain.FieldError{Kind: domain.ErrInvalidQuizRequest, Field: "FileIDs", Reason: "at least one file id is required"}
	}
	docs, err := b.documents.Fetch(ctx, fileIDs)
	if err != nil {
		return domain.Quiz{}, err
	}

	req := GenerationRequest{
		Topic:              p.Topic,
		Difficulty:         p.Difficulty,
		SourceTexts:        BuildSourceTexts(fileIDs, docs, b.cfg.MaxContextBytes),
		NumberOfQuestions:  p.NumberOfQuestions,
		QuestionType:       p.QuestionType,
		CustomInstructions: p.CustomInstructions,
	}
	questions, err := b.generate(ctx, req)
	if err != nil {
		return domain.Quiz{}, err
	}

	quiz := domain.Quiz{
		ID:                 b.newID(),
		Name:               strings.TrimSpace(p.Name),
		Difficulty:         p.Difficulty,
		Topic:              strings.TrimSpace(p.Topic),
		QuestionType:       p.QuestionType,
		CustomInstructions: p.CustomInstructions,
		Questions:          questions,
		SourceDocumentIDs:  fileIDs,
		CreatedAt:          b.now().UTC(),
	}
	if err := b.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("persist quiz: %w", err)
	}
	log.Printf("quiz %s created: %d questions from %d documents", quiz.ID, len(quiz.Questions), len(fileIDs))
	return quiz, nil
}

type attemptState int

const (
	firstAttempt attemptState = iota
	retried
)

// generate runs at most two generator attempts. A transient failure on the
// first attempt is retried with the same request; malformed or short output is
// retried with the strict instruction. Every failure of the retry is terminal.
func (b *QuizBuilder) generate(ctx context.Context, req GenerationRequest) ([]domain.Question, error) {
	state := firstAttempt
	best := 0
	for {
		candidate, err := b.attempt(ctx, req)
		if err == nil {
			questions, produced := NormalizeCandidate(candidate, req.QuestionType, req.NumberOfQuestions)
			if produced > best {
				best = produced
			}
			if produced >= req.NumberOfQuestions {
				return questions, nil
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		transient := errors.Is(err, domain.ErrGenerationTimeout) || errors.Is(err, domain.ErrGenerationService)
		malformed := errors.Is(err, domain.ErrGenerationMalformed)
		if err != nil && !transient && !malformed {
			return nil, err
		}

		if state == retried {
			if transient {
				return nil, err
			}
			return nil, &domain.InsufficientQuestionsError{Produced: best, Requested: req.NumberOfQuestions, Cause: err}
		}

		state = retried
		if transient {
			log.Printf("generation attempt failed, retrying: %v", err)
			continue
		}
		if err != nil {
			log.Printf("generation output malformed, retrying with strict instruction: %v", err)
		} else {
			log.Printf("generation produced %d/%d valid questions, retrying with strict instruction", best, req.NumberOfQuestions)
		}
		req.StrictInstruction = b.cfg.StrictInstruction
	}
}

func (b *QuizBuilder) attempt(ctx context.Context, req GenerationRequest) (RawCandidate, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.AttemptTimeout)
	defer cancel()

	candidate, err := b.generator.Generate(attemptCtx, req)
	if err == nil {
		return candidate, nil
	}
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrGenerationTimeout) {
		return RawCandidate{}, fmt.Errorf("%w after %s: %v", domain.ErrGenerationTimeout, b.cfg.AttemptTimeout, err)
	}
	return RawCandidate{}, err
}

func (b *QuizBuilder) validateParams(p CreateQuizParams) error {
	if err := b.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.FieldError{Kind: domain.ErrInvalidQuizRequest, Field: fe.Field(), Reason: "failed " + fe.Tag() + " " + fe.Param()}
		}
		return &domain.FieldError{Kind: domain.ErrInvalidQuizRequest, Reason: err.Error()}
	}
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Topic) == "" {
		return &domain.FieldError{Kind: domain.ErrInvalidQuizRequest, Field: "Name", Reason: "name and topic must not be blank"}
	}
	if p.NumberOfQuestions > b.cfg.MaxQuestions {
		return &domain.FieldError{
			Kind:   domain.ErrInvalidQuizRequest,
			Field:  "NumberOfQuestions",
			Reason: fmt.Sprintf("at most %d questions per quiz", b.cfg.MaxQuestions),
		}
	}
	return nil
}

// BuildSourceTexts orders document texts by file id priority and trims from the
// lowest-priority end until the total fits maxBytes (0 disables the bound).
func BuildSourceTexts(fileIDs []string, docs map[string]domain.Document, maxBytes int) []string {
	texts := make([]string, 0, len(fileIDs))
	total := 0
	for _, id := range fileIDs {
		text := docs[id].Text
		texts = append(texts, text)
		total += len(text)
	}
	if maxBytes <= 0 || total <= maxBytes {
		return texts
	}
	for i := len(texts) - 1; i >= 0 && total > maxBytes; i-- {
		excess := total - maxBytes
		if len(texts[i]) <= excess {
			total -= len(texts[i])
			texts = texts[:i]
			continue
		}
		cut := len(texts[i]) - excess
		for cut > 0 && !utf8.RuneStart(texts[i][cut]) {
			cut--
		}
		total -= len(texts[i]) - cut
		texts[i] = texts[i][:cut]
	}
	return texts
}

func canonicalQuestionType(t domain.QuestionType) domain.QuestionType {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "true/false", "truefalse", "true-false", "tf":
		return domain.QuestionTypeTrueFalse
	case "multiple_choice", "multiple-choice":
		return domain.QuestionTypeMCQ
	default:
		return domain.QuestionType(strings.ToLower(strings.TrimSpace(string(t))))
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
