package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when the config leaves the model name empty.
const DefaultModel = "gemini-2.0-flash"

// Config holds the knobs for the Gemini backend.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// contentModel is the slice of *genai.GenerativeModel the generator needs.
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Generator implements app.Generator on top of Google Gemini. It makes exactly
// one model call per Generate; retries belong to the quiz builder.
type Generator struct {
	client *genai.Client
	model  contentModel
}

func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	model := client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}
	return &Generator{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Generator) Generate(ctx context.Context, req app.GenerationRequest) (app.RawCandidate, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(BuildPrompt(req)))
	if err != nil {
		return app.RawCandidate{}, classify(ctx, err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return app.RawCandidate{}, fmt.Errorf("%w: empty response", domain.ErrGenerationMalformed)
	}
	return app.ParseCandidate(text)
}

// BuildPrompt renders the generation request into a single prompt.
func BuildPrompt(req app.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d %s quiz questions of %s difficulty about %q, based strictly on the documents below.\n",
		req.NumberOfQuestions, questionKind(req.QuestionType), req.Difficulty, req.Topic)

	b.WriteString("\nRules:\n")
	switch req.QuestionType {
	case domain.QuestionTypeTrueFalse:
		b.WriteString("- Each question is a statement with exactly two options: \"True\" and \"False\".\n")
		b.WriteString("- \"correct_answer\" is \"A\" for True or \"B\" for False.\n")
	default:
		b.WriteString("- Each question has exactly 4 options labelled A, B, C and D.\n")
		b.WriteString("- Exactly one option is correct; \"correct_answer\" is its letter.\n")
	}
	b.WriteString("- Do not repeat questions.\n")
	b.WriteString("- Respond with JSON only, in this shape:\n")
	b.WriteString(`{"questions":[{"question":"...","options":["...","..."],"correct_answer":"A"}]}`)
	b.WriteString("\n")

	if req.CustomInstructions != "" {
		fmt.Fprintf(&b, "\nAdditional instructions: %s\n", req.CustomInstructions)
	}
	if req.StrictInstruction != "" {
		fmt.Fprintf(&b, "\nIMPORTANT: %s\n", req.StrictInstruction)
	}

	for i, text := range req.SourceTexts {
		fmt.Fprintf(&b, "\n--- Document %d ---\n%s\n", i+1, text)
	}
	return b.String()
}

func questionKind(t domain.QuestionType) string {
	if t == domain.QuestionTypeTrueFalse {
		return "true/false"
	}
	return "multiple-choice"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// classify maps a model call failure onto the generation error kinds.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrGenerationTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", domain.ErrGenerationMalformed, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrGenerationService, err)
}
