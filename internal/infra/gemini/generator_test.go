package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	text   string
	err    error
	prompt string
}

func (m *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if text, ok := parts[0].(genai.Text); ok {
			m.prompt = string(text)
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(m.text)}},
		}},
	}, nil
}

func TestGenerateParsesModelOutput(t *testing.T) {
	model := &fakeModel{text: "```json\n" + `{"questions":[{"question":"Sky colour?","options":["Blue","Red","Green","Pink"],"correct_answer":"A"}]}` + "\n```"}
	g := &Generator{model: model}

	candidate, err := g.Generate(context.Background(), app.GenerationRequest{
		Topic:             "weather",
		Difficulty:        domain.DifficultyEasy,
		NumberOfQuestions: 1,
		QuestionType:      domain.QuestionTypeMCQ,
		SourceTexts:       []string{"The sky is blue."},
	})
	require.NoError(t, err)
	require.Len(t, candidate.Questions, 1)
	require.Equal(t, "Sky colour?", candidate.Questions[0].Prompt)
	require.Equal(t, "A", candidate.Questions[0].Answer)
	require.Contains(t, model.prompt, "The sky is blue.")
}

func TestGenerateMapsErrors(t *testing.T) {
	g := &Generator{model: &fakeModel{err: errors.New("503 unavailable")}}
	_, err := g.Generate(context.Background(), app.GenerationRequest{NumberOfQuestions: 1})
	require.ErrorIs(t, err, domain.ErrGenerationService)

	g = &Generator{model: &fakeModel{err: context.DeadlineExceeded}}
	_, err = g.Generate(context.Background(), app.GenerationRequest{NumberOfQuestions: 1})
	require.ErrorIs(t, err, domain.ErrGenerationTimeout)

	g = &Generator{model: &fakeModel{text: "sorry, I cannot help with that"}}
	_, err = g.Generate(context.Background(), app.GenerationRequest{NumberOfQuestions: 1})
	require.ErrorIs(t, err, domain.ErrGenerationMalformed)

	g = &Generator{model: &fakeModel{text: "   "}}
	_, err = g.Generate(context.Background(), app.GenerationRequest{NumberOfQuestions: 1})
	require.ErrorIs(t, err, domain.ErrGenerationMalformed)
}

func TestBuildPromptCarriesInstructions(t *testing.T) {
	prompt := BuildPrompt(app.GenerationRequest{
		Topic:              "cells",
		Difficulty:         domain.DifficultyHard,
		NumberOfQuestions:  3,
		QuestionType:       domain.QuestionTypeTrueFalse,
		CustomInstructions: "focus on mitosis",
		StrictInstruction:  "return exactly 3 questions",
		SourceTexts:        []string{"doc one", "doc two"},
	})

	require.Contains(t, prompt, "3 true/false quiz questions of hard difficulty")
	require.Contains(t, prompt, `"True" and "False"`)
	require.Contains(t, prompt, "focus on mitosis")
	require.Contains(t, prompt, "IMPORTANT: return exactly 3 questions")
	require.Less(t, strings.Index(prompt, "doc one"), strings.Index(prompt, "doc two"))
}
