package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"docquiz-service/internal/domain"
)

type errorBody struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind"`
	Field     string   `json:"field,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Produced  *int     `json:"produced,omitempty"`
	Requested *int     `json:"requested,omitempty"`
}

var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{domain.ErrInvalidDocument, "invalid_document", http.StatusBadRequest},
	{domain.ErrInvalidQuizRequest, "invalid_quiz_request", http.StatusBadRequest},
	{domain.ErrSubmissionValidation, "submission_validation", http.StatusBadRequest},
	{domain.ErrInvalidPagination, "invalid_pagination", http.StatusBadRequest},
	{domain.ErrDocumentNotFound, "document_not_found", http.StatusNotFound},
	{domain.ErrQuizNotFound, "quiz_not_found", http.StatusNotFound},
	{domain.ErrInsufficientQuestions, "insufficient_questions", http.StatusUnprocessableEntity},
	{domain.ErrGenerationTimeout, "generation_timeout", http.StatusGatewayTimeout},
	{domain.ErrGenerationService, "generation_service", http.StatusBadGateway},
	{domain.ErrGenerationMalformed, "generation_malformed", http.StatusBadGateway},
	{domain.ErrInvalidQuiz, "invalid_quiz", http.StatusInternalServerError},
}

// statusFor maps an error kind to its HTTP status and wire kind.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: kind}

	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		body.Field = fieldErr.Field
	}
	var notFound *domain.DocumentNotFoundError
	if errors.As(err, &notFound) {
		body.Missing = notFound.IDs
	}
	var short *domain.InsufficientQuestionsError
	if errors.As(err, &short) {
		body.Produced = &short.Produced
		body.Requested = &short.Requested
	}

	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "bad_request"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
