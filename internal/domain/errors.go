package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidDocument is returned when document text is empty or too large.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrDocumentNotFound is returned when referenced documents do not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrGenerationTimeout indicates the generator did not answer in time.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationService indicates the generator failed or is unavailable.
	ErrGenerationService = errors.New("generation service error")
	// ErrGenerationMalformed indicates generator output could not be parsed.
	ErrGenerationMalformed = errors.New("generation output malformed")
	// ErrInsufficientQuestions indicates too few valid questions were produced.
	ErrInsufficientQuestions = errors.New("insufficient questions")
	// ErrInvalidQuiz indicates a quiz that breaks its invariants (e.g. no questions).
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrInvalidQuizRequest indicates bad create-quiz parameters.
	ErrInvalidQuizRequest = errors.New("invalid quiz request")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSubmissionValidation indicates a malformed answer payload.
	ErrSubmissionValidation = errors.New("invalid submission")
	// ErrInvalidPagination indicates a non-positive page or limit.
	ErrInvalidPagination = errors.New("invalid pagination")
)

// DocumentNotFoundError lists every missing document id.
type DocumentNotFoundError struct {
	IDs []string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDocumentNotFound, strings.Join(e.IDs, ", "))
}

func (e *DocumentNotFoundError) Unwrap() error { return ErrDocumentNotFound }

// InsufficientQuestionsError reports how many valid questions were produced.
// Cause is the last generator error, if the final attempt failed outright.
type InsufficientQuestionsError struct {
	Produced  int
	Requested int
	Cause     error
}

func (e *InsufficientQuestionsError) Error() string {
	msg := fmt.Sprintf("%s: produced=%d, requested=%d", ErrInsufficientQuestions, e.Produced, e.Requested)
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *InsufficientQuestionsError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInsufficientQuestions}
	}
	return []error{ErrInsufficientQuestions, e.Cause}
}

// PaginationError carries the rejected page and limit.
type PaginationError struct {
	Page  int
	Limit int
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("%s: page=%d, limit=%d (both must be positive)", ErrInvalidPagination, e.Page, e.Limit)
}

func (e *PaginationError) Unwrap() error { return ErrInvalidPagination }

// FieldError describes an input error on a named field. Kind is one of the
// sentinel errors above.
type FieldError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Kind }

// ValidatePage checks page/limit and returns the zero-based offset.
func ValidatePage(page, limit int) (int, error) {
	if page < 1 || limit < 1 {
		return 0, &PaginationError{Page: page, Limit: limit}
	}
	if page-1 > math.MaxInt/limit {
		// Past any result set; callers treat it as an empty page.
		return math.MaxInt, nil
	}
	return (page - 1) * limit, nil
}

// PageWindow returns the [start, end) bounds of a page over n items. Both are
// n when offset lies past the end. It never overflows.
func PageWindow(offset, limit, n int) (int, int) {
	if offset < 0 || offset >= n {
		return n, n
	}
	if limit < 0 || limit >= n-offset {
		return offset, n
	}
	return offset, offset + limit
}
