package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	dateLayout   = "2006-01-02"
)

// Handler exposes the quiz service as REST endpoints.
type Handler struct {
	service        *app.QuizService
	validate       *validator.Validate
	maxUploadBytes int64
}

func NewHandler(service *app.QuizService, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = app.DefaultMaxDocumentBytes
	}
	return &Handler{
		service:        service,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

type storeDocumentRequest struct {
	Text     string            `json:"text" validate:"required"`
	Metadata map[string]string `json:"metadata"`
}

type storeDocumentResponse struct {
	ID string `json:"id"`
}

type answerRequest struct {
	QuestionID     string `json:"question_id"`
	SelectedOption string `json:"selected_option"`
}

type submitRequest struct {
	UserID  string          `json:"user_id" validate:"required"`
	Answers []answerRequest `json:"answers"`
}

type pageResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPageResponse[T any](p domain.Page[T]) pageResponse[T] {
	return pageResponse[T]{Items: p.Items, Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages()}
}

func (h *Handler) StoreDocument(w http.ResponseWriter, r *http.Request) {
	var req storeDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, validationError(domain.ErrInvalidDocument, err))
		return
	}
	id, err := h.service.StoreDocument(r.Context(), req.Text, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, storeDocumentResponse{ID: id})
}

// UploadDocument accepts a multipart "file" field holding plain text.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	contentType := header.Header.Get("Content-Type")
	if ext != "txt" && !strings.HasPrefix(contentType, "text/plain") {
		writeError(w, &domain.FieldError{Kind: domain.ErrInvalidDocument, Field: "file", Reason: "only text/plain uploads are supported"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		badRequest(w, "read upload: "+err.Error())
		return
	}

	id, err := h.service.StoreDocument(r.Context(), string(data), map[string]string{
		domain.MetaName:     header.Filename,
		domain.MetaFileType: "txt",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, storeDocumentResponse{ID: id})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var fileTypes []string
	if raw := q.Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				fileTypes = append(fileTypes, t)
			}
		}
	}
	sortOrder := q.Get("sort")
	if sortOrder == "" {
		sortOrder = app.SortRelevance
	}

	result, err := h.service.SearchDocuments(r.Context(), app.SearchQuery{
		Query:     q.Get("q"),
		Page:      page,
		Limit:     limit,
		Sort:      sortOrder,
		FileTypes: fileTypes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(result))
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var params app.CreateQuizParams
	if err := decodeJSON(r, &params); err != nil {
		badRequest(w, err.Error())
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz.Public())
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}
	result, err := h.service.ListQuizzes(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(result))
}

func (h *Handler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, validationError(domain.ErrSubmissionValidation, err))
		return
	}
	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.Answer{QuestionID: a.QuestionID, SelectedOption: a.SelectedOption})
	}

	submission, err := h.service.SubmitQuiz(r.Context(), chi.URLParam(r, "id"), req.UserID, answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submission)
}

func (h *Handler) QuizResults(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}
	result, err := h.service.ListSubmissions(r.Context(), domain.AnalyticsQuery{
		QuizID: chi.URLParam(r, "id"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(result))
}

func (h *Handler) QuizAnalytics(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	result, err := h.service.QuizAnalytics(r.Context(), chi.URLParam(r, "id"), dr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) UserAnalytics(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.UserAnalytics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

func validationError(kind error, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &domain.FieldError{Kind: kind, Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag()}
	}
	return &domain.FieldError{Kind: kind, Reason: err.Error()}
}

// pagination reads page and limit, writing a 400 when either is not an integer.
// Range checks belong to the service.
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := queryInt(r, "page", defaultPage)
	if err != nil {
		writeError(w, &domain.FieldError{Kind: domain.ErrInvalidPagination, Field: "page", Reason: err.Error()})
		return 0, 0, false
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, &domain.FieldError{Kind: domain.ErrInvalidPagination, Field: "limit", Reason: err.Error()})
		return 0, 0, false
	}
	return page, limit, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// parseDateRange reads YYYY-MM-DD bounds; the end date covers its whole day.
func parseDateRange(start, end string) (domain.DateRange, error) {
	var dr domain.DateRange
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return dr, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
		dr.Start = t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return dr, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		dr.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !dr.Start.IsZero() && !dr.End.IsZero() && dr.End.Before(dr.Start) {
		return dr, fmt.Errorf("end_date is before start_date")
	}
	return dr, nil
}
