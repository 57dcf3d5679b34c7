package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func newTestRouter(t *testing.T, gen app.Generator) (http.Handler, testStores) {
	service, stores := newTestService(t, gen)
	return NewRouter(NewHandler(service, 0), NewWSHandler(service)), stores
}

func fourQuestions() app.RawCandidate {
	var c app.RawCandidate
	for i := 1; i <= 4; i++ {
		c.Questions = append(c.Questions, app.RawQuestion{
			Prompt:      fmt.Sprintf("Question %d?", i),
			Options:     []app.RawOption{{Text: "alpha"}, {Text: "beta"}, {Text: "gamma"}, {Text: "delta"}},
			Answer:      "A",
			AnswerIndex: -1,
		})
	}
	return c
}

func TestDocumentLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, &stubGenerator{})

	rec := doJSON(t, router, http.MethodPost, "/api/documents", map[string]any{
		"text":     "Photosynthesis converts light into chemical energy.",
		"metadata": map[string]string{"name": "bio.txt", "file_type": "txt"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[storeDocumentResponse](t, rec)
	require.Equal(t, "file001", created.ID)

	rec = doJSON(t, router, http.MethodGet, "/api/documents/file001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[domain.Document](t, rec)
	require.Contains(t, doc.Text, "Photosynthesis")

	rec = doJSON(t, router, http.MethodGet, "/api/files/search?q=photosynthesis&page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[pageResponse[domain.DocumentSummary]](t, rec)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "file001", page.Items[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/documents/file404", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "document_not_found", body.Kind)
	require.Equal(t, []string{"file404"}, body.Missing)
}

func TestStoreDocumentRejectsBlankText(t *testing.T) {
	router, _ := newTestRouter(t, &stubGenerator{})
	rec := doJSON(t, router, http.MethodPost, "/api/documents", map[string]any{"text": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_document", decode[errorBody](t, rec).Kind)
}

func TestUploadPlainText(t *testing.T) {
	router, stores := newTestRouter(t, &stubGenerator{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("Mitochondria are the powerhouse of the cell."))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	docs, err := stores.documents.GetDocuments(req.Context(), []string{"file001"})
	require.NoError(t, err)
	require.Equal(t, "notes.txt", docs["file001"].Metadata[domain.MetaName])
	require.Equal(t, "txt", docs["file001"].Metadata[domain.MetaFileType])
}

func TestSearchRejectsBadPagination(t *testing.T) {
	router, _ := newTestRouter(t, &stubGenerator{})

	rec := doJSON(t, router, http.MethodGet, "/api/files/search?q=x&page=0", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_pagination", decode[errorBody](t, rec).Kind)

	rec = doJSON(t, router, http.MethodGet, "/api/files/search?q=x&limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHugePageIsEmpty(t *testing.T) {
	router, _ := newTestRouter(t, &stubGenerator{})
	rec := doJSON(t, router, http.MethodPost, "/api/documents", map[string]any{"text": "x marks the spot"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/files/search?q=x&page=4611686018427387904&limit=4", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[pageResponse[domain.DocumentSummary]](t, rec)
	require.Empty(t, page.Items)
	require.Equal(t, 1, page.Total)
}

func TestCreateSubmitAndAnalyze(t *testing.T) {
	router, _ := newTestRouter(t, &stubGenerator{candidate: fourQuestions()})

	rec := doJSON(t, router, http.MethodPost, "/api/documents", map[string]any{"text": "Greek letters alpha beta gamma delta."})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/quiz/create", map[string]any{
		"name":                "Greek",
		"difficulty":          "easy",
		"topic":               "letters",
		"file_ids":            []string{"file001"},
		"number_of_questions": 4,
		"question_type":       "mcq",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	quiz := decode[domain.PublicQuiz](t, rec)
	require.Len(t, quiz.Questions, 4)
	require.NotContains(t, rec.Body.String(), "correctOptionIndex")

	rec = doJSON(t, router, http.MethodGet, "/api/quiz/get/"+quiz.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "correctOptionIndex")

	rec = doJSON(t, router, http.MethodPost, "/api/quiz/"+quiz.ID+"/submit", map[string]any{
		"user_id": "alice",
		"answers": []map[string]string{
			{"question_id": "q1", "selected_option": "A"},
			{"question_id": "q2", "selected_option": "alpha"},
			{"question_id": "q3", "selected_option": "B"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submission := decode[domain.Submission](t, rec)
	require.Equal(t, 2, submission.Score)
	require.Equal(t, 4, submission.TotalQuestions)
	require.Equal(t, 50.0, submission.Percentage)

	rec = doJSON(t, router, http.MethodGet, "/api/quizzes/"+quiz.ID+"/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[pageResponse[domain.Submission]](t, rec)
	require.Equal(t, 1, results.Total)

	today := time.Now().UTC().Format(dateLayout)
	rec = doJSON(t, router, http.MethodGet, "/api/analytics/quiz/"+quiz.ID+"?start_date="+today+"&end_date="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	analytics := decode[domain.QuizAnalytics](t, rec)
	require.Equal(t, 1, analytics.SubmissionCount)
	require.Equal(t, 50.0, analytics.AveragePercentage)

	rec = doJSON(t, router, http.MethodGet, "/api/analytics/quiz/"+quiz.ID+"?start_date=2001-01-01&end_date=2001-01-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, decode[domain.QuizAnalytics](t, rec).SubmissionCount)

	rec = doJSON(t, router, http.MethodGet, "/api/analytics/user/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[domain.UserAnalytics](t, rec)
	require.Equal(t, 1, user.QuizzesTaken)

	rec = doJSON(t, router, http.MethodGet, "/api/quiz/get-all?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[pageResponse[domain.PublicQuiz]](t, rec)
	require.Equal(t, 1, list.Total)
	require.Empty(t, list.Items[0].Questions)
}

func TestCreateQuizErrorStatuses(t *testing.T) {
	router, stores := newTestRouter(t, &stubGenerator{err: fmt.Errorf("%w: upstream 503", domain.ErrGenerationService)})
	rec := doJSON(t, router, http.MethodPost, "/api/documents", map[string]any{"text": "some text"})
	require.Equal(t, http.StatusCreated, rec.Code)

	params := map[string]any{
		"name":                "Quiz",
		"difficulty":          "medium",
		"topic":               "things",
		"file_ids":            []string{"file001"},
		"number_of_questions": 2,
		"question_type":       "mcq",
	}
	rec = doJSON(t, router, http.MethodPost, "/api/quiz/create", params)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "generation_service", decode[errorBody](t, rec).Kind)

	params["file_ids"] = []string{"file001", "file999"}
	rec = doJSON(t, router, http.MethodPost, "/api/quiz/create", params)
	require.Equal(t, http.StatusNotFound, rec.Code)

	params["difficulty"] = "impossible"
	rec = doJSON(t, router, http.MethodPost, "/api/quiz/create", params)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_quiz_request", decode[errorBody](t, rec).Kind)

	require.Zero(t, stores.quizzes.Len())
}

func TestSubmitValidation(t *testing.T) {
	router, stores := newTestRouter(t, &stubGenerator{})
	seedQuiz(t, stores)

	rec := doJSON(t, router, http.MethodPost, "/api/quiz/quiz-1/submit", map[string]any{"answers": []any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "submission_validation", decode[errorBody](t, rec).Kind)

	rec = doJSON(t, router, http.MethodPost, "/api/quiz/nope/submit", map[string]any{"user_id": "u"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/quiz/quiz-1/submit", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseDateRangeCoversWholeEndDay(t *testing.T) {
	dr, err := parseDateRange("2024-05-01", "2024-05-02")
	require.NoError(t, err)
	require.True(t, dr.Contains(time.Date(2024, 5, 2, 23, 59, 59, 0, time.UTC)))
	require.False(t, dr.Contains(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)))

	_, err = parseDateRange("05/01/2024", "")
	require.Error(t, err)
	_, err = parseDateRange("2024-05-03", "2024-05-01")
	require.Error(t, err)
}

func TestStatusForMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrGenerationTimeout, http.StatusGatewayTimeout},
		{&domain.InsufficientQuestionsError{Produced: 1, Requested: 3, Cause: domain.ErrGenerationMalformed}, http.StatusUnprocessableEntity},
		{&domain.PaginationError{Page: 0, Limit: 1}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrQuizNotFound), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		require.Equal(t, tc.want, got, tc.err.Error())
	}
}
