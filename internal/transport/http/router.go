package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the REST API, the health check and the live analytics feed.
func NewRouter(h *Handler, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", h.StoreDocument)
		r.Get("/documents/{id}", h.GetDocument)
		r.Post("/files/upload", h.UploadDocument)
		r.Get("/files/search", h.SearchDocuments)

		r.Post("/quiz/create", h.CreateQuiz)
		r.Get("/quiz/get/{id}", h.GetQuiz)
		r.Get("/quiz/get-all", h.ListQuizzes)
		r.Post("/quiz/{id}/submit", h.SubmitQuiz)
		r.Get("/quizzes/{id}/results", h.QuizResults)

		r.Get("/analytics/quiz/{id}", h.QuizAnalytics)
		r.Get("/analytics/user/{id}", h.UserAnalytics)
	})
	return r
}
