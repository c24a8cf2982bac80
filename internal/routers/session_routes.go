package routers

import (
	"hirevoice/interview/internal/handlers"

	"github.com/go-chi/chi/v5"
)

func SessionRoutes(router *chi.Mux, sessionHandler *handlers.SessionHandler) {
	router.Route("/api/v1/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", sessionHandler.GetHandler)
		r.Get("/question", sessionHandler.CurrentQuestionHandler)
		r.Post("/answers", sessionHandler.SubmitAnswerHandler)
		r.Post("/advance", sessionHandler.AdvanceHandler)
		r.Post("/complete", sessionHandler.CompleteHandler)
		r.Post("/abandon", sessionHandler.AbandonHandler)
		r.Get("/results", sessionHandler.ResultsHandler)
	})
	router.Get("/api/v1/responses/{responseID}", sessionHandler.ResponseStatusHandler)
}
