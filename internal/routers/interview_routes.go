package routers

import (
	"hirevoice/interview/internal/handlers"
	"hirevoice/interview/internal/middleware"
	"hirevoice/interview/internal/models"

	"github.com/go-chi/chi/v5"
)

// InterviewRoutes registers interview management. Everything except reading
// a published interview and starting a session requires a recruiter.
func InterviewRoutes(router *chi.Mux, interviewHandler *handlers.InterviewHandler, sessionHandler *handlers.SessionHandler) {
	router.Route("/api/v1/interviews", func(r chi.Router) {
		r.Get("/{interviewID}", interviewHandler.GetHandler)
		r.With(middleware.ValidateRequest[*models.StartSessionRequest]()).Post("/{interviewID}/sessions", sessionHandler.StartHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRecruiter)

			r.With(middleware.ValidateRequest[*models.CreateInterviewRequest]()).Post("/", interviewHandler.CreateHandler)
			r.With(middleware.ValidateRequest[*models.AddQuestionsRequest]()).Post("/{interviewID}/questions", interviewHandler.AddQuestionsHandler)
			r.With(middleware.ValidateRequest[*models.GenerateQuestionsRequest]()).Post("/{interviewID}/questions/generate", interviewHandler.GenerateQuestionsHandler)
			r.Delete("/{interviewID}/questions/{questionID}", interviewHandler.DeactivateQuestionHandler)
			r.Post("/{interviewID}/audio", interviewHandler.GenerateAudioHandler)
			r.Post("/{interviewID}/publish", interviewHandler.PublishHandler)
			r.Post("/{interviewID}/pause", interviewHandler.PauseHandler)
			r.Post("/{interviewID}/resume", interviewHandler.ResumeHandler)
			r.Post("/{interviewID}/close", interviewHandler.CloseHandler)
			r.Get("/{interviewID}/sessions", sessionHandler.ListByInterviewHandler)
		})
	})
}
