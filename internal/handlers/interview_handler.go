package handlers

import (
	"context"
	"net/http"
	"strconv"

	"hirevoice/interview/internal/interviews"
	"hirevoice/interview/internal/middleware"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InterviewService is the recruiter-facing interview management surface.
type InterviewService interface {
	Create(ctx context.Context, viewer models.Viewer, req models.CreateInterviewRequest) (*models.Interview, error)
	Get(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error)
	AddQuestions(ctx context.Context, id string, viewer models.Viewer, req models.AddQuestionsRequest) ([]models.InterviewQuestion, error)
	GenerateQuestions(ctx context.Context, id string, viewer models.Viewer, req models.GenerateQuestionsRequest) ([]models.InterviewQuestion, error)
	GenerateAudio(ctx context.Context, id string, viewer models.Viewer, force bool) (*interviews.AudioReport, error)
	Publish(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error)
	Pause(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error)
	Resume(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error)
	Close(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error)
	DeactivateQuestion(ctx context.Context, id, questionID string, viewer models.Viewer) error
}

type InterviewHandler struct {
	service InterviewService
	logger  *zap.Logger
}

func NewInterviewHandler(service InterviewService, logger *zap.Logger) *InterviewHandler {
	return &InterviewHandler{
		service: service,
		logger:  utils.OrNop(logger),
	}
}

func (h *InterviewHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.CreateInterviewRequest](r)

	interview, err := h.service.Create(r.Context(), middleware.ViewerFrom(r.Context()), *req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Interview created",
		zap.String("interviewID", interview.ID),
		zap.String("recruiterID", interview.RecruiterID))
	utils.JSON(w, http.StatusCreated, interview)
}

func (h *InterviewHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	interview, err := h.service.Get(r.Context(), chi.URLParam(r, "interviewID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, interview)
}

func (h *InterviewHandler) AddQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.AddQuestionsRequest](r)

	questions, err := h.service.AddQuestions(r.Context(), chi.URLParam(r, "interviewID"), middleware.ViewerFrom(r.Context()), *req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, questions)
}

func (h *InterviewHandler) GenerateQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.GenerateQuestionsRequest](r)
	interviewID := chi.URLParam(r, "interviewID")

	questions, err := h.service.GenerateQuestions(r.Context(), interviewID, middleware.ViewerFrom(r.Context()), *req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Questions generated",
		zap.String("interviewID", interviewID),
		zap.Int("count", len(questions)))
	utils.JSON(w, http.StatusCreated, questions)
}

func (h *InterviewHandler) DeactivateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeactivateQuestion(r.Context(),
		chi.URLParam(r, "interviewID"),
		chi.URLParam(r, "questionID"),
		middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InterviewHandler) GenerateAudioHandler(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
				Code:    "invalid_force",
				Message: "force must be a boolean",
			})
			return
		}
		force = parsed
	}

	report, err := h.service.GenerateAudio(r.Context(), chi.URLParam(r, "interviewID"), middleware.ViewerFrom(r.Context()), force)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, report)
}

func (h *InterviewHandler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Publish)
}

func (h *InterviewHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Pause)
}

func (h *InterviewHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Resume)
}

func (h *InterviewHandler) CloseHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Close)
}

type statusChange func(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error)

func (h *InterviewHandler) transition(w http.ResponseWriter, r *http.Request, change statusChange) {
	interview, err := change(r.Context(), chi.URLParam(r, "interviewID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Interview status changed",
		zap.String("interviewID", interview.ID),
		zap.String("status", string(interview.Status)))
	utils.JSON(w, http.StatusOK, interview)
}

func (h *InterviewHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.logger, r, err)
	utils.Error(w, err)
}
