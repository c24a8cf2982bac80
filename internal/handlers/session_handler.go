package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hirevoice/interview/internal/apperr"
	"hirevoice/interview/internal/middleware"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/session"
	"hirevoice/interview/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxAnswerBytes caps an uploaded answer recording.
const DefaultMaxAnswerBytes int64 = 25 << 20

// SessionService is the candidate-facing session surface.
type SessionService interface {
	Start(ctx context.Context, interviewID string, viewer models.Viewer, req models.StartSessionRequest) (*models.StartSessionResponse, error)
	Get(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, error)
	CurrentQuestion(ctx context.Context, sessionID string, viewer models.Viewer) (*models.QuestionView, error)
	SubmitAnswer(ctx context.Context, sessionID string, viewer models.Viewer, answer session.Answer) (*models.InterviewResponse, error)
	ResponseStatus(ctx context.Context, responseID string, viewer models.Viewer) (*models.InterviewResponse, error)
	Advance(ctx context.Context, sessionID string, viewer models.Viewer) (*models.QuestionView, error)
	Complete(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, error)
	Abandon(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, error)
	Results(ctx context.Context, sessionID string, viewer models.Viewer) (*models.SessionResults, error)
	ListByInterview(ctx context.Context, interviewID string, viewer models.Viewer) ([]models.InterviewSession, error)
}

type SessionHandler struct {
	service        SessionService
	maxAnswerBytes int64
	logger         *zap.Logger
}

func NewSessionHandler(service SessionService, maxAnswerBytes int64, logger *zap.Logger) *SessionHandler {
	if maxAnswerBytes <= 0 {
		maxAnswerBytes = DefaultMaxAnswerBytes
	}
	return &SessionHandler{
		service:        service,
		maxAnswerBytes: maxAnswerBytes,
		logger:         utils.OrNop(logger),
	}
}

func (h *SessionHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.StartSessionRequest](r)

	started, err := h.service.Start(r.Context(), chi.URLParam(r, "interviewID"), middleware.ViewerFrom(r.Context()), *req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, started)
}

func (h *SessionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context(), chi.URLParam(r, "sessionID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, s)
}

func (h *SessionHandler) CurrentQuestionHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CurrentQuestion(r.Context(), chi.URLParam(r, "sessionID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

// SubmitAnswerHandler accepts a multipart upload with the fields questionId,
// answerTimeSeconds and an audio file part. Processing continues in the
// background; the pending response is returned immediately.
func (h *SessionHandler) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAnswerBytes)

	answer, err := readAnswer(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Code:    "audio_too_large",
				Message: "Audio upload exceeds the size limit",
			})
			return
		}
		h.fail(w, r, err)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	response, err := h.service.SubmitAnswer(r.Context(), sessionID, middleware.ViewerFrom(r.Context()), *answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Answer accepted",
		zap.String("sessionID", sessionID),
		zap.String("responseID", response.ID),
		zap.Int("attempt", response.Attempt))
	utils.JSON(w, http.StatusAccepted, response)
}

func readAnswer(r *http.Request) (*session.Answer, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, tooLarge
		}
		return nil, &models.ErrorResponse{Code: "invalid_multipart", Message: "Expected a multipart form upload"}
	}

	answer := &session.Answer{QuestionID: strings.TrimSpace(r.FormValue("questionId"))}
	if raw := r.FormValue("answerTimeSeconds"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &models.ErrorResponse{Code: "invalid_answer_time", Message: "answerTimeSeconds must be a number"}
		}
		answer.AnswerTimeSeconds = seconds
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return answer, nil
		}
		return nil, &models.ErrorResponse{Code: "invalid_multipart", Message: "Failed to read audio part"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	answer.Audio = data
	answer.ContentType = header.Header.Get("Content-Type")
	if answer.ContentType == "" || answer.ContentType == "application/octet-stream" {
		answer.ContentType = http.DetectContentType(data)
	}
	return answer, nil
}

func (h *SessionHandler) ResponseStatusHandler(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.ResponseStatus(r.Context(), chi.URLParam(r, "responseID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, response)
}

func (h *SessionHandler) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Advance(r.Context(), chi.URLParam(r, "sessionID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

func (h *SessionHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Complete(r.Context(), chi.URLParam(r, "sessionID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, s)
}

func (h *SessionHandler) AbandonHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Abandon(r.Context(), chi.URLParam(r, "sessionID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, s)
}

func (h *SessionHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), chi.URLParam(r, "sessionID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, results)
}

func (h *SessionHandler) ListByInterviewHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListByInterview(r.Context(), chi.URLParam(r, "interviewID"), middleware.ViewerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.logger, r, err)
	utils.Error(w, err)
}

// logFailure logs unclassified errors loudly; caller mistakes stay at debug.
func logFailure(logger *zap.Logger, r *http.Request, err error) {
	var appErr *apperr.Error
	var invalid *models.ErrorResponse
	var blocking *apperr.BlockingError
	switch {
	case errors.As(err, &blocking), errors.As(err, &invalid):
		logger.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	case errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal:
		logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(err))
	default:
		logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
