// Package session runs a candidate's walk through an interview: starting,
// answering, advancing, completing and reading results.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hirevoice/interview/internal/aggregator"
	"hirevoice/interview/internal/apperr"
	"hirevoice/interview/internal/events"
	"hirevoice/interview/internal/metrics"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/pipeline"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/sequencer"
	"hirevoice/interview/internal/storage"
	"hirevoice/interview/internal/utils"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AnswerPipeline accepts answers for background processing.
type AnswerPipeline interface {
	Submit(ctx context.Context, sub pipeline.Submission) (*models.InterviewResponse, error)
	Status(ctx context.Context, responseID string) (*models.InterviewResponse, error)
}

// Finalizer computes the terminal scores and narrative of a session.
type Finalizer interface {
	Finalize(ctx context.Context, session *models.InterviewSession, interview *models.Interview, questions []models.InterviewQuestion, responses []models.InterviewResponse) (*aggregator.Result, error)
}

// Answer is an uploaded recording for one question.
type Answer struct {
	QuestionID        string
	Audio             []byte
	ContentType       string
	AnswerTimeSeconds float64
}

type Manager struct {
	repos     *repositories.Repositories
	pipeline  AnswerPipeline
	store     storage.Store
	finalizer Finalizer
	publisher events.Publisher
	ttl       time.Duration
	logger    *zap.Logger
	locks     *keyedMutex
	now       func() time.Time
}

func NewManager(
	repos *repositories.Repositories,
	answers AnswerPipeline,
	store storage.Store,
	finalizer Finalizer,
	publisher events.Publisher,
	ttl time.Duration,
	logger *zap.Logger,
) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		repos:     repos,
		pipeline:  answers,
		store:     store,
		finalizer: finalizer,
		publisher: publisher,
		ttl:       ttl,
		logger:    utils.OrNop(logger).Named("session"),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Start opens a session on an active interview and returns the first
// question. The active question order is frozen into the session.
func (m *Manager) Start(ctx context.Context, interviewID string, viewer models.Viewer, req models.StartSessionRequest) (*models.StartSessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	interview, err := m.repos.Interviews.GetWithQuestions(ctx, interviewID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if interview.Status != models.InterviewActive {
		return nil, apperr.Conflict("interview_not_active", fmt.Sprintf("Interview is %s", interview.Status))
	}

	seq := sequencer.New(interview.Questions)
	if seq.Len() == 0 {
		return nil, apperr.Conflict("interview_has_no_questions", "Interview has no active questions")
	}

	now := m.now().UTC()
	session := &models.InterviewSession{
		InterviewID:    interview.ID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
		Status:         models.SessionInProgress,
		TotalQuestions: seq.Len(),
		QuestionOrder:  seq.IDs(),
		StartedAt:      &now,
		ExpiresAt:      now.Add(m.ttl),
		Version:        1,
	}
	if !viewer.IsAnonymous() && !viewer.IsRecruiter() {
		candidateID := viewer.UserID
		session.CandidateID = &candidateID
	}

	err = m.repos.WithinTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Sessions.Create(ctx, session); err != nil {
			return err
		}
		return tx.Interviews.IncrementTotalSessions(ctx, interview.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	m.logger.Info("Session started",
		zap.String("sessionID", session.ID),
		zap.String("interviewID", interview.ID),
		zap.Int("totalQuestions", session.TotalQuestions))

	return &models.StartSessionResponse{
		Session:  session,
		Question: questionView(seq, 0, viewer.Owns(interview)),
	}, nil
}

// Get returns the session, expiring it first if its deadline passed.
func (m *Manager) Get(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, _, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.expireIfOverdue(ctx, session); err != nil && !isExpired(err) {
		return nil, err
	}
	return session, nil
}

// CurrentQuestion returns the question at the session's index, or an
// exhausted view once every question has been passed.
func (m *Manager) CurrentQuestion(ctx context.Context, sessionID string, viewer models.Viewer) (*models.QuestionView, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, interview, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(ctx, session); err != nil {
		return nil, err
	}

	seq, err := m.sequence(ctx, session)
	if err != nil {
		return nil, err
	}
	view := questionView(seq, session.CurrentQuestionIndex, viewer.Owns(interview))
	return &view, nil
}

// SubmitAnswer stores the audio and hands a new pending attempt to the
// pipeline. A question is answered once unless its latest attempt failed.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID string, viewer models.Viewer, answer Answer) (*models.InterviewResponse, error) {
	switch {
	case answer.QuestionID == "":
		return nil, apperr.Validation("missing_question", "Question id is required")
	case len(answer.Audio) == 0:
		return nil, apperr.Validation("missing_audio", "Answer audio is required")
	case answer.AnswerTimeSeconds < 0:
		return nil, apperr.Validation("invalid_answer_time", "Answer time cannot be negative")
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, _, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(ctx, session); err != nil {
		return nil, err
	}

	seq, err := m.sequence(ctx, session)
	if err != nil {
		return nil, err
	}
	idx := seq.IndexOf(answer.QuestionID)
	if idx < 0 {
		if _, err := m.repos.Questions.GetByID(ctx, answer.QuestionID); err != nil {
			return nil, mapNotFound(err)
		}
		return nil, apperr.Validation("question_not_in_session", "Question is not part of this session")
	}
	question, err := seq.At(idx)
	if err != nil {
		return nil, err
	}
	if !question.IsActive {
		return nil, apperr.Validation("question_inactive", "Question is no longer active")
	}
	if idx > session.CurrentQuestionIndex {
		return nil, apperr.Conflict("question_not_reached", "Advance to the question before answering it")
	}

	// only a failed attempt may be replaced
	latest, err := m.repos.Responses.LatestBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session responses: %w", err)
	}
	for _, prior := range latest {
		if prior.QuestionID == answer.QuestionID && prior.Status != models.ResponseFailed {
			return nil, apperr.Conflict("answer_already_submitted", "Question already has an answer that has not failed")
		}
	}

	contentType := answer.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	object, err := m.store.Put(ctx, storage.NewKey("answers/"+session.ID, contentType), answer.Audio, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store answer audio: %w", err)
	}

	response, err := m.pipeline.Submit(ctx, pipeline.Submission{
		SessionID:         session.ID,
		QuestionID:        answer.QuestionID,
		AudioURL:          object.URL,
		AudioKey:          object.Key,
		AnswerTimeSeconds: answer.AnswerTimeSeconds,
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// ResponseStatus reports a response's processing state without blocking.
func (m *Manager) ResponseStatus(ctx context.Context, responseID string, viewer models.Viewer) (*models.InterviewResponse, error) {
	response, err := m.pipeline.Status(ctx, responseID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	_, interview, err := m.load(ctx, response.SessionID, viewer)
	if err != nil {
		return nil, err
	}
	if !viewer.Owns(interview) {
		response.AudioURL = ""
	}
	return response, nil
}

// Advance moves the index forward by exactly one. Past the last question it
// stays at the total and reports exhaustion.
func (m *Manager) Advance(ctx context.Context, sessionID string, viewer models.Viewer) (*models.QuestionView, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, interview, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(ctx, session); err != nil {
		return nil, err
	}
	seq, err := m.sequence(ctx, session)
	if err != nil {
		return nil, err
	}

	next := session.CurrentQuestionIndex + 1
	if next > session.TotalQuestions {
		next = session.TotalQuestions
	}
	if next != session.CurrentQuestionIndex {
		err := m.repos.Sessions.UpdateVersioned(ctx, session.ID, session.Version, map[string]interface{}{
			"current_question_index": next,
		})
		if err != nil {
			return nil, mapVersion(err)
		}
	}

	view := questionView(seq, next, viewer.Owns(interview))
	return &view, nil
}

// Complete finalizes the session once the latest attempt of every answered
// question is completed.
func (m *Manager) Complete(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, interview, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(ctx, session); err != nil {
		return nil, err
	}

	responses, err := m.repos.Responses.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	if blocking := blockingResponses(repositories.LatestAttempts(responses)); len(blocking) > 0 {
		return nil, &apperr.BlockingError{Count: len(blocking), ResponseIDs: blocking}
	}

	seq, err := m.sequence(ctx, session)
	if err != nil {
		return nil, err
	}

	questions := make([]models.InterviewQuestion, 0, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		q, _ := seq.At(i)
		questions = append(questions, *q)
	}

	result, err := m.finalizer.Finalize(ctx, session, interview, questions, responses)
	if errors.Is(err, aggregator.ErrNoCompletedResponses) {
		return nil, &apperr.Error{Kind: apperr.KindPrecondition, Code: "no_completed_responses", Message: "Answer at least one question before completing", Err: err}
	}
	if err != nil {
		m.logger.Error("Session summary failed", zap.String("sessionID", session.ID), zap.Error(err))
		return nil, &apperr.Error{Kind: apperr.KindInternal, Code: "summary_failed", Message: "Could not summarize the session, try completing again", Err: err}
	}

	completedAt := m.now().UTC()
	err = m.repos.WithinTx(ctx, func(tx *repositories.Repositories) error {
		err := tx.Sessions.UpdateVersioned(ctx, session.ID, session.Version, map[string]interface{}{
			"status":                models.SessionCompleted,
			"completed_at":          completedAt,
			"total_score":           result.Overall,
			"skill_scores":          datatypes.NewJSONType(result.Skills),
			"overall_feedback":      result.Summary.OverallFeedback,
			"strengths":             datatypes.JSONSlice[string](result.Summary.Strengths),
			"weaknesses":            datatypes.JSONSlice[string](result.Summary.Weaknesses),
			"recommendation":        result.Summary.Recommendation,
			"recommendation_reason": result.Summary.RecommendationReason,
		})
		if err != nil {
			return err
		}
		return tx.Interviews.RefreshCompletionStats(ctx, interview.ID)
	})
	if err != nil {
		return nil, mapVersion(err)
	}

	metrics.SessionFinished(string(models.SessionCompleted))
	m.logger.Info("Session completed",
		zap.String("sessionID", session.ID),
		zap.Float64("score", result.Overall),
		zap.String("recommendation", string(result.Summary.Recommendation)))

	event := events.SessionCompletedEvent{
		SessionID:      session.ID,
		InterviewID:    interview.ID,
		TotalScore:     result.Overall,
		Recommendation: string(result.Summary.Recommendation),
		CompletedAt:    completedAt,
	}
	if session.CandidateID != nil {
		event.CandidateID = *session.CandidateID
	}
	if err := m.publisher.SessionCompleted(ctx, event); err != nil {
		m.logger.Warn("Failed to publish session event", zap.String("sessionID", session.ID), zap.Error(err))
	}

	return m.repos.Sessions.GetByID(ctx, session.ID)
}

// Abandon closes an in-progress session without scoring it. Answers still
// being processed keep running.
func (m *Manager) Abandon(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, _, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(ctx, session); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	err = m.repos.Sessions.UpdateVersioned(ctx, session.ID, session.Version, map[string]interface{}{
		"status":       models.SessionAbandoned,
		"completed_at": now,
	})
	if err != nil {
		return nil, mapVersion(err)
	}

	metrics.SessionFinished(string(models.SessionAbandoned))
	m.logger.Info("Session abandoned", zap.String("sessionID", session.ID))
	return m.repos.Sessions.GetByID(ctx, session.ID)
}

// Results returns the terminal view of a session with every attempt. Audio
// URLs are only shown to the interview's recruiter.
func (m *Manager) Results(ctx context.Context, sessionID string, viewer models.Viewer) (*models.SessionResults, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, interview, err := m.load(ctx, sessionID, viewer)
	if err != nil {
		return nil, err
	}
	if err := m.expireIfOverdue(ctx, session); err != nil && !isExpired(err) {
		return nil, err
	}
	if !session.Status.IsTerminal() {
		return nil, apperr.Conflict("session_in_progress", "Results are available once the session has ended")
	}

	responses, err := m.repos.Responses.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	if !viewer.Owns(interview) {
		for i := range responses {
			responses[i].AudioURL = ""
		}
	}

	return &models.SessionResults{
		Session: session,
		Interview: models.InterviewSummary{
			ID:           interview.ID,
			Title:        interview.Title,
			JobID:        interview.JobID,
			PassingScore: interview.PassingScore,
		},
		Responses: responses,
	}, nil
}

// ListByInterview returns every session of an interview to its recruiter.
func (m *Manager) ListByInterview(ctx context.Context, interviewID string, viewer models.Viewer) ([]models.InterviewSession, error) {
	interview, err := m.repos.Interviews.GetByID(ctx, interviewID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !viewer.Owns(interview) {
		return nil, apperr.Forbidden("not_interview_owner", "Only the interview's recruiter can list its sessions")
	}
	return m.repos.Sessions.ListByInterview(ctx, interview.ID)
}

func (m *Manager) load(ctx context.Context, sessionID string, viewer models.Viewer) (*models.InterviewSession, *models.Interview, error) {
	session, err := m.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, mapNotFound(err)
	}
	interview, err := m.repos.Interviews.GetByID(ctx, session.InterviewID)
	if err != nil {
		return nil, nil, mapNotFound(err)
	}
	if err := authorize(viewer, session, interview); err != nil {
		return nil, nil, err
	}
	return session, interview, nil
}

// authorize admits the interview's recruiter and the session's candidate.
// Sessions started anonymously are open to any non-recruiter holding the id.
func authorize(viewer models.Viewer, session *models.InterviewSession, interview *models.Interview) error {
	if viewer.Owns(interview) {
		return nil
	}
	if viewer.IsRecruiter() {
		return apperr.Forbidden("not_interview_owner", "Session belongs to another recruiter's interview")
	}
	if session.CandidateID != nil && *session.CandidateID != viewer.UserID {
		return apperr.Forbidden("not_session_candidate", "Session belongs to another candidate")
	}
	return nil
}

func (m *Manager) requireActive(ctx context.Context, session *models.InterviewSession) error {
	if session.Status != models.SessionInProgress {
		return apperr.Conflict("session_not_active", fmt.Sprintf("Session is %s", session.Status))
	}
	return m.expireIfOverdue(ctx, session)
}

var errSessionExpired = apperr.Conflict("session_expired", "Session has expired")

// expireIfOverdue flips an overdue in-progress session to expired and
// returns errSessionExpired. session is updated in place.
func (m *Manager) expireIfOverdue(ctx context.Context, session *models.InterviewSession) error {
	if session.Status != models.SessionInProgress || !session.IsExpired(m.now()) {
		return nil
	}

	err := m.repos.Sessions.UpdateVersioned(ctx, session.ID, session.Version, map[string]interface{}{
		"status": models.SessionExpired,
	})
	if err != nil && !errors.Is(err, repositories.ErrVersionConflict) {
		return err
	}
	if err == nil {
		metrics.SessionFinished(string(models.SessionExpired))
		m.logger.Info("Session expired", zap.String("sessionID", session.ID))
	}
	session.Status = models.SessionExpired
	session.Version++
	return errSessionExpired
}

func isExpired(err error) bool {
	return errors.Is(err, errSessionExpired)
}

func (m *Manager) sequence(ctx context.Context, session *models.InterviewSession) (*sequencer.Sequence, error) {
	questions, err := m.repos.Questions.ListByIDs(ctx, session.QuestionOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load session questions: %w", err)
	}
	return sequencer.FromSnapshot(session.QuestionOrder, questions)
}

func questionView(seq *sequencer.Sequence, index int, owner bool) models.QuestionView {
	view := models.QuestionView{Index: index, Total: seq.Len()}
	q, err := seq.At(index)
	if err != nil {
		view.Exhausted = true
		return view
	}
	if !owner {
		candidate := q.CandidateView()
		q = &candidate
	}
	view.Question = q
	view.HasNext = seq.HasNext(index)
	return view
}

func blockingResponses(latest []models.InterviewResponse) []string {
	var ids []string
	for _, resp := range latest {
		if resp.Status != models.ResponseCompleted {
			ids = append(ids, resp.ID)
		}
	}
	return ids
}

func mapNotFound(err error) error {
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "session_not_found", Message: "Session not found", Err: err}
	case errors.Is(err, repositories.ErrInterviewNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "interview_not_found", Message: "Interview not found", Err: err}
	case errors.Is(err, repositories.ErrQuestionNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "question_not_found", Message: "Question not found", Err: err}
	case errors.Is(err, repositories.ErrResponseNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "response_not_found", Message: "Response not found", Err: err}
	}
	return err
}

func mapVersion(err error) error {
	if errors.Is(err, repositories.ErrVersionConflict) {
		return &apperr.Error{Kind: apperr.KindConflict, Code: "session_modified", Message: "Session was modified concurrently, retry", Err: err}
	}
	return mapNotFound(err)
}
