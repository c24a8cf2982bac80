// Package interviews manages interview definitions: their questions,
// question audio and publication status.
package interviews

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"hirevoice/interview/internal/apperr"
	"hirevoice/interview/internal/evaluation"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/speech"
	"hirevoice/interview/internal/storage"
	"hirevoice/interview/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultAudioConcurrency = 4

type Service struct {
	repos            *repositories.Repositories
	generator        evaluation.QuestionGenerator
	synthesizer      speech.Synthesizer
	store            storage.Store
	audioConcurrency int
	logger           *zap.Logger
	now              func() time.Time
}

func NewService(
	repos *repositories.Repositories,
	generator evaluation.QuestionGenerator,
	synthesizer speech.Synthesizer,
	store storage.Store,
	logger *zap.Logger,
) *Service {
	return &Service{
		repos:            repos,
		generator:        generator,
		synthesizer:      synthesizer,
		store:            store,
		audioConcurrency: defaultAudioConcurrency,
		logger:           utils.OrNop(logger).Named("interviews"),
		now:              time.Now,
	}
}

// AudioReport summarizes a question audio run.
type AudioReport struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
}

func (s *Service) Create(ctx context.Context, viewer models.Viewer, req models.CreateInterviewRequest) (*models.Interview, error) {
	if !viewer.IsRecruiter() {
		return nil, apperr.Forbidden("recruiter_required", "Only recruiters can create interviews")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	interview := &models.Interview{
		JobID:            req.JobID,
		RecruiterID:      viewer.UserID,
		Title:            req.Title,
		Description:      req.Description,
		Status:           models.InterviewDraft,
		QuestionCount:    req.QuestionCount,
		TimeLimitSeconds: req.TimeLimitSeconds,
		SkillCategories:  req.SkillCategories,
		AutoEvaluate:     true,
		PassingScore:     models.DefaultPassingScore,
	}
	if req.AutoEvaluate != nil {
		interview.AutoEvaluate = *req.AutoEvaluate
	}
	if req.PassingScore != nil {
		interview.PassingScore = *req.PassingScore
	}
	if req.Voice != nil {
		interview.Voice = *req.Voice
	}

	if err := s.repos.Interviews.Create(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to create interview: %w", err)
	}
	s.logger.Info("Interview created", zap.String("interviewID", interview.ID), zap.String("jobID", interview.JobID))
	return interview, nil
}

// Get returns the full interview to its recruiter. Anyone else only sees an
// active interview, without its questions.
func (s *Service) Get(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error) {
	interview, err := s.repos.Interviews.GetWithQuestions(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if viewer.Owns(interview) {
		return interview, nil
	}
	if interview.Status != models.InterviewActive {
		return nil, apperr.NotFound("interview_not_found", "Interview not found")
	}
	interview.Questions = nil
	return interview, nil
}

// AddQuestions appends questions to a draft interview.
func (s *Service) AddQuestions(ctx context.Context, id string, viewer models.Viewer, req models.AddQuestionsRequest) ([]models.InterviewQuestion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, interview, req.Questions)
}

// GenerateQuestions drafts questions with the LLM and appends them.
func (s *Service) GenerateQuestions(ctx context.Context, id string, viewer models.Viewer, req models.GenerateQuestionsRequest) ([]models.InterviewQuestion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if interview.Status != models.InterviewDraft {
		return nil, apperr.Conflict("interview_not_editable", "Questions can only be added to a draft interview")
	}

	count := req.Count
	if count == 0 {
		count = interview.QuestionCount
	}

	inputs, err := s.generator.GenerateQuestions(ctx, evaluation.QuestionBrief{
		RequestID:        uuid.NewString(),
		Title:            interview.Title,
		Description:      interview.Description,
		Count:            count,
		Categories:       interview.SkillCategories,
		Difficulty:       req.Difficulty,
		TimeLimitSeconds: interview.TimeLimitSeconds,
	})
	if err != nil {
		s.logger.Error("Question generation failed", zap.String("interviewID", interview.ID), zap.Error(err))
		return nil, &apperr.Error{Kind: apperr.KindInternal, Code: "question_generation_failed", Message: "Could not generate questions, try again", Err: err}
	}
	return s.append(ctx, interview, inputs)
}

func (s *Service) append(ctx context.Context, interview *models.Interview, inputs []models.QuestionInput) ([]models.InterviewQuestion, error) {
	if interview.Status != models.InterviewDraft {
		return nil, apperr.Conflict("interview_not_editable", "Questions can only be added to a draft interview")
	}

	questions := make([]models.InterviewQuestion, 0, len(inputs))
	for _, in := range inputs {
		limit := in.TimeLimitSeconds
		if limit == 0 {
			limit = interview.TimeLimitSeconds
		}
		questions = append(questions, models.InterviewQuestion{
			Text:             in.Text,
			Category:         models.SkillCategory(in.Category),
			Difficulty:       models.Difficulty(in.Difficulty),
			TimeLimitSeconds: limit,
			ExpectedKeywords: in.ExpectedKeywords,
			ScoringCriteria:  in.ScoringCriteria,
			IsActive:         true,
		})
	}

	err := s.repos.WithinTx(ctx, func(tx *repositories.Repositories) error {
		existing, err := tx.Questions.ListByInterview(ctx, interview.ID, true)
		if err != nil {
			return err
		}
		if len(existing)+len(questions) > models.MaxQuestionCount {
			return apperr.Validation("too_many_questions", fmt.Sprintf("An interview can have at most %d active questions", models.MaxQuestionCount))
		}
		return tx.Questions.Append(ctx, interview.ID, questions)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Questions added", zap.String("interviewID", interview.ID), zap.Int("count", len(questions)))
	return questions, nil
}

// GenerateAudio renders every active question with the interview's voice
// and stores the result. Questions that already have audio are skipped
// unless force is set.
func (s *Service) GenerateAudio(ctx context.Context, id string, viewer models.Viewer, force bool) (*AudioReport, error) {
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	questions, err := s.repos.Questions.ListByInterview(ctx, interview.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	voice := speech.Voice{
		ID:         interview.Voice.VoiceID,
		Model:      interview.Voice.Model,
		Stability:  interview.Voice.Stability,
		Similarity: interview.Voice.Similarity,
	}

	var generated, skipped int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.audioConcurrency)
	for _, q := range questions {
		if q.AudioURL != "" && !force {
			skipped++
			continue
		}
		g.Go(func() error {
			if err := s.renderQuestion(gctx, interview.ID, q, voice); err != nil {
				return fmt.Errorf("question %s: %w", q.ID, err)
			}
			atomic.AddInt64(&generated, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Question audio failed", zap.String("interviewID", interview.ID), zap.Error(err))
		return nil, &apperr.Error{Kind: apperr.KindInternal, Code: "audio_generation_failed", Message: "Could not generate question audio", Err: err}
	}

	s.logger.Info("Question audio generated",
		zap.String("interviewID", interview.ID),
		zap.Int64("generated", generated),
		zap.Int64("skipped", skipped))
	return &AudioReport{Generated: int(generated), Skipped: int(skipped)}, nil
}

func (s *Service) renderQuestion(ctx context.Context, interviewID string, q models.InterviewQuestion, voice speech.Voice) error {
	audio, err := s.synthesizer.Synthesize(ctx, q.Text, voice)
	if err != nil {
		return err
	}
	object, err := s.store.Put(ctx, storage.NewKey("questions/"+interviewID, audio.ContentType), audio.Data, audio.ContentType)
	if err != nil {
		return err
	}
	if err := s.repos.Questions.SetAudio(ctx, q.ID, object.URL, object.Key); err != nil {
		return err
	}
	if q.AudioKey != "" && q.AudioKey != object.Key {
		if err := s.store.Delete(ctx, q.AudioKey); err != nil {
			s.logger.Warn("Failed to delete old question audio", zap.String("key", q.AudioKey), zap.Error(err))
		}
	}
	return nil
}

// Publish opens a draft interview to candidates.
func (s *Service) Publish(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error) {
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	active, err := s.repos.Questions.ListByInterview(ctx, interview.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if len(active) == 0 {
		return nil, apperr.Conflict("interview_has_no_questions", "Add at least one question before publishing")
	}
	return s.transition(ctx, interview, []models.InterviewStatus{models.InterviewDraft}, models.InterviewActive,
		map[string]interface{}{"published_at": s.now().UTC()})
}

func (s *Service) Pause(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error) {
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, interview, []models.InterviewStatus{models.InterviewActive}, models.InterviewPaused, nil)
}

func (s *Service) Resume(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error) {
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, interview, []models.InterviewStatus{models.InterviewPaused}, models.InterviewActive, nil)
}

// Close stops an interview for good. Sessions already running may finish.
func (s *Service) Close(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error) {
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, interview,
		[]models.InterviewStatus{models.InterviewDraft, models.InterviewActive, models.InterviewPaused},
		models.InterviewCompleted, nil)
}

// DeactivateQuestion hides a question from sessions started afterwards.
func (s *Service) DeactivateQuestion(ctx context.Context, id, questionID string, viewer models.Viewer) error {
	interview, err := s.loadOwned(ctx, id, viewer)
	if err != nil {
		return err
	}
	if interview.Status == models.InterviewCompleted {
		return apperr.Conflict("interview_closed", "Interview is closed")
	}
	if err := s.repos.Questions.Deactivate(ctx, interview.ID, questionID); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("Question deactivated", zap.String("interviewID", interview.ID), zap.String("questionID", questionID))
	return nil
}

func (s *Service) transition(ctx context.Context, interview *models.Interview, from []models.InterviewStatus, to models.InterviewStatus, extra map[string]interface{}) (*models.Interview, error) {
	err := s.repos.Interviews.TransitionStatus(ctx, interview.ID, from, to, extra)
	if errors.Is(err, repositories.ErrInterviewStateChange) {
		return nil, apperr.Conflict("invalid_interview_status", fmt.Sprintf("Cannot move interview from %s to %s", interview.Status, to))
	}
	if err != nil {
		return nil, mapNotFound(err)
	}

	s.logger.Info("Interview status changed",
		zap.String("interviewID", interview.ID),
		zap.String("from", string(interview.Status)),
		zap.String("to", string(to)))
	return s.repos.Interviews.GetByID(ctx, interview.ID)
}

func (s *Service) loadOwned(ctx context.Context, id string, viewer models.Viewer) (*models.Interview, error) {
	if !viewer.IsRecruiter() {
		return nil, apperr.Forbidden("recruiter_required", "Only recruiters can manage interviews")
	}
	interview, err := s.repos.Interviews.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !viewer.Owns(interview) {
		return nil, apperr.Forbidden("not_interview_owner", "Interview belongs to another recruiter")
	}
	return interview, nil
}

func mapNotFound(err error) error {
	switch {
	case errors.Is(err, repositories.ErrInterviewNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "interview_not_found", Message: "Interview not found", Err: err}
	case errors.Is(err, repositories.ErrQuestionNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Code: "question_not_found", Message: "Question not found", Err: err}
	}
	return err
}
