// Package pipeline moves submitted answers through transcription and
// scoring on a bounded pool of background workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/evaluation"
	"hirevoice/interview/internal/events"
	"hirevoice/interview/internal/metrics"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/speech"
	"hirevoice/interview/internal/utils"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxErrorLength = 500

// ErrEmptyTranscript is recorded when speech-to-text returns no words.
var ErrEmptyTranscript = errors.New("no speech detected in answer audio")

// Submission is a stored answer recording waiting for a response row.
type Submission struct {
	SessionID         string
	QuestionID        string
	AudioURL          string
	AudioKey          string
	AnswerTimeSeconds float64
}

type Pipeline struct {
	repos       *repositories.Repositories
	transcriber speech.Transcriber
	scorer      evaluation.AnswerScorer
	publisher   events.Publisher
	pool        *WorkerPool
	cfg         config.PipelineConfig
	logger      *zap.Logger
	now         func() time.Time
}

func New(
	repos *repositories.Repositories,
	transcriber speech.Transcriber,
	scorer evaluation.AnswerScorer,
	publisher events.Publisher,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	logger = utils.OrNop(logger).Named("pipeline")
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	p := &Pipeline{
		repos:       repos,
		transcriber: transcriber,
		scorer:      scorer,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
	p.pool = NewWorkerPool(cfg.Workers, cfg.QueueSize, cfg.EnqueueTimeout, p.process, logger)
	return p
}

func (p *Pipeline) Start() {
	p.pool.Start()
}

func (p *Pipeline) Stop(ctx context.Context) error {
	return p.pool.Stop(ctx)
}

func (p *Pipeline) Metrics() map[string]interface{} {
	return p.pool.GetMetrics()
}

// Submit stores a pending response as the next attempt for the question and
// queues it. A response that cannot be queued stays pending and is failed
// later by the stale sweeper.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*models.InterviewResponse, error) {
	response := &models.InterviewResponse{
		SessionID:         sub.SessionID,
		QuestionID:        sub.QuestionID,
		AudioURL:          sub.AudioURL,
		AudioKey:          sub.AudioKey,
		AnswerTimeSeconds: sub.AnswerTimeSeconds,
		Status:            models.ResponsePending,
		SubmittedAt:       p.now().UTC(),
	}
	if err := p.repos.Responses.CreateAttempt(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to store response: %w", err)
	}

	p.logger.Info("Response submitted",
		zap.String("responseID", response.ID),
		zap.String("sessionID", response.SessionID),
		zap.String("questionID", response.QuestionID),
		zap.Int("attempt", response.Attempt))

	if !p.pool.Enqueue(Job{ResponseID: response.ID, SessionID: response.SessionID}) {
		p.logger.Warn("Response left pending, worker queue unavailable",
			zap.String("responseID", response.ID))
	}
	return response, nil
}

// Status returns the response as currently persisted.
func (p *Pipeline) Status(ctx context.Context, responseID string) (*models.InterviewResponse, error) {
	return p.repos.Responses.GetByID(ctx, responseID)
}

type answerContext struct {
	question  *models.InterviewQuestion
	interview *models.Interview
}

func (p *Pipeline) process(ctx context.Context, job Job) {
	logger := p.logger.With(zap.String("responseID", job.ResponseID), zap.String("sessionID", job.SessionID))

	response, err := p.repos.Responses.GetByID(ctx, job.ResponseID)
	if err != nil {
		logger.Error("Failed to load response", zap.Error(err))
		return
	}
	if response.Status != models.ResponsePending {
		logger.Info("Skipping response no longer pending", zap.String("status", string(response.Status)))
		return
	}

	answer, err := p.loadContext(ctx, response)
	if err != nil {
		p.fail(ctx, logger, response, models.ResponsePending, err)
		return
	}

	if err := p.repos.Responses.Transition(ctx, response.ID, models.ResponsePending, models.ResponseTranscribing, nil); err != nil {
		logger.Warn("Could not start transcription", zap.Error(err))
		return
	}

	transcript, err := p.transcribe(ctx, response.AudioURL)
	if err != nil {
		p.fail(ctx, logger, response, models.ResponseTranscribing, fmt.Errorf("transcription failed: %w", err))
		return
	}

	transcribedAt := p.now().UTC()
	wordCount := len(strings.Fields(transcript.Text))
	err = p.repos.Responses.Transition(ctx, response.ID, models.ResponseTranscribing, models.ResponseEvaluating, map[string]interface{}{
		"transcript":            transcript.Text,
		"transcript_confidence": transcript.Confidence,
		"word_count":            wordCount,
		"transcribed_at":        transcribedAt,
	})
	if err != nil {
		logger.Warn("Could not start evaluation", zap.Error(err))
		return
	}

	score, err := p.score(ctx, evaluation.AnswerInput{
		RequestID:         response.ID,
		Question:          *answer.question,
		Transcript:        transcript.Text,
		AnswerTimeSeconds: response.AnswerTimeSeconds,
		Categories:        answer.interview.SkillCategories,
	})
	if err != nil {
		p.fail(ctx, logger, response, models.ResponseEvaluating, fmt.Errorf("evaluation failed: %w", err))
		return
	}

	evaluatedBy := models.EvaluatorHybrid
	if answer.interview.AutoEvaluate {
		evaluatedBy = models.EvaluatorAI
	}

	err = p.repos.Responses.Transition(ctx, response.ID, models.ResponseEvaluating, models.ResponseCompleted, map[string]interface{}{
		"score":        score.Score,
		"feedback":     score.Feedback,
		"skill_scores": datatypes.NewJSONType(score.SkillScores),
		"evaluated_by": evaluatedBy,
		"evaluated_at": p.now().UTC(),
	})
	if err != nil {
		logger.Warn("Could not complete response", zap.Error(err))
		return
	}

	logger.Info("Response evaluated", zap.Float64("score", score.Score), zap.Int("wordCount", wordCount))
	p.publish(ctx, logger, events.ResponseFinishedEvent{
		ResponseID: response.ID,
		SessionID:  response.SessionID,
		QuestionID: response.QuestionID,
		Attempt:    response.Attempt,
		Status:     string(models.ResponseCompleted),
		Score:      &score.Score,
	})
}

func (p *Pipeline) loadContext(ctx context.Context, response *models.InterviewResponse) (*answerContext, error) {
	question, err := p.repos.Questions.GetByID(ctx, response.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	session, err := p.repos.Sessions.GetByID(ctx, response.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	interview, err := p.repos.Interviews.GetByID(ctx, session.InterviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}
	return &answerContext{question: question, interview: interview}, nil
}

func (p *Pipeline) transcribe(ctx context.Context, audioURL string) (*speech.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	transcript, err := p.transcriber.Transcribe(ctx, audioURL)
	if err == nil && strings.TrimSpace(transcript.Text) == "" {
		err = ErrEmptyTranscript
	}
	metrics.ObserveStage("transcribe", stageResult(err), time.Since(start))
	return transcript, err
}

func (p *Pipeline) score(ctx context.Context, in evaluation.AnswerInput) (*evaluation.AnswerScore, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.EvaluateTimeout)
	defer cancel()

	start := time.Now()
	score, err := p.scorer.ScoreAnswer(ctx, in)
	metrics.ObserveStage("evaluate", stageResult(err), time.Since(start))
	return score, err
}

func (p *Pipeline) fail(ctx context.Context, logger *zap.Logger, response *models.InterviewResponse, from models.ResponseStatus, cause error) {
	logger.Error("Response processing failed", zap.String("stage", string(from)), zap.Error(cause))

	message := utils.Truncate(cause.Error(), maxErrorLength)
	err := p.repos.Responses.Transition(ctx, response.ID, from, models.ResponseFailed, map[string]interface{}{
		"processing_error": message,
	})
	if err != nil {
		logger.Warn("Could not mark response failed", zap.Error(err))
		return
	}

	p.publish(ctx, logger, events.ResponseFinishedEvent{
		ResponseID: response.ID,
		SessionID:  response.SessionID,
		QuestionID: response.QuestionID,
		Attempt:    response.Attempt,
		Status:     string(models.ResponseFailed),
		Error:      message,
	})
}

func (p *Pipeline) publish(ctx context.Context, logger *zap.Logger, event events.ResponseFinishedEvent) {
	if err := p.publisher.ResponseFinished(ctx, event); err != nil {
		logger.Warn("Failed to publish response event", zap.Error(err))
	}
}

func stageResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
