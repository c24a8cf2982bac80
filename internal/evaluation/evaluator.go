// Package evaluation turns LLM output into scores, session narratives and
// generated questions.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"hirevoice/interview/internal/llm"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/prompts"
	"hirevoice/interview/internal/utils"

	"go.uber.org/zap"
)

// ErrMalformedOutput marks model output that does not match the expected shape.
var ErrMalformedOutput = errors.New("malformed model output")

type AnswerInput struct {
	RequestID         string
	Question          models.InterviewQuestion
	Transcript        string
	AnswerTimeSeconds float64
	// Categories restricts the skill keys the scorer may report. Empty means all.
	Categories []string
}

type AnswerScore struct {
	Score       float64
	Feedback    string
	SkillScores models.SkillScores
}

// AnswerScorer grades a single transcribed answer.
type AnswerScorer interface {
	ScoreAnswer(ctx context.Context, in AnswerInput) (*AnswerScore, error)
}

type AnswerSummary struct {
	QuestionText string
	Category     string
	Transcript   string
	Score        float64
	Feedback     string
}

type SummaryInput struct {
	RequestID      string
	InterviewTitle string
	JobID          string
	PassingScore   float64
	OverallScore   float64
	SkillScores    models.SkillScores
	Answers        []AnswerSummary
}

type Summary struct {
	OverallFeedback      string
	Strengths            []string
	Weaknesses           []string
	Recommendation       models.Recommendation
	RecommendationReason string
}

// SummaryWriter synthesizes the narrative part of a session result.
type SummaryWriter interface {
	Summarize(ctx context.Context, in SummaryInput) (*Summary, error)
}

type QuestionBrief struct {
	RequestID        string
	Title            string
	Description      string
	Count            int
	Categories       []string
	Difficulty       string
	TimeLimitSeconds int
}

// QuestionGenerator drafts interview questions for a role.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, brief QuestionBrief) ([]models.QuestionInput, error)
}

// Evaluator implements every LLM-backed step on one provider.
type Evaluator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
}

func NewEvaluator(provider llm.Provider, promptManager prompts.PromptProvider, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		provider: provider,
		prompts:  promptManager,
		logger:   utils.OrNop(logger),
	}
}

type scorePromptData struct {
	QuestionText      string
	Category          string
	Difficulty        string
	ExpectedKeywords  []string
	ScoringCriteria   string
	Transcript        string
	AnswerTimeSeconds float64
	TimeLimitSeconds  int
	Categories        []string
}

func (e *Evaluator) ScoreAnswer(ctx context.Context, in AnswerInput) (*AnswerScore, error) {
	categories := in.Categories
	if len(categories) == 0 {
		categories = models.SkillCategoriesList()
	}

	prompt, err := e.prompts.BuildPrompt(prompts.ModeScoreAnswer, string(in.Question.Category), scorePromptData{
		QuestionText:      in.Question.Text,
		Category:          string(in.Question.Category),
		Difficulty:        string(in.Question.Difficulty),
		ExpectedKeywords:  in.Question.ExpectedKeywords,
		ScoringCriteria:   in.Question.ScoringCriteria,
		Transcript:        in.Transcript,
		AnswerTimeSeconds: in.AnswerTimeSeconds,
		TimeLimitSeconds:  in.Question.TimeLimitSeconds,
		Categories:        categories,
	})
	if err != nil {
		return nil, err
	}

	raw, err := e.generate(ctx, prompt, in.RequestID)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Score       any            `json:"score"`
		Feedback    string         `json:"feedback"`
		SkillScores map[string]any `json:"skillScores"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	score := utils.CoerceFloat(payload.Score)
	if !validScore(score) {
		return nil, fmt.Errorf("%w: score %v outside 0-100", ErrMalformedOutput, payload.Score)
	}

	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}
	allowed[string(in.Question.Category)] = true

	skills := make(models.SkillScores, len(payload.SkillScores))
	for key, value := range payload.SkillScores {
		skill := utils.NormalizeKey(key)
		if !allowed[skill] {
			e.logger.Warn("Dropping unexpected skill from score",
				zap.String("request_id", in.RequestID),
				zap.String("skill", key))
			continue
		}
		v := utils.CoerceFloat(value)
		if !validScore(v) {
			return nil, fmt.Errorf("%w: skill %s score %v outside 0-100", ErrMalformedOutput, key, value)
		}
		skills[skill] = utils.Round2(v)
	}

	return &AnswerScore{
		Score:       utils.Round2(score),
		Feedback:    strings.TrimSpace(payload.Feedback),
		SkillScores: skills,
	}, nil
}

func (e *Evaluator) Summarize(ctx context.Context, in SummaryInput) (*Summary, error) {
	prompt, err := e.prompts.BuildPrompt(prompts.ModeSessionSummary, prompts.DefaultVariant, in)
	if err != nil {
		return nil, err
	}

	raw, err := e.generate(ctx, prompt, in.RequestID)
	if err != nil {
		return nil, err
	}

	var payload struct {
		OverallFeedback      string   `json:"overallFeedback"`
		Strengths            []string `json:"strengths"`
		Weaknesses           []string `json:"weaknesses"`
		Recommendation       string   `json:"recommendation"`
		RecommendationReason string   `json:"recommendationReason"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	recommendation := models.Recommendation(strings.ToLower(strings.TrimSpace(payload.Recommendation)))
	if !models.ValidRecommendations[recommendation] {
		return nil, fmt.Errorf("%w: recommendation %q", ErrMalformedOutput, payload.Recommendation)
	}
	if strings.TrimSpace(payload.OverallFeedback) == "" {
		return nil, fmt.Errorf("%w: missing overall feedback", ErrMalformedOutput)
	}

	return &Summary{
		OverallFeedback:      strings.TrimSpace(payload.OverallFeedback),
		Strengths:            cleanList(payload.Strengths),
		Weaknesses:           cleanList(payload.Weaknesses),
		Recommendation:       recommendation,
		RecommendationReason: strings.TrimSpace(payload.RecommendationReason),
	}, nil
}

func (e *Evaluator) GenerateQuestions(ctx context.Context, brief QuestionBrief) ([]models.QuestionInput, error) {
	variant := brief.Difficulty
	if variant == "" {
		variant = prompts.DefaultVariant
	}
	prompt, err := e.prompts.BuildPrompt(prompts.ModeGenerateQuestions, variant, brief)
	if err != nil {
		return nil, err
	}

	raw, err := e.generate(ctx, prompt, brief.RequestID)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Questions []models.QuestionInput `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	allowed := make(map[string]bool, len(brief.Categories))
	for _, c := range brief.Categories {
		allowed[c] = true
	}

	questions := make([]models.QuestionInput, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		q.TimeLimitSeconds = brief.TimeLimitSeconds
		if err := q.Validate(); err != nil {
			e.logger.Warn("Skipping invalid generated question",
				zap.String("request_id", brief.RequestID),
				zap.Error(err))
			continue
		}
		if len(allowed) > 0 && !allowed[q.Category] {
			continue
		}
		questions = append(questions, q)
		if brief.Count > 0 && len(questions) == brief.Count {
			break
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no usable questions", ErrMalformedOutput)
	}
	return questions, nil
}

func (e *Evaluator) generate(ctx context.Context, prompt, requestID string) (string, error) {
	resp, err := e.provider.GenerateContent(ctx, prompt, requestID)
	if err != nil {
		return "", err
	}
	e.logger.Debug("LLM response received",
		zap.String("request_id", requestID),
		zap.String("provider", resp.Metadata.Provider),
		zap.String("model", resp.Metadata.Model),
		zap.Int("processing_ms", resp.Metadata.ProcessingTime))

	body, err := utils.ExtractJSON(resp.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %v (output: %s)", ErrMalformedOutput, err, utils.Truncate(resp.Content, 200))
	}
	return body, nil
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
