// Package aggregator folds a session's evaluated answers into its final
// scores and narrative.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hirevoice/interview/internal/evaluation"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/utils"

	"go.uber.org/zap"
)

var ErrNoCompletedResponses = errors.New("session has no completed responses")

// Scores is the numeric part of a session result.
type Scores struct {
	Overall float64
	Skills  models.SkillScores
	// Counted is the number of completed answers that contributed.
	Counted int
}

// Aggregate averages the latest completed attempt of each question. A skill
// is averaged only over the answers that reported it.
func Aggregate(responses []models.InterviewResponse) (*Scores, error) {
	var (
		total      float64
		counted    int
		skillSums  = map[string]float64{}
		skillCount = map[string]int{}
	)

	for _, resp := range repositories.LatestAttempts(responses) {
		if resp.Status != models.ResponseCompleted || resp.Score == nil {
			continue
		}
		total += *resp.Score
		counted++
		for skill, score := range resp.SkillScores.Data() {
			skillSums[skill] += score
			skillCount[skill]++
		}
	}
	if counted == 0 {
		return nil, ErrNoCompletedResponses
	}

	skills := make(models.SkillScores, len(skillSums))
	for skill, sum := range skillSums {
		skills[skill] = utils.Round2(sum / float64(skillCount[skill]))
	}
	return &Scores{
		Overall: utils.Round2(total / float64(counted)),
		Skills:  skills,
		Counted: counted,
	}, nil
}

// Result is everything completion persists onto the session.
type Result struct {
	Scores
	Summary evaluation.Summary
}

type Aggregator struct {
	writer  evaluation.SummaryWriter
	timeout time.Duration
	logger  *zap.Logger
}

func New(writer evaluation.SummaryWriter, timeout time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		writer:  writer,
		timeout: timeout,
		logger:  utils.OrNop(logger).Named("aggregator"),
	}
}

// Finalize scores the session and asks the model for the narrative.
// questions gives the display order of the answers in the prompt.
func (a *Aggregator) Finalize(ctx context.Context, session *models.InterviewSession, interview *models.Interview, questions []models.InterviewQuestion, responses []models.InterviewResponse) (*Result, error) {
	scores, err := Aggregate(responses)
	if err != nil {
		return nil, err
	}

	position := make(map[string]int, len(questions))
	byID := make(map[string]models.InterviewQuestion, len(questions))
	for i, q := range questions {
		position[q.ID] = i
		byID[q.ID] = q
	}

	latest := repositories.LatestAttempts(responses)
	sort.SliceStable(latest, func(i, j int) bool {
		return position[latest[i].QuestionID] < position[latest[j].QuestionID]
	})

	answers := make([]evaluation.AnswerSummary, 0, len(latest))
	for _, resp := range latest {
		if resp.Status != models.ResponseCompleted || resp.Score == nil {
			continue
		}
		q := byID[resp.QuestionID]
		answers = append(answers, evaluation.AnswerSummary{
			QuestionText: q.Text,
			Category:     string(q.Category),
			Transcript:   resp.Transcript,
			Score:        *resp.Score,
			Feedback:     resp.Feedback,
		})
	}

	summaryCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		summaryCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	summary, err := a.writer.Summarize(summaryCtx, evaluation.SummaryInput{
		RequestID:      session.ID,
		InterviewTitle: interview.Title,
		JobID:          interview.JobID,
		PassingScore:   interview.PassingScore,
		OverallScore:   scores.Overall,
		SkillScores:    scores.Skills,
		Answers:        answers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize session: %w", err)
	}

	if inconsistent(summary.Recommendation, scores.Overall, interview.PassingScore) {
		a.logger.Warn("Recommendation disagrees with score",
			zap.String("sessionID", session.ID),
			zap.String("recommendation", string(summary.Recommendation)),
			zap.Float64("score", scores.Overall),
			zap.Float64("passingScore", interview.PassingScore))
	}

	return &Result{Scores: *scores, Summary: *summary}, nil
}

func inconsistent(rec models.Recommendation, score, passing float64) bool {
	switch rec {
	case models.RecommendShortlist:
		return score < passing
	case models.RecommendReject:
		return score >= passing
	}
	return false
}
