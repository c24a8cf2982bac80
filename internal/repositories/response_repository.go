package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hirevoice/interview/internal/models"

	"gorm.io/gorm"
)

type ResponseRepository struct {
	DB *gorm.DB
}

// CreateAttempt stores response as the next attempt for its session and
// question. Earlier attempts are left untouched.
func (r *ResponseRepository) CreateAttempt(ctx context.Context, response *models.InterviewResponse) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		err := tx.Model(&models.InterviewResponse{}).
			Where("session_id = ? AND question_id = ?", response.SessionID, response.QuestionID).
			Select("COALESCE(MAX(attempt), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}
		response.Attempt = last + 1
		return tx.Create(response).Error
	})
}

func (r *ResponseRepository) GetByID(ctx context.Context, id string) (*models.InterviewResponse, error) {
	var response models.InterviewResponse
	if err := r.DB.WithContext(ctx).First(&response, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrResponseNotFound)
	}
	return &response, nil
}

// ListBySession returns every attempt of every answer in the session.
func (r *ResponseRepository) ListBySession(ctx context.Context, sessionID string) ([]models.InterviewResponse, error) {
	var responses []models.InterviewResponse
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("submitted_at ASC, attempt ASC").
		Find(&responses).Error
	return responses, err
}

// LatestBySession returns the highest attempt for each answered question.
func (r *ResponseRepository) LatestBySession(ctx context.Context, sessionID string) ([]models.InterviewResponse, error) {
	all, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return LatestAttempts(all), nil
}

// LatestAttempts keeps the highest attempt per question, ordered by
// submission time.
func LatestAttempts(responses []models.InterviewResponse) []models.InterviewResponse {
	latest := make(map[string]models.InterviewResponse, len(responses))
	for _, resp := range responses {
		if cur, ok := latest[resp.QuestionID]; !ok || resp.Attempt > cur.Attempt {
			latest[resp.QuestionID] = resp
		}
	}

	out := make([]models.InterviewResponse, 0, len(latest))
	for _, resp := range latest {
		out = append(out, resp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// Transition moves a response along one edge of the processing DAG. The
// update only applies while the row is still in `from`, so a concurrent
// writer that already moved the row makes this return ErrInvalidTransition.
func (r *ResponseRepository) Transition(ctx context.Context, id string, from, to models.ResponseStatus, fields map[string]interface{}) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := r.DB.WithContext(ctx).Model(&models.InterviewResponse{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s (now %s)", ErrInvalidTransition, from, to, current.Status)
	}
	return nil
}

// FailStuck marks every non-terminal response untouched since before cutoff
// as failed and returns how many were changed.
func (r *ResponseRepository) FailStuck(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.InterviewResponse{}).
		Where("status IN ? AND updated_at < ?", []models.ResponseStatus{
			models.ResponsePending,
			models.ResponseTranscribing,
			models.ResponseEvaluating,
		}, cutoff).
		Updates(map[string]interface{}{
			"status":           models.ResponseFailed,
			"processing_error": reason,
		})
	return res.RowsAffected, res.Error
}
