package repositories

import (
	"context"

	"hirevoice/interview/internal/models"

	"gorm.io/gorm"
)

type InterviewRepository struct {
	DB *gorm.DB
}

func (r *InterviewRepository) Create(ctx context.Context, interview *models.Interview) error {
	return r.DB.WithContext(ctx).Create(interview).Error
}

func (r *InterviewRepository) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	if err := r.DB.WithContext(ctx).First(&interview, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrInterviewNotFound)
	}
	return &interview, nil
}

// GetWithQuestions loads the interview and all of its questions, in order.
func (r *InterviewRepository) GetWithQuestions(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_order ASC, id ASC")
		}).
		First(&interview, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, ErrInterviewNotFound)
	}
	return &interview, nil
}

// TransitionStatus moves the interview to `to` only if it is currently in
// one of `from`.
func (r *InterviewRepository) TransitionStatus(ctx context.Context, id string, from []models.InterviewStatus, to models.InterviewStatus, extra map[string]interface{}) error {
	fields := map[string]interface{}{"status": to}
	for k, v := range extra {
		fields[k] = v
	}

	res := r.DB.WithContext(ctx).Model(&models.Interview{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInterviewStateChange
	}
	return nil
}

func (r *InterviewRepository) IncrementTotalSessions(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&models.Interview{}).
		Where("id = ?", id).
		UpdateColumn("total_sessions", gorm.Expr("total_sessions + ?", 1)).Error
}

type completionStats struct {
	Completed int64
	Average   *float64
}

// RefreshCompletionStats recomputes the completed-session count and the
// average total score from every completed session of the interview.
func (r *InterviewRepository) RefreshCompletionStats(ctx context.Context, id string) error {
	var stats completionStats
	err := r.DB.WithContext(ctx).Model(&models.InterviewSession{}).
		Select("COUNT(*) AS completed, AVG(total_score) AS average").
		Where("interview_id = ? AND status = ?", id, models.SessionCompleted).
		Scan(&stats).Error
	if err != nil {
		return err
	}

	average := 0.0
	if stats.Average != nil {
		average = *stats.Average
	}
	return r.DB.WithContext(ctx).Model(&models.Interview{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"completed_sessions": stats.Completed,
			"average_score":      average,
		}).Error
}
