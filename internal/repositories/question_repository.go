package repositories

import (
	"context"

	"hirevoice/interview/internal/models"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

// Append stores questions after the interview's current last question,
// assigning dense sequential orders. Must run inside a transaction when
// callers can race.
func (r *QuestionRepository) Append(ctx context.Context, interviewID string, questions []models.InterviewQuestion) error {
	var maxOrder int
	err := r.DB.WithContext(ctx).Model(&models.InterviewQuestion{}).
		Where("interview_id = ?", interviewID).
		Select("COALESCE(MAX(sequence_order), 0)").
		Scan(&maxOrder).Error
	if err != nil {
		return err
	}

	for i := range questions {
		questions[i].InterviewID = interviewID
		questions[i].Order = maxOrder + i + 1
	}
	if len(questions) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&questions).Error
}

func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*models.InterviewQuestion, error) {
	var q models.InterviewQuestion
	if err := r.DB.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrQuestionNotFound)
	}
	return &q, nil
}

// ListByInterview returns questions ordered by sequence order then id.
func (r *QuestionRepository) ListByInterview(ctx context.Context, interviewID string, activeOnly bool) ([]models.InterviewQuestion, error) {
	var questions []models.InterviewQuestion
	query := r.DB.WithContext(ctx).Where("interview_id = ?", interviewID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("sequence_order ASC, id ASC").Find(&questions).Error
	return questions, err
}

// ListByIDs returns the questions with the given ids in no particular order.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []string) ([]models.InterviewQuestion, error) {
	var questions []models.InterviewQuestion
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) SetAudio(ctx context.Context, id, url, key string) error {
	return r.DB.WithContext(ctx).Model(&models.InterviewQuestion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"audio_url": url, "audio_key": key}).Error
}

func (r *QuestionRepository) Deactivate(ctx context.Context, interviewID, questionID string) error {
	res := r.DB.WithContext(ctx).Model(&models.InterviewQuestion{}).
		Where("id = ? AND interview_id = ?", questionID, interviewID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}
