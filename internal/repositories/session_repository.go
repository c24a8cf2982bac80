package repositories

import (
	"context"
	"time"

	"hirevoice/interview/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func (r *SessionRepository) Create(ctx context.Context, session *models.InterviewSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	if err := r.DB.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	return &session, nil
}

// UpdateVersioned applies fields only if the row still carries version, and
// bumps the version. A stale version yields ErrVersionConflict.
func (r *SessionRepository) UpdateVersioned(ctx context.Context, id string, version int, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	res := r.DB.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *SessionRepository) ListByInterview(ctx context.Context, interviewID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := r.DB.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// ExpireOverdue flips every in-progress session whose deadline passed before
// now to expired and returns how many changed.
func (r *SessionRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("status = ? AND expires_at < ?", models.SessionInProgress, now).
		Updates(map[string]interface{}{
			"status":  models.SessionExpired,
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}
