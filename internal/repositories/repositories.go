package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInterviewNotFound    = errors.New("interview not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrResponseNotFound     = errors.New("response not found")
	ErrVersionConflict      = errors.New("session was modified concurrently")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrInterviewStateChange = errors.New("interview is not in the expected status")
)

// Repositories groups the per-table repositories over one connection.
type Repositories struct {
	DB         *gorm.DB
	Interviews *InterviewRepository
	Questions  *QuestionRepository
	Sessions   *SessionRepository
	Responses  *ResponseRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:         db,
		Interviews: &InterviewRepository{DB: db},
		Questions:  &QuestionRepository{DB: db},
		Sessions:   &SessionRepository{DB: db},
		Responses:  &ResponseRepository{DB: db},
	}
}

// WithinTx runs fn against repositories bound to a single transaction.
func (r *Repositories) WithinTx(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
