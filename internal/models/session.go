package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InterviewSession is one candidate's attempt at an interview.
type InterviewSession struct {
	ID             string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	InterviewID    string        `gorm:"type:varchar(36);not null;index" json:"interviewId"`
	CandidateID    *string       `gorm:"type:varchar(64);index" json:"candidateId,omitempty"`
	CandidateName  string        `gorm:"type:varchar(255)" json:"candidateName,omitempty"`
	CandidateEmail string        `gorm:"type:varchar(255)" json:"candidateEmail,omitempty"`
	Status         SessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	CurrentQuestionIndex int                         `gorm:"not null;default:0" json:"currentQuestionIndex"`
	TotalQuestions       int                         `gorm:"not null" json:"totalQuestions"`
	QuestionOrder        datatypes.JSONSlice[string] `json:"-"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	ExpiresAt   time.Time  `gorm:"index" json:"expiresAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	TotalScore           *float64                       `json:"totalScore,omitempty"`
	SkillScores          datatypes.JSONType[SkillScores] `json:"skillScores"`
	OverallFeedback      string                         `gorm:"type:text" json:"overallFeedback,omitempty"`
	Strengths            datatypes.JSONSlice[string]    `json:"strengths,omitempty"`
	Weaknesses           datatypes.JSONSlice[string]    `json:"weaknesses,omitempty"`
	Recommendation       Recommendation                 `gorm:"type:varchar(16)" json:"recommendation,omitempty"`
	RecommendationReason string                         `gorm:"type:text" json:"recommendationReason,omitempty"`

	Responses []InterviewResponse `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`

	Version   int       `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *InterviewSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the session deadline has passed at now.
func (s *InterviewSession) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// InterviewResponse is one answer to one question within a session.
type InterviewResponse struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID  string `gorm:"type:varchar(36);not null;uniqueIndex:idx_response_attempt" json:"sessionId"`
	QuestionID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_response_attempt" json:"questionId"`
	Attempt    int    `gorm:"not null;uniqueIndex:idx_response_attempt" json:"attempt"`

	AudioURL          string  `gorm:"type:text" json:"audioUrl,omitempty"`
	AudioKey          string  `gorm:"type:varchar(255)" json:"-"`
	AnswerTimeSeconds float64 `json:"answerTimeSeconds"`

	Transcript           string   `gorm:"type:text" json:"transcript,omitempty"`
	TranscriptConfidence *float64 `json:"transcriptConfidence,omitempty"`
	WordCount            int      `json:"wordCount,omitempty"`

	Score       *float64                       `json:"score,omitempty"`
	Feedback    string                         `gorm:"type:text" json:"feedback,omitempty"`
	SkillScores datatypes.JSONType[SkillScores] `json:"skillScores"`
	EvaluatedBy Evaluator                      `gorm:"type:varchar(16)" json:"evaluatedBy,omitempty"`

	Status          ResponseStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ProcessingError string         `gorm:"type:text" json:"processingError,omitempty"`

	SubmittedAt   time.Time  `json:"submittedAt"`
	TranscribedAt *time.Time `json:"transcribedAt,omitempty"`
	EvaluatedAt   *time.Time `json:"evaluatedAt,omitempty"`
	UpdatedAt     time.Time  `gorm:"index" json:"updatedAt"`
}

func (r *InterviewResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AllModels lists every table the service migrates.
func AllModels() []interface{} {
	return []interface{}{
		&Interview{},
		&InterviewQuestion{},
		&InterviewSession{},
		&InterviewResponse{},
	}
}
