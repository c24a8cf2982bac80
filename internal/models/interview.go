package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SkillScores maps a skill category to a 0-100 score. Categories absent from
// the map were not assessed.
type SkillScores map[string]float64

// VoiceConfig configures text-to-speech for question audio.
type VoiceConfig struct {
	VoiceID    string  `gorm:"type:varchar(64)" json:"voiceId"`
	Model      string  `gorm:"type:varchar(64)" json:"model"`
	Stability  float64 `json:"stability"`
	Similarity float64 `json:"similarity"`
}

// Interview is one job's voice-interview offering.
type Interview struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	JobID       string          `gorm:"type:varchar(64);not null;index" json:"jobId"`
	RecruiterID string          `gorm:"type:varchar(64);not null;index" json:"recruiterId"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Status      InterviewStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	QuestionCount    int                         `json:"questionCount"`
	TimeLimitSeconds int                         `json:"timeLimitSeconds"`
	SkillCategories  datatypes.JSONSlice[string] `json:"skillCategories"`
	AutoEvaluate     bool                        `json:"autoEvaluate"`
	PassingScore     float64                     `json:"passingScore"`
	Voice            VoiceConfig                 `gorm:"embedded;embeddedPrefix:voice_" json:"voice"`
	Questions        []InterviewQuestion         `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`

	TotalSessions     int     `gorm:"not null;default:0" json:"totalSessions"`
	CompletedSessions int     `gorm:"not null;default:0" json:"completedSessions"`
	AverageScore      float64 `gorm:"not null;default:0" json:"averageScore"`

	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (i *Interview) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// InterviewQuestion is one ordered prompt of an interview.
type InterviewQuestion struct {
	ID               string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	InterviewID      string                      `gorm:"type:varchar(36);not null;uniqueIndex:idx_question_order" json:"interviewId"`
	Text             string                      `gorm:"type:text;not null" json:"text"`
	Category         SkillCategory               `gorm:"type:varchar(32);not null" json:"category"`
	Difficulty       Difficulty                  `gorm:"type:varchar(16);not null" json:"difficulty"`
	TimeLimitSeconds int                         `json:"timeLimitSeconds"`
	Order            int                         `gorm:"column:sequence_order;not null;uniqueIndex:idx_question_order" json:"order"`
	AudioURL         string                      `gorm:"type:text" json:"audioUrl,omitempty"`
	AudioKey         string                      `gorm:"type:varchar(255)" json:"-"`
	ExpectedKeywords datatypes.JSONSlice[string] `json:"expectedKeywords,omitempty"`
	ScoringCriteria  string                      `gorm:"type:text" json:"scoringCriteria,omitempty"`
	IsActive         bool                        `gorm:"not null;index" json:"isActive"`
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
}

func (q *InterviewQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// CandidateView hides the fields only the scorer may see.
func (q InterviewQuestion) CandidateView() InterviewQuestion {
	q.ExpectedKeywords = nil
	q.ScoringCriteria = ""
	return q
}
