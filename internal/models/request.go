package models

import (
	"strings"
)

type CreateInterviewRequest struct {
	JobID            string       `json:"jobId"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	QuestionCount    int          `json:"questionCount"`
	TimeLimitSeconds int          `json:"timeLimitSeconds"`
	SkillCategories  []string     `json:"skillCategories"`
	AutoEvaluate     *bool        `json:"autoEvaluate"`
	PassingScore     *float64     `json:"passingScore"`
	Voice            *VoiceConfig `json:"voice"`
}

// implements the Validator interface
func (r *CreateInterviewRequest) Validate() error {
	r.JobID = strings.TrimSpace(r.JobID)
	r.Title = strings.TrimSpace(r.Title)

	var details []ValidationErrorDetail
	if r.JobID == "" {
		details = append(details, ValidationErrorDetail{Field: "jobId", Reason: "required"})
	}
	if r.Title == "" {
		details = append(details, ValidationErrorDetail{Field: "title", Reason: "required"})
	}
	if r.QuestionCount < 0 || r.QuestionCount > MaxQuestionCount {
		details = append(details, ValidationErrorDetail{Field: "questionCount", Reason: "must be between 1 and 20"})
	}
	if r.TimeLimitSeconds < 0 {
		details = append(details, ValidationErrorDetail{Field: "timeLimitSeconds", Reason: "must be positive"})
	}
	if r.PassingScore != nil && (*r.PassingScore < 0 || *r.PassingScore > 100) {
		details = append(details, ValidationErrorDetail{Field: "passingScore", Reason: "must be between 0 and 100"})
	}
	for i, category := range r.SkillCategories {
		normalized := strings.ToLower(strings.TrimSpace(category))
		if !ValidSkillCategories[SkillCategory(normalized)] {
			details = append(details, ValidationErrorDetail{
				Field:  "skillCategories",
				Reason: "unknown category " + category,
			})
			continue
		}
		r.SkillCategories[i] = normalized
	}

	if len(details) > 0 {
		return &ErrorResponse{
			Code:    "invalid_interview",
			Message: "Interview request is invalid",
			Details: details,
		}
	}

	if r.QuestionCount == 0 {
		r.QuestionCount = DefaultQuestionCount
	}
	if r.TimeLimitSeconds == 0 {
		r.TimeLimitSeconds = DefaultTimeLimitSeconds
	}
	if len(r.SkillCategories) == 0 {
		r.SkillCategories = SkillCategoriesList()
	}
	return nil
}

type QuestionInput struct {
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
	ExpectedKeywords []string `json:"expectedKeywords"`
	ScoringCriteria  string   `json:"scoringCriteria"`
}

func (q *QuestionInput) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))

	if q.Text == "" {
		return &ErrorResponse{Code: "missing_text", Message: "Question text is required"}
	}
	if !ValidSkillCategories[SkillCategory(q.Category)] {
		return &ErrorResponse{
			Code:    "invalid_category",
			Message: "Category must be one of: " + strings.Join(SkillCategoriesList(), ", "),
		}
	}
	if q.Difficulty == "" {
		q.Difficulty = string(DifficultyMedium)
	}
	if !ValidDifficulties[Difficulty(q.Difficulty)] {
		return &ErrorResponse{
			Code:    "invalid_difficulty",
			Message: "Difficulty must be one of: easy, medium, hard",
		}
	}
	if q.TimeLimitSeconds < 0 {
		return &ErrorResponse{Code: "invalid_time_limit", Message: "Time limit must be positive"}
	}
	return nil
}

type AddQuestionsRequest struct {
	Questions []QuestionInput `json:"questions"`
}

func (r *AddQuestionsRequest) Validate() error {
	if len(r.Questions) == 0 {
		return &ErrorResponse{Code: "missing_questions", Message: "At least one question is required"}
	}
	if len(r.Questions) > MaxQuestionCount {
		return &ErrorResponse{Code: "too_many_questions", Message: "At most 20 questions can be added at once"}
	}
	for i := range r.Questions {
		if err := r.Questions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type GenerateQuestionsRequest struct {
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

func (r *GenerateQuestionsRequest) Validate() error {
	if r.Count < 0 || r.Count > MaxQuestionCount {
		return &ErrorResponse{Code: "invalid_count", Message: "Count must be between 1 and 20"}
	}
	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	if r.Difficulty != "" && !ValidDifficulties[Difficulty(r.Difficulty)] {
		return &ErrorResponse{
			Code:    "invalid_difficulty",
			Message: "Difficulty must be one of: easy, medium, hard",
		}
	}
	return nil
}

type StartSessionRequest struct {
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
}

func (r *StartSessionRequest) Validate() error {
	r.CandidateName = strings.TrimSpace(r.CandidateName)
	r.CandidateEmail = strings.TrimSpace(r.CandidateEmail)
	if r.CandidateEmail != "" && !strings.Contains(r.CandidateEmail, "@") {
		return &ErrorResponse{Code: "invalid_email", Message: "Candidate email is malformed"}
	}
	return nil
}
