package models

// uniform error responses
type ErrorResponse struct {
	Code          string                  `json:"code"`
	Message       string                  `json:"message"`
	Details       []ValidationErrorDetail `json:"details,omitempty"`
	BlockingCount int                     `json:"blockingCount,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// raw LLM output plus bookkeeping
type GenerationResponse struct {
	Content   string             `json:"content"`
	RequestID string             `json:"request_id"`
	Metadata  GenerationMetadata `json:"metadata"`
}

type GenerationMetadata struct {
	ProcessingTime int    `json:"processing_time_ms"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
}

// QuestionView is what a candidate sees for the question at an index.
type QuestionView struct {
	Index     int                `json:"index"`
	Total     int                `json:"total"`
	Exhausted bool               `json:"exhausted"`
	HasNext   bool               `json:"hasNext"`
	Question  *InterviewQuestion `json:"question,omitempty"`
}

type StartSessionResponse struct {
	Session  *InterviewSession `json:"session"`
	Question QuestionView      `json:"question"`
}

// SessionResults is the terminal view of a session.
type SessionResults struct {
	Session   *InterviewSession   `json:"session"`
	Interview InterviewSummary    `json:"interview"`
	Responses []InterviewResponse `json:"responses"`
}

type InterviewSummary struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	JobID        string  `json:"jobId"`
	PassingScore float64 `json:"passingScore"`
}
