package models

type InterviewStatus string

const (
	InterviewDraft     InterviewStatus = "draft"
	InterviewActive    InterviewStatus = "active"
	InterviewPaused    InterviewStatus = "paused"
	InterviewCompleted InterviewStatus = "completed"
	InterviewExpired   InterviewStatus = "expired"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
	SessionExpired    SessionStatus = "expired"
)

// IsTerminal reports whether the session can no longer change status.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned || s == SessionExpired
}

type ResponseStatus string

const (
	ResponsePending      ResponseStatus = "pending"
	ResponseTranscribing ResponseStatus = "transcribing"
	ResponseEvaluating   ResponseStatus = "evaluating"
	ResponseCompleted    ResponseStatus = "completed"
	ResponseFailed       ResponseStatus = "failed"
)

func (s ResponseStatus) IsTerminal() bool {
	return s == ResponseCompleted || s == ResponseFailed
}

// responseTransitions is the processing DAG. Terminal states have no edges.
var responseTransitions = map[ResponseStatus][]ResponseStatus{
	ResponsePending:      {ResponseTranscribing, ResponseFailed},
	ResponseTranscribing: {ResponseEvaluating, ResponseFailed},
	ResponseEvaluating:   {ResponseCompleted, ResponseFailed},
}

// CanTransition reports whether a response may move from one status to another.
func CanTransition(from, to ResponseStatus) bool {
	for _, next := range responseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type SkillCategory string

const (
	SkillCommunication  SkillCategory = "communication"
	SkillTechnical      SkillCategory = "technical"
	SkillConfidence     SkillCategory = "confidence"
	SkillProblemSolving SkillCategory = "problem_solving"
	SkillLeadership     SkillCategory = "leadership"
	SkillTeamwork       SkillCategory = "teamwork"
)

// contains all supported skill categories
var ValidSkillCategories = map[SkillCategory]bool{
	SkillCommunication:  true,
	SkillTechnical:      true,
	SkillConfidence:     true,
	SkillProblemSolving: true,
	SkillLeadership:     true,
	SkillTeamwork:       true,
}

func SkillCategoriesList() []string {
	return []string{"communication", "technical", "confidence", "problem_solving", "leadership", "teamwork"}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

type Evaluator string

const (
	EvaluatorAI     Evaluator = "ai"
	EvaluatorManual Evaluator = "manual"
	EvaluatorHybrid Evaluator = "hybrid"
)

type Recommendation string

const (
	RecommendShortlist Recommendation = "shortlist"
	RecommendConsider  Recommendation = "consider"
	RecommendReject    Recommendation = "reject"
)

var ValidRecommendations = map[Recommendation]bool{
	RecommendShortlist: true,
	RecommendConsider:  true,
	RecommendReject:    true,
}

type Role string

const (
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
)

// Default interview settings applied when a recruiter leaves them unset.
const (
	DefaultQuestionCount    = 5
	DefaultTimeLimitSeconds = 120
	DefaultPassingScore     = 60.0
	MaxQuestionCount        = 20
)
