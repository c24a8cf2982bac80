package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hirevoice/interview/internal/aggregator"
	"hirevoice/interview/internal/apperr"
	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/evaluation"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/pipeline"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/speech"
	"hirevoice/interview/internal/storage/local"
	"hirevoice/interview/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	failures atomic.Int32
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (*speech.Transcript, error) {
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, errors.New("stt unavailable")
	}
	return &speech.Transcript{Text: "my answer", Confidence: 0.9}, nil
}

func (f *fakeTranscriber) Name() string { return "fake" }

type gatedScorer struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	scores map[string]float64
}

func (g *gatedScorer) hold(questionText string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[questionText] = ch
	return ch
}

func (g *gatedScorer) ScoreAnswer(ctx context.Context, in evaluation.AnswerInput) (*evaluation.AnswerScore, error) {
	g.mu.Lock()
	gate := g.gates[in.Question.Text]
	score, ok := g.scores[in.Question.Text]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		score = 75
	}
	return &evaluation.AnswerScore{
		Score:       score,
		Feedback:    "ok",
		SkillScores: models.SkillScores{string(in.Question.Category): score},
	}, nil
}

type fakeWriter struct{}

func (fakeWriter) Summarize(_ context.Context, in evaluation.SummaryInput) (*evaluation.Summary, error) {
	rec := models.RecommendReject
	if in.OverallScore >= in.PassingScore {
		rec = models.RecommendShortlist
	}
	return &evaluation.Summary{
		OverallFeedback:      "Summary",
		Strengths:            []string{"clear"},
		Weaknesses:           []string{},
		Recommendation:       rec,
		RecommendationReason: "score based",
	}, nil
}

type harness struct {
	manager     *Manager
	repos       *repositories.Repositories
	interview   *models.Interview
	transcriber *fakeTranscriber
	scorer      *gatedScorer
}

var (
	anonymous = models.Viewer{}
	recruiter = models.Viewer{UserID: "recruiter-1", Role: models.RoleRecruiter}
)

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testhelpers.SetupTestDB(t)
	repos := repositories.New(db)
	interview := testhelpers.SeedInterview(t, db, "Q1", "Q2", "Q3")

	store, err := local.NewStore(t.TempDir(), "http://localhost:8080/uploads/")
	require.NoError(t, err)

	transcriber := &fakeTranscriber{}
	scorer := &gatedScorer{gates: map[string]chan struct{}{}, scores: map[string]float64{}}
	p := pipeline.New(repos, transcriber, scorer, nil, config.PipelineConfig{
		Workers:           2,
		QueueSize:         16,
		EnqueueTimeout:    time.Second,
		TranscribeTimeout: 2 * time.Second,
		EvaluateTimeout:   10 * time.Second,
	}, nil)
	p.Start()

	h := &harness{
		manager:     NewManager(repos, p, store, aggregator.New(fakeWriter{}, time.Second, nil), nil, time.Hour, nil),
		repos:       repos,
		interview:   interview,
		transcriber: transcriber,
		scorer:      scorer,
	}
	// release held scorers before draining the pool
	t.Cleanup(func() {
		scorer.mu.Lock()
		for text, gate := range scorer.gates {
			select {
			case <-gate:
			default:
				close(gate)
			}
			delete(scorer.gates, text)
		}
		scorer.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Stop(ctx)
	})
	return h
}

func (h *harness) start(t *testing.T, viewer models.Viewer) *models.StartSessionResponse {
	t.Helper()
	started, err := h.manager.Start(context.Background(), h.interview.ID, viewer, models.StartSessionRequest{CandidateName: "Ada"})
	require.NoError(t, err)
	return started
}

func (h *harness) submit(t *testing.T, sessionID string, questionIndex int) *models.InterviewResponse {
	t.Helper()
	resp, err := h.manager.SubmitAnswer(context.Background(), sessionID, anonymous, Answer{
		QuestionID:        h.interview.Questions[questionIndex].ID,
		Audio:             []byte("fake-audio"),
		ContentType:       "audio/webm",
		AnswerTimeSeconds: 30,
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) waitFor(t *testing.T, responseID string, status models.ResponseStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := h.manager.ResponseStatus(context.Background(), responseID, anonymous)
		return err == nil && resp.Status == status
	}, 5*time.Second, 10*time.Millisecond)
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected apperr.Error, got %v", err)
	return appErr.Code
}

func TestStartSnapshotsActiveQuestions(t *testing.T) {
	h := newHarness(t)
	started := h.start(t, anonymous)

	assert.Equal(t, models.SessionInProgress, started.Session.Status)
	assert.Equal(t, 3, started.Session.TotalQuestions)
	assert.Equal(t, 0, started.Question.Index)
	assert.True(t, started.Question.HasNext)
	require.NotNil(t, started.Question.Question)
	assert.Equal(t, "Q1", started.Question.Question.Text)
	assert.Empty(t, started.Question.Question.ExpectedKeywords)
	assert.Nil(t, started.Session.CandidateID)

	interview, err := h.repos.Interviews.GetByID(context.Background(), h.interview.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, interview.TotalSessions)
}

func TestStartRejectsInactiveInterview(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repos.DB.Model(&models.Interview{}).Where("id = ?", h.interview.ID).
		Update("status", models.InterviewPaused).Error)

	_, err := h.manager.Start(context.Background(), h.interview.ID, anonymous, models.StartSessionRequest{})
	assert.Equal(t, "interview_not_active", appCode(t, err))

	_, err = h.manager.Start(context.Background(), "missing", anonymous, models.StartSessionRequest{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestStartRejectsInvalidEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Start(context.Background(), h.interview.ID, anonymous, models.StartSessionRequest{CandidateEmail: "nope"})

	var invalid *models.ErrorResponse
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "invalid_email", invalid.Code)
}

func TestSnapshotSurvivesQuestionEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	started := h.start(t, anonymous)

	require.NoError(t, h.repos.Questions.Deactivate(ctx, h.interview.ID, h.interview.Questions[1].ID))
	require.NoError(t, h.repos.Questions.Append(ctx, h.interview.ID, []models.InterviewQuestion{{
		Text: "Q4", Category: models.SkillCommunication, Difficulty: models.DifficultyEasy, IsActive: true,
	}}))

	view, err := h.manager.Advance(ctx, started.Session.ID, anonymous)
	require.NoError(t, err)
	require.NotNil(t, view.Question)
	assert.Equal(t, "Q2", view.Question.Text)
	assert.Equal(t, 3, view.Total)

	_, err = h.manager.SubmitAnswer(ctx, started.Session.ID, anonymous, Answer{
		QuestionID: h.interview.Questions[1].ID, Audio: []byte("a"), ContentType: "audio/webm",
	})
	assert.Equal(t, "question_inactive", appCode(t, err))

	session, err := h.repos.Sessions.GetByID(ctx, started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, session.TotalQuestions)
	assert.Len(t, session.QuestionOrder, 3)

	responses, err := h.repos.Responses.ListBySession(ctx, started.Session.ID)
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestAdvancePastLastQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t, anonymous).Session.ID

	var view *models.QuestionView
	var err error
	for i := 1; i <= 2; i++ {
		view, err = h.manager.Advance(ctx, id, anonymous)
		require.NoError(t, err)
		assert.Equal(t, i, view.Index)
		assert.False(t, view.Exhausted)
	}
	assert.False(t, view.HasNext)

	for i := 0; i < 2; i++ {
		view, err = h.manager.Advance(ctx, id, anonymous)
		require.NoError(t, err)
		assert.True(t, view.Exhausted)
		assert.Equal(t, 3, view.Index)
		assert.Nil(t, view.Question)
	}

	current, err := h.manager.CurrentQuestion(ctx, id, anonymous)
	require.NoError(t, err)
	assert.True(t, current.Exhausted)

	session, err := h.repos.Sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, session.CurrentQuestionIndex)
}

func TestConcurrentAdvanceIsSerialized(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, anonymous).Session.ID

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.manager.Advance(context.Background(), id, anonymous)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	session, err := h.repos.Sessions.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, session.CurrentQuestionIndex)
	assert.Equal(t, 0, h.manager.locks.size())
}

func TestSubmitRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t, anonymous).Session.ID

	_, err := h.manager.SubmitAnswer(ctx, id, anonymous, Answer{QuestionID: h.interview.Questions[2].ID, Audio: []byte("a")})
	assert.Equal(t, "question_not_reached", appCode(t, err))

	_, err = h.manager.SubmitAnswer(ctx, id, anonymous, Answer{QuestionID: "missing", Audio: []byte("a")})
	assert.Equal(t, "question_not_found", appCode(t, err))

	_, err = h.manager.SubmitAnswer(ctx, id, anonymous, Answer{QuestionID: h.interview.Questions[0].ID})
	assert.Equal(t, "missing_audio", appCode(t, err))

	_, err = h.manager.Abandon(ctx, id, anonymous)
	require.NoError(t, err)

	_, err = h.manager.SubmitAnswer(ctx, id, anonymous, Answer{QuestionID: h.interview.Questions[0].ID, Audio: []byte("a")})
	assert.Equal(t, "session_not_active", appCode(t, err))
}

func TestFailedResponseBlocksCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t, anonymous).Session.ID

	h.transcriber.failures.Store(1)
	first := h.submit(t, id, 0)
	h.waitFor(t, first.ID, models.ResponseFailed)

	_, err := h.manager.Complete(ctx, id, anonymous)
	var blocking *apperr.BlockingError
	require.ErrorAs(t, err, &blocking)
	assert.Equal(t, 1, blocking.Count)
	assert.Equal(t, []string{first.ID}, blocking.ResponseIDs)

	retry := h.submit(t, id, 0)
	assert.Equal(t, 2, retry.Attempt)
	h.waitFor(t, retry.ID, models.ResponseCompleted)

	session, err := h.manager.Complete(ctx, id, anonymous)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
}

func TestResubmitRequiresFailedLatestAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.scorer.scores = map[string]float64{"Q1": 40}
	gate := h.scorer.hold("Q1")
	id := h.start(t, anonymous).Session.ID
	again := Answer{QuestionID: h.interview.Questions[0].ID, Audio: []byte("again"), ContentType: "audio/webm"}

	first := h.submit(t, id, 0)
	h.waitFor(t, first.ID, models.ResponseEvaluating)

	_, err := h.manager.SubmitAnswer(ctx, id, anonymous, again)
	assert.Equal(t, "answer_already_submitted", appCode(t, err))

	close(gate)
	h.waitFor(t, first.ID, models.ResponseCompleted)

	_, err = h.manager.SubmitAnswer(ctx, id, anonymous, again)
	assert.Equal(t, "answer_already_submitted", appCode(t, err))

	responses, err := h.repos.Responses.ListBySession(ctx, id)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	session, err := h.manager.Complete(ctx, id, anonymous)
	require.NoError(t, err)
	require.NotNil(t, session.TotalScore)
	assert.Equal(t, 40.0, *session.TotalScore)
}

func TestCompleteWithoutAnswers(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, anonymous).Session.ID

	_, err := h.manager.Complete(context.Background(), id, anonymous)
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	assert.Equal(t, "no_completed_responses", appCode(t, err))
}

func TestEndToEndThreeQuestions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.scorer.scores = map[string]float64{"Q1": 80, "Q2": 90, "Q3": 100}
	gate := h.scorer.hold("Q3")

	id := h.start(t, anonymous).Session.ID

	r1 := h.submit(t, id, 0)
	h.waitFor(t, r1.ID, models.ResponseCompleted)
	_, err := h.manager.Advance(ctx, id, anonymous)
	require.NoError(t, err)

	r2 := h.submit(t, id, 1)
	h.waitFor(t, r2.ID, models.ResponseCompleted)
	_, err = h.manager.Advance(ctx, id, anonymous)
	require.NoError(t, err)

	r3 := h.submit(t, id, 2)
	h.waitFor(t, r3.ID, models.ResponseEvaluating)

	_, err = h.manager.Complete(ctx, id, anonymous)
	var blocking *apperr.BlockingError
	require.ErrorAs(t, err, &blocking)
	assert.Equal(t, 1, blocking.Count)

	close(gate)
	h.waitFor(t, r3.ID, models.ResponseCompleted)

	session, err := h.manager.Complete(ctx, id, anonymous)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	require.NotNil(t, session.TotalScore)
	assert.Equal(t, 90.0, *session.TotalScore)
	assert.Contains(t, []models.Recommendation{models.RecommendShortlist, models.RecommendConsider, models.RecommendReject}, session.Recommendation)
	assert.Equal(t, 90.0, session.SkillScores.Data()["technical"])
	require.NotNil(t, session.CompletedAt)

	interview, err := h.repos.Interviews.GetByID(ctx, h.interview.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, interview.CompletedSessions)
	assert.Equal(t, 90.0, interview.AverageScore)

	_, err = h.manager.Complete(ctx, id, anonymous)
	assert.Equal(t, "session_not_active", appCode(t, err))
}

func TestExpiredSessionIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t, anonymous).Session.ID

	h.manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := h.manager.Advance(ctx, id, anonymous)
	assert.Equal(t, "session_expired", appCode(t, err))

	session, err := h.manager.Get(ctx, id, anonymous)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, session.Status)

	_, err = h.manager.SubmitAnswer(ctx, id, anonymous, Answer{QuestionID: h.interview.Questions[0].ID, Audio: []byte("a")})
	assert.Equal(t, "session_not_active", appCode(t, err))
}

func TestResultsVisibilityAndRedaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate := models.Viewer{UserID: "cand-1", Role: models.RoleCandidate}

	started, err := h.manager.Start(ctx, h.interview.ID, candidate, models.StartSessionRequest{})
	require.NoError(t, err)
	id := started.Session.ID
	require.NotNil(t, started.Session.CandidateID)

	_, err = h.manager.Results(ctx, id, candidate)
	assert.Equal(t, "session_in_progress", appCode(t, err))

	resp, err := h.manager.SubmitAnswer(ctx, id, candidate, Answer{
		QuestionID: h.interview.Questions[0].ID, Audio: []byte("a"), ContentType: "audio/webm",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := h.manager.ResponseStatus(ctx, resp.ID, candidate)
		return err == nil && got.Status == models.ResponseCompleted
	}, 5*time.Second, 10*time.Millisecond)

	_, err = h.manager.Complete(ctx, id, candidate)
	require.NoError(t, err)

	results, err := h.manager.Results(ctx, id, candidate)
	require.NoError(t, err)
	require.Len(t, results.Responses, 1)
	assert.Empty(t, results.Responses[0].AudioURL)
	assert.Equal(t, "Backend Engineer", results.Interview.Title)

	results, err = h.manager.Results(ctx, id, recruiter)
	require.NoError(t, err)
	assert.Contains(t, results.Responses[0].AudioURL, "http://localhost:8080/uploads/answers/"+id)

	_, err = h.manager.Results(ctx, id, models.Viewer{UserID: "cand-2", Role: models.RoleCandidate})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = h.manager.Results(ctx, id, models.Viewer{UserID: "recruiter-2", Role: models.RoleRecruiter})
	assert.Equal(t, "not_interview_owner", appCode(t, err))

	_, err = h.manager.Results(ctx, id, anonymous)
	assert.Equal(t, "not_session_candidate", appCode(t, err))
}

func TestListByInterviewRequiresOwner(t *testing.T) {
	h := newHarness(t)
	h.start(t, anonymous)
	h.start(t, anonymous)

	sessions, err := h.manager.ListByInterview(context.Background(), h.interview.ID, recruiter)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	_, err = h.manager.ListByInterview(context.Background(), h.interview.ID, anonymous)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	locks := newKeyedMutex()
	unlock := locks.Lock("a")
	assert.Equal(t, 1, locks.size())

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	require.Eventually(t, func() bool { return locks.size() == 0 }, time.Second, time.Millisecond)
}
