package jobs

import (
	"context"
	"testing"
	"time"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSweep(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	repos := repositories.New(db)
	interview := testhelpers.SeedInterview(t, db, "Q1", "Q2")
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := &models.InterviewSession{InterviewID: interview.ID, Status: models.SessionInProgress, TotalQuestions: 2, ExpiresAt: now.Add(-time.Minute), Version: 1}
	live := &models.InterviewSession{InterviewID: interview.ID, Status: models.SessionInProgress, TotalQuestions: 2, ExpiresAt: now.Add(time.Hour), Version: 1}
	require.NoError(t, repos.Sessions.Create(ctx, overdue))
	require.NoError(t, repos.Sessions.Create(ctx, live))

	stale := time.Now().Add(-time.Hour)
	responses := []*models.InterviewResponse{
		{SessionID: live.ID, QuestionID: interview.Questions[0].ID, Attempt: 1, Status: models.ResponseEvaluating, SubmittedAt: stale, UpdatedAt: stale},
		{SessionID: live.ID, QuestionID: interview.Questions[1].ID, Attempt: 1, Status: models.ResponseCompleted, SubmittedAt: stale, UpdatedAt: stale},
		{SessionID: live.ID, QuestionID: interview.Questions[1].ID, Attempt: 2, Status: models.ResponsePending, SubmittedAt: time.Now()},
	}
	for _, r := range responses {
		require.NoError(t, db.Create(r).Error)
	}

	job := NewStaleSweeperJob(repos, config.SweeperConfig{StuckAfter: 10 * time.Minute}, nil)
	result, err := job.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.FailedResponses)
	assert.Equal(t, int64(1), result.ExpiredSessions)

	stuck, err := repos.Responses.GetByID(ctx, responses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseFailed, stuck.Status)
	assert.Equal(t, StuckReason, stuck.ProcessingError)

	done, err := repos.Responses.GetByID(ctx, responses[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCompleted, done.Status)

	fresh, err := repos.Responses.GetByID(ctx, responses[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponsePending, fresh.Status)

	expired, err := repos.Sessions.GetByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, expired.Status)
	assert.Equal(t, 2, expired.Version)

	running, err := repos.Sessions.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, running.Status)

	// a second sweep finds nothing new
	result, err = job.RunSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.FailedResponses)
	assert.Zero(t, result.ExpiredSessions)
}

func TestStartAndStop(t *testing.T) {
	repos := repositories.New(testhelpers.SetupTestDB(t))

	disabled := NewStaleSweeperJob(repos, config.SweeperConfig{Enabled: false, Schedule: "not a schedule"}, nil)
	require.NoError(t, disabled.Start())
	disabled.Stop()

	invalid := NewStaleSweeperJob(repos, config.SweeperConfig{Enabled: true, Schedule: "not a schedule"}, nil)
	assert.Error(t, invalid.Start())

	job := NewStaleSweeperJob(repos, config.SweeperConfig{Enabled: true, Schedule: "@every 1h", StuckAfter: time.Minute}, nil)
	require.NoError(t, job.Start())
	assert.Len(t, job.cron.Entries(), 1)
	job.Stop()
}
