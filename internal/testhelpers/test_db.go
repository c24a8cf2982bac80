package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"hirevoice/interview/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	openSQLite = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}
	migrateSchema = func(db *gorm.DB) error { return db.AutoMigrate(models.AllModels()...) }
)

// SetupTestDB creates an isolated in-memory SQLite database for tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := openSQLite(dsn)
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	if err := migrateSchema(db); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to access sql.DB: %v", err))
	}
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// SeedInterview stores an active interview with the given question texts,
// ordered 1..N, all technical and active.
func SeedInterview(t *testing.T, db *gorm.DB, texts ...string) *models.Interview {
	t.Helper()

	interview := &models.Interview{
		JobID:            "job-1",
		RecruiterID:      "recruiter-1",
		Title:            "Backend Engineer",
		Status:           models.InterviewActive,
		QuestionCount:    len(texts),
		TimeLimitSeconds: models.DefaultTimeLimitSeconds,
		AutoEvaluate:     true,
		PassingScore:     models.DefaultPassingScore,
	}
	for i, text := range texts {
		interview.Questions = append(interview.Questions, models.InterviewQuestion{
			Text:             text,
			Category:         models.SkillTechnical,
			Difficulty:       models.DifficultyMedium,
			TimeLimitSeconds: models.DefaultTimeLimitSeconds,
			Order:            i + 1,
			ExpectedKeywords: []string{"go"},
			ScoringCriteria:  "clarity",
			IsActive:         true,
		})
	}
	if err := db.Create(interview).Error; err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	return interview
}
