package testhelpers

import (
	"testing"

	"hirevoice/interview/internal/models"
)

func TestSetupTestDBCreatesSchema(t *testing.T) {
	db := SetupTestDB(t)
	for _, model := range models.AllModels() {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T to exist", model)
		}
	}
}

func TestSeedInterviewAssignsDenseOrder(t *testing.T) {
	db := SetupTestDB(t)
	interview := SeedInterview(t, db, "one", "two", "three")

	var questions []models.InterviewQuestion
	if err := db.Where("interview_id = ?", interview.ID).Order("sequence_order").Find(&questions).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	for i, q := range questions {
		if q.Order != i+1 {
			t.Fatalf("expected order %d, got %d", i+1, q.Order)
		}
		if q.ID == "" {
			t.Fatalf("expected generated id")
		}
	}
}
