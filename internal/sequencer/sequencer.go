// Package sequencer orders an interview's questions and answers positional
// queries against that order.
package sequencer

import (
	"errors"
	"sort"

	"hirevoice/interview/internal/models"
)

// ErrSequenceExhausted is returned for an index past the last question.
var ErrSequenceExhausted = errors.New("question sequence exhausted")

// Sequence is an immutable, totally ordered list of questions.
type Sequence struct {
	questions []models.InterviewQuestion
}

// New builds a sequence from the active questions in questions, sorted by
// order with ties broken by id.
func New(questions []models.InterviewQuestion) *Sequence {
	active := make([]models.InterviewQuestion, 0, len(questions))
	for _, q := range questions {
		if q.IsActive {
			active = append(active, q)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Order != active[j].Order {
			return active[i].Order < active[j].Order
		}
		return active[i].ID < active[j].ID
	})
	return &Sequence{questions: active}
}

// FromSnapshot rebuilds a sequence in the exact id order captured when a
// session started. Questions deactivated since then are kept; ids that no
// longer resolve are reported as an error.
func FromSnapshot(ids []string, questions []models.InterviewQuestion) (*Sequence, error) {
	byID := make(map[string]models.InterviewQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ordered := make([]models.InterviewQuestion, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, errors.New("snapshot references unknown question " + id)
		}
		ordered = append(ordered, q)
	}
	return &Sequence{questions: ordered}, nil
}

// At returns the question at zero-based index i.
func (s *Sequence) At(i int) (*models.InterviewQuestion, error) {
	if i < 0 || i >= len(s.questions) {
		return nil, ErrSequenceExhausted
	}
	q := s.questions[i]
	return &q, nil
}

// HasNext reports whether an index after i exists.
func (s *Sequence) HasNext(i int) bool {
	return i+1 < len(s.questions)
}

func (s *Sequence) Len() int {
	return len(s.questions)
}

// IDs returns the question ids in sequence order.
func (s *Sequence) IDs() []string {
	ids := make([]string, len(s.questions))
	for i, q := range s.questions {
		ids[i] = q.ID
	}
	return ids
}

// IndexOf returns the position of questionID, or -1.
func (s *Sequence) IndexOf(questionID string) int {
	for i, q := range s.questions {
		if q.ID == questionID {
			return i
		}
	}
	return -1
}
