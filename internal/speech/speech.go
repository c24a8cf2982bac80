// Package speech defines the speech-to-text and text-to-speech
// collaborators. Vendor implementations live in subpackages.
package speech

import (
	"context"
	"fmt"
)

type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

type Transcript struct {
	Text       string
	Confidence float64
	Words      []Word
}

// Transcriber converts a fetchable audio URL into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*Transcript, error)
	Name() string
}

type Voice struct {
	ID         string
	Model      string
	Stability  float64
	Similarity float64
}

type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer renders text as speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) (*Audio, error)
	Name() string
}

// Error is a failed call to a speech vendor.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Provider + " error: " + e.Message
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
