package ai

import (
	"context"
	"net/http"

	"github.com/sergey214/socrates-bot2/internal/models"
)

// MockProvider is a canned-answer Provider for tests and dry runs.
type MockProvider struct {
	CompleteReply   string
	TranscribeReply string
	ImageReply      string

	CompleteErr   error
	TranscribeErr error
	ImageErr      error

	// CompleteCalls records the turns of every Complete invocation.
	CompleteCalls [][]models.Turn
}

// NewMockProvider returns a mock with sane defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		CompleteReply:   "mock answer",
		TranscribeReply: "mock transcript",
		ImageReply:      "mock image analysis",
	}
}

func (m *MockProvider) Complete(ctx context.Context, systemPrompt string, turns []models.Turn, maxTokens int) (string, error) {
	copied := make([]models.Turn, len(turns))
	copy(copied, turns)
	m.CompleteCalls = append(m.CompleteCalls, copied)
	if m.CompleteErr != nil {
		return "", m.CompleteErr
	}
	return m.CompleteReply, nil
}

func (m *MockProvider) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}
	return m.TranscribeReply, nil
}

func (m *MockProvider) AnalyzeImage(ctx context.Context, image []byte, instruction string) (string, error) {
	if m.ImageErr != nil {
		return "", m.ImageErr
	}
	return m.ImageReply, nil
}

// RateLimitedError builds the provider error an HTTP 429 produces.
func RateLimitedError(op string) error {
	return &ProviderError{StatusCode: http.StatusTooManyRequests, Operation: op, Body: "rate limited"}
}
