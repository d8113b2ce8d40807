package ai

import (
	"context"

	"github.com/sergey214/socrates-bot2/internal/models"
)

// Provider is the uniform interface over an AI backend. Implementations may
// speak different wire protocols as long as these three operations hold:
// Complete sends the system prompt plus the ordered history (oldest first)
// and returns the model's reply, Transcribe turns audio into text,
// AnalyzeImage answers an instruction about one image in a single call.
type Provider interface {
	Complete(ctx context.Context, systemPrompt string, turns []models.Turn, maxTokens int) (string, error)
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
	AnalyzeImage(ctx context.Context, image []byte, instruction string) (string, error)
}
