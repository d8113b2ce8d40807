package normalize

import (
	"context"
	"errors"
	"fmt"

	"github.com/sergey214/socrates-bot2/internal/services/ai"
	"github.com/sergey214/socrates-bot2/internal/services/document"
)

// Modality-specific failures. Callers map these to user-facing messages
// and must not fall through to treating the raw payload as text.
var (
	ErrVoiceTooLarge       = errors.New("voice payload exceeds size limit")
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// visionInstruction is the fixed prompt for photo analysis: extraction and
// analysis happen in the same call.
const visionInstruction = "Ты юрист. Извлеки весь текст с фото и проанализируй его: " +
	"найди риски, незаконные пункты, дай рекомендации. " +
	"Если это не документ — скажи об этом. Отвечай на русском."

// Normalizer converts the four input modalities into plain text. Text,
// voice and document outputs are ordinary user turns; Image output is an
// already-final answer that bypasses the chat completion step.
type Normalizer struct {
	provider      ai.Provider
	extractor     *document.Extractor
	maxVoiceBytes int64
	language      string
}

// NewNormalizer wires the normalizer to its backend calls.
func NewNormalizer(provider ai.Provider, extractor *document.Extractor, maxVoiceBytes int64, language string) *Normalizer {
	return &Normalizer{
		provider:      provider,
		extractor:     extractor,
		maxVoiceBytes: maxVoiceBytes,
		language:      language,
	}
}

// Text is a pass-through.
func (n *Normalizer) Text(text string) string {
	return text
}

// Voice transcribes the audio payload.
func (n *Normalizer) Voice(ctx context.Context, audio []byte) (string, error) {
	if int64(len(audio)) > n.maxVoiceBytes {
		return "", ErrVoiceTooLarge
	}

	text, err := n.provider.Transcribe(ctx, audio, n.language)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	return text, nil
}

// Document extracts bounded plain text from the file payload. An empty
// extraction surfaces document.ErrEmptyDocument.
func (n *Normalizer) Document(data []byte, filename string) (string, error) {
	return n.extractor.Extract(data, filename)
}

// Image runs the single vision call; the returned text is the final answer.
func (n *Normalizer) Image(ctx context.Context, image []byte) (string, error) {
	return n.provider.AnalyzeImage(ctx, image, visionInstruction)
}
