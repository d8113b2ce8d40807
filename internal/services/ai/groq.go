package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sirupsen/logrus"
)

// Groq talks to an OpenAI-compatible endpoint (api.groq.com by default).
type Groq struct {
	cfg        *config.AIConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewGroq creates the Groq-backed provider.
func NewGroq(cfg *config.AIConfig, logger *logrus.Logger) *Groq {
	return &Groq{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the system prompt plus ordered history to chat/completions.
func (g *Groq) Complete(ctx context.Context, systemPrompt string, turns []models.Turn, maxTokens int) (string, error) {
	messages := make([]map[string]interface{}, 0, len(turns)+1)
	messages = append(messages, map[string]interface{}{
		"role":    models.RoleSystem,
		"content": systemPrompt,
	})
	for _, t := range turns {
		messages = append(messages, map[string]interface{}{
			"role":    t.Role,
			"content": t.Content,
		})
	}

	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}

	reqBody := map[string]interface{}{
		"model":       g.cfg.ChatModel,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": g.cfg.Temperature,
	}

	return g.chatCompletion(ctx, "complete", reqBody, g.cfg.ChatTimeout)
}

// Transcribe sends the audio to audio/transcriptions (Whisper).
func (g *Groq) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio.ogg")
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	w.WriteField("model", g.cfg.WhisperModel)
	if language != "" {
		w.WriteField("language", language)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.TranscribeTimeout)
	defer cancel()

	url := g.endpoint("/audio/transcriptions")
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	body, err := g.do(req, "transcribe")
	if err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse transcription response: %w", err)
	}
	return result.Text, nil
}

// AnalyzeImage sends the image plus instruction in one vision call. The
// extraction and the analysis happen in that single call; the returned text
// is already the final answer.
func (g *Groq) AnalyzeImage(ctx context.Context, image []byte, instruction string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(image)

	reqBody := map[string]interface{}{
		"model": g.cfg.VisionModel,
		"messages": []map[string]interface{}{
			{
				"role": models.RoleUser,
				"content": []map[string]interface{}{
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": "data:image/jpeg;base64," + encoded,
						},
					},
					{
						"type": "text",
						"text": instruction,
					},
				},
			},
		},
		"max_tokens": g.cfg.AnalysisTokens,
	}

	return g.chatCompletion(ctx, "vision", reqBody, g.cfg.VisionTimeout)
}

func (g *Groq) chatCompletion(ctx context.Context, op string, reqBody map[string]interface{}, timeout time.Duration) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := g.endpoint("/chat/completions")
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	body, err := g.do(req, op)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("ai error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from ai")
	}
	return result.Choices[0].Message.Content, nil
}

func (g *Groq) do(req *http.Request, op string) ([]byte, error) {
	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"operation": op,
		"status":    resp.StatusCode,
		"duration":  time.Since(start),
	}).Debug("AI request finished")

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Operation:  op,
			Body:       truncateBody(string(body)),
		}
	}
	return body, nil
}

func (g *Groq) endpoint(path string) string {
	return strings.TrimSuffix(g.cfg.BaseURL, "/") + path
}

func truncateBody(body string) string {
	const limit = 512
	if len(body) > limit {
		return body[:limit]
	}
	return body
}
