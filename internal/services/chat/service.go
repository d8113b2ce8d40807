package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sergey214/socrates-bot2/internal/middleware"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sergey214/socrates-bot2/internal/services/ai"
	"github.com/sergey214/socrates-bot2/internal/services/normalize"
	"github.com/sergey214/socrates-bot2/internal/services/session"
	"github.com/sergey214/socrates-bot2/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// ErrRateLimited means the user is inside the cooldown window. Nothing was
// mutated: no history change, no count increment.
var ErrRateLimited = errors.New("request paced by cooldown")

// Answer is a finished conversational turn. QuestionID is zero when
// persistence is absent; callers then omit the rating affordance.
type Answer struct {
	Text       string
	QuestionID int64
}

// Service is the per-turn orchestrator: rate gate, normalization, history
// window, AI call, persistence. One instance serves all users.
type Service struct {
	provider       ai.Provider
	normalizer     *normalize.Normalizer
	sessions       session.Store
	limiter        middleware.RateLimiter
	store          *storage.Gateway
	metrics        *middleware.Metrics
	logger         *logrus.Logger
	systemPrompt   string
	maxTokens      int
	analysisTokens int
}

// NewService wires the orchestrator.
func NewService(
	provider ai.Provider,
	normalizer *normalize.Normalizer,
	sessions session.Store,
	limiter middleware.RateLimiter,
	store *storage.Gateway,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
	systemPrompt string,
	maxTokens int,
	analysisTokens int,
) *Service {
	return &Service{
		provider:       provider,
		normalizer:     normalizer,
		sessions:       sessions,
		limiter:        limiter,
		store:          store,
		metrics:        metrics,
		logger:         logger,
		systemPrompt:   systemPrompt,
		maxTokens:      maxTokens,
		analysisTokens: analysisTokens,
	}
}

// RegisterUser upserts the user row; called on /start and on every turn.
func (s *Service) RegisterUser(ctx context.Context, user *models.User) {
	s.store.SaveUser(ctx, user)
}

// Ask runs the full conversational pipeline for a text turn.
func (s *Service) Ask(ctx context.Context, user *models.User, question string) (*Answer, error) {
	if !s.limiter.Allow(user.ID) {
		s.metrics.RecordRateLimitRejection()
		return nil, ErrRateLimited
	}
	s.store.SaveUser(ctx, user)
	return s.answer(ctx, user.ID, s.normalizer.Text(question))
}

// AskVoice transcribes the audio, then runs the conversational pipeline on
// the transcript. The rate gate fires once, before the transcription call.
// The transcript is returned alongside the answer so the caller can echo it.
func (s *Service) AskVoice(ctx context.Context, user *models.User, audio []byte) (string, *Answer, error) {
	if !s.limiter.Allow(user.ID) {
		s.metrics.RecordRateLimitRejection()
		return "", nil, ErrRateLimited
	}
	s.store.SaveUser(ctx, user)

	transcript, err := s.normalizer.Voice(ctx, audio)
	if err != nil {
		return "", nil, err
	}

	answer, err := s.answer(ctx, user.ID, transcript)
	return transcript, answer, err
}

// answer appends the user turn, calls the model with the whole window and,
// on success, appends the assistant turn and persists the pair. On provider
// failure the user turn stays in history so a retry reuses context.
func (s *Service) answer(ctx context.Context, userID int64, question string) (*Answer, error) {
	if err := s.sessions.Append(ctx, userID, models.Turn{Role: models.RoleUser, Content: question}); err != nil {
		return nil, fmt.Errorf("failed to append user turn: %w", err)
	}

	history, err := s.sessions.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	text, err := s.complete(ctx, "complete", history, s.maxTokens)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Append(ctx, userID, models.Turn{Role: models.RoleAssistant, Content: text}); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to append assistant turn")
	}

	s.store.IncrementQuestionCount(ctx, userID)
	questionID := s.store.SaveQuestion(ctx, userID, question, text)

	return &Answer{Text: text, QuestionID: questionID}, nil
}

// AnalyzeDocument runs the single-shot document path: extraction, one
// completion over the analysis prompt, no running-history involvement.
func (s *Service) AnalyzeDocument(ctx context.Context, user *models.User, data []byte, filename string) (string, error) {
	if !s.limiter.Allow(user.ID) {
		s.metrics.RecordRateLimitRejection()
		return "", ErrRateLimited
	}
	s.store.SaveUser(ctx, user)

	text, err := s.normalizer.Document(data, filename)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"Проанализируй этот документ как юрист:\n\n%s\n\n"+
			"Найди: 1) Риски и подводные камни 2) Незаконные пункты 3) Что улучшить. Ответ КРАТКО.",
		text)

	turns := []models.Turn{{Role: models.RoleUser, Content: prompt}}
	return s.complete(ctx, "document", turns, s.analysisTokens)
}

// AnalyzePhoto runs the single-shot photo path. The vision call already
// combines extraction and analysis, so its output is the final answer.
func (s *Service) AnalyzePhoto(ctx context.Context, user *models.User, image []byte) (string, error) {
	if !s.limiter.Allow(user.ID) {
		s.metrics.RecordRateLimitRejection()
		return "", ErrRateLimited
	}
	s.store.SaveUser(ctx, user)

	start := time.Now()
	text, err := s.normalizer.Image(ctx, image)
	s.metrics.RecordAIRequest("vision", statusOf(err), time.Since(start))
	return text, err
}

// ClearHistory wipes the user's window; persisted records are untouched.
func (s *Service) ClearHistory(ctx context.Context, userID int64) {
	if err := s.sessions.Clear(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to clear history")
	}
}

// HistoryLen reports how many turns are currently remembered for the user.
func (s *Service) HistoryLen(ctx context.Context, userID int64) int {
	history, err := s.sessions.History(ctx, userID)
	if err != nil {
		return 0
	}
	return len(history)
}

// RateAnswer validates and stores a rating for a previously answered
// question. Returns false for malformed or replayed callback data.
func (s *Service) RateAnswer(ctx context.Context, questionID int64, rating int) bool {
	if questionID <= 0 || (rating != 1 && rating != 5) {
		return false
	}
	ok := s.store.SaveRating(ctx, questionID, rating)
	if ok {
		s.metrics.RecordRating(fmt.Sprintf("%d", rating))
	}
	return ok
}

func (s *Service) complete(ctx context.Context, operation string, turns []models.Turn, maxTokens int) (string, error) {
	start := time.Now()
	text, err := s.provider.Complete(ctx, s.systemPrompt, turns, maxTokens)
	s.metrics.RecordAIRequest(operation, statusOf(err), time.Since(start))
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Error("AI request failed")
		return "", err
	}
	return text, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case ai.IsRateLimited(err):
		return "rate_limited"
	default:
		return "error"
	}
}
