package chat

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sergey214/socrates-bot2/internal/middleware"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sergey214/socrates-bot2/internal/services/ai"
	"github.com/sergey214/socrates-bot2/internal/services/document"
	"github.com/sergey214/socrates-bot2/internal/services/normalize"
	"github.com/sergey214/socrates-bot2/internal/services/session"
	"github.com/sergey214/socrates-bot2/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// recordingStore persists into memory so tests can assert what crossed
// the gateway.
type recordingStore struct {
	*storage.NoopStore
	nextID     int64
	questions  map[int64]string
	answers    map[int64]string
	ratings    map[int64]int
	increments int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		NoopStore: storage.NewNoopStore(),
		questions: make(map[int64]string),
		answers:   make(map[int64]string),
		ratings:   make(map[int64]int),
	}
}

func (s *recordingStore) SaveQuestion(ctx context.Context, userID int64, question, answer string) (int64, error) {
	s.nextID++
	s.questions[s.nextID] = question
	s.answers[s.nextID] = answer
	return s.nextID, nil
}

func (s *recordingStore) IncrementQuestionCount(ctx context.Context, userID int64) error {
	s.increments++
	return nil
}

func (s *recordingStore) SaveRating(ctx context.Context, questionID int64, rating int) error {
	if _, ok := s.questions[questionID]; !ok {
		return storage.ErrUnknownQuestion
	}
	s.ratings[questionID] = rating
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fixture struct {
	service  *Service
	provider *ai.MockProvider
	sessions session.Store
	records  *recordingStore
}

func newFixture(t *testing.T, cooldown time.Duration, backend storage.Store) *fixture {
	t.Helper()

	provider := ai.NewMockProvider()
	extractor := document.NewExtractor(4000)
	normalizer := normalize.NewNormalizer(provider, extractor, 1024, "ru")
	sessions := session.NewMemoryStore(10, time.Hour)
	limiter := middleware.NewCooldownLimiter(cooldown, testLogger())

	records, _ := backend.(*recordingStore)
	gateway := storage.NewGatewayWith(backend, testLogger())

	service := NewService(
		provider, normalizer, sessions, limiter, gateway,
		middleware.NewMetrics(), testLogger(),
		"Ты — Сократ.", 350, 500,
	)
	return &fixture{service: service, provider: provider, sessions: sessions, records: records}
}

func sampleUser() *models.User {
	return &models.User{ID: 1, Username: "sergey", FirstName: "Сергей"}
}

func TestAskAppendsBothTurnsAndPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())
	f.provider.CompleteReply = "Статья 158 УК РФ."

	answer, err := f.service.Ask(ctx, sampleUser(), "Что будет за кражу?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if answer.Text != "Статья 158 УК РФ." {
		t.Fatalf("unexpected answer: %q", answer.Text)
	}
	if answer.QuestionID != 1 {
		t.Fatalf("expected question id 1, got %d", answer.QuestionID)
	}

	history, _ := f.sessions.History(ctx, 1)
	if len(history) != 2 {
		t.Fatalf("expected 2 turns after one exchange, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected turn roles: %s, %s", history[0].Role, history[1].Role)
	}

	if f.records.increments != 1 {
		t.Fatalf("expected one question count increment, got %d", f.records.increments)
	}
	if f.records.questions[1] != "Что будет за кражу?" {
		t.Fatalf("persisted question mismatch: %q", f.records.questions[1])
	}
}

func TestAskSendsFullWindowToProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())

	f.service.Ask(ctx, sampleUser(), "первый вопрос")
	f.service.Ask(ctx, sampleUser(), "второй вопрос")

	if len(f.provider.CompleteCalls) != 2 {
		t.Fatalf("expected 2 completion calls, got %d", len(f.provider.CompleteCalls))
	}
	// Second call sees the first exchange plus the new user turn.
	second := f.provider.CompleteCalls[1]
	if len(second) != 3 {
		t.Fatalf("expected 3 turns in second call, got %d", len(second))
	}
	if second[0].Content != "первый вопрос" || second[2].Content != "второй вопрос" {
		t.Fatalf("unexpected window contents: %+v", second)
	}
}

func TestAskRateLimitedLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, newRecordingStore())

	if _, err := f.service.Ask(ctx, sampleUser(), "первый"); err != nil {
		t.Fatalf("first Ask failed: %v", err)
	}

	_, err := f.service.Ask(ctx, sampleUser(), "второй")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	history, _ := f.sessions.History(ctx, 1)
	if len(history) != 2 {
		t.Fatalf("rejected turn must not touch history, got %d turns", len(history))
	}
	if f.records.increments != 1 {
		t.Fatalf("rejected turn must not increment count, got %d", f.records.increments)
	}
}

func TestAskProviderRateLimitedKeepsUserTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())
	f.provider.CompleteErr = ai.RateLimitedError("complete")

	_, err := f.service.Ask(ctx, sampleUser(), "вопрос")
	if err == nil {
		t.Fatal("expected error from rate-limited provider")
	}
	if !ai.IsRateLimited(err) {
		t.Fatalf("expected a rate-limited provider error, got %v", err)
	}

	// The user turn stays so a retry reuses context; no assistant turn,
	// nothing persisted.
	history, _ := f.sessions.History(ctx, 1)
	if len(history) != 1 || history[0].Role != models.RoleUser {
		t.Fatalf("expected only the user turn in history, got %+v", history)
	}
	if f.records.increments != 0 || len(f.records.questions) != 0 {
		t.Fatalf("failed completion must not persist anything")
	}
}

func TestAskWithoutPersistenceStillAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, storage.NewNoopStore())

	answer, err := f.service.Ask(ctx, sampleUser(), "вопрос")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.QuestionID != 0 {
		t.Fatalf("expected zero question id without persistence, got %d", answer.QuestionID)
	}

	history, _ := f.sessions.History(ctx, 1)
	if len(history) != 2 {
		t.Fatalf("conversation must work without persistence, got %d turns", len(history))
	}
}

func TestAskVoiceEchoesTranscript(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())
	f.provider.TranscribeReply = "Могу ли я вернуть товар?"

	transcript, answer, err := f.service.AskVoice(ctx, sampleUser(), []byte("ogg"))
	if err != nil {
		t.Fatalf("AskVoice failed: %v", err)
	}
	if transcript != "Могу ли я вернуть товар?" {
		t.Fatalf("unexpected transcript: %q", transcript)
	}
	if answer == nil || answer.Text == "" {
		t.Fatal("expected an answer for the transcript")
	}

	history, _ := f.sessions.History(ctx, 1)
	if history[0].Content != transcript {
		t.Fatalf("transcript should enter history as the user turn, got %q", history[0].Content)
	}
}

func TestAskVoiceTooLarge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())

	big := make([]byte, 2048) // fixture caps voice at 1024 bytes
	_, _, err := f.service.AskVoice(ctx, sampleUser(), big)
	if !errors.Is(err, normalize.ErrVoiceTooLarge) {
		t.Fatalf("expected ErrVoiceTooLarge, got %v", err)
	}

	if h, _ := f.sessions.History(ctx, 1); len(h) != 0 {
		t.Fatalf("oversized voice must not touch history, got %d turns", len(h))
	}
}

func TestAnalyzeDocumentIsSingleShot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())

	text, err := f.service.AnalyzeDocument(ctx, sampleUser(), []byte("договор аренды"), "contract.txt")
	if err != nil {
		t.Fatalf("AnalyzeDocument failed: %v", err)
	}
	if text == "" {
		t.Fatal("expected analysis text")
	}

	if h, _ := f.sessions.History(ctx, 1); len(h) != 0 {
		t.Fatalf("document analysis must not touch history, got %d turns", len(h))
	}
	if f.records.increments != 0 {
		t.Fatalf("document analysis must not increment question count")
	}
	if len(f.provider.CompleteCalls) != 1 || len(f.provider.CompleteCalls[0]) != 1 {
		t.Fatalf("expected one single-turn completion call")
	}
}

func TestAnalyzePhotoSkipsCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())
	f.provider.ImageReply = "На фото договор займа. Пункт 4 противоречит ст. 16 ЗоЗПП."

	text, err := f.service.AnalyzePhoto(ctx, sampleUser(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("AnalyzePhoto failed: %v", err)
	}
	if text != f.provider.ImageReply {
		t.Fatalf("vision output should be the final answer, got %q", text)
	}
	if len(f.provider.CompleteCalls) != 0 {
		t.Fatalf("photo path must not call chat completion")
	}
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())

	f.service.Ask(ctx, sampleUser(), "вопрос")
	f.service.ClearHistory(ctx, 1)

	if n := f.service.HistoryLen(ctx, 1); n != 0 {
		t.Fatalf("expected empty history after clear, got %d turns", n)
	}
}

func TestRateAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond, newRecordingStore())

	answer, err := f.service.Ask(ctx, sampleUser(), "вопрос")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if !f.service.RateAnswer(ctx, answer.QuestionID, 5) {
		t.Fatal("rating a known question should succeed")
	}
	if f.records.ratings[answer.QuestionID] != 5 {
		t.Fatalf("rating not persisted: %v", f.records.ratings)
	}

	// Last write wins.
	if !f.service.RateAnswer(ctx, answer.QuestionID, 1) {
		t.Fatal("re-rating should succeed")
	}
	if f.records.ratings[answer.QuestionID] != 1 {
		t.Fatalf("re-rating not persisted: %v", f.records.ratings)
	}

	if f.service.RateAnswer(ctx, 0, 5) {
		t.Fatal("zero question id must be rejected")
	}
	if f.service.RateAnswer(ctx, answer.QuestionID, 3) {
		t.Fatal("out-of-scale rating must be rejected")
	}
	if f.service.RateAnswer(ctx, 999, 5) {
		t.Fatal("unknown question id must be rejected")
	}
}
