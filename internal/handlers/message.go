package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/i18n"
	"github.com/sergey214/socrates-bot2/internal/middleware"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sergey214/socrates-bot2/internal/services/ai"
	"github.com/sergey214/socrates-bot2/internal/services/chat"
	"github.com/sergey214/socrates-bot2/internal/services/document"
	"github.com/sergey214/socrates-bot2/internal/services/normalize"
	"github.com/sergey214/socrates-bot2/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// MessageHandler handles non-command messages in all four modalities.
type MessageHandler struct {
	bot        *tgbotapi.BotAPI
	config     *config.Config
	chat       *chat.Service
	localizer  *i18n.Localizer
	metrics    *middleware.Metrics
	logger     *logrus.Logger
	downloader *http.Client
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	chatService *chat.Service,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		bot:       bot,
		config:    cfg,
		chat:      chatService,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		downloader: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// HandleMessage dispatches an inbound message by modality.
func (h *MessageHandler) HandleMessage(ctx context.Context, update *tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.IsCommand() {
		return nil
	}
	if msg.From == nil || msg.From.ID == h.bot.Self.ID {
		return nil
	}

	switch {
	case msg.Voice != nil:
		h.metrics.RecordMessageReceived("voice")
		return h.handleVoice(ctx, msg)
	case msg.Document != nil:
		h.metrics.RecordMessageReceived("document")
		return h.handleDocument(ctx, msg)
	case len(msg.Photo) > 0:
		h.metrics.RecordMessageReceived("photo")
		return h.handlePhoto(ctx, msg)
	case msg.Text != "":
		h.metrics.RecordMessageReceived("text")
		return h.handleText(ctx, msg)
	default:
		return nil
	}
}

func (h *MessageHandler) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	user := fromTelegramUser(msg.From)
	lang := h.language()

	h.bot.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping))

	answer, err := h.chat.Ask(ctx, user, msg.Text)
	if err != nil {
		h.replyTurnError(msg, err, lang)
		return nil
	}

	h.sendAnswer(msg.Chat.ID, answer, lang)
	return nil
}

func (h *MessageHandler) handleVoice(ctx context.Context, msg *tgbotapi.Message) error {
	user := fromTelegramUser(msg.From)
	lang := h.language()

	if int64(msg.Voice.FileSize) > h.config.Session.MaxVoiceBytes {
		h.reply(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgVoiceTooLarge, nil))
		return nil
	}

	progress, err := h.sendProgress(msg, h.localizer.Get(lang, i18n.MsgTranscribing, nil))
	if err != nil {
		return err
	}

	audio, err := h.download(msg.Voice.FileID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to download voice")
		h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgVoiceFailed, nil))
		return nil
	}

	transcript, answer, err := h.chat.AskVoice(ctx, user, audio)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRateLimited):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgRateLimited, nil))
		case errors.Is(err, normalize.ErrVoiceTooLarge):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgVoiceTooLarge, nil))
		case errors.Is(err, normalize.ErrTranscriptionFailed):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgVoiceFailed, nil))
		default:
			h.edit(msg.Chat.ID, progress, h.turnErrorText(err, lang))
		}
		return nil
	}

	h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgTranscribed, map[string]interface{}{
		"Text": transcript,
	}))
	h.sendAnswer(msg.Chat.ID, answer, lang)
	return nil
}

func (h *MessageHandler) handleDocument(ctx context.Context, msg *tgbotapi.Message) error {
	user := fromTelegramUser(msg.From)
	lang := h.language()

	progress, err := h.sendProgress(msg, h.localizer.Get(lang, i18n.MsgReadingDocument, nil))
	if err != nil {
		return err
	}

	data, err := h.download(msg.Document.FileID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to download document")
		h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgDocumentFailed, nil))
		return nil
	}

	h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgAnalyzing, nil))

	analysis, err := h.chat.AnalyzeDocument(ctx, user, data, msg.Document.FileName)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRateLimited):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgRateLimited, nil))
		case errors.Is(err, document.ErrEmptyDocument):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgDocumentEmpty, nil))
		case ai.IsRateLimited(err):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgUpstreamOverloaded, nil))
		default:
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgDocumentFailed, nil))
		}
		return nil
	}

	h.editHTML(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgDocumentAnalysis, map[string]interface{}{
		"Text": markdown.ToTelegramHTML(analysis),
	}), analysis)
	return nil
}

func (h *MessageHandler) handlePhoto(ctx context.Context, msg *tgbotapi.Message) error {
	user := fromTelegramUser(msg.From)
	lang := h.language()

	progress, err := h.sendProgress(msg, h.localizer.Get(lang, i18n.MsgPhotoReading, nil))
	if err != nil {
		return err
	}

	// Telegram orders photo sizes ascending; take the largest.
	photo := msg.Photo[len(msg.Photo)-1]
	image, err := h.download(photo.FileID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to download photo")
		h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgPhotoUnavailable, nil))
		return nil
	}

	analysis, err := h.chat.AnalyzePhoto(ctx, user, image)
	if err != nil {
		var pe *ai.ProviderError
		switch {
		case errors.Is(err, chat.ErrRateLimited):
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgRateLimited, nil))
		case errors.As(err, &pe):
			// Vision model down or overloaded: steer the user to PDF/TXT.
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgPhotoUnavailable, nil))
		default:
			h.edit(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgUpstreamError, nil))
		}
		return nil
	}

	h.editHTML(msg.Chat.ID, progress, h.localizer.Get(lang, i18n.MsgPhotoAnalysis, map[string]interface{}{
		"Text": markdown.ToTelegramHTML(analysis),
	}), analysis)
	return nil
}

// sendAnswer delivers a conversational answer with the post-answer keyboard.
// The rating row appears only when persistence produced a real question id.
func (h *MessageHandler) sendAnswer(chatID int64, answer *chat.Answer, lang string) {
	out := tgbotapi.NewMessage(chatID, markdown.ToTelegramHTML(answer.Text))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = answerKeyboard(answer.QuestionID)

	if _, err := h.bot.Send(out); err != nil {
		h.logger.WithError(err).Warn("Failed to send HTML answer, trying plain text")
		out.ParseMode = ""
		out.Text = answer.Text
		if _, err := h.bot.Send(out); err != nil {
			h.logger.WithError(err).Error("Failed to send answer")
		}
	}
}

func (h *MessageHandler) replyTurnError(msg *tgbotapi.Message, err error, lang string) {
	h.reply(msg.Chat.ID, h.turnErrorText(err, lang))
}

func (h *MessageHandler) turnErrorText(err error, lang string) string {
	switch {
	case errors.Is(err, chat.ErrRateLimited):
		return h.localizer.Get(lang, i18n.MsgRateLimited, nil)
	case ai.IsRateLimited(err):
		return h.localizer.Get(lang, i18n.MsgUpstreamOverloaded, nil)
	default:
		return h.localizer.Get(lang, i18n.MsgUpstreamError, nil)
	}
}

func (h *MessageHandler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.WithError(err).Error("Failed to send message")
	}
}

func (h *MessageHandler) sendProgress(msg *tgbotapi.Message, text string) (int, error) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	sent, err := h.bot.Send(out)
	if err != nil {
		h.logger.WithError(err).Error("Failed to send progress message")
		return 0, err
	}
	return sent.MessageID, nil
}

func (h *MessageHandler) edit(chatID int64, messageID int, text string) {
	if _, err := h.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		h.logger.WithError(err).Error("Failed to edit message")
	}
}

// editHTML edits the progress message with HTML content, falling back to
// the plain rendering when Telegram rejects the markup.
func (h *MessageHandler) editHTML(chatID int64, messageID int, html, plain string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, html)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(edit); err != nil {
		h.logger.WithError(err).Warn("Failed to send HTML message, trying plain text")
		edit.ParseMode = ""
		edit.Text = plain
		if _, err := h.bot.Send(edit); err != nil {
			h.logger.WithError(err).Error("Failed to edit message")
		}
	}
}

// download fetches a Telegram file payload by file id.
func (h *MessageHandler) download(fileID string) ([]byte, error) {
	url, err := h.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	resp, err := h.downloader.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (h *MessageHandler) language() string {
	return h.config.I18n.DefaultLanguage
}

func fromTelegramUser(from *tgbotapi.User) *models.User {
	return &models.User{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
	}
}
