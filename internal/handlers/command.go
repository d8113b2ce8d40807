package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/i18n"
	"github.com/sergey214/socrates-bot2/internal/middleware"
	"github.com/sergey214/socrates-bot2/internal/services/broadcast"
	"github.com/sergey214/socrates-bot2/internal/services/chat"
	"github.com/sergey214/socrates-bot2/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// CommandHandler handles commands and inline keyboard callbacks.
type CommandHandler struct {
	bot        *tgbotapi.BotAPI
	config     *config.Config
	chat       *chat.Service
	store      *storage.Gateway
	dispatcher *broadcast.Dispatcher
	localizer  *i18n.Localizer
	metrics    *middleware.Metrics
	logger     *logrus.Logger
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	chatService *chat.Service,
	store *storage.Gateway,
	dispatcher *broadcast.Dispatcher,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		bot:        bot,
		config:     cfg,
		chat:       chatService,
		store:      store,
		dispatcher: dispatcher,
		localizer:  localizer,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleCommand processes bot commands.
func (h *CommandHandler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	lang := h.config.I18n.DefaultLanguage

	switch msg.Command() {
	case "start":
		return h.handleStart(ctx, msg, lang)
	case "help":
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgHelp, nil))
	case "stats":
		return h.handleStats(ctx, msg, lang)
	case "clear":
		h.chat.ClearHistory(ctx, msg.From.ID)
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgHistoryCleared, nil))
	case "admin":
		return h.handleAdmin(ctx, msg, lang)
	case "broadcast":
		return h.handleBroadcast(ctx, msg, lang)
	case "block":
		return h.handleBlock(ctx, msg, lang)
	default:
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgUnknownCommand, nil))
	}
}

func (h *CommandHandler) handleStart(ctx context.Context, msg *tgbotapi.Message, lang string) error {
	h.chat.RegisterUser(ctx, fromTelegramUser(msg.From))

	text := h.localizer.Get(lang, i18n.MsgWelcome, map[string]interface{}{
		"Name": msg.From.FirstName,
	})
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyMarkup = mainMenuKeyboard()
	_, err := h.bot.Send(out)
	return err
}

func (h *CommandHandler) handleStats(ctx context.Context, msg *tgbotapi.Message, lang string) error {
	return h.send(msg.Chat.ID, h.statsText(ctx, msg.From.ID, lang))
}

func (h *CommandHandler) handleAdmin(ctx context.Context, msg *tgbotapi.Message, lang string) error {
	if !h.isAdmin(msg.From.ID) {
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgNotAdmin, nil))
	}

	stats := h.store.GlobalStats(ctx)

	var top strings.Builder
	for i, u := range stats.TopUsers {
		fmt.Fprintf(&top, "%d. %s — %d\n", i+1, u.FirstName, u.QuestionsCount)
	}
	if top.Len() == 0 {
		top.WriteString("—")
	}

	return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgGlobalStats, map[string]interface{}{
		"Users":     stats.TotalUsers,
		"Questions": stats.TotalQuestions,
		"AvgRating": fmt.Sprintf("%.2f", stats.AvgRating),
		"Top":       strings.TrimRight(top.String(), "\n"),
	}))
}

func (h *CommandHandler) handleBroadcast(ctx context.Context, msg *tgbotapi.Message, lang string) error {
	if !h.isAdmin(msg.From.ID) {
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgNotAdmin, nil))
	}

	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgBroadcastUsage, nil))
	}

	result := h.dispatcher.Broadcast(ctx, text)
	h.metrics.RecordBroadcastResult(result.Sent, result.Failed)

	return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgBroadcastReport, map[string]interface{}{
		"Sent":   result.Sent,
		"Failed": result.Failed,
	}))
}

func (h *CommandHandler) handleBlock(ctx context.Context, msg *tgbotapi.Message, lang string) error {
	if !h.isAdmin(msg.From.ID) {
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgNotAdmin, nil))
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil || userID <= 0 {
		return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgBlockUsage, nil))
	}

	h.store.BlockUser(ctx, userID)
	return h.send(msg.Chat.ID, h.localizer.Get(lang, i18n.MsgBlocked, map[string]interface{}{
		"UserID": userID,
	}))
}

// HandleCallbackQuery processes inline keyboard callbacks: the menu
// navigation and the answer rating buttons.
func (h *CommandHandler) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	lang := h.config.I18n.DefaultLanguage
	parts := strings.Split(callback.Data, ":")
	if len(parts) < 2 {
		h.bot.Request(tgbotapi.NewCallback(callback.ID, ""))
		return nil
	}

	switch parts[0] {
	case "menu":
		return h.handleMenuCallback(ctx, callback, parts[1], lang)
	case "rate":
		return h.handleRateCallback(ctx, callback, parts, lang)
	default:
		h.bot.Request(tgbotapi.NewCallback(callback.ID, ""))
	}
	return nil
}

func (h *CommandHandler) handleMenuCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, menu, lang string) error {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	h.bot.Request(tgbotapi.NewCallback(callback.ID, ""))

	var text string
	var keyboard tgbotapi.InlineKeyboardMarkup

	switch menu {
	case "main":
		text = h.localizer.Get(lang, i18n.MsgMenu, nil)
		keyboard = mainMenuKeyboard()
	case "search":
		text = h.localizer.Get(lang, i18n.MsgSearchHint, nil)
		keyboard = backKeyboard()
	case "doc":
		text = h.localizer.Get(lang, i18n.MsgDocHelp, nil)
		keyboard = backKeyboard()
	case "stats":
		text = h.statsText(ctx, userID, lang)
		keyboard = backKeyboard()
	case "clear":
		h.chat.ClearHistory(ctx, userID)
		text = h.localizer.Get(lang, i18n.MsgHistoryCleared, nil)
		keyboard = mainMenuKeyboard()
	default:
		return nil
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = &keyboard
	_, err := h.bot.Send(edit)
	return err
}

// handleRateCallback parses "rate:<questionID>:<value>". The id must refer
// to a real, previously answered question; anything else is rejected.
func (h *CommandHandler) handleRateCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string, lang string) error {
	if len(parts) != 3 {
		h.bot.Request(tgbotapi.NewCallback(callback.ID, h.localizer.Get(lang, i18n.MsgRatingInvalid, nil)))
		return nil
	}

	questionID, err1 := strconv.ParseInt(parts[1], 10, 64)
	rating, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || !h.chat.RateAnswer(ctx, questionID, rating) {
		h.bot.Request(tgbotapi.NewCallback(callback.ID, h.localizer.Get(lang, i18n.MsgRatingInvalid, nil)))
		return nil
	}

	h.bot.Request(tgbotapi.NewCallback(callback.ID, h.localizer.Get(lang, i18n.MsgRatingThanks, nil)))
	return nil
}

func (h *CommandHandler) statsText(ctx context.Context, userID int64, lang string) string {
	stats := h.store.UserStats(ctx, userID)

	joined := "—"
	if !stats.JoinedAt.IsZero() {
		joined = stats.JoinedAt.Format("02.01.2006")
	}

	return h.localizer.Get(lang, i18n.MsgStats, map[string]interface{}{
		"Questions": stats.QuestionsCount,
		"Joined":    joined,
		"InMemory":  h.chat.HistoryLen(ctx, userID),
	})
}

func (h *CommandHandler) isAdmin(userID int64) bool {
	return h.config.Bot.AdminID != 0 && userID == h.config.Bot.AdminID
}

func (h *CommandHandler) send(chatID int64, text string) error {
	_, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
