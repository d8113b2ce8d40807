package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/handlers"
	"github.com/sergey214/socrates-bot2/internal/i18n"
	"github.com/sergey214/socrates-bot2/internal/middleware"
	"github.com/sergey214/socrates-bot2/internal/services/ai"
	"github.com/sergey214/socrates-bot2/internal/services/broadcast"
	"github.com/sergey214/socrates-bot2/internal/services/chat"
	"github.com/sergey214/socrates-bot2/internal/services/document"
	"github.com/sergey214/socrates-bot2/internal/services/normalize"
	"github.com/sergey214/socrates-bot2/internal/services/session"
	"github.com/sergey214/socrates-bot2/internal/services/storage"
	"github.com/sergey214/socrates-bot2/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Socrates bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}
	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewGateway(&cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer store.Close()

	sessions, err := session.NewStore(&cfg.Session, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize session store")
	}

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	provider := ai.NewGroq(&cfg.AI, log)
	extractor := document.NewExtractor(cfg.Session.DocumentLimit)
	normalizer := normalize.NewNormalizer(provider, extractor, cfg.Session.MaxVoiceBytes, cfg.AI.Language)
	limiter := middleware.NewCooldownLimiter(cfg.Session.Cooldown, log)
	metrics := middleware.NewMetrics()

	chatService := chat.NewService(
		provider,
		normalizer,
		sessions,
		limiter,
		store,
		metrics,
		log,
		cfg.AI.SystemPrompt,
		cfg.AI.MaxTokens,
		cfg.AI.AnalysisTokens,
	)

	dispatcher := broadcast.NewDispatcher(store, func(userID int64, text string) error {
		_, err := bot.Send(tgbotapi.NewMessage(userID, text))
		return err
	}, cfg.Broadcast.Delay, log)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	commandHandler := handlers.NewCommandHandler(bot, cfg, chatService, store, dispatcher, localizer, metrics, log)
	messageHandler := handlers.NewMessageHandler(bot, cfg, chatService, localizer, metrics, log)

	var updates tgbotapi.UpdatesChannel
	if cfg.Bot.Webhook.Enabled {
		webhook, err := tgbotapi.NewWebhook(fmt.Sprintf("%s/%s", cfg.Bot.Webhook.URL, bot.Token))
		if err != nil {
			log.WithError(err).Fatal("Failed to create webhook")
		}
		if _, err := bot.Request(webhook); err != nil {
			log.WithError(err).Fatal("Failed to set webhook")
		}
		updates = bot.ListenForWebhook("/" + bot.Token)
		log.WithField("url", cfg.Bot.Webhook.URL).Info("Webhook set")
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Bot.UpdateTimeout
		updates = bot.GetUpdatesChan(u)
		log.Info("Using long polling")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for update := range updates {
			if update.CallbackQuery != nil {
				if err := commandHandler.HandleCallbackQuery(ctx, update.CallbackQuery); err != nil {
					log.WithError(err).Error("Failed to handle callback query")
				}
				continue
			}

			if update.Message == nil {
				continue
			}

			if update.Message.IsCommand() {
				metrics.RecordCommandExecuted(update.Message.Command())

				if err := commandHandler.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
					metrics.RecordMessageProcessed("error")
				} else {
					metrics.RecordMessageProcessed("success")
				}
				continue
			}

			if err := messageHandler.HandleMessage(ctx, &update); err != nil {
				log.WithError(err).Error("Failed to handle message")
				metrics.RecordMessageProcessed("error")
			} else {
				metrics.RecordMessageProcessed("success")
			}
		}
	}()

	<-sigChan
	log.Info("Shutdown signal received")

	if cfg.Bot.Webhook.Enabled {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.WithError(err).Error("Failed to delete webhook")
		}
	}

	cancel()
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}
