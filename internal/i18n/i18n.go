package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sergey214/socrates-bot2/internal/config"
	"golang.org/x/text/language"
)

// Localizer resolves user-facing messages by language.
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer loads the per-language message files.
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		path := filepath.Join(cfg.Directory, lang+".json")
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", path, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns the localized message, falling back to the message id.
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Message IDs
const (
	MsgWelcome            = "welcome"
	MsgHelp               = "help"
	MsgMenu               = "menu"
	MsgSearchHint         = "search_hint"
	MsgDocHelp            = "doc_help"
	MsgRateLimited        = "rate_limited"
	MsgUpstreamOverloaded = "upstream_overloaded"
	MsgUpstreamError      = "upstream_error"
	MsgTranscribing       = "transcribing"
	MsgTranscribed        = "transcribed"
	MsgVoiceFailed        = "voice_failed"
	MsgVoiceTooLarge      = "voice_too_large"
	MsgReadingDocument    = "reading_document"
	MsgAnalyzing          = "analyzing"
	MsgDocumentEmpty      = "document_empty"
	MsgDocumentFailed     = "document_failed"
	MsgDocumentAnalysis   = "document_analysis"
	MsgPhotoReading       = "photo_reading"
	MsgPhotoAnalysis      = "photo_analysis"
	MsgPhotoUnavailable   = "photo_unavailable"
	MsgHistoryCleared     = "history_cleared"
	MsgStats              = "stats"
	MsgGlobalStats        = "global_stats"
	MsgRatingThanks       = "rating_thanks"
	MsgRatingInvalid      = "rating_invalid"
	MsgBroadcastUsage     = "broadcast_usage"
	MsgBroadcastReport    = "broadcast_report"
	MsgBlockUsage         = "block_usage"
	MsgBlocked            = "blocked"
	MsgNotAdmin           = "not_admin"
	MsgUnknownCommand     = "unknown_command"
)
