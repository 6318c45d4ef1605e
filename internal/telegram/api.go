package telegram

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/botfactory/internal/domain"
)

// NewAPI connects to the Bot API and routes the library's own logging
// through slog. Neither errors nor log lines contain the token.
func NewAPI(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := tgbotapi.SetLogger(newRedactingLogger(token, logger)); err != nil {
		return nil, fmt.Errorf("set bot api logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", scrubURL(err))
	}
	return api, nil
}

// redactingLogger implements tgbotapi.BotLogger. Request URLs of the Bot API
// embed the token, and the library logs them on polling errors.
type redactingLogger struct {
	logger *slog.Logger
	token  string
	masked string
}

func newRedactingLogger(token string, logger *slog.Logger) *redactingLogger {
	return &redactingLogger{
		logger: logger.With("component", "tgbotapi"),
		token:  token,
		masked: domain.MaskToken(token),
	}
}

func (l *redactingLogger) Println(v ...interface{}) {
	l.logger.Warn(l.redact(strings.TrimSuffix(fmt.Sprintln(v...), "\n")))
}

func (l *redactingLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn(l.redact(fmt.Sprintf(format, v...)))
}

func (l *redactingLogger) redact(s string) string {
	if l.token == "" {
		return s
	}
	return strings.ReplaceAll(s, l.token, l.masked)
}
