// Package telegram is the end-user bot transport built on the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/botfactory/internal/flow"
)

// maxPhotoBytes matches the Bot API download limit.
const maxPhotoBytes = 20 << 20

// API is the subset of *tgbotapi.BotAPI used by Bot.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Handler consumes converted updates. *flow.Flow implements it.
type Handler interface {
	Handle(ctx context.Context, in flow.Input) error
}

// Bot long-polls updates and hands them to a Handler. Messages from one chat
// are handled one at a time in arrival order; different chats run in
// parallel.
type Bot struct {
	api     API
	handler Handler
	client  *http.Client
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[int64][]flow.Input
	wg      sync.WaitGroup
}

// Ensure Bot implements the flow transport interfaces.
var (
	_ flow.Responder    = (*Bot)(nil)
	_ flow.PhotoFetcher = (*Bot)(nil)
)

// New creates a Bot. The handler may be set later with SetHandler, before Run.
func New(api API, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:     api,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("component", "telegram"),
		pending: make(map[int64][]flow.Input),
	}
}

// SetHandler sets the update consumer.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Run drops pending updates, then polls until ctx is cancelled and waits for
// in-flight handlers to return.
func (b *Bot) Run(ctx context.Context) error {
	if b.handler == nil {
		return errors.New("telegram: no handler set")
	}
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Polling for updates")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Polling stopped", "reason", ctx.Err())
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := toInput(update)
			if !ok {
				continue
			}
			b.enqueue(ctx, in)
		}
	}
}

func (b *Bot) enqueue(ctx context.Context, in flow.Input) {
	b.mu.Lock()
	queue, active := b.pending[in.ChatID]
	b.pending[in.ChatID] = append(queue, in)
	b.mu.Unlock()

	if !active {
		b.wg.Add(1)
		go b.drain(ctx, in.ChatID)
	}
}

// drain handles queued messages of one chat until none are left. The map
// entry exists exactly while a drain goroutine runs for that chat.
func (b *Bot) drain(ctx context.Context, chatID int64) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		queue := b.pending[chatID]
		if len(queue) == 0 {
			delete(b.pending, chatID)
			b.mu.Unlock()
			return
		}
		in := queue[0]
		b.pending[chatID] = queue[1:]
		b.mu.Unlock()

		b.handle(ctx, in)
	}
}

func (b *Bot) handle(ctx context.Context, in flow.Input) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panic", "chat_id", in.ChatID, "panic", r)
		}
	}()
	if err := b.handler.Handle(ctx, in); err != nil {
		b.logger.Error("Failed to handle message", "chat_id", in.ChatID, "command", in.Command, "error", err)
	}
}

// Reply sends a text message. Replies may contain bot tokens and are never
// logged.
func (b *Bot) Reply(_ context.Context, chatID int64, msg flow.Message) error {
	m := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.Markdown {
		m.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := b.api.Send(m); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// FetchPhoto downloads fileID into dest.
func (b *Bot) FetchPhoto(ctx context.Context, fileID, dest string) error {
	link, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", scrubURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxPhotoBytes)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, scrubURL(err))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}

// scrubURL drops the request URL from HTTP client errors. File URLs embed
// the bot token.
func scrubURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// toInput converts a Bot API update into a flow input. Only messages are
// handled.
func toInput(update tgbotapi.Update) (flow.Input, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return flow.Input{}, false
	}

	in := flow.Input{
		ChatID: msg.Chat.ID,
		UserID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if msg.From != nil {
		in.UserID = msg.From.ID
	}
	if msg.IsCommand() {
		in.Command = strings.ToLower(msg.Command())
	}
	if len(msg.Photo) > 0 {
		in.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
		if in.Text == "" {
			in.Text = msg.Caption
		}
	}
	return in, true
}
