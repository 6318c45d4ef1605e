// Package flow implements the end-user conversation that drives bot creation.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/botfactory/internal/botfather"
	"github.com/ashureev/botfactory/internal/domain"
)

// Creator runs the BotFather procedures. *botfather.Sequencer implements it.
type Creator interface {
	Ready() error
	CreateBot(ctx context.Context, req domain.CreationRequest) (botfather.Result, error)
	SetDescription(ctx context.Context, token, username string) error
	SetAvatar(ctx context.Context, username, imagePath string) error
}

// Message is an outgoing reply. Markdown replies use Telegram's legacy
// Markdown mode.
type Message struct {
	Text     string
	Markdown bool
}

// Responder delivers replies to a chat.
type Responder interface {
	Reply(ctx context.Context, chatID int64, msg Message) error
}

// PhotoFetcher downloads a Telegram file to dest.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, fileID, dest string) error
}

// Ledger records finished creations. Tokens are never passed to it.
type Ledger interface {
	RecordCreation(ctx context.Context, rec *domain.CreationRecord) error
	UpdateAvatarStatus(ctx context.Context, id string, status domain.AvatarStatus) error
}

// Input is one end-user message. Command is the bare command name without
// the slash, empty for plain text and photos.
type Input struct {
	ChatID      int64
	UserID      int64
	Text        string
	Command     string
	PhotoFileID string
}

// Options configures a Flow.
type Options struct {
	UsernamePrefix string
	TempDir        string
	SetupCommand   string
	Logger         *slog.Logger
}

// Flow is the per-chat state machine Idle -> AwaitingBotName ->
// AwaitingAvatar -> Idle. Handle must not be called concurrently for the
// same chat.
type Flow struct {
	creator   Creator
	responder Responder
	photos    PhotoFetcher
	ledger    Ledger
	sessions  SessionStore
	limiter   *RateLimiter
	opts      Options
	logger    *slog.Logger

	newUsername func(prefix string, suffixLen int) (string, error)
}

// New creates a Flow. ledger and limiter may be nil.
func New(creator Creator, responder Responder, photos PhotoFetcher, ledger Ledger,
	sessions SessionStore, limiter *RateLimiter, opts Options) *Flow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TempDir == "" {
		opts.TempDir = "temp"
	}
	if opts.SetupCommand == "" {
		opts.SetupCommand = "go run ./cmd/setup"
	}
	return &Flow{
		creator:     creator,
		responder:   responder,
		photos:      photos,
		ledger:      ledger,
		sessions:    sessions,
		limiter:     limiter,
		opts:        opts,
		logger:      logger.With("component", "flow"),
		newUsername: domain.GenerateUsername,
	}
}

// Handle processes one message. Errors are only returned when a reply could
// not be delivered; procedure failures are reported to the user instead.
func (f *Flow) Handle(ctx context.Context, in Input) error {
	switch in.Command {
	case "start":
		return f.reply(ctx, in.ChatID, startText(f.creator.Ready()))
	case "help":
		return f.reply(ctx, in.ChatID, helpText(f.creator.Ready(), f.opts.SetupCommand))
	case "create":
		f.sessions.Set(in.ChatID, AwaitingBotName{})
		return f.reply(ctx, in.ChatID, msgEnterName)
	case "cancel":
		return f.cancel(ctx, in.ChatID)
	}

	switch st := f.sessions.Get(in.ChatID).State.(type) {
	case AwaitingBotName:
		if in.Command != "" {
			return f.reply(ctx, in.ChatID, msgUnknown)
		}
		return f.handleName(ctx, in)
	case AwaitingAvatar:
		switch {
		case in.Command == "skip":
			return f.skipAvatar(ctx, in.ChatID, st)
		case in.PhotoFileID != "":
			return f.handleAvatar(ctx, in, st)
		default:
			return f.reply(ctx, in.ChatID, msgAvatarReprompt)
		}
	default:
		return f.reply(ctx, in.ChatID, msgUnknown)
	}
}

func (f *Flow) cancel(ctx context.Context, chatID int64) error {
	if _, idle := f.sessions.Get(chatID).State.(Idle); idle {
		return f.reply(ctx, chatID, msgNothingToStop)
	}
	f.sessions.Set(chatID, Idle{})
	return f.reply(ctx, chatID, msgCancelled)
}

func (f *Flow) handleName(ctx context.Context, in Input) error {
	name := strings.TrimSpace(in.Text)
	if !domain.ValidName(name) {
		return f.reply(ctx, in.ChatID, msgInvalidName)
	}
	if !f.limiter.Allow(in.UserID) {
		f.logger.Warn("Creation rate limited", "user_id", in.UserID)
		f.sessions.Set(in.ChatID, Idle{})
		return f.reply(ctx, in.ChatID, msgRateLimited)
	}

	res, err := f.createBot(ctx, in.ChatID, name)
	if err != nil {
		f.logger.Warn("Bot creation failed", "chat_id", in.ChatID, "error", err)
		f.sessions.Set(in.ChatID, Idle{})
		return f.reply(ctx, in.ChatID, creationErrorText(err))
	}

	descErr := f.creator.SetDescription(ctx, res.Token, res.Username)
	if descErr != nil {
		f.logger.Warn("Description not set", "username", res.Username, "error", descErr)
	}

	st := AwaitingAvatar{
		RecordID: uuid.NewString(),
		Token:    res.Token,
		Username: res.Username,
		Name:     name,
	}
	f.record(ctx, in, st, descErr == nil)
	f.sessions.Set(in.ChatID, st)

	return f.replyMarkdown(ctx, in.ChatID, createdText(name, res.Username, res.Token, descErr == nil))
}

// createBot registers the bot, retrying once with a longer suffix when the
// generated username is taken.
func (f *Flow) createBot(ctx context.Context, chatID int64, name string) (botfather.Result, error) {
	suffixes := []int{domain.SuffixLength, domain.RetrySuffixLength}

	var lastErr error
	for attempt, suffixLen := range suffixes {
		username, err := f.newUsername(f.opts.UsernamePrefix, suffixLen)
		if err != nil {
			return botfather.Result{}, err
		}
		if attempt == 0 {
			if err := f.reply(ctx, chatID, creatingText(name, username)); err != nil {
				f.logger.Warn("Failed to send progress reply", "chat_id", chatID, "error", err)
			}
		}

		res, err := f.creator.CreateBot(ctx, domain.CreationRequest{Name: name, Username: username})
		if err == nil {
			if res.Username == "" {
				res.Username = username
			}
			res.Username = strings.TrimPrefix(res.Username, "@")
			f.logger.Info("Bot created", "username", res.Username, "token", domain.MaskToken(res.Token), "attempt", attempt+1)
			return res, nil
		}
		if !errors.Is(err, botfather.ErrUsernameTaken) {
			return botfather.Result{}, err
		}
		f.logger.Info("Username taken", "username", username, "attempt", attempt+1)
		lastErr = err
	}
	return botfather.Result{}, lastErr
}

func (f *Flow) handleAvatar(ctx context.Context, in Input, st AwaitingAvatar) error {
	defer f.sessions.Set(in.ChatID, Idle{})

	path, err := f.stagePhoto(ctx, in)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				f.logger.Debug("Failed to remove staged avatar", "path", path, "error", rmErr)
			}
		}()
	}
	if err != nil {
		f.logger.Error("Avatar download failed", "username", st.Username, "error", err)
		f.updateAvatar(ctx, st.RecordID, domain.AvatarFailed)
		return f.replyMarkdown(ctx, in.ChatID, avatarManualText(st.Token))
	}

	if err := f.creator.SetAvatar(ctx, st.Username, path); err != nil {
		f.logger.Warn("Avatar not set", "username", st.Username, "error", err)
		f.updateAvatar(ctx, st.RecordID, domain.AvatarFailed)
		return f.replyMarkdown(ctx, in.ChatID, avatarManualText(st.Token))
	}

	f.updateAvatar(ctx, st.RecordID, domain.AvatarSet)
	return f.replyMarkdown(ctx, in.ChatID, finalText("Avatar set successfully", st))
}

// stagePhoto downloads the photo into the temp dir. The returned path is
// set whenever a file may have been created, even on error.
func (f *Flow) stagePhoto(ctx context.Context, in Input) (string, error) {
	if err := os.MkdirAll(f.opts.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	name := fmt.Sprintf("avatar_%d_%s.jpg", in.UserID, filepath.Base(in.PhotoFileID))
	path := filepath.Join(f.opts.TempDir, name)
	if err := f.photos.FetchPhoto(ctx, in.PhotoFileID, path); err != nil {
		return path, err
	}
	return path, nil
}

func (f *Flow) skipAvatar(ctx context.Context, chatID int64, st AwaitingAvatar) error {
	f.sessions.Set(chatID, Idle{})
	f.updateAvatar(ctx, st.RecordID, domain.AvatarSkipped)
	return f.replyMarkdown(ctx, chatID, finalText("Avatar setup skipped", st))
}

func (f *Flow) record(ctx context.Context, in Input, st AwaitingAvatar, descriptionSet bool) {
	if f.ledger == nil {
		return
	}
	now := time.Now().UTC()
	rec := &domain.CreationRecord{
		ID:             st.RecordID,
		ChatID:         in.ChatID,
		UserID:         in.UserID,
		Name:           st.Name,
		Username:       st.Username,
		TokenHint:      domain.MaskToken(st.Token),
		DescriptionSet: descriptionSet,
		Avatar:         domain.AvatarPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := f.ledger.RecordCreation(ctx, rec); err != nil {
		f.logger.Error("Failed to record creation", "username", st.Username, "error", err)
	}
}

func (f *Flow) updateAvatar(ctx context.Context, id string, status domain.AvatarStatus) {
	if f.ledger == nil || id == "" {
		return
	}
	if err := f.ledger.UpdateAvatarStatus(ctx, id, status); err != nil {
		f.logger.Error("Failed to update avatar status", "record_id", id, "error", err)
	}
}

func (f *Flow) reply(ctx context.Context, chatID int64, text string) error {
	return f.responder.Reply(ctx, chatID, Message{Text: text})
}

func (f *Flow) replyMarkdown(ctx context.Context, chatID int64, text string) error {
	return f.responder.Reply(ctx, chatID, Message{Text: text, Markdown: true})
}
