// Package mtproto connects the automation user account to BotFather over
// MTProto using gotd.
package mtproto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/ashureev/botfactory/internal/botfather"
)

// Config holds the automation account credentials.
type Config struct {
	APIID       int
	APIHash     string
	SessionPath string
	BotFather   string
}

// Client opens short-lived gotd connections on the stored session file.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// Ensure Client implements botfather.Dialer.
var _ botfather.Dialer = (*Client)(nil)

// New creates a Client. A nil logger means slog.Default().
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BotFather == "" {
		cfg.BotFather = "BotFather"
	}
	return &Client{cfg: cfg, logger: logger.With("component", "mtproto")}
}

// Ready checks credentials and the session file without connecting.
func (c *Client) Ready() error {
	if c.cfg.APIID == 0 || c.cfg.APIHash == "" {
		return botfather.ErrNotConfigured
	}
	if _, err := os.Stat(c.cfg.SessionPath); err != nil {
		return botfather.ErrSessionUnauthorized
	}
	return nil
}

// Dial connects, verifies the session is logged in, resolves BotFather and
// runs fn. The connection is closed when fn returns.
func (c *Client) Dial(ctx context.Context, fn func(ctx context.Context, conv botfather.Conversation) error) error {
	client := c.newClient()
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return botfather.ErrSessionUnauthorized
		}
		if status.User != nil {
			c.logger.Info("Authorized as", "first_name", status.User.FirstName, "user_id", status.User.ID)
		}

		api := client.API()
		p, err := peer.DefaultResolver(api).ResolveDomain(ctx, c.cfg.BotFather)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", c.cfg.BotFather, err)
		}

		return fn(ctx, &conversation{
			api:      api,
			peer:     p,
			sender:   message.NewSender(api),
			uploader: uploader.NewUploader(api),
		})
	})
	return classifyError(err)
}

func (c *Client) newClient() *telegram.Client {
	return telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionPath},
	})
}

// classifyError maps gotd authorization failures onto botfather errors and
// leaves everything else untouched.
func classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrPasswordAuthNeeded), tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return botfather.ErrTwoFactorRequired
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED"):
		return botfather.ErrSessionUnauthorized
	default:
		return err
	}
}

// conversation is the BotFather chat on an open connection.
type conversation struct {
	api      *tg.Client
	peer     tg.InputPeerClass
	sender   *message.Sender
	uploader *uploader.Uploader
}

func (c *conversation) SendText(ctx context.Context, text string) error {
	if _, err := c.sender.To(c.peer).Text(ctx, text); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (c *conversation) SendPhoto(ctx context.Context, path string) error {
	file, err := c.uploader.FromPath(ctx, path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	if _, err := c.sender.To(c.peer).Media(ctx, message.UploadedPhoto(file)); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

func (c *conversation) History(ctx context.Context, limit int) ([]botfather.Reply, error) {
	res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  c.peer,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return repliesFrom(res), nil
}

func (c *conversation) PressButton(ctx context.Context, msgID int, data []byte) error {
	_, err := c.api.MessagesGetBotCallbackAnswer(ctx, &tg.MessagesGetBotCallbackAnswerRequest{
		Peer:  c.peer,
		MsgID: msgID,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("callback answer: %w", err)
	}
	return nil
}

func repliesFrom(res tg.MessagesMessagesClass) []botfather.Reply {
	var msgs []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesMessages:
		msgs = v.Messages
	case *tg.MessagesMessagesSlice:
		msgs = v.Messages
	case *tg.MessagesChannelMessages:
		msgs = v.Messages
	}

	replies := make([]botfather.Reply, 0, len(msgs))
	for _, m := range msgs {
		if msg, ok := m.(*tg.Message); ok {
			replies = append(replies, toReply(msg))
		}
	}
	return replies
}

func toReply(m *tg.Message) botfather.Reply {
	r := botfather.Reply{ID: m.ID, Text: m.Message, Outgoing: m.Out}

	var rows []tg.KeyboardButtonRow
	switch markup := m.ReplyMarkup.(type) {
	case *tg.ReplyInlineMarkup:
		rows = markup.Rows
	case *tg.ReplyKeyboardMarkup:
		rows = markup.Rows
	}

	for _, row := range rows {
		buttons := make([]botfather.Button, 0, len(row.Buttons))
		for _, b := range row.Buttons {
			buttons = append(buttons, toButton(b))
		}
		r.Keyboard = append(r.Keyboard, buttons)
	}
	return r
}

// toButton keeps the callback payload only for callback buttons; anything
// else can be answered by typing its label.
func toButton(b tg.KeyboardButtonClass) botfather.Button {
	switch v := b.(type) {
	case *tg.KeyboardButtonCallback:
		return botfather.Button{Label: v.Text, Data: v.Data}
	case *tg.KeyboardButton:
		return botfather.Button{Label: v.Text}
	case *tg.KeyboardButtonURL:
		return botfather.Button{Label: v.Text}
	default:
		return botfather.Button{}
	}
}
