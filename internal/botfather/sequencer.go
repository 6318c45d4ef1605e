package botfather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ashureev/botfactory/internal/domain"
)

// Procedure names, used in logs and progress events.
const (
	ProcCreateBot      = "create_bot"
	ProcSetDescription = "set_description"
	ProcSetAvatar      = "set_avatar"
)

const (
	creationWindow = 5
	confirmWindow  = 3
)

// Progress is a step notification emitted while a procedure runs. It never
// carries a bot token.
type Progress struct {
	Procedure string
	Step      string
	Username  string
	Outcome   string
}

// Observer receives progress notifications.
type Observer interface {
	Observe(p Progress)
}

// Options configures a Sequencer.
type Options struct {
	Description  string
	StepWait     time.Duration
	FinalWait    time.Duration
	PollInterval time.Duration
	Observer     Observer
	Logger       *slog.Logger
}

// Result is the outcome of a successful CreateBot.
type Result struct {
	Token    string
	Username string
}

// Sequencer runs the scripted BotFather procedures. All procedures share one
// automation identity and are serialized through a Queue.
type Sequencer struct {
	dialer Dialer
	queue  *Queue
	opts   Options
	logger *slog.Logger
}

// NewSequencer creates a sequencer and starts its queue worker.
func NewSequencer(dialer Dialer, opts Options) *Sequencer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Sequencer{
		dialer: dialer,
		queue:  NewQueue(),
		opts:   opts,
		logger: logger.With("component", "botfather"),
	}
}

// Ready reports whether the automation session can be used.
func (s *Sequencer) Ready() error {
	return s.dialer.Ready()
}

// Pending returns how many procedures wait for the automation session.
func (s *Sequencer) Pending() int {
	return s.queue.Pending()
}

// Close stops the queue worker.
func (s *Sequencer) Close() {
	s.queue.Close()
}

// CreateBot registers a new bot with the given display name and username.
// A BotFather refusal is returned as *RejectedError; username collisions
// match ErrUsernameTaken. Retrying is left to the caller.
func (s *Sequencer) CreateBot(ctx context.Context, req domain.CreationRequest) (Result, error) {
	if err := s.dialer.Ready(); err != nil {
		return Result{}, err
	}

	var res Result
	err := s.run(ctx, ProcCreateBot, req.Username, func(ctx context.Context, conv Conversation) error {
		if err := s.step(ctx, conv, s.opts.StepWait, func() error { return conv.SendText(ctx, "/newbot") }); err != nil {
			return err
		}
		s.notify(ProcCreateBot, "name", req.Username, "")
		if err := s.step(ctx, conv, s.opts.StepWait, func() error { return conv.SendText(ctx, req.Name) }); err != nil {
			return err
		}
		s.notify(ProcCreateBot, "username", req.Username, "")
		if err := s.step(ctx, conv, s.opts.FinalWait, func() error { return conv.SendText(ctx, req.Username) }); err != nil {
			return err
		}

		replies, err := conv.History(ctx, creationWindow)
		if err != nil {
			return err
		}

		c := CreationClassifier.Classify(replies)
		s.logger.Info("BotFather reply classified", "procedure", ProcCreateBot, "username", req.Username, "verdict", c.Verdict.String())
		switch c.Verdict {
		case TokenFound:
			res = Result{Token: c.Token, Username: req.Username}
			return nil
		case ErrorDetected:
			return &RejectedError{Message: c.Message}
		default:
			return ErrNoSignal
		}
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// SetDescription sets the profile description of username. The token is only
// used for log correlation. A nil error means BotFather confirmed the change.
func (s *Sequencer) SetDescription(ctx context.Context, token, username string) error {
	if err := s.dialer.Ready(); err != nil {
		return err
	}
	username = strings.TrimPrefix(username, "@")

	return s.run(ctx, ProcSetDescription, username, func(ctx context.Context, conv Conversation) error {
		s.logger.Debug("Setting description", "username", username, "token", domain.MaskToken(token))
		if err := s.selectBot(ctx, conv, "/setdescription", username); err != nil {
			return err
		}
		if err := s.step(ctx, conv, s.opts.StepWait, func() error { return conv.SendText(ctx, s.opts.Description) }); err != nil {
			return err
		}
		replies, err := conv.History(ctx, confirmWindow)
		if err != nil {
			return err
		}
		if !DescriptionClassifier.Confirmed(replies) {
			return ErrNotConfirmed
		}
		return nil
	})
}

// SetAvatar uploads imagePath as the profile picture of username. A nil
// error means BotFather confirmed the change.
func (s *Sequencer) SetAvatar(ctx context.Context, username, imagePath string) error {
	if err := s.dialer.Ready(); err != nil {
		return err
	}
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("%w: %s", ErrImageMissing, imagePath)
	}
	username = strings.TrimPrefix(username, "@")

	return s.run(ctx, ProcSetAvatar, username, func(ctx context.Context, conv Conversation) error {
		if err := s.selectBot(ctx, conv, "/setuserpic", username); err != nil {
			return err
		}
		if err := s.step(ctx, conv, s.opts.FinalWait, func() error { return conv.SendPhoto(ctx, imagePath) }); err != nil {
			return err
		}
		replies, err := conv.History(ctx, confirmWindow)
		if err != nil {
			return err
		}
		if !AvatarClassifier.Confirmed(replies) {
			return ErrNotConfirmed
		}
		return nil
	})
}

// selectBot sends command and answers BotFather's "choose a bot" prompt,
// pressing the matching inline button when there is one and typing
// @username otherwise.
func (s *Sequencer) selectBot(ctx context.Context, conv Conversation, command, username string) error {
	if err := s.step(ctx, conv, s.opts.StepWait, func() error { return conv.SendText(ctx, command) }); err != nil {
		return err
	}

	latest, err := conv.History(ctx, 1)
	if err != nil {
		return err
	}

	// BotFather usually offers a reply keyboard, which is answered by text.
	if len(latest) > 0 && latest[0].Keyboard.HasCallbacks() {
		msg := latest[0]
		if data, ok := ResolveButton(msg.Keyboard, username); ok {
			err := s.step(ctx, conv, s.opts.StepWait, func() error { return conv.PressButton(ctx, msg.ID, data) })
			if err == nil {
				return nil
			}
			s.logger.Warn("Button click failed, falling back to text", "username", username, "error", err)
		} else {
			s.logger.Debug("Chosen button has no callback, falling back to text", "username", username)
		}
	}

	return s.step(ctx, conv, s.opts.StepWait, func() error { return conv.SendText(ctx, "@"+username) })
}

// run serializes fn on the queue, dials the automation session and maps
// unexpected failures to ErrTransport.
func (s *Sequencer) run(ctx context.Context, proc, username string, fn func(context.Context, Conversation) error) error {
	s.notify(proc, "queued", username, "")
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		s.notify(proc, "started", username, "")
		return s.dialer.Dial(ctx, fn)
	})

	switch {
	case err == nil:
		s.notify(proc, "finished", username, "ok")
		return nil
	case isExpected(err):
		s.logger.Warn("BotFather procedure failed", "procedure", proc, "username", username, "error", err)
		s.notify(proc, "finished", username, outcome(err))
		return err
	default:
		s.logger.Error("BotFather procedure transport failure", "procedure", proc, "username", username, "error", err)
		s.notify(proc, "finished", username, "transport_failure")
		return fmt.Errorf("%w: %s: %w", ErrTransport, proc, err)
	}
}

// step records the newest message id, performs action and then waits until
// BotFather answers with a newer incoming message or wait elapses.
func (s *Sequencer) step(ctx context.Context, conv Conversation, wait time.Duration, action func() error) error {
	mark := 0
	if latest, err := conv.History(ctx, 1); err == nil && len(latest) > 0 {
		mark = latest[0].ID
	}
	if err := action(); err != nil {
		return err
	}
	s.awaitReply(ctx, conv, mark, wait)
	return nil
}

func (s *Sequencer) awaitReply(ctx context.Context, conv Conversation, after int, wait time.Duration) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			s.logger.Debug("No reply within wait interval", "wait", wait)
			return
		case <-ticker.C:
			latest, err := conv.History(ctx, 1)
			if err != nil {
				s.logger.Debug("Polling BotFather history failed", "error", err)
				continue
			}
			if len(latest) > 0 && !latest[0].Outgoing && latest[0].ID > after {
				return
			}
		}
	}
}

func (s *Sequencer) notify(proc, step, username, result string) {
	if s.opts.Observer == nil {
		return
	}
	s.opts.Observer.Observe(Progress{Procedure: proc, Step: step, Username: username, Outcome: result})
}

func isExpected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected) ||
		errors.Is(err, ErrNoSignal) ||
		errors.Is(err, ErrNotConfirmed) ||
		errors.Is(err, ErrTwoFactorRequired) ||
		errors.Is(err, ErrSessionUnauthorized) ||
		errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrQueueClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func outcome(err error) string {
	var rejected *RejectedError
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, ErrNoSignal):
		return "no_signal"
	case errors.Is(err, ErrNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, ErrTwoFactorRequired):
		return "two_factor_required"
	case errors.Is(err, ErrSessionUnauthorized):
		return "session_unauthorized"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrQueueClosed):
		return "queue_closed"
	default:
		return "canceled"
	}
}
