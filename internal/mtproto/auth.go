package mtproto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"golang.org/x/term"
)

// ErrSignUpUnsupported is returned when the phone number has no account.
var ErrSignUpUnsupported = errors.New("phone number is not registered with Telegram")

// Prompter asks the operator for login details on a terminal.
type Prompter struct {
	PhoneNumber string
	In          io.Reader
	Out         io.Writer

	reader *bufio.Reader
}

// Ensure Prompter implements auth.UserAuthenticator.
var _ auth.UserAuthenticator = (*Prompter)(nil)

func (p *Prompter) Phone(_ context.Context) (string, error) {
	if p.PhoneNumber != "" {
		return p.PhoneNumber, nil
	}
	return p.ask("Phone number (international format): ")
}

func (p *Prompter) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return p.ask("Login code: ")
}

// Password reads the cloud password without echo when In is a terminal.
func (p *Prompter) Password(_ context.Context) (string, error) {
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.Out, "Two-step verification password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return p.ask("Two-step verification password: ")
}

func (p *Prompter) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (p *Prompter) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignUpUnsupported
}

func (p *Prompter) ask(prompt string) (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprint(p.Out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty input")
	}
	return line, nil
}

// Authorize logs the automation account in, writing the session file used by
// Dial. An already authorized session is left as is.
func (c *Client) Authorize(ctx context.Context, prompter *Prompter) (*tg.User, error) {
	if c.cfg.APIID == 0 || c.cfg.APIHash == "" {
		return nil, fmt.Errorf("TELEGRAM_API_ID and TELEGRAM_API_HASH must be set")
	}
	if dir := filepath.Dir(c.cfg.SessionPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}

	client := c.newClient()
	var self *tg.User
	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(prompter, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		user, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		self = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Session authorized", "user_id", self.ID, "session_path", c.cfg.SessionPath)
	return self, nil
}
