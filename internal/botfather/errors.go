package botfather

import (
	"errors"
	"strings"
)

var (
	// ErrNotConfigured means the automation API credentials are missing.
	ErrNotConfigured = errors.New("TELEGRAM_API_ID and TELEGRAM_API_HASH not found, see /help for setup")
	// ErrSessionUnauthorized means the session file is missing or not logged in.
	ErrSessionUnauthorized = errors.New("session not authorized, run the setup command")
	// ErrTwoFactorRequired means the account asked for its 2FA password.
	ErrTwoFactorRequired = errors.New("2FA required, run the setup command")
	// ErrUsernameTaken is matched by RejectedError when BotFather refused the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrNoSignal means no token and no error marker were found in the reply window.
	ErrNoSignal = errors.New("token not found in BotFather response")
	// ErrNotConfirmed means BotFather did not confirm a profile update.
	ErrNotConfirmed = errors.New("BotFather did not confirm the update")
	// ErrImageMissing means the avatar file does not exist.
	ErrImageMissing = errors.New("avatar image not found")
	// ErrTransport wraps any unexpected fault while talking to BotFather.
	ErrTransport = errors.New("automation transport failure")
	// ErrQueueClosed is returned by Queue.Do after Close.
	ErrQueueClosed = errors.New("automation queue closed")
)

var collisionMarkers = []string{"already", "taken"}

// RejectedError carries the BotFather reply that contained an error marker.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrUsernameTaken) detect username collisions.
func (e *RejectedError) Is(target error) bool {
	return target == ErrUsernameTaken && e.UsernameTaken()
}

// UsernameTaken reports whether the rejection is about the username.
func (e *RejectedError) UsernameTaken() bool {
	return containsAny(e.Message, collisionMarkers)
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
