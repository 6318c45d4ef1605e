// Package botfather drives the scripted BotFather conversation used to
// register bots and update their profile.
package botfather

import "context"

// Button is one inline keyboard button. Data is the opaque callback payload;
// it is nil for buttons that cannot be pressed through a callback.
type Button struct {
	Label string
	Data  []byte
}

// Keyboard is an inline button grid, rows top to bottom.
type Keyboard [][]Button

// HasCallbacks reports whether any button can be pressed through a callback.
func (kb Keyboard) HasCallbacks() bool {
	for _, row := range kb {
		for _, b := range row {
			if len(b.Data) > 0 {
				return true
			}
		}
	}
	return false
}

// Reply is a message in the automation chat with BotFather.
type Reply struct {
	ID       int
	Text     string
	Outgoing bool
	Keyboard Keyboard
}

// HasText reports whether the reply carries any text.
func (r Reply) HasText() bool {
	return r.Text != ""
}

// Conversation is an open chat with BotFather on the automation session.
type Conversation interface {
	// SendText sends a plain text message.
	SendText(ctx context.Context, text string) error

	// SendPhoto uploads the image at path as a photo.
	SendPhoto(ctx context.Context, path string) error

	// History returns up to limit of the most recent messages, newest first.
	History(ctx context.Context, limit int) ([]Reply, error)

	// PressButton invokes the callback of a button on message msgID.
	PressButton(ctx context.Context, msgID int, data []byte) error
}

// Dialer opens the automation session.
type Dialer interface {
	// Ready reports whether a connection can be attempted at all. It returns
	// ErrNotConfigured or ErrSessionUnauthorized without touching the network.
	Ready() error

	// Dial connects, runs fn with the BotFather conversation and disconnects
	// on every exit path.
	Dial(ctx context.Context, fn func(ctx context.Context, conv Conversation) error) error
}
