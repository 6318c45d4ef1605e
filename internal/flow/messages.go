package flow

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/botfactory/internal/botfather"
)

const (
	msgEnterName      = "Enter bot name:"
	msgInvalidName    = "Bot name must be between 3 and 100 characters. Try again:"
	msgAvatarReprompt = "Please send a photo or use /skip to skip avatar setup"
	msgUnknown        = "Unknown command. Use /help for available commands."
	msgRateLimited    = "Too many bots created recently. Try again later."
	msgCancelled      = "Bot creation cancelled."
	msgNothingToStop  = "Nothing to cancel."
	msgCreateFailed   = "Error: bot creation failed. Try again later."
)

func startText(ready error) string {
	status := "Ready"
	if ready != nil {
		status = "Not configured"
	}
	return "Bot Creator\n\n" +
		"Status: " + status + "\n\n" +
		"Commands:\n" +
		"/create - Create a new bot\n" +
		"/cancel - Cancel the current creation\n" +
		"/help - Show help"
}

func helpText(ready error, setupCommand string) string {
	var setup string
	switch {
	case errors.Is(ready, botfather.ErrNotConfigured):
		setup = "\n\nConfiguration required:\n" +
			"1. Get API_ID and API_HASH from https://my.telegram.org/apps\n" +
			"2. Add TELEGRAM_API_ID and TELEGRAM_API_HASH to the .env file\n" +
			"3. Run: " + setupCommand
	case ready != nil:
		setup = "\n\nAutomation session not authorized. Run: " + setupCommand
	}
	return "Bot Creator Help\n\n" +
		"Usage:\n" +
		"1. Use /create command\n" +
		"2. Enter bot name\n" +
		"3. Send avatar photo (optional)\n\n" +
		"The bot will:\n" +
		"- Generate unique username\n" +
		"- Create bot via BotFather\n" +
		"- Set description\n" +
		"- Return token" + setup
}

func creatingText(name, username string) string {
	return fmt.Sprintf("Creating bot: %s\nUsername: @%s", name, username)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func createdText(name, username, token string, descriptionSet bool) string {
	desc := "Not set"
	if descriptionSet {
		desc = "Set"
	}
	return fmt.Sprintf("Bot created successfully\n\n"+
		"Name: %s\n"+
		"Username: @%s\n"+
		"Token: `%s`\n\n"+
		"Description: %s\n\n"+
		"Send photo for bot avatar (or /skip to skip):",
		escape(name), escape(username), token, desc)
}

func finalText(headline string, st AwaitingAvatar) string {
	return fmt.Sprintf("%s\n\n"+
		"Name: %s\n"+
		"Username: @%s\n"+
		"Token: `%s`\n\n"+
		"Save token securely. Use /create to create another bot.",
		headline, escape(st.Name), escape(st.Username), st.Token)
}

func avatarManualText(token string) string {
	return fmt.Sprintf("Avatar not set automatically. Set manually via @BotFather\n\nToken: `%s`", token)
}

// creationErrorText turns a CreateBot failure into the user-facing reply.
// Configuration problems are shown verbatim with their remediation; other
// unexpected faults stay generic.
func creationErrorText(err error) string {
	var rejected *botfather.RejectedError
	switch {
	case errors.Is(err, botfather.ErrNotConfigured),
		errors.Is(err, botfather.ErrSessionUnauthorized),
		errors.Is(err, botfather.ErrTwoFactorRequired),
		errors.Is(err, botfather.ErrNoSignal):
		return "Error: " + rootMessage(err)
	case errors.As(err, &rejected):
		return "Error: " + rejected.Message
	default:
		return msgCreateFailed
	}
}

func rootMessage(err error) string {
	for _, sentinel := range []error{
		botfather.ErrNotConfigured,
		botfather.ErrSessionUnauthorized,
		botfather.ErrTwoFactorRequired,
		botfather.ErrNoSignal,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
