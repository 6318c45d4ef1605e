// Package domain contains core domain types for the bot factory.
package domain

import (
	"strings"
	"time"
)

// Bot name bounds accepted from end users.
const (
	MinNameLength = 3
	MaxNameLength = 100
)

// CreationRequest is one user-initiated attempt to register a bot.
type CreationRequest struct {
	Name     string
	Username string
}

// AvatarStatus tracks what happened to the avatar step of a creation.
type AvatarStatus string

const (
	AvatarPending AvatarStatus = "pending"
	AvatarSet     AvatarStatus = "set"
	AvatarFailed  AvatarStatus = "failed"
	AvatarSkipped AvatarStatus = "skipped"
)

// CreationRecord is the persisted ledger entry of a created bot.
// The token is kept only in masked form.
type CreationRecord struct {
	ID             string       `json:"id"`
	ChatID         int64        `json:"chat_id"`
	UserID         int64        `json:"user_id"`
	Name           string       `json:"name"`
	Username       string       `json:"username"`
	TokenHint      string       `json:"token_hint"`
	DescriptionSet bool         `json:"description_set"`
	Avatar         AvatarStatus `json:"avatar_status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ValidName reports whether a trimmed bot name fits the accepted length.
func ValidName(name string) bool {
	n := len([]rune(name))
	return n >= MinNameLength && n <= MaxNameLength
}

// MaskToken hides the secret half of a bot token, keeping the bot id and
// the last four characters for correlation.
func MaskToken(token string) string {
	id, secret, ok := strings.Cut(token, ":")
	if !ok || len(secret) <= 4 {
		return "****"
	}
	return id + ":****" + secret[len(secret)-4:]
}
