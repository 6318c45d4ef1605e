// Package api provides the HTTP operations surface of the bot factory.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/botfactory/internal/store"
)

// Automation reports the state of the BotFather automation.
// *botfather.Sequencer implements it.
type Automation interface {
	Ready() error
	Pending() int
}

// SessionCounter reports in-progress end-user conversations.
type SessionCounter interface {
	Len() int
}

// EventStats reports live event stream figures.
type EventStats interface {
	Subscribers() int
	Dropped() int64
}

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	automation Automation
	sessions   SessionCounter
	events     EventStats
}

// NewHandler creates a new Handler with common dependencies. sessions and
// events may be nil.
func NewHandler(repo store.Repository, automation Automation, sessions SessionCounter, events EventStats) *Handler {
	return &Handler{
		repo:       repo,
		automation: automation,
		sessions:   sessions,
		events:     events,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
