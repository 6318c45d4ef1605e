package botfather

import (
	"regexp"
)

// MaxEchoLength caps how much BotFather text is echoed back to users.
const MaxEchoLength = 500

// Verdict is the outcome of classifying a reply window.
type Verdict int

const (
	NoSignal Verdict = iota
	TokenFound
	ErrorDetected
)

func (v Verdict) String() string {
	switch v {
	case TokenFound:
		return "token_found"
	case ErrorDetected:
		return "error_detected"
	default:
		return "no_signal"
	}
}

// Classification is the result of Classifier.Classify. Token is set for
// TokenFound, Message for ErrorDetected.
type Classification struct {
	Verdict Verdict
	Token   string
	Message string
}

// Classifier holds the marker lists used to read BotFather replies.
// Markers are matched case-insensitively as substrings.
type Classifier struct {
	ErrorMarkers   []string
	SuccessMarkers []string
	TokenPatterns  []*regexp.Regexp
}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+:[A-Za-z0-9_-]{20,})`),
	regexp.MustCompile(`(?i)Use this token.*?(\d+:[A-Za-z0-9_-]+)`),
	regexp.MustCompile(`(?i)Токен.*?(\d+:[A-Za-z0-9_-]+)`),
}

// CreationClassifier reads the reply window after /newbot.
var CreationClassifier = Classifier{
	ErrorMarkers: []string{
		"sorry", "error", "already", "taken", "invalid", "not available",
		"извините", "ошибка", "уже занят", "недоступ",
	},
	TokenPatterns: tokenPatterns,
}

// DescriptionClassifier reads the reply window after /setdescription.
var DescriptionClassifier = Classifier{
	ErrorMarkers:   []string{"error", "ошибка", "sorry", "invalid"},
	SuccessMarkers: []string{"successfully", "успешно", "success", "description"},
}

// AvatarClassifier reads the reply window after /setuserpic.
var AvatarClassifier = Classifier{
	ErrorMarkers:   []string{"error", "ошибка", "sorry", "invalid"},
	SuccessMarkers: []string{"successfully", "успешно", "success", "picture"},
}

// Classify scans replies in the given order looking for a bot token or an
// error marker. A token wins over any error marker in the window. Our own
// outgoing messages are ignored.
func (c Classifier) Classify(replies []Reply) Classification {
	var rejected string
	found := false
	for _, r := range replies {
		if r.Outgoing || !r.HasText() {
			continue
		}
		if !found && containsAny(r.Text, c.ErrorMarkers) {
			rejected = r.Text
			found = true
		}
		if token := c.extractToken(r.Text); token != "" {
			return Classification{Verdict: TokenFound, Token: token}
		}
	}
	if found {
		return Classification{Verdict: ErrorDetected, Message: truncate(rejected, MaxEchoLength)}
	}
	return Classification{Verdict: NoSignal}
}

// Confirmed reports whether the window confirms a profile update. The first
// reply carrying a success or error marker decides; silence counts as failure.
func (c Classifier) Confirmed(replies []Reply) bool {
	for _, r := range replies {
		if r.Outgoing || !r.HasText() {
			continue
		}
		if containsAny(r.Text, c.SuccessMarkers) {
			return true
		}
		if containsAny(r.Text, c.ErrorMarkers) {
			return false
		}
	}
	return false
}

func (c Classifier) extractToken(text string) string {
	for _, p := range c.TokenPatterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
