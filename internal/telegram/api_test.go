package telegram

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactingLogger(t *testing.T) {
	const token = "7012345678:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"
	var buf bytes.Buffer
	l := newRedactingLogger(token, slog.New(slog.NewTextHandler(&buf, nil)))

	l.Println(`Post "https://api.telegram.org/bot` + token + `/getUpdates": EOF`)
	l.Printf("Failed to get updates, retrying in %d seconds... (%s)", 3, "bot"+token)

	out := buf.String()
	if strings.Contains(out, "AAHdqTcvCH1vGWJxfSeof") {
		t.Fatalf("token leaked into log: %s", out)
	}
	if !strings.Contains(out, "7012345678:****Dsaw") {
		t.Fatalf("masked token missing: %s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected 2 log lines, got: %s", out)
	}
}
