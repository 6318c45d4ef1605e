package botfather

import "testing"

func TestResolveButton(t *testing.T) {
	grid := Keyboard{
		{{Label: "@otherbot", Data: []byte("other")}, {Label: "@Target123bot", Data: []byte("target")}},
		{{Label: "@thirdbot", Data: []byte("third")}},
	}

	tests := []struct {
		name     string
		kb       Keyboard
		target   string
		wantData string
		wantOK   bool
	}{
		{"match second button", grid, "target123", "target", true},
		{"match second row", grid, "THIRD", "third", true},
		{"fallback to first", grid, "missing", "other", true},
		{"empty grid", nil, "target123", "", false},
		{"empty first row", Keyboard{{}}, "x", "", false},
		{"matched button without payload", Keyboard{{{Label: "@target123bot"}}}, "target123", "", false},
		{"fallback button without payload", Keyboard{{{Label: "Help"}}}, "target123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ok := ResolveButton(tt.kb, tt.target)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if string(data) != tt.wantData {
				t.Fatalf("data = %q, want %q", data, tt.wantData)
			}
		})
	}
}

func TestKeyboardHasCallbacks(t *testing.T) {
	reply := Keyboard{{{Label: "@target123bot"}, {Label: "@otherbot"}}}
	if reply.HasCallbacks() {
		t.Fatal("reply keyboard has no callbacks")
	}
	mixed := Keyboard{{{Label: "Help"}}, {{Label: "@target123bot", Data: []byte("target")}}}
	if !mixed.HasCallbacks() {
		t.Fatal("expected callback in second row")
	}
	if Keyboard(nil).HasCallbacks() {
		t.Fatal("empty keyboard has no callbacks")
	}
}
