package domain

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerateUsernameShape(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		pattern *regexp.Regexp
	}{
		{"first attempt", SuffixLength, regexp.MustCompile(`^famegifter[a-z0-9]{8}bot$`)},
		{"retry", RetrySuffixLength, regexp.MustCompile(`^famegifter[a-z0-9]{10}bot$`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				got, err := GenerateUsername("famegifter", tt.length)
				if err != nil {
					t.Fatalf("GenerateUsername failed: %v", err)
				}
				if !tt.pattern.MatchString(got) {
					t.Fatalf("username %q does not match %s", got, tt.pattern)
				}
			}
		})
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ab", false},
		{"abc", true},
		{"MyCoolBot", true},
		{strings.Repeat("x", 100), true},
		{strings.Repeat("x", 101), false},
		{"Бот", true},
	}
	for _, tt := range tests {
		if got := ValidName(tt.in); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	got := MaskToken("123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw")
	if got != "123456789:****Dsaw" {
		t.Fatalf("MaskToken = %q", got)
	}
	if strings.Contains(got, "AAHdq") {
		t.Fatal("masked token leaks secret prefix")
	}
	if MaskToken("garbage") != "****" {
		t.Fatal("expected fully masked value for malformed token")
	}
}
