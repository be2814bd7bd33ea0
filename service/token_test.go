package service

import (
	"strings"
	"testing"
	"time"

	"github.com/absolute0github/band-contract-plugin/model"
)

func TestTokenGenerate(t *testing.T) {
	m := NewTokenManager(0)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := m.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(tok) != 64 {
			t.Errorf("Expected 64 characters, got %d", len(tok))
		}
		if tok != strings.ToLower(tok) || !ValidTokenFormat(tok) {
			t.Errorf("Expected lowercase hex token, got %s", tok)
		}
		if seen[tok] {
			t.Errorf("Duplicate token %s", tok)
		}
		seen[tok] = true
	}
}

func TestTokenExpiresAt(t *testing.T) {
	m := NewTokenManager(0)
	from := time.Date(2026, 1, 1, 8, 30, 15, 999, time.UTC)
	want := time.Date(2026, 1, 31, 8, 30, 15, 0, time.UTC)
	if got := m.ExpiresAt(from); !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	short := NewTokenManager(time.Hour)
	if got := short.ExpiresAt(from); !got.Equal(want.AddDate(0, 0, -30).Add(time.Hour)) {
		t.Errorf("Expected custom ttl to apply, got %v", got)
	}
}

func TestValidTokenFormat(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"lowercase", strings.Repeat("ab", 32), true},
		{"uppercase", strings.Repeat("AB", 32), true},
		{"too short", strings.Repeat("a", 63), false},
		{"too long", strings.Repeat("a", 65), false},
		{"non hex", strings.Repeat("g", 64), false},
		{"empty", "", false},
		{"with space", strings.Repeat("a", 63) + " ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTokenFormat(tt.token); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCanSign(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	m := NewTokenManager(0)
	m.now = func() time.Time { return now }

	valid := now.Add(time.Hour)
	expired := now.Add(-time.Hour)

	tests := []struct {
		name     string
		contract *model.Contract
		valid    bool
		reason   string
	}{
		{"missing", nil, false, MsgContractNotFound},
		{"sent", &model.Contract{Status: model.StatusSent, TokenExpiresAt: valid}, true, ""},
		{"viewed", &model.Contract{Status: model.StatusViewed, TokenExpiresAt: valid}, true, ""},
		{"expired wins over signed", &model.Contract{Status: model.StatusSigned, TokenExpiresAt: expired}, false, MsgLinkExpired},
		{"signed", &model.Contract{Status: model.StatusSigned, TokenExpiresAt: valid}, false, MsgAlreadySigned},
		{"cancelled", &model.Contract{Status: model.StatusCancelled, TokenExpiresAt: valid}, false, MsgCancelled},
		{"draft", &model.Contract{Status: model.StatusDraft, TokenExpiresAt: valid}, false, MsgNotAvailable},
		{"expires exactly now", &model.Contract{Status: model.StatusSent, TokenExpiresAt: now}, false, MsgLinkExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.CanSign(tt.contract)
			if d.Valid != tt.valid {
				t.Errorf("Expected valid=%v, got %v", tt.valid, d.Valid)
			}
			if d.Reason != tt.reason {
				t.Errorf("Expected reason %q, got %q", tt.reason, d.Reason)
			}
		})
	}
}
