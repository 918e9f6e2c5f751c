package auth

import (
	"errors"
	"testing"
	"time"

	"ideaboard/internal/models"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	tokens, err := NewTokens("secret", "ideaboard")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	p := models.Principal{UID: "u1", Email: "Ada@Example.com", DisplayName: "Ada", PhotoURL: "https://img/ada.png"}
	token, err := tokens.Issue(p, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := p
	want.Email = "ada@example.com"
	if got != want {
		t.Errorf("Verify = %+v, want %+v", got, want)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens, _ := NewTokens("secret", "ideaboard")
	other, _ := NewTokens("other-secret", "ideaboard")
	foreign, _ := NewTokens("secret", "someone-else")
	p := models.Principal{UID: "u1", Email: "a@b.co"}

	expired, _ := tokens.Issue(p, -time.Minute)
	wrongKey, _ := other.Issue(p, time.Hour)
	wrongIssuer, _ := foreign.Issue(p, time.Hour)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	if tok, err := BearerToken("Bearer abc.def"); err != nil || tok != "abc.def" {
		t.Errorf("BearerToken = %q, %v", tok, err)
	}
	for _, header := range []string{"", "abc", "Basic abc", "Bearer   "} {
		if _, err := BearerToken(header); err == nil {
			t.Errorf("BearerToken(%q) should fail", header)
		}
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("", "ideaboard"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
