package security

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
)

const token = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsawQ"

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		secrets []string
		want    string
	}{
		{"bot token in url", "https://api.telegram.org/bot" + token + "/sendMessage", nil, "https://api.telegram.org/bot****/sendMessage"},
		{"explicit secret", "chat secret-chat-id rejected", []string{"secret-chat-id"}, "chat **** rejected"},
		{"short secret ignored", "chat 42 rejected", []string{"42"}, "chat 42 rejected"},
		{"nothing to hide", "plain message", []string{"abcdefgh"}, "plain message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.in, tt.secrets...); got != tt.want {
				t.Errorf("Redact() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"short":     "****",
		token:       "1234****",
		"abcdefghi": "abcd****",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://watch:hunter22@db:5432/landwatch?sslmode=disable", "postgres://watch:****@db:5432/landwatch?sslmode=disable"},
		{"watch:hunter22@tcp(db:3306)/landwatch?parseTime=true", "watch:****@tcp(db:3306)/landwatch?parseTime=true"},
		{"data/landwatch.db", "data/landwatch.db"},
		{"postgres://db:5432/landwatch", "postgres://db:5432/landwatch"},
	}
	for _, tt := range tests {
		if got := RedactDSN(tt.in); got != tt.want {
			t.Errorf("RedactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactErrorKeepsChain(t *testing.T) {
	base := &url.Error{Op: "Post", URL: "https://api.telegram.org/bot" + token + "/sendMessage", Err: context.DeadlineExceeded}

	err := RedactError(base, token)
	if strings.Contains(err.Error(), token) {
		t.Fatalf("token leaked: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is lost the cause")
	}
	var uerr *url.Error
	if !errors.As(err, &uerr) || strings.Contains(uerr.URL, token) {
		t.Errorf("unwrapped url.Error still carries the token: %v", uerr)
	}
	if RedactError(nil) != nil {
		t.Error("RedactError(nil) != nil")
	}
	plain := errors.New("plain")
	if RedactError(plain, token) != plain {
		t.Error("error without secrets should be returned unchanged")
	}
}
