package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TelegramEnabled() || cfg.GatewayEnabled() {
		t.Fatal("expected optional integrations disabled")
	}
	if cfg.GatewayPollInterval != time.Minute || cfg.QueueSize != 64 || cfg.ChatBackground != "classic" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TrashRetention != 0 || cfg.NotifySpam || cfg.TrustedBypass || !cfg.NotificationContentVisible {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		wantErr bool
	}{
		{"token without chat", map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"}, true},
		{"token with chat", map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc", "TELEGRAM_CHAT_ID": "-100123"}, false},
		{"gateway without password", map[string]string{"GATEWAY_EMAIL": "sms@example.com"}, true},
		{"gateway bad email", map[string]string{"GATEWAY_EMAIL": "nope", "GATEWAY_PASSWORD": "x"}, true},
		{"gateway ok", map[string]string{"GATEWAY_EMAIL": "sms@example.com", "GATEWAY_PASSWORD": "x", "GATEWAY_IMAP_SERVER": "imap.example.com:993"}, false},
		{"poll too fast", map[string]string{"GATEWAY_POLL_INTERVAL": "1s"}, true},
		{"bad background", map[string]string{"CHAT_BACKGROUND": "neon"}, true},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, true},
		{"retention", map[string]string{"TRASH_RETENTION": "720h"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%v) error = %v, wantErr %v", tt.environ, err, tt.wantErr)
			}
		})
	}
}
