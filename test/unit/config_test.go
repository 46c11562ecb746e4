package unit

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pulsechat/relay/internal/server"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := server.NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Port = %q, want :8080", cfg.Port)
	}
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize = %d, want positive", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst <= 0 {
		t.Errorf("RateLimit.Burst = %d, want positive", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		t.Errorf("RateLimit.RefillInterval = %s, want positive", cfg.RateLimit.RefillInterval)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com,https://staging.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv() error: %v", err)
	}

	if cfg.Port != ":9090" {
		t.Errorf("Port = %q, want :9090", cfg.Port)
	}
	wantOrigins := []string{"https://chat.example.com", "https://staging.example.com"}
	if diff := cmp.Diff(wantOrigins, cfg.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.MaxMessageSize != 2048 {
		t.Errorf("MaxMessageSize = %d, want 2048", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Errorf("RateLimit.Burst = %d, want 3", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("RateLimit.RefillInterval = %s, want 2s", cfg.RateLimit.RefillInterval)
	}
}

func TestNewConfigFromEnvRejectsMalformedInterval(t *testing.T) {
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "not-a-duration")

	if _, err := server.NewConfigFromEnv(); err == nil {
		t.Error("NewConfigFromEnv() accepted a malformed duration")
	}
}

func TestSetConfigSanitizesValues(t *testing.T) {
	t.Cleanup(func() { server.SetConfig(nil) })

	server.SetConfig(&server.Config{
		Port:           "",
		MaxMessageSize: -1,
		RateLimit:      server.RateLimitConfig{Burst: 0, RefillInterval: 0},
	})

	// Sanitization must not leave zero values behind; a fresh default
	// reset must also succeed.
	server.SetConfig(nil)
}
