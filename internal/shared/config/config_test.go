package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Queue.PaymentLatency != 3*time.Second {
		t.Errorf("PaymentLatency = %v, want 3s", cfg.Queue.PaymentLatency)
	}
	if cfg.Queue.PaymentSuccessRate != 0.9 {
		t.Errorf("PaymentSuccessRate = %v, want 0.9", cfg.Queue.PaymentSuccessRate)
	}
	if cfg.Pass.ValidFor != 24*time.Hour {
		t.Errorf("Pass.ValidFor = %v, want 24h", cfg.Pass.ValidFor)
	}
	if cfg.Queue.BookingGrace != 2*time.Hour {
		t.Errorf("BookingGrace = %v, want 2h", cfg.Queue.BookingGrace)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if got := cfg.GetAPIBasePath(); got != "/api/v1" {
		t.Errorf("GetAPIBasePath() = %q, want /api/v1", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.5")
	t.Setenv("PAYMENT_LATENCY", "10ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("PASS_USED_RETENTION", "not-a-duration")

	cfg := Load()

	if cfg.Queue.PaymentSuccessRate != 0.5 {
		t.Errorf("PaymentSuccessRate = %v, want 0.5", cfg.Queue.PaymentSuccessRate)
	}
	if cfg.Queue.PaymentLatency != 10*time.Millisecond {
		t.Errorf("PaymentLatency = %v, want 10ms", cfg.Queue.PaymentLatency)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.Enabled {
		t.Error("Kafka.Enabled = false, want true")
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Pass.UsedRetention != 72*time.Hour {
		t.Errorf("invalid duration should fall back, got %v", cfg.Pass.UsedRetention)
	}
}

func TestLoadClampsUsedRetention(t *testing.T) {
	tests := []struct {
		name      string
		validFor  string
		retention string
		want      time.Duration
	}{
		{"shorter retention is raised", "48h", "1h", 48 * time.Hour},
		{"equal retention kept", "24h", "24h", 24 * time.Hour},
		{"longer retention kept", "24h", "96h", 96 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PASS_VALID_FOR", tt.validFor)
			t.Setenv("PASS_USED_RETENTION", tt.retention)

			cfg := Load()
			if cfg.Pass.UsedRetention != tt.want {
				t.Errorf("UsedRetention = %v, want %v", cfg.Pass.UsedRetention, tt.want)
			}
		})
	}
}

func TestQueueLocation(t *testing.T) {
	loc := Load().Queue.Location()
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 5*3600+30*60 {
		t.Errorf("offset = %d, want 19800", offset)
	}
}
