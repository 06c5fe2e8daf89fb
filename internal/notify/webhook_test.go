package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"coinshaft/internal/hashrate"
	"coinshaft/internal/poolmanager"
)

func TestNewNotifier(t *testing.T) {
	cfg := &WebhookConfig{
		Enabled:      true,
		DiscordURL:   "https://discord.com/api/webhooks/test",
		TelegramBot:  "bot_token",
		TelegramChat: "chat_id",
		PoolName:     "Test Pool",
	}

	n := NewNotifier(cfg)

	if n == nil {
		t.Fatal("NewNotifier returned nil")
	}
	if n.cfg != cfg {
		t.Error("Notifier.cfg not set correctly")
	}
	if n.client.Timeout != 10*time.Second {
		t.Errorf("Client timeout = %v, want 10s", n.client.Timeout)
	}
}

func TestNotifyHashRateDropDisabled(t *testing.T) {
	n := NewNotifier(&WebhookConfig{Enabled: false})

	// Should not panic or block when disabled.
	n.NotifyHashRateDrop(hashrate.Alert{Kind: hashrate.HashRateDrop, Value: 10, Threshold: 20})
}

func TestNotifyFailoverDisabled(t *testing.T) {
	n := NewNotifier(&WebhookConfig{Enabled: false})

	// Should not panic or block when disabled.
	n.NotifyFailover(poolmanager.FailoverEvent{From: "a", To: "b", Reason: "timeout"})
}

func TestDiscordHashRateDropIntegration(t *testing.T) {
	var received DiscordMessage
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&callCount, 1)
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{Enabled: true, DiscordURL: server.URL, PoolName: "Test Pool"}
	n := NewNotifier(cfg)

	n.NotifyHashRateDrop(hashrate.Alert{Kind: hashrate.HashRateDrop, Value: 500_000, Threshold: 1_000_000})

	time.Sleep(200 * time.Millisecond)

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if len(received.Embeds) == 0 {
		t.Fatal("no embeds received")
	}
	if received.Embeds[0].Title != "Hash Rate Drop" {
		t.Errorf("embed title = %s, want Hash Rate Drop", received.Embeds[0].Title)
	}
	if received.Embeds[0].Color != 0xFFA500 {
		t.Errorf("embed color = %d, want orange (0xFFA500)", received.Embeds[0].Color)
	}
}

func TestDiscordFailoverIntegration(t *testing.T) {
	var received DiscordMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{Enabled: true, DiscordURL: server.URL, PoolName: "Test Pool"}
	n := NewNotifier(cfg)

	n.NotifyFailover(poolmanager.FailoverEvent{
		Timestamp: time.Now(),
		From:      "pool-a",
		To:        "pool-b",
		Reason:    "acceptance rate below minimum",
	})
	time.Sleep(200 * time.Millisecond)

	if len(received.Embeds) == 0 {
		t.Fatal("no embeds received")
	}
	if received.Embeds[0].Title != "Pool Failover" {
		t.Errorf("embed title = %s, want Pool Failover", received.Embeds[0].Title)
	}
	if received.Embeds[0].Color != 0xFF0000 {
		t.Errorf("embed color = %d, want red (0xFF0000)", received.Embeds[0].Color)
	}
}

func TestDiscordRetryOnFailure(t *testing.T) {
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&callCount, 1)
		if count < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{Enabled: true, DiscordURL: server.URL, PoolName: "Test Pool"}
	n := NewNotifier(cfg)

	n.NotifyHashRateDrop(hashrate.Alert{Kind: hashrate.HashRateDrop, Value: 1, Threshold: 2})

	time.Sleep(5 * time.Second)

	if atomic.LoadInt32(&callCount) < 2 {
		t.Errorf("expected at least 2 calls (with retry), got %d", callCount)
	}
}

func TestDiscordRateLimitHandling(t *testing.T) {
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&callCount, 1)
		if count == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{Enabled: true, DiscordURL: server.URL, PoolName: "Test Pool"}
	n := NewNotifier(cfg)

	n.NotifyHashRateDrop(hashrate.Alert{Kind: hashrate.HashRateDrop, Value: 1, Threshold: 2})

	time.Sleep(10 * time.Second)

	if atomic.LoadInt32(&callCount) < 1 {
		t.Errorf("expected at least 1 call, got %d", callCount)
	}
}

func TestConstants(t *testing.T) {
	if MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", MaxRetries)
	}
	if RetryBaseDelay != 2*time.Second {
		t.Errorf("RetryBaseDelay = %v, want 2s", RetryBaseDelay)
	}
}

func TestFallbackReplacesEmptyString(t *testing.T) {
	if fallback("", "none") != "none" {
		t.Error("fallback should substitute the default for an empty string")
	}
	if fallback("pool-a", "none") != "pool-a" {
		t.Error("fallback should preserve a non-empty string")
	}
}
