// Package notify sends Discord and Telegram notifications for hash-rate
// alerts and pool failover events.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coinshaft/internal/hashrate"
	"coinshaft/internal/logging"
	"coinshaft/internal/poolmanager"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
	Enabled      bool   `mapstructure:"enabled"`
	PoolName     string `mapstructure:"pool_name"`
}

// Retry configuration.
const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
)

// Notifier handles sending notifications.
type Notifier struct {
	cfg    *WebhookConfig
	client *http.Client
}

// NewNotifier creates a new notifier.
func NewNotifier(cfg *WebhookConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyHashRateDrop sends notifications for a hashrate.HashRateDrop alert.
func (n *Notifier) NotifyHashRateDrop(a hashrate.Alert) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordHashRateDropNotification(a)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramHashRateDropNotification(a)
	}
}

// NotifyFailover sends notifications when a pool failover occurs.
func (n *Notifier) NotifyFailover(ev poolmanager.FailoverEvent) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordFailoverNotification(ev)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramFailoverNotification(ev)
	}
}

// DiscordEmbed represents a Discord embed object.
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordField represents a field in a Discord embed.
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordFooter represents the footer of a Discord embed.
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordMessage represents a Discord webhook message.
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// sendDiscordHashRateDropNotification sends a hash-rate-drop alert to Discord.
func (n *Notifier) sendDiscordHashRateDropNotification(a hashrate.Alert) {
	embed := DiscordEmbed{
		Title:       "Hash Rate Drop",
		Description: fmt.Sprintf("**%s** detected a hash rate drop", n.cfg.PoolName),
		Color:       0xFFA500, // Orange
		Fields: []DiscordField{
			{Name: "Current", Value: hashrate.FormatHashRate(a.Value), Inline: true},
			{Name: "Threshold", Value: hashrate.FormatHashRate(a.Threshold), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.PoolName},
	}

	n.sendDiscordMessageWithRetry(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

// sendDiscordFailoverNotification sends a pool-failover event to Discord.
func (n *Notifier) sendDiscordFailoverNotification(ev poolmanager.FailoverEvent) {
	embed := DiscordEmbed{
		Title:       "Pool Failover",
		Description: fmt.Sprintf("**%s** failed over between pools", n.cfg.PoolName),
		Color:       0xFF0000, // Red
		Fields: []DiscordField{
			{Name: "From", Value: fallback(ev.From, "none"), Inline: true},
			{Name: "To", Value: fallback(ev.To, "none"), Inline: true},
			{Name: "Reason", Value: ev.Reason, Inline: false},
		},
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.PoolName},
	}

	n.sendDiscordMessageWithRetry(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// sendDiscordMessageWithRetry sends a message to Discord with exponential backoff retry.
func (n *Notifier) sendDiscordMessageWithRetry(msg DiscordMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		logging.Warnf("failed to marshal Discord message: %v", err)
		return
	}

	n.postWithRetry(n.cfg.DiscordURL, body)
}

// TelegramMessage represents a Telegram bot message.
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendTelegramHashRateDropNotification sends a hash-rate-drop alert to Telegram.
func (n *Notifier) sendTelegramHashRateDropNotification(a hashrate.Alert) {
	text := fmt.Sprintf(
		"*Hash Rate Drop*\n\n"+
			"Current: `%s`\n"+
			"Threshold: `%s`",
		hashrate.FormatHashRate(a.Value), hashrate.FormatHashRate(a.Threshold),
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramFailoverNotification sends a pool-failover event to Telegram.
func (n *Notifier) sendTelegramFailoverNotification(ev poolmanager.FailoverEvent) {
	text := fmt.Sprintf(
		"*Pool Failover*\n\n"+
			"From: `%s`\n"+
			"To: `%s`\n"+
			"Reason: `%s`",
		fallback(ev.From, "none"), fallback(ev.To, "none"), ev.Reason,
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramMessageWithRetry sends a message via Telegram with exponential backoff retry.
func (n *Notifier) sendTelegramMessageWithRetry(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBot)

	msg := TelegramMessage{
		ChatID:    n.cfg.TelegramChat,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		logging.Warnf("failed to marshal Telegram message: %v", err)
		return
	}

	n.postWithRetry(url, body)
}

// postWithRetry posts body to url with exponential backoff across MaxRetries
// attempts, treating HTTP 429 as a longer fixed backoff.
func (n *Notifier) postWithRetry(url string, body []byte) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, then 4s
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return // Success
		}

		// Rate limited - wait longer
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		logging.Warnf("failed to send webhook notification after %d attempts: %v", MaxRetries, lastErr)
	}
}
