// Package notify pings the admin's phone through the Telegram Bot API
// when a user starts waiting. Delivery is asynchronous and best effort;
// a lost notification costs nothing but convenience.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Telegram struct {
	token        string
	chatID       string
	dashboardURL string
	client       *http.Client
}

// NewTelegram builds a notifier. With an empty token or chat id it stays
// disabled and every call is a no-op.
func NewTelegram(token, chatID, dashboardURL string) *Telegram {
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &Telegram{
		token:        token,
		chatID:       chatID,
		dashboardURL: dashboardURL,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// RoomCreated fires off a new-chat-request alert without blocking the
// caller (the matchmaker invokes this while holding its lock).
func (t *Telegram) RoomCreated(username, roomID string) {
	if !t.Enabled() {
		return
	}
	text := fmt.Sprintf("New chat request\n\nUser: %s\nRoom: %s\nTime: %s\n\nDashboard: %s",
		username, roomID, time.Now().Format("3:04 PM"), t.dashboardURL)
	go t.post(text)
}

func (t *Telegram) post(text string) {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		slog.Warn("telegram payload marshal failed", "error", err)
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Warn("telegram notification failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("telegram notification rejected", "status", resp.StatusCode)
		return
	}
	slog.Debug("telegram notification sent")
}
