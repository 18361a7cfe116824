package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/ManiKumarKundurthi/chat-with-me/auth"
	"github.com/ManiKumarKundurthi/chat-with-me/config"
	"github.com/ManiKumarKundurthi/chat-with-me/domain"
	"github.com/ManiKumarKundurthi/chat-with-me/hub"
	"github.com/ManiKumarKundurthi/chat-with-me/notify"
	"github.com/ManiKumarKundurthi/chat-with-me/protocol"
	ws "github.com/ManiKumarKundurthi/chat-with-me/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	cfg := config.FromEnv()
	setupLogger(cfg.LogLevel)

	if cfg.AdminPasswordHash == "" {
		slog.Warn("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}
	authenticator := auth.New(cfg.AdminUsername, cfg.AdminPasswordHash)

	var notifier domain.Notifier
	if tg := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.DashboardURL); tg.Enabled() {
		slog.Info("telegram notifications enabled")
		notifier = tg
	}

	matchmaker := hub.New(authenticator, cfg.AdminUsername, notifier)
	router := protocol.NewRouter(matchmaker)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(router))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(matchmaker))

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(logLevel string) {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func wsHandler(router *protocol.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), conn, router)
		wsConn.Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(matchmaker *hub.Matchmaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waiting, active, clients := matchmaker.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"waiting_rooms": waiting,
			"active_rooms":  active,
			"clients":       clients,
		})
	}
}
