// Package telegram implements the remote sink over the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sink delivers artifacts to a Telegram chat. The bot client is constructed
// without the library's initial getMe round-trip so the agent can start while
// offline; the first actual send fails fast through the bounded HTTP client
// instead.
type Sink struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewSink builds the sink. timeout bounds every API call.
func NewSink(token string, timeout time.Duration, logger *zap.Logger) (*Sink, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(tgbotapi.APIEndpoint)

	return &Sink{bot: bot, logger: logger}, nil
}

// SendPhoto uploads one captured frame with a caption.
func (s *Sink) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "capture.jpg", Bytes: image})
	photo.Caption = caption
	if _, err := s.bot.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendMessage sends a plain text message.
func (s *Sink) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendLocation sends a coordinates message rendered as a map pin.
func (s *Sink) SendLocation(ctx context.Context, chatID int64, lat, lon float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(tgbotapi.NewLocation(chatID, lat, lon)); err != nil {
		return fmt.Errorf("send location: %w", err)
	}
	return nil
}
