// Package telegram is the long-polling Telegram transport.
package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"worklogbot/internal/worklog"
)

const (
	source = "telegram"
	// pollTimeoutSeconds must stay below pollHTTPTimeout.
	pollTimeoutSeconds = 30
	pollHTTPTimeout    = 60 * time.Second
)

type Handler interface {
	HandleText(ctx context.Context, in worklog.Incoming) (string, bool)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Options struct {
	// AllowedChats limits handling to these chat ids; empty means all chats.
	AllowedChats []int64
	Debug        bool
}

type bot struct {
	api     sender
	handler Handler
	allowed map[int64]bool
}

func newBot(api sender, handler Handler, opts Options) *bot {
	b := &bot{api: api, handler: handler, allowed: make(map[int64]bool, len(opts.AllowedChats))}
	for _, id := range opts.AllowedChats {
		b.allowed[id] = true
	}
	return b
}

// NewAPI connects to the Bot API with an HTTP client whose timeout fits
// long polling.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: pollHTTPTimeout})
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return api, nil
}

// StartTelegramBot polls for updates until ctx is cancelled. Updates are
// handled one at a time in arrival order.
func StartTelegramBot(ctx context.Context, api *tgbotapi.BotAPI, handler Handler, opts Options) error {
	api.Debug = opts.Debug
	b := newBot(api, handler, opts)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	u.AllowedUpdates = []string{"message"}
	updates := api.GetUpdatesChan(u)

	log.Printf("Telegram bot connected as @%s", api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}
	if len(b.allowed) > 0 && !b.allowed[msg.Chat.ID] {
		return
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	reply, handled := b.handler.HandleText(ctx, worklog.Incoming{
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		DisplayName: senderName(msg.From),
		Text:        text,
		Source:      source,
	})
	if !handled || reply == "" {
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	out.DisableWebPagePreview = true
	if _, err := b.api.Send(out); err != nil {
		log.Printf("telegram reply error chat=%d user=%d: %v", msg.Chat.ID, msg.From.ID, err)
	}
}

func senderName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// ChatPoster posts plain messages to one chat; the digest uses it.
type ChatPoster struct {
	api    sender
	chatID int64
}

func NewChatPoster(api *tgbotapi.BotAPI, chatID int64) *ChatPoster {
	return &ChatPoster{api: api, chatID: chatID}
}

func (p *ChatPoster) Post(_ context.Context, text string) error {
	_, err := p.api.Send(tgbotapi.NewMessage(p.chatID, text))
	return err
}
