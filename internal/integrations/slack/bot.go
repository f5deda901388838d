// Package slackbot is the Socket Mode transport: channel messages and the
// /info and /help slash commands go to a worklog handler, replies go back
// to the thread or as ephemeral messages.
package slackbot

import (
	"context"
	"html"
	"log"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"worklogbot/internal/worklog"
)

const (
	source       = "slack"
	jobQueueSize = 64
)

// Handler is implemented by worklog.Service.
type Handler interface {
	HandleText(ctx context.Context, in worklog.Incoming) (string, bool)
}

type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

type Options struct {
	// Channels limits message handling; empty means every channel the bot is in.
	Channels []string
	TeamName string
}

type bot struct {
	api      slackAPI
	handler  Handler
	names    *userNames
	channels map[string]bool
	teamName string
	jobs     chan func()
}

func newBot(api slackAPI, handler Handler, opts Options) *bot {
	b := &bot{
		api:      api,
		handler:  handler,
		names:    newUserNames(api),
		channels: make(map[string]bool, len(opts.Channels)),
		teamName: strings.TrimSpace(opts.TeamName),
		jobs:     make(chan func(), jobQueueSize),
	}
	for _, ch := range opts.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			b.channels[ch] = true
		}
	}
	return b
}

// StartSlackBot blocks until ctx is cancelled or the socket connection fails.
// api must be built with slack.OptionAppLevelToken.
func StartSlackBot(ctx context.Context, api *slack.Client, handler Handler, opts Options) error {
	client := socketmode.New(api)
	b := newBot(api, handler, opts)

	go b.work(ctx)
	go func() {
		for evt := range client.Events {
			b.dispatch(ctx, client, evt)
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.RunContext(ctx)
}

// work runs queued jobs one at a time so messages are handled in order.
func (b *bot) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-b.jobs:
			job()
		}
	}
}

func (b *bot) enqueue(ctx context.Context, job func()) {
	select {
	case b.jobs <- job:
	case <-ctx.Done():
	}
}

func (b *bot) dispatch(ctx context.Context, client *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		log.Println("slack connecting")
	case socketmode.EventTypeConnectionError:
		log.Printf("slack connection error: %v", evt.Data)
	case socketmode.EventTypeSlashCommand:
		client.Ack(*evt.Request)
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
		b.enqueue(ctx, func() { b.handleSlashCommand(ctx, cmd) })
	case socketmode.EventTypeEventsAPI:
		client.Ack(*evt.Request)
		event, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.enqueue(ctx, func() { b.handleEventsAPI(ctx, event) })
	}
}

func (b *bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ctx, ev)
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ctx, ev)
	}
}

func (b *bot) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.SubType != "" || ev.User == "" {
		return
	}
	if len(b.channels) > 0 && !b.channels[ev.Channel] {
		return
	}

	reply, handled := b.handler.HandleText(ctx, worklog.Incoming{
		UserID:      ev.User,
		DisplayName: b.names.lookup(ctx, ev.User),
		Text:        plainText(ev.Text),
		Source:      source,
	})
	if !handled || reply == "" {
		return
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	if _, _, err := b.api.PostMessageContext(ctx, ev.Channel,
		slack.MsgOptionText(reply, false),
		slack.MsgOptionTS(threadTS),
	); err != nil {
		log.Printf("slack reply error channel=%s user=%s: %v", ev.Channel, ev.User, err)
	}
}

func (b *bot) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	var text string
	switch cmd.Command {
	case "/info":
		text = "/info " + cmd.Text
	case "/help":
		text = "/help"
	default:
		return
	}
	reply, handled := b.handler.HandleText(ctx, worklog.Incoming{
		UserID:      cmd.UserID,
		DisplayName: cmd.UserName,
		Text:        plainText(text),
		Source:      source,
	})
	if !handled {
		return
	}
	b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, reply)
}

func (b *bot) handleMemberJoined(ctx context.Context, ev *slackevents.MemberJoinedChannelEvent) {
	if len(b.channels) > 0 && !b.channels[ev.Channel] {
		return
	}
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)

	team := b.teamName
	if team == "" {
		team = "the team"
	}
	help, _ := b.handler.HandleText(ctx, worklog.Incoming{UserID: ev.User, Text: "/help", Source: source})
	b.postEphemeral(ctx, ev.Channel, ev.User, "Welcome to "+team+"! Post one line per customer interaction here and I will log it.\n\n"+help)
}

func (b *bot) postEphemeral(ctx context.Context, channelID, userID, text string) {
	if _, err := b.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

var (
	slackLinkLabelRe = regexp.MustCompile(`<[^<>|]+\|([^<>]*)>`)
	slackLinkRe      = regexp.MustCompile(`<([^<>|]+)>`)
)

// plainText undoes Slack's message markup: auto-linked phones and URLs
// become their visible text and HTML entities are decoded.
func plainText(s string) string {
	s = slackLinkLabelRe.ReplaceAllString(s, "$1")
	s = slackLinkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[1 : len(m)-1]
		if i := strings.Index(inner, ":"); i > 0 && (strings.HasPrefix(inner, "tel:") || strings.HasPrefix(inner, "mailto:")) {
			return inner[i+1:]
		}
		return inner
	})
	return html.UnescapeString(s)
}

// ChannelPoster posts plain messages to one channel; the digest uses it.
type ChannelPoster struct {
	api       slackAPI
	channelID string
}

func NewChannelPoster(api *slack.Client, channelID string) *ChannelPoster {
	return &ChannelPoster{api: api, channelID: channelID}
}

func (p *ChannelPoster) Post(ctx context.Context, text string) error {
	_, _, err := p.api.PostMessageContext(ctx, p.channelID, slack.MsgOptionText(text, false))
	return err
}
