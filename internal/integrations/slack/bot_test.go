package slackbot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"worklogbot/internal/worklog"
)

type sentMessage struct {
	channel  string
	user     string
	text     string
	threadTS string
}

type fakeSlackAPI struct {
	messages   []sentMessage
	ephemerals []sentMessage
	users      map[string]*slack.User
	userCalls  int
}

func (f *fakeSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, vals, _ := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	f.messages = append(f.messages, sentMessage{channel: channelID, text: vals.Get("text"), threadTS: vals.Get("thread_ts")})
	return channelID, "1.0", nil
}

func (f *fakeSlackAPI) PostEphemeralContext(_ context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	_, vals, _ := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	f.ephemerals = append(f.ephemerals, sentMessage{channel: channelID, user: userID, text: vals.Get("text")})
	return "1.0", nil
}

func (f *fakeSlackAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	f.userCalls++
	if u, ok := f.users[user]; ok {
		return u, nil
	}
	return nil, errors.New("user_not_found")
}

type recordingHandler struct {
	got   []worklog.Incoming
	reply string
	ok    bool
}

func (h *recordingHandler) HandleText(_ context.Context, in worklog.Incoming) (string, bool) {
	h.got = append(h.got, in)
	return h.reply, h.ok
}

func TestHandleMessageRepliesInThread(t *testing.T) {
	api := &fakeSlackAPI{users: map[string]*slack.User{"U1": {ID: "U1", RealName: "Olena Koval"}}}
	h := &recordingHandler{reply: "✅ saved", ok: true}
	b := newBot(api, h, Options{})

	b.handleMessage(context.Background(), &slackevents.MessageEvent{
		User: "U1", Channel: "C1", TimeStamp: "111.222",
		Text: "CL1 <tel:0631234567|063 123 4567> | client &amp; wife called",
	})

	if len(h.got) != 1 {
		t.Fatalf("handler calls = %d", len(h.got))
	}
	in := h.got[0]
	if in.Text != "CL1 063 123 4567 | client & wife called" || in.DisplayName != "Olena Koval" || in.Source != "slack" {
		t.Fatalf("incoming = %+v", in)
	}
	if len(api.messages) != 1 || api.messages[0].threadTS != "111.222" || api.messages[0].text != "✅ saved" {
		t.Fatalf("messages = %+v", api.messages)
	}
}

func TestHandleMessageSkipsBotsAndChatter(t *testing.T) {
	api := &fakeSlackAPI{}
	h := &recordingHandler{}
	b := newBot(api, h, Options{Channels: []string{"C1"}})
	ctx := context.Background()

	b.handleMessage(ctx, &slackevents.MessageEvent{User: "U1", Channel: "C1", BotID: "B1", Text: "x"})
	b.handleMessage(ctx, &slackevents.MessageEvent{User: "U1", Channel: "C1", SubType: "message_changed", Text: "x"})
	b.handleMessage(ctx, &slackevents.MessageEvent{User: "U1", Channel: "C2", Text: "x"})
	if len(h.got) != 0 {
		t.Fatalf("filtered messages reached the handler: %+v", h.got)
	}

	b.handleMessage(ctx, &slackevents.MessageEvent{User: "U1", Channel: "C1", Text: "hello"})
	if len(h.got) != 1 || len(api.messages) != 0 {
		t.Fatal("unhandled chatter must not be answered")
	}
}

func TestSlashCommandsReplyEphemeral(t *testing.T) {
	api := &fakeSlackAPI{}
	h := &recordingHandler{reply: "report", ok: true}
	b := newBot(api, h, Options{})

	b.handleSlashCommand(context.Background(), slack.SlashCommand{Command: "/info", Text: "0631234567, 7", UserID: "U1", UserName: "olena", ChannelID: "C1"})
	b.handleSlashCommand(context.Background(), slack.SlashCommand{Command: "/report", Text: "x", UserID: "U1", ChannelID: "C1"})

	if len(h.got) != 1 || h.got[0].Text != "/info 0631234567, 7" || h.got[0].DisplayName != "olena" {
		t.Fatalf("incoming = %+v", h.got)
	}
	if len(api.ephemerals) != 1 || api.ephemerals[0].user != "U1" || api.ephemerals[0].text != "report" {
		t.Fatalf("ephemerals = %+v", api.ephemerals)
	}
}

func TestMemberJoinedGetsHelp(t *testing.T) {
	api := &fakeSlackAPI{}
	h := &recordingHandler{reply: "Codes: ...", ok: true}
	b := newBot(api, h, Options{TeamName: "Support"})
	b.handleMemberJoined(context.Background(), &slackevents.MemberJoinedChannelEvent{User: "U2", Channel: "C1"})
	if len(api.ephemerals) != 1 || !strings.Contains(api.ephemerals[0].text, "Welcome to Support!") || !strings.Contains(api.ephemerals[0].text, "Codes: ...") {
		t.Fatalf("ephemerals = %+v", api.ephemerals)
	}
}

func TestUserNamesCacheSuccessOnly(t *testing.T) {
	api := &fakeSlackAPI{users: map[string]*slack.User{"U1": {ID: "U1", Name: "olena"}}}
	names := newUserNames(api)
	ctx := context.Background()

	if got := names.lookup(ctx, "U1"); got != "olena" {
		t.Fatalf("lookup = %q", got)
	}
	names.lookup(ctx, "U1")
	if api.userCalls != 1 {
		t.Fatalf("successful lookups must be cached, calls=%d", api.userCalls)
	}

	names.lookup(ctx, "U404")
	names.lookup(ctx, "U404")
	if api.userCalls != 3 {
		t.Fatalf("failed lookups must not be cached, calls=%d", api.userCalls)
	}
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"SMS <tel:+380631234567> | hi":       "SMS +380631234567 | hi",
		"see <https://example.com|the site>": "see the site",
		"a &lt;b&gt; &amp; c":                "a <b> & c",
		"plain":                              "plain",
	}
	for in, want := range tests {
		if got := plainText(in); got != want {
			t.Fatalf("plainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnlikelyUserIDs(t *testing.T) {
	got := UnlikelyUserIDs([]string{"U01ABCDEF23", "123456789", "W0123ABCDE", "olena"})
	if len(got) != 2 || got[0] != "123456789" || got[1] != "olena" {
		t.Fatalf("UnlikelyUserIDs = %v", got)
	}
}

func TestChannelPoster(t *testing.T) {
	api := &fakeSlackAPI{}
	p := &ChannelPoster{api: api, channelID: "C9"}
	if err := p.Post(context.Background(), "digest"); err != nil {
		t.Fatal(err)
	}
	if len(api.messages) != 1 || api.messages[0].channel != "C9" || api.messages[0].text != "digest" {
		t.Fatalf("messages = %+v", api.messages)
	}
}
